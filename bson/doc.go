// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bson implements the binary document format exchanged with the
// server: a closed, tagged set of element types, an ordered Document built
// from them, and an encoding that can report its own byte length without
// being materialized into a buffer.
package bson
