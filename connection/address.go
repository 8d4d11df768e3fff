// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package connection owns one duplex socket to one server: the outbound
// queue, the inbound reader, request-id allocation, the pending-reply map,
// and the open/closed property-change stream the pool subscribes to.
package connection

import "strings"

// Address is a server's host:port, used both as the dial target and (once
// canonicalized by a probe reply) as the cluster's dedup key.
type Address string

// Network is always "tcp"; the wire protocol has no other transport.
func (a Address) Network() string { return "tcp" }

func (a Address) String() string { return string(a) }

// Canonicalize normalizes casing and a missing default port the way a
// server's self-reported "me" field is compared against seed addresses.
func (a Address) Canonicalize() Address {
	s := strings.ToLower(string(a))
	if !strings.Contains(s, ":") {
		s += ":27017"
	}
	return Address(s)
}
