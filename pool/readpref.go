// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/server"
)

// Mode names one of the five read-preference rules a message can declare.
type Mode int

// The read-preference modes named in the data model.
const (
	Primary Mode = iota
	PrimaryPreferred
	Secondary
	SecondaryPreferred
	Nearest
)

// ReadPreference constrains which server a message may be dispatched to: a
// mode plus an optional tag-match document. A zero ReadPreference (mode
// Primary, no tags) is the strictest and default choice for writes.
type ReadPreference struct {
	Mode Mode
	Tags bson.Document
}

// eligible builds a predicate over *server.Server reflecting pref, given the
// full set of servers currently known to the cluster (used to decide
// whether a "preferred" mode's first choice is even available).
func eligible(pref ReadPreference, servers []*server.Server) func(*server.Server) bool {
	var hasWritable, hasReadOnly bool
	for _, s := range servers {
		switch s.Role() {
		case server.RoleWritable:
			hasWritable = true
		case server.RoleReadOnly:
			hasReadOnly = true
		}
	}

	tagsOK := func(s *server.Server) bool {
		if pref.Tags.Len() == 0 {
			return true
		}
		return tagsMatch(s.Tags(), pref.Tags)
	}

	roleIs := func(want server.Role) func(*server.Server) bool {
		return func(s *server.Server) bool { return s.Role() == want && tagsOK(s) }
	}

	switch pref.Mode {
	case Primary:
		return roleIs(server.RoleWritable)
	case PrimaryPreferred:
		if hasWritable {
			return roleIs(server.RoleWritable)
		}
		return roleIs(server.RoleReadOnly)
	case Secondary:
		return roleIs(server.RoleReadOnly)
	case SecondaryPreferred:
		if hasReadOnly {
			return roleIs(server.RoleReadOnly)
		}
		return roleIs(server.RoleWritable)
	default: // Nearest
		return func(s *server.Server) bool {
			return (s.Role() == server.RoleWritable || s.Role() == server.RoleReadOnly) && tagsOK(s)
		}
	}
}

// tagsMatch reports whether have contains every name/value pair in want.
func tagsMatch(have, want bson.Document) bool {
	for _, w := range want.Elements() {
		got, ok := have.Lookup(w.Name)
		if !ok || !got.Equal(w) {
			return false
		}
	}
	return true
}
