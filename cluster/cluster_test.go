// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package cluster

import (
	"testing"
	"time"

	"github.com/lucidfield/docdb/connection"
	"github.com/lucidfield/docdb/server"
)

func TestEnsureServerDedupsBySeed(t *testing.T) {
	c := New(KindReplicaSet, []connection.Address{"a:27017"})
	s1 := c.EnsureServer("a:27017")
	s2 := c.EnsureServer("A:27017")
	if s1 != s2 {
		t.Fatal("expected canonicalized seed addresses to dedup to the same server")
	}
	if len(c.Servers()) != 1 {
		t.Fatalf("expected exactly one tracked server, got %d", len(c.Servers()))
	}
}

func TestDiscoverAddsNewMembers(t *testing.T) {
	c := New(KindReplicaSet, []connection.Address{"a:27017"})
	c.Discover([]string{"a:27017", "b:27017", "c:27017"})
	if len(c.Servers()) != 3 {
		t.Fatalf("expected 3 tracked servers after discovery, got %d", len(c.Servers()))
	}
}

func TestReconcileCollapsesDuplicateSeed(t *testing.T) {
	c := New(KindReplicaSet, []connection.Address{"seed1:27017", "seed2:27017"})
	seed1 := c.EnsureServer("seed1:27017")
	seed2 := c.EnsureServer("seed2:27017")

	// seed1's probe reveals its canonical name is seed2:27017 -- i.e. seed1
	// and seed2 were the same server all along under two different names.
	c.Reconcile("seed1:27017", "seed2:27017")

	if len(c.Servers()) != 1 {
		t.Fatalf("expected the duplicate to collapse, got %d servers", len(c.Servers()))
	}
	remaining, ok := c.Lookup("seed2:27017")
	if !ok || remaining != seed2 {
		t.Fatal("expected the canonically-named server record to survive")
	}
	_ = seed1
}

func TestReconcileRekeysWhenNoCollision(t *testing.T) {
	c := New(KindReplicaSet, []connection.Address{"seed1:27017"})
	orig := c.EnsureServer("seed1:27017")

	c.Reconcile("seed1:27017", "real-host:27017")

	if _, ok := c.Lookup("seed1:27017"); ok {
		t.Fatal("expected the seed key to no longer resolve")
	}
	got, ok := c.Lookup("real-host:27017")
	if !ok || got != orig {
		t.Fatal("expected the same server record to now resolve under its canonical name")
	}
}

func TestSelectReturnsServerMatchingPredicate(t *testing.T) {
	c := New(KindReplicaSet, []connection.Address{"a:27017", "b:27017"})
	srvA := c.EnsureServer("a:27017")
	srvA.ApplyProbe(server.IsMasterResult{IsMaster: true}, nil, nil, time.Now())

	addr, srv, ok := c.Select(func(s *server.Server) bool { return s.Role() == server.RoleWritable })
	if !ok || srv != srvA || addr != "a:27017" {
		t.Fatalf("expected to select the writable server, got addr=%q ok=%v", addr, ok)
	}
}

func TestDefaultStrategyFactoryByKind(t *testing.T) {
	standalone := DefaultStrategyFactory(KindStandalone)
	if d := standalone.NextDelay(5); d != 500*time.Millisecond {
		t.Fatalf("expected constant delay for standalone, got %v", d)
	}

	rs := DefaultStrategyFactory(KindReplicaSet)
	if d := rs.NextDelay(0); d != 100*time.Millisecond {
		t.Fatalf("expected base delay at attempt 0, got %v", d)
	}
	if d := rs.NextDelay(10); d != 10*time.Second {
		t.Fatalf("expected the delay to cap at 10s, got %v", d)
	}
}
