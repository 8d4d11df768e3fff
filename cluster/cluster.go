// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package cluster tracks the set of servers backing a deployment: seed
// resolution, discovery of members reported by a probe reply,
// canonical-name dedup, and the reconnect strategy a cluster kind prefers.
// It owns no connections itself; the pool package dials and multiplexes
// against the servers this package tracks.
package cluster

import (
	"sync"

	"github.com/lucidfield/docdb/connection"
	"github.com/lucidfield/docdb/internal/logger"
	"github.com/lucidfield/docdb/server"
)

// Kind names the topology a Cluster believes it is talking to.
type Kind int

// The three cluster kinds named in the data model.
const (
	KindUnknown Kind = iota
	KindStandalone
	KindReplicaSet
	KindSharded
)

func (k Kind) String() string {
	switch k {
	case KindStandalone:
		return "standalone"
	case KindReplicaSet:
		return "replica-set"
	case KindSharded:
		return "sharded"
	default:
		return "unknown"
	}
}

// Cluster is a deduplicated set of Server records plus a chosen kind. It
// never holds two Server records under the same canonical name: when a
// probe reveals a server's self-reported address differs from the seed
// name it was discovered under, the duplicate seed entry is collapsed onto
// the canonical one.
type Cluster struct {
	mu      sync.RWMutex
	kind    Kind
	servers map[connection.Address]*server.Server

	strategyFactory StrategyFactory
	log             *logger.Logger
}

// New constructs a Cluster seeded with addrs, each tracked as an
// undiscovered server until its first probe reply arrives.
func New(kind Kind, seeds []connection.Address, opts ...Option) *Cluster {
	cfg := newConfig(opts...)
	c := &Cluster{
		kind:            kind,
		servers:         make(map[connection.Address]*server.Server),
		strategyFactory: cfg.strategyFactory,
		log:             cfg.logger,
	}
	for _, addr := range seeds {
		c.ensureLocked(addr.Canonicalize())
	}
	return c
}

// Kind returns the cluster's current topology classification.
func (c *Cluster) Kind() Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kind
}

// SetKind updates the cluster's topology classification, e.g. once a probe
// reply's setName or msg:"isdbgrid" field resolves it.
func (c *Cluster) SetKind(k Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind = k
}

// EnsureServer returns the Server tracked under addr, creating one in
// RoleUnknown if this is the first time addr has been seen.
func (c *Cluster) EnsureServer(addr connection.Address) *server.Server {
	key := addr.Canonicalize()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureLocked(key)
}

func (c *Cluster) ensureLocked(key connection.Address) *server.Server {
	if s, ok := c.servers[key]; ok {
		return s
	}
	s := server.New(string(key))
	c.servers[key] = s
	return s
}

// Discover adds any hosts reported by a probe's Hosts list that are not
// already tracked. It is how the cluster grows past its initial seed list
// as replica-set or mongos topology membership is learned.
func (c *Cluster) Discover(hosts []string) {
	for _, h := range hosts {
		c.EnsureServer(connection.Address(h))
	}
}

// Reconcile collapses a duplicate Server record when a probe reveals that
// the server tracked under seedKey is in fact the same server already
// tracked under canonical (a different seed name resolved to the same
// self-reported address first). The newer, canonically-named record wins;
// the seed-keyed duplicate is dropped. If no collision exists, the server
// is simply re-keyed from seedKey to canonical.
func (c *Cluster) Reconcile(seedKey, canonical connection.Address) {
	seedKey = seedKey.Canonicalize()
	canonical = canonical.Canonicalize()
	if seedKey == canonical {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seedSrv, hasSeed := c.servers[seedKey]
	if !hasSeed {
		return
	}
	if existing, ok := c.servers[canonical]; ok && existing != seedSrv {
		delete(c.servers, seedKey)
		c.log.InfoC(logger.ComponentCluster, "collapsed duplicate seed server",
			"seed", string(seedKey), "canonical", string(canonical))
		return
	}
	delete(c.servers, seedKey)
	c.servers[canonical] = seedSrv
}

// Servers returns a snapshot of every tracked server.
func (c *Cluster) Servers() []*server.Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*server.Server, 0, len(c.servers))
	for _, s := range c.servers {
		out = append(out, s)
	}
	return out
}

// Lookup returns the server tracked under the given address, if any.
func (c *Cluster) Lookup(addr connection.Address) (*server.Server, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.servers[addr.Canonicalize()]
	return s, ok
}

// Select returns the address and server of the first tracked server
// satisfying pred. Map iteration order is randomized per Go's spec, which
// gives this a cheap, even spread across eligible servers without an
// explicit round-robin cursor.
func (c *Cluster) Select(pred func(*server.Server) bool) (connection.Address, *server.Server, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for addr, s := range c.servers {
		if pred(s) {
			return addr, s, true
		}
	}
	return "", nil, false
}

// ReconnectStrategy returns the strategy the cluster's factory has on file
// for its current kind.
func (c *Cluster) ReconnectStrategy() ReconnectStrategy {
	return c.strategyFactory(c.Kind())
}
