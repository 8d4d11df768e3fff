// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package pool implements the connection pool / client: the policy for
// picking a connection per outgoing message, the creation cap, shrinking on
// reconfigure, and the async reconnect coordination described in the
// wire-protocol client's concurrency model.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lucidfield/docdb/cluster"
	"github.com/lucidfield/docdb/connection"
	"github.com/lucidfield/docdb/internal/logger"
	"github.com/lucidfield/docdb/server"
	"github.com/lucidfield/docdb/wire"
	"github.com/lucidfield/docdb/xerr"
)

// Factory dials a new connection to addr on behalf of srv. The pool calls
// this both to grow and to reconnect; it never dials directly.
type Factory func(ctx context.Context, addr connection.Address, srv *server.Server) (*connection.Connection, error)

type slot struct {
	conn *connection.Connection
	srv  *server.Server
}

// Pool multiplexes messages across a capped set of connections spanning
// every server the given cluster tracks, routing each message to a
// connection whose server satisfies the message's read preference.
type Pool struct {
	cfg     *config
	cluster *cluster.Cluster
	factory Factory
	log     *logger.Logger

	slotsV atomic.Value // []*slot, copy-on-write snapshot
	seq    uint64

	growSem *semaphore.Weighted

	reconMu       sync.Mutex
	reconCond     *sync.Cond
	reconInFlight int

	maxConnections int32

	closed int32
}

// New constructs a Pool over cl with no open connections; connections are
// created lazily as Send's pick ladder grows the pool.
func New(cl *cluster.Cluster, factory Factory, opts ...Option) *Pool {
	cfg := newConfig(opts...)
	p := &Pool{
		cfg:            cfg,
		cluster:        cl,
		factory:        factory,
		log:            cfg.logger,
		growSem:        semaphore.NewWeighted(1),
		maxConnections: cfg.maxConnections,
	}
	p.reconCond = sync.NewCond(&p.reconMu)
	p.slotsV.Store([]*slot{})
	return p
}

func (p *Pool) snapshot() []*slot {
	return p.slotsV.Load().([]*slot)
}

// appendSlot adds s to the rotation under the copy-on-write snapshot
// discipline: mutation always replaces the whole slice.
func (p *Pool) appendSlot(s *slot) {
	for {
		old := p.snapshot()
		next := make([]*slot, len(old)+1)
		copy(next, old)
		next[len(old)] = s
		if p.slotsV.CompareAndSwap(old, next) {
			return
		}
	}
}

func (p *Pool) removeSlot(target *slot) {
	for {
		old := p.snapshot()
		next := make([]*slot, 0, len(old))
		found := false
		for _, s := range old {
			if s == target {
				found = true
				continue
			}
			next = append(next, s)
		}
		if !found {
			return
		}
		if p.slotsV.CompareAndSwap(old, next) {
			return
		}
	}
}

// Count returns the number of connections currently in the pool's
// rotation. Connections draining after a shrink have already left the
// rotation and are not counted.
func (p *Pool) Count() int { return len(p.snapshot()) }

// MaxConnections returns the pool's current connection cap.
func (p *Pool) MaxConnections() int32 { return atomic.LoadInt32(&p.maxConnections) }

// SetMaxConnections clamps n to >= 1 and, if it is lower than the current
// count, marks the oldest excess connections for graceful shutdown. They
// keep serving in-flight replies until drained; the rotation stops handing
// them new work immediately.
func (p *Pool) SetMaxConnections(n int32) {
	if n < 1 {
		n = 1
	}
	atomic.StoreInt32(&p.maxConnections, n)
	p.shrinkIfNeeded()
}

func (p *Pool) shrinkIfNeeded() {
	max := atomic.LoadInt32(&p.maxConnections)
	old := p.snapshot()
	if int32(len(old)) <= max {
		return
	}
	excessCount := int32(len(old)) - max
	excess := old[:excessCount]
	kept := old[excessCount:]
	if !p.slotsV.CompareAndSwap(old, append([]*slot{}, kept...)) {
		// another mutation raced us; let the next Send's clamp retry.
		return
	}
	for _, s := range excess {
		s := s
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.drainTimeout)
			defer cancel()
			p.log.InfoC(logger.ComponentPool, "draining excess connection on shrink", "conn", s.conn.ID())
			_ = s.conn.Shutdown(ctx)
		}()
	}
}

// Send picks a connection per the pick ladder (idle scan, grow,
// least-loaded, wait-for-reconnect) and dispatches msg to it. cb fires on
// that connection's reader goroutine.
func (p *Pool) Send(ctx context.Context, msg wire.Message, pref ReadPreference, cb connection.Callback) error {
	s, err := p.pick(ctx, pref)
	if err != nil {
		if cb != nil {
			cb(nil, err)
		}
		return err
	}
	if err := wire.ValidateSize(msg, s.srv.MaxBSONObjectSize()); err != nil {
		if cb != nil {
			cb(nil, err)
		}
		return err
	}
	return s.conn.Send(msg, cb)
}

// SendPaired picks one connection and dispatches both messages to it in
// order. It exists for the pairs that must share a socket: a query whose
// follow-up (a getMore against the cursor it opens) is only valid on the
// connection that ran the query.
func (p *Pool) SendPaired(ctx context.Context, msg1, msg2 wire.Message, pref ReadPreference, cb1, cb2 connection.Callback) error {
	s, err := p.pick(ctx, pref)
	if err != nil {
		if cb1 != nil {
			cb1(nil, err)
		}
		if cb2 != nil {
			cb2(nil, err)
		}
		return err
	}
	for _, m := range []wire.Message{msg1, msg2} {
		if err := wire.ValidateSize(m, s.srv.MaxBSONObjectSize()); err != nil {
			if cb1 != nil {
				cb1(nil, err)
			}
			if cb2 != nil {
				cb2(nil, err)
			}
			return err
		}
	}
	if err := s.conn.Send(msg1, cb1); err != nil {
		if cb2 != nil {
			cb2(nil, err)
		}
		return err
	}
	return s.conn.Send(msg2, cb2)
}

func (p *Pool) pick(ctx context.Context, pref ReadPreference) (*slot, error) {
	for {
		// step 1 of the ladder: re-apply the clamp so a lowered cap
		// converges within this send cycle even if an earlier shrink raced.
		p.shrinkIfNeeded()

		pred := eligible(pref, p.cluster.Servers())

		if s := p.idleScan(pref, pred); s != nil {
			return s, nil
		}

		if s, grew := p.grow(ctx, pred); grew {
			return s, nil
		}

		if s := p.leastLoaded(pred); s != nil {
			return s, nil
		}

		waited, err := p.waitForReconnect(ctx)
		if err != nil {
			return nil, err
		}
		if !waited {
			return nil, xerr.New(xerr.CannotConnect, "no eligible server and no reconnect in flight")
		}
		// a reconnect completed while we waited; restart the ladder at (a).
	}
}

// idleScan samples up to idleScanCount connections by a shared atomic
// sequence and returns the first idle, unexpired, eligible one -- except
// under Nearest, where it scans the whole sample and returns the lowest-
// latency match instead of stopping at the first.
func (p *Pool) idleScan(pref ReadPreference, pred func(*server.Server) bool) *slot {
	slots := p.snapshot()
	n := len(slots)
	if n == 0 {
		return nil
	}
	scan := p.cfg.idleScanCount
	if scan > n {
		scan = n
	}

	var best *slot
	bestLatency := -1.0
	for i := 0; i < scan; i++ {
		s := slots[p.nextIndex(n)]
		if s.conn.PendingCount() != 0 || s.conn.Expired() || !pred(s.srv) {
			continue
		}
		if pref.Mode != Nearest {
			return s
		}
		lat := s.srv.LatencyMs()
		if best == nil || lat < bestLatency {
			best, bestLatency = s, lat
		}
	}
	return best
}

func (p *Pool) nextIndex(n int) int {
	return int(atomic.AddUint64(&p.seq, 1)-1) % n
}

// grow creates one new connection, under a non-blocking pool-level lock, if
// the pool has room and an eligible server to dial. If the lock is already
// held (another Send is growing) or the factory fails, grow reports false
// so the ladder falls through to the next step.
func (p *Pool) grow(ctx context.Context, pred func(*server.Server) bool) (*slot, bool) {
	if int32(p.Count()) >= p.MaxConnections() {
		return nil, false
	}
	if !p.growSem.TryAcquire(1) {
		return nil, false
	}
	defer p.growSem.Release(1)

	if int32(p.Count()) >= p.MaxConnections() {
		return nil, false
	}

	addr, srv, ok := p.cluster.Select(pred)
	if !ok {
		return nil, false
	}

	conn, err := p.factory(ctx, addr, srv)
	if err != nil {
		p.log.InfoC(logger.ComponentPool, "connection factory failed during grow", "addr", string(addr), "err", err.Error())
		return nil, false
	}

	s := &slot{conn: conn, srv: srv}
	p.appendSlot(s)
	p.watchForClose(s)
	return s, true
}

// leastLoaded re-scans up to idleScanCount connections and returns the
// eligible one with the lowest pendingCount, or nil if none in the sample
// are eligible.
func (p *Pool) leastLoaded(pred func(*server.Server) bool) *slot {
	slots := p.snapshot()
	n := len(slots)
	if n == 0 {
		return nil
	}
	scan := p.cfg.idleScanCount
	if scan > n {
		scan = n
	}

	var best *slot
	bestPending := -1
	for i := 0; i < scan; i++ {
		s := slots[p.nextIndex(n)]
		if !pred(s.srv) {
			continue
		}
		pc := s.conn.PendingCount()
		if best == nil || pc < bestPending {
			best, bestPending = s, pc
		}
	}
	return best
}

// waitForReconnect blocks until a reconnect attempt in flight completes or
// ctx/reconnectTimeout elapses, whichever comes first. It reports false
// without waiting at all if no reconnect is currently in flight, since
// there is nothing to wait for.
func (p *Pool) waitForReconnect(ctx context.Context) (waited bool, err error) {
	p.reconMu.Lock()
	if p.reconInFlight == 0 {
		p.reconMu.Unlock()
		return false, nil
	}

	done := make(chan struct{})
	go func() {
		p.reconMu.Lock()
		for p.reconInFlight > 0 {
			p.reconCond.Wait()
		}
		p.reconMu.Unlock()
		close(done)
	}()
	p.reconMu.Unlock()

	timer := time.NewTimer(p.cfg.reconnectTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return true, nil
	case <-timer.C:
		return false, xerr.New(xerr.CannotConnect, "timed out waiting for reconnect")
	case <-ctx.Done():
		return false, xerr.Wrap(xerr.CannotConnect, "context done while waiting for reconnect", ctx.Err())
	}
}

// watchForClose subscribes to s.conn's open property and, on closure,
// removes it from rotation and launches a reconnect attempt against the
// same server under the cluster's reconnect strategy.
func (p *Pool) watchForClose(s *slot) {
	events, _ := s.conn.Subscribe()
	go func() {
		<-events
		p.removeSlot(s)
		if atomic.LoadInt32(&p.closed) == 1 {
			return
		}
		p.reconnect(s)
	}()
}

func (p *Pool) reconnect(lost *slot) {
	p.reconMu.Lock()
	p.reconInFlight++
	p.reconMu.Unlock()
	defer func() {
		p.reconMu.Lock()
		p.reconInFlight--
		p.reconCond.Broadcast()
		p.reconMu.Unlock()
	}()

	strategy := p.cluster.ReconnectStrategy()
	delay := strategy.NextDelay(0)
	if delay > 0 {
		time.Sleep(delay)
	}

	if atomic.LoadInt32(&p.closed) == 1 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.reconnectTimeout)
	defer cancel()

	conn, err := p.factory(ctx, lost.conn.Address(), lost.srv)
	if err != nil {
		p.log.InfoC(logger.ComponentPool, "reconnect attempt failed", "addr", string(lost.conn.Address()), "err", err.Error())
		return
	}
	s := &slot{conn: conn, srv: lost.srv}
	p.appendSlot(s)
	p.watchForClose(s)
}

// Close hard-closes every connection in the pool. Safe to call once; the
// pool does not attempt to reconnect any connection closed this way.
func (p *Pool) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}
	for _, s := range p.snapshot() {
		_ = s.conn.Close()
	}
	p.slotsV.Store([]*slot{})
}
