// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package monitor drives the periodic status probes that feed the server
// and cluster state machines: it dials its own heartbeat connection per
// tracked server, runs isMaster (plus replSetGetStatus and, on cadence,
// buildInfo), and folds the results into the server's fields and the
// cluster's membership.
package monitor

import (
	"context"
	"time"

	"github.com/lucidfield/docdb/bson"
	"github.com/lucidfield/docdb/cluster"
	"github.com/lucidfield/docdb/connection"
	"github.com/lucidfield/docdb/internal/logger"
	"github.com/lucidfield/docdb/server"
)

// Dialer opens a dedicated heartbeat connection to addr. Production callers
// pass connection.New bound to a short read/write timeout; tests pass a
// fake.
type Dialer func(ctx context.Context, addr connection.Address) (*connection.Connection, error)

// Monitor periodically probes every server a Cluster tracks, including
// servers discovered after startup.
type Monitor struct {
	cl       *cluster.Cluster
	dial     Dialer
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger

	stop chan struct{}
}

// New constructs a Monitor. Call Run to start probing in the background.
func New(cl *cluster.Cluster, dial Dialer, opts ...Option) *Monitor {
	cfg := newConfig(opts...)
	return &Monitor{
		cl:       cl,
		dial:     dial,
		interval: cfg.interval,
		timeout:  cfg.timeout,
		log:      cfg.logger,
		stop:     make(chan struct{}),
	}
}

// Run probes every tracked server once immediately, then again every
// interval, until ctx is done or Stop is called.
func (m *Monitor) Run(ctx context.Context) {
	m.probeAll(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

// Stop ends a running Monitor's loop.
func (m *Monitor) Stop() { close(m.stop) }

func (m *Monitor) probeAll(ctx context.Context) {
	for _, srv := range m.cl.Servers() {
		srv := srv
		go m.probeOne(ctx, srv)
	}
}

func (m *Monitor) probeOne(ctx context.Context, srv *server.Server) {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	addr := connection.Address(srv.Address())
	start := time.Now()
	conn, err := m.dial(pctx, addr)
	if err != nil {
		m.log.InfoC(logger.ComponentCluster, "status probe dial failed", "addr", string(addr), "err", err.Error())
		return
	}
	defer conn.Close()

	imReply, err := connection.ExecuteCommand(pctx, conn, "admin", isMasterCommand())
	if err != nil {
		m.log.InfoC(logger.ComponentCluster, "isMaster probe failed", "addr", string(addr), "err", err.Error())
		return
	}
	elapsedMs := float64(time.Since(start).Nanoseconds()) / 1e6
	if len(imReply.Documents) != 1 {
		return
	}
	im := server.ParseIsMaster(imReply.Documents[0])

	var rs *server.ReplSetStatusResult
	if im.SetName != "" {
		if rsReply, err := connection.ExecuteCommand(pctx, conn, "admin", replSetGetStatusCommand()); err == nil && len(rsReply.Documents) == 1 {
			parsed := server.ParseReplSetStatus(rsReply.Documents[0])
			rs = &parsed
		}
	}

	var bi *server.BuildInfoResult
	if srv.ShouldProbeVersion(time.Now()) {
		if biReply, err := connection.ExecuteCommand(pctx, conn, "admin", buildInfoCommand()); err == nil && len(biReply.Documents) == 1 {
			parsed := server.ParseBuildInfo(biReply.Documents[0])
			bi = &parsed
		}
	}

	srv.ApplyProbe(im, rs, bi, time.Now())
	srv.RecordLatency(elapsedMs)

	if len(im.Hosts) > 0 {
		m.cl.Discover(im.Hosts)
	}
	if im.Me != "" {
		m.cl.Reconcile(connection.Address(srv.Address()), connection.Address(im.Me))
	}
}

func isMasterCommand() bson.Document {
	return bson.NewDocument(bson.NewElement("isMaster", bson.Int32(1)))
}

func replSetGetStatusCommand() bson.Document {
	return bson.NewDocument(bson.NewElement("replSetGetStatus", bson.Int32(1)))
}

func buildInfoCommand() bson.Document {
	return bson.NewDocument(bson.NewElement("buildInfo", bson.Int32(1)))
}
