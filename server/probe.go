// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package server

import (
	"math"
	"time"

	"github.com/lucidfield/docdb/bson"
)

// IsMasterResult is the parsed reply to the isMaster status probe.
type IsMasterResult struct {
	IsMaster          bool
	Secondary         bool
	Me                string
	Tags              bson.Document
	MaxBSONObjectSize int32
	MaxWriteBatchSize int32
	MinWireVersion    int32
	MaxWireVersion    int32
	Hosts             []string
	SetName           string
}

// ParseIsMaster extracts the fields this package cares about from a raw
// isMaster reply document. Fields the server omitted keep their zero value;
// missing size caps are left for the caller to default.
func ParseIsMaster(doc bson.Document) IsMasterResult {
	var r IsMasterResult
	if e, ok := doc.Lookup("ismaster"); ok {
		r.IsMaster = e.Value.Bool()
	}
	if e, ok := doc.Lookup("secondary"); ok {
		r.Secondary = e.Value.Bool()
	}
	if e, ok := doc.Lookup("me"); ok {
		r.Me = e.Value.StringValue()
	}
	if e, ok := doc.Lookup("tags"); ok && e.Value.Type() == bson.TypeDocument {
		r.Tags = e.Value.Document()
	}
	if e, ok := doc.Lookup("maxBsonObjectSize"); ok {
		r.MaxBSONObjectSize = asInt32(e.Value)
	}
	if e, ok := doc.Lookup("maxWriteBatchSize"); ok {
		r.MaxWriteBatchSize = asInt32(e.Value)
	}
	if e, ok := doc.Lookup("minWireVersion"); ok {
		r.MinWireVersion = asInt32(e.Value)
	}
	if e, ok := doc.Lookup("maxWireVersion"); ok {
		r.MaxWireVersion = asInt32(e.Value)
	}
	if e, ok := doc.Lookup("setName"); ok {
		r.SetName = e.Value.StringValue()
	}
	if e, ok := doc.Lookup("hosts"); ok && e.Value.Type() == bson.TypeArray {
		arr := e.Value.Document()
		for _, el := range arr.Elements() {
			r.Hosts = append(r.Hosts, el.Value.StringValue())
		}
	}
	return r
}

// ReplSetMember is one entry in a replSetGetStatus reply's members array.
type ReplSetMember struct {
	Name          string
	State         int32
	Self          bool
	OptimeSeconds float64
}

// ReplSetStatusResult is the parsed reply to the replSetGetStatus probe.
type ReplSetStatusResult struct {
	MyState int32
	Members []ReplSetMember
}

// ParseReplSetStatus extracts myState and the members array from a raw
// replSetGetStatus reply document.
func ParseReplSetStatus(doc bson.Document) ReplSetStatusResult {
	var r ReplSetStatusResult
	if e, ok := doc.Lookup("myState"); ok {
		r.MyState = asInt32(e.Value)
	}
	e, ok := doc.Lookup("members")
	if !ok || e.Value.Type() != bson.TypeArray {
		return r
	}
	for _, el := range e.Value.Document().Elements() {
		if el.Value.Type() != bson.TypeDocument {
			continue
		}
		m := el.Value.Document()
		member := ReplSetMember{}
		if f, ok := m.Lookup("name"); ok {
			member.Name = f.Value.StringValue()
		}
		if f, ok := m.Lookup("state"); ok {
			member.State = asInt32(f.Value)
		}
		if f, ok := m.Lookup("self"); ok {
			member.Self = f.Value.Bool()
		}
		if f, ok := m.Lookup("optimeDate"); ok && f.Value.Type() == bson.TypeDateTime {
			member.OptimeSeconds = float64(f.Value.Int64Value()) / 1000
		}
		r.Members = append(r.Members, member)
	}
	return r
}

// BuildInfoResult is the parsed reply to the buildInfo probe.
type BuildInfoResult struct {
	Version string
}

// ParseBuildInfo extracts the version string from a raw buildInfo reply.
func ParseBuildInfo(doc bson.Document) BuildInfoResult {
	var r BuildInfoResult
	if e, ok := doc.Lookup("version"); ok {
		r.Version = e.Value.StringValue()
	}
	return r
}

func asInt32(v bson.Value) int32 {
	switch v.Type() {
	case bson.TypeInt32:
		return v.Int32Value()
	case bson.TypeInt64:
		return int32(v.Int64Value())
	case bson.TypeDouble:
		return int32(v.AsFloat64())
	default:
		return 0
	}
}

// ApplyProbe folds a status-probe round into the server's fields, updating
// role, lag, tags, canonical name, version, and size caps in that order,
// each firing a typed Event on real change. rs and bi are nil when that
// probe was not sent this round.
func (s *Server) ApplyProbe(im IsMasterResult, rs *ReplSetStatusResult, bi *BuildInfoResult, now time.Time) {
	s.applyRole(im, rs)
	s.applyTags(im)
	s.applyCanonicalName(im)
	if bi != nil {
		s.applyVersion(*bi, now)
	} else if im.MaxWireVersion > 0 {
		s.floorVersionFromWireVersion(im.MaxWireVersion)
	}
	s.applySizeCaps(im)
}

func (s *Server) applyRole(im IsMasterResult, rs *ReplSetStatusResult) {
	var newRole Role
	var newLag float64

	switch {
	case rs != nil:
		switch rs.MyState {
		case 1:
			newRole, newLag = RoleWritable, 0
		case 2:
			newRole, newLag = RoleReadOnly, lagFromMembers(rs.Members)
		default:
			newRole, newLag = RoleUnavailable, math.Inf(1)
		}
	case im.IsMaster:
		newRole, newLag = RoleWritable, 0
	case im.Secondary:
		newRole, newLag = RoleReadOnly, 0
	default:
		newRole, newLag = RoleUnavailable, math.Inf(1)
	}

	s.mu.Lock()
	oldRole, oldLag := s.role, s.lagSeconds
	s.role, s.lagSeconds = newRole, newLag
	s.mu.Unlock()

	if oldRole != newRole {
		s.publish("role", oldRole, newRole)
	}
	if oldLag != newLag {
		s.publish("lag", oldLag, newLag)
	}
}

// lagFromMembers computes the self member's lag as the maximum optime
// across all members minus the self member's optime.
func lagFromMembers(members []ReplSetMember) float64 {
	var maxOptime, selfOptime float64
	var haveSelf bool
	for _, m := range members {
		if m.OptimeSeconds > maxOptime {
			maxOptime = m.OptimeSeconds
		}
		if m.Self {
			selfOptime = m.OptimeSeconds
			haveSelf = true
		}
	}
	if !haveSelf {
		return math.Inf(1)
	}
	lag := maxOptime - selfOptime
	if lag < 0 {
		return 0
	}
	return lag
}

func (s *Server) applyTags(im IsMasterResult) {
	s.mu.Lock()
	old := s.tags
	s.tags = im.Tags
	s.mu.Unlock()
	if !old.Equal(im.Tags) {
		s.publish("tags", old, im.Tags)
	}
}

func (s *Server) applyCanonicalName(im IsMasterResult) {
	if im.Me == "" {
		return
	}
	s.mu.Lock()
	old := s.canonicalAddr
	s.canonicalAddr = im.Me
	s.mu.Unlock()
	if old != im.Me {
		s.publish("canonicalAddr", old, im.Me)
	}
}

func (s *Server) applySizeCaps(im IsMasterResult) {
	s.mu.Lock()
	oldSize, oldOps := s.maxBSONObjectSize, s.maxBatchedWriteOps
	if im.MaxBSONObjectSize > 0 {
		s.maxBSONObjectSize = im.MaxBSONObjectSize
	}
	if im.MaxWriteBatchSize > 0 {
		s.maxBatchedWriteOps = im.MaxWriteBatchSize
	}
	newSize, newOps := s.maxBSONObjectSize, s.maxBatchedWriteOps
	s.mu.Unlock()
	if oldSize != newSize {
		s.publish("maxBSONObjectSize", oldSize, newSize)
	}
	if oldOps != newOps {
		s.publish("maxBatchedWriteOps", oldOps, newOps)
	}
}

func (s *Server) applyVersion(bi BuildInfoResult, now time.Time) {
	if bi.Version == "" {
		return
	}
	s.mu.Lock()
	old := s.version
	s.version = bi.Version
	s.versionKnown = true
	s.lastVersionProbe = now
	s.mu.Unlock()
	if old != bi.Version {
		s.publish("version", old, bi.Version)
	}
}

// floorVersionFromWireVersion records a lower-confidence version estimate
// from the wire-version range when buildInfo has not been probed yet. It
// never overwrites a precisely known version.
func (s *Server) floorVersionFromWireVersion(maxWireVersion int32) {
	s.mu.Lock()
	if s.versionKnown {
		s.mu.Unlock()
		return
	}
	old := s.version
	s.version = wireVersionFloor(maxWireVersion)
	newVersion := s.version
	s.mu.Unlock()
	if old != newVersion {
		s.publish("version", old, newVersion)
	}
}

func wireVersionFloor(maxWireVersion int32) string {
	switch {
	case maxWireVersion >= 8:
		return ">=4.2"
	case maxWireVersion >= 7:
		return ">=4.0"
	case maxWireVersion >= 6:
		return ">=3.6"
	case maxWireVersion >= 5:
		return ">=3.4"
	case maxWireVersion >= 4:
		return ">=3.2"
	default:
		return "unknown"
	}
}
