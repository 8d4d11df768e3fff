// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lucidfield/docdb/internal/logger"
	"github.com/lucidfield/docdb/wire"
	"github.com/lucidfield/docdb/xerr"
)

// Callback receives the decoded reply for a request, or the error that
// prevented one from arriving. It is invoked on the connection's reader
// goroutine and must not block.
type Callback func(wire.Message, error)

// HandshakeResult carries what a Handshaker learned about the server while
// establishing the connection, before it enters the pool's rotation.
type HandshakeResult struct {
	Compression []string
}

// Handshaker runs a negotiated command sequence (status probe, optional
// authentication) over a fresh connection and reports what it learned. It
// is the pluggable contract named in the external-interfaces section: the
// core invokes it but does not implement every mechanism itself.
type Handshaker interface {
	Handshake(ctx context.Context, addr Address, rw *Connection) (HandshakeResult, error)
}

type outboundMsg struct {
	msg       wire.Message
	requestID int32
}

// Connection owns one TCP socket to one server. It accepts messages with
// their callbacks, writes framed messages on its own writer goroutine, and
// dispatches decoded replies to the waiting callback on its own reader
// goroutine.
type Connection struct {
	addr Address
	id   string
	nc   net.Conn
	cfg  *config
	log  *logger.Logger

	requestID int32

	pendingMu sync.Mutex
	pending   map[int32]Callback

	outbound chan outboundMsg

	dead     int32
	draining int32

	compressor Compressor

	subMu   sync.Mutex
	subs    map[int]chan bool
	nextSub int

	closedOnce sync.Once
	closedCh   chan struct{}

	idleDeadline     time.Time
	idleDeadlineMu   sync.Mutex
	lifetimeDeadline time.Time
}

var globalConnID uint64

func nextConnID() uint64 { return atomic.AddUint64(&globalConnID, 1) }

// New dials addr, optionally negotiates TLS, and optionally runs a
// handshake before starting the connection's reader and writer goroutines.
func New(ctx context.Context, addr Address, h Handshaker, opts ...Option) (*Connection, *HandshakeResult, error) {
	cfg := newConfig(opts...)

	nc, err := cfg.dialer.DialContext(ctx, addr.Network(), string(addr))
	if err != nil {
		return nil, nil, xerr.Wrap(xerr.CannotConnect, "dial failed", err)
	}

	if cfg.tlsConfig != nil {
		nc, err = configureTLS(ctx, nc, cfg.tlsConfig)
		if err != nil {
			return nil, nil, xerr.Wrap(xerr.CannotConnect, "TLS handshake failed", err)
		}
	}

	now := time.Now()
	c := &Connection{
		addr:     addr,
		id:       string(addr) + "[-" + itoa(nextConnID()) + "]",
		nc:       nc,
		cfg:      cfg,
		log:      cfg.logger,
		pending:  make(map[int32]Callback),
		outbound: make(chan outboundMsg, cfg.outboundSize),
		subs:     make(map[int]chan bool),
		closedCh: make(chan struct{}),
	}
	if cfg.idleTimeout > 0 {
		c.idleDeadline = now.Add(cfg.idleTimeout)
	}
	if cfg.lifetime > 0 {
		c.lifetimeDeadline = now.Add(cfg.lifetime)
	}

	go c.runWriter()
	go c.runReader()

	var result HandshakeResult
	if h != nil {
		result, err = h.Handshake(ctx, addr, c)
		if err != nil {
			c.Close()
			return nil, nil, xerr.Wrap(xerr.AuthFailed, "handshake failed", err)
		}
		// Compression only takes effect on the next message sent; every
		// handshake message itself travels uncompressed, since the
		// compressor is chosen only after the handshake has returned.
		c.compressor = pickCompressor(cfg.compressors, result.Compression)
	}

	return c, &result, nil
}

func itoa(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[pos:])
}

// ID returns a string uniquely identifying this connection for logs.
func (c *Connection) ID() string { return c.id }

// Address returns the server address this connection was dialed against.
func (c *Connection) Address() Address { return c.addr }

// IsOpen reports whether the connection can still accept new messages.
func (c *Connection) IsOpen() bool {
	return atomic.LoadInt32(&c.dead) == 0 && atomic.LoadInt32(&c.draining) == 0
}

// Expired reports whether the connection has outlived its idle or lifetime
// deadline and should not be reused by the pool's idle scan.
func (c *Connection) Expired() bool {
	now := time.Now()
	c.idleDeadlineMu.Lock()
	idle := c.idleDeadline
	c.idleDeadlineMu.Unlock()
	if !idle.IsZero() && now.After(idle) {
		return true
	}
	if !c.lifetimeDeadline.IsZero() && now.After(c.lifetimeDeadline) {
		return true
	}
	return atomic.LoadInt32(&c.dead) == 1
}

func (c *Connection) bumpIdleDeadline() {
	if c.cfg.idleTimeout <= 0 {
		return
	}
	c.idleDeadlineMu.Lock()
	c.idleDeadline = time.Now().Add(c.cfg.idleTimeout)
	c.idleDeadlineMu.Unlock()
}

// PendingCount returns the number of in-flight messages awaiting a reply.
func (c *Connection) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

// nextRequestID returns the next non-zero request id, wrapping past
// int32 overflow but always skipping zero.
func (c *Connection) nextRequestID() int32 {
	for {
		id := atomic.AddInt32(&c.requestID, 1)
		if id != 0 {
			return id
		}
	}
}

// Send assigns a request-id to msg, registers cb to receive its reply, and
// enqueues the message on the write path. If the connection is closed or
// draining, cb is invoked immediately with a connection-closed error; a
// message whose documents would not encode cleanly fails with invalid-name
// here, before any bytes are written, so a half-encoded frame never reaches
// the socket.
func (c *Connection) Send(msg wire.Message, cb Callback) error {
	if !c.IsOpen() {
		err := xerr.New(xerr.ConnectionClosed, "connection "+c.id+" is closed")
		if cb != nil {
			cb(nil, err)
		}
		return err
	}
	if err := msg.Validate(); err != nil {
		if cb != nil {
			cb(nil, err)
		}
		return err
	}

	id := c.nextRequestID()
	c.pendingMu.Lock()
	c.pending[id] = cb
	c.pendingMu.Unlock()

	select {
	case c.outbound <- outboundMsg{msg: msg, requestID: id}:
		return nil
	case <-c.closedCh:
		// The close sweep may have already failed this callback; only fire
		// it here if the entry is still ours.
		c.pendingMu.Lock()
		_, mine := c.pending[id]
		delete(c.pending, id)
		c.pendingMu.Unlock()
		err := xerr.New(xerr.ConnectionLost, "connection "+c.id+" closed before write")
		if mine && cb != nil {
			cb(nil, err)
		}
		return err
	}
}

func (c *Connection) runWriter() {
	buf := make([]byte, 0, 256)
	for {
		var m outboundMsg
		select {
		case m = <-c.outbound:
		case <-c.closedCh:
			return
		}

		buf = buf[:0]
		deadline := c.writeDeadline()
		if err := c.nc.SetWriteDeadline(deadline); err != nil {
			c.failAndClose(xerr.Wrap(xerr.ConnectionLost, "failed to set write deadline", err))
			return
		}

		wireMsg := m.msg
		if c.compressor != nil {
			if compressed, ok := c.tryCompress(m.msg, m.requestID); ok {
				wireMsg = compressed
			}
		}

		buf = wireMsg.Append(buf, m.requestID, 0)
		if _, err := c.nc.Write(buf); err != nil {
			c.failAndClose(xerr.Wrap(xerr.ConnectionLost, "write failed", err))
			return
		}
		c.bumpIdleDeadline()
	}
}

func (c *Connection) writeDeadline() time.Time {
	if c.cfg.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.cfg.writeTimeout)
}

func (c *Connection) readDeadline() time.Time {
	if c.cfg.readTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.cfg.readTimeout)
}

func (c *Connection) runReader() {
	for {
		hdr, body, err := c.readFrame()
		if err != nil {
			c.failAndClose(err)
			return
		}

		opcode := hdr.OpCode
		if opcode == wire.OpCompressed {
			uncompressedHdr, uncompressedBody, decErr := c.decompressFrame(hdr, body)
			if decErr != nil {
				c.failAndClose(decErr)
				return
			}
			hdr, body = uncompressedHdr, uncompressedBody
			opcode = hdr.OpCode
		}

		if opcode != wire.OpReply {
			c.failAndClose(xerr.New(xerr.DecodeFailure, "unexpected opcode on read: "+opcode.String()))
			return
		}

		full := append(hdr.Append(nil), body...)
		msg, err := wire.ReadMessage(full)
		if err != nil {
			c.failAndClose(err)
			return
		}
		c.bumpIdleDeadline()
		c.dispatch(hdr.ResponseTo, msg, nil)
	}
}

func (c *Connection) readFrame() (wire.Header, []byte, error) {
	if err := c.nc.SetReadDeadline(c.readDeadline()); err != nil {
		return wire.Header{}, nil, xerr.Wrap(xerr.ConnectionLost, "failed to set read deadline", err)
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(c.nc, sizeBuf[:]); err != nil {
		return wire.Header{}, nil, xerr.Wrap(xerr.ConnectionLost, "failed to read message length", err)
	}
	size := int32(sizeBuf[0]) | int32(sizeBuf[1])<<8 | int32(sizeBuf[2])<<16 | int32(sizeBuf[3])<<24
	if size < int32(wire.HeaderLength) {
		return wire.Header{}, nil, xerr.New(xerr.DecodeFailure, "message length smaller than header")
	}

	rest := make([]byte, size-4)
	if _, err := io.ReadFull(c.nc, rest); err != nil {
		return wire.Header{}, nil, xerr.Wrap(xerr.ConnectionLost, "failed to read full message", err)
	}

	full := append(sizeBuf[:], rest...)
	hdr, err := wire.ReadHeader(full)
	if err != nil {
		return wire.Header{}, nil, err
	}
	return hdr, full[wire.HeaderLength:], nil
}

func (c *Connection) dispatch(responseTo int32, msg wire.Message, err error) {
	c.pendingMu.Lock()
	cb, ok := c.pending[responseTo]
	if ok {
		delete(c.pending, responseTo)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.log.InfoC(logger.ComponentConnection, "orphaned reply", "responseTo", responseTo)
		return
	}
	if cb != nil {
		cb(msg, err)
	}
}

// failAndClose is invoked from the reader or writer goroutine when the
// socket itself has failed; it closes the connection and fails every
// pending callback.
func (c *Connection) failAndClose(err error) {
	c.log.InfoC(logger.ComponentConnection, "connection failed", "id", c.id, "error", err)
	c.Close()
}

// Shutdown refuses new messages and waits for in-flight replies to drain,
// or for ctx to expire, whichever comes first, before hard-closing.
func (c *Connection) Shutdown(ctx context.Context) error {
	atomic.StoreInt32(&c.draining, 1)

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.PendingCount() == 0 {
			return c.Close()
		}
		select {
		case <-ctx.Done():
			return c.Close()
		case <-ticker.C:
		}
	}
}

// Close hard-closes the connection, synthesizing a connection-lost failure
// on every pending callback, and publishes an open=false event to
// subscribers.
func (c *Connection) Close() error {
	var closeErr error
	c.closedOnce.Do(func() {
		atomic.StoreInt32(&c.dead, 1)
		close(c.closedCh)
		closeErr = c.nc.Close()

		c.pendingMu.Lock()
		pending := c.pending
		c.pending = make(map[int32]Callback)
		c.pendingMu.Unlock()

		lost := xerr.New(xerr.ConnectionLost, "connection "+c.id+" closed")
		for _, cb := range pending {
			if cb != nil {
				cb(nil, lost)
			}
		}

		c.publishOpen(false)
	})
	return closeErr
}

// WaitForClosed blocks until the connection has closed or timeout elapses,
// reporting which happened.
func (c *Connection) WaitForClosed(timeout time.Duration) bool {
	select {
	case <-c.closedCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Subscribe returns a channel that receives a single `false` value when the
// connection's open property transitions to closed, and a function to
// cancel the subscription.
func (c *Connection) Subscribe() (<-chan bool, func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan bool, 1)
	c.subs[id] = ch
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
	return ch, cancel
}

func (c *Connection) publishOpen(open bool) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- open:
		default:
		}
	}
}
