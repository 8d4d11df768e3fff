// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package xerr defines the client's error kinds. Every error the driver
// surfaces to a caller is tagged with one of these kinds and wraps its
// cause under a stable message, so callers can branch on kind with
// errors.As instead of string-matching messages.
package xerr

import "fmt"

// Kind tags an Error with the condition that produced it.
type Kind string

// The error kinds raised by the core, per the wire-protocol client's error
// handling design.
const (
	ConnectionLost   Kind = "connection-lost"
	CannotConnect    Kind = "cannot-connect"
	ReplyShape       Kind = "reply-shape"
	ServerError      Kind = "server-error"
	DocumentTooLarge Kind = "document-too-large"
	DecodeFailure    Kind = "decode-failure"
	CursorNotFound   Kind = "cursor-not-found"
	ShardConfigStale Kind = "shard-config-stale"
	AuthFailed       Kind = "auth-failed"
	Interrupted      Kind = "interrupted"
	InvalidName      Kind = "invalid-name"
	ConnectionClosed Kind = "connection-closed"
)

// Error is the concrete error type returned by the core. It carries a Kind
// for programmatic branching, an optional wrapped cause, and a
// human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error

	// Code and Msg carry the server-reported failure fields for
	// Kind == ServerError; both are zero for client-local errors.
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Wrapped }

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: cause}
}

// Is reports whether err itself is an *Error of the given kind. Wrapped
// causes are not examined.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
