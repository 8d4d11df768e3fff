// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"github.com/xdg-go/scram"
)

// ScramMechanism names which SCRAM hash function to negotiate.
type ScramMechanism int

// The two SCRAM mechanisms a document database server commonly advertises.
const (
	ScramSHA1 ScramMechanism = iota
	ScramSHA256
)

func (m ScramMechanism) name() string {
	if m == ScramSHA256 {
		return "SCRAM-SHA-256"
	}
	return "SCRAM-SHA-1"
}

// ScramClient is the SaslClient implementation backing SCRAM
// authentication, wired to github.com/xdg-go/scram and
// github.com/xdg-go/stringprep (via scram's SASLprep normalization) rather
// than a hand-rolled HMAC conversation.
type ScramClient struct {
	mechanism ScramMechanism
	username  string
	password  string

	conv *scram.ClientConversation
	done bool
}

// NewScramClient constructs a ScramClient for the given mechanism,
// username, and password. The conversation itself is not started until
// Start is called, matching the SaslClient contract's lazy-start shape.
func NewScramClient(mechanism ScramMechanism, username, password string) (*ScramClient, error) {
	var hgf scram.HashGeneratorFcn
	if mechanism == ScramSHA256 {
		hgf = scram.SHA256
	} else {
		hgf = scram.SHA1
	}
	client, err := hgf.NewClient(username, password, "")
	if err != nil {
		return nil, err
	}
	return &ScramClient{
		mechanism: mechanism,
		username:  username,
		password:  password,
		conv:      client.NewConversation(),
	}, nil
}

// Mechanism implements SaslClient.
func (s *ScramClient) Mechanism() string { return s.mechanism.name() }

// Start implements SaslClient: it produces the client-first-message with
// an empty server response.
func (s *ScramClient) Start() ([]byte, error) {
	msg, err := s.conv.Step("")
	if err != nil {
		return nil, err
	}
	return []byte(msg), nil
}

// Next implements SaslClient: it feeds the server's challenge through the
// conversation's state machine and returns the next client message.
func (s *ScramClient) Next(challenge []byte) ([]byte, error) {
	msg, err := s.conv.Step(string(challenge))
	if err != nil {
		return nil, err
	}
	if s.conv.Done() {
		s.done = true
	}
	return []byte(msg), nil
}

// Completed implements SaslClient.
func (s *ScramClient) Completed() bool { return s.done || s.conv.Done() }
