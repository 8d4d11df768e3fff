// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package tlsutil builds *tls.Config values for the connection package,
// including loading client certificates whose private key is stored as an
// encrypted PKCS#8 PEM block, which crypto/tls cannot parse on its own.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/lucidfield/docdb/xerr"
	"github.com/youmark/pkcs8"
)

// Options configures how a client TLS certificate chain is assembled.
type Options struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	KeyPassword        []byte
	InsecureSkipVerify bool
	ServerName         string
}

// Config builds a *tls.Config from opts, decrypting an encrypted PKCS#8
// private key with KeyPassword when the PEM block is marked ENCRYPTED.
func Config(opts Options) (*tls.Config, error) {
	cfg := &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify,
		ServerName:         opts.ServerName,
	}

	if opts.CAFile != "" {
		pool, err := loadCAPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	if opts.CertFile != "" {
		cert, err := loadKeyPair(opts.CertFile, opts.KeyFile, opts.KeyPassword)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerr.Wrap(xerr.CannotConnect, "failed to read CA file", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, xerr.New(xerr.CannotConnect, "CA file contains no usable certificates")
	}
	return pool, nil
}

// loadKeyPair reads a PEM certificate and private key, transparently
// decrypting the key if it is an encrypted PKCS#8 block (the format
// produced by `openssl pkcs8 -topk8 -v2 aes-256-cbc`).
func loadKeyPair(certFile, keyFile string, password []byte) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, xerr.Wrap(xerr.CannotConnect, "failed to read certificate file", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, xerr.Wrap(xerr.CannotConnect, "failed to read key file", err)
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return tls.Certificate{}, xerr.New(xerr.CannotConnect, "key file contains no PEM block")
	}

	if !isEncryptedPKCS8(block) {
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return tls.Certificate{}, xerr.Wrap(xerr.CannotConnect, "failed to parse key pair", err)
		}
		return cert, nil
	}

	key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
	if err != nil {
		return tls.Certificate{}, xerr.Wrap(xerr.CannotConnect, "failed to decrypt PKCS#8 private key", err)
	}

	plainKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: mustMarshalPKCS8(key)})
	cert, err := tls.X509KeyPair(certPEM, plainKeyPEM)
	if err != nil {
		return tls.Certificate{}, xerr.Wrap(xerr.CannotConnect, "failed to parse decrypted key pair", err)
	}
	return cert, nil
}

func isEncryptedPKCS8(block *pem.Block) bool {
	return block.Type == "ENCRYPTED PRIVATE KEY"
}

func mustMarshalPKCS8(key interface{}) []byte {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		// key came straight out of ParsePKCS8PrivateKey; re-marshaling it
		// cannot fail for any key type that function returns.
		panic(err)
	}
	return der
}
