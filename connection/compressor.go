// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"bytes"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
)

// compressor wire ids, matching the CompressorID byte sent in OP_COMPRESSED.
const (
	compressorIDNoop   byte = 0
	compressorIDSnappy byte = 1
	compressorIDZlib   byte = 2
)

// SnappyCompressor wires github.com/golang/snappy into the connection's
// compressor negotiation.
type SnappyCompressor struct{}

func (SnappyCompressor) Name() string { return "snappy" }
func (SnappyCompressor) ID() byte     { return compressorIDSnappy }

func (SnappyCompressor) Compress(dst, src []byte) ([]byte, error) {
	return snappy.Encode(dst[:0], src), nil
}

func (SnappyCompressor) Uncompress(dst, src []byte) ([]byte, error) {
	return snappy.Decode(dst[:0], src)
}

// ZlibCompressor wires github.com/klauspost/compress/zlib into the
// connection's compressor negotiation.
type ZlibCompressor struct {
	Level int
}

func (ZlibCompressor) Name() string { return "zlib" }
func (ZlibCompressor) ID() byte     { return compressorIDZlib }

func (z ZlibCompressor) Compress(dst, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	level := z.Level
	if level == 0 {
		level = zlib.DefaultCompression
	}
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append(dst[:0], buf.Bytes()...), nil
}

func (ZlibCompressor) Uncompress(dst, src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return append(dst[:0], buf.Bytes()...), nil
}

func pickCompressor(offered []Compressor, serverAdvertised []string) Compressor {
	for _, c := range offered {
		for _, name := range serverAdvertised {
			if c.Name() == name {
				return c
			}
		}
	}
	return nil
}
