// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"

	"github.com/zeebo/errs"
)

// Keyword lists are stored as a compact length-prefixed blob: a 2-byte LE
// count, then for each keyword a 2-byte LE length followed by the raw bytes.
// The blob is zlib-compressed at rest.

// EncodeKeywords serializes a keyword list into the blob format.
func EncodeKeywords(keywords [][]byte) ([]byte, error) {
	if len(keywords) > math.MaxUint16 {
		return nil, Error.New("too many keywords: %d", len(keywords))
	}

	size := 2
	for _, keyword := range keywords {
		if len(keyword) > math.MaxUint16 {
			return nil, Error.New("keyword too long: %d bytes", len(keyword))
		}
		size += 2 + len(keyword)
	}

	blob := make([]byte, 2, size)
	binary.LittleEndian.PutUint16(blob, uint16(len(keywords)))
	for _, keyword := range keywords {
		var length [2]byte
		binary.LittleEndian.PutUint16(length[:], uint16(len(keyword)))
		blob = append(blob, length[:]...)
		blob = append(blob, keyword...)
	}
	return blob, nil
}

// DecodeKeywords parses a blob back into a keyword list. Declared lengths
// that overflow the blob and trailing garbage are rejected.
func DecodeKeywords(blob []byte) ([][]byte, error) {
	if len(blob) < 2 {
		return nil, Error.New("keyword blob truncated: %d bytes", len(blob))
	}
	count := int(binary.LittleEndian.Uint16(blob))
	rest := blob[2:]

	keywords := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		if len(rest) < 2 {
			return nil, Error.New("keyword blob truncated at keyword %d", i)
		}
		length := int(binary.LittleEndian.Uint16(rest))
		rest = rest[2:]
		if len(rest) < length {
			return nil, Error.New("keyword %d overflows the blob: %d > %d", i, length, len(rest))
		}
		keyword := make([]byte, length)
		copy(keyword, rest[:length])
		keywords = append(keywords, keyword)
		rest = rest[length:]
	}
	if len(rest) != 0 {
		return nil, Error.New("keyword blob carries %d trailing bytes", len(rest))
	}
	return keywords, nil
}

// compressKeywords encodes and zlib-compresses a keyword list for storage.
// Empty lists store as nil.
func compressKeywords(keywords [][]byte) ([]byte, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	blob, err := EncodeKeywords(keywords)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := zlib.NewWriter(&buf)
	if _, err := writer.Write(blob); err != nil {
		return nil, Error.Wrap(err)
	}
	if err := writer.Close(); err != nil {
		return nil, Error.Wrap(err)
	}
	return buf.Bytes(), nil
}

// decompressKeywords reverses compressKeywords.
func decompressKeywords(stored []byte) ([][]byte, error) {
	if len(stored) == 0 {
		return nil, nil
	}
	reader, err := zlib.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	blob, err := io.ReadAll(reader)
	if err != nil {
		return nil, Error.Wrap(errs.Combine(err, reader.Close()))
	}
	if err := reader.Close(); err != nil {
		return nil, Error.Wrap(err)
	}
	return DecodeKeywords(blob)
}
