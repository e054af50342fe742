// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Compression method bits, combinable in a single sector's method byte.
const (
	compressionHuffman     = 0x01 // Huffman (wave files only)
	compressionZlib        = 0x02 // Zlib
	compressionPKWare      = 0x08 // PKWare DCL implode
	compressionBzip2       = 0x10 // BZip2
	compressionSparse      = 0x20 // Sparse/RLE (SC2+)
	compressionADPCMMono   = 0x40 // ADPCM mono audio
	compressionADPCMStereo = 0x80 // ADPCM stereo audio
	compressionLZMA        = 0x12 // LZMA (SC2+), a distinct value, not bzip2|zlib
)

// decompressor inflates one codec's stream. expected is the final sector
// length, used as a capacity hint only; intermediate pipeline stages may
// produce other lengths.
type decompressor func(data []byte, expected uint32) ([]byte, error)

// codecTable drives multi-codec dispatch. Order is fixed by the format: the
// compressor runs multimedia codecs first and the general-purpose codec
// last, so decompression unwinds general-purpose first, then sparse
// expansion, then the multimedia codecs. A nil decompressor marks a method
// the format defines but this package does not decode.
var codecTable = []struct {
	mask byte
	name string
	fn   decompressor
}{
	{compressionBzip2, "bzip2", decompressBzip2},
	{compressionPKWare, "pkware implode", nil},
	{compressionZlib, "zlib", decompressZlib},
	{compressionSparse, "sparse", decompressSparse},
	{compressionHuffman, "huffman", nil},
	{compressionADPCMStereo, "adpcm stereo", nil},
	{compressionADPCMMono, "adpcm mono", nil},
}

// decompressData decodes a compressed sector or single-unit body. The first
// byte is the compression method bitmask; each flagged codec is applied in
// the table's order, each stage feeding the next. The caller verifies the
// final length.
func decompressData(data []byte, expected uint32) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty compressed data: %w", ErrSectorSizeMismatch)
	}

	mask := data[0]
	out := data[1:]

	if mask == compressionLZMA {
		return nil, fmt.Errorf("lzma (0x%02X): %w", mask, ErrUnsupportedCompression)
	}

	remaining := mask
	for _, c := range codecTable {
		if mask&c.mask == 0 {
			continue
		}
		if c.fn == nil {
			return nil, fmt.Errorf("%s (0x%02X): %w", c.name, c.mask, ErrUnsupportedCompression)
		}
		var err error
		out, err = c.fn(out, expected)
		if err != nil {
			return nil, err
		}
		remaining &^= c.mask
	}

	if remaining != 0 {
		return nil, fmt.Errorf("method bits 0x%02X: %w", remaining, ErrUnsupportedCompression)
	}
	return out, nil
}

// decompressZlib inflates a zlib stream to completion. The stream is read
// fully rather than capped at expected: when zlib is chained before sparse,
// its output is the sparse stream, which may exceed the sector length.
func decompressZlib(data []byte, expected uint32) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	buf.Grow(int(expected))
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	return buf.Bytes(), nil
}

// decompressBzip2 inflates a bzip2 stream to completion.
func decompressBzip2(data []byte, expected uint32) ([]byte, error) {
	r := bzip2.NewReader(bytes.NewReader(data))

	var buf bytes.Buffer
	buf.Grow(int(expected))
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("bzip2 decompress: %w", err)
	}
	return buf.Bytes(), nil
}

// decompressSparse expands the sparse/RLE encoding: a big-endian u32
// plaintext size, then chunks led by a control byte. High bit set means a
// literal run of (b&0x7F)+1 bytes follows; clear means (b&0x7F)+3 zeros.
func decompressSparse(data []byte, expected uint32) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("sparse stream too short: %w", ErrSectorSizeMismatch)
	}

	total := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	data = data[4:]

	out := make([]byte, 0, total)
	for i := 0; i < len(data); {
		ctrl := data[i]
		i++
		if ctrl&0x80 != 0 {
			n := int(ctrl&0x7F) + 1
			if i+n > len(data) {
				return nil, fmt.Errorf("sparse literal run past end: %w", ErrSectorSizeMismatch)
			}
			out = append(out, data[i:i+n]...)
			i += n
		} else {
			n := int(ctrl&0x7F) + 3
			for j := 0; j < n; j++ {
				out = append(out, 0)
			}
		}
	}

	if uint32(len(out)) != total {
		return nil, fmt.Errorf("sparse expanded to %d of %d bytes: %w", len(out), total, ErrSectorSizeMismatch)
	}
	return out, nil
}
