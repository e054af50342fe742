// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zlibDeflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompressZlibSector(t *testing.T) {
	t.Parallel()

	content := textData(300)
	sector := append([]byte{compressionZlib}, zlibDeflate(t, content)...)

	out, err := decompressData(sector, 300)
	require.NoError(t, err)
	assert.Equal(t, content, out)
}

func TestSparseRoundTrip(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"zero runs":      append(append(make([]byte, 200), []byte("payload")...), make([]byte, 50)...),
		"no zeros":       []byte("entirely literal content with no runs at all"),
		"short zero run": {1, 2, 0, 0, 3, 4}, // two zeros stay literal
		"all zeros":      make([]byte, 500),  // spans multiple max-length runs
		"empty":          {},
	}

	for name, content := range cases {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			packed := sparseCompress(content)
			out, err := decompressSparse(packed, uint32(len(content)))
			require.NoError(t, err)
			assert.Equal(t, content, out)
		})
	}
}

func TestDecompressSparseStream(t *testing.T) {
	t.Parallel()

	// hand-built stream: size 10, literal "ab", 5 zeros, literal "def"
	stream := []byte{
		0, 0, 0, 10,
		0x81, 'a', 'b',
		0x02, // (2)+3 zeros
		0x82, 'd', 'e', 'f',
	}
	out, err := decompressSparse(stream, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0, 0, 'd', 'e', 'f'}, out)
}

func TestDecompressSparseTruncated(t *testing.T) {
	t.Parallel()

	_, err := decompressSparse([]byte{0, 0}, 10)
	assert.ErrorIs(t, err, ErrSectorSizeMismatch)

	// literal run claims more bytes than the stream holds
	_, err = decompressSparse([]byte{0, 0, 0, 5, 0x84, 'a'}, 5)
	assert.ErrorIs(t, err, ErrSectorSizeMismatch)

	// expansion disagrees with the declared size
	_, err = decompressSparse([]byte{0, 0, 0, 9, 0x81, 'a', 'b'}, 9)
	assert.ErrorIs(t, err, ErrSectorSizeMismatch)
}

func TestDecompressChainedZlibSparse(t *testing.T) {
	t.Parallel()

	// compression applied sparse first then zlib, so the decoder must
	// unwind zlib before expanding the sparse stream
	content := append(append([]byte("head"), make([]byte, 400)...), []byte("tail")...)
	sector := compressWith(t, compressionZlib|compressionSparse, content)
	require.Equal(t, byte(compressionZlib|compressionSparse), sector[0])

	out, err := decompressData(sector, uint32(len(content)))
	require.NoError(t, err)
	assert.Equal(t, content, out)
}

func TestDecompressUnsupportedMethods(t *testing.T) {
	t.Parallel()

	payload := zlibDeflate(t, textData(100))

	cases := map[string]byte{
		"lzma":          compressionLZMA,
		"huffman":       compressionHuffman,
		"pkware":        compressionPKWare,
		"adpcm mono":    compressionADPCMMono,
		"adpcm stereo":  compressionADPCMStereo,
		"undefined bit": 0x04,
	}
	for name, mask := range cases {
		mask := mask
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := decompressData(append([]byte{mask}, payload...), 100)
			assert.ErrorIs(t, err, ErrUnsupportedCompression)
		})
	}
}

func TestDecompressEmptyData(t *testing.T) {
	t.Parallel()

	_, err := decompressData(nil, 0)
	assert.ErrorIs(t, err, ErrSectorSizeMismatch)
}

func TestDecompressBzip2Sector(t *testing.T) {
	t.Parallel()

	// a canned bzip2 stream of "hello world\n", since the standard library
	// only decodes
	stream := []byte{
		0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53, 0x59, 0x4e, 0xec,
		0xe8, 0x36, 0x00, 0x00, 0x02, 0x51, 0x80, 0x00, 0x10, 0x40, 0x00, 0x06,
		0x44, 0x90, 0x80, 0x20, 0x00, 0x31, 0x06, 0x4c, 0x41, 0x01, 0xa7, 0xa9,
		0xa5, 0x80, 0xbb, 0x94, 0x31, 0xf8, 0xbb, 0x92, 0x29, 0xc2, 0x84, 0x82,
		0x77, 0x67, 0x41, 0xb0,
	}
	out, err := decompressData(append([]byte{compressionBzip2}, stream...), 12)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world\n"), out)
}
