// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

// In-memory archive builder for tests. This package ships no writer, so the
// fixtures construct the on-disk layout by hand: header, file blocks
// (single-unit or sectored, optionally compressed, encrypted and
// checksummed), then the encrypted hash and block tables.

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

type testFile struct {
	path        string
	data        []byte
	locale      uint16
	flags       uint32 // combined with fileExists unless deleted
	compression byte   // method mask used when fileCompress is set
	deleted     bool   // block entry written without the exists flag
	keyDelta    uint64 // offset error baked into the key, simulating relocation
}

type testArchive struct {
	sectorShift   uint16 // sector size is 512 << shift; zero means 512
	version       uint16
	hashTableSize uint32 // defaults to 16
	leadingJunk   int    // zero bytes before the header, multiple of 0x200
	userData      bool   // precede the archive with a user-data header
	files         []testFile
}

func (b *testArchive) addListfile() {
	var content bytes.Buffer
	for _, f := range b.files {
		content.WriteString(f.path)
		content.WriteString("\r\n")
	}
	content.WriteString(listfileName)
	content.WriteString("\r\n")
	b.files = append(b.files, testFile{
		path:        listfileName,
		data:        content.Bytes(),
		flags:       fileSingleUnit | fileCompress,
		compression: compressionZlib,
	})
}

func (b *testArchive) addAttributes() {
	count := len(b.files) + 1 // every block, including (attributes) itself
	data := make([]byte, 8+count*4)
	binary.LittleEndian.PutUint32(data[0:4], attributesVersion)
	binary.LittleEndian.PutUint32(data[4:8], attributesFlagCRC32)
	for i, f := range b.files {
		binary.LittleEndian.PutUint32(data[8+i*4:], crc32(f.data))
	}
	// the entry for (attributes) itself stays zero
	b.files = append(b.files, testFile{
		path:        attributesName,
		data:        data,
		flags:       fileSingleUnit | fileCompress,
		compression: compressionZlib,
	})
}

func (b *testArchive) build(t *testing.T) []byte {
	t.Helper()

	hashTableSize := b.hashTableSize
	if hashTableSize == 0 {
		hashTableSize = 16
	}
	sectorSize := uint32(512) << b.sectorShift

	headerSize := uint32(headerSizeV1)
	if b.version >= formatVersion2 {
		headerSize = headerSizeV2
	}

	var out bytes.Buffer
	if b.userData {
		var ud bytes.Buffer
		require.NoError(t, binary.Write(&ud, binary.LittleEndian, userDataHeader{
			Magic:          mpqMagicB,
			UserDataSize:   headerStride - 16,
			HeaderOffset:   headerStride,
			UserDataHeader: 16,
		}))
		out.Write(ud.Bytes())
		out.Write(make([]byte, headerStride-out.Len()))
	} else if b.leadingJunk > 0 {
		require.Zero(t, b.leadingJunk%headerStride, "junk must keep the header stride-aligned")
		out.Write(make([]byte, b.leadingJunk))
	}

	archiveStart := out.Len()
	out.Write(make([]byte, headerSize))

	blockTable := make([]blockTableEntryEx, 0, len(b.files))
	hashTable := make([]hashTableEntry, hashTableSize)
	for i := range hashTable {
		hashTable[i] = hashTableEntry{
			HashA:      0xFFFFFFFF,
			HashB:      0xFFFFFFFF,
			Locale:     0xFFFF,
			Platform:   0xFFFF,
			BlockIndex: hashTableEmpty,
		}
	}

	for i, f := range b.files {
		flags := f.flags | fileExists
		if f.deleted {
			flags &^= fileExists
		}
		blockOffset := uint32(out.Len() - archiveStart)

		var key uint32
		if flags&fileEncrypted != 0 {
			key = fileKey(f.path, uint64(blockOffset)+f.keyDelta, uint32(len(f.data)), flags)
		}

		body := buildFileBody(t, f, flags, key, sectorSize)
		out.Write(body)

		blockTable = append(blockTable, blockTableEntryEx{blockTableEntry: blockTableEntry{
			FilePos:        blockOffset,
			CompressedSize: uint32(len(body)),
			FileSize:       uint32(len(f.data)),
			Flags:          flags,
		}})

		placeHashEntry(t, hashTable, f.path, f.locale, uint32(i))
	}

	hashTableOffset := uint32(out.Len() - archiveStart)
	words := make([]uint32, len(hashTable)*4)
	for i, e := range hashTable {
		words[i*4] = e.HashA
		words[i*4+1] = e.HashB
		words[i*4+2] = uint32(e.Locale) | uint32(e.Platform)<<16
		words[i*4+3] = e.BlockIndex
	}
	encryptBlock(words, hashTableKey)
	require.NoError(t, binary.Write(&out, binary.LittleEndian, words))

	blockTableOffset := uint32(out.Len() - archiveStart)
	words = make([]uint32, len(blockTable)*4)
	for i, e := range blockTable {
		words[i*4] = e.FilePos
		words[i*4+1] = e.CompressedSize
		words[i*4+2] = e.FileSize
		words[i*4+3] = e.Flags
	}
	encryptBlock(words, blockTableKey)
	require.NoError(t, binary.Write(&out, binary.LittleEndian, words))

	data := out.Bytes()
	var header bytes.Buffer
	require.NoError(t, binary.Write(&header, binary.LittleEndian, baseHeader{
		Magic:            mpqMagicA,
		HeaderSize:       headerSize,
		ArchiveSize:      uint32(len(data) - archiveStart),
		FormatVersion:    b.version,
		SectorSizeShift:  b.sectorShift,
		HashTableOffset:  hashTableOffset,
		BlockTableOffset: blockTableOffset,
		HashTableSize:    hashTableSize,
		BlockTableSize:   uint32(len(blockTable)),
	}))
	if b.version >= formatVersion2 {
		require.NoError(t, binary.Write(&header, binary.LittleEndian, extendedHeader{}))
	}
	copy(data[archiveStart:], header.Bytes())

	return data
}

func placeHashEntry(t *testing.T, table []hashTableEntry, path string, locale uint16, blockIndex uint32) {
	t.Helper()
	mask := uint32(len(table) - 1)
	start := hashString(path, hashTypeTableOffset) & mask

	for i := uint32(0); i < uint32(len(table)); i++ {
		entry := &table[(start+i)&mask]
		if entry.BlockIndex != hashTableEmpty && entry.BlockIndex != hashTableDeleted {
			continue
		}
		*entry = hashTableEntry{
			HashA:      hashString(path, hashTypeNameA),
			HashB:      hashString(path, hashTypeNameB),
			Locale:     locale,
			Platform:   0,
			BlockIndex: blockIndex,
		}
		return
	}
	t.Fatalf("hash table full placing %s", path)
}

func buildFileBody(t *testing.T, f testFile, flags uint32, key, sectorSize uint32) []byte {
	t.Helper()

	if flags&fileSingleUnit != 0 {
		body := f.data
		if flags&fileCompress != 0 {
			if c := compressWith(t, f.compression, f.data); len(c) < len(f.data) {
				body = c
			}
		}
		body = append([]byte(nil), body...)
		if flags&fileEncrypted != 0 {
			encryptBytes(body, key)
		}
		return body
	}

	// Sectored. A plain stored file is just the raw bytes; anything
	// compressed or encrypted gets the sector-offset table.
	if flags&(fileCompress|fileEncrypted) == 0 {
		return append([]byte(nil), f.data...)
	}

	numSectors := (uint32(len(f.data)) + sectorSize - 1) / sectorSize
	entries := numSectors + 1
	if flags&fileSectorCRC != 0 {
		entries++
	}

	payloads := make([][]byte, 0, numSectors)
	checksums := make([]uint32, 0, numSectors)
	for i := uint32(0); i < numSectors; i++ {
		end := (i + 1) * sectorSize
		if end > uint32(len(f.data)) {
			end = uint32(len(f.data))
		}
		sector := f.data[i*sectorSize : end]
		checksums = append(checksums, adler32(sector))

		payload := sector
		if flags&fileCompress != 0 {
			if c := compressWith(t, f.compression, sector); len(c) < len(sector) {
				payload = c
			}
		}
		payload = append([]byte(nil), payload...)
		if flags&fileEncrypted != 0 {
			encryptBytes(payload, key+i)
		}
		payloads = append(payloads, payload)
	}

	var crcChunk []byte
	if flags&fileSectorCRC != 0 {
		raw := make([]byte, len(checksums)*4)
		for i, sum := range checksums {
			binary.LittleEndian.PutUint32(raw[i*4:], sum)
		}
		crcChunk = raw
		if c := compressWith(t, compressionZlib, raw); len(c) < len(raw) {
			crcChunk = c
		}
		// checksum chunk is never encrypted
	}

	offsets := make([]uint32, entries)
	offsets[0] = entries * 4
	for i, p := range payloads {
		offsets[i+1] = offsets[i] + uint32(len(p))
	}
	if flags&fileSectorCRC != 0 {
		offsets[numSectors+1] = offsets[numSectors] + uint32(len(crcChunk))
	}

	table := make([]byte, entries*4)
	for i, off := range offsets {
		binary.LittleEndian.PutUint32(table[i*4:], off)
	}
	if flags&fileEncrypted != 0 {
		encryptBytes(table, key-1)
	}

	var body bytes.Buffer
	body.Write(table)
	for _, p := range payloads {
		body.Write(p)
	}
	body.Write(crcChunk)
	return body.Bytes()
}

// compressWith applies the masked codecs in compression order (sparse
// expansion is undone last on read, so it runs first here) and prepends the
// method byte.
func compressWith(t *testing.T, mask byte, data []byte) []byte {
	t.Helper()
	out := data
	if mask&compressionSparse != 0 {
		out = sparseCompress(out)
	}
	if mask&compressionZlib != 0 {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		_, err := w.Write(out)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		out = buf.Bytes()
	}
	return append([]byte{mask}, out...)
}

func sparseCompress(data []byte) []byte {
	out := []byte{
		byte(len(data) >> 24), byte(len(data) >> 16), byte(len(data) >> 8), byte(len(data)),
	}

	for i := 0; i < len(data); {
		j := i
		for j < len(data) && data[j] == 0 {
			j++
		}
		if zeros := j - i; zeros >= 3 {
			if zeros > 130 {
				zeros = 130
			}
			out = append(out, byte(zeros-3))
			i += zeros
			continue
		}

		start := i
		for i < len(data) && i-start < 128 {
			if data[i] == 0 {
				k := i
				for k < len(data) && data[k] == 0 {
					k++
				}
				if k-i >= 3 {
					break
				}
			}
			i++
		}
		out = append(out, 0x80|byte(i-start-1))
		out = append(out, data[start:i]...)
	}
	return out
}

// openTestArchive builds the fixture and opens it from memory.
func openTestArchive(t *testing.T, b *testArchive) *Archive {
	t.Helper()
	data := b.build(t)
	a, err := OpenReaderAt(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}
