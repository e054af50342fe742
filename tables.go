// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import (
	"fmt"
	"io"
)

// The two index tables are stored encrypted under fixed well-known keys
// derived from their own names.
var (
	hashTableKey  = hashString("(hash table)", hashTypeFileKey)
	blockTableKey = hashString("(block table)", hashTypeFileKey)
)

// checkTableFits rejects a table whose declared extent lies outside the
// backing store, before anything is allocated. The count and offsets come
// from the untrusted header, so the arithmetic stays in uint64 end to end.
func checkTableFits(src source, offset, byteLen uint64) error {
	size := uint64(src.Size())
	if offset > size || byteLen > size-offset {
		return fmt.Errorf("%d bytes at 0x%X in %d byte stream: %w", byteLen, offset, size, ErrTruncatedArchive)
	}
	return nil
}

// loadHashTable reads and decrypts the hash table. The decrypted entries are
// immutable after load and safe to share across goroutines.
func loadHashTable(src source, h *archiveHeader) ([]hashTableEntry, error) {
	count := uint64(h.HashTableSize)
	offset := h.ArchiveOffset + h.getHashTableOffset64()
	if err := checkTableFits(src, offset, count*16); err != nil {
		return nil, fmt.Errorf("hash table: %w", err)
	}

	words := make([]uint32, count*4)
	sr := io.NewSectionReader(src, int64(offset), int64(count*16))
	if err := readUint32Array(sr, words); err != nil {
		return nil, fmt.Errorf("read hash table: %w", ErrTruncatedArchive)
	}
	decryptBlock(words, hashTableKey)

	table := make([]hashTableEntry, h.HashTableSize)
	for i := range table {
		table[i] = hashTableEntry{
			HashA:      words[i*4],
			HashB:      words[i*4+1],
			Locale:     uint16(words[i*4+2] & 0xFFFF),
			Platform:   uint16(words[i*4+2] >> 16),
			BlockIndex: words[i*4+3],
		}
	}
	return table, nil
}

// loadBlockTable reads and decrypts the block table, merging in the
// hi-block table when a V2 header provides one.
func loadBlockTable(src source, h *archiveHeader) ([]blockTableEntryEx, error) {
	count := uint64(h.BlockTableSize)
	offset := h.ArchiveOffset + h.getBlockTableOffset64()
	if err := checkTableFits(src, offset, count*16); err != nil {
		return nil, fmt.Errorf("block table: %w", err)
	}

	words := make([]uint32, count*4)
	sr := io.NewSectionReader(src, int64(offset), int64(count*16))
	if err := readUint32Array(sr, words); err != nil {
		return nil, fmt.Errorf("read block table: %w", ErrTruncatedArchive)
	}
	decryptBlock(words, blockTableKey)

	table := make([]blockTableEntryEx, h.BlockTableSize)
	for i := range table {
		table[i] = blockTableEntryEx{
			blockTableEntry: blockTableEntry{
				FilePos:        words[i*4],
				CompressedSize: words[i*4+1],
				FileSize:       words[i*4+2],
				Flags:          words[i*4+3],
			},
		}
	}

	// The hi-block table is plain (not encrypted).
	if h.FormatVersion >= formatVersion2 && h.HiBlockTableOffset64 != 0 {
		hiOffset := h.ArchiveOffset + h.HiBlockTableOffset64
		if err := checkTableFits(src, hiOffset, count*2); err != nil {
			return nil, fmt.Errorf("hi-block table: %w", err)
		}

		hi := make([]uint16, h.BlockTableSize)
		sr := io.NewSectionReader(src, int64(hiOffset), int64(len(hi))*2)
		if err := readUint16Array(sr, hi); err != nil {
			return nil, fmt.Errorf("read hi-block table: %w", ErrTruncatedArchive)
		}
		for i := range table {
			table[i].FilePosHi = hi[i]
		}
	}

	return table, nil
}

// lookupHash probes the hash table for name under the requested locale.
//
// Probing starts at the table-offset hash masked by the table size and
// advances one slot at a time, wrapping, for at most len(table) steps. An
// empty slot terminates the probe; a deleted slot is skipped. The same name
// may appear once per locale: an exact locale match returns immediately,
// while a neutral-locale match is remembered and returned only if the probe
// ends without an exact hit.
func lookupHash(table []hashTableEntry, name string, locale uint16) (*hashTableEntry, error) {
	mask := uint32(len(table) - 1)
	start := hashString(name, hashTypeTableOffset) & mask
	hashA := hashString(name, hashTypeNameA)
	hashB := hashString(name, hashTypeNameB)

	var fallback *hashTableEntry

	for i := uint32(0); i < uint32(len(table)); i++ {
		entry := &table[(start+i)&mask]

		if entry.BlockIndex == hashTableEmpty {
			break
		}
		if entry.BlockIndex == hashTableDeleted {
			continue
		}
		if entry.HashA != hashA || entry.HashB != hashB {
			continue
		}

		if entry.Locale == locale {
			return entry, nil
		}
		if entry.Locale == LocaleNeutral && fallback == nil {
			fallback = entry
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
}

// blockAt resolves a block index, distinguishing a structurally invalid
// index from a slot whose file was removed.
func (a *Archive) blockAt(index uint32) (*blockTableEntryEx, error) {
	if index >= uint32(len(a.blockTable)) {
		return nil, fmt.Errorf("block index %d of %d: %w", index, len(a.blockTable), ErrBlockIndexRange)
	}
	block := &a.blockTable[index]
	if block.Flags&fileExists == 0 {
		return nil, fmt.Errorf("block %d: %w", index, ErrFileDeleted)
	}
	return block, nil
}
