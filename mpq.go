// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import (
	"fmt"
	"io"
	"strings"
)

// Archive represents an open MPQ archive. The header and both index tables
// are loaded and decrypted eagerly at open time and never change afterwards,
// so an Archive may be shared read-only across goroutines as long as the
// backing store supports concurrent positioned reads (all the stores this
// package creates do).
type Archive struct {
	src        source
	header     *archiveHeader
	hashTable  []hashTableEntry
	blockTable []blockTableEntryEx
	sectorSize uint32
}

// Open opens an MPQ archive for reading, backed by positioned file reads.
func Open(path string) (*Archive, error) {
	src, err := openFileSource(path)
	if err != nil {
		return nil, err
	}
	return newArchive(src)
}

// OpenMmap opens an MPQ archive backed by a read-only memory mapping.
func OpenMmap(path string) (*Archive, error) {
	src, err := openMmapSource(path)
	if err != nil {
		return nil, err
	}
	return newArchive(src)
}

// OpenReaderAt opens an MPQ archive from any io.ReaderAt covering size
// bytes, e.g. a bytes.Reader over an archive held in memory. If r implements
// io.Closer it is closed with the archive.
func OpenReaderAt(r io.ReaderAt, size int64) (*Archive, error) {
	return newArchive(&readerAtSource{r: r, size: size})
}

func newArchive(src source) (*Archive, error) {
	header, err := findHeader(src)
	if err != nil {
		src.Close()
		return nil, err
	}

	hashTable, err := loadHashTable(src, header)
	if err != nil {
		src.Close()
		return nil, err
	}

	blockTable, err := loadBlockTable(src, header)
	if err != nil {
		src.Close()
		return nil, err
	}

	return &Archive{
		src:        src,
		header:     header,
		hashTable:  hashTable,
		blockTable: blockTable,
		sectorSize: 512 << header.SectorSizeShift,
	}, nil
}

// Close releases the backing store. Handles resolved against the archive
// become invalid.
func (a *Archive) Close() error {
	return a.src.Close()
}

// SectorSize returns the archive's uncompressed sector size in bytes.
func (a *Archive) SectorSize() uint32 { return a.sectorSize }

// Version returns the archive's format version (0 for V1, 1 for V2).
func (a *Archive) Version() uint16 { return a.header.FormatVersion }

// OpenFile resolves a file by name under the neutral locale.
func (a *Archive) OpenFile(name string) (*File, error) {
	return a.OpenFileLocale(name, LocaleNeutral)
}

// OpenFileLocale resolves a file by name and locale. An entry for exactly
// the requested locale wins; failing that, the neutral-locale entry is used.
// A name present only under other locales is reported as not found, matching
// the format's semantics that locale is metadata on existence, not a
// separate namespace.
func (a *Archive) OpenFileLocale(name string, locale uint16) (*File, error) {
	name = strings.ReplaceAll(name, "/", "\\")

	entry, err := lookupHash(a.hashTable, name, locale)
	if err != nil {
		return nil, err
	}

	block, err := a.blockAt(entry.BlockIndex)
	if err != nil {
		return nil, err
	}

	return &File{archive: a, block: block, index: entry.BlockIndex, name: name}, nil
}

// OpenFileIndex opens a file directly by block-table index, bypassing name
// lookup. This reaches files absent from any listfile, but the handle is
// nameless: reading it fails with ErrKeyUnavailable if the block is
// encrypted, because the decryption key derives from the literal filename.
func (a *Archive) OpenFileIndex(index uint32) (*File, error) {
	block, err := a.blockAt(index)
	if err != nil {
		return nil, err
	}
	return &File{archive: a, block: block, index: index}, nil
}

// HasFile returns true if the archive contains the named file under the
// neutral locale or any locale with a neutral fallback.
func (a *Archive) HasFile(name string) bool {
	_, err := a.OpenFile(name)
	return err == nil
}

// ReadFile resolves and reads a whole file in one call.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	f, err := a.OpenFile(name)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, f.Size())
	if _, err := f.Read(buf); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return buf, nil
}

// BlockCount returns the number of block-table entries, including deleted
// slots. Valid indices for OpenFileIndex are [0, BlockCount).
func (a *Archive) BlockCount() uint32 {
	return uint32(len(a.blockTable))
}
