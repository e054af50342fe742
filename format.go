// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import (
	"encoding/binary"
	"io"
)

// MPQ format constants
const (
	// Magic signatures, little-endian: "MPQ\x1A" opens an archive header,
	// "MPQ\x1B" a user-data header that points at the real one.
	mpqMagicA = 0x1A51504D
	mpqMagicB = 0x1B51504D

	// Format versions
	formatVersion1 = 0 // Original format (up to 4GB)
	formatVersion2 = 1 // Extended format (Burning Crusade+)

	// Header sizes
	headerSizeV1 = 0x20 // 32 bytes
	headerSizeV2 = 0x2C // 44 bytes

	// Headers may start at any 0x200-aligned position in the stream.
	headerStride = 0x200

	// Block table entry flags
	fileImplode      = 0x00000100 // Imploded (PKWARE compression, no method byte)
	fileCompress     = 0x00000200 // Compressed (multi-algorithm)
	fileEncrypted    = 0x00010000 // Encrypted
	fileFixKey       = 0x00020000 // Key adjusted by block offset
	filePatchFile    = 0x00100000 // Patch file
	fileSingleUnit   = 0x01000000 // Single unit (not split into sectors)
	fileDeleteMarker = 0x02000000 // File is a deletion marker
	fileSectorCRC    = 0x04000000 // Sector checksums stored after the data
	fileExists       = 0x80000000 // File exists

	// Hash table entry sentinels
	hashTableEmpty   = 0xFFFFFFFF // slot never used, probing stops
	hashTableDeleted = 0xFFFFFFFE // slot freed, probing continues

	// LocaleNeutral is the default locale, matched when no regional variant
	// is requested or found.
	LocaleNeutral uint16 = 0
)

// baseHeader is the MPQ archive header (V1 format - 32 bytes)
type baseHeader struct {
	Magic            uint32 // "MPQ\x1A"
	HeaderSize       uint32 // Size of this header (0x20 for V1, 0x2C for V2)
	ArchiveSize      uint32 // Size of the entire archive (deprecated in V2)
	FormatVersion    uint16 // Format version (0 = V1, 1 = V2)
	SectorSizeShift  uint16 // Sector size is 512 << shift
	HashTableOffset  uint32 // Offset to hash table (low 32 bits)
	BlockTableOffset uint32 // Offset to block table (low 32 bits)
	HashTableSize    uint32 // Number of entries in hash table
	BlockTableSize   uint32 // Number of entries in block table
}

// extendedHeader contains V2 extended header fields (12 bytes)
type extendedHeader struct {
	HiBlockTableOffset64 uint64 // 64-bit offset to the hi-block table
	HashTableOffsetHi    uint16 // High 16 bits of hash table offset
	BlockTableOffsetHi   uint16 // High 16 bits of block table offset
}

// userDataHeader precedes the archive header in streams that embed the
// archive behind a user-data block ("MPQ\x1B").
type userDataHeader struct {
	Magic          uint32 // "MPQ\x1B"
	UserDataSize   uint32 // Maximum size of the user data
	HeaderOffset   uint32 // Offset of the MPQ header, relative to this struct
	UserDataHeader uint32 // Size of this header
}

// archiveHeader combines V1 and V2 headers with the position the signature
// was found at. Every table and block offset in the archive is relative to
// ArchiveOffset, not to the start of the stream.
type archiveHeader struct {
	baseHeader
	extendedHeader
	ArchiveOffset uint64
}

// getHashTableOffset64 returns the full 64-bit hash table offset
func (h *archiveHeader) getHashTableOffset64() uint64 {
	if h.FormatVersion >= formatVersion2 {
		return uint64(h.HashTableOffset) | (uint64(h.HashTableOffsetHi) << 32)
	}
	return uint64(h.HashTableOffset)
}

// getBlockTableOffset64 returns the full 64-bit block table offset
func (h *archiveHeader) getBlockTableOffset64() uint64 {
	if h.FormatVersion >= formatVersion2 {
		return uint64(h.BlockTableOffset) | (uint64(h.BlockTableOffsetHi) << 32)
	}
	return uint64(h.BlockTableOffset)
}

// hashTableEntry represents a decrypted entry in the hash table
type hashTableEntry struct {
	HashA      uint32 // First hash of the file name
	HashB      uint32 // Second hash of the file name
	Locale     uint16 // Locale ID (windows LANGID)
	Platform   uint16 // Platform ID (0 = default)
	BlockIndex uint32 // Index into the block table, or a sentinel
}

// blockTableEntry represents a decrypted entry in the block table
type blockTableEntry struct {
	FilePos        uint32 // Offset of the file data, relative to the archive start (low 32 bits)
	CompressedSize uint32 // On-disk file size
	FileSize       uint32 // Uncompressed file size
	Flags          uint32 // File flags
}

// blockTableEntryEx extends blockTableEntry with 64-bit offset support
type blockTableEntryEx struct {
	blockTableEntry
	FilePosHi uint16 // High 16 bits of file offset (from the hi-block table)
}

// getFilePos64 returns the full 64-bit file position
func (b *blockTableEntryEx) getFilePos64() uint64 {
	return uint64(b.FilePos) | (uint64(b.FilePosHi) << 32)
}

// readUint32Array reads an array of uint32 values
func readUint32Array(r io.Reader, data []uint32) error {
	return binary.Read(r, binary.LittleEndian, data)
}

// readUint16Array reads an array of uint16 values
func readUint16Array(r io.Reader, data []uint16) error {
	return binary.Read(r, binary.LittleEndian, data)
}
