// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import (
	"encoding/binary"
	"fmt"
	"io"
)

// findHeader locates and parses the archive header. Archives may be preceded
// by arbitrary data (e.g. embedded in an installer), so the signature is
// searched at 0x200-byte strides from the start of the stream rather than
// assumed at offset 0. A "MPQ\x1B" user-data header redirects to the real
// header via its HeaderOffset field.
func findHeader(src source) (*archiveHeader, error) {
	size := src.Size()
	magic := make([]byte, 4)

	for offset := int64(0); offset+4 <= size; offset += headerStride {
		if _, err := src.ReadAt(magic, offset); err != nil {
			return nil, fmt.Errorf("scan for signature: %w", err)
		}

		switch binary.LittleEndian.Uint32(magic) {
		case mpqMagicA:
			return parseHeader(src, uint64(offset))

		case mpqMagicB:
			var ud userDataHeader
			sr := io.NewSectionReader(src, offset, 16)
			if err := binary.Read(sr, binary.LittleEndian, &ud); err != nil {
				return nil, fmt.Errorf("read user data header: %w", ErrTruncatedHeader)
			}

			headerPos := offset + int64(ud.HeaderOffset)
			if headerPos+4 > size {
				return nil, fmt.Errorf("user data header offset 0x%X: %w", ud.HeaderOffset, ErrTruncatedHeader)
			}
			if _, err := src.ReadAt(magic, headerPos); err != nil {
				return nil, fmt.Errorf("seek past user data: %w", err)
			}
			if binary.LittleEndian.Uint32(magic) != mpqMagicA {
				return nil, fmt.Errorf("no header behind user data block: %w", ErrNotArchive)
			}
			return parseHeader(src, uint64(headerPos))
		}
	}

	return nil, ErrNotArchive
}

// parseHeader reads and validates the header at the given stream position.
// The position becomes the archive offset all table offsets are relative to.
func parseHeader(src source, archiveOffset uint64) (*archiveHeader, error) {
	h := &archiveHeader{ArchiveOffset: archiveOffset}

	sr := io.NewSectionReader(src, int64(archiveOffset), headerSizeV2)
	if err := binary.Read(sr, binary.LittleEndian, &h.baseHeader); err != nil {
		return nil, fmt.Errorf("read header: %w", ErrTruncatedHeader)
	}

	if h.FormatVersion > formatVersion2 {
		return nil, fmt.Errorf("format version %d: %w", h.FormatVersion, ErrUnsupportedVersion)
	}

	if h.HeaderSize < headerSizeV1 {
		return nil, fmt.Errorf("header size 0x%X: %w", h.HeaderSize, ErrCorruptHeader)
	}

	if h.FormatVersion >= formatVersion2 && h.HeaderSize >= headerSizeV2 {
		if err := binary.Read(sr, binary.LittleEndian, &h.extendedHeader); err != nil {
			return nil, fmt.Errorf("read extended header: %w", ErrTruncatedHeader)
		}
	}

	// Probing masks with size-1, so the table size must be a power of two.
	if h.HashTableSize == 0 || h.HashTableSize&(h.HashTableSize-1) != 0 {
		return nil, fmt.Errorf("hash table size %d not a power of two: %w", h.HashTableSize, ErrCorruptHeader)
	}

	// 512 << shift must fit in uint32, or the sector size wraps to zero.
	if h.SectorSizeShift > 22 {
		return nil, fmt.Errorf("sector size shift %d: %w", h.SectorSizeShift, ErrCorruptHeader)
	}

	return h, nil
}
