// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import (
	"encoding/binary"
	"fmt"
)

const (
	attributesName      = "(attributes)"
	attributesVersion   = 100
	attributesFlagCRC32 = 0x00000001
)

// Attributes holds the parsed (attributes) special file: optional per-block
// metadata written alongside the archive's real files.
type Attributes struct {
	Version uint32
	Flags   uint32
	// CRC32 has one entry per block-table slot when the CRC32 flag is set.
	// A zero entry means no checksum was recorded for that block.
	CRC32 []uint32
}

// Attributes reads and parses the (attributes) special file. Returns
// ErrFileNotFound when the archive has none.
func (a *Archive) Attributes() (*Attributes, error) {
	data, err := a.ReadFile(attributesName)
	if err != nil {
		return nil, err
	}

	if len(data) < 8 {
		return nil, fmt.Errorf("attributes file too small: %d bytes", len(data))
	}

	attrs := &Attributes{
		Version: binary.LittleEndian.Uint32(data[0:4]),
		Flags:   binary.LittleEndian.Uint32(data[4:8]),
	}
	if attrs.Version != attributesVersion {
		return nil, fmt.Errorf("unknown attributes version: %d", attrs.Version)
	}

	if attrs.Flags&attributesFlagCRC32 != 0 {
		count := len(a.blockTable)
		if len(data) < 8+count*4 {
			return nil, fmt.Errorf("attributes crc array truncated: %d bytes for %d blocks", len(data)-8, count)
		}
		attrs.CRC32 = make([]uint32, count)
		for i := range attrs.CRC32 {
			attrs.CRC32[i] = binary.LittleEndian.Uint32(data[8+i*4:])
		}
	}

	return attrs, nil
}

// VerifyFile recomputes the CRC32 of a file's plaintext and compares it to
// the value recorded in (attributes). A zero recorded value (placeholder,
// used e.g. for the attributes file itself) verifies trivially.
func (a *Archive) VerifyFile(name string) error {
	attrs, err := a.Attributes()
	if err != nil {
		return err
	}
	if attrs.CRC32 == nil {
		return fmt.Errorf("attributes file carries no checksums")
	}

	f, err := a.OpenFile(name)
	if err != nil {
		return err
	}
	stored := attrs.CRC32[f.index]
	if stored == 0 {
		return nil
	}

	buf := make([]byte, f.Size())
	if _, err := f.Read(buf); err != nil {
		return err
	}
	if sum := crc32(buf); sum != stored {
		return fmt.Errorf("%s crc32 %08X, stored %08X: %w", name, sum, stored, ErrChecksumMismatch)
	}
	return nil
}
