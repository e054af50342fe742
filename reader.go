// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import "fmt"

// File is a handle to one file inside an archive, produced by lookup. It
// carries the resolved block and the name used to resolve it (needed to
// re-derive the encryption key); there is no other state, so handles are
// plain values and reads are idempotent. A handle is only valid while its
// Archive stays open.
type File struct {
	archive *Archive
	block   *blockTableEntryEx
	index   uint32
	name    string // empty for handles opened by block index
}

// Name returns the path the handle was opened with, or "" for handles
// resolved by block index.
func (f *File) Name() string { return f.name }

// Size returns the file's uncompressed size in bytes.
func (f *File) Size() uint64 { return uint64(f.block.FileSize) }

// Read fills buf with the entire file and returns the number of bytes
// written. buf must be at least Size() bytes long; this engine performs
// whole-file reads only.
func (f *File) Read(buf []byte) (int, error) {
	size := f.block.FileSize
	if uint64(len(buf)) < uint64(size) {
		return 0, fmt.Errorf("%d byte buffer for %d byte file: %w", len(buf), size, ErrBufferTooSmall)
	}

	data, err := f.archive.readRange(f, 0, size)
	if err != nil {
		return 0, err
	}
	copy(buf, data)
	return int(size), nil
}

// readRange returns length plaintext bytes of f starting at off. This is
// the sector pipeline: it computes which sectors cover the range, decrypts
// and decompresses each, and slices the result to the exact request. Nothing
// is cached between calls.
func (a *Archive) readRange(f *File, off, length uint32) ([]byte, error) {
	block := f.block

	if block.Flags&filePatchFile != 0 {
		return nil, fmt.Errorf("%s: %w", f.name, ErrPatchFile)
	}
	if uint64(off)+uint64(length) > uint64(block.FileSize) {
		return nil, fmt.Errorf("range %d+%d of %d byte file: %w", off, length, block.FileSize, ErrBlockIndexRange)
	}
	if length == 0 {
		return nil, nil
	}

	// Reject blocks whose declared extent leaves the backing store before
	// any allocation sized from the untrusted entry happens.
	avail := uint64(a.src.Size()) - a.header.ArchiveOffset
	if block.getFilePos64() > avail || uint64(block.CompressedSize) > avail-block.getFilePos64() {
		return nil, fmt.Errorf("block %d bytes at 0x%X in %d byte archive: %w",
			block.CompressedSize, block.getFilePos64(), avail, ErrTruncatedArchive)
	}

	var key uint32
	if block.Flags&fileEncrypted != 0 {
		if f.name == "" {
			return nil, fmt.Errorf("block %d: %w", f.index, ErrKeyUnavailable)
		}
		key = fileKey(f.name, block.getFilePos64(), block.FileSize, block.Flags)
	}

	if block.Flags&fileSingleUnit != 0 {
		data, err := a.readSingleUnit(f, block, key)
		if err != nil {
			return nil, err
		}
		return data[off : off+length], nil
	}
	return a.readSectors(f, block, key, off, length)
}

// readSingleUnit decodes a file stored as one opaque unit with no sector
// table: optional decrypt under the base key, then at most one decompression
// of the whole unit.
func (a *Archive) readSingleUnit(f *File, block *blockTableEntryEx, key uint32) ([]byte, error) {
	data := make([]byte, block.CompressedSize)
	if err := a.readAt(data, block.getFilePos64()); err != nil {
		return nil, err
	}

	if block.Flags&fileEncrypted != 0 {
		decryptBytes(data, key)
	}

	// When compression did not shrink the file, the unit is stored raw with
	// no method byte, regardless of what the flags claim. The size
	// comparison, not the flag, decides.
	if block.CompressedSize >= block.FileSize {
		return data[:block.FileSize], nil
	}

	if block.Flags&fileImplode != 0 {
		return nil, fmt.Errorf("pkware implode (flag): %w", ErrUnsupportedCompression)
	}
	if block.Flags&fileCompress == 0 {
		return nil, fmt.Errorf("unit is %d of %d bytes without compression flag: %w",
			block.CompressedSize, block.FileSize, ErrSectorSizeMismatch)
	}

	out, err := decompressData(data, block.FileSize)
	if err != nil {
		return nil, err
	}
	if uint32(len(out)) != block.FileSize {
		return nil, fmt.Errorf("unit decompressed to %d of %d bytes: %w", len(out), block.FileSize, ErrSectorSizeMismatch)
	}
	return out, nil
}

// readSectors decodes the sectors covering [off, off+length) and slices the
// concatenation to the request.
func (a *Archive) readSectors(f *File, block *blockTableEntryEx, key uint32, off, length uint32) ([]byte, error) {
	sectorSize := a.sectorSize
	// FileSize is untrusted; the rounding sum wraps in uint32 for sizes
	// near 4GB, so the sector count is computed in uint64.
	numSectors := uint32((uint64(block.FileSize) + uint64(sectorSize) - 1) / uint64(sectorSize))

	// A plain stored file has no sector-offset table: the sectors are the
	// raw bytes, so the range can be read directly. A checksum chunk is
	// only ever written behind an offset table, so there is nothing to
	// verify here even when the CRC flag is set.
	if block.Flags&(fileCompress|fileImplode|fileEncrypted) == 0 {
		data := make([]byte, length)
		if err := a.readAt(data, block.getFilePos64()+uint64(off)); err != nil {
			return nil, err
		}
		return data, nil
	}

	offsets, checksums, err := a.readSectorTable(block, key, numSectors)
	if err != nil {
		return nil, err
	}

	firstSector := off / sectorSize
	lastSector := (off + length - 1) / sectorSize

	assembled := make([]byte, 0, (lastSector-firstSector+1)*sectorSize)
	for i := firstSector; i <= lastSector; i++ {
		expected := sectorSize
		if i == numSectors-1 {
			// The last sector holds the remainder, never a full sector.
			expected = block.FileSize - i*sectorSize
		}

		plain, err := a.readSector(f, block, key, offsets, i, expected)
		if err != nil {
			return nil, err
		}

		if checksums != nil && checksums[i] != 0 {
			if sum := adler32(plain); sum != checksums[i] {
				return nil, fmt.Errorf("sector %d adler32 %08X, stored %08X: %w", i, sum, checksums[i], ErrChecksumMismatch)
			}
		}

		assembled = append(assembled, plain...)
	}

	skip := off - firstSector*sectorSize
	return assembled[skip : skip+length], nil
}

// readSectorTable reads the sector-offset table and, when the block carries
// sector checksums, the trailing checksum chunk. The table is encrypted
// under key-1; sector i under key+i. The checksum chunk is stored like a
// sector, compressed when that helps, but never encrypted.
func (a *Archive) readSectorTable(block *blockTableEntryEx, key uint32, numSectors uint32) ([]uint32, []uint32, error) {
	entries := numSectors + 1
	hasCRC := block.Flags&fileSectorCRC != 0
	if hasCRC {
		entries++
	}

	// The table is the first thing inside the block, so it can never be
	// larger than the block itself.
	if uint64(entries)*4 > uint64(block.CompressedSize) {
		return nil, nil, fmt.Errorf("sector table of %d entries in %d byte block: %w",
			entries, block.CompressedSize, ErrSectorSizeMismatch)
	}

	raw := make([]byte, entries*4)
	if err := a.readAt(raw, block.getFilePos64()); err != nil {
		return nil, nil, err
	}
	if block.Flags&fileEncrypted != 0 {
		decryptBytes(raw, key-1)
	}

	offsets := make([]uint32, entries)
	for i := range offsets {
		offsets[i] = uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
	}
	for i := uint32(0); i < entries-1; i++ {
		if offsets[i] > offsets[i+1] || offsets[i+1] > block.CompressedSize {
			return nil, nil, fmt.Errorf("sector offsets %d..%d of %d: %w", offsets[i], offsets[i+1], block.CompressedSize, ErrSectorSizeMismatch)
		}
	}

	if !hasCRC {
		return offsets, nil, nil
	}

	chunk := make([]byte, offsets[numSectors+1]-offsets[numSectors])
	if err := a.readAt(chunk, block.getFilePos64()+uint64(offsets[numSectors])); err != nil {
		return nil, nil, err
	}
	if uint32(len(chunk)) != numSectors*4 {
		var err error
		chunk, err = decompressData(chunk, numSectors*4)
		if err != nil {
			return nil, nil, fmt.Errorf("checksum chunk: %w", err)
		}
		if uint32(len(chunk)) != numSectors*4 {
			return nil, nil, fmt.Errorf("checksum chunk is %d of %d bytes: %w", len(chunk), numSectors*4, ErrChecksumMismatch)
		}
	}

	checksums := make([]uint32, numSectors)
	for i := range checksums {
		checksums[i] = uint32(chunk[i*4]) | uint32(chunk[i*4+1])<<8 | uint32(chunk[i*4+2])<<16 | uint32(chunk[i*4+3])<<24
	}
	return offsets, checksums, nil
}

// readSector decodes one sector to exactly expected bytes. A sector whose
// on-disk length equals its plaintext length is stored raw; anything
// shorter is compressed and leads with the method bitmask byte.
func (a *Archive) readSector(f *File, block *blockTableEntryEx, key uint32, offsets []uint32, i, expected uint32) ([]byte, error) {
	data := make([]byte, offsets[i+1]-offsets[i])
	if err := a.readAt(data, block.getFilePos64()+uint64(offsets[i])); err != nil {
		return nil, err
	}

	if block.Flags&fileEncrypted != 0 {
		decryptBytes(data, key+i)
	}

	if uint32(len(data)) == expected {
		return data, nil
	}
	if uint32(len(data)) > expected {
		return nil, fmt.Errorf("sector %d is %d of %d bytes: %w", i, len(data), expected, ErrSectorSizeMismatch)
	}

	if block.Flags&fileImplode != 0 {
		return nil, fmt.Errorf("pkware implode (flag): %w", ErrUnsupportedCompression)
	}
	if block.Flags&fileCompress == 0 {
		return nil, fmt.Errorf("sector %d is %d of %d bytes without compression flag: %w",
			i, len(data), expected, ErrSectorSizeMismatch)
	}

	out, err := decompressData(data, expected)
	if err != nil {
		return nil, fmt.Errorf("sector %d: %w", i, err)
	}
	if uint32(len(out)) != expected {
		return nil, fmt.Errorf("sector %d decompressed to %d of %d bytes: %w", i, len(out), expected, ErrSectorSizeMismatch)
	}
	return out, nil
}

// readAt reads len(buf) bytes at the given archive-relative offset.
func (a *Archive) readAt(buf []byte, offset uint64) error {
	if _, err := a.src.ReadAt(buf, int64(a.header.ArchiveOffset+offset)); err != nil {
		return fmt.Errorf("read %d bytes at 0x%X: %w", len(buf), offset, ErrTruncatedArchive)
	}
	return nil
}
