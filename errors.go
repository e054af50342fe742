// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import "errors"

// Format errors are fatal to Open: the stream is not a readable archive.
var (
	// ErrNotArchive means no MPQ signature was found in the stream.
	ErrNotArchive = errors.New("mopaq: not an MPQ archive")

	// ErrTruncatedHeader means the stream ends inside the archive header.
	ErrTruncatedHeader = errors.New("mopaq: truncated header")

	// ErrUnsupportedVersion means the header declares a format version this
	// package does not read (V3/V4).
	ErrUnsupportedVersion = errors.New("mopaq: unsupported format version")

	// ErrCorruptHeader means a header field violates the format's own
	// invariants, e.g. a hash table size that is not a power of two.
	ErrCorruptHeader = errors.New("mopaq: corrupt header")
)

// Lookup errors are recoverable: the archive stays usable.
var (
	// ErrFileNotFound means no hash entry matched the name, or the only
	// matches were for other locales with no neutral fallback.
	ErrFileNotFound = errors.New("mopaq: file not found")

	// ErrFileDeleted means the hash entry resolved to a block whose exists
	// flag is clear: the slot was occupied once and the file was removed.
	ErrFileDeleted = errors.New("mopaq: file deleted")

	// ErrBlockIndexRange means a hash entry or caller-supplied index points
	// outside the block table.
	ErrBlockIndexRange = errors.New("mopaq: block index out of range")
)

// Integrity errors are fatal to a single read; other files in the archive
// remain readable.
var (
	// ErrUnsupportedCompression means the sector's compression bitmask has a
	// bit with no registered codec.
	ErrUnsupportedCompression = errors.New("mopaq: unsupported compression method")

	// ErrSectorSizeMismatch means a sector decompressed to a length other
	// than the one the block entry implies.
	ErrSectorSizeMismatch = errors.New("mopaq: sector size mismatch")

	// ErrChecksumMismatch means a sector or file checksum did not match the
	// stored value.
	ErrChecksumMismatch = errors.New("mopaq: checksum mismatch")

	// ErrTruncatedArchive means a block or table lies past the end of the
	// backing store.
	ErrTruncatedArchive = errors.New("mopaq: truncated archive")

	// ErrKeyUnavailable means an encrypted block was reached through a
	// nameless handle. The decryption key derives from the literal filename,
	// so files resolved only by hash cannot be decrypted.
	ErrKeyUnavailable = errors.New("mopaq: decryption key unavailable")

	// ErrPatchFile means the block is a patch fragment, which this package
	// does not apply.
	ErrPatchFile = errors.New("mopaq: patch files not supported")
)

// ErrBufferTooSmall means the buffer passed to File.Read is shorter than the
// file. Reads are whole-file only.
var ErrBufferTooSmall = errors.New("mopaq: buffer too small for file")
