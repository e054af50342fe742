// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import "encoding/binary"

// Hash types for the hash function
const (
	hashTypeTableOffset = 0
	hashTypeNameA       = 1
	hashTypeNameB       = 2
	hashTypeFileKey     = 3
)

// cryptTable is the encryption/hash lookup table
var cryptTable [0x500]uint32

func init() {
	// Initialize the encryption table using the standard MPQ algorithm
	seed := uint32(0x00100001)

	for index1 := 0; index1 < 0x100; index1++ {
		index2 := index1
		for i := 0; i < 5; i++ {
			seed = (seed*125 + 3) % 0x2AAAAB
			temp1 := (seed & 0xFFFF) << 0x10

			seed = (seed*125 + 3) % 0x2AAAAB
			temp2 := seed & 0xFFFF

			cryptTable[index2] = temp1 | temp2
			index2 += 0x100
		}
	}
}

// hashString computes the MPQ hash of a string.
// Bytes are uppercased and forward slashes fold to backslashes before
// hashing; lookup correctness depends on this matching the hashes written at
// archive-build time exactly.
func hashString(s string, hashType uint32) uint32 {
	seed1 := uint32(0x7FED7FED)
	seed2 := uint32(0xEEEEEEEE)

	for i := 0; i < len(s); i++ {
		ch := uint32(s[i])
		if ch >= 'a' && ch <= 'z' {
			ch -= 0x20
		}
		if ch == '/' {
			ch = '\\'
		}

		seed1 = cryptTable[hashType*0x100+ch] ^ (seed1 + seed2)
		seed2 = ch + seed1 + seed2 + (seed2 << 5) + 3
	}

	return seed1
}

// encryptBlock encrypts a block of data in place
func encryptBlock(data []uint32, key uint32) {
	seed := uint32(0xEEEEEEEE)

	for i := range data {
		seed += cryptTable[0x400+(key&0xFF)]
		plain := data[i]
		encrypted := plain ^ (key + seed)
		key = ((^key << 0x15) + 0x11111111) | (key >> 0x0B)
		seed = plain + seed + (seed << 5) + 3
		data[i] = encrypted
	}
}

// decryptBlock decrypts a block of data in place
func decryptBlock(data []uint32, key uint32) {
	seed := uint32(0xEEEEEEEE)

	for i := range data {
		seed += cryptTable[0x400+(key&0xFF)]
		encrypted := data[i]
		plain := encrypted ^ (key + seed)
		key = ((^key << 0x15) + 0x11111111) | (key >> 0x0B)
		seed = plain + seed + (seed << 5) + 3
		data[i] = plain
	}
}

// decryptBytes decrypts a byte slice in place. Only complete 32-bit words
// are ciphered; a trailing 1-3 bytes pass through untouched, matching the
// on-disk format.
func decryptBytes(data []byte, key uint32) {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}

	decryptBlock(words, key)

	for i := range words {
		binary.LittleEndian.PutUint32(data[i*4:], words[i])
	}
}

// encryptBytes encrypts a byte slice in place, complete words only.
func encryptBytes(data []byte, key uint32) {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}

	encryptBlock(words, key)

	for i := range words {
		binary.LittleEndian.PutUint32(data[i*4:], words[i])
	}
}

// fileKey computes the encryption key for a file from its path and block
// placement. The key hashes only the basename. With the fix-key flag the key
// is bound to the block's physical offset, so relocated ciphertext no longer
// decrypts.
func fileKey(path string, blockOffset uint64, fileSize uint32, flags uint32) uint32 {
	plainName := path
	if idx := lastIndexOfSlash(path); idx >= 0 {
		plainName = path[idx+1:]
	}

	key := hashString(plainName, hashTypeFileKey)

	if flags&fileFixKey != 0 {
		key = (key + uint32(blockOffset)) ^ fileSize
	}

	return key
}

// lastIndexOfSlash finds the last path separator in a string
func lastIndexOfSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\\' || s[i] == '/' {
			return i
		}
	}
	return -1
}
