// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const signatureName = "(signature)"

// SignatureInfo contains the parsed (signature) special file. This package
// exposes the blob for inspection but performs no cryptographic
// verification.
type SignatureInfo struct {
	Version   uint32
	Signature []byte
}

// ReadSignature reads and parses the (signature) special file if present.
// Returns nil without error when the archive carries no signature.
func (a *Archive) ReadSignature() (*SignatureInfo, error) {
	data, err := a.ReadFile(signatureName)
	if errors.Is(err, ErrFileNotFound) {
		return nil, nil // signature is optional
	}
	if err != nil {
		return nil, err
	}

	if len(data) < 8 {
		return nil, fmt.Errorf("signature data too small: %d bytes", len(data))
	}

	version := binary.LittleEndian.Uint32(data[0:4])
	sigLength := binary.LittleEndian.Uint32(data[4:8])

	if uint64(len(data)) < 8+uint64(sigLength) {
		return nil, fmt.Errorf("signature data truncated: expected %d bytes, got %d", 8+sigLength, len(data))
	}

	signature := make([]byte, sigLength)
	copy(signature, data[8:8+sigLength])

	return &SignatureInfo{
		Version:   version,
		Signature: signature,
	}, nil
}
