// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mopaq

import (
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// source is the backing store an archive reads from. Implementations must
// support concurrent positioned reads; the engine keeps no cursor state.
type source interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// fileSource reads directly from an open file.
type fileSource struct {
	f    *os.File
	size int64
}

func openFileSource(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	return &fileSource{f: f, size: info.Size()}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Size() int64                             { return s.size }
func (s *fileSource) Close() error                            { return s.f.Close() }

// mmapSource maps the archive read-only into memory. Positioned reads become
// plain copies from the mapping, which helps when many small sectors are
// read from a large archive.
type mmapSource struct {
	f    *os.File
	data mmap.MMap
}

func openMmapSource(path string) (*mmapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}
	return &mmapSource{f: f, data: m}, nil
}

func (s *mmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *mmapSource) Size() int64 { return int64(len(s.data)) }

func (s *mmapSource) Close() error {
	if s.data != nil {
		if err := s.data.Unmap(); err != nil {
			return err
		}
		s.data = nil
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}

// readerAtSource adapts any io.ReaderAt, e.g. a bytes.Reader holding an
// archive received over the network.
type readerAtSource struct {
	r    io.ReaderAt
	size int64
}

func (s *readerAtSource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *readerAtSource) Size() int64                             { return s.size }

func (s *readerAtSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
