// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build unix

package blockstream

import (
	"os"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/substrate"
	"golang.org/x/sys/unix"
)

// newMapping returns an mmap-backed mapping when sub is a regular *os.File
// with a non-empty data region, falling back to the portable seek+read
// strategy otherwise.
func newMapping(sub substrate.Substrate, start, dataLen int64) mapping {
	f, ok := sub.(*os.File)
	if !ok || dataLen <= 0 {
		return newPortableMapping(sub)
	}
	// mmap offsets must be page-aligned; round start down and adjust the
	// in-mapping base accordingly.
	pageSize := int64(os.Getpagesize())
	alignedStart := (start / pageSize) * pageSize
	pad := start - alignedStart
	data, err := unix.Mmap(int(f.Fd()), alignedStart, int(dataLen+pad), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return newPortableMapping(sub)
	}
	return &mmapMapping{data: data, alignedStart: alignedStart}
}

type mmapMapping struct {
	data         []byte
	alignedStart int64
}

func (m *mmapMapping) readAt(dst []byte, offset int64, length int) error {
	lo := offset - m.alignedStart
	hi := lo + int64(length)
	if lo < 0 || hi > int64(len(m.data)) {
		return berrors.E(berrors.Corruption, "blockstream: mmap read out of range")
	}
	copy(dst, m.data[lo:hi])
	return nil
}

func (m *mmapMapping) close() error {
	if m.data == nil {
		return nil
	}
	if err := unix.Munmap(m.data); err != nil {
		return berrors.E(berrors.SubstrateIO, "blockstream: munmap", err)
	}
	m.data = nil
	return nil
}
