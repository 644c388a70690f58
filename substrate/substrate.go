// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
//
// Package substrate defines the seekable byte stream interface the
// container and stream packages are built against, and a minimal in-memory
// implementation for tests and filesystem-free use.
package substrate

import "io"

// Substrate is the arbitrary seekable byte stream a container wraps.
// *os.File satisfies it directly.
type Substrate interface {
	io.ReaderAt
	io.WriterAt
	io.Seeker
	io.Closer

	// Truncate resizes the substrate to size bytes.
	Truncate(size int64) error

	// Sync requests the substrate make previously written data durable, if
	// it supports that concept. Substrates that do not (e.g. the in-memory
	// Buffer) treat it as a no-op.
	Sync() error
}
