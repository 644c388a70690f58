// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blockstream

import (
	"sync"

	"github.com/blocklayer/blockstream/substrate"
)

// portableMapping is the seek+read fallback mapping used whenever the
// substrate isn't a memory-mappable regular file. A single mapping is
// shared by many cursors, so its substrate reads are serialized by mu.
type portableMapping struct {
	mu  sync.Mutex
	sub substrate.Substrate
}

func newPortableMapping(sub substrate.Substrate) mapping {
	return &portableMapping{sub: sub}
}

func (m *portableMapping) readAt(dst []byte, offset int64, length int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := readFullAt(m.sub, dst, offset)
	return err
}

func (m *portableMapping) close() error { return nil }
