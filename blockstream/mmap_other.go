// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build !unix

package blockstream

import "github.com/blocklayer/blockstream/substrate"

// newMapping always falls back to the portable seek+read strategy on
// platforms without the unix mmap syscalls wired up.
func newMapping(sub substrate.Substrate, start, dataLen int64) mapping {
	return newPortableMapping(sub)
}
