// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blog

// FooterRewrite logs that a container rewrote its footer at offset,
// covering the given number of blocks and logical length. The container
// calls this on every writeFooter.
func FooterRewrite(offset int64, blocks int, logicalLength int64) {
	Debug.Printf("blockstream: rewriting footer at %d (%d blocks, L=%d)", offset, blocks, logicalLength)
}

// TombstoneAppend logs that a block is being appended via the two-phase
// tombstone protocol: the footer naming it is persisted before its
// payload is written, so a crash in between leaves a recoverable
// tombstone rather than a corrupt footer.
func TombstoneAppend(index int64) {
	Debug.Printf("blockstream: appending block %d as tombstone pending payload write", index)
}

// TombstoneRecovered logs that a footer read discarded one or more
// half-committed append tombstones left behind by a crash mid-append —
// the library's sole recovery behavior.
func TombstoneRecovered(count int) {
	if count == 0 {
		return
	}
	Info.Printf("blockstream: discarded %d half-committed append tombstone(s) on footer read", count)
}

// Corruption logs a corruption-kind failure encountered while decoding a
// block or footer, before it is returned to the caller as a berrors.Error.
func Corruption(context string, err error) {
	Error.Printf("blockstream: corruption decoding %s: %v", context, err)
}
