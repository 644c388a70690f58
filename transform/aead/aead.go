// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
//
// Package aead implements the authenticated-encryption transformer: a
// prescribed primary construction (ChaCha20-Poly1305) and an interchangeable
// alternate (AES-CTR + HMAC-SHA-256), both laying out each transformed
// block as nonce(12) || tag(16) || ciphertext. Keys are derived from a
// caller-supplied passphrase by two chained rounds of PBKDF2, grounded on
// the teacher's crypto/encryption package (which built a comparable
// engine-holds-key-material, setup-produces-IV-and-stream shape around
// CFB+HMAC) but reworked to the AEAD constructions this format requires.
package aead

import (
	"strings"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/transform"
)

// newFromConfig builds a transformer from a config string of the form
// "<construction> <passphrase>", e.g. "chacha20poly1305 hunter2" or
// "aesctrhmac hunter2". construction defaults to NameChaCha20Poly1305 if
// omitted (i.e. the whole string is the passphrase).
func newFromConfig(config string) (transform.Transformer, error) {
	construction, passphrase := NameChaCha20Poly1305, config
	if fields := strings.SplitN(config, " ", 2); len(fields) == 2 {
		switch fields[0] {
		case NameChaCha20Poly1305, NameAESCTRHMAC:
			construction, passphrase = fields[0], fields[1]
		}
	}
	switch construction {
	case NameChaCha20Poly1305:
		return NewChaCha20Poly1305(passphrase)
	case NameAESCTRHMAC:
		return NewAESCTRHMAC(passphrase)
	default:
		return nil, berrors.E(berrors.UnsupportedOperation, "aead: unknown construction", construction)
	}
}
