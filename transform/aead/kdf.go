// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package aead

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// kdfSalt is a fixed, non-secret salt. The derivation below is a speed
// bump against brute-forcing short passphrases, not a password-hashing
// strength guarantee; a per-container random salt would need to be stored
// alongside the data, which this format does not do.
var kdfSalt = []byte("blockstream/transform/aead/kdf/v1")

const kdfIterations = 100

// deriveKey derives an n-byte key from passphrase by two chained rounds of
// PBKDF2-HMAC-SHA256, each with kdfIterations iterations over kdfSalt. The
// second round is keyed on the first round's output, so a cheap first pass
// cannot be parallelized away from the second.
func deriveKey(passphrase string, n int) []byte {
	round1 := pbkdf2.Key([]byte(passphrase), kdfSalt, kdfIterations, n, sha256.New)
	round2 := pbkdf2.Key(round1, kdfSalt, kdfIterations, n, sha256.New)
	return round2
}
