// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package aead

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/transform"
)

// NameChaCha20Poly1305 is the registered construction name for the primary
// AEAD transformer.
const NameChaCha20Poly1305 = "chacha20poly1305"

const (
	nonceSize = chacha20poly1305.NonceSize // 12
	tagSize   = 16
)

func init() {
	transform.Register("aead", func(config string) (transform.Transformer, error) {
		return newFromConfig(config)
	})
}

// ChaCha20Poly1305 is the primary authenticated-encryption transformer. Its
// on-disk layout is nonce(12) || tag(16) || ciphertext: a fresh random
// nonce is generated on every Transform, and the tag is placed immediately
// after it so both fixed-size fields can be read without first knowing the
// ciphertext length.
type ChaCha20Poly1305 struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewChaCha20Poly1305 derives a key from passphrase and returns a
// ChaCha20Poly1305 transformer.
func NewChaCha20Poly1305(passphrase string) (*ChaCha20Poly1305, error) {
	key := deriveKey(passphrase, chacha20poly1305.KeySize)
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, berrors.E(berrors.ArgumentOutOfRange, "aead: chacha20poly1305 key", err)
	}
	return &ChaCha20Poly1305{aead: a}, nil
}

// Transform implements transform.Transformer.
func (c *ChaCha20Poly1305) Transform(in []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, berrors.E(berrors.SubstrateIO, "aead: generating nonce", err)
	}
	sealed := c.aead.Seal(nil, nonce, in, nil)
	// sealed is ciphertext || tag; rearrange to nonce || tag || ciphertext.
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	out := make([]byte, nonceSize+tagSize+len(ciphertext))
	copy(out, nonce)
	copy(out[nonceSize:], tag)
	copy(out[nonceSize+tagSize:], ciphertext)
	return out, nil
}

// Untransform implements transform.Transformer.
func (c *ChaCha20Poly1305) Untransform(in, scratch []byte) (int, error) {
	if len(in) < nonceSize+tagSize {
		return 0, berrors.E(berrors.Corruption, "aead: block shorter than nonce+tag")
	}
	nonce := in[:nonceSize]
	tag := in[nonceSize : nonceSize+tagSize]
	ciphertext := in[nonceSize+tagSize:]

	sealed := make([]byte, len(ciphertext)+tagSize)
	copy(sealed, ciphertext)
	copy(sealed[len(ciphertext):], tag)

	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return 0, berrors.E(berrors.Corruption, "aead: tag verification failed", err)
	}
	return copy(scratch, plain), nil
}

// MayChangeSize implements transform.Transformer.
func (c *ChaCha20Poly1305) MayChangeSize() bool {
	return true
}
