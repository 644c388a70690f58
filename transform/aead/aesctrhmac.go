// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/transform"
)

// NameAESCTRHMAC is the registered construction name for the alternate
// AEAD transformer, interchangeable with ChaCha20Poly1305 at the
// transformer boundary.
const NameAESCTRHMAC = "aesctrhmac"

const aesKeySize = 32 // AES-256

// AESCTRHMAC is the alternate authenticated-encryption transformer: AES in
// CTR mode for confidentiality, HMAC-SHA-256 (truncated to tagSize) for
// integrity, composed manually since there is no standard library
// CTR+HMAC AEAD. The on-disk layout matches ChaCha20Poly1305's: nonce(12)
// || tag(16) || ciphertext, so the two constructions are interchangeable
// at the transformer boundary.
type AESCTRHMAC struct {
	encKey []byte
	macKey []byte
	block  cipher.Block
}

// NewAESCTRHMAC derives independent encryption and MAC keys from
// passphrase and returns an AESCTRHMAC transformer.
func NewAESCTRHMAC(passphrase string) (*AESCTRHMAC, error) {
	material := deriveKey(passphrase, 2*aesKeySize)
	encKey, macKey := material[:aesKeySize], material[aesKeySize:]
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, berrors.E(berrors.ArgumentOutOfRange, "aead: aes key", err)
	}
	return &AESCTRHMAC{encKey: encKey, macKey: macKey, block: block}, nil
}

func (a *AESCTRHMAC) ctrIV(nonce []byte) []byte {
	iv := make([]byte, aes.BlockSize)
	copy(iv, nonce)
	return iv
}

func (a *AESCTRHMAC) mac(nonce, ciphertext []byte) []byte {
	m := hmac.New(sha256.New, a.macKey)
	m.Write(nonce)
	m.Write(ciphertext)
	return m.Sum(nil)[:tagSize]
}

// Transform implements transform.Transformer.
func (a *AESCTRHMAC) Transform(in []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, berrors.E(berrors.SubstrateIO, "aead: generating nonce", err)
	}
	ciphertext := make([]byte, len(in))
	cipher.NewCTR(a.block, a.ctrIV(nonce)).XORKeyStream(ciphertext, in)
	tag := a.mac(nonce, ciphertext)

	out := make([]byte, nonceSize+tagSize+len(ciphertext))
	copy(out, nonce)
	copy(out[nonceSize:], tag)
	copy(out[nonceSize+tagSize:], ciphertext)
	return out, nil
}

// Untransform implements transform.Transformer.
func (a *AESCTRHMAC) Untransform(in, scratch []byte) (int, error) {
	if len(in) < nonceSize+tagSize {
		return 0, berrors.E(berrors.Corruption, "aead: block shorter than nonce+tag")
	}
	nonce := in[:nonceSize]
	tag := in[nonceSize : nonceSize+tagSize]
	ciphertext := in[nonceSize+tagSize:]

	want := a.mac(nonce, ciphertext)
	if !hmac.Equal(tag, want) {
		return 0, berrors.E(berrors.Corruption, "aead: tag verification failed")
	}
	n := copy(scratch, ciphertext)
	cipher.NewCTR(a.block, a.ctrIV(nonce)).XORKeyStream(scratch[:n], scratch[:n])
	return n, nil
}

// MayChangeSize implements transform.Transformer.
func (a *AESCTRHMAC) MayChangeSize() bool {
	return true
}
