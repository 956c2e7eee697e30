// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/psbtsigner/internal/zero"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// signEcdsaLowR produces a deterministic ECDSA signature over the passed
// digest whose R component has no leading zero byte in its DER encoding,
// guaranteeing the serialized signature never exceeds 71 bytes (70 plus
// the appended sighash byte). Nonces are derived per RFC6979; when a nonce
// yields a high R the extra iteration counter is bumped and the nonce is
// re-derived, matching the grinding scheme used by bitcoind.
func signEcdsaLowR(privKey *btcec.PrivateKey, digest []byte) *ecdsa.Signature {
	var privBytes [32]byte
	privKey.Key.PutBytes(&privBytes)
	defer zero.Bytea32(&privBytes)

	var e secp.ModNScalar
	e.SetByteSlice(digest)

	for iteration := uint32(0); ; iteration++ {
		k := secp.NonceRFC6979(
			privBytes[:], digest, nil, nil, iteration,
		)

		sig, ok := trySignWithNonce(&privKey.Key, &e, k)
		k.Zero()
		if ok {
			return sig
		}
	}
}

// trySignWithNonce attempts to build a signature from the given nonce,
// reporting failure when the nonce degenerates or when the resulting R
// would serialize with a leading zero byte.
func trySignWithNonce(priv, e, k *secp.ModNScalar) (*ecdsa.Signature, bool) {
	var kG secp.JacobianPoint
	secp.ScalarBaseMultNonConst(k, &kG)
	kG.ToAffine()

	var rBytes [32]byte
	kG.X.PutBytes(&rBytes)

	// A leading byte of 0x80 or above forces DER to pad R with a zero
	// byte, so grind such nonces away.
	if rBytes[0] >= 0x80 {
		return nil, false
	}

	var r secp.ModNScalar
	if overflow := r.SetBytes(&rBytes); overflow != 0 {
		return nil, false
	}
	if r.IsZero() {
		return nil, false
	}

	kInv := new(secp.ModNScalar).InverseValNonConst(k)

	// s = k^-1 * (e + r*d) mod n.
	s := new(secp.ModNScalar).Mul2(&r, priv).Add(e).Mul(kInv)
	if s.IsZero() {
		return nil, false
	}

	// Enforce low-S per BIP62.
	if s.IsOverHalfOrder() {
		s.Negate()
	}

	return ecdsa.NewSignature(&r, s), true
}
