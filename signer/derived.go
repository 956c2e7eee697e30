// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/psbtsigner/keydesc"
)

// DerivedSigner signs inputs with keys derived on demand from an extended
// private key, guided by the derivation info recorded in the PSBT and
// matched against a single key record.
//
// The signer trusts the record, not the PSBT: after deriving the private
// key for a matched path it checks that the derived public key equals the
// public key the PSBT claimed the path belongs to, and refuses to sign
// with ErrInvalidKey when they differ. This catches packets whose
// derivation entries were tampered with to trick the signer into signing
// under a key it never intended to use.
type DerivedSigner struct {
	key  *keydesc.Key
	root *hdkeychain.ExtendedKey
}

// A compile time check to ensure DerivedSigner implements the InputSigner
// interface.
var _ InputSigner = (*DerivedSigner)(nil)

// NewDerivedSigner creates a signer that derives signing keys from the
// given extended private key for inputs matching the given key record.
func NewDerivedSigner(key *keydesc.Key,
	root *hdkeychain.ExtendedKey) (*DerivedSigner, error) {

	if !root.IsPrivate() {
		return nil, fmt.Errorf("%w: derivation root is not a "+
			"private key", ErrMissingKey)
	}

	return &DerivedSigner{
		key:  key,
		root: root,
	}, nil
}

// SignInput derives the private key for the first derivation entry of the
// input that matches the signer's key record and signs with it. Inputs
// with no matching entry and already finalized inputs are skipped without
// error. The derived private key is zeroed before returning.
//
// This is part of the InputSigner interface.
func (s *DerivedSigner) SignInput(packet *psbt.Packet, inputIndex int,
	method SignMethod) error {

	if inputIndex < 0 || inputIndex >= len(packet.Inputs) ||
		inputIndex >= len(packet.UnsignedTx.TxIn) {

		return ErrInputIndexOutOfRange
	}

	pInput := &packet.Inputs[inputIndex]
	if isFinalized(pInput) {
		return nil
	}

	claimedPubKey, path := s.findDerivation(pInput)
	if path == nil {
		return nil
	}

	privKey, err := s.derivePrivKey(path)
	if err != nil {
		return err
	}
	defer privKey.Zero()

	if !derivedKeyMatches(privKey, claimedPubKey) {
		return ErrInvalidKey
	}

	return NewKeySigner(privKey).SignInput(packet, inputIndex, method)
}

// findDerivation scans the input's derivation entries for the first one
// whose key source matches the signer's key record, returning the claimed
// public key (compressed or x-only) and the full derivation path relative
// to the master key. The pre-taproot entries are consulted before the
// taproot ones, mirroring the order a finalizer consumes them in.
func (s *DerivedSigner) findDerivation(pInput *psbt.PInput) ([]byte,
	[]uint32) {

	for _, derivation := range pInput.Bip32Derivation {
		match := s.key.MatchesKeySource(
			derivation.MasterKeyFingerprint, derivation.Bip32Path,
		)
		if match.IsSome() {
			return derivation.PubKey, derivation.Bip32Path
		}
	}

	for _, derivation := range pInput.TaprootBip32Derivation {
		match := s.key.MatchesKeySource(
			derivation.MasterKeyFingerprint, derivation.Bip32Path,
		)
		if match.IsSome() {
			return derivation.XOnlyPubKey, derivation.Bip32Path
		}
	}

	return nil, nil
}

// derivePrivKey walks the full derivation path from the signer's root key
// and extracts the private key at the end of it.
func (s *DerivedSigner) derivePrivKey(path []uint32) (*btcec.PrivateKey,
	error) {

	key := s.root
	for _, childIndex := range path {
		var err error
		key, err = key.Derive(childIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: deriving child %d: %w",
				ErrMissingKey, childIndex, err)
		}
	}

	privKey, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingKey, err)
	}

	return privKey, nil
}

// derivedKeyMatches checks the derived private key against the public key
// the PSBT claims for the derivation path. A 32 byte claimed key is
// compared on the x coordinate only, since x-only keys carry no parity
// information; anything else is compared in compressed form.
func derivedKeyMatches(privKey *btcec.PrivateKey, claimedPubKey []byte) bool {
	derivedPubKey := privKey.PubKey().SerializeCompressed()

	if len(claimedPubKey) == 32 {
		return bytes.Equal(derivedPubKey[1:], claimedPubKey)
	}

	return bytes.Equal(derivedPubKey, claimedPubKey)
}
