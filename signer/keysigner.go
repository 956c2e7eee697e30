// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// KeySigner signs inputs with a single raw private key. The key is used
// as-is: for ECDSA spends the (low-R ground, low-S) signature is stored as
// a partial signature under the key's compressed public key, while for
// taproot spends the key acts as the internal key for key path spends and
// as a script leaf key for script path spends.
//
// Signing is idempotent: inputs that already carry a signature for the key
// (or that are already finalized) are left untouched, so a packet can be
// passed through the same signer repeatedly without growing duplicate
// signatures.
type KeySigner struct {
	privKey *btcec.PrivateKey
}

// A compile time check to ensure KeySigner implements the InputSigner
// interface.
var _ InputSigner = (*KeySigner)(nil)

// NewKeySigner creates a signer for the given private key. The signer does
// not take ownership of the key; the caller remains responsible for zeroing
// it when it is no longer needed.
func NewKeySigner(privKey *btcec.PrivateKey) *KeySigner {
	return &KeySigner{
		privKey: privKey,
	}
}

// SignInput signs the input at the given index using the signing algorithm
// selected by the sign method, then writes the resulting signature(s) into
// the input. Already finalized inputs are skipped without error.
//
// This is part of the InputSigner interface.
func (s *KeySigner) SignInput(packet *psbt.Packet, inputIndex int,
	method SignMethod) error {

	if inputIndex < 0 || inputIndex >= len(packet.Inputs) ||
		inputIndex >= len(packet.UnsignedTx.TxIn) {

		return ErrInputIndexOutOfRange
	}

	pInput := &packet.Inputs[inputIndex]
	if isFinalized(pInput) {
		return nil
	}

	if method.IsTaproot() {
		return s.signTaproot(packet, inputIndex, method)
	}

	return s.signEcdsa(packet, inputIndex, method)
}

// signEcdsa computes the legacy or segwit v0 digest for the input and adds
// an ECDSA partial signature for the signer's key, unless one is already
// present.
func (s *KeySigner) signEcdsa(packet *psbt.Packet, inputIndex int,
	method SignMethod) error {

	pInput := &packet.Inputs[inputIndex]
	pubKeyBytes := s.privKey.PubKey().SerializeCompressed()

	for _, partialSig := range pInput.PartialSigs {
		if bytes.Equal(partialSig.PubKey, pubKeyBytes) {
			return nil
		}
	}

	digest, hashType, err := ecdsaSignatureHash(packet, inputIndex, method)
	if err != nil {
		return err
	}

	sig := signEcdsaLowR(s.privKey, digest)

	// A signature that does not verify against its own key means the
	// signing arithmetic itself is broken, which is not recoverable.
	if !sig.Verify(digest, s.privKey.PubKey()) {
		panic(fmt.Sprintf("generated ECDSA signature for input %d "+
			"failed verification", inputIndex))
	}

	pInput.PartialSigs = append(pInput.PartialSigs, &psbt.PartialSig{
		PubKey:    pubKeyBytes,
		Signature: append(sig.Serialize(), byte(hashType)),
	})

	return nil
}

// signTaproot signs the taproot input at the given index. A key path
// signature is produced when the sign method requests a key spend and the
// signer's key is the input's internal key. Script path signatures are
// produced for every leaf hash the input's taproot derivation info lists
// for the signer's key. Both kinds skip signatures that already exist.
func (s *KeySigner) signTaproot(packet *psbt.Packet, inputIndex int,
	method SignMethod) error {

	pInput := &packet.Inputs[inputIndex]
	xOnlyBytes := schnorr.SerializePubKey(s.privKey.PubKey())

	signKeyPath := method == SignMethodTaprootKeySpend &&
		bytes.Equal(pInput.TaprootInternalKey, xOnlyBytes) &&
		len(pInput.TaprootKeySpendSig) == 0

	if signKeyPath {
		err := s.signTaprootKeyPath(packet, inputIndex)
		if err != nil {
			return err
		}
	}

	return s.signTaprootScriptLeaves(packet, inputIndex, xOnlyBytes)
}

// signTaprootKeyPath tweaks the signer's key with the input's merkle root
// (BIP86 style if none is present), signs the key path digest and stores
// the signature. Per BIP371 the sighash byte is appended only for
// non-default sighash types.
func (s *KeySigner) signTaprootKeyPath(packet *psbt.Packet,
	inputIndex int) error {

	pInput := &packet.Inputs[inputIndex]

	digest, hashType, err := taprootSignatureHash(packet, inputIndex, nil)
	if err != nil {
		return err
	}

	tweakedKey := txscript.TweakTaprootPrivKey(
		*s.privKey, pInput.TaprootMerkleRoot,
	)
	defer tweakedKey.Zero()

	sig, err := schnorr.Sign(tweakedKey, digest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPsbt, err)
	}

	if !sig.Verify(digest, tweakedKey.PubKey()) {
		panic(fmt.Sprintf("generated key path signature for input "+
			"%d failed verification", inputIndex))
	}

	sigBytes := sig.Serialize()
	if hashType != txscript.SigHashDefault {
		sigBytes = append(sigBytes, byte(hashType))
	}

	pInput.TaprootKeySpendSig = sigBytes

	return nil
}

// signTaprootScriptLeaves signs the script path digest of every leaf the
// input's taproot derivation info associates with the given x-only key,
// skipping leaves that already carry a signature for it.
func (s *KeySigner) signTaprootScriptLeaves(packet *psbt.Packet,
	inputIndex int, xOnlyBytes []byte) error {

	pInput := &packet.Inputs[inputIndex]

	for _, derivation := range pInput.TaprootBip32Derivation {
		if !bytes.Equal(derivation.XOnlyPubKey, xOnlyBytes) {
			continue
		}

		for _, leafHash := range derivation.LeafHashes {
			if hasScriptSpendSig(pInput, xOnlyBytes, leafHash) {
				continue
			}

			err := s.signTaprootLeaf(
				packet, inputIndex, xOnlyBytes, leafHash,
			)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// signTaprootLeaf signs the script path digest for a single leaf with the
// signer's untweaked key and appends the resulting script spend signature.
func (s *KeySigner) signTaprootLeaf(packet *psbt.Packet, inputIndex int,
	xOnlyBytes, leafHash []byte) error {

	pInput := &packet.Inputs[inputIndex]

	digest, hashType, err := taprootSignatureHash(
		packet, inputIndex, leafHash,
	)
	if err != nil {
		return err
	}

	sig, err := schnorr.Sign(s.privKey, digest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPsbt, err)
	}

	if !sig.Verify(digest, s.privKey.PubKey()) {
		panic(fmt.Sprintf("generated script path signature for "+
			"input %d failed verification", inputIndex))
	}

	pInput.TaprootScriptSpendSig = append(
		pInput.TaprootScriptSpendSig, &psbt.TaprootScriptSpendSig{
			XOnlyPubKey: xOnlyBytes,
			LeafHash:    leafHash,
			Signature:   sig.Serialize(),
			SigHash:     hashType,
		},
	)

	return nil
}

// hasScriptSpendSig returns whether the input already carries a script
// spend signature for the given key and leaf combination.
func hasScriptSpendSig(pInput *psbt.PInput, xOnlyBytes,
	leafHash []byte) bool {

	for _, scriptSig := range pInput.TaprootScriptSpendSig {
		if bytes.Equal(scriptSig.XOnlyPubKey, xOnlyBytes) &&
			bytes.Equal(scriptSig.LeafHash, leafHash) {

			return true
		}
	}

	return false
}
