// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package signer implements signing of PSBT inputs from hierarchical
// deterministic key material.
//
// The package cross references the untrusted derivation metadata embedded in
// a PSBT (bip32_derivation and tap_key_origins) against trusted key records
// held by the caller, derives the exact child keys those entries demand,
// computes the digest mandated by each input's spending context (legacy,
// segwit v0, or taproot key/script path) and records standard conformant
// signatures back into the packet. Signing is idempotent: finalized inputs
// and already present signatures are left untouched and reported as success,
// so a packet can be progressively completed across multiple sessions.
//
// The packet is mutated in place and the caller retains ownership of it
// throughout; no signing call is safe to run concurrently with another
// accessor of the same packet.
package signer

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// SignMethod is the spending context an input is signed under. It determines
// both the digest algorithm and the PSBT field the resulting signature is
// written to.
type SignMethod uint8

const (
	// SignMethodLegacy signs a pre-segwit input with ECDSA over the
	// original sighash algorithm. The signature is recorded in the
	// input's partial signatures map.
	SignMethodLegacy SignMethod = iota

	// SignMethodSegwitV0 signs a segwit v0 input (p2wkh, p2wsh, or their
	// nested forms) with ECDSA over the BIP143 sighash. The signature is
	// recorded in the input's partial signatures map.
	SignMethodSegwitV0

	// SignMethodTaprootKeySpend signs a taproot input for which the
	// signing key is the input's internal key: the key path spend is
	// attempted with the BIP341 tweaked key, and any script leaves
	// associated with the key are signed as well.
	SignMethodTaprootKeySpend

	// SignMethodTaprootScriptSpend signs only the taproot script leaves
	// associated with the signing key, using the untweaked key.
	SignMethodTaprootScriptSpend
)

// String returns a human readable name for the sign method.
func (m SignMethod) String() string {
	switch m {
	case SignMethodLegacy:
		return "legacy"
	case SignMethodSegwitV0:
		return "segwit_v0"
	case SignMethodTaprootKeySpend:
		return "taproot_key_spend"
	case SignMethodTaprootScriptSpend:
		return "taproot_script_spend"
	default:
		return "unknown"
	}
}

// IsTaproot returns whether the sign method denotes a taproot spend.
func (m SignMethod) IsTaproot() bool {
	return m == SignMethodTaprootKeySpend ||
		m == SignMethodTaprootScriptSpend
}

// InputSigner is the capability shared by all signer variants of this
// package: attempt to sign a single input of the passed packet under the
// given spending context.
//
// A signer that is not applicable to the input (its key does not match any
// of the input's derivation metadata, the input is already finalized, or the
// requested signature is already present) returns nil without mutating the
// packet; only hard failures surface as errors. Third parties may implement
// this interface to plug custom key storage backends into a SignerGroup,
// wrapping their own failures in ErrExternal.
type InputSigner interface {
	// SignInput signs the input at inputIndex of the packet in place.
	SignInput(packet *psbt.Packet, inputIndex int,
		method SignMethod) error
}

// InputSignMethod infers the spending context of the input at the given
// index from its resolved previous output. Taproot inputs that carry an
// internal key are mapped to the key spend method; callers signing for a
// script-only key can request SignMethodTaprootScriptSpend explicitly.
//
// The second return value is false when the input's previous output cannot
// be resolved, in which case the input cannot be signed by this package.
func InputSignMethod(packet *psbt.Packet, inputIndex int) (SignMethod, bool) {
	if inputIndex < 0 || inputIndex >= len(packet.Inputs) ||
		inputIndex >= len(packet.UnsignedTx.TxIn) {

		return 0, false
	}

	pInput := &packet.Inputs[inputIndex]
	prevOut := resolvePrevOutput(packet, inputIndex)
	if prevOut == nil {
		return 0, false
	}

	switch {
	case txscript.IsPayToTaproot(prevOut.PkScript):
		if len(pInput.TaprootInternalKey) > 0 {
			return SignMethodTaprootKeySpend, true
		}
		return SignMethodTaprootScriptSpend, true

	case txscript.IsPayToWitnessPubKeyHash(prevOut.PkScript),
		txscript.IsPayToWitnessScriptHash(prevOut.PkScript):

		return SignMethodSegwitV0, true

	case txscript.IsPayToScriptHash(prevOut.PkScript):
		// A p2sh output is a segwit v0 spend exactly when the redeem
		// script is a witness program.
		if isWitnessProgram(pInput.RedeemScript) {
			return SignMethodSegwitV0, true
		}
		return SignMethodLegacy, true

	default:
		return SignMethodLegacy, true
	}
}

// isWitnessProgram returns whether the passed script is a valid v0 witness
// program.
func isWitnessProgram(script []byte) bool {
	if len(script) == 0 {
		return false
	}

	return txscript.IsPayToWitnessPubKeyHash(script) ||
		txscript.IsPayToWitnessScriptHash(script)
}

// isFinalized returns whether the input already carries final spending data.
// Finalized inputs are immutable to this package.
func isFinalized(pInput *psbt.PInput) bool {
	return len(pInput.FinalScriptSig) > 0 ||
		len(pInput.FinalScriptWitness) > 0
}
