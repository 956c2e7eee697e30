// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// resolvePrevOutput returns the previous output spent by the input at the
// given index, or nil if it cannot be determined. The input's witness_utxo
// is preferred; the non_witness_utxo is used as a fallback only if its
// transaction id matches the id referenced by the unsigned transaction's
// input, taking the referenced output by index.
func resolvePrevOutput(packet *psbt.Packet, inputIndex int) *wire.TxOut {
	pInput := &packet.Inputs[inputIndex]
	if pInput.WitnessUtxo != nil {
		return pInput.WitnessUtxo
	}

	nonWitnessUtxo := pInput.NonWitnessUtxo
	if nonWitnessUtxo == nil {
		return nil
	}

	prevOutPoint := packet.UnsignedTx.TxIn[inputIndex].PreviousOutPoint
	if nonWitnessUtxo.TxHash() != prevOutPoint.Hash {
		return nil
	}
	if prevOutPoint.Index >= uint32(len(nonWitnessUtxo.TxOut)) {
		return nil
	}

	return nonWitnessUtxo.TxOut[prevOutPoint.Index]
}

// isTaprootSighash returns whether the passed sighash type is valid for a
// taproot spend per BIP341.
func isTaprootSighash(hashType txscript.SigHashType) bool {
	switch hashType {
	case txscript.SigHashDefault, txscript.SigHashAll,
		txscript.SigHashNone, txscript.SigHashSingle:

		return true

	case txscript.SigHashAll | txscript.SigHashAnyOneCanPay,
		txscript.SigHashNone | txscript.SigHashAnyOneCanPay,
		txscript.SigHashSingle | txscript.SigHashAnyOneCanPay:

		return true

	default:
		return false
	}
}

// isEcdsaSighash returns whether the passed sighash type is one of the
// standard types valid for a legacy or segwit v0 spend.
func isEcdsaSighash(hashType txscript.SigHashType) bool {
	switch hashType &^ txscript.SigHashAnyOneCanPay {
	case txscript.SigHashAll, txscript.SigHashNone,
		txscript.SigHashSingle:

		return true
	default:
		return false
	}
}

// taprootSignatureHash computes the BIP341 digest for the input at the
// given index, along with the resolved sighash type. A nil leafHash selects
// the key path digest; a non-nil leafHash selects the script path digest
// for that leaf, whose script must be present in the input's leaf script
// set. Script path digests assume no OP_CODESEPARATOR use.
//
// Previous outputs are resolved per resolvePrevOutput. If the
// sighash type carries the ANYONECANPAY flag, only the signed input's own
// previous output is required; otherwise every input's previous output must
// be resolvable.
func taprootSignatureHash(packet *psbt.Packet, inputIndex int,
	leafHash []byte) ([]byte, txscript.SigHashType, error) {

	if inputIndex < 0 || inputIndex >= len(packet.Inputs) ||
		inputIndex >= len(packet.UnsignedTx.TxIn) {

		return nil, 0, ErrInputIndexOutOfRange
	}

	pInput := &packet.Inputs[inputIndex]

	// An absent sighash type defaults to SIGHASH_DEFAULT, which commits
	// to the same data as SIGHASH_ALL.
	hashType := pInput.SighashType
	if !isTaprootSighash(hashType) {
		return nil, 0, ErrInvalidSighash
	}

	fetcher, err := prevOutputFetcher(packet, inputIndex, hashType)
	if err != nil {
		return nil, 0, err
	}

	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)

	// A nil leaf hash selects the key path spend.
	if leafHash == nil {
		digest, err := txscript.CalcTaprootSignatureHash(
			sigHashes, hashType, packet.UnsignedTx, inputIndex,
			fetcher,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w",
				ErrSighashTaproot, err)
		}

		return digest, hashType, nil
	}

	leaf, err := findLeafScript(pInput, leafHash)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrSighashTaproot, err)
	}

	digest, err := txscript.CalcTapscriptSignaturehash(
		sigHashes, hashType, packet.UnsignedTx, inputIndex, fetcher,
		leaf,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrSighashTaproot, err)
	}

	return digest, hashType, nil
}

// prevOutputFetcher builds the previous output fetcher required to compute
// a taproot digest for the input at the given index. Outside ANYONECANPAY,
// partial previous output information is not acceptable: every input must
// resolve or the operation fails with ErrMissingWitnessUtxo.
func prevOutputFetcher(packet *psbt.Packet, inputIndex int,
	hashType txscript.SigHashType) (txscript.PrevOutputFetcher, error) {

	// With ANYONECANPAY the digest commits only to the signed input's
	// own previous output, so that is all that is required.
	if hashType&txscript.SigHashAnyOneCanPay != 0 {
		prevOut := resolvePrevOutput(packet, inputIndex)
		if prevOut == nil {
			return nil, ErrMissingWitnessUtxo
		}

		return txscript.NewCannedPrevOutputFetcher(
			prevOut.PkScript, prevOut.Value,
		), nil
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i := range packet.Inputs {
		prevOut := resolvePrevOutput(packet, i)
		if prevOut == nil {
			return nil, ErrMissingWitnessUtxo
		}

		fetcher.AddPrevOut(
			packet.UnsignedTx.TxIn[i].PreviousOutPoint, prevOut,
		)
	}

	return fetcher, nil
}

// findLeafScript looks up the tap leaf whose hash equals the passed leaf
// hash among the input's recorded leaf scripts.
func findLeafScript(pInput *psbt.PInput, leafHash []byte) (txscript.TapLeaf,
	error) {

	for _, leafScript := range pInput.TaprootLeafScript {
		leaf := txscript.NewTapLeaf(
			leafScript.LeafVersion, leafScript.Script,
		)

		hash := leaf.TapHash()
		if bytes.Equal(hash[:], leafHash) {
			return leaf, nil
		}
	}

	return txscript.TapLeaf{}, fmt.Errorf("no leaf script for leaf hash %x",
		leafHash)
}

// ecdsaSignatureHash computes the digest an ECDSA signature for the input
// at the given index must cover, along with the resolved sighash type. The
// method selects between the legacy and the BIP143 segwit v0 algorithm.
func ecdsaSignatureHash(packet *psbt.Packet, inputIndex int,
	method SignMethod) ([]byte, txscript.SigHashType, error) {

	pInput := &packet.Inputs[inputIndex]

	// An absent sighash type defaults to SIGHASH_ALL for pre-taproot
	// spends.
	hashType := pInput.SighashType
	if hashType == txscript.SigHashDefault {
		hashType = txscript.SigHashAll
	}
	if !isEcdsaSighash(hashType) {
		return nil, 0, ErrInvalidSighash
	}

	prevOut := resolvePrevOutput(packet, inputIndex)
	if prevOut == nil {
		return nil, 0, fmt.Errorf("%w: missing spend utxo", ErrPsbt)
	}

	if method == SignMethodLegacy {
		// For a p2sh spend the signature covers the redeem script,
		// otherwise the previous output script itself.
		script := prevOut.PkScript
		if len(pInput.RedeemScript) > 0 {
			script = pInput.RedeemScript
		}

		digest, err := txscript.CalcSignatureHash(
			script, hashType, packet.UnsignedTx, inputIndex,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrPsbt, err)
		}

		return digest, hashType, nil
	}

	scriptCode, err := segwitV0ScriptCode(pInput, prevOut)
	if err != nil {
		return nil, 0, err
	}

	// The BIP143 digest only commits to the signed input's own previous
	// output, so a canned fetcher over it suffices.
	fetcher := txscript.NewCannedPrevOutputFetcher(
		prevOut.PkScript, prevOut.Value,
	)
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)

	digest, err := txscript.CalcWitnessSigHash(
		scriptCode, sigHashes, hashType, packet.UnsignedTx,
		inputIndex, prevOut.Value,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrPsbt, err)
	}

	return digest, hashType, nil
}

// segwitV0ScriptCode determines the script a BIP143 digest covers: the
// witness script for p2wsh spends, or the p2wkh witness program (direct or
// nested behind p2sh) for key hash spends.
func segwitV0ScriptCode(pInput *psbt.PInput, prevOut *wire.TxOut) ([]byte,
	error) {

	switch {
	case len(pInput.WitnessScript) > 0:
		return pInput.WitnessScript, nil

	case txscript.IsPayToWitnessPubKeyHash(prevOut.PkScript):
		return prevOut.PkScript, nil

	case len(pInput.RedeemScript) > 0 &&
		txscript.IsPayToWitnessPubKeyHash(pInput.RedeemScript):

		return pInput.RedeemScript, nil

	default:
		return nil, fmt.Errorf("%w: missing witness script", ErrPsbt)
	}
}
