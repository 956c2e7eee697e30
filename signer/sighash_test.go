// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// newPrevTx builds a transaction carrying the given script as its second
// output, so tests exercise output selection by index rather than always
// spending output zero.
func newPrevTx(t *testing.T, pkScript []byte, value int64) *wire.MsgTx {
	t.Helper()

	prevTx := wire.NewMsgTx(2)
	fundingOutPoint := testOutPoint(0xf0)
	prevTx.AddTxIn(wire.NewTxIn(&fundingOutPoint, nil, nil))
	prevTx.AddTxOut(wire.NewTxOut(1_000, []byte{txscript.OP_RETURN}))
	prevTx.AddTxOut(wire.NewTxOut(value, pkScript))

	return prevTx
}

// TestSignNonWitnessUtxo signs an input whose previous output is supplied
// only through a full non-witness utxo transaction, resolved by matching
// txid and referenced output index.
func TestSignNonWitnessUtxo(t *testing.T) {
	t.Parallel()

	root := testRootKey(t)
	privKey := derivePrivKey(t, root, []uint32{8, 0})
	pkScript := p2wkhScript(t, privKey.PubKey())

	prevTx := newPrevTx(t, pkScript, 100_000)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{
		Hash:  prevTx.TxHash(),
		Index: 1,
	}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(90_000, pkScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	packet.Inputs[0].NonWitnessUtxo = prevTx

	// The sign method inference also runs through prevout resolution.
	method, ok := InputSignMethod(packet, 0)
	require.True(t, ok)
	require.Equal(t, SignMethodSegwitV0, method)

	require.NoError(
		t, NewKeySigner(privKey).SignInput(packet, 0, method),
	)

	pInput := &packet.Inputs[0]
	require.Len(t, pInput.PartialSigs, 1)

	sigBytes := pInput.PartialSigs[0].Signature
	sig, err := ecdsa.ParseDERSignature(sigBytes[:len(sigBytes)-1])
	require.NoError(t, err)

	prevOut := prevTx.TxOut[1]
	fetcher := txscript.NewCannedPrevOutputFetcher(
		prevOut.PkScript, prevOut.Value,
	)
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)
	digest, err := txscript.CalcWitnessSigHash(
		prevOut.PkScript, sigHashes, txscript.SigHashAll,
		packet.UnsignedTx, 0, prevOut.Value,
	)
	require.NoError(t, err)
	require.True(t, sig.Verify(digest, privKey.PubKey()))
}

// TestNonWitnessUtxoMismatch checks that a non-witness utxo is treated as
// unresolvable when its txid does not match the input's referenced previous
// output, or when the referenced output index does not exist in it. Either
// way the taproot digest must fail with the missing utxo error rather than
// trusting the mismatched transaction.
func TestNonWitnessUtxoMismatch(t *testing.T) {
	t.Parallel()

	root := testRootKey(t)
	privKey := derivePrivKey(t, root, []uint32{8, 1})
	outputKey := txscript.ComputeTaprootKeyNoScript(privKey.PubKey())

	pkScript, err := txscript.PayToTaprootScript(outputKey)
	require.NoError(t, err)

	prevTx := newPrevTx(t, pkScript, 100_000)

	newPacket := func(t *testing.T, prevOutPoint wire.OutPoint) *psbt.Packet {
		tx := wire.NewMsgTx(2)
		tx.AddTxIn(wire.NewTxIn(&prevOutPoint, nil, nil))
		tx.AddTxOut(wire.NewTxOut(90_000, pkScript))

		packet, err := psbt.NewFromUnsignedTx(tx)
		require.NoError(t, err)

		packet.Inputs[0].NonWitnessUtxo = prevTx
		packet.Inputs[0].TaprootInternalKey = schnorr.SerializePubKey(
			privKey.PubKey(),
		)

		return packet
	}

	t.Run("txid mismatch", func(t *testing.T) {
		t.Parallel()

		// The referenced outpoint belongs to a different transaction
		// than the one embedded as the non-witness utxo.
		packet := newPacket(t, testOutPoint(0x0c))

		err := NewKeySigner(privKey).SignInput(
			packet, 0, SignMethodTaprootKeySpend,
		)
		require.ErrorIs(t, err, ErrMissingWitnessUtxo)
		require.Empty(t, packet.Inputs[0].TaprootKeySpendSig)
	})

	t.Run("output index out of range", func(t *testing.T) {
		t.Parallel()

		packet := newPacket(t, wire.OutPoint{
			Hash:  prevTx.TxHash(),
			Index: uint32(len(prevTx.TxOut)),
		})

		err := NewKeySigner(privKey).SignInput(
			packet, 0, SignMethodTaprootKeySpend,
		)
		require.ErrorIs(t, err, ErrMissingWitnessUtxo)
		require.Empty(t, packet.Inputs[0].TaprootKeySpendSig)
	})
}
