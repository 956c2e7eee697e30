// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// signCall records a single SignInput invocation on a recordingSigner.
type signCall struct {
	tag        string
	inputIndex int
	method     SignMethod
}

// recordingSigner is an InputSigner that appends every invocation to a
// shared call log and optionally fails.
type recordingSigner struct {
	tag   string
	calls *[]signCall
	err   error
}

func (r *recordingSigner) SignInput(_ *psbt.Packet, inputIndex int,
	method SignMethod) error {

	*r.calls = append(*r.calls, signCall{
		tag:        r.tag,
		inputIndex: inputIndex,
		method:     method,
	})

	return r.err
}

// TestSignerGroupOrder checks that the group runs its signers in insertion
// order.
func TestSignerGroupOrder(t *testing.T) {
	t.Parallel()

	root := testRootKey(t)
	privKey := derivePrivKey(t, root, []uint32{0})
	packet := newTestPacket(t, p2wkhScript(t, privKey.PubKey()), 100_000)

	var calls []signCall
	group := NewSignerGroup(
		&recordingSigner{tag: "a", calls: &calls},
		&recordingSigner{tag: "b", calls: &calls},
	)
	group.AddSigner(&recordingSigner{tag: "c", calls: &calls})

	require.NoError(t, group.SignInput(packet, 0, SignMethodSegwitV0))

	require.Equal(t, []signCall{
		{tag: "a", inputIndex: 0, method: SignMethodSegwitV0},
		{tag: "b", inputIndex: 0, method: SignMethodSegwitV0},
		{tag: "c", inputIndex: 0, method: SignMethodSegwitV0},
	}, calls)
}

// TestSignerGroupFirstError checks that the first failing signer stops the
// group and that later signers never run.
func TestSignerGroupFirstError(t *testing.T) {
	t.Parallel()

	root := testRootKey(t)
	privKey := derivePrivKey(t, root, []uint32{0})
	packet := newTestPacket(t, p2wkhScript(t, privKey.PubKey()), 100_000)

	var calls []signCall
	externalErr := fmt.Errorf("%w: key store unavailable", ErrExternal)
	group := NewSignerGroup(
		&recordingSigner{tag: "a", calls: &calls},
		&recordingSigner{tag: "b", calls: &calls, err: externalErr},
		&recordingSigner{tag: "c", calls: &calls},
	)

	err := group.SignInput(packet, 0, SignMethodSegwitV0)
	require.ErrorIs(t, err, ErrExternal)

	require.Equal(t, []signCall{
		{tag: "a", inputIndex: 0, method: SignMethodSegwitV0},
		{tag: "b", inputIndex: 0, method: SignMethodSegwitV0},
	}, calls)
}

// TestSignerGroupMerge checks that merging two groups keeps the relative
// order within each group.
func TestSignerGroupMerge(t *testing.T) {
	t.Parallel()

	root := testRootKey(t)
	privKey := derivePrivKey(t, root, []uint32{0})
	packet := newTestPacket(t, p2wkhScript(t, privKey.PubKey()), 100_000)

	var calls []signCall
	first := NewSignerGroup(
		&recordingSigner{tag: "a", calls: &calls},
		&recordingSigner{tag: "b", calls: &calls},
	)
	second := NewSignerGroup(
		&recordingSigner{tag: "c", calls: &calls},
		&recordingSigner{tag: "d", calls: &calls},
	)

	first.Merge(second)
	require.NoError(t, first.SignInput(packet, 0, SignMethodSegwitV0))

	tags := make([]string, len(calls))
	for i, call := range calls {
		tags[i] = call.tag
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, tags)
}

// TestSignerGroupSignPacket checks the per-input method inference of
// SignPacket and that inputs without a resolvable previous output are
// skipped rather than failing the whole packet.
func TestSignerGroupSignPacket(t *testing.T) {
	t.Parallel()

	root := testRootKey(t)
	privKey := derivePrivKey(t, root, []uint32{0})
	pkScript := p2wkhScript(t, privKey.PubKey())

	tx := wire.NewMsgTx(2)
	firstOutPoint := testOutPoint(0x01)
	secondOutPoint := testOutPoint(0x02)
	tx.AddTxIn(wire.NewTxIn(&firstOutPoint, nil, nil))
	tx.AddTxIn(wire.NewTxIn(&secondOutPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(90_000, pkScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	// Only the first input resolves; the second has no utxo info at all.
	packet.Inputs[0].WitnessUtxo = wire.NewTxOut(100_000, pkScript)

	var calls []signCall
	group := NewSignerGroup(&recordingSigner{tag: "a", calls: &calls})

	require.NoError(t, group.SignPacket(packet))

	require.Equal(t, []signCall{
		{tag: "a", inputIndex: 0, method: SignMethodSegwitV0},
	}, calls)
}
