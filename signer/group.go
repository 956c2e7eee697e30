// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
)

// SignerGroup bundles multiple input signers behind the InputSigner
// interface and runs them in the order they were added. Signing stops at
// the first signer that returns an error; signatures written by earlier
// signers stay in the packet.
type SignerGroup struct {
	signers []InputSigner
}

// A compile time check to ensure SignerGroup implements the InputSigner
// interface.
var _ InputSigner = (*SignerGroup)(nil)

// NewSignerGroup creates a group over the given signers, run in the order
// they are passed.
func NewSignerGroup(signers ...InputSigner) *SignerGroup {
	return &SignerGroup{
		signers: signers,
	}
}

// AddSigner appends a signer to the group, to run after all signers added
// before it.
func (g *SignerGroup) AddSigner(s InputSigner) {
	g.signers = append(g.signers, s)
}

// Merge appends all signers of the other group to this one, keeping the
// relative order within each group intact.
func (g *SignerGroup) Merge(other *SignerGroup) {
	g.signers = append(g.signers, other.signers...)
}

// SignInput runs every signer in the group against the input at the given
// index, stopping at and returning the first error encountered.
//
// This is part of the InputSigner interface.
func (g *SignerGroup) SignInput(packet *psbt.Packet, inputIndex int,
	method SignMethod) error {

	for _, s := range g.signers {
		if err := s.SignInput(packet, inputIndex, method); err != nil {
			return err
		}
	}

	return nil
}

// SignPacket runs the group over every input of the packet, inferring the
// sign method of each input from its previous output and derivation info.
// Inputs whose sign method cannot be determined are skipped. On error the
// signatures added to earlier inputs remain in the packet.
func (g *SignerGroup) SignPacket(packet *psbt.Packet) error {
	for inputIndex := range packet.Inputs {
		method, ok := InputSignMethod(packet, inputIndex)
		if !ok {
			log.Debugf("Skipping input %d: unable to determine "+
				"sign method", inputIndex)
			continue
		}

		if err := g.SignInput(packet, inputIndex, method); err != nil {
			return err
		}
	}

	return nil
}
