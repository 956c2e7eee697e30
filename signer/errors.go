// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import "errors"

var (
	// ErrMissingKey is returned when no usable private key is available
	// for a required operation, for example when a derivation root turns
	// out to be a public key or a child key cannot be derived. A signer
	// that merely holds no key for an input reports success without
	// mutating the packet instead.
	ErrMissingKey = errors.New("missing private key")

	// ErrInvalidKey is returned when a key record matched an input's key
	// source but the key derived at the recorded path does not equal the
	// public key claimed by the PSBT. This signals either a corrupted or
	// tampered PSBT, or a bad derivation origin on the record.
	ErrInvalidKey = errors.New(
		"private key derives differently than expected",
	)

	// ErrUserCanceled is reserved for layers above this package that gate
	// signing on user confirmation.
	ErrUserCanceled = errors.New("user canceled the operation")

	// ErrInputIndexOutOfRange is returned when the input index exceeds
	// either the packet's input list or its unsigned transaction's input
	// list.
	ErrInputIndexOutOfRange = errors.New("input index out of range")

	// ErrMissingNonWitnessUtxo is reserved for layers above this package.
	ErrMissingNonWitnessUtxo = errors.New("missing non-witness utxo")

	// ErrInvalidNonWitnessUtxo is reserved for layers above this package.
	ErrInvalidNonWitnessUtxo = errors.New("invalid non-witness utxo")

	// ErrMissingWitnessUtxo is returned when a previous output required
	// for digest computation cannot be resolved from either the
	// witness_utxo or non_witness_utxo fields.
	ErrMissingWitnessUtxo = errors.New("missing witness utxo")

	// ErrMissingWitnessScript is reserved for layers above this package.
	ErrMissingWitnessScript = errors.New("missing witness script")

	// ErrMissingHdKeypath is reserved for layers above this package that
	// require derivation metadata to be present on every input.
	ErrMissingHdKeypath = errors.New(
		"missing fingerprint and derivation path",
	)

	// ErrNonStandardSighash is reserved for layers above this package
	// that enforce a SIGHASH_ALL only policy.
	ErrNonStandardSighash = errors.New(
		"psbt contains a non-standard sighash",
	)

	// ErrInvalidSighash is returned when the input's sighash type is not
	// valid for the signing context in use.
	ErrInvalidSighash = errors.New(
		"invalid sighash for the signing context in use",
	)

	// ErrSighashTaproot wraps failures while computing the digest to sign
	// a taproot input.
	ErrSighashTaproot = errors.New("taproot sighash computation failed")

	// ErrPsbt wraps failures of the underlying ECDSA sighash routine.
	ErrPsbt = errors.New("psbt sighash computation failed")

	// ErrExternal is reserved for third party InputSigner implementations
	// (e.g. custom key storage backends) so they can surface their own
	// failures without extending this package's taxonomy.
	ErrExternal = errors.New("external signer error")
)
