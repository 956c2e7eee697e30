// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keydesc models descriptor style key records: an extended public
// key annotated with an optional key origin, a relative derivation path and
// an optional trailing wildcard. It also implements the matching of such
// records against the key source metadata (master fingerprint plus full
// derivation path) recorded on PSBT inputs.
package keydesc

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrInvalidKeyExpression is returned when a key expression cannot be
	// parsed.
	ErrInvalidKeyExpression = errors.New("invalid key expression")

	// ErrInvalidFingerprint is returned when a key origin fingerprint is
	// not exactly four hex encoded bytes.
	ErrInvalidFingerprint = errors.New(
		"origin fingerprint must be 4 hex encoded bytes",
	)
)

// fingerprintSize is the size of an extended key fingerprint in bytes.
const fingerprintSize = 4

// KeyOrigin is the provenance of a key record: the fingerprint of the master
// key it was derived from and the derivation path from that master key to
// the record's extended key. It is recorded once, when the key is imported.
type KeyOrigin struct {
	// Fingerprint is the master key fingerprint, encoded the same way the
	// psbt package encodes MasterKeyFingerprint: the first four bytes of
	// the HASH160 of the serialized public key, read as a little endian
	// uint32.
	Fingerprint uint32

	// Path is the derivation path from the master key down to the
	// record's extended key.
	Path Path
}

// Key is a descriptor style key record: an extended public key, the optional
// origin it was imported under, a relative derivation path below the key,
// and an optional wildcard standing for a single per-use child index at the
// end of the path.
type Key struct {
	// XPub is the record's extended public key.
	XPub *hdkeychain.ExtendedKey

	// Origin is the key origin recorded at import time, if any.
	Origin fn.Option[KeyOrigin]

	// Path is the relative derivation path below the extended key (below
	// the origin, if one is present).
	Path Path

	// Wildcard indicates that the path ends in a single placeholder
	// element that is resolved per use, e.g. an address index.
	Wildcard bool

	// pubKey is the parsed EC public key of XPub, cached at construction.
	pubKey *btcec.PublicKey
}

// NewKey constructs a key record from its parts. The extended key may be
// public or private; only its public form is used for matching.
func NewKey(xpub *hdkeychain.ExtendedKey, origin fn.Option[KeyOrigin],
	path Path, wildcard bool) (*Key, error) {

	pubKey, err := xpub.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("unable to extract public key: %w", err)
	}

	return &Key{
		XPub:     xpub,
		Origin:   origin,
		Path:     path,
		Wildcard: wildcard,
		pubKey:   pubKey,
	}, nil
}

// ParseKey parses the output descriptor key expression form of a key record,
// e.g. "[9d6b0bd1/86'/0'/0']xpub6BgBg.../0/*". The origin bracket and the
// trailing path (including the "*" wildcard element) are both optional.
func ParseKey(expr string) (*Key, error) {
	origin := fn.None[KeyOrigin]()

	// Parse the optional key origin bracket.
	if strings.HasPrefix(expr, "[") {
		end := strings.Index(expr, "]")
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated key origin",
				ErrInvalidKeyExpression)
		}

		parsedOrigin, err := parseOrigin(expr[1:end])
		if err != nil {
			return nil, err
		}

		origin = fn.Some(parsedOrigin)
		expr = expr[end+1:]
	}

	// The extended key runs up to the first path separator, if any.
	keyStr, pathStr, _ := strings.Cut(expr, "/")
	if keyStr == "" {
		return nil, fmt.Errorf("%w: missing extended key",
			ErrInvalidKeyExpression)
	}

	xpub, err := hdkeychain.NewKeyFromString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyExpression, err)
	}

	// Split off a trailing wildcard element before parsing the relative
	// path.
	wildcard := false
	switch {
	case pathStr == "*":
		wildcard = true
		pathStr = ""

	case strings.HasSuffix(pathStr, "/*"):
		wildcard = true
		pathStr = strings.TrimSuffix(pathStr, "/*")
	}

	var path Path
	if pathStr != "" {
		path, err = ParsePath(pathStr)
		if err != nil {
			return nil, err
		}
	}

	return NewKey(xpub, origin, path, wildcard)
}

// parseOrigin parses the contents of a key origin bracket, e.g.
// "9d6b0bd1/86'/0'/0'".
func parseOrigin(s string) (KeyOrigin, error) {
	fingerprintStr, pathStr, _ := strings.Cut(s, "/")

	fingerprintBytes, err := hex.DecodeString(fingerprintStr)
	if err != nil || len(fingerprintBytes) != fingerprintSize {
		return KeyOrigin{}, ErrInvalidFingerprint
	}

	var path Path
	if pathStr != "" {
		path, err = ParsePath(pathStr)
		if err != nil {
			return KeyOrigin{}, err
		}
	}

	return KeyOrigin{
		Fingerprint: binary.LittleEndian.Uint32(fingerprintBytes),
		Path:        path,
	}, nil
}

// PubKey returns the EC public key of the record's extended key.
func (k *Key) PubKey() *btcec.PublicKey {
	return k.pubKey
}

// Fingerprint returns the fingerprint of the record's own extended key (not
// the origin fingerprint), encoded in the psbt package's little endian
// convention.
func (k *Key) Fingerprint() uint32 {
	hash := btcutil.Hash160(k.pubKey.SerializeCompressed())
	return binary.LittleEndian.Uint32(hash[:fingerprintSize])
}

// comparisonSource returns the fingerprint and full path this record is
// compared under: the origin fingerprint and the origin path extended by
// the relative path if an origin is present, otherwise the key's own
// fingerprint and the bare relative path.
func (k *Key) comparisonSource() (uint32, Path) {
	if k.Origin.IsSome() {
		origin := k.Origin.UnwrapOr(KeyOrigin{})
		return origin.Fingerprint, origin.Path.Extend(k.Path...)
	}

	return k.Fingerprint(), k.Path
}

// MatchesKeySource decides whether this key record denotes the same key as
// the passed key source read from a PSBT input. If the record carries a
// wildcard and the PSBT path is non-empty, the last element of the PSBT
// path is excluded from the comparison, standing in for the arbitrary
// per-use index.
//
// On a match, the (possibly wildcard trimmed) path is returned for
// informational use. Callers deriving a concrete key must always use the
// full untrimmed PSBT path; the trimming affects only the match decision,
// never the derivation.
func (k *Key) MatchesKeySource(fingerprint uint32,
	path []uint32) fn.Option[Path] {

	compareFingerprint, comparePath := k.comparisonSource()

	trimmed := path
	if k.Wildcard && len(path) > 0 {
		trimmed = trimmed[:len(trimmed)-1]
	}

	if compareFingerprint != fingerprint || !comparePath.Equal(trimmed) {
		return fn.None[Path]()
	}

	// Return a copy so the caller cannot alias the PSBT owned slice.
	return fn.Some(append(Path(nil), trimmed...))
}
