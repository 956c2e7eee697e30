// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keydesc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

var (
	// ErrInvalidPathElement is returned when a derivation path contains an
	// element that is not a valid child index.
	ErrInvalidPathElement = errors.New("invalid derivation path element")

	// ErrPathTooDeep is returned when a derivation path exceeds the
	// maximum BIP32 depth of 255, since deeper derivations cannot be
	// serialized in an extended key.
	ErrPathTooDeep = errors.New("derivation path exceeds max BIP32 depth")
)

// maxPathDepth is the theoretical maximum depth of a BIP32 derivation path,
// limited by the single depth byte in the extended key serialization.
const maxPathDepth = 255

// Path is a BIP32 derivation path, expressed as the raw child indices used
// for derivation. Hardened elements carry the hdkeychain.HardenedKeyStart
// offset, matching the encoding used in PSBT bip32_derivation fields.
type Path []uint32

// ParsePath parses the human readable form of a derivation path, e.g.
// "m/86'/0'/0'/0/1". The leading "m/" is optional and both the apostrophe
// and "h" markers are accepted for hardened elements. Wildcard elements are
// not valid in a bare path; they only appear in key expressions (see
// ParseKey).
func ParsePath(s string) (Path, error) {
	s = strings.TrimPrefix(s, "m/")
	s = strings.TrimPrefix(s, "M/")

	// A bare "m" denotes the empty path.
	if s == "" || s == "m" || s == "M" {
		return Path{}, nil
	}

	elements := strings.Split(s, "/")
	if len(elements) > maxPathDepth {
		return nil, ErrPathTooDeep
	}

	path := make(Path, 0, len(elements))
	for _, element := range elements {
		index, err := parsePathElement(element)
		if err != nil {
			return nil, err
		}

		path = append(path, index)
	}

	return path, nil
}

// parsePathElement parses a single path element, applying the hardened
// offset if the element carries a hardened marker.
func parsePathElement(element string) (uint32, error) {
	if element == "" {
		return 0, fmt.Errorf("%w: empty element", ErrInvalidPathElement)
	}

	hardened := false
	switch element[len(element)-1] {
	case '\'', 'h', 'H':
		hardened = true
		element = element[:len(element)-1]
	}

	index, err := strconv.ParseUint(element, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPathElement, element)
	}

	if index >= hdkeychain.HardenedKeyStart {
		return 0, fmt.Errorf("%w: index %d out of range",
			ErrInvalidPathElement, index)
	}

	if hardened {
		index += hdkeychain.HardenedKeyStart
	}

	// The above checks ensure the value fits in a uint32.
	//
	//nolint:gosec
	return uint32(index), nil
}

// String returns the human readable form of the path, e.g. "m/86'/0'/0'".
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString("m")

	for _, index := range p {
		sb.WriteString("/")
		if index >= hdkeychain.HardenedKeyStart {
			sb.WriteString(strconv.FormatUint(
				uint64(index-hdkeychain.HardenedKeyStart), 10,
			))
			sb.WriteString("'")
		} else {
			sb.WriteString(strconv.FormatUint(uint64(index), 10))
		}
	}

	return sb.String()
}

// Equal returns whether the path is element-wise equal to the passed raw
// index slice.
func (p Path) Equal(other []uint32) bool {
	if len(p) != len(other) {
		return false
	}

	for i, index := range p {
		if index != other[i] {
			return false
		}
	}

	return true
}

// Extend returns a new path consisting of this path followed by the passed
// tail. The receiver is not modified.
func (p Path) Extend(tail ...uint32) Path {
	extended := make(Path, 0, len(p)+len(tail))
	extended = append(extended, p...)
	extended = append(extended, tail...)

	return extended
}
