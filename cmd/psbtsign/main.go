// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// psbtsign signs the inputs of a partially signed bitcoin transaction with
// keys derived from an extended private key, guided by descriptor style key
// records. The extended private key is prompted for interactively and never
// touches the command line or the environment.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/psbtsigner/internal/zero"
	"github.com/btcsuite/psbtsigner/keydesc"
	"github.com/btcsuite/psbtsigner/signer"
	"github.com/davecgh/go-spew/spew"
	"golang.org/x/term"
)

// psbtMagicB64 is the base64 encoding of the PSBT magic bytes "psbt\xff",
// used to tell a base64 serialization from a binary one.
const psbtMagicB64 = "cHNidP"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.LogFile != "" {
		if err := initLogRotator(cfg.LogFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := setLogLevels(cfg.DebugLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Errorf("Unable to sign PSBT: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config) error {
	packet, err := readPacket(cfg.Psbt)
	if err != nil {
		return fmt.Errorf("unable to read PSBT: %w", err)
	}

	params := cfg.netParams()

	keys := make([]*keydesc.Key, 0, len(cfg.Keys))
	for _, expr := range cfg.Keys {
		key, err := keydesc.ParseKey(expr)
		if err != nil {
			return fmt.Errorf("invalid key record %q: %w", expr,
				err)
		}

		keys = append(keys, key)
	}

	root, err := promptRootKey(params)
	if err != nil {
		return err
	}
	defer root.Zero()

	group := signer.NewSignerGroup()
	for _, key := range keys {
		derivedSigner, err := signer.NewDerivedSigner(key, root)
		if err != nil {
			return err
		}

		group.AddSigner(derivedSigner)
	}

	if err := group.SignPacket(packet); err != nil {
		return err
	}

	log.Tracef("Signed packet: %v", spew.Sdump(packet))

	if cfg.Finalize {
		if err := psbt.MaybeFinalizeAll(packet); err != nil {
			log.Warnf("Unable to finalize all inputs: %v", err)
		}
	}

	encoded, err := packet.B64Encode()
	if err != nil {
		return fmt.Errorf("unable to serialize signed PSBT: %w", err)
	}

	if cfg.Output != "" {
		err := os.WriteFile(cfg.Output, []byte(encoded+"\n"), 0o600)
		if err != nil {
			return fmt.Errorf("unable to write output file: %w",
				err)
		}

		log.Infof("Signed PSBT written to %v", cfg.Output)

		return nil
	}

	fmt.Println(encoded)

	return nil
}

// readPacket loads the PSBT from the --psbt flag value, which may be the
// base64 serialization itself, the path of a file holding the base64 or
// binary serialization, or empty to read from stdin.
func readPacket(source string) (*psbt.Packet, error) {
	var raw []byte
	switch {
	case source == "":
		stdin, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		raw = stdin

	case strings.HasPrefix(source, psbtMagicB64):
		raw = []byte(source)

	default:
		fileContent, err := os.ReadFile(source)
		if err != nil {
			return nil, err
		}
		raw = fileContent
	}

	raw = bytes.TrimSpace(raw)
	isBase64 := !bytes.HasPrefix(raw, []byte("psbt\xff"))

	return psbt.NewFromRawBytes(bytes.NewReader(raw), isBase64)
}

// promptRootKey interactively reads the extended private key used as the
// derivation root, making sure it never appears in the process arguments.
// The raw input is zeroed once parsed.
func promptRootKey(params *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {
	fmt.Fprintf(os.Stderr, "Enter extended private key: ")

	keyInput, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("unable to read key: %w", err)
	}
	defer zero.Bytes(keyInput)

	root, err := hdkeychain.NewKeyFromString(
		strings.TrimSpace(string(keyInput)),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid extended key: %w", err)
	}

	if !root.IsPrivate() {
		return nil, fmt.Errorf("extended key is not a private key")
	}
	if !root.IsForNet(params) {
		return nil, fmt.Errorf("extended key is for the wrong network")
	}

	return root, nil
}
