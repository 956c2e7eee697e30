// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"
)

// config holds the command line options of psbtsign.
type config struct {
	Psbt string `long:"psbt" description:"The PSBT to sign, either as base64 or as the path to a file holding the base64 or binary serialization. Read from stdin if omitted."`

	Keys []string `long:"key" description:"Descriptor style key record to sign for, e.g. \"[9d6b0bd1/86'/0'/0']xpub.../0/*\". May be given multiple times."`

	Output string `long:"out" description:"Write the signed PSBT to this file instead of stdout."`

	Finalize bool `long:"finalize" description:"Try to finalize all inputs after signing."`

	TestNet bool `long:"testnet" description:"Expect testnet extended keys."`

	SimNet bool `long:"simnet" description:"Expect simnet extended keys."`

	LogFile string `long:"logfile" description:"Write logs to this file in addition to stdout."`

	DebugLevel string `long:"debuglevel" default:"info" description:"Logging level {trace, debug, info, warn, error, critical}."`
}

// netParams returns the chain parameters selected by the network flags.
func (c *config) netParams() *chaincfg.Params {
	switch {
	case c.TestNet:
		return &chaincfg.TestNet3Params
	case c.SimNet:
		return &chaincfg.SimNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// loadConfig parses the command line options into a validated config.
func loadConfig() (*config, error) {
	cfg := &config{}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		// The help flag prints usage to stdout on its own.
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) &&
			flagsErr.Type == flags.ErrHelp {

			os.Exit(0)
		}

		return nil, err
	}

	if cfg.TestNet && cfg.SimNet {
		return nil, fmt.Errorf("--testnet and --simnet are " +
			"mutually exclusive")
	}

	if len(cfg.Keys) == 0 {
		return nil, fmt.Errorf("at least one --key record is required")
	}

	return cfg, nil
}
