// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/psbtsigner/signer"
	"github.com/jrick/logrotate/rotator"
)

// logWriter duplicates log output to stdout and, when one is configured, to
// the rotating log file.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}

	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is nil until initLogRotator is called with a log file
	// path.
	logRotator *rotator.Rotator

	log       = backendLog.Logger("PSGN")
	signerLog = backendLog.Logger("SIGN")
)

func init() {
	signer.UseLogger(signerLog)
}

// initLogRotator sets up the rotating log file the logWriter duplicates
// into.
func initLogRotator(logFile string) error {
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("unable to create log rotator: %w", err)
	}

	logRotator = r

	return nil
}

// setLogLevels applies the given level string to all subsystem loggers.
func setLogLevels(levelStr string) error {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		return fmt.Errorf("invalid debug level %q", levelStr)
	}

	log.SetLevel(level)
	signerLog.SetLevel(level)

	return nil
}
