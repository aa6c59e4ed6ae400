// Package log is the sub-logger registry for switchgear, following the
// teacher's pattern of one btclog.Logger per package, all writing through a
// shared rotating log writer.
package log

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/build"
)

// Subsystem is the tag for this package's own logger.
const Subsystem = "SWGR"

var (
	logWriter = build.NewRotatingLogWriter()

	log = build.NewSubLogger(Subsystem, logWriter.GenSubLogger)
)

func init() {
	setSubLogger(Subsystem, log, nil)
}

// Logger returns this package's logger.
func Logger() btclog.Logger {
	return log
}

// Writer returns the shared rotating log writer so cmd/switchgeard can
// point it at a log file and debug level string.
func Writer() *build.RotatingLogWriter {
	return logWriter
}

// AddSubLogger creates and registers the logger of a subsystem, wiring its
// UseLogger hook if one is supplied. Core packages (pool, discovery, health,
// selector, balancer, offerprovider, lnurlpay) each get a distinct tag so
// debug levels can be set per-package.
func AddSubLogger(subsystem string, useLogger func(btclog.Logger)) btclog.Logger {
	logger := build.NewSubLogger(subsystem, logWriter.GenSubLogger)
	setSubLogger(subsystem, logger, useLogger)
	return logger
}

// setSubLogger registers the logger of a subsystem with the shared writer.
func setSubLogger(subsystem string, logger btclog.Logger,
	useLogger func(btclog.Logger)) {

	logWriter.RegisterSubLogger(subsystem, logger)
	if useLogger != nil {
		useLogger(logger)
	}
}
