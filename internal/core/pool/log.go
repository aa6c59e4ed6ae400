package pool

import "github.com/btcsuite/btclog/v2"

// Subsystem is the tag under which this package and its lnd/cln backend
// client sub-packages log.
const Subsystem = "POOL"

// Log is shared by this package and internal/core/pool/lnd,
// internal/core/pool/cln so every backend-client log line carries the same
// subsystem tag.
var Log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by pool and its backend
// client sub-packages.
func UseLogger(logger btclog.Logger) {
	Log = logger
}
