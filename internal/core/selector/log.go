package selector

import "github.com/btcsuite/btclog/v2"

// Subsystem is this package's logging tag.
const Subsystem = "SEL "

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
