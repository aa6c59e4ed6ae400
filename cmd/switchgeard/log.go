package main

import (
	swglog "github.com/bitshock-src/switchgear/internal/log"

	"github.com/bitshock-src/switchgear/internal/core/balancer"
	"github.com/bitshock-src/switchgear/internal/core/discovery"
	"github.com/bitshock-src/switchgear/internal/core/health"
	"github.com/bitshock-src/switchgear/internal/core/offerprovider"
	"github.com/bitshock-src/switchgear/internal/core/pool"
	"github.com/bitshock-src/switchgear/internal/core/selector"
	"github.com/bitshock-src/switchgear/internal/lnurlpay"
	"github.com/bitshock-src/switchgear/internal/store/offersql"
)

// initLoggers registers every package's sub-logger with the shared rotating
// log writer, mirroring the teacher's root log.go wiring of auth/lsat/proxy.
// internal/core/pool/lnd and internal/core/pool/cln share pool's logger
// directly (see pool.Log) rather than registering their own tag.
func initLoggers() {
	swglog.AddSubLogger(pool.Subsystem, pool.UseLogger)
	swglog.AddSubLogger(discovery.Subsystem, discovery.UseLogger)
	swglog.AddSubLogger(health.Subsystem, health.UseLogger)
	swglog.AddSubLogger(selector.Subsystem, selector.UseLogger)
	swglog.AddSubLogger(balancer.Subsystem, balancer.UseLogger)
	swglog.AddSubLogger(offerprovider.Subsystem, offerprovider.UseLogger)
	swglog.AddSubLogger(lnurlpay.Subsystem, lnurlpay.UseLogger)
	swglog.AddSubLogger(offersql.Subsystem, offersql.UseLogger)
}
