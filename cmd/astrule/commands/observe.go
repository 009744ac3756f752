// Package commands implements the astrule CLI commands.
package commands

import (
	"context"
	"io"

	"github.com/Sumatoshi-tech/astrule/pkg/config"
	"github.com/Sumatoshi-tech/astrule/pkg/observability"
	"github.com/Sumatoshi-tech/astrule/pkg/version"
)

func initObservability(cfg *config.Config, mode observability.AppMode, logOut io.Writer, prometheus bool) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Get().Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.Prometheus = prometheus
	obsCfg.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.JSON

	return observability.InitWithWriter(obsCfg, logOut)
}

func shutdownObservability(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
