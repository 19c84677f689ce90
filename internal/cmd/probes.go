package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ledgermate/governor/internal/config"
	"github.com/ledgermate/governor/internal/core/health"
)

// buildProbes assembles the dependency probe set from configuration.
// Unconfigured dependencies still get a probe so they show up as
// not_configured instead of silently disappearing.
func buildProbes(cfg *config.Config) []health.Prober {
	deps := cfg.Dependencies

	var storagePing func(ctx context.Context) (string, error)
	if deps.Storage.Path != "" {
		path := deps.Storage.Path
		storagePing = func(ctx context.Context) (string, error) {
			info, err := os.Stat(path)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("ledger store reachable (%d bytes)", info.Size()), nil
		}
	}

	return []health.Prober{
		&health.ChatProbe{
			Token:   deps.Chat.Token,
			BaseURL: deps.Chat.BaseURL,
			Timeout: deps.Chat.Timeout,
		},
		&health.AIProbe{
			APIKey:   deps.AI.APIKey,
			Endpoint: deps.AI.Endpoint,
			Model:    deps.AI.Model,
			Timeout:  deps.AI.Timeout,
		},
		&health.SpeechProbe{
			APIKey: deps.Speech.APIKey,
		},
		&health.StorageProbe{
			Ping:    storagePing,
			Timeout: deps.Storage.Timeout,
		},
	}
}
