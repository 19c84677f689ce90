package cmd

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/require"

	"github.com/ledgermate/governor/internal/config"
	"github.com/ledgermate/governor/internal/core"
	"github.com/ledgermate/governor/internal/core/health"
	"github.com/ledgermate/governor/internal/core/throttle"
)

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "dial tcp: i/o timeout" }
func (fakeNetErr) Timeout() bool   { return true }
func (fakeNetErr) Temporary() bool { return true }

var _ net.Error = fakeNetErr{}

func TestDependencyFailureClassifier(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", errors.Join(errors.New("call failed"), context.DeadlineExceeded), true},
		{"network timeout", fakeNetErr{}, true},
		{"external service envelope", gferrors.NewErrorEnvelope("EXTERNAL_SERVICE_ERROR", "upstream 502"), true},
		{"timeout envelope", gferrors.NewErrorEnvelope("TIMEOUT", "deadline"), true},
		{"invalid input envelope", gferrors.NewErrorEnvelope("INVALID_INPUT", "bad amount"), false},
		{"plain error", errors.New("unexpected token"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, dependencyFailure(tc.err))
		})
	}
}

func TestModeSwitchForwardsToManager(t *testing.T) {
	manager := throttle.NewManager(throttle.DefaultProfiles(), nil)
	sw := modeSwitch{manager: manager}

	sw.EnableDegradedMode()
	require.True(t, manager.Degraded())

	sw.DisableDegradedMode()
	require.False(t, manager.Degraded())
}

func TestBuildProbesCoversEveryDependency(t *testing.T) {
	cfg := &config.Config{}
	probes := buildProbes(cfg)

	seen := map[core.Dependency]bool{}
	for _, p := range probes {
		seen[p.Name()] = true
	}
	for _, dep := range core.Dependencies() {
		require.True(t, seen[dep], "missing probe for %s", dep)
	}
}

func TestBuildProbesStoragePing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	cfg := &config.Config{}
	cfg.Dependencies.Storage.Path = path
	cfg.Dependencies.Storage.Timeout = time.Second

	var storage *health.StorageProbe
	for _, p := range buildProbes(cfg) {
		if sp, ok := p.(*health.StorageProbe); ok {
			storage = sp
		}
	}
	require.NotNil(t, storage)

	result := storage.Probe(context.Background())
	require.True(t, result.Healthy)
	require.Contains(t, result.Message, "ledger store reachable")

	// Unconfigured path means no ping and a not_configured result.
	none := buildProbes(&config.Config{})
	for _, p := range none {
		if sp, ok := p.(*health.StorageProbe); ok {
			r := sp.Probe(context.Background())
			require.Equal(t, health.StatusNotConfigured, r.Status)
		}
	}
}
