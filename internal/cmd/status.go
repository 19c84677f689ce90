package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgermate/governor/internal/config"
	"github.com/ledgermate/governor/internal/core/health"
	errwrap "github.com/ledgermate/governor/internal/errors"
	"github.com/ledgermate/governor/internal/observability"
	"github.com/ledgermate/governor/internal/output"
)

var statusOutputFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe external dependencies and print a health report",
	Long: `Probe every configured external dependency (chat platform, AI
provider, speech provider, storage backend) and print the aggregate
health report. Probes run fresh, bypassing any cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(statusOutputFormat)
		if err != nil {
			return errwrap.NewInvalidInputError(err.Error())
		}

		cfg := config.GetConfig()
		if cfg == nil {
			return errwrap.NewConfigInvalidError("configuration not loaded")
		}

		monitor := health.NewMonitor(buildProbes(cfg), cfg.Health.CacheTTL, observability.CLILogger)
		checks := monitor.CheckAll(cmd.Context(), true)

		report := &output.HealthReport{
			Status:    health.Aggregate(checks),
			Timestamp: time.Now().UTC(),
			Checks:    checks,
		}

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "failed to render health report")
		}
		fmt.Println(rendered)

		if report.Status == "unhealthy" {
			return errwrap.NewExternalServiceError("two or more dependencies are failing")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusOutputFormat, "output", "o", "table",
		"output format: table, json, or markdown")
}
