/*
main.go - Application entry point

PURPOSE:
  The payroll command. One binary hosts the HTTP API and offers offline
  subcommands that run the same engine against JSON files.

COMMANDS:
  serve       Start the HTTP API backed by SQLite
  run         Compute a payroll run from a roster file
  p9          Compute an employee's annual P9 certificate
  schedule    Print a statutory schedule as TOML

GLOBAL FLAGS:
  --config    Path to payroll.toml (missing file means defaults)

EXAMPLES:
  payroll serve --config payroll.toml --addr :9090
  payroll run --roster staff.json --period 2025-03
  payroll p9 --employee jane.json --year 2025
  payroll schedule --year 2025 > schedules/2025.toml

SEE ALSO:
  - config/config.go: File format and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/statutory"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "payroll",
		Short: "Kenyan statutory payroll engine",
		Long: `Computes PAYE, NSSF, SHIF and the Affordable Housing Levy for a
roster, builds approved disbursement reports and P9 certificates.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "payroll.toml", "Path to the TOML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newP9Cmd())
	root.AddCommand(newScheduleCmd())
	return root
}

// loadConfig reads the --config file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// buildRegistry registers the built-in schedule plus every configured file,
// then any passed with --schedule.
func buildRegistry(cmd *cobra.Command, cfg config.Config) (*statutory.Registry, error) {
	paths := append([]string(nil), cfg.Statutory.Schedules...)
	if cmd.Flags().Lookup("schedule") != nil {
		extra, _ := cmd.Flags().GetStringSlice("schedule")
		paths = append(paths, extra...)
	}
	reg, err := factory.BuildRegistry(paths, cfg.Statutory.FloorYear)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	return reg, nil
}

// newLogger honours --log-level when the command defines it.
func newLogger(cmd *cobra.Command, cfg config.Config) (*zap.Logger, error) {
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Log.Level = f.Value.String()
	}
	return cfg.Log.NewLogger()
}
