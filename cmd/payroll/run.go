package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/payroll"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute a payroll run from a roster file",
		Long: `Reads a JSON array of employees and prints the payroll run for one
period. Nothing is stored. Employees with invalid compensation are listed
under "skipped".`,
		RunE: runRun,
	}
	cmd.Flags().StringP("roster", "r", "", "Roster JSON file (array of employees)")
	cmd.Flags().StringP("period", "p", "", "Pay period, YYYY-MM")
	cmd.Flags().StringSlice("schedule", nil, "Extra statutory schedule files")
	cmd.Flags().String("log-level", "", "Log level (overrides log.level)")
	_ = cmd.MarkFlagRequired("roster")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	registry, err := buildRegistry(cmd, cfg)
	if err != nil {
		return err
	}

	periodFlag, _ := cmd.Flags().GetString("period")
	period, err := payroll.ParsePayPeriod(periodFlag)
	if err != nil {
		return err
	}

	rosterPath, _ := cmd.Flags().GetString("roster")
	var roster []payroll.Employee
	if err := readJSONFile(rosterPath, &roster); err != nil {
		return err
	}

	run, err := payroll.NewRunProcessor(registry, logger).Process(roster, period)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), api.NewRunDTO(run))
}

func readJSONFile(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
