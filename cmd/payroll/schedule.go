package main

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/warp/payroll-engine/factory"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print a statutory schedule as TOML",
		Long: `Prints the schedule in force for a tax year in the same TOML format
that [statutory].schedules accepts. Edit the output and register it to
roll rates forward for a new year.`,
		RunE: runSchedule,
	}
	cmd.Flags().IntP("year", "y", time.Now().Year(), "Tax year")
	cmd.Flags().StringSlice("schedule", nil, "Extra statutory schedule files")
	return cmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cmd, cfg)
	if err != nil {
		return err
	}

	year, _ := cmd.Flags().GetInt("year")
	s, err := registry.ForYear(year)
	if err != nil {
		return err
	}
	return toml.NewEncoder(cmd.OutOrStdout()).Encode(factory.ToDoc(s))
}
