package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/payroll"
)

func newP9Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "p9",
		Short: "Compute an annual P9 certificate",
		Long: `Reads one employee as JSON and prints the twelve-month P9 tax
deduction certificate for the given year. The employer block comes from
[employer] in the config unless overridden.`,
		RunE: runP9,
	}
	cmd.Flags().StringP("employee", "e", "", "Employee JSON file")
	cmd.Flags().IntP("year", "y", 0, "Tax year")
	cmd.Flags().String("employer-tax-id", "", "Employer PIN (overrides employer.tax_id)")
	cmd.Flags().String("employer-name", "", "Employer name (overrides employer.name)")
	cmd.Flags().StringSlice("schedule", nil, "Extra statutory schedule files")
	_ = cmd.MarkFlagRequired("employee")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func runP9(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cmd, cfg)
	if err != nil {
		return err
	}

	employer := payroll.Employer{TaxID: cfg.Employer.TaxID, Name: cfg.Employer.Name}
	if v, _ := cmd.Flags().GetString("employer-tax-id"); v != "" {
		employer.TaxID = v
	}
	if v, _ := cmd.Flags().GetString("employer-name"); v != "" {
		employer.Name = v
	}

	path, _ := cmd.Flags().GetString("employee")
	var emp payroll.Employee
	if err := readJSONFile(path, &emp); err != nil {
		return err
	}

	year, _ := cmd.Flags().GetInt("year")
	rec, err := payroll.NewCertificateComputer(registry, employer).Compute(emp, year)
	if err != nil {
		return fmt.Errorf("p9 for %s: %w", emp.ID, err)
	}
	return printJSON(cmd.OutOrStdout(), api.NewP9DTO(rec))
}
