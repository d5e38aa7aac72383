package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/angles-client-go/pkg/reporter"
)

var reportFile string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Replay a recorded session file into Angles",
	Long: `Replay a YAML session file through the reporter: start the build,
upload its screenshots, save every test with its actions and steps and
attach the build artifacts. Build fields missing from the file fall back
to the reporter section of the config.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportFile, "file", "f", "", "Session file to replay")

	_ = reportCmd.MarkFlagRequired("file")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := loadSession(reportFile, cfg.Reporter)
	if err != nil {
		return err
	}

	r, err := reporter.New(log, cfg)
	if err != nil && !errors.Is(err, reporter.ErrAlreadyInitialized) {
		return fmt.Errorf("creating reporter: %w", err)
	}

	return replay(cmd.Context(), log, r, s)
}
