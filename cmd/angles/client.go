package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/angles-client-go/pkg/config"
	"github.com/ethpandaops/angles-client-go/pkg/requests"
	"github.com/ethpandaops/angles-client-go/pkg/transport"
)

var (
	cleanupTeamID    string
	cleanupAgeInDays int
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Print the versions reported by the Angles server",
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, _, err := newRequests()
		if err != nil {
			return err
		}

		raw, err := reqs.Angles.GetVersions(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching versions: %w", err)
		}

		return printJSON(raw)
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete a team's builds older than a number of days",
	Long: `Delete every build of a team that is older than --age-in-days.
Builds marked as keep are left in place by the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanupAgeInDays < 0 {
			return fmt.Errorf("--age-in-days must not be negative")
		}

		reqs, _, err := newRequests()
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"team":        cleanupTeamID,
			"age_in_days": cleanupAgeInDays,
		}).Info("Deleting old builds")

		raw, err := reqs.Builds.DeleteBuilds(cmd.Context(), cleanupTeamID, cleanupAgeInDays)
		if err != nil {
			return fmt.Errorf("deleting builds: %w", err)
		}

		return printJSON(raw)
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd, cleanupCmd)

	cleanupCmd.Flags().StringVar(&cleanupTeamID, "team-id", "", "Team whose builds are deleted")
	cleanupCmd.Flags().IntVar(&cleanupAgeInDays, "age-in-days", 0, "Delete builds older than this many days")

	_ = cleanupCmd.MarkFlagRequired("team-id")
	_ = cleanupCmd.MarkFlagRequired("age-in-days")
}

// newRequests builds the request groups from the loaded configuration.
func newRequests() (*requests.Requests, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	client, err := transport.New(log, &cfg.Client)
	if err != nil {
		return nil, nil, fmt.Errorf("creating client: %w", err)
	}

	return requests.New(log, client), cfg, nil
}

// printJSON writes a response body indented to stdout.
func printJSON(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, err = os.Stdout.Write(append(raw, '\n'))

		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
