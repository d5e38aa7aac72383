// Command angles talks to an Angles test reporting server: it replays
// recorded sessions, prunes old builds, archives screenshots and can stand
// in for the server during local development.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/angles-client-go/pkg/config"
)

// Set at build time through -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile  string
	logLevel string
	baseURL  string
	log      = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return l
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("angles failed")
	}
}

var rootCmd = &cobra.Command{
	Use:   "angles",
	Short: "Report test runs to Angles and manage what it stores",
	Long: `angles records builds, executions and screenshots on an Angles server.

Commands that talk to Angles use client.base_url from --config, the
ANGLES_CLIENT_BASE_URL environment variable or --base-url, in increasing
order of precedence. The default is ` + config.DefaultBaseURL + `.

Use "angles serve" to run a local mock of the REST API backed by sqlite
or postgres, then point the other commands at it.`,
	Example: `  angles serve --listen 127.0.0.1:3000
  angles report --file session.yaml --base-url http://127.0.0.1:3000/rest/api/v1.0/
  angles cleanup --team-id web --age-in-days 30
  angles archive --build-id 6650c0ffee --config angles.yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("--log-level %q: %w", logLevel, err)
		}

		log.SetLevel(level)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the angles CLI build information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		_, _ = fmt.Fprintf(out, "angles %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file (client, reporter, archive and server sections)")
	flags.StringVar(&logLevel, "log-level", config.DefaultLogLevel,
		"log level: "+strings.Join(logLevels(), "|"))
	flags.StringVar(&baseURL, "base-url", "", "Angles REST API root, overrides client.base_url")

	rootCmd.AddCommand(versionCmd)
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}

// loadConfig reads --config and the ANGLES_* environment, applies
// --base-url and checks the client section.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if baseURL != "" {
		cfg.Client.BaseURL = baseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
