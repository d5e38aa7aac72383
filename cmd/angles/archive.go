package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/angles-client-go/pkg/archive"
)

var archiveBuildID string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy a build's screenshots to local or S3-compatible storage",
	Long: `Download every screenshot of a build and write the images, the build
document and a manifest.json to the sink configured in the archive section.`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().StringVar(&archiveBuildID, "build-id", "", "Build to archive")

	_ = archiveCmd.MarkFlagRequired("build-id")
}

func runArchive(cmd *cobra.Command, args []string) error {
	reqs, cfg, err := newRequests()
	if err != nil {
		return err
	}

	if err := cfg.ValidateArchive(); err != nil {
		return fmt.Errorf("validating archive config: %w", err)
	}

	sink, err := archive.NewSink(log, &cfg.Archive)
	if err != nil {
		return fmt.Errorf("creating archive sink: %w", err)
	}

	manifest, err := archive.NewArchiver(log, &cfg.Archive, archive.FromRequests(reqs), sink).
		Archive(cmd.Context(), archiveBuildID)
	if err != nil {
		return fmt.Errorf("archiving build %s: %w", archiveBuildID, err)
	}

	log.WithField("screenshots", len(manifest.Screenshots)).Info("Archive completed successfully")

	return nil
}
