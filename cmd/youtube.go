package cmd

import (
	"github.com/spf13/cobra"

	"github.com/atlas-archive/atlas/internal/ingest"
)

func newYouTubeCmd() *cobra.Command {
	var (
		input     string
		reprocess bool
	)
	cmd := &cobra.Command{
		Use:   "youtube [URL|ID...]",
		Short: "Download YouTube videos and transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			sources, err := collectSources(args, input)
			if err != nil {
				return err
			}
			videos, err := appInstance.YouTube(reprocess)
			if err != nil {
				return err
			}
			_, summary := videos.BatchIngest(cmd.Context(), sources, ingest.WriterProgress(cmd.OutOrStdout()))
			finish(cmd, appInstance, "youtube", summary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "file with one video URL or id per line")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "re-ingest items that already exist, backing up their metadata")
	return cmd
}
