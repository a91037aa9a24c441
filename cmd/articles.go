package cmd

import (
	"github.com/spf13/cobra"

	"github.com/atlas-archive/atlas/internal/ingest"
)

func newArticlesCmd() *cobra.Command {
	var (
		input     string
		reprocess bool
	)
	cmd := &cobra.Command{
		Use:   "articles [URL...]",
		Short: "Fetch and archive web articles",
		Long: `Fetches each URL through the strategy cascade (direct, 12ft, archive.today,
Googlebot, headless browser, Wayback Machine, as configured) and stores the
first non-truncated copy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			sources, err := collectSources(args, input)
			if err != nil {
				return err
			}
			articles, err := appInstance.Articles(reprocess)
			if err != nil {
				return err
			}
			_, summary := articles.BatchIngest(cmd.Context(), sources, ingest.WriterProgress(cmd.OutOrStdout()))
			finish(cmd, appInstance, "articles", summary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "file with one URL per line")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "re-ingest items that already exist, backing up their metadata")
	return cmd
}
