package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/ingest"
)

func newPodcastsCmd() *cobra.Command {
	var (
		input     string
		limit     int
		reprocess bool
	)
	cmd := &cobra.Command{
		Use:   "podcasts [FEED|OPML|FEED|GUID...]",
		Short: "Download podcast episodes from feeds",
		Long: `Each source is a feed URL, an OPML subscription file (*.opml), or a single
episode written as "{feed URL}|{guid}". Feeds are ingested newest first,
up to --limit episodes each.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			sources, err := collectSources(args, input)
			if err != nil {
				return err
			}
			pods, err := appInstance.Podcasts(reprocess, nil)
			if err != nil {
				return err
			}

			var episodes, feeds []string
			for _, s := range sources {
				if strings.Contains(s, "|") {
					episodes = append(episodes, s)
				} else {
					feeds = append(feeds, s)
				}
			}
			feeds, err = ingest.ExpandFeeds(feeds)
			if err != nil {
				return err
			}

			progress := ingest.WriterProgress(cmd.OutOrStdout())
			var total ingest.Summary
			if len(episodes) > 0 {
				_, s := pods.BatchIngest(cmd.Context(), episodes, progress)
				total = merge(total, s)
			}
			for _, feed := range feeds {
				if cmd.Context().Err() != nil {
					break
				}
				_, s, err := pods.IngestFeed(cmd.Context(), feed, limit, progress)
				if err != nil {
					appInstance.GetLogger().Error("feed failed", zap.String("feed", feed), zap.Error(err))
					total.Processed++
					total.Failed++
					continue
				}
				total = merge(total, s)
			}
			finish(cmd, appInstance, "podcasts", total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "file with one feed, OPML path or episode per line")
	cmd.Flags().IntVar(&limit, "limit", 0, "episodes per feed (0 means all)")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "re-ingest items that already exist, backing up their metadata")
	return cmd
}

func merge(a, b ingest.Summary) ingest.Summary {
	return ingest.Summary{
		Processed: a.Processed + b.Processed,
		Succeeded: a.Succeeded + b.Succeeded,
		Skipped:   a.Skipped + b.Skipped,
		Failed:    a.Failed + b.Failed,
	}
}
