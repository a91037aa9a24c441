package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/ingest"
	"github.com/atlas-archive/atlas/internal/instapaper"
)

// DefaultExportPath is where the Instapaper CSV export is looked for.
const DefaultExportPath = "inputs/instapaper_export.csv"

func newInstapaperCmd() *cobra.Command {
	var (
		folders   []string
		export    string
		reprocess bool
	)
	cmd := &cobra.Command{
		Use:   "instapaper",
		Short: "Harvest and archive Instapaper bookmarks",
		Long: `Authenticates with xAuth, enumerates the requested folders ("all" means
unread, archive, starred and every custom folder), and stores each bookmark's
text. Rows of the CSV export fill in highlights, tags and bookmarks the API
no longer returns.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := readExport(export, cmd.Flags().Changed("export"))
			if err != nil {
				return err
			}
			in, err := appInstance.Instapaper(reprocess, rows)
			if err != nil {
				return err
			}
			_, summary, err := in.Run(cmd.Context(), folders, ingest.WriterProgress(cmd.OutOrStdout()))
			if err != nil {
				appInstance.GetLogger().Error("instapaper harvest incomplete", zap.Error(err))
			}
			finish(cmd, appInstance, "instapaper", summary)
			if summary.Processed == 0 && err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&folders, "folder", []string{instapaper.FolderUnread}, "folders to harvest: unread, archive, starred, all or a folder id")
	cmd.Flags().StringVar(&export, "export", DefaultExportPath, "Instapaper CSV export")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "re-ingest items that already exist, backing up their metadata")
	return cmd
}

// readExport loads the CSV export. The default path may be absent.
func readExport(path string, explicit bool) ([]instapaper.ExportRow, error) {
	if path == "" {
		return nil, nil
	}
	rows, err := instapaper.ReadExportFile(path)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return rows, err
}
