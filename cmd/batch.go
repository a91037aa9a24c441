package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/ingest"
)

// collectSources merges positional arguments with the lines of inputFile.
func collectSources(args []string, inputFile string) ([]string, error) {
	sources := append([]string(nil), args...)
	if inputFile != "" {
		fromFile, err := ingest.ReadSourcesFile(inputFile)
		if err != nil {
			return nil, err
		}
		sources = append(sources, fromFile...)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources given: pass them as arguments or with --input")
	}
	return sources, nil
}

// finish prints the summary, writes the metrics textfile and logs the run.
func finish(cmd *cobra.Command, appInstance App, kind string, summary ingest.Summary) {
	printSummary(cmd.OutOrStdout(), summary)
	logger := appInstance.GetLogger()
	if err := appInstance.FlushMetrics(cmd.Context()); err != nil {
		logger.Warn("failed to write metrics textfile", zap.Error(err))
	}
	logger.Info("batch finished",
		zap.String("command", kind),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
}

func printSummary(w io.Writer, summary ingest.Summary) {
	_, _ = fmt.Fprintf(w, "summary: %s\n", summary)
}
