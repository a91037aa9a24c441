// Package cmd implements the atlas command line.
//
// Architecture overview:
//   - Commands: articles, youtube, podcasts and instapaper each resolve their sources (arguments, --input files,
//     OPML subscriptions or the Instapaper API) and hand them to the matching ingestor in internal/ingest. Items are
//     processed one after another; a failing item never aborts the batch.
//   - Fetch pipeline: articles walk the strategy cascade in internal/fetcher (direct, 12ft, archive.today,
//     Googlebot, headless Chromedp, Wayback Machine) until a copy passes the truncation check in internal/content.
//     Videos go through kkdai/youtube with a yt-dlp fallback; podcast feeds are parsed with gofeed.
//   - Persistence: every item gets a metadata JSON record, raw HTML and a Markdown rendering under the configured
//     data directory. Metadata is written last, so its presence marks a completed item and makes reruns skip it.
//   - Failures: errors are classified by internal/errhandler. Retryable ones are appended to the JSONL retry queue
//     and every failure leaves an error-status metadata record.
//   - Configuration & plumbing: Viper populates config from config.yaml and ATLAS_* env vars; zap provides
//     structured logging with a per-type plain-text ingest log; Prometheus counters are written to a textfile when
//     metrics_textfile is set.
//
// Quick checklist:
//   - Set data_directory (or ATLAS_DATA_DIRECTORY, or --data-dir).
//   - Instapaper needs INSTAPAPER_CONSUMER_KEY, INSTAPAPER_CONSUMER_SECRET, INSTAPAPER_USERNAME and
//     INSTAPAPER_PASSWORD; the CSV export is read from inputs/instapaper_export.csv when present.
//   - Run: atlas articles -i inputs/articles.txt, atlas podcasts --limit 5 feeds.opml, atlas instapaper --folder all.
package cmd
