package main

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/instructai/pkg/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url>",
	Short: "Fetch a page or sitemap and add it to the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		url := args[0]

		var (
			mu  sync.Mutex
			bar *progressbar.ProgressBar
		)
		onProgress := func(p ingest.Progress) {
			mu.Lock()
			defer mu.Unlock()
			if bar == nil {
				bar = getProgressBar(p.Total, "📄 Indexing sitemap...")
			}
			bar.Set(p.Done)
			if p.Err != nil {
				bar.Describe(color.YellowString("📄 Indexing sitemap... (%s skipped)", p.URL))
			}
		}

		var (
			spinner *progressbar.ProgressBar
			pages   int
		)
		onPage := func(string) {
			mu.Lock()
			defer mu.Unlock()
			pages++
			if spinner != nil {
				spinner.Describe(color.CyanString("📄 Fetching pages... (%d fetched)", pages))
			}
		}

		a, err := newApp(ctx, currentConfig, appOptions{onPage: onPage, onProgress: onProgress})
		if err != nil {
			return err
		}
		defer a.Close()

		color.Blue("\nStarting ingestion for %s\n", url)

		if !ingest.IsSitemap(url) {
			mu.Lock()
			spinner = getSpinner("📄 Fetching pages...")
			mu.Unlock()
		}

		summary, err := a.ingest.Upload(ctx, url)
		if spinner != nil {
			spinner.Finish()
		}
		if bar != nil {
			bar.Finish()
		}
		fmt.Println()
		if err != nil {
			return err
		}

		color.Green("✓ %s", summary.Message)
		fmt.Printf("  urls: %d  indexed: %d  skipped: %d  chunks: %d  total in index: %d\n",
			summary.URLs, summary.Succeeded, summary.Failed, summary.Chunks, a.store.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
