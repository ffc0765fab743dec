package commands

import (
	"fmt"
	"time"

	"breederchat/internal/core/fetch"
	"breederchat/internal/core/scrape"
	"breederchat/internal/core/session"

	"github.com/spf13/cobra"
)

var (
	scrapeStart   *int
	scrapeEnd     *int
	scrapeBackend *string
	scrapeHeaders *string
	scrapeTimeout *time.Duration
)

func init() {
	scrapeStart = scrapeCmd.Flags().Int("start", 0, "First page of a range.")
	scrapeEnd = scrapeCmd.Flags().Int("end", 0, "Last page of a range; with --start scrapes pages start..end.")
	scrapeBackend = scrapeCmd.Flags().String("backend", "http", "Fetch backend: http, colly or browser.")
	scrapeHeaders = scrapeCmd.Flags().String("headers", "desktop", "Request header profile: desktop, mobile or bot.")
	scrapeTimeout = scrapeCmd.Flags().Duration("timeout", 30*time.Second, "Per-page fetch timeout.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url> [--start N --end M] [--backend http|colly|browser] [--headers desktop|mobile|bot]",
	Short: "Scrapes a directory URL in-process and prints the breeders found.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fetcher, closeFetcher, err := fetch.NewBackend(fetch.BackendOptions{
			Name:          *scrapeBackend,
			Timeout:       *scrapeTimeout,
			HeaderProfile: *scrapeHeaders,
		})
		if err != nil {
			return err
		}
		defer closeFetcher()

		svc := scrape.NewService(scrape.Deps{
			Fetcher:  fetcher,
			Sessions: session.NewStore(time.Hour),
		}, scrape.Options{
			PageDelay:     scrape.DefaultOptions().PageDelay,
			FetchTimeout:  *scrapeTimeout,
			MaxRangePages: scrape.DefaultOptions().MaxRangePages,
		})
		return runScrape(cmd, svc, buildRequest(args[0], *scrapeStart, *scrapeEnd))
	},
}

func buildRequest(url string, start, end int) scrape.Request {
	req := scrape.Request{URL: url}
	if start > 0 || end > 0 {
		if end == 0 {
			end = start
		}
		req.PageRange = &scrape.PageRange{Start: start, End: end}
	}
	return req
}

func runScrape(cmd *cobra.Command, svc *scrape.Service, req scrape.Request) error {
	res, err := svc.Scrape(cmd.Context(), req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	renderRecords(out, res.Records)
	fmt.Fprintln(out, res.Message)
	if res.Warning != "" {
		fmt.Fprintln(out, "warning:", res.Warning)
	}
	return nil
}
