package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"streamhub/internal/discovery"
	"streamhub/internal/savedlist"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var pages []int
	var profileID int64
	var bucket string
	var showEmpty bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Build the categorized discovery feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := a.savedIDs(cmd)
			if err != nil {
				return err
			}

			qv := url.Values{}
			if len(pages) > 0 {
				qv.Set("pages", joinInts(pages))
			}
			if profileID > 0 {
				qv.Set("profileId", strconv.FormatInt(profileID, 10))
			}
			for _, id := range saved {
				qv.Add("saved", id)
			}

			var feed discovery.Feed
			if err := a.do(cmd.Context(), http.MethodGet, "/discover?"+qv.Encode(), "", nil, &feed); err != nil {
				return err
			}
			if a.jsonOutput {
				printJSON(feed)
				return nil
			}
			renderFeed(os.Stdout, feed, bucket, showEmpty)
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&pages, "pages", nil, "page numbers to aggregate (server default when empty)")
	cmd.Flags().Int64Var(&profileID, "profile", 0, "profile id for maturity and premium filtering")
	cmd.Flags().StringVar(&bucket, "bucket", "", "show only this bucket")
	cmd.Flags().BoolVar(&showEmpty, "all", false, "include empty buckets")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var pages []int
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy upstream pages into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/discover/import"
			if len(pages) > 0 {
				path += "?pages=" + url.QueryEscape(joinInts(pages))
			}
			var report discovery.ImportReport
			if err := a.do(cmd.Context(), http.MethodPost, path, a.token(), nil, &report); err != nil {
				return err
			}
			if a.jsonOutput {
				printJSON(report)
				return nil
			}
			okLabel.Printf("imported from %s: %d created, %d updated, %d skipped\n",
				report.Source, report.Created, report.Updated, report.Skipped)
			if len(report.FailedPages) > 0 || report.MalformedRecords > 0 {
				fmt.Printf("failed pages %v, malformed records %d\n", report.FailedPages, report.MalformedRecords)
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&pages, "pages", nil, "page numbers to import")
	return cmd
}

// savedIDs reads the local saved list; a missing store means nothing saved.
func (a *app) savedIDs(cmd *cobra.Command) ([]string, error) {
	if _, err := os.Stat(a.savedDir); err != nil {
		return nil, nil
	}
	repo, err := savedlist.Open(a.savedDir)
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	return repo.Get(cmd.Context())
}

func renderFeed(w io.Writer, feed discovery.Feed, only string, showEmpty bool) {
	fmt.Fprintf(w, "source %s: %d titles", feed.Source, feed.Total)
	if feed.Hidden > 0 {
		fmt.Fprintf(w, ", %d hidden", feed.Hidden)
	}
	if len(feed.FailedPages) > 0 {
		fmt.Fprintf(w, ", failed pages %v", feed.FailedPages)
	}
	fmt.Fprintln(w)

	for _, name := range feed.Order {
		if only != "" && name != only {
			continue
		}
		items := feed.Buckets[name]
		if len(items) == 0 && !showEmpty && only == "" {
			continue
		}
		bucketLabel.Fprintf(w, "\n%s (%d)\n", name, len(items))
		for _, it := range items {
			fmt.Fprintf(w, "  %-24s %s", it.ID, it.Title)
			if it.Rating != nil {
				fmt.Fprintf(w, "  %.1f", *it.Rating)
			}
			fmt.Fprintln(w)
		}
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
