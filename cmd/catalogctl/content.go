package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"streamhub/pkg/models"
)

type contentPage struct {
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Items  []models.Content `json:"items"`
}

func newContentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Browse the catalog",
	}

	var q, category, genre string
	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List catalog titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			qv := url.Values{}
			if q != "" {
				qv.Set("q", q)
			}
			if category != "" {
				qv.Set("category", category)
			}
			if genre != "" {
				qv.Set("genre", genre)
			}
			qv.Set("limit", strconv.Itoa(limit))
			qv.Set("offset", strconv.Itoa(offset))

			var page contentPage
			if err := a.do(cmd.Context(), http.MethodGet, "/content?"+qv.Encode(), "", nil, &page); err != nil {
				return err
			}
			if a.jsonOutput {
				printJSON(page)
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tRATING")
			for _, c := range page.Items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Title, c.Category, formatRating(c.Rating))
			}
			_ = tw.Flush()
			fmt.Printf("%d of %d\n", len(page.Items), page.Total)
			return nil
		},
	}
	list.Flags().StringVar(&q, "q", "", "title search")
	list.Flags().StringVar(&category, "category", "", "category filter")
	list.Flags().StringVar(&genre, "genre", "", "genre id or name")
	list.Flags().IntVar(&limit, "limit", 20, "page size")
	list.Flags().IntVar(&offset, "offset", 0, "offset")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one title with its genres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c models.Content
			path := "/content/" + url.PathEscape(args[0]) + "?expand=genres"
			if err := a.do(cmd.Context(), http.MethodGet, path, "", nil, &c); err != nil {
				return err
			}
			printJSON(c)
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}
