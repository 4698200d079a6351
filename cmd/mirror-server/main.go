package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"streamhub/internal/mirror"
	"streamhub/pkg/logger"
)

func main() {
	var (
		addr      string
		fixture   string
		pageSize  int
		failPages []int
		delay     time.Duration
		bare      bool
		logMode   string
	)

	cmd := &cobra.Command{
		Use:           "mirror-server",
		Short:         "Serve a fixture catalog as a paged upstream at GET /titles?page=N",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logMode)
			if err != nil {
				return err
			}
			defer log.Sync()

			data := mirror.DefaultFixture()
			if fixture != "" {
				if data, err = os.ReadFile(fixture); err != nil {
					return fmt.Errorf("read fixture: %w", err)
				}
			}
			m, err := mirror.New(data, mirror.Options{
				PageSize:  pageSize,
				FailPages: failPages,
				Delay:     delay,
				Bare:      bare,
			}, log)
			if err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			router := gin.New()
			router.Use(gin.Recovery())
			m.RegisterRoutes(router)

			log.Info("mirror-server listening", "addr", addr, "pages", m.TotalPages(), "fail_pages", failPages)
			srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
			return srv.ListenAndServe()
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":9000", "listen address")
	f.StringVar(&fixture, "fixture", "", "JSON array of records (built-in sample when empty)")
	f.IntVar(&pageSize, "page-size", 12, "records per page")
	f.IntSliceVar(&failPages, "fail-pages", nil, "pages answered with 503")
	f.DurationVar(&delay, "delay", 0, "latency added to every page")
	f.BoolVar(&bare, "bare", false, "serve bare arrays instead of a results envelope")
	f.StringVar(&logMode, "log-mode", "dev", "dev or prod")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mirror-server: %v\n", err)
		os.Exit(1)
	}
}
