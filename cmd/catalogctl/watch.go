package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var addr string
	var useWS, raw bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow catalog change events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			follow := func(ctx context.Context) error { return watchTCP(ctx, addr, os.Stdout, !raw) }
			if useWS {
				endpoint, err := websocketURL(a.baseURL, "/ws")
				if err != nil {
					return err
				}
				follow = func(ctx context.Context) error { return watchWS(ctx, endpoint, os.Stdout, !raw) }
			}

			// reconnect until interrupted
			for {
				err := follow(ctx)
				if ctx.Err() != nil {
					return nil
				}
				errorLabel.Fprintf(os.Stderr, "disconnected: %v\n", err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Second):
				}
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "TCP feed address")
	cmd.Flags().BoolVar(&useWS, "ws", false, "use the WebSocket feed on the API host")
	cmd.Flags().BoolVar(&raw, "raw", false, "print events as received")
	return cmd
}

func watchTCP(ctx context.Context, addr string, w io.Writer, pretty bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printEvent(w, sc.Bytes(), pretty)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func watchWS(ctx context.Context, endpoint string, w io.Writer, pretty bool) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer ws.Close()
	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		printEvent(w, []byte(strings.TrimSpace(string(msg))), pretty)
	}
}

// printEvent indents JSON events; anything else is printed as is.
func printEvent(w io.Writer, line []byte, pretty bool) {
	if !pretty {
		fmt.Fprintln(w, string(line))
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		fmt.Fprintln(w, string(line))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Fprintln(w, string(b))
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}
