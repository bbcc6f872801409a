package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"animedash/internal/events"
)

const defaultServerURL = "http://localhost:8080"

func (a *app) watchCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow dataset events of a running dashboard server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wsURL, err := websocketURL(server, "/ws")
			if err != nil {
				return err
			}
			a.logger.Debug("connecting", zap.String("url", wsURL))
			return watch(cmd.Context(), wsURL, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&server, "server", defaultServerURL, "dashboard server base URL")
	return cmd
}

// watch prints one line per event until ctx ends or the server goes away.
func watch(ctx context.Context, wsURL string, w io.Writer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		var ev events.DatasetEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			fmt.Fprintln(w, string(msg))
			continue
		}
		fmt.Fprintln(w, formatEvent(ev))
	}
}

func formatEvent(ev events.DatasetEvent) string {
	line := fmt.Sprintf("%s  %-16s", ev.At.Local().Format("15:04:05"), ev.Type)
	switch ev.Type {
	case events.TypeDatasetReady:
		line += fmt.Sprintf(" revision %d, %d entries", ev.Revision, ev.Count)
	case events.TypeDatasetFailed:
		line += " " + ev.Reason
	}
	return line
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("server URL needs a host, e.g. http://localhost:8080")
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}
