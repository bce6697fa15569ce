package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <code>",
		Short: "Stream SSE events from a session",
		Long: `Connect to the session's SSE endpoint and stream events in real-time.

The first event is a snapshot of the session. After that:
  - roster: Seated display names changed
  - session_ready: Both seats are taken
  - session_reset: A seat emptied, the session is waiting again
  - round_started: A new round began
  - turn_resolved: A move was resolved
  - round_ended: A player drank the poison
  - round_aborted: A player left mid-round

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.ToUpper(args[0])
			out := output(cmd)

			resp, err := client.Stream(cmd.Context(), sessionPath(code, "events"), "text/event-stream")
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			if cfg.Output != "json" {
				out.PrintMessage("Connected to session " + code)
			}

			err = readSSE(resp.Body, out.PrintEnvelope)
			if cmd.Context().Err() != nil || errors.Is(err, io.ErrUnexpectedEOF) {
				err = nil
			}
			if err != nil {
				return fmt.Errorf("stream error: %w", err)
			}

			if cfg.Output != "json" {
				out.PrintMessage("Disconnected")
			}
			return nil
		},
	}

	return cmd
}

// readSSE parses an event stream, handing each complete event to emit
func readSSE(r io.Reader, emit func(wire.Envelope)) error {
	scanner := bufio.NewScanner(r)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if currentEvent != "" {
				env := wire.Envelope{
					Type:      wire.MessageType(currentEvent),
					Timestamp: time.Now(),
				}
				if data := strings.Join(dataLines, "\n"); json.Valid([]byte(data)) {
					env.Data = json.RawMessage(data)
				}
				emit(env)
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	return scanner.Err()
}
