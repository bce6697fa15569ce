package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

const playHelp = `Commands:
  drink   drink the glass yourself
  give    make your opponent drink
  leave   give up your seat and keep watching
  quit    disconnect`

// closeWait bounds how long to wait for the server to acknowledge a close
const closeWait = 2 * time.Second

func newPlayCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "play <code>",
		Short: "Join a session over a websocket and play interactively",
		Long: `Connect to the session's websocket, take a seat and play from the terminal.

Every message from the server is printed as it arrives. Type commands on
standard input:

` + playHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cmd, strings.ToUpper(args[0]), name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func play(cmd *cobra.Command, code, name string) error {
	ctx := cmd.Context()
	out := output(cmd)

	url, err := client.WebSocketURL(sessionPath(code, "ws"))
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, client.AuthHeader())
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			body, _ := io.ReadAll(resp.Body)
			return decodeError(resp.StatusCode, body)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	done := make(chan error, 1)
	go func() {
		done <- readEnvelopes(conn, out)
	}()

	if err := sendEnvelope(conn, wire.TypeJoin, wire.JoinData{DisplayName: name}); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return hangUp(conn, done)

		case err := <-done:
			return err

		case line, ok := <-lines:
			if !ok {
				return hangUp(conn, done)
			}
			quit, err := playCommand(conn, out, line)
			if err != nil {
				return err
			}
			if quit {
				return hangUp(conn, done)
			}
		}
	}
}

// playCommand handles one line of input, reporting whether to disconnect
func playCommand(conn *websocket.Conn, out *Output, line string) (bool, error) {
	switch word := strings.ToLower(strings.TrimSpace(line)); word {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "leave":
		return false, sendEnvelope(conn, wire.TypeLeave, nil)
	case "help", "?":
		out.PrintMessage(playHelp)
		return false, nil
	default:
		action, err := parseMove(word)
		if err != nil {
			out.PrintMessage(fmt.Sprintf("unknown command %q\n%s", word, playHelp))
			return false, nil
		}
		return false, sendEnvelope(conn, wire.TypeAction, wire.ActionData{Action: string(action)})
	}
}

func sendEnvelope(conn *websocket.Conn, t wire.MessageType, data any) error {
	env, err := wire.NewEnvelope(t, data, time.Now())
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(closeWait))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s: %w", t, err)
	}
	return nil
}

// readEnvelopes prints server messages until the connection closes
func readEnvelopes(conn *websocket.Conn, out *Output) error {
	for {
		var env wire.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				out.PrintMessage("Disconnected")
				return nil
			}
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		out.PrintEnvelope(env)
	}
}

// hangUp sends a close frame and waits briefly for the server to answer it
func hangUp(conn *websocket.Conn, done <-chan error) error {
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWait))
	if err != nil {
		return nil
	}
	_ = conn.SetReadDeadline(time.Now().Add(closeWait))
	select {
	case <-done:
	case <-time.After(closeWait):
	}
	return nil
}
