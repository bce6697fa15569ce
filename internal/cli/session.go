package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/poisonedglass/internal/api/request"
	"github.com/mcoot/poisonedglass/internal/api/response"
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/transport/wire"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session commands",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionJoinCmd())
	cmd.AddCommand(newSessionLeaveCmd())
	cmd.AddCommand(newSessionActCmd())

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result wire.SessionData

			if err := client.Post(cmd.Context(), "/api/v1/sessions", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.SessionList

			if err := client.Get(cmd.Context(), "/api/v1/sessions", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <code>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result wire.SessionData

			if err := client.Get(cmd.Context(), sessionPath(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newSessionJoinCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "join <code>",
		Short: "Take a seat in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.JoinSessionRequest{DisplayName: name}
			var result response.JoinResponse

			if err := client.Post(cmd.Context(), sessionPath(args[0], "join"), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to your username)")

	return cmd
}

func newSessionLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <code>",
		Short: "Give up your seat in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post(cmd.Context(), sessionPath(args[0], "leave"), nil, nil); err != nil {
				return err
			}
			output(cmd).PrintMessage("Left " + strings.ToUpper(args[0]))
			return nil
		},
	}
}

func newSessionActCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "act <code> <drink|give>",
		Short: "Submit a move",
		Long: `Submit a move for your turn.

  drink  drink the glass yourself (self_drink)
  give   make your opponent drink (make_other_drink)

Moves made out of turn are accepted by the server and ignored.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := parseMove(args[1])
			if err != nil {
				return err
			}
			req := request.ActionRequest{Action: string(action)}

			if err := client.Post(cmd.Context(), sessionPath(args[0], "actions"), req, nil); err != nil {
				return err
			}
			output(cmd).PrintMessage(fmt.Sprintf("Submitted %s", action))
			return nil
		},
	}
}

// parseMove accepts the short move names as well as the wire names
func parseMove(s string) (model.Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drink", "self":
		return model.ActionSelfDrink, nil
	case "give", "other":
		return model.ActionMakeOtherDrink, nil
	}
	return model.ParseAction(s)
}
