package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/poisonedglass/internal/api/request"
	"github.com/mcoot/poisonedglass/internal/api/response"
)

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Player account commands",
	}

	cmd.AddCommand(newPlayerRegisterCmd())
	cmd.AddCommand(newPlayerLoginCmd())
	cmd.AddCommand(newPlayerLogoutCmd())
	cmd.AddCommand(newPlayerMeCmd())
	cmd.AddCommand(newPlayerDeleteCmd())
	cmd.AddCommand(newPlayerListCmd())

	return cmd
}

func newPlayerRegisterCmd() *cobra.Command {
	var user, pass, repeat, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if repeat == "" {
				repeat = pass
			}
			req := request.RegisterRequest{
				Username:       user,
				Password:       pass,
				RepeatPassword: repeat,
				Email:          email,
			}
			var result response.AuthResponse

			if err := client.Post(cmd.Context(), "/api/v1/players/register", req, &result); err != nil {
				return err
			}

			if err := cfg.SaveToken(result.SessionToken); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	cmd.Flags().StringVar(&repeat, "repeat", "", "Repeated password (defaults to --pass)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newPlayerLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.LoginRequest{Username: user, Password: pass}
			var result response.AuthResponse

			if err := client.Post(cmd.Context(), "/api/v1/players/login", req, &result); err != nil {
				return err
			}

			if err := cfg.SaveToken(result.SessionToken); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newPlayerLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current login",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post(cmd.Context(), "/api/v1/players/logout", nil, nil); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}
			output(cmd).PrintMessage("Logged out")
			return nil
		},
	}
}

func newPlayerMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current player's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Profile

			if err := client.Get(cmd.Context(), "/api/v1/players/me", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newPlayerDeleteCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an account and its profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.DeleteAccountRequest{Username: user, Password: pass}
			if err := client.Post(cmd.Context(), "/api/v1/players/delete", req, nil); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}
			output(cmd).PrintMessage(fmt.Sprintf("Deleted %s", user))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newPlayerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every player by score",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.ProfileList

			if err := client.Get(cmd.Context(), "/api/v1/players", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
