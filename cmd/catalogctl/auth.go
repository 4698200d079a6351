package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in to the api-server and keep the token locally",
	}

	var email, username, password string

	login := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			var resp tokenData
			payload := map[string]string{"email": email, "password": password}
			if err := a.do(cmd.Context(), http.MethodPost, "/auth/login", "", payload, &resp); err != nil {
				return err
			}
			if err := a.saveToken(resp); err != nil {
				return err
			}
			okLabel.Println("logged in")
			return nil
		},
	}
	login.Flags().StringVar(&email, "email", "", "email address")
	login.Flags().StringVar(&password, "password", "", "password")

	register := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || username == "" || password == "" {
				return errors.New("--email, --username and --password are required")
			}
			var resp tokenData
			payload := map[string]string{"email": email, "username": username, "password": password}
			if err := a.do(cmd.Context(), http.MethodPost, "/auth/register", "", payload, &resp); err != nil {
				return err
			}
			if err := a.saveToken(resp); err != nil {
				return err
			}
			okLabel.Println("registered and logged in")
			return nil
		},
	}
	register.Flags().StringVar(&email, "email", "", "email address")
	register.Flags().StringVar(&username, "username", "", "username")
	register.Flags().StringVar(&password, "password", "", "password")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the token and forget it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tok := a.token(); tok != "" {
				// server-side revocation is best effort; the local copy goes regardless
				_ = a.do(cmd.Context(), http.MethodPost, "/auth/logout", tok, nil, nil)
			}
			if err := a.clearToken(); err != nil {
				return err
			}
			okLabel.Println("logged out")
			return nil
		},
	}

	cmd.AddCommand(login, register, logout)
	return cmd
}
