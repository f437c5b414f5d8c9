package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync/pkg/core"
)

func newRegisterCmd(c *cli) *cobra.Command {
	var name, email, password, confirm string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			signIn, err := svc.Navigator().SignIn()
			if err != nil {
				return fmt.Errorf("already signed in as %s: run `notesync logout` first", handle(svc))
			}
			register, err := signIn.OpenRegister()
			if err != nil {
				return err
			}
			if confirm == "" {
				confirm = password
			}
			if err := register.Submit(cmd.Context(), name, email, password, confirm); err != nil {
				return userMessage(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", handle(svc))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Password confirmation (default: same as --password)")
	return cmd
}

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			if svc.Sessions().Current().Authenticated() {
				if err := svc.Sessions().SignOut(cmd.Context()); err != nil {
					return userMessage(err)
				}
			}
			signIn, err := svc.Navigator().SignIn()
			if err != nil {
				return err
			}
			if err := signIn.Submit(cmd.Context(), email, password); err != nil {
				return userMessage(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", handle(svc))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			list, err := noteList(svc)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err := list.SignOut(cmd.Context()); err != nil {
				return userMessage(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			session := svc.Sessions().Current()
			if !session.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> %s\n", handle(svc), session.Identity.Email, session.UID())
			return nil
		},
	}
}

func handle(svc *core.Service) string {
	session := svc.Sessions().Current()
	if session.Identity == nil {
		return ""
	}
	return session.Identity.Handle()
}
