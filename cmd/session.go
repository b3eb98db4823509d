package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/diticoms/service-desk/internal/model"
	"github.com/spf13/cobra"
)

var loginFlags struct {
	username string
	password string
	sheetURL string
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through the sheet and keep the session in the local store",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the session and every cached value",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVarP(&loginFlags.username, "username", "u", "", "sheet username")
	loginCmd.Flags().StringVarP(&loginFlags.password, "password", "p", "", "sheet password (default $DITICOMS_PASSWORD)")
	loginCmd.Flags().StringVar(&loginFlags.sheetURL, "url", "", "store this sheet endpoint before logging in")
	_ = loginCmd.MarkFlagRequired("username")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginFlags.password
	if password == "" {
		password = os.Getenv("DITICOMS_PASSWORD")
	}
	if password == "" {
		return errors.New("login: password is required (-p or DITICOMS_PASSWORD)")
	}

	ctx := cmd.Context()
	desk, err := openDesk(ctx)
	if err != nil {
		return err
	}
	defer desk.Close()

	if loginFlags.sheetURL != "" {
		cfg, err := desk.Service.Config(ctx)
		if err != nil {
			return err
		}
		cfg.SheetURL = loginFlags.sheetURL
		var actor *model.User
		if u, err := desk.Service.CurrentUser(ctx); err == nil {
			actor = &u
		}
		if _, err := desk.Service.SaveConfig(ctx, actor, cfg); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	u, err := desk.Service.Login(ctx, loginFlags.username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", u.Name, u.Role)
	if tech := u.AssociatedTech; tech != "" && !u.IsAdmin() {
		fmt.Fprintf(cmd.OutOrStdout(), "Showing tickets for technician %s\n", tech)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	desk, err := openDesk(cmd.Context())
	if err != nil {
		return err
	}
	defer desk.Close()
	if err := desk.Service.Logout(cmd.Context()); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}
