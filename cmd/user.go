package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/codelens/internal/models"
)

var (
	userEmail         string
	userPassword      string
	userPasswordStdin bool
	userAdmin         bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user, optionally with the admin role",
	Long: `Create a user in the database named by database.url.

This is the only way to create an admin; signups through the API always get
the user role. The password is taken from --password or, with
--password-stdin, from the first line of stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := userPassword
		if userPasswordStdin {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password from stdin: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return fmt.Errorf("a password is required (--password or --password-stdin)")
		}

		role := models.RoleUser
		if userAdmin {
			role = models.RoleAdmin
		}
		if dryRun {
			ui.DryRunMsg("Would create %s user %s <%s>", role, args[0], userEmail)
			return nil
		}

		a, err := newApp(ui.ErrOut)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.cfg.Auth.JWTSecret == "" {
			// Creating a user needs no tokens, only a valid service.
			a.cfg.Auth.JWTSecret = "unused"
		}
		if err := a.openUsers(cmd.Context()); err != nil {
			return err
		}

		u, err := a.auth.CreateUser(cmd.Context(), userEmail, args[0], password, role)
		if err != nil {
			return err
		}
		ui.Success("Created %s user %s (%s)", u.Role, u.Username, u.ID)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password")
	userCreateCmd.Flags().BoolVar(&userPasswordStdin, "password-stdin", false, "Read the password from stdin")
	userCreateCmd.Flags().BoolVar(&userAdmin, "admin", false, "Grant the admin role")
	_ = userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}
