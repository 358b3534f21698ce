package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	sa "github.com/repairloader/siteauth"
)

var (
	emailFlag    string
	passwordFlag string
	nameFlag     string
	handleFlag   string
	roleFlag     string
	stdinFlag    bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a password user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		role := sa.ParseRole(roleFlag)
		if roleFlag != "" && !sa.Role(strings.ToLower(roleFlag)).Valid() {
			return fmt.Errorf("unknown role %q", roleFlag)
		}
		password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}

		creds := &sa.Credentials{Email: emailFlag, Password: password, Name: nameFlag, Handle: handleFlag}
		if authErr := sa.DefaultSignupValidator(creds); authErr != nil {
			return authErr
		}

		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		user, err := sa.NewCreateUserFunc(st.Identities)(cmd.Context(), creds)
		if err != nil {
			return err
		}
		if role != sa.RoleUser {
			if err := sa.SetRole(cmd.Context(), st.Identities, user.ID, role); err != nil {
				return fmt.Errorf("setting role: %w", err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s, role %s)\n", user.ID, user.Email, role)
		return nil
	},
}

var usersSetRoleCmd = &cobra.Command{
	Use:   "set-role",
	Short: "Change the role of a user",
	Long:  `Role changes apply on the user's next request; existing sessions stay valid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" || roleFlag == "" {
			return fmt.Errorf("--email and --role flags are required")
		}
		role := sa.Role(strings.ToLower(roleFlag))
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", roleFlag)
		}

		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		user, err := st.Identities.GetUserByEmail(cmd.Context(), emailFlag)
		if err != nil {
			return fmt.Errorf("looking up %s: %w", emailFlag, err)
		}
		if err := sa.SetRole(cmd.Context(), st.Identities, user.ID, role); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, role)
		return nil
	},
}

var usersSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Set or replace the password of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}

		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := sa.SetPassword(cmd.Context(), st.Identities, emailFlag, password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", emailFlag)
		return nil
	},
}

// readPassword takes --password, or one line of stdin with --stdin
func readPassword(in io.Reader, out io.Writer) (string, error) {
	password := passwordFlag
	if stdinFlag {
		scanner := bufio.NewScanner(in)
		fmt.Fprint(out, "Enter password: ")
		if scanner.Scan() {
			password = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
	}
	if password == "" {
		return "", fmt.Errorf("password is required (use --password or --stdin)")
	}
	return password, nil
}

func init() {
	for _, c := range []*cobra.Command{usersCreateCmd, usersSetRoleCmd, usersSetPasswordCmd} {
		c.Flags().StringVar(&emailFlag, "email", "", "Email address of the user")
	}
	for _, c := range []*cobra.Command{usersCreateCmd, usersSetPasswordCmd} {
		c.Flags().StringVar(&passwordFlag, "password", "", "Password (prefer --stdin)")
		c.Flags().BoolVar(&stdinFlag, "stdin", false, "Read the password from stdin")
	}
	usersCreateCmd.Flags().StringVar(&nameFlag, "name", "", "Display name")
	usersCreateCmd.Flags().StringVar(&handleFlag, "handle", "", "Public handle")
	usersCreateCmd.Flags().StringVar(&roleFlag, "role", "", "Role: user, moderator or admin")
	usersSetRoleCmd.Flags().StringVar(&roleFlag, "role", "", "Role: user, moderator or admin")

	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersSetRoleCmd)
	usersCmd.AddCommand(usersSetPasswordCmd)
}
