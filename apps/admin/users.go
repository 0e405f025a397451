package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the password of an existing one",
		Long:  "Create a user, or update the password of an existing one. The password is prompted next.",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := requireFlag(cmd, "email")
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			isAdmin, _ := cmd.Flags().GetBool("admin")
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd, email, name, pwd, isAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) saved\n", usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().String("email", "", "The user's email")
	cmd.Flags().String("name", "", "The user's display name")
	cmd.Flags().Bool("admin", false, "Grant the admin role")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(cmd *cobra.Command, email, name, pwd string, isAdmin bool) (user.User, error) {
	ctx := cmd.Context()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
		nu := user.NewUser{
			DisplayName: core.CleanString(name),
			Email:       email,
			Password:    pwd,
			Role:        user.RoleStudent,
		}
		if isAdmin {
			nu.Role = user.RoleAdmin
		}
		return cli.usrSvc.Create(ctx, nu)
	}

	if err = cli.usrSvc.SetPassword(ctx, email, pwd); err != nil {
		return user.User{}, err
	}
	if isAdmin && !usr.IsAdmin() {
		return cli.usrSvc.SetRole(ctx, email, user.RoleAdmin)
	}
	return cli.usrSvc.GetByEmail(ctx, email)
}

func (cli *commandLine) setAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setadmin",
		Short: "Grant (or revoke with --revoke) the admin role",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := requireFlag(cmd, "email")
			if err != nil {
				return err
			}
			role := user.RoleAdmin
			if revoke, _ := cmd.Flags().GetBool("revoke"); revoke {
				role = user.RoleStudent
			}
			usr, err := cli.usrSvc.SetRole(cmd.Context(), email, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().String("email", "", "The user's email")
	cmd.Flags().Bool("revoke", false, "Demote the user back to student")
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password",
		Long:  "Reset a user's password. The password is prompted next.",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := requireFlag(cmd, "email")
			if err != nil {
				return err
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.usrSvc.SetPassword(cmd.Context(), email, pwd)
		},
	}
	cmd.Flags().String("email", "", "The user's email")
	return cmd
}
