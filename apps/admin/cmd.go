package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Mabu007/czane-beauty-academy/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrSvc *user.Service
	db     *sql.DB // only set for the postgres engine
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Czane Beauty Academy administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.AddCommand(
		cli.addUserCmd(),
		cli.setAdminCmd(),
		cli.resetPasswordCmd(),
		cli.migrateCmd(),
	)
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(append([]string{}, args...))
	return root.ExecuteContext(context.Background())
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func requireFlag(cmd *cobra.Command, name string) (string, error) {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", err
	}
	if val == "" {
		_ = cmd.Usage()
		return "", errHelp
	}
	return val, nil
}
