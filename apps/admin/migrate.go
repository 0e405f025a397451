package main

import (
	"github.com/spf13/cobra"

	"github.com/Mabu007/czane-beauty-academy/apps"
	"github.com/Mabu007/czane-beauty-academy/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Run goose migrations (up, up-to, down, down-to, redo, reset, status, version)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			if cli.db == nil {
				return apps.NewArgumentError("migrations only apply to the postgres engine")
			}
			return gooseRunFunc(cmd.Context(), cli.db, args[0], args[1:]...)
		},
	}
}
