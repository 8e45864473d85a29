package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var clearConfirmed bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every folder, video and track from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearConfirmed {
			return errors.New("refusing to clear the catalog without --yes")
		}
		database, repo, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		if err := repo.ClearAll(cmd.Context()); err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Catalog cleared")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply catalog schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		database.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "Schema up to date")
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearConfirmed, "yes", false, "confirm deleting all catalog data")
	rootCmd.AddCommand(clearCmd, migrateCmd)
}
