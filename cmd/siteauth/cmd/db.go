package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/repairloader/siteauth/forum"
	gormstore "github.com/repairloader/siteauth/stores/gorm"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := gormstore.AutoMigrate(st.db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrated")
		return nil
	},
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default forum categories, tags and tools",
	Long:  `Upserts the default catalog by slug.  Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := gormstore.AutoMigrate(st.db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		result, err := forum.Seed(cmd.Context(), st.Forum)
		if err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d categories, %d tags, %d tools\n", result.Categories, result.Tags, result.Tools)
		return nil
	},
}

var dbPruneSessionsCmd = &cobra.Command{
	Use:   "prune-sessions",
	Short: "Delete expired sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Identities.DeleteExpiredSessions(cmd.Context()); err != nil {
			return fmt.Errorf("pruning sessions: %w", err)
		}
		slog.Info("expired sessions deleted")
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbSeedCmd)
	dbCmd.AddCommand(dbPruneSessionsCmd)
}
