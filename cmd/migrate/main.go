package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/uaifestas/festas-go/internal/config"
	"github.com/uaifestas/festas-go/internal/database"
	"github.com/uaifestas/festas-go/internal/logger"
	"github.com/uaifestas/festas-go/internal/store/pgstore"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the festas database schema",
	Long: `Manage the festas PostgreSQL database.

Subcommands:
  up    - Create or update every table
  seed  - Apply the schema and insert the demo accounts and event`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or update every table",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, zl, err := connect()
		if err != nil {
			return err
		}
		defer zl.Sync()

		zl.Info("database migration completed successfully")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply the schema and insert demo data",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, zl, err := connect()
		if err != nil {
			return err
		}
		defer zl.Sync()

		if err := database.SeedData(cmd.Context(), pgstore.New(db), zl); err != nil {
			return fmt.Errorf("failed to seed data: %w", err)
		}
		zl.Info("database migration and seeding completed successfully",
			zap.String("password", database.SeedPassword),
		)
		return nil
	},
}

// connect opens the database; database.Connect applies the schema.
func connect() (*gorm.DB, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	zl, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	db, err := database.Connect(cfg, zl)
	if err != nil {
		return nil, nil, err
	}
	return db, zl, nil
}

func main() {
	rootCmd.AddCommand(upCmd, seedCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
