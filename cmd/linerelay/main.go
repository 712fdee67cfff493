package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexthr/linerelay/internal/config"
	"github.com/nexthr/linerelay/internal/db"
)

func main() {
	root := &cobra.Command{
		Use:   "linerelay",
		Short: "Multi-tenant LINE to Dify conversational relay",
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres)
		},
	}
}
