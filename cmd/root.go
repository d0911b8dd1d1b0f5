// Package cmd is the command line of the cafe server.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"cafemanager/config"
	"cafemanager/database"
	"cafemanager/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:          "cafemanager",
	Short:        "Cafe management API server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "env file to load before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importMenuCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// boot loads config, builds the logger and opens the database.
func boot() (*config.Config, zerolog.Logger, *gorm.DB, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	log := logger.New(cfg.Production(), cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		return nil, log, nil, err
	}
	return cfg, log, db, nil
}

// commandContext carries the process logger so library code can use logger.Ctx.
func commandContext(cmd *cobra.Command, log zerolog.Logger) context.Context {
	return log.WithContext(cmd.Context())
}
