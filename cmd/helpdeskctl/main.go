package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/seed"
)

var rootCmd = &cobra.Command{
	Use:           "helpdeskctl",
	Short:         "Administration tool for the helpdesk service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		return persistence.RunMigrations(cfg.Postgres.DSN, logger)
	},
}

var rollbackSteps int

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		return persistence.RollbackMigrations(cfg.Postgres.DSN, rollbackSteps, logger)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := bootstrap()
		if err != nil {
			return err
		}
		version, dirty, err := persistence.MigrationVersion(cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
		return nil
	},
}

var (
	seedFile   string
	seedDryRun bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load users, categories and trigger rules",
	Long: `Seed reads a YAML document with users, categories and trigger_rules
and creates whatever does not exist yet. Without --file the bundled
sample data is used.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			file *seed.File
			err  error
		)
		if seedFile != "" {
			file, err = seed.LoadFile(seedFile)
		} else {
			file, err = seed.Sample()
		}
		if err != nil {
			return err
		}
		run := func(cfg *config.Config, store repository.Store, logger *zap.Logger) error {
			sum, err := seed.Apply(cmd.Context(), store, file, cfg.Auth.BcryptCost, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users: %d, categories: %d, rules: %d created; %d skipped\n",
				sum.UsersCreated, sum.CategoriesCreated, sum.RulesCreated, sum.Skipped)
			return nil
		}
		if seedDryRun {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			return run(cfg, memory.NewStore(), logger)
		}
		return withStore(cmd.Context(), run)
	},
}

var (
	adminUsername string
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := auth.CheckPasswordStrength(adminPassword); err != nil {
			return err
		}
		return withStore(cmd.Context(), func(cfg *config.Config, store repository.Store, logger *zap.Logger) error {
			hash, err := auth.HashPassword(adminPassword, cfg.Auth.BcryptCost)
			if err != nil {
				return err
			}
			user := &domain.User{
				Username:     adminUsername,
				Email:        strings.ToLower(adminEmail),
				PasswordHash: hash,
				Role:         domain.RoleAdmin,
			}
			if err := store.Repos().Users.Create(cmd.Context(), user); err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			logger.Info("admin created", zap.String("username", user.Username), zap.String("id", user.ID))
			return nil
		})
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)

	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Seed YAML file")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Validate and apply against an in-memory store only")

	createAdminCmd.Flags().StringVar(&adminUsername, "username", "", "Username (required)")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Email (required)")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Password (required)")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(migrateCmd, seedCmd, createAdminCmd)
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func withStore(ctx context.Context, fn func(*config.Config, repository.Store, *zap.Logger) error) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	return fn(cfg, repository.NewPostgresStore(pg.PoolHandle()), logger)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
