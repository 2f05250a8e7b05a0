package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"rental_marketplace/internal/config"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/notify"
	"rental_marketplace/internal/repository"
	"rental_marketplace/internal/schema"
	"rental_marketplace/internal/service"
	"rental_marketplace/pkg/logger"
)

const commandTimeout = 30 * time.Second

// env holds what every command needs once configuration is loaded.
type env struct {
	cfg *config.Config
	log logger.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{ServiceName: "rentalctl", Environment: cfg.Environment, Level: cfg.Log.Level})
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) pool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, e.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")

			e, err := loadEnv()
			if err != nil {
				return err
			}

			db, err := schema.Open(schema.Config{DSN: e.cfg.Database.DSN, LogSQL: debug})
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := schema.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
	cmd.Flags().Bool("debug", false, "Log every SQL statement")
	return cmd
}

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <external-id-or-email>",
		Short: "Grant the admin role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			pool, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			opts := service.OptionsFromConfig(e.cfg)
			audit := service.NewAuditService(repository.NewAuditRepository(pool, e.log), opts, e.log)
			users := service.NewUserService(repository.NewUserRepository(pool, e.log), audit, notify.NewLogPublisher(e.log), opts, e.log)

			user, err := users.Promote(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", user.DisplayName, user.ID, user.Role)
			return nil
		},
	}
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the verification queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, _ := cmd.Flags().GetBool("list")

			e, err := loadEnv()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			pool, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			properties := repository.NewPropertyRepository(pool, e.log)
			counts, err := properties.CountByStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to count properties: %w", err)
			}
			printSummary(cmd.OutOrStdout(), domain.NewQueueSummary(counts))

			if !list {
				return nil
			}
			for _, status := range domain.AssignableStatuses {
				status := status
				items, err := properties.List(ctx, &status)
				if err != nil {
					return fmt.Errorf("failed to list %s properties: %w", status, err)
				}
				printProperties(cmd.OutOrStdout(), status, items)
			}
			return nil
		},
	}
	cmd.Flags().Bool("list", false, "List the listings still awaiting a decision")
	return cmd
}

func printSummary(w io.Writer, s domain.QueueSummary) {
	fmt.Fprintf(w, "Pending review:   %d\n", s.Pending)
	fmt.Fprintf(w, "In verification:  %d\n", s.InProgress)
	fmt.Fprintf(w, "Live:             %d\n", s.Live)
	fmt.Fprintf(w, "Rejected:         %d\n", s.Rejected)
	fmt.Fprintf(w, "Total:            %d\n", s.Total)
}

func printProperties(w io.Writer, status domain.PropertyStatus, items []*domain.Property) {
	fmt.Fprintf(w, "\n%s (%d)\n", status, len(items))
	for _, p := range items {
		verifier := "-"
		if p.AssignedVerifier != nil {
			verifier = *p.AssignedVerifier
		}
		fmt.Fprintf(w, "- %s  %-40s  rent=%d  verifier=%s  created=%s\n",
			p.ID, p.Title, p.Rent, verifier, p.CreatedAt.Format(time.RFC3339))
	}
}
