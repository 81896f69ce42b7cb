package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/rungomx/server/internal/config"
	"github.com/rungomx/server/internal/domain/redirects"
	"github.com/rungomx/server/internal/storage/postgres"
)

func newRedirectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redirects",
		Short: "Inspect and maintain event slug redirects",
		Long: `Resolve, add, and audit redirects between (series, edition) slug pairs.

Examples:
  # Follow the chain for an old URL
  server redirects resolve maraton-cdmx 2024

  # Point an old pair at its new home
  server redirects add maraton-cdmx 2024 maraton-cdmx-oficial 2024

  # Report cycles and chains over the hop limit
  server redirects check`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <series> <edition>",
		Short: "Print the terminal target for a slug pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRedirects(cmd, func(ctx context.Context, svc *redirects.Service) error {
				res, err := svc.Resolve(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if res == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "no redirect")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s (%d hops)\n", res.SeriesSlug, res.EditionSlug, res.Hops)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <from-series> <from-edition> <to-series> <to-edition>",
		Short: "Store a redirect between two slug pairs",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			from := redirects.Pair{SeriesSlug: args[0], EditionSlug: args[1]}
			to := redirects.Pair{SeriesSlug: args[2], EditionSlug: args[3]}
			return withRedirects(cmd, func(ctx context.Context, svc *redirects.Service) error {
				if err := svc.Add(ctx, from, to); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "redirect %s -> %s stored\n", from, to)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report cyclic or overlong redirect chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRedirects(cmd, func(ctx context.Context, svc *redirects.Service) error {
				problems, err := svc.Check(ctx)
				if err != nil {
					return err
				}
				if len(problems) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "all redirects resolve")
					return nil
				}
				for _, p := range problems {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.Start, p.Reason, formatPath(p.Path))
				}
				return fmt.Errorf("%d redirect problem(s) found", len(problems))
			})
		},
	})

	return cmd
}

func formatPath(path []redirects.Pair) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = p.String()
	}
	return strings.Join(parts, " -> ")
}

// withRedirects connects to the database and runs fn against a redirects
// service configured from the environment.
func withRedirects(cmd *cobra.Command, fn func(context.Context, *redirects.Service) error) error {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	var redirectsCfg config.RedirectsConfig
	if err := env.Parse(&redirectsCfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}
	logger := config.NewLogger(loggingConfig(config.LoggingConfig{Level: "warn", Format: "console"}))
	return fn(ctx, redirects.NewService(repo.Redirects(), redirectsCfg.MaxHops, logger))
}
