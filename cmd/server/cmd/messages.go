package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rungomx/server/internal/config"
	"github.com/rungomx/server/internal/i18n"
)

func newMessagesCommand() *cobra.Command {
	var defaultLocale string

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Check the embedded message bundles",
	}
	cmd.PersistentFlags().StringVar(&defaultLocale, "default-locale", "es", "locale whose bundle defines the key schema")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate every locale against the default locale's keys",
		Long: `Load every supported locale and compare it key by key with the
default locale. Exits non-zero on the first missing key, unexpected key,
or type mismatch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := newCommandCatalog(defaultLocale)
			if err != nil {
				return err
			}
			if err := catalog.ValidateAll(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d locales valid\n", len(i18n.Locales()))
			return nil
		},
	})

	var pathname string
	namespaces := &cobra.Command{
		Use:   "namespaces",
		Short: "Print the namespaces loaded for a page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := newCommandCatalog(defaultLocale)
			if err != nil {
				return err
			}
			_, sel, err := catalog.LoadRouteMessages(catalog.DefaultLocale(), pathname)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "layout: %s\n", sel.Layout)
			for _, name := range sel.Names() {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
	namespaces.Flags().StringVar(&pathname, "path", "/", "page pathname without the locale prefix")
	cmd.AddCommand(namespaces)

	return cmd
}

func newCommandCatalog(defaultLocale string) (*i18n.Catalog, error) {
	logger := config.NewLogger(loggingConfig(config.LoggingConfig{Level: "warn", Format: "console"}))
	catalog, err := i18n.NewEmbeddedCatalog(defaultLocale, logger)
	if err != nil {
		return nil, fmt.Errorf("load message catalog: %w", err)
	}
	return catalog, nil
}
