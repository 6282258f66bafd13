package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/config"
)

func sourcesCMD(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage upstream sources",
	}
	cmd.AddCommand(sourcesListCMD(cfgPath), sourcesAddCMD(cfgPath), sourcesTestCMD(cfgPath))
	return cmd
}

func sourcesListCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(ctx context.Context, _ *config.Config, app *bootstrap.App) error {
				sources, err := app.Store.ListSources(ctx)
				if err != nil {
					return err
				}
				return writeSources(cmd.OutOrStdout(), sources)
			})
		},
	}
}

func sourcesAddCMD(cfgPath *string) *cobra.Command {
	var (
		src      signal.Source
		typ      string
		disabled bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a source",
		RunE: func(cmd *cobra.Command, args []string) error {
			src.Type = signal.SourceType(strings.ToUpper(typ))
			src.Enabled = !disabled
			if src.ProviderLabel == "" {
				src.ProviderLabel = src.Name
			}
			return withApp(cmd.Context(), *cfgPath, func(ctx context.Context, _ *config.Config, app *bootstrap.App) error {
				id, err := app.Store.UpsertSource(ctx, src)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&src.Name, "name", "", "display name")
	cmd.Flags().StringVar(&typ, "type", string(signal.SourceRSS), "RSS, CUSTOM_RSS, GITHUB_RELEASES, REDDIT_RSS or NPM_UPDATES")
	cmd.Flags().StringVar(&src.Identifier, "identifier", "", "feed URL, owner/repo, subreddit or npm package")
	cmd.Flags().StringVar(&src.ProviderLabel, "provider", "", "provider label (default: name)")
	cmd.Flags().IntVar(&src.Tier, "tier", 2, "tier 1 to 3")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "add the source disabled")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func sourcesTestCMD(cfgPath *string) *cobra.Command {
	var maxItems int
	cmd := &cobra.Command{
		Use:   "test <id>",
		Short: "Fetch one source without recording a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(ctx context.Context, cfg *config.Config, app *bootstrap.App) error {
				src, err := app.Store.SourceByID(ctx, args[0])
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(ctx, cfg.Ingestion.SourceTimeout)
				defer cancel()
				items, err := app.Sources.Fetch(ctx, src, maxItems)
				if err != nil {
					return fmt.Errorf("fetching %s: %w", src.Name, err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"source": src.Name, "count": len(items), "items": items})
			})
		},
	}
	cmd.Flags().IntVar(&maxItems, "max-items", 5, "items to fetch")
	return cmd
}

func writeSources(w io.Writer, sources []signal.Source) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tTIER\tENABLED\tLAST FETCHED\tLAST ERROR")
	for _, s := range sources {
		fetched := "-"
		if s.LastFetchedAt != nil {
			fetched = s.LastFetchedAt.UTC().Format(time.RFC3339)
		}
		lastErr := s.LastError
		if lastErr == "" {
			lastErr = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%s\t%s\n", s.ID, s.Name, s.Type, s.Tier, s.Enabled, fetched, signal.Ellipsize(lastErr, 60))
	}
	return tw.Flush()
}
