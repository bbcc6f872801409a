package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/spf13/cobra"

	"animedash/internal/dashboard"
	"animedash/internal/filter"
)

func (a *app) topCmd() *cobra.Command {
	var (
		title    string
		genre    string
		minScore float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the ranking, optionally filtered",
		Long: `Loads both ranking pages and prints the entries in rank order.

At most one filter applies: --title (case-insensitive substring),
--genre (exact tag) or --min-score (0-10).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			crit, err := criterionFromFlags(cmd, title, genre, minScore)
			if err != nil {
				return err
			}

			_, ls, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			vs := dashboard.Derive(ls, crit)

			if asJSON {
				return printJSON(cmd.OutOrStdout(), vs.View)
			}
			fmt.Fprintln(cmd.OutOrStdout(), recordTable(vs.View))
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries, filter: %s\n", len(vs.View), vs.Total, vs.Active)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title substring")
	cmd.Flags().StringVar(&genre, "genre", "", "genre tag, e.g. Action")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum score")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.MarkFlagsMutuallyExclusive("title", "genre", "min-score")
	return cmd
}

func criterionFromFlags(cmd *cobra.Command, title, genre string, minScore float64) (filter.Criterion, error) {
	switch {
	case cmd.Flags().Changed("title"):
		return filter.ParseCriterion(string(filter.KindTitle), title)
	case cmd.Flags().Changed("genre"):
		return filter.ParseCriterion(string(filter.KindGenre), genre)
	case cmd.Flags().Changed("min-score"):
		return filter.ParseCriterion(string(filter.KindScore), strconv.FormatFloat(minScore, 'f', -1, 64))
	}
	return filter.Criterion{}, nil
}

func (a *app) statsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics of the ranking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ls, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			st := ls.Dataset.Stats
			if asJSON {
				return printJSON(cmd.OutOrStdout(), st)
			}
			printStats(cmd.OutOrStdout(), st, ls.Dataset.Dropped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Look up one entry by its MyAnimeList id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", dashboard.ErrInvalidIdentifier, args[0])
			}
			d, err := a.service().Detail(cmd.Context(), id)
			if err != nil {
				return err
			}
			printDetail(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func (a *app) randomCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Show a random entry of the current ranking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			d, err := svc.Random(cmd.Context(), rand.IntN)
			if errors.Is(err, dashboard.ErrNoSelection) {
				return errors.New("the ranking is empty, nothing to pick")
			}
			if err != nil {
				return err
			}
			printDetail(cmd.OutOrStdout(), d)
			return nil
		},
	}
}
