package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"animedash/internal/archive"
	"animedash/pkg/database"
)

func (a *app) openArchive(cmd *cobra.Command) (*archive.Repo, func() error, error) {
	db, err := database.Open(cmd.Context(), database.Config{Path: a.archivePath()})
	if err != nil {
		return nil, nil, err
	}
	return archive.NewRepo(db, a.logger.Named("archive")), db.Close, nil
}

func (a *app) archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Load the ranking and record it in the local archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ls, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			repo, closeDB, err := a.openArchive(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			id, err := repo.Save(cmd.Context(), ls.Dataset)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d entries as %s\n", len(ls.Dataset.Records), id)
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var (
		limit   int
		entries string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived revisions, newest first",
		Long: `Lists archived revisions, newest first. With --entries, prints the
ranking stored under one revision id instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 || limit > archive.MaxListLimit {
				return fmt.Errorf("--limit must be between 1 and %d", archive.MaxListLimit)
			}
			repo, closeDB, err := a.openArchive(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			if entries != "" {
				records, err := repo.Entries(cmd.Context(), entries)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					return fmt.Errorf("no archived entries for revision %q", entries)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), records)
				}
				fmt.Fprintln(cmd.OutOrStdout(), recordTable(records))
				return nil
			}

			revs, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), revs)
			}
			if len(revs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no archived revisions")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), revisionTable(revs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", archive.DefaultListLimit, "max revisions")
	cmd.Flags().StringVar(&entries, "entries", "", "print the entries of this revision id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
