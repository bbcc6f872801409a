package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"animedash/internal/dashboard"
	"animedash/internal/filter"
	"animedash/pkg/models"
)

func (a *app) exportCmd() *cobra.Command {
	var (
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current ranking to a JSON or CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			write, ok := map[string]func(string, []models.Record) error{
				"json": writeJSON,
				"csv":  writeCSV,
			}[format]
			if !ok {
				return fmt.Errorf("unknown format %q, want json or csv", format)
			}
			if out == "" {
				out = "data/ranking." + format
			}

			_, ls, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			records := dashboard.Derive(ls, filter.Criterion{}).View
			if err := write(out, records); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", len(records), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default data/ranking.<format>)")
	cmd.Flags().StringVar(&format, "format", "json", "json or csv")
	return cmd
}

func writeJSON(path string, records []models.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, records []models.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"rank", "id", "title", "type", "episodes", "score", "members", "genres", "demographics",
	}); err != nil {
		return err
	}
	for _, r := range records {
		eps := ""
		if r.Episodes != nil {
			eps = strconv.Itoa(*r.Episodes)
		}
		if err := writer.Write([]string{
			strconv.Itoa(r.Rank),
			strconv.Itoa(r.ID),
			r.Title,
			r.Kind,
			eps,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			strconv.Itoa(r.Members),
			strings.Join(r.Genres, ","),
			strings.Join(r.Demographics, ","),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
