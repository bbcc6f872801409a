// Package archive records every loaded ranking revision in sqlite so the
// history of the top list can be inspected later. The dashboard itself
// never reads records back from here.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"animedash/internal/dashboard"
	"animedash/pkg/models"
)

// Bounds for List.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// ListLimit is the number of revisions List returns for a requested
// limit: the default when limit is not positive, capped at MaxListLimit.
func ListLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

type Repo struct {
	DB     *sql.DB
	logger *zap.Logger
}

// Revision summarizes one archived dataset.
type Revision struct {
	ID             string            `json:"id"`
	LoadedAt       time.Time         `json:"loaded_at"`
	RecordCount    int               `json:"record_count"`
	Dropped        int               `json:"dropped"`
	AverageScore   models.Mean       `json:"average_score"`
	AverageMembers models.Mean       `json:"average_members"`
	Stats          models.Statistics `json:"stats"`
}

func NewRepo(db *sql.DB, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{DB: db, logger: logger}
}

// Save writes the dataset and all of its entries in one transaction and
// returns the archive id.
func (r *Repo) Save(ctx context.Context, ds *dashboard.Dataset) (string, error) {
	statsJSON, err := json.Marshal(ds.Stats)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (id, loaded_at, record_count, dropped, average_score, average_members, stats)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, ds.LoadedAt.UTC(), len(ds.Records), ds.Dropped,
		nullFloat(ds.Stats.AverageScore), nullFloat(ds.Stats.AveragePopularity), string(statsJSON),
	); err != nil {
		return "", fmt.Errorf("insert revision: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO revision_entries (revision_id, anime_id, rank, title, kind, episodes, score, members, genres, demographics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(revision_id, anime_id) DO UPDATE SET
		  rank = excluded.rank,
		  title = excluded.title,
		  kind = excluded.kind,
		  episodes = excluded.episodes,
		  score = excluded.score,
		  members = excluded.members,
		  genres = excluded.genres,
		  demographics = excluded.demographics
	`)
	if err != nil {
		return "", fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, rec := range ds.Records {
		genresJSON, err := json.Marshal(nonNil(rec.Genres))
		if err != nil {
			return "", fmt.Errorf("marshal genres for %d: %w", rec.ID, err)
		}
		demoJSON, err := json.Marshal(nonNil(rec.Demographics))
		if err != nil {
			return "", fmt.Errorf("marshal demographics for %d: %w", rec.ID, err)
		}

		var episodes sql.NullInt64
		if rec.Episodes != nil {
			episodes = sql.NullInt64{Int64: int64(*rec.Episodes), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			id, rec.ID, rec.Rank, rec.Title, rec.Kind, episodes, rec.Score, rec.Members,
			string(genresJSON), string(demoJSON),
		); err != nil {
			return "", fmt.Errorf("insert entry %d: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return id, nil
}

// List returns the most recent revisions first. limit is normalized by
// ListLimit.
func (r *Repo) List(ctx context.Context, limit int) ([]Revision, error) {
	limit = ListLimit(limit)

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, loaded_at, record_count, dropped, average_score, average_members, stats
		FROM revisions
		ORDER BY loaded_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	out := make([]Revision, 0, limit)
	for rows.Next() {
		var (
			rev       Revision
			avgScore  sql.NullFloat64
			avgMember sql.NullFloat64
			statsJSON string
		)
		if err := rows.Scan(&rev.ID, &rev.LoadedAt, &rev.RecordCount, &rev.Dropped, &avgScore, &avgMember, &statsJSON); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		rev.AverageScore = models.Mean{Value: avgScore.Float64, Valid: avgScore.Valid}
		rev.AverageMembers = models.Mean{Value: avgMember.Float64, Valid: avgMember.Valid}
		if err := json.Unmarshal([]byte(statsJSON), &rev.Stats); err != nil {
			return nil, fmt.Errorf("decode stats for %s: %w", rev.ID, err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Entries returns the archived records of one revision in rank order.
func (r *Repo) Entries(ctx context.Context, revisionID string) ([]models.Record, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT anime_id, rank, title, kind, episodes, score, members, genres, demographics
		FROM revision_entries
		WHERE revision_id = ?
		ORDER BY rank ASC
	`, revisionID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var (
			rec        models.Record
			kind       sql.NullString
			episodes   sql.NullInt64
			genresJSON string
			demoJSON   string
		)
		if err := rows.Scan(&rec.ID, &rec.Rank, &rec.Title, &kind, &episodes, &rec.Score, &rec.Members, &genresJSON, &demoJSON); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		rec.Kind = kind.String
		if episodes.Valid {
			n := int(episodes.Int64)
			rec.Episodes = &n
		}
		if err := json.Unmarshal([]byte(genresJSON), &rec.Genres); err != nil {
			return nil, fmt.Errorf("decode genres of entry %d: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(demoJSON), &rec.Demographics); err != nil {
			return nil, fmt.Errorf("decode demographics of entry %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Observe is registered with dashboard.Service.OnChange and archives each
// ready dataset once.
func (r *Repo) Observe(ls dashboard.LoadState) {
	if ls.Status != dashboard.StatusReady || ls.Dataset == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := r.Save(ctx, ls.Dataset)
	if err != nil {
		r.logger.Error("archive revision failed", zap.Int64("revision", ls.Dataset.Revision), zap.Error(err))
		return
	}
	r.logger.Info("archived revision", zap.Int64("revision", ls.Dataset.Revision), zap.String("id", id))
}

func nullFloat(m models.Mean) sql.NullFloat64 {
	return sql.NullFloat64{Float64: m.Value, Valid: m.Valid}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
