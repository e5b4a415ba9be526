package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/andresmejia3/facecheck/internal/types"
)

// ErrNotFound is returned when no stored rep is within the search threshold.
var ErrNotFound = errors.New("no matching representation")

// Store manages the PostgreSQL connection and pgvector operations.
type Store struct {
	conn *pgx.Conn
}

// Match is the nearest stored rep for a probe.
type Match struct {
	ID       int64
	Label    string
	Path     string
	Distance float64
}

// LabelSummary counts the reps stored for one identity.
type LabelSummary struct {
	Label     string
	Count     int
	UpdatedAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the reps table and vector extension if they don't exist.
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS face_reps (
			id BIGSERIAL PRIMARY KEY,
			image_id TEXT NOT NULL UNIQUE,
			path TEXT NOT NULL,
			label TEXT NOT NULL,
			bbox INT[] NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS face_reps_label_idx ON face_reps (label);
		CREATE INDEX IF NOT EXISTS face_reps_embedding_idx ON face_reps USING hnsw (embedding vector_cosine_ops);
	`, types.RepSize)
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	if s.conn != nil {
		s.conn.Close(ctx)
	}
}

// UpsertRep stores the rep of one image. Re-representing the same file replaces the row.
func (s *Store) UpsertRep(ctx context.Context, imageID string, sample types.Sample, bb types.BoundingBox) error {
	if len(sample.Rep) != types.RepSize {
		return fmt.Errorf("rep has %d dimensions, want %d", len(sample.Rep), types.RepSize)
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO face_reps (image_id, path, label, bbox, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5::vector, NOW())
		ON CONFLICT (image_id) DO UPDATE SET
			path = EXCLUDED.path,
			label = EXCLUDED.label,
			bbox = EXCLUDED.bbox,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`, imageID, sample.Path, sample.Label, []int{bb.Left, bb.Top, bb.Right, bb.Bottom}, vecToString(sample.Rep))
	return err
}

// vecToString formats a float slice into a PostgreSQL vector string format "[1.0,2.0,...]"
func vecToString(vec []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector reads pgvector's text output.
func parseVector(s string) (types.Rep, error) {
	s = strings.Trim(s, "[]")
	if s == "" {
		return types.Rep{}, nil
	}
	parts := strings.Split(s, ",")
	vec := make(types.Rep, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		vec[i] = v
	}
	return vec, nil
}

// FindClosest searches for the nearest neighbor using cosine distance.
// Returns ErrNotFound if nothing is within the threshold.
func (s *Store) FindClosest(ctx context.Context, vec types.Rep, threshold float64) (Match, error) {
	// <=> is the cosine distance operator in pgvector
	query := `
		SELECT id, label, path, embedding <=> $1::vector AS dist
		FROM face_reps
		WHERE embedding <=> $1::vector < $2
		ORDER BY dist ASC
		LIMIT 1`

	var m Match
	err := s.conn.QueryRow(ctx, query, vecToString(vec), threshold).Scan(&m.ID, &m.Label, &m.Path, &m.Distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return Match{}, ErrNotFound
	}
	if err != nil {
		return Match{}, err
	}
	return m, nil
}

// Samples returns every stored rep, ordered by label then path.
func (s *Store) Samples(ctx context.Context) ([]types.Sample, error) {
	rows, err := s.conn.Query(ctx, `SELECT label, path, embedding::text FROM face_reps ORDER BY label, path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []types.Sample
	for rows.Next() {
		var smp types.Sample
		var vecStr string
		if err := rows.Scan(&smp.Label, &smp.Path, &vecStr); err != nil {
			return nil, err
		}
		if smp.Rep, err = parseVector(vecStr); err != nil {
			return nil, err
		}
		samples = append(samples, smp)
	}
	return samples, rows.Err()
}

// ListLabels summarizes stored reps per identity.
func (s *Store) ListLabels(ctx context.Context) ([]LabelSummary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT label, COUNT(*), MAX(updated_at)
		FROM face_reps
		GROUP BY label
		ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LabelSummary
	for rows.Next() {
		var l LabelSummary
		if err := rows.Scan(&l.Label, &l.Count, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteLabel removes every rep of one identity and returns how many rows went away.
func (s *Store) DeleteLabel(ctx context.Context, label string) (int64, error) {
	tag, err := s.conn.Exec(ctx, "DELETE FROM face_reps WHERE label = $1", label)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `DROP TABLE IF EXISTS face_reps CASCADE;`)
	return err
}
