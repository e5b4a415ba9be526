package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andresmejia3/facecheck/internal/types"
)

func TestVecRoundTrip(t *testing.T) {
	vec := types.Rep{0.5, -1.25, 3e-7}
	got, err := parseVector(vecToString(vec))
	if err != nil {
		t.Fatalf("parseVector failed: %v", err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("element %d: got %v, want %v", i, got[i], vec[i])
		}
	}

	if _, err := parseVector("[1,x]"); err == nil {
		t.Error("Expected parse error")
	}
	if v, _ := parseVector("[]"); len(v) != 0 {
		t.Errorf("Expected empty vector, got %v", v)
	}
}

func axis(i int) types.Rep {
	v := make(types.Rep, types.RepSize)
	v[i] = 1.0
	return v
}

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Explicitly check for Docker availability and fail hard if missing
	// We wrap this in a function to recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	// Start Postgres Container with pgvector
	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("facecheck_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Initialize Store (runs migrations)
	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close(ctx)

	// --- Test Scenarios ---

	box := types.BoundingBox{Left: 341, Top: 193, Right: 1006, Bottom: 859}
	lennon := types.Sample{Label: "JohnLennon", Path: "train/JohnLennon/1.jpg", Rep: axis(0)}
	carell := types.Sample{Label: "SteveCarell", Path: "train/SteveCarell/1.jpg", Rep: axis(1)}

	if err := s.UpsertRep(ctx, "img-lennon", lennon, box); err != nil {
		t.Fatalf("UpsertRep failed: %v", err)
	}
	if err := s.UpsertRep(ctx, "img-carell", carell, box); err != nil {
		t.Fatalf("UpsertRep failed: %v", err)
	}
	// Same image again must replace, not duplicate
	if err := s.UpsertRep(ctx, "img-carell", carell, box); err != nil {
		t.Fatalf("UpsertRep (again) failed: %v", err)
	}
	if err := s.UpsertRep(ctx, "bad", types.Sample{Rep: types.Rep{1}}, box); err == nil {
		t.Error("Expected dimension error")
	}

	// Find Closest (Exact Match)
	m, err := s.FindClosest(ctx, axis(0), 0.1)
	if err != nil {
		t.Fatalf("FindClosest failed: %v", err)
	}
	if m.Label != "JohnLennon" || m.Distance > 1e-6 {
		t.Errorf("Expected JohnLennon at distance 0, got %+v", m)
	}

	// Find Closest (No Match): axis 2 is orthogonal to both
	if _, err := s.FindClosest(ctx, axis(2), 0.1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	samples, err := s.Samples(ctx)
	if err != nil {
		t.Fatalf("Samples failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}
	if samples[1].Label != "SteveCarell" || samples[1].Rep[1] != 1.0 {
		t.Errorf("Unexpected sample %+v", samples[1].Label)
	}

	labels, err := s.ListLabels(ctx)
	if err != nil {
		t.Fatalf("ListLabels failed: %v", err)
	}
	if len(labels) != 2 || labels[0].Count != 1 {
		t.Errorf("Unexpected labels %+v", labels)
	}

	n, err := s.DeleteLabel(ctx, "JohnLennon")
	if err != nil || n != 1 {
		t.Errorf("DeleteLabel = %d, %v", n, err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
