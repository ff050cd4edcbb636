package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store defines the interface for report history operations.
type Store interface {
	// Save assigns a unique id (bumping a colliding time-derived id) and returns it.
	Save(ctx context.Context, r *Report) (int64, error)
	// List returns the session's reports, newest first.
	List(ctx context.Context, sessionID string) ([]*Report, error)
	Get(ctx context.Context, id int64) (*Report, error)
	Delete(ctx context.Context, id int64) error
}

// MemoryStore keeps reports in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []*Report // newest first
	ids     map[int64]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[int64]bool)}
}

func (s *MemoryStore) Save(ctx context.Context, r *Report) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.ids[r.ID] {
		r.ID++
	}
	s.ids[r.ID] = true
	cp := *r
	cp.Conditions = append([]string(nil), r.Conditions...)
	s.reports = append([]*Report{&cp}, s.reports...)
	return r.ID, nil
}

func (s *MemoryStore) List(ctx context.Context, sessionID string) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Report{}
	for _, r := range s.reports {
		if r.SessionID == sessionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.reports {
		if r.ID == id {
			s.reports = append(s.reports[:i], s.reports[i+1:]...)
			delete(s.ids, id)
			return nil
		}
	}
	return ErrNotFound
}

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates the reports table if needed.
func NewPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		report_id BIGINT PRIMARY KEY,
		session_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		input_excerpt TEXT,
		translation TEXT,
		diet_recommendation TEXT,
		meal_plan TEXT,
		conditions TEXT[]
	);
	CREATE INDEX IF NOT EXISTS reports_session_idx ON reports (session_id, created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create reports table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Save inserts the report, retrying with the next id while the time-derived id is taken.
func (s *PostgresStore) Save(ctx context.Context, r *Report) (int64, error) {
	for attempt := 0; attempt < 10; attempt++ {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO reports (report_id, session_id, created_at, input_excerpt, translation, diet_recommendation, meal_plan, conditions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (report_id) DO NOTHING`,
			r.ID,
			r.SessionID,
			r.CreatedAt,
			r.InputExcerpt,
			r.Translation,
			r.DietRecommendation,
			r.MealPlan,
			pq.Array(r.Conditions),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save report: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			return r.ID, nil
		}
		r.ID++
	}
	return 0, fmt.Errorf("failed to save report: no free id near %d", r.ID)
}

const selectReport = "SELECT report_id, session_id, created_at, input_excerpt, translation, diet_recommendation, meal_plan, conditions FROM reports"

func scanReport(row interface{ Scan(...any) error }) (*Report, error) {
	var r Report
	var conds pq.StringArray
	if err := row.Scan(&r.ID, &r.SessionID, &r.CreatedAt, &r.InputExcerpt, &r.Translation, &r.DietRecommendation, &r.MealPlan, &conds); err != nil {
		return nil, err
	}
	r.Conditions = []string(conds)
	return &r, nil
}

// List retrieves the reports of a session, newest first.
func (s *PostgresStore) List(ctx context.Context, sessionID string) ([]*Report, error) {
	rows, err := s.db.QueryxContext(ctx, selectReport+" WHERE session_id = $1 ORDER BY created_at DESC, report_id DESC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []*Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return reports, nil
}

// Get retrieves a single report.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*Report, error) {
	r, err := scanReport(s.db.QueryRowxContext(ctx, selectReport+" WHERE report_id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return r, nil
}

// Delete removes a report.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE report_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
