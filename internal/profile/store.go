package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store defines the interface for profile persistence, keyed by session id.
type Store interface {
	// Get returns nil, nil when the session has no profile.
	Get(ctx context.Context, sessionID string) (*UserProfile, error)
	Save(ctx context.Context, sessionID string, p UserProfile) error
	Has(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps profiles in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]UserProfile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]UserProfile)}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[sessionID]
	if !ok {
		return nil, nil
	}
	c := p.Clone()
	return &c, nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, p UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[sessionID] = p.Clone()
	return nil
}

func (s *MemoryStore) Has(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.profiles[sessionID]
	return ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, sessionID)
	return nil
}

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates the profiles table if needed.
func NewPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		session_id TEXT PRIMARY KEY,
		name TEXT,
		diet_type TEXT,
		religious_restrictions TEXT,
		allergies TEXT[],
		disliked_foods TEXT[],
		cooking_time TEXT,
		activity_level TEXT,
		weight_goal TEXT,
		budget TEXT
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create profiles table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Get retrieves the profile for a session.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*UserProfile, error) {
	var p UserProfile
	var allergies, disliked pq.StringArray

	err := s.db.QueryRowxContext(ctx,
		"SELECT name, diet_type, religious_restrictions, allergies, disliked_foods, cooking_time, activity_level, weight_goal, budget FROM profiles WHERE session_id = $1",
		sessionID,
	).Scan(
		&p.Name,
		&p.DietType,
		&p.ReligiousRestrictions,
		&allergies,
		&disliked,
		&p.CookingTime,
		&p.ActivityLevel,
		&p.WeightGoal,
		&p.Budget,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.Allergies = []string(allergies)
	p.DislikedFoods = []string(disliked)
	return &p, nil
}

// Save upserts the profile for a session.
func (s *PostgresStore) Save(ctx context.Context, sessionID string, p UserProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (session_id, name, diet_type, religious_restrictions, allergies, disliked_foods, cooking_time, activity_level, weight_goal, budget)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO UPDATE SET name = $2, diet_type = $3, religious_restrictions = $4, allergies = $5, disliked_foods = $6, cooking_time = $7, activity_level = $8, weight_goal = $9, budget = $10`,
		sessionID,
		p.Name,
		p.DietType,
		p.ReligiousRestrictions,
		pq.Array(p.Allergies),
		pq.Array(p.DislikedFoods),
		p.CookingTime,
		p.ActivityLevel,
		p.WeightGoal,
		p.Budget,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Has reports whether the session has a stored profile.
func (s *PostgresStore) Has(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM profiles WHERE session_id = $1)", sessionID); err != nil {
		return false, fmt.Errorf("failed to check profile: %w", err)
	}
	return exists, nil
}

// Delete removes the profile of a session.
func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE session_id = $1", sessionID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}
