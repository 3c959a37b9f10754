package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"portal/cmd/identity/ids"
)

// PostgresStore implements Store over portal.courses and portal.researches.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, title, department, level, created_at
		FROM portal.courses
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Course, error) {
		var c Course
		err := row.Scan(&c.ID, &c.Code, &c.Title, &c.Department, &c.Level, &c.CreatedAt)
		return c, err
	})
}

func (s *PostgresStore) CreateCourse(ctx context.Context, c Course) (Course, error) {
	c.Code = normalizeCode(c.Code)
	if c.Code == "" || c.Title == "" {
		return Course{}, ErrInvalidInput
	}
	c.CreatedAt = time.Now().UTC()
	id, err := ids.NewULID(c.CreatedAt)
	if err != nil {
		return Course{}, err
	}
	c.ID = id

	_, err = s.pool.Exec(ctx, `
		INSERT INTO portal.courses (id, code, title, department, level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Code, c.Title, c.Department, c.Level, c.CreatedAt)
	if isUniqueViolation(err) {
		return Course{}, ErrConflict
	}
	if err != nil {
		return Course{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListResearches(ctx context.Context, ownerID string) ([]Research, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, title, doi, journal, year, created_at
		FROM portal.researches
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Research, error) {
		var r Research
		err := row.Scan(&r.ID, &r.OwnerID, &r.Title, &r.DOI, &r.Journal, &r.Year, &r.CreatedAt)
		return r, err
	})
}

func (s *PostgresStore) CreateResearch(ctx context.Context, r Research) (Research, error) {
	if r.OwnerID == "" || r.Title == "" {
		return Research{}, ErrInvalidInput
	}
	r.CreatedAt = time.Now().UTC()
	id, err := ids.NewULID(r.CreatedAt)
	if err != nil {
		return Research{}, err
	}
	r.ID = id

	_, err = s.pool.Exec(ctx, `
		INSERT INTO portal.researches (id, owner_id, title, doi, journal, year, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.OwnerID, r.Title, r.DOI, r.Journal, r.Year, r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Research{}, ErrNotFound
		}
		return Research{}, err
	}
	return r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
