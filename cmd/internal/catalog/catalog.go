// Package catalog serves the portal's academic listings: NCAAA courses and
// the ORCID research records of the signed-in user.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("catalog: not found")
	ErrConflict     = errors.New("catalog: conflict")
	ErrInvalidInput = errors.New("catalog: invalid input")
)

// Course is an NCAAA accredited course.
type Course struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Title      string    `json:"title"`
	Department string    `json:"department"`
	Level      string    `json:"level"`
	CreatedAt  time.Time `json:"created_at"`
}

// Research is an ORCID work owned by a user.
type Research struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	DOI       string    `json:"doi"`
	Journal   string    `json:"journal"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists courses and researches.
type Store interface {
	ListCourses(ctx context.Context) ([]Course, error)
	CreateCourse(ctx context.Context, c Course) (Course, error)
	ListResearches(ctx context.Context, ownerID string) ([]Research, error)
	CreateResearch(ctx context.Context, r Research) (Research, error)
}

// normalizeCode upper-cases and strips spaces: "cs 101" -> "CS101".
func normalizeCode(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
