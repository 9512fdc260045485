package book

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Source tells where a loaded collection came from.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Snapshot is the result of loading the collection.
type Snapshot struct {
	Books   []Book
	Source  Source
	Warning string
}

// Store reads from the primary repository and falls back to a secondary one
// (usually the JSON file) when the primary fails. Writes only ever go to the
// primary.
type Store struct {
	primary  Repository
	fallback Repository
	log      *zap.Logger
}

// NewStore creates a store. fallback may be nil.
func NewStore(primary, fallback Repository, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{primary: primary, fallback: fallback, log: log}
}

// Load returns the normalized collection. An error is returned only when both
// repositories fail.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	books, err := s.primary.List(ctx)
	if err == nil {
		return Snapshot{Books: NormalizeAll(books), Source: SourcePrimary}, nil
	}
	if s.fallback == nil {
		return Snapshot{}, fmt.Errorf("load library: %w", err)
	}

	s.log.Warn("primary storage unavailable, using fallback", zap.Error(err))
	books, ferr := s.fallback.List(ctx)
	if ferr != nil {
		return Snapshot{}, fmt.Errorf("load library: %w (fallback: %v)", err, ferr)
	}
	return Snapshot{
		Books:   NormalizeAll(books),
		Source:  SourceFallback,
		Warning: "Remote storage is unavailable; showing the local copy. Changes may not be saved.",
	}, nil
}

func (s *Store) Create(ctx context.Context, b Book) error {
	return s.primary.Create(ctx, b)
}

func (s *Store) Update(ctx context.Context, b Book) error {
	return s.primary.Update(ctx, b)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.primary.Delete(ctx, id)
}

// Pinger is implemented by repositories that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the primary repository when it supports it.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.primary.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
