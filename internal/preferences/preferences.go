// Package preferences persists the page size chosen for each display density.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

type Density string

const (
	Grid Density = "grid"
	List Density = "list"
)

var (
	ErrUnknownDensity = errors.New("unknown density")
	ErrInvalidSize    = errors.New("invalid page size")
)

var allowedSizes = map[Density][]int{
	Grid: {10, 20, 30, 40, 50},
	List: {10, 15, 20, 25, 30},
}

var defaultSizes = map[Density]int{
	Grid: 40,
	List: 20,
}

// Densities lists every density in display order.
func Densities() []Density { return []Density{Grid, List} }

func ParseDensity(s string) (Density, error) {
	d := Density(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := defaultSizes[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDensity, s)
	}
	return d, nil
}

func (d Density) DefaultSize() int { return defaultSizes[d] }

func (d Density) AllowedSizes() []int { return slices.Clone(allowedSizes[d]) }

// Check rejects sizes the density does not offer.
func (d Density) Check(size int) error {
	allowed, ok := allowedSizes[d]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDensity, d)
	}
	if !slices.Contains(allowed, size) {
		return fmt.Errorf("%w: %d not in %v", ErrInvalidSize, size, allowed)
	}
	return nil
}

// Store keeps one page size per density. Get reports false when nothing
// was saved.
type Store interface {
	Get(ctx context.Context, d Density) (int, bool, error)
	Set(ctx context.Context, d Density, size int) error
}

// Service resolves page sizes with defaults and validates writes.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// PageSize returns the saved size for d, or its default when unset or when
// the store fails.
func (s *Service) PageSize(ctx context.Context, d Density) int {
	size, ok, err := s.store.Get(ctx, d)
	if err != nil || !ok || d.Check(size) != nil {
		return d.DefaultSize()
	}
	return size
}

// All returns the effective page size per density.
func (s *Service) All(ctx context.Context) map[Density]int {
	out := make(map[Density]int, len(defaultSizes))
	for _, d := range Densities() {
		out[d] = s.PageSize(ctx, d)
	}
	return out
}

func (s *Service) SetPageSize(ctx context.Context, d Density, size int) error {
	if err := d.Check(size); err != nil {
		return err
	}
	if err := s.store.Set(ctx, d, size); err != nil {
		return fmt.Errorf("save page size: %w", err)
	}
	return nil
}
