package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"readingnook/internal/book"
)

type report struct {
	Read    int
	Created int
	Updated int
	Skipped int
}

// seed copies every book in src into dst. Invalid books are skipped with a
// warning; a storage error aborts the run.
func seed(ctx context.Context, src, dst book.Repository, overwrite bool, log *zap.Logger) (report, error) {
	books, err := src.List(ctx)
	if err != nil {
		return report{}, fmt.Errorf("read source: %w", err)
	}

	var rep report
	for _, b := range book.NormalizeAll(books) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Read++

		if b.ID == "" || b.Title == "" || b.Author == "" {
			rep.Skipped++
			log.Warn("skipping incomplete book", zap.String("book_id", b.ID), zap.String("title", b.Title))
			continue
		}

		_, err := dst.Get(ctx, b.ID)
		switch {
		case errors.Is(err, book.ErrNotFound):
			if err := dst.Create(ctx, b); err != nil {
				return rep, fmt.Errorf("create %s: %w", b.ID, err)
			}
			rep.Created++
		case err != nil:
			return rep, fmt.Errorf("look up %s: %w", b.ID, err)
		case overwrite:
			if err := dst.Update(ctx, b); err != nil {
				return rep, fmt.Errorf("update %s: %w", b.ID, err)
			}
			rep.Updated++
		default:
			rep.Skipped++
		}
	}
	return rep, nil
}
