package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"readingnook/internal/auth"
	"readingnook/internal/httpx"
	"readingnook/internal/library"
	"readingnook/internal/preferences"
)

type routerDeps struct {
	library     *library.HTTPHandler
	auth        *auth.HTTPHandler
	preferences *preferences.HTTPHandler
	ready       func(ctx context.Context) error
	jwtSecret   string
	log         *zap.Logger
	rateLimit   *httpx.RateLimitMiddleware
	corsOrigins []string
	maxBody     int64
	hsts        bool
}

func newRouter(d routerDeps) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if d.ready != nil {
			if err := d.ready(ctx); err != nil {
				http.Error(w, "storage not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	protected := httpx.AuthMiddleware(d.jwtSecret)

	router.HandleFunc("GET /v1/books", d.library.List)
	router.HandleFunc("GET /v1/books/{id}", d.library.Get)
	router.HandleFunc("GET /v1/filters", d.library.Filters)
	router.HandleFunc("GET /v1/stats", d.library.Stats)
	router.Handle("POST /v1/books", protected(http.HandlerFunc(d.library.Create)))
	router.Handle("PUT /v1/books/{id}", protected(http.HandlerFunc(d.library.Update)))
	router.Handle("DELETE /v1/books/{id}", protected(http.HandlerFunc(d.library.Delete)))
	router.Handle("POST /v1/books/{id}/enrich", protected(http.HandlerFunc(d.library.Enrich)))

	router.HandleFunc("POST /v1/auth/login", d.auth.Login)

	router.HandleFunc("GET /v1/preferences", d.preferences.Get)
	router.Handle("PUT /v1/preferences/{density}", protected(http.HandlerFunc(d.preferences.Set)))

	mws := []httpx.Middleware{
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(d.log),
		httpx.RecoveryMiddleware(d.log),
		httpx.SecurityHeadersMiddleware(d.hsts),
		httpx.CORSMiddleware(d.corsOrigins),
	}
	if d.rateLimit != nil {
		mws = append(mws, d.rateLimit.Middleware)
	}
	mws = append(mws, httpx.RequestSizeLimitMiddleware(d.maxBody))

	return httpx.Chain(router, mws...)
}
