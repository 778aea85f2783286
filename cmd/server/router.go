package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"healthlink/internal/apiauth"
	"healthlink/internal/health"
	relationhandler "healthlink/internal/relation/handler"
	"healthlink/pkg/platform/middleware/metadata"
	"healthlink/pkg/platform/middleware/request"
	"healthlink/pkg/platform/middleware/requesttime"
)

type routes struct {
	relation *relationhandler.Handler
	health   *health.Handler
	gate     *apiauth.Gate
	logger   *slog.Logger
}

// newRouter assembles the public API. The gate runs last so that rejected
// requests are still access-logged with their request id.
func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.AccessLog(rt.logger))
	r.Use(request.Recover(rt.logger))
	r.Use(rt.gate.Middleware)

	rt.health.Register(r)
	rt.relation.Register(r)
	return r
}
