package app

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/sujit-maker/move-sub000/internal/config"
	"github.com/sujit-maker/move-sub000/internal/handlers"
	"github.com/sujit-maker/move-sub000/internal/httpx"
	"github.com/sujit-maker/move-sub000/internal/importer"
	"github.com/sujit-maker/move-sub000/internal/middleware"
)

//go:embed openapi.yaml
var openapiSpec []byte

func NewRouter(cfg config.Config, store handlers.RunStore, deps importer.Deps, logger *slog.Logger) (http.Handler, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.Env))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.LimitBodyBytesWithOverrides(cfg.APIMaxBodyBytes, []middleware.BodyLimitOverride{
		// multipart framing on top of the file itself
		{PathPrefix: "/imports/", MaxBytes: cfg.ImportMaxFileBytes + 1<<20},
	}))

	api := chi.NewRouter()
	api.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		Options: openapi3filter.Options{
			ExcludeRequestBody: true,
		},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Error:     httpx.ErrorBody{Code: "validation_error", Message: message},
				RequestID: w.Header().Get("X-Request-Id"),
			})
		},
	}))

	h := handlers.NewServer(cfg, store, deps, logger)
	importLimiter := middleware.NewIPRateLimiterWithMaxEntries(cfg.ImportRateLimitPerMin, time.Minute, cfg.RateLimitMaxIPs)

	api.Get("/health", h.GetHealth)
	api.With(importLimiter.Middleware("Too many imports, try again shortly")).
		Post("/imports/{category}", func(w http.ResponseWriter, r *http.Request) {
			h.PostImportsCategory(w, r, chi.URLParam(r, "category"))
		})
	api.Get("/imports/{category}/template.csv", func(w http.ResponseWriter, r *http.Request) {
		h.GetImportsCategoryTemplateCsv(w, r, chi.URLParam(r, "category"))
	})
	api.Get("/import-runs", h.GetImportRuns)
	api.Get("/import-runs/{importRunId}", func(w http.ResponseWriter, r *http.Request) {
		h.GetImportRunsImportRunId(w, r, chi.URLParam(r, "importRunId"))
	})
	api.Get("/import-runs/{importRunId}/errors.csv", func(w http.ResponseWriter, r *http.Request) {
		h.GetImportRunsImportRunIdErrorsCsv(w, r, chi.URLParam(r, "importRunId"))
	})

	r.Mount("/api", api)
	return r, nil
}
