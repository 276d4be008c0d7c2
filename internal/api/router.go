package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sproutmind/sprout/internal/api/handlers"
	mw "github.com/sproutmind/sprout/internal/api/middleware"
	"github.com/sproutmind/sprout/internal/config"
	"github.com/sproutmind/sprout/internal/domain"
	"github.com/sproutmind/sprout/internal/embedding"
	"github.com/sproutmind/sprout/internal/service"
	"github.com/sproutmind/sprout/internal/store"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Reflection   *service.ReflectionService
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	familyStore := store.NewFamilyStore(db)
	childStore := store.NewChildStore(db)
	factStore := store.NewFactStore(db)
	evidenceStore := store.NewEvidenceStore(db)
	hypothesisStore := store.NewHypothesisStore(db)
	patternStore := store.NewPatternStore(db)
	cycleStore := store.NewCycleStore(db)

	// Embedding client via provider factory
	embeddingProvider := config.EmbeddingProvider()
	embeddingClient, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))
	}

	// Services share one lock set so fact, hypothesis, pattern and cycle
	// mutations for a child serialize against each other.
	locks := service.NewChildLocks()

	factSvc := service.NewFactService(factStore, childStore, locks, logger)
	hypothesisSvc := service.NewHypothesisService(hypothesisStore, evidenceStore, childStore, locks, logger)
	patternSvc := service.NewPatternService(patternStore, childStore, embeddingClient, locks, logger)
	cycleSvc := service.NewCycleService(cycleStore, hypothesisStore, childStore, locks, logger)
	stalenessSvc := service.NewStalenessService(cycleStore, hypothesisStore, locks, config.StalenessNewHypothesisThreshold(), logger)
	cardSvc := service.NewCardService(cycleStore, config.MaxCards(), logger)
	reflectionSvc := service.NewReflectionService(childStore, stalenessSvc, config.ReflectionInterval(), logger)

	// Wire the staleness checker into the hypothesis service
	hypothesisSvc.SetStalenessChecker(stalenessSvc)

	// Handlers
	familyHandler := handlers.NewFamilyHandler(familyStore)
	childHandler := handlers.NewChildHandler(childStore)
	factHandler := handlers.NewFactHandler(factSvc)
	hypothesisHandler := handlers.NewHypothesisHandler(hypothesisSvc, stalenessSvc)
	patternHandler := handlers.NewPatternHandler(patternSvc)
	cycleHandler := handlers.NewCycleHandler(cycleSvc)
	cardHandler := handlers.NewCardHandler(cardSvc)

	r := chi.NewRouter()

	app := &App{
		Router:     r,
		Reflection: reflectionSvc,
		startTime:  time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Family registration (no auth, bootstrap endpoint)
	r.Post("/v1/families", familyHandler.Create)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(familyStore))

		// Children and their per-child projections
		r.Route("/children", func(r chi.Router) {
			r.Post("/", childHandler.Create)
			r.Get("/", childHandler.List)
			r.Route("/{childID}", func(r chi.Router) {
				r.Get("/", getChildByID(childHandler))
				r.Get("/cards", cardHandler.ListByChild)
				r.Get("/hypotheses", hypothesisHandler.ListByChild)
				r.Get("/patterns", patternHandler.ListByChild)
				r.Get("/cycles", cycleHandler.ListByChild)

				// Bi-temporal facts
				r.Route("/facts", func(r chi.Router) {
					r.Post("/", factHandler.Assert)
					r.Get("/", factHandler.QueryCurrent)
					r.Get("/asof", factHandler.QueryAsOf)
					r.Get("/history", factHandler.QueryHistory)
				})
			})
		})

		// Hypotheses
		r.Route("/hypotheses", func(r chi.Router) {
			r.Post("/", hypothesisHandler.Form)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", hypothesisHandler.GetByID)
				r.Post("/evidence", hypothesisHandler.AddEvidence)
				r.Get("/evidence", hypothesisHandler.ListEvidence)
				r.Post("/resolve", hypothesisHandler.Resolve)
				r.Post("/staleness", hypothesisHandler.CheckStaleness)
			})
		})

		// Evidence (read-only; rows are created through hypothesis mutations)
		r.Get("/evidence/{id}", hypothesisHandler.GetEvidence)

		// Patterns
		r.Route("/patterns", func(r chi.Router) {
			r.Post("/", patternHandler.Note)
			r.Get("/{id}", patternHandler.GetByID)
		})

		// Exploration cycles
		r.Route("/cycles", func(r chi.Router) {
			r.Post("/", cycleHandler.Spawn)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cycleHandler.GetByID)
				r.Post("/advance", cycleHandler.Advance)
				r.Post("/hypotheses", cycleHandler.AttachHypothesis)
				r.Post("/artifacts", cycleHandler.AttachArtifact)
				r.Get("/artifacts/{type}", cycleHandler.GetArtifact)
			})
		})

		// Artifacts (addressed directly for status and fulfillment updates)
		r.Route("/artifacts/{artifactID}", func(r chi.Router) {
			r.Put("/status", cycleHandler.UpdateArtifactStatus)
			r.Post("/fulfillment", cycleHandler.RecordFulfillment)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

// getChildByID adapts the child handler's {id} param to this route's
// {childID} naming.
func getChildByID(h *handlers.ChildHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		rctx.URLParams.Add("id", chi.URLParam(r, "childID"))
		h.GetByID(w, r)
	}
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.FamilyStore     = (*store.FamilyStore)(nil)
	_ domain.ChildStore      = (*store.ChildStore)(nil)
	_ domain.FactStore       = (*store.FactStore)(nil)
	_ domain.EvidenceStore   = (*store.EvidenceStore)(nil)
	_ domain.HypothesisStore = (*store.HypothesisStore)(nil)
	_ domain.PatternStore    = (*store.PatternStore)(nil)
	_ domain.CycleStore      = (*store.CycleStore)(nil)
	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)
)
