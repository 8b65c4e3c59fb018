package app

import (
	"log/slog"
	"time"

	"github.com/formwork/platform/internal/auth"
	"github.com/formwork/platform/internal/dispatch"
	"github.com/formwork/platform/internal/guard"
	"github.com/formwork/platform/internal/handler"
	"github.com/formwork/platform/internal/repository"
	"github.com/formwork/platform/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps holds all dependencies needed by NewRouter and NewEngine.
type Deps struct {
	Pool         *pgxpool.Pool
	JWTMgr       *auth.JWTManager
	Logger       *slog.Logger
	InlineBudget time.Duration
}

// Engine bundles the assembled dispatch components shared by the API
// server and the worker binary.
type Engine struct {
	Registry    *dispatch.Registry
	Executor    *dispatch.Executor
	Queue       dispatch.JobQueue
	Results     dispatch.ResultStore
	Coordinator *dispatch.Coordinator
	Aggregator  *dispatch.Aggregator
}

// NewEngine wires the dispatch engine over Postgres-backed adapters.
func NewEngine(deps Deps) *Engine {
	defRepo := repository.NewActionDefinitionRepository()
	jobRepo := repository.NewJobRepository()
	resultRepo := repository.NewResultRepository()
	nsRepo := repository.NewNamespaceRepository()

	registry := dispatch.NewRegistry(
		dispatch.NewRedirectKind(),
		dispatch.NewServeFileKind(),
		dispatch.NewEmailKind(&dispatch.LogMailer{Logger: deps.Logger}),
		dispatch.NewWebRequestKind(nil,
			guard.NewRateLimiter(60, time.Minute),
			guard.NewCircuitBreaker(5, 30*time.Second),
		),
	)

	queue := dispatch.NewPgQueue(deps.Pool, jobRepo)
	results := dispatch.NewPgResultStore(deps.Pool, resultRepo)
	resolver := dispatch.NewResolver(dispatch.NewPgDefinitionSource(deps.Pool, defRepo))
	executor := dispatch.NewExecutor(registry, deps.Logger)
	messages := dispatch.NewPgMessageSource(deps.Pool, nsRepo)

	return &Engine{
		Registry:    registry,
		Executor:    executor,
		Queue:       queue,
		Results:     results,
		Coordinator: dispatch.NewCoordinator(resolver, registry, executor, queue, results, messages, deps.Logger, deps.InlineBudget),
		Aggregator:  dispatch.NewAggregator(results, queue, 0),
	}
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps Deps, engine *Engine) chi.Router {
	pool := deps.Pool
	logger := deps.Logger

	// Repositories
	nsRepo := repository.NewNamespaceRepository()
	resourceRepo := repository.NewResourceRepository()
	defRepo := repository.NewActionDefinitionRepository()

	// Services
	resourceSvc := service.NewResourceService(pool, nsRepo, resourceRepo, engine.Coordinator, logger)

	// Handlers
	resourceHandler := handler.NewResourceHandler(resourceSvc, resourceRepo, nsRepo, pool)
	namespaceHandler := handler.NewNamespaceHandler(nsRepo, defRepo, resourceRepo, pool)
	eventHandler := handler.NewEventHandler(engine.Aggregator)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(pool))

	// End-user submissions (no auth; admin flag stays false)
	r.Post("/namespaces/{slug}/resources", resourceHandler.Create)

	// Operator routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthenticateOperator(deps.JWTMgr))

		r.Route("/namespaces", func(r chi.Router) {
			r.Get("/", namespaceHandler.List)
			r.With(auth.RequireRole(auth.WriteRoles()...)).Post("/", namespaceHandler.Create)
			r.With(auth.RequireRole(auth.WriteRoles()...)).Patch("/{id}", namespaceHandler.Update)
			r.Get("/{id}/resources", namespaceHandler.ListResources)
			r.With(auth.RequireRole(auth.WriteRoles()...)).Post("/{id}/resources", resourceHandler.CreateInNamespace)

			r.Get("/{id}/actions", namespaceHandler.ListActions)
			r.With(auth.RequireRole(auth.WriteRoles()...)).Post("/{id}/actions", namespaceHandler.CreateAction)
		})

		r.Route("/resources", func(r chi.Router) {
			r.Get("/{id}", resourceHandler.Get)
			r.Patch("/{id}", resourceHandler.Update)
			r.Delete("/{id}", resourceHandler.Delete)
		})

		r.Route("/actions", func(r chi.Router) {
			r.With(auth.RequireRole(auth.WriteRoles()...)).Patch("/{actionID}", namespaceHandler.UpdateAction)
			r.With(auth.RequireRole(auth.WriteRoles()...)).Delete("/{actionID}", namespaceHandler.DeleteAction)
		})

		r.Get("/events/{correlationID}/results", eventHandler.GetResults)
	})

	return r
}
