package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"vegcli/internal/charts"
	"vegcli/internal/config"
	apierrors "vegcli/internal/errors"
	"vegcli/internal/exporter"
	"vegcli/internal/files"
	"vegcli/internal/infrastructure"
	customMiddleware "vegcli/internal/middleware"
	"vegcli/internal/operations"
	"vegcli/internal/services"
	handlers "vegcli/internal/transport/http"
	ws "vegcli/internal/websocket"
	"vegcli/pkg/contracts"
)

// Application wires the dashboard server together: configuration, logging,
// OpenTelemetry, the WebSocket hub, the analysis pipeline and the HTTP
// transport.
type Application struct {
	Config           *config.Config
	Paths            *config.Paths
	Router           *chi.Mux
	Server           *http.Server
	WebSocketHub     *ws.Hub
	Manager          *operations.Manager
	OperationService *services.OperationService
	ResultsService   *services.ResultsService
	HealthService    *services.HealthService
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	FrontendFS       fs.FS
}

// NewApplication builds the application container. frontendFS carries the
// embedded dashboard page; nil disables the UI and leaves the API up.
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		FrontendFS:    frontendFS,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the pipeline engine and the service layer in
// dependency order.
func (a *Application) initializeServices() error {
	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	discovery := files.NewDiscovery(a.Paths)
	studyExporter := exporter.NewStudyExporter(a.Paths, a.Logger)
	renderer := charts.NewRenderer(a.Paths, a.Logger)

	opsConfig := operations.NewConfigBuilder().
		WithStepTimeout(operations.StepIDLoadPanel, config.AnalysisStepTimeout).
		WithStepTimeout(operations.StepIDSensitivity, a.Config.Server.OperationTimeout).
		WithStepTimeout(operations.StepIDCharts, config.ChartRenderTimeout).
		WithOutputDir(a.Paths.OutputDir).
		Build()

	manager := operations.NewManager(ws.NewOperationHubAdapter(hub), operations.NewRegistry(), opsConfig, a.Logger)

	steps := []operations.Step{
		operations.NewLoadPanelStep(discovery, a.Logger, nil),
		operations.NewDetectShocksStep(studyExporter, a.Paths, a.Logger, nil),
		operations.NewConvergenceStep(studyExporter, a.Paths, a.Logger, nil),
		operations.NewRobustnessStep(studyExporter, a.Paths, a.Logger, nil),
		operations.NewChartsStep(renderer, a.Paths, a.Logger, nil),
		operations.NewSensitivityStep(studyExporter, a.Paths, a.Logger, nil),
	}
	for _, step := range steps {
		if err := manager.RegisterStep(step); err != nil {
			return fmt.Errorf("failed to register step %s: %w", step.ID(), err)
		}
	}

	tracer, err := operations.NewOperationTracer(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create operation tracer: %w", err)
	}
	manager.SetTracer(tracer)
	a.Manager = manager

	a.OperationService = services.NewOperationService(
		manager, hub, a.Config.Analysis, a.Config.Server.OperationTimeout, a.Logger)
	a.ResultsService = services.NewResultsService(a.Paths, a.Logger)
	a.HealthService = services.NewHealthServiceWithBuildInfo(
		contracts.Version, contracts.BuildTime, contracts.GitCommit,
		a.Paths, manager, hub, a.Logger)

	return nil
}

// setupRouter configures the HTTP router. The WebSocket endpoint and static
// assets sit outside the main middleware group so response-writer wrapping
// never interferes with the upgrade.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		businessMetrics, _ := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
		r.Use(customMiddleware.BusinessMetricsMiddleware(businessMetrics))

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		r.Use(cors.Handler(a.corsOptions()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
		a.setupFrontendRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes mounts the REST surface.
func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		// Read-mostly endpoints under the standard timeout.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/health/stats", healthHandler.Stats)
			r.Get("/health/detailed", healthHandler.Detailed)
			r.Get("/version", healthHandler.Version)

			resultsHandler := handlers.NewResultsHandler(a.ResultsService, a.Logger, errorHandler)
			r.Mount("/results", resultsHandler.Routes())
			r.Get("/inputs", resultsHandler.GetInputs)

			r.Post("/logs", handlers.NewClientLogHandler(a.Logger).Handle)
		})

		// Run orchestration allows the long operation timeout.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout, a.Logger))
			r.Use(customMiddleware.AuditLog(a.Logger))

			operationsHandler := handlers.NewOperationsHandler(a.OperationService, a.WebSocketHub, a.Logger)
			r.Mount("/operations", operationsHandler.Routes())

			metricsHandler, err := handlers.NewOperationsMetricsHandler(a.OperationService, a.Logger)
			if err != nil {
				a.Logger.Error("failed to create operations metrics handler", slog.String("error", err.Error()))
			} else {
				r.Mount("/operations/observability", metricsHandler.Routes())
			}
		})
	})
}

// setupFrontendRoutes serves the embedded dashboard. The UI is one page plus
// a handful of assets, so anything that is not a file falls back to
// index.html.
func (a *Application) setupFrontendRoutes(r chi.Router) {
	if a.FrontendFS == nil {
		a.Logger.Warn("no embedded frontend, dashboard disabled")
		r.Get("/", handlers.ServeTestPage())
		return
	}

	r.Get("/", handlers.ServeDashboard(a.FrontendFS))
	r.Get("/*", a.serveFrontendAsset)
}

// serveFrontendAsset serves files from the embedded frontend, falling back
// to the dashboard page for unknown paths.
func (a *Application) serveFrontendAsset(w http.ResponseWriter, r *http.Request) {
	if a.FrontendFS == nil {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" || strings.Contains(name, "..") {
		handlers.ServeDashboard(a.FrontendFS)(w, r)
		return
	}

	file, err := a.FrontendFS.Open(name)
	if err != nil {
		handlers.ServeDashboard(a.FrontendFS)(w, r)
		return
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".js":
		w.Header().Set("Content-Type", "application/javascript")
	case ".css":
		w.Header().Set("Content-Type", "text/css")
	case ".svg":
		w.Header().Set("Content-Type", "image/svg+xml")
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".ico":
		w.Header().Set("Content-Type", "image/x-icon")
	case ".html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if rs, ok := file.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	io.Copy(w, file)
}

// corsOptions returns the CORS policy. The dashboard is same-origin; the
// dev allowances cover running the UI from a separate dev server.
func (a *Application) corsOptions() cors.Options {
	origins := []string{
		fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
	}
	if a.Config.Security.EnableCORS {
		origins = append(origins, a.Config.Security.AllowedOrigins...)
	}

	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start launches the HTTP server and background services. cancel is invoked
// if the listener fails so Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.Int("port", a.Config.Server.Port),
		slog.String("data_dir", a.Paths.DataDir),
		slog.String("output_dir", a.Paths.OutputDir))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.checkWritableDirs(ctx); err != nil {
		a.Logger.WarnContext(ctx, "startup check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "dashboard ready",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := a.OperationService.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "error shutting down operation service", slog.String("error", err.Error()))
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}

// handleWebSocket upgrades a dashboard connection and hands it to the hub.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}
	ctx := infrastructure.WithTraceID(r.Context(), reqID)

	a.Logger.InfoContext(ctx, "websocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range a.corsOptions().AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			a.Logger.WarnContext(ctx, "websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	a.WebSocketHub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// checkWritableDirs verifies that the directories the pipeline writes to
// accept writes, so a permissions problem surfaces at startup rather than
// mid-run.
func (a *Application) checkWritableDirs(ctx context.Context) error {
	var warnings []string
	for name, dir := range map[string]string{
		"data":   a.Paths.DataDir,
		"output": a.Paths.OutputDir,
		"logs":   a.Paths.LogsDir,
	} {
		probe := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(probe, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
			continue
		}
		os.Remove(probe)
	}

	if len(warnings) > 0 {
		return fmt.Errorf("%s", strings.Join(warnings, "; "))
	}
	a.Logger.InfoContext(ctx, "startup check passed")
	return nil
}
