// Package services implements the business-logic layer of the VegPulse
// web application. It sits between the HTTP handlers and the analysis
// packages, keeping business rules centralized and testable.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate business rules
//
// # Available Services
//
//	- OperationService: launches and tracks analysis runs on the
//	  operations manager, broadcasting lifecycle messages over the
//	  websocket hub
//	- ResultsService: reads the CSV/TXT artifacts a run wrote back into
//	  API responses and serves artifact downloads
//	- HealthService: liveness, readiness, version and system statistics
//
// # Error Handling
//
// Services return the sentinel errors in errors.go wrapped with context;
// handlers translate them into API errors. A missing artifact is
// ErrResultsNotAvailable, an unknown run is ErrOperationNotFound, and a
// request that fails parameter validation is ErrInvalidInput.
//
// # Logging
//
// Services receive a *slog.Logger by injection. Error paths that need the
// request trace use infrastructure.LoggerWithContext so log lines carry
// the trace ID of the request that triggered them.
package services
