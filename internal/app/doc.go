// Package app wires the VegPulse dashboard server together: configuration,
// logging, OpenTelemetry, the analysis pipeline engine, the WebSocket hub,
// the service layer and the chi router.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and config.yaml
//	2. Initialize logging and observability
//	3. Start the WebSocket hub
//	4. Register the pipeline steps with the run manager
//	5. Initialize services with their dependencies
//	6. Set up HTTP handlers and middleware
//	7. Configure and start the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication(frontendFS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run blocks until an interrupt or SIGTERM and then unwinds in order:
//
//	- The HTTP server stops accepting connections and drains
//	- Running operations are cancelled through the operation service
//	- WebSocket connections are closed cleanly
//	- Telemetry providers are flushed and shut down
//
// # Error Handling
//
// All initialization errors are returned to the caller for proper
// handling. The app does not call os.Exit() directly, allowing
// the main function to control the exit process.
package app
