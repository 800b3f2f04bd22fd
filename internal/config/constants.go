package config

import "time"

// Application constants - all hardcoded values for the VegPulse system
const (
	// Application Info
	AppName    = "VegPulse"
	AppVersion = "0.2.0"

	// Event-study defaults. These mirror the eventstudy CLI flags and the
	// analysis section of config.yaml.
	DefaultWindow     = 6
	DefaultThresholdK = 1.5
	DefaultMaxShocks  = 24
	DefaultMinObs     = 30
	DefaultHACLags    = 1
	DefaultSheet      = "Sheet1"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir   = "data"
	DefaultLogsDir   = "logs"
	DefaultOutputDir = "output/event_study_outputs"

	// Operation Timeouts
	DefaultOperationTimeout = 30 * time.Minute
	AnalysisStepTimeout     = 10 * time.Minute
	ChartRenderTimeout      = 2 * time.Minute

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Output file names. The CSV schemas are stable contracts consumed by the
// dashboard and the robustness CLI, so the names live here rather than in
// the packages that write them.
const (
	ShockDatesFile    = "shock_dates_used.csv"
	SigmaPathFile     = "sigma_convergence_event_path.csv"
	BetaPathFile      = "beta_convergence_event_path.csv"
	RobustSEFile      = "robust_se_by_event_time.csv"
	SensitivityFile   = "sensitivity_grid.csv"
	SummaryFile       = "summary.txt"
	SigmaChartFile    = "sigma_convergence_event_path.png"
	BetaChartFile     = "beta_convergence_event_path.png"
	HalfLifeChartFile = "half_life_by_event_time.png"
)

// URLs and Endpoints
const (
	// API Endpoints (internal)
	APIBasePath        = "/api"
	ResultsEndpoint    = "/api/results"
	OperationsEndpoint = "/api/operations"
	InputsEndpoint     = "/api/inputs"
	HealthEndpoint     = "/api/health"
	MetricsEndpoint    = "/metrics"

	// WebSocket Endpoints
	WebSocketEndpoint = "/ws"
)
