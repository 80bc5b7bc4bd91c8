package config

import "time"

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                 string        // connection string for the database
	DBMaxConns         int32         // max number of pooled database connections
	WaitForServices    string        // duration to wait for other services to be ready
	LogLevel           string        // sets the log level (zap log level values)
	SQLLogLevel        string        // sets the log level for sql subsystem
	LogFormat          string        // text vs json
	LogFilter          string        // zapfilter rules applied to the log output
	MigrationSourceURL string        // location of migration files
	EnableTelemetry    bool          // enable telemetry
	TelemetryEndpoint  string        // endpoint for telemetry ("stdout" prints to console)
	ProfilingPort      int           // port for profiling
	ServerAddr         string        // listen addr for http/connect server
	PacingInterval     time.Duration // minimum time between two emissions
	InputFile          string        // telemetry input file
	DataPath           string        // JSONPath of the sample block within the input file
	InfoPath           string        // JSONPath of the info block within the input file
	InfoFile           string        // yaml file providing the info block
	SessionID          string        // id of a stored session
	SessionName        string        // name of a session when imported
	NatsURL            string        // NATS server url; publishing is disabled if empty
	NatsSubject        string        // subject prefix for published emissions
	ModelFile          string        // yaml file with linear model parameters
	AdvisorSteps       int           // number of gradient steps for the suggestion
	Subdivisions       int           // number of track subdivisions of a feature vector
	NominalLapTime     time.Duration // lap time used for the lap time estimation
	RateWindow         time.Duration // time window for the track progress rate
	CornerThreshold    float64       // distance to the last corner that starts a new corner
	CloseThreshold     float64       // distance to the first corner that closes the track
	MinSpeed           float64       // samples below this speed are dropped
	MinCoordinate      float64       // samples with a coordinate within +/- this value are dropped
	SkipLeading        int           // number of leading samples dropped after filtering
	OutputFile         string        // output file; stdout if empty
	TLSCertFile        string        // file containing the server certificate
	TLSKeyFile         string        // file containing the server key
	TLSCAFile          string        // file containing the CA for client certificates
	TraefikCerts       string        // traefik acme store holding the server certificate
	TraefikCertDomain  string        // domain to look up in the traefik acme store
)
