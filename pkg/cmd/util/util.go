package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ohler55/ojg/jp"
	"github.com/pgx-contrib/pgxtrace"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/telemetry-replay/log"
	"github.com/mpapenbr/telemetry-replay/pkg/config"
	"github.com/mpapenbr/telemetry-replay/pkg/db/postgres"
	"github.com/mpapenbr/telemetry-replay/pkg/features"
	"github.com/mpapenbr/telemetry-replay/pkg/input"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/predict"
	"github.com/mpapenbr/telemetry-replay/pkg/predict/linear"
	"github.com/mpapenbr/telemetry-replay/pkg/processing"
	"github.com/mpapenbr/telemetry-replay/pkg/processing/lap"
	sessionrepos "github.com/mpapenbr/telemetry-replay/pkg/repository/session"
	"github.com/mpapenbr/telemetry-replay/pkg/track"
	"github.com/mpapenbr/telemetry-replay/pkg/utils"
)

var ErrNoSource = errors.New("either an input file or a session id is required")

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger installs the default logger according to the log flags
func SetupLogger() error {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.WithFilter(config.LogFilter)
		if err != nil {
			return fmt.Errorf("invalid log filter: %w", err)
		}
		opts = append(opts, filter)
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr, parseLogLevel(config.LogLevel, log.InfoLevel), opts...)
	default:
		logger = log.DevLogger(os.Stderr, parseLogLevel(config.LogLevel, log.DebugLevel), opts...)
	}
	log.ResetDefault(logger)
	return nil
}

// AddInputFlags registers the flags needed to read and process telemetry data
func AddInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&config.InputFile, "input", "i", "",
		"telemetry input file (json)")
	cmd.Flags().StringVar(&config.DataPath, "data-path", "",
		"JSONPath of the sample block within the input file (e.g. $.data)")
	cmd.Flags().StringVar(&config.InfoPath, "info-path", "",
		"JSONPath of the info block within the input file (e.g. $.info)")
	cmd.Flags().StringVar(&config.InfoFile, "info-file", "",
		"yaml file providing the info block attached to every emission")
	cmd.Flags().Float64Var(&config.CornerThreshold, "corner-threshold",
		track.DefaultCornerThreshold, "distance to the last corner that starts a new corner")
	cmd.Flags().Float64Var(&config.CloseThreshold, "close-threshold",
		track.DefaultCloseThreshold, "distance to the first corner that closes the track")
	cmd.Flags().Float64Var(&config.MinSpeed, "min-speed", 50,
		"samples below this speed are dropped")
	cmd.Flags().Float64Var(&config.MinCoordinate, "min-coordinate", 1,
		"samples with any coordinate within +/- this value are dropped")
	cmd.Flags().IntVar(&config.SkipLeading, "skip-leading", 0,
		"number of leading samples dropped after filtering")
	cmd.Flags().DurationVar(&config.NominalLapTime, "nominal-lap-time",
		lap.DefaultNominalLapTime, "lap time used for the lap time estimation")
	cmd.Flags().DurationVar(&config.RateWindow, "rate-window",
		lap.DefaultWindow, "time window for the track progress rate")
}

// AddSessionFlags registers flags for commands that may replay stored sessions
func AddSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&config.SessionID, "session-id", "",
		"id of a stored session (used instead of --input)")
}

func NewProcessor() *processing.Processor {
	return processing.NewProcessor(
		processing.WithFilter(processing.FilterParam{
			MinCoordinate: config.MinCoordinate,
			MinSpeed:      config.MinSpeed,
			SkipLeading:   config.SkipLeading,
		}),
		processing.WithExtractOptions(
			track.WithCornerThreshold(config.CornerThreshold),
			track.WithCloseThreshold(config.CloseThreshold)),
		processing.WithLapProcessor(lap.NewLapProcessor(
			lap.WithWindow(config.RateWindow),
			lap.WithNominalLapTime(config.NominalLapTime))),
	)
}

// ReadInput loads and processes the configured input file.
// The info block is taken from --info-file if given, otherwise from --info-path.
func ReadInput() (*processing.Result, map[string]any, error) {
	opts := []input.Option{}
	for _, p := range []struct {
		expr string
		opt  func(string) input.Option
	}{
		{config.DataPath, input.WithDataPath},
		{config.InfoPath, input.WithInfoPath},
	} {
		if p.expr == "" {
			continue
		}
		if _, err := jp.ParseString(p.expr); err != nil {
			return nil, nil, fmt.Errorf("invalid path %q: %w", p.expr, err)
		}
		opts = append(opts, p.opt(p.expr))
	}
	in, err := input.LoadFile(config.InputFile, opts...)
	if err != nil {
		return nil, nil, err
	}
	res, err := NewProcessor().Process(in.Samples)
	if err != nil {
		return nil, nil, err
	}
	info := in.Info
	if config.InfoFile != "" {
		if info, err = ReadInfoFile(config.InfoFile); err != nil {
			return nil, nil, err
		}
	}
	return res, info, nil
}

func ReadInfoFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ret := map[string]any{}
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("info file %s: %w", path, err)
	}
	return ret, nil
}

// NewAdvisor returns nil if no model file is configured
func NewAdvisor() (*features.Encoder, *predict.Advisor, error) {
	if config.ModelFile == "" {
		return nil, nil, nil
	}
	m, err := linear.LoadFile(config.ModelFile)
	if err != nil {
		return nil, nil, err
	}
	enc := features.NewEncoder(features.WithSubdivisions(config.Subdivisions))
	if len(m.Weights) != enc.Size() {
		log.Warn("model does not match feature size, advisories will be omitted",
			log.Int("weights", len(m.Weights)),
			log.Int("features", enc.Size()))
	}
	return enc, predict.NewAdvisor(m, predict.WithSteps(config.AdvisorSteps)), nil
}

// LoadSession provides the samples and info block to replay, either from the
// input file or from a stored session.
//
//nolint:whitespace // editor/linter issue
func LoadSession(ctx context.Context) (
	id uuid.UUID, samples []model.DerivedSample, info map[string]any, err error,
) {
	switch {
	case config.SessionID != "":
		if id, err = uuid.FromString(config.SessionID); err != nil {
			return uuid.Nil, nil, nil, fmt.Errorf("invalid session id: %w", err)
		}
		pool, err := OpenDB(ctx)
		if err != nil {
			return uuid.Nil, nil, nil, err
		}
		defer pool.Close()
		s, err := sessionrepos.LoadByID(ctx, pool, id)
		if err != nil {
			return uuid.Nil, nil, nil, err
		}
		info = s.Info
		if config.InfoFile != "" {
			if info, err = ReadInfoFile(config.InfoFile); err != nil {
				return uuid.Nil, nil, nil, err
			}
		}
		return s.ID, s.Samples, info, nil
	case config.InputFile != "":
		res, info, err := ReadInput()
		if err != nil {
			return uuid.Nil, nil, nil, err
		}
		return uuid.Must(uuid.NewV4()), res.Samples, info, nil
	default:
		return uuid.Nil, nil, nil, ErrNoSource
	}
}

// OpenDB waits for the database and returns a connection pool
func OpenDB(ctx context.Context) (*pgxpool.Pool, error) {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	if addr := utils.ExtractFromDBURL(config.DB); addr != "" {
		if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
			return nil, err
		}
	}
	return postgres.InitWithURL(ctx, config.DB,
		postgres.WithTracer(QueryTracer()),
		postgres.WithMaxConns(config.DBMaxConns))
}

// QueryTracer logs sql statements and adds spans for them if telemetry is enabled
func QueryTracer() pgxtrace.CompositeQueryTracer {
	ret := pgxtrace.CompositeQueryTracer{
		postgres.NewSQLTracer(log.Default(),
			parseLogLevel(config.SQLLogLevel, log.DebugLevel)),
	}
	if config.EnableTelemetry {
		ret = append(ret, postgres.NewOtlpTracer())
	}
	return ret
}
