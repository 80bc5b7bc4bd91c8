package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/otelconnect"
	"github.com/fsnotify/fsnotify"
	"github.com/nats-io/nats.go"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/telemetry-replay/log"
	cmdutil "github.com/mpapenbr/telemetry-replay/pkg/cmd/util"
	"github.com/mpapenbr/telemetry-replay/pkg/config"
	"github.com/mpapenbr/telemetry-replay/pkg/endpoints/nextdata"
	replayserver "github.com/mpapenbr/telemetry-replay/pkg/grpc/server/replay"
	"github.com/mpapenbr/telemetry-replay/pkg/grpc/server/util"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/publisher/natspub"
	"github.com/mpapenbr/telemetry-replay/pkg/replay"
	"github.com/mpapenbr/telemetry-replay/pkg/utils"
	"github.com/mpapenbr/telemetry-replay/pkg/utils/broadcast"
	"github.com/mpapenbr/telemetry-replay/pkg/utils/certs"
)

const pacingIntervalKey = "pacing-interval"

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "replays telemetry data via HTTP and connect",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:5000",
		"server listen address")
	cmd.Flags().DurationVar(&config.PacingInterval,
		pacingIntervalKey,
		replay.DefaultInterval,
		"minimum time between two emissions (reloaded on config file change)")
	cmd.Flags().StringVar(&config.ModelFile,
		"model-file",
		"",
		"yaml file with linear model parameters (enables advisories)")
	cmd.Flags().IntVar(&config.AdvisorSteps,
		"advisor-steps",
		1,
		"number of gradient steps for the suggested features")
	cmd.Flags().IntVar(&config.Subdivisions,
		"subdivisions",
		8,
		"number of track subdivisions within a feature vector")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"NATS server url; emissions are published if set")
	cmd.Flags().StringVar(&config.NatsSubject,
		"nats-subject",
		"replay",
		"subject prefix for published emissions")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (stdout prints to console)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert-file",
		"",
		"file containing the server certificate (enables TLS)")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key-file",
		"",
		"file containing the server key")
	cmd.Flags().StringVar(&config.TLSCAFile,
		"tls-ca-file",
		"",
		"file containing the CA used to verify client certificates")
	cmd.Flags().StringVar(&config.TraefikCerts,
		"traefik-certs",
		"",
		"traefik acme store containing the server certificate (enables TLS)")
	cmd.Flags().StringVar(&config.TraefikCertDomain,
		"traefik-cert-domain",
		"",
		"main domain of the certificate within the traefik acme store")
	cmdutil.AddInputFlags(cmd)
	cmdutil.AddSessionFlags(cmd)
	return cmd
}

//nolint:funlen,cyclop // by design
func startServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		if telemetry, err := config.SetupTelemetry(ctx); err == nil {
			defer telemetry.Shutdown()
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err := otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	id, samples, info, err := cmdutil.LoadSession(ctx)
	if err != nil {
		log.Error("could not provide replay data", log.ErrorField(err))
		return err
	}
	encoder, advisor, err := cmdutil.NewAdvisor()
	if err != nil {
		log.Error("could not load model", log.ErrorField(err))
		return err
	}

	emissions := make(chan *model.Emission, 64)
	opts := []replay.Option{
		replay.WithID(id),
		replay.WithInfo(info),
		replay.WithInterval(config.PacingInterval),
		replay.WithEmitHook(func(e *model.Emission) {
			select {
			case emissions <- e:
			default:
			}
		}),
	}
	if advisor != nil {
		opts = append(opts, replay.WithAdvisor(encoder, advisor))
	}
	session := replay.NewSession(samples, opts...)
	log.Info("Session ready",
		log.String("id", session.ID().String()),
		log.Int("samples", session.Len()),
		log.Duration("interval", session.Interval()))

	bs := broadcast.NewServer(ctx, "emissions", emissions)
	defer bs.Close()
	if config.NatsURL != "" {
		nc, err := connectNats(ctx)
		if err != nil {
			log.Error("could not connect to NATS", log.ErrorField(err))
			return err
		}
		defer nc.Close()
		subject := natspub.Subject(config.NatsSubject, session.ID().String())
		log.Info("Publishing emissions", log.String("subject", subject))
		natspub.NewPublisher(nc, subject).Start(ctx, bs)
	}

	watchPacingInterval(viper.GetViper(), session)

	server := &http.Server{
		Addr:              config.ServerAddr,
		Handler:           h2c.NewHandler(newCORS().Handler(newMux(session)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tlsEnabled, err := setupTLS(ctx, server)
	if err != nil {
		log.Error("could not setup TLS", log.ErrorField(err))
		return err
	}
	setupGoRoutinesDump()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server",
			log.String("addr", config.ServerAddr),
			log.Bool("tls", tlsEnabled))
		if tlsEnabled {
			errChan <- server.ListenAndServeTLS("", "")
		} else {
			errChan <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server could not be started", log.ErrorField(err))
			return err
		}
	case <-ctx.Done():
		log.Debug("Got signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", log.ErrorField(err))
		}
	}
	log.Info("Server terminated")
	return nil
}

// setupTLS configures server for TLS if a certificate source is configured.
func setupTLS(ctx context.Context, server *http.Server) (bool, error) {
	src := certs.Source{
		CertFile:      config.TLSCertFile,
		KeyFile:       config.TLSKeyFile,
		CAFile:        config.TLSCAFile,
		TraefikFile:   config.TraefikCerts,
		TraefikDomain: config.TraefikCertDomain,
	}
	if !src.Enabled() {
		return false, nil
	}
	provider, err := certs.NewProvider(src)
	if err != nil {
		return false, err
	}
	if server.TLSConfig, err = provider.TLSConfig(); err != nil {
		return false, err
	}
	if err := provider.Watch(ctx); err != nil {
		log.Warn("certificate changes are not watched", log.ErrorField(err))
	}
	return true, nil
}

func newMux(session *replay.Session) *http.ServeMux {
	mux := http.NewServeMux()
	myOtel, err := otelconnect.NewInterceptor()
	if err != nil {
		log.Warn("could not create otel interceptor", log.ErrorField(err))
	}
	interceptors := []connect.Interceptor{
		util.NewTraceIDInterceptor(log.Default().Named("grpc")),
	}
	if myOtel != nil {
		interceptors = append([]connect.Interceptor{myOtel}, interceptors...)
	}
	path, handler := replayserver.NewHandler(
		replayserver.NewServer(replayserver.WithSource(session)),
		connect.WithInterceptors(interceptors...),
	)
	mux.Handle(path, handler)
	mux.Handle(grpchealth.NewHandler(
		grpchealth.NewStaticChecker(replayserver.ServiceName)))
	mux.Handle(nextdata.Path, nextdata.NewHandler(session, log.Default().Named("http")))
	return mux
}

// watchPacingInterval applies a changed pacing interval from the config file
// to the running session.
func watchPacingInterval(v *viper.Viper, session *replay.Session) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if applyPacingInterval(v, session) {
			log.Info("config file changed", log.String("file", e.Name))
		}
	})
	v.WatchConfig()
}

// applyPacingInterval reports whether the session interval was changed
func applyPacingInterval(v *viper.Viper, session *replay.Session) bool {
	if !v.IsSet(pacingIntervalKey) {
		return false
	}
	d := v.GetDuration(pacingIntervalKey)
	if d <= 0 || d == session.Interval() {
		return false
	}
	session.SetInterval(d)
	return true
}

func connectNats(ctx context.Context) (*nats.Conn, error) {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		timeout = 60 * time.Second
	}
	if addr := utils.ExtractFromNatsURL(config.NatsURL); addr != "" {
		if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
			return nil, err
		}
	}
	return nats.Connect(config.NatsURL,
		nats.Name("telemetry-replay"),
		nats.MaxReconnects(-1))
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func newCORS() *cors.Cors {
	// To let web developers play with the replay from browsers, we need a
	// very permissive CORS setup.
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			// Allow all origins, which effectively disables CORS.
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			// Content-Type is in the default safelist.
			"Accept",
			"Accept-Encoding",
			"Accept-Post",
			"Connect-Accept-Encoding",
			"Connect-Content-Encoding",
			"Content-Encoding",
			"Grpc-Accept-Encoding",
			"Grpc-Encoding",
			"Grpc-Message",
			"Grpc-Status",
			"Grpc-Status-Details-Bin",
			util.TraceIDHeader,
		},
		// Let browsers cache CORS information for longer, which reduces the number
		// of preflight requests. Any changes to ExposedHeaders won't take effect
		// until the cached data expires. FF caps this value at 24h, and modern
		// Chrome caps it at 2h.
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
