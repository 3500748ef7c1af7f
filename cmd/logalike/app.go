package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"logalike/internal/config"
	"logalike/internal/constants"
	"logalike/internal/input/file"
	"logalike/internal/input/file/store"
	"logalike/internal/input/kafka"
	"logalike/internal/logger"
	"logalike/internal/output/docstore"
	"logalike/internal/processing"
	"logalike/internal/processing/window"
	"logalike/pkg/health"
	"logalike/pkg/message"
	"logalike/pkg/metrics"
	"logalike/pkg/pipeline"
)

// App wires the configured input, processors and output into one pipeline
// and serves /health and /metrics next to it.
type App struct {
	cfg    *config.Config
	logger logger.Logger

	input      pipeline.Input
	output     *docstore.Output
	processors []pipeline.Processor
	pipe       *pipeline.Pipeline
	server     *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{cfg: cfg, logger: log}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.Register()

	if err := a.initInput(); err != nil {
		return fmt.Errorf("failed to initialize input: %w", err)
	}
	if err := a.initProcessors(); err != nil {
		return fmt.Errorf("failed to initialize processors: %w", err)
	}
	if err := a.initOutput(ctx); err != nil {
		return fmt.Errorf("failed to initialize output: %w", err)
	}

	pipe, err := pipeline.New(pipeline.Config{}, a.input, a.output, a.logger, a.processors...)
	if err != nil {
		return err
	}
	a.pipe = pipe

	a.initHTTPServer()
	return nil
}

func (a *App) initInput() error {
	policy, err := message.ParsePolicy(a.cfg.Output.TypePolicy)
	if err != nil {
		return err
	}

	switch a.cfg.Input.Type {
	case "kafka":
		input, err := kafka.NewInput(kafka.Config{
			Brokers: a.cfg.Input.Kafka.Brokers,
			Topic:   a.cfg.Input.Kafka.Topic,
			GroupID: a.cfg.Input.Kafka.GroupID,
			Logger:  a.logger,
		})
		if err != nil {
			return err
		}
		a.input = input
		return nil

	default:
		directory := a.cfg.Input.StoreDirectory
		if directory == "" {
			directory = store.DefaultDirectory()
		}
		positionStore, err := store.New(directory, a.logger)
		if err != nil {
			return err
		}

		factory, err := file.NewFactory(file.FactoryConfig{
			PollInterval:  a.cfg.Input.PollInterval,
			BufferSize:    a.cfg.Input.BufferSize,
			QueueCapacity: a.cfg.Input.QueueCapacity,
			Reopen:        a.cfg.Input.ReopenEachPoll,
			Store:         positionStore,
			Logger:        a.logger,
		})
		if err != nil {
			return err
		}

		startPolicy, err := file.ParseStartPolicy(a.cfg.Input.StartPolicy)
		if err != nil {
			return err
		}
		for _, path := range a.cfg.Input.Files {
			if err := factory.Tail(path, startPolicy, a.cfg.Input.StartOffset); err != nil {
				return fmt.Errorf("tailing %s: %w", path, err)
			}
		}

		input, err := file.NewInput(factory, func(line string) *message.Message {
			return message.NewWithPolicy(policy).
				Put("body", line).
				PutTimestamp(time.Now())
		})
		if err != nil {
			return err
		}
		a.input = input
		return nil
	}
}

func (a *App) initProcessors() error {
	for _, expression := range a.cfg.Processing.Filters {
		filter, err := processing.NewCELFilter(expression, a.logger)
		if err != nil {
			return err
		}
		a.processors = append(a.processors, filter.Processor())
	}

	if a.cfg.Processing.KeyValue.Enabled {
		mapper, err := processing.NewKeyValueMapper(processing.KeyValueConfig{
			Field:         a.cfg.Processing.KeyValue.Field,
			PairDelimiter: a.cfg.Processing.KeyValue.PairDelimiter,
			KVDelimiter:   a.cfg.Processing.KeyValue.KVDelimiter,
		})
		if err != nil {
			return err
		}
		a.processors = append(a.processors, processing.MapperProcessor(mapper))
	}

	if a.cfg.Processing.Repetition.Enabled {
		repetition, err := processing.NewRepetitionProcessor(processing.RepetitionConfig{
			Window:      a.cfg.Processing.Repetition.Window,
			Fingerprint: window.ByField(a.cfg.Processing.Repetition.Field),
			Logger:      a.logger,
		})
		if err != nil {
			return err
		}
		a.processors = append(a.processors, repetition)
	}

	if a.cfg.Processing.Throttle.Enabled {
		throttle, err := processing.NewThrottleProcessor(processing.ThrottleConfig{
			Cycle:       a.cfg.Processing.Throttle.Cycle,
			Limit:       a.cfg.Processing.Throttle.Limit,
			Fingerprint: window.ByField(a.cfg.Processing.Throttle.Field),
			Logger:      a.logger,
		})
		if err != nil {
			return err
		}
		a.processors = append(a.processors, throttle)
	}
	return nil
}

func (a *App) initOutput(ctx context.Context) error {
	frequency, err := message.ParseFrequency(a.cfg.Output.DefaultDestination.Frequency)
	if err != nil {
		return err
	}
	defaultDestination, err := message.NewDestination(a.cfg.Output.DefaultDestination.Prefix, frequency)
	if err != nil {
		return err
	}

	output, err := docstore.NewOutput(ctx, docstore.Config{
		URI:                a.cfg.Output.MongoDB.URI,
		Database:           a.cfg.Output.MongoDB.Database,
		FlushInterval:      a.cfg.Output.FlushInterval,
		MaxActions:         a.cfg.Output.MaxActions,
		MaxConcurrent:      a.cfg.Output.MaxConcurrent,
		DefaultDestination: defaultDestination,
		DocumentType:       a.cfg.Output.DocumentType,
		Logger:             a.logger,
	})
	if err != nil {
		return err
	}
	a.output = output
	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoChecker(a.output.Client()))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: mux,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Infow("HTTP server starting", "port", a.cfg.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.pipe.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warnw("HTTP server shutdown error", "error", err)
		}
		return a.pipe.Close()
	})

	return g.Wait()
}
