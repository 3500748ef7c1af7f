// Package docstore writes accepted messages to a remote document store in
// size- and time-bounded bulks. Each message is indexed once per declared
// logical destination (or once into the default destination), under a wire
// name that carries a date suffix rolling with the destination's frequency.
package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"logalike/internal/constants"
	"logalike/internal/logger"
	"logalike/pkg/circuitbreaker"
	"logalike/pkg/message"
	"logalike/pkg/metrics"
	"logalike/pkg/retry"
)

// typeField carries the document type label on every indexed document.
const typeField = "_type"

// Config holds the egress settings.
type Config struct {
	// URI of the document store.
	URI string
	// Database name documents are written into.
	Database string
	// FlushInterval, MaxActions and MaxConcurrent configure the batcher.
	FlushInterval time.Duration
	MaxActions    int
	MaxConcurrent int
	// DefaultDestination receives messages that declare no destination.
	DefaultDestination message.Destination
	// DocumentType labels every indexed document.
	DocumentType string
	// Logger is optional.
	Logger logger.Logger
	// Clock overrides the time source; used in tests.
	Clock func() time.Time
}

// Output is the bulk egress consumer. It implements the pipeline output
// contract.
type Output struct {
	client  *mongo.Client
	db      *mongo.Database
	batcher *Batcher
	breaker *circuitbreaker.Breaker

	defaultDestination message.Destination
	documentType       string
	logger             logger.Logger
	clock              func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewOutput validates the configuration, connects to the document store
// (with startup retries) and starts the batcher.
func NewOutput(ctx context.Context, cfg Config) (*Output, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("document store URI must be set")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("document store database must be set")
	}
	if cfg.DefaultDestination.Prefix == "" {
		return nil, fmt.Errorf("default destination prefix cannot be empty")
	}
	if cfg.DocumentType == "" {
		cfg.DocumentType = constants.DefaultDocumentType
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	var client *mongo.Client
	err := retry.Retry(ctx, retry.DefaultPolicy(), func() error {
		connectCtx, cancel := context.WithTimeout(ctx, constants.ConnectTimeout)
		defer cancel()
		c, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
		if err != nil {
			return err
		}
		if err := c.Ping(connectCtx, readpref.Primary()); err != nil {
			disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), constants.ConnectTimeout)
			defer cancelDisconnect()
			_ = c.Disconnect(disconnectCtx)
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to document store: %w", err)
	}

	o := &Output{
		client:             client,
		db:                 client.Database(cfg.Database),
		breaker:            circuitbreaker.New("docstore"),
		defaultDestination: cfg.DefaultDestination,
		documentType:       cfg.DocumentType,
		logger:             cfg.Logger,
		clock:              cfg.Clock,
	}

	batcher, err := NewBatcher(BatcherConfig{
		FlushInterval: cfg.FlushInterval,
		MaxActions:    cfg.MaxActions,
		MaxConcurrent: cfg.MaxConcurrent,
		Logger:        cfg.Logger,
	}, o.dispatch)
	if err != nil {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), constants.ConnectTimeout)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}
	o.batcher = batcher

	cfg.Logger.Infow("Document store output ready",
		"database", cfg.Database,
		"default_destination", cfg.DefaultDestination.WireName(cfg.Clock()),
		"document_type", cfg.DocumentType,
	)
	return o, nil
}

// Client exposes the underlying connection for health checks.
func (o *Output) Client() *mongo.Client {
	return o.client
}

// Accept indexes the message once per declared destination, falling back to
// the default destination when none is declared. Timestamp fields are
// normalised to the canonical wire form and a missing "@timestamp" is
// synthesised from the clock.
func (o *Output) Accept(m *message.Message) {
	destinations := m.Destinations()
	if len(destinations) == 0 {
		destinations = []message.Destination{o.defaultDestination}
	}

	doc := m.Fields()
	normalizeTimestamps(doc)
	if _, ok := doc[message.TimestampField]; !ok {
		doc[message.TimestampField] = FormatTimestamp(o.clock())
	}
	doc[typeField] = o.documentType

	now := o.clock()
	for _, destination := range destinations {
		o.batcher.Submit(Action{
			ID:          uuid.NewString(),
			Destination: destination.WireName(now),
			Document:    doc,
		})
		metrics.EgressActionsTotal.WithLabelValues("submitted").Inc()
	}
}

// Flush forces out whatever the current batch holds.
func (o *Output) Flush() {
	o.batcher.flushPending("manual")
}

// dispatch writes one batch, grouped into one bulk write per wire
// destination. Failures are logged per action and never retried.
func (o *Output) dispatch(ctx context.Context, batch []Action) {
	byDestination := make(map[string][]Action)
	for _, a := range batch {
		byDestination[a.Destination] = append(byDestination[a.Destination], a)
	}

	batchID := uuid.NewString()
	for destination, actions := range byDestination {
		writes := make([]mongo.WriteModel, 0, len(actions))
		for _, a := range actions {
			writes = append(writes, mongo.NewInsertOneModel().SetDocument(a.Document))
		}

		_, err := o.breaker.Do(ctx, func() (interface{}, error) {
			return o.db.Collection(destination).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
		})
		if err != nil {
			for _, a := range actions {
				o.logger.Errorw("Failed to index document",
					"batch_id", batchID,
					"action_id", a.ID,
					"destination", a.Destination,
					"error", err,
				)
			}
			metrics.EgressActionsTotal.WithLabelValues("failed").Add(float64(len(actions)))
			continue
		}
		metrics.EgressActionsTotal.WithLabelValues("indexed").Add(float64(len(actions)))
		o.logger.Debugw("Indexed batch",
			"batch_id", batchID,
			"destination", destination,
			"actions", len(actions),
		)
	}
}

// Close flushes pending actions, waits for in-flight batches and
// disconnects from the store. Idempotent.
func (o *Output) Close() error {
	o.closeOnce.Do(func() {
		if err := o.batcher.Close(); err != nil {
			o.closeErr = err
		}
		ctx, cancel := context.WithTimeout(context.Background(), constants.ConnectTimeout)
		defer cancel()
		if err := o.client.Disconnect(ctx); err != nil && o.closeErr == nil {
			o.closeErr = fmt.Errorf("disconnecting from document store: %w", err)
		}
	})
	return o.closeErr
}
