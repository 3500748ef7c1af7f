// Package file turns tailed files into a message stream. A Factory spawns
// one tailer per file and multiplexes their lines into a single bounded
// queue; Input exposes that queue as a lazy message sequence.
package file

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"logalike/internal/constants"
	"logalike/internal/input/file/store"
	"logalike/internal/input/file/tailer"
	"logalike/internal/logger"
)

// StartPolicy selects where a tailer begins reading.
type StartPolicy int

const (
	// StartAtEnd reads only lines appended after the tailer starts.
	StartAtEnd StartPolicy = iota
	// StartAtBeginning reads the whole file from offset zero.
	StartAtBeginning
	// StartAtOffset reads from an explicit byte offset.
	StartAtOffset
	// StartAuto resumes from the position store, falling back to the end
	// of the file when no offset is stored.
	StartAuto
)

// ParseStartPolicy converts a textual policy name into a StartPolicy.
func ParseStartPolicy(s string) (StartPolicy, error) {
	switch s {
	case "end":
		return StartAtEnd, nil
	case "beginning":
		return StartAtBeginning, nil
	case "explicit":
		return StartAtOffset, nil
	case "auto":
		return StartAuto, nil
	default:
		return 0, fmt.Errorf("unknown start policy %q", s)
	}
}

// FactoryConfig holds the shared settings for every tailer a Factory
// spawns.
type FactoryConfig struct {
	// PollInterval between file checks. Defaults to 500ms.
	PollInterval time.Duration
	// BufferSize is the tailer read chunk size. Defaults to 4096.
	BufferSize int
	// QueueCapacity bounds the shared line queue. Defaults to 500.
	QueueCapacity int
	// Reopen makes tailers close and reopen the file around every poll.
	Reopen bool
	// Store persists per-file read positions. Optional: without it the
	// StartAuto policy degrades to StartAtEnd.
	Store *store.Store
	// Logger used by the factory and its listeners.
	Logger logger.Logger
}

// Factory owns the shared line queue and the tailers feeding it.
type Factory struct {
	cfg      FactoryConfig
	lines    chan string
	stopping chan struct{}
	tailers  []*tailer.Tailer

	mu        sync.Mutex
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewFactory validates the configuration and prepares the shared queue.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.PollInterval < 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", cfg.PollInterval)
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = constants.DefaultBufferSize
	}
	if cfg.BufferSize < 1 {
		return nil, fmt.Errorf("buffer size must be at least 1, got %d", cfg.BufferSize)
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = constants.DefaultQueueCapacity
	}
	if cfg.QueueCapacity < 1 {
		return nil, fmt.Errorf("queue capacity must be at least 1, got %d", cfg.QueueCapacity)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NopLogger()
	}
	return &Factory{
		cfg:      cfg,
		lines:    make(chan string, cfg.QueueCapacity),
		stopping: make(chan struct{}),
	}, nil
}

// Tail starts a tailer for the given path. The offset argument is only used
// with StartAtOffset.
func (f *Factory) Tail(path string, policy StartPolicy, offset int64) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	var startPosition *int64
	switch policy {
	case StartAtBeginning:
		zero := int64(0)
		startPosition = &zero
	case StartAtOffset:
		if offset < 0 {
			return fmt.Errorf("start offset cannot be negative, got %d", offset)
		}
		startPosition = &offset
	case StartAuto:
		if f.cfg.Store != nil {
			if stored, ok := f.cfg.Store.Position(abs); ok {
				startPosition = &stored
			}
		}
	case StartAtEnd:
		// nil means start at the current end of the file.
	}

	listener := newQueueListener(abs, f.lines, f.stopping, f.cfg.Store, f.cfg.Logger)
	t, err := tailer.New(tailer.Config{
		Path:          abs,
		Interval:      f.cfg.PollInterval,
		BufferSize:    f.cfg.BufferSize,
		StartPosition: startPosition,
		Reopen:        f.cfg.Reopen,
		Listener:      listener,
	})
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.tailers = append(f.tailers, t)
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		t.Run()
	}()
	f.cfg.Logger.Debugw("Started tailing file", "file", abs)
	return nil
}

// Lines returns the shared line queue. The channel ends after Close, once
// every tailer has stopped.
func (f *Factory) Lines() <-chan string {
	return f.lines
}

// Close stops every tailer, waits for them to exit, closes the position
// store and ends the line queue after whatever it still holds is drained.
// Idempotent.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.stopping)
		f.mu.Lock()
		tailers := f.tailers
		f.mu.Unlock()
		for _, t := range tailers {
			t.Stop()
		}
		f.wg.Wait()
		if f.cfg.Store != nil {
			if err := f.cfg.Store.Close(); err != nil {
				f.cfg.Logger.Warnw("Failed to close position store", "error", err)
				f.closeErr = err
			}
		}
		close(f.lines)
	})
	return f.closeErr
}
