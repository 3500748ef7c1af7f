package file

import (
	"time"

	"logalike/internal/constants"
	"logalike/internal/input/file/store"
	"logalike/internal/logger"
	"logalike/pkg/metrics"
)

// queueListener bridges one tailer to the factory's shared line queue and
// keeps the position store current. Enqueueing gives up after a bounded
// wait and drops the line: the only backpressure the pipeline exerts on
// file readers, lossy on purpose so tailing never stalls forever.
type queueListener struct {
	path     string
	lines    chan<- string
	stopping <-chan struct{}
	store    *store.Store
	logger   logger.Logger
}

func newQueueListener(path string, lines chan<- string, stopping <-chan struct{}, positionStore *store.Store, log logger.Logger) *queueListener {
	return &queueListener{
		path:     path,
		lines:    lines,
		stopping: stopping,
		store:    positionStore,
		logger:   log,
	}
}

func (l *queueListener) OnLine(line string) {
	select {
	case l.lines <- line:
		metrics.TailerLinesTotal.WithLabelValues(l.path).Inc()
		return
	default:
	}

	timer := time.NewTimer(constants.EnqueueTimeout)
	defer timer.Stop()
	select {
	case l.lines <- line:
		metrics.TailerLinesTotal.WithLabelValues(l.path).Inc()
	case <-timer.C:
		l.logger.Warnw("Dropped line after enqueue timeout",
			"file", l.path,
			"timeout", constants.EnqueueTimeout,
		)
		metrics.TailerDroppedLinesTotal.WithLabelValues(l.path).Inc()
	case <-l.stopping:
		// The factory is shutting down; nobody will drain the queue.
		metrics.TailerDroppedLinesTotal.WithLabelValues(l.path).Inc()
	}
}

func (l *queueListener) OnRotated() {
	l.logger.Debugw("File rotated", "file", l.path)
	metrics.TailerRotationsTotal.WithLabelValues(l.path).Inc()
}

func (l *queueListener) OnMissing() {
	l.logger.Warnw("File not found", "file", l.path)
}

func (l *queueListener) OnError(err error) {
	l.logger.Warnw("Error while tailing file", "file", l.path, "error", err)
}

func (l *queueListener) OnPositionAdvanced(position int64) {
	if l.store != nil {
		l.store.SetPosition(l.path, position)
	}
}
