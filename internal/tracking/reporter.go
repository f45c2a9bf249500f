// Package tracking covers both ends of the driver GPS pipeline: presence
// classification used by dashboards, and the device-side Reporter that
// samples positions and uploads them.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/logger"
)

// Fix is one position reading from the device.
type Fix struct {
	Latitude  float64
	Longitude float64
	Speed     *float64
	Heading   *float64
	Accuracy  *float64
	At        time.Time
}

// PositionSource abstracts the device geolocation API.
type PositionSource interface {
	// Current requests a single fix.
	Current(ctx context.Context) (Fix, error)
	// Watch streams fixes on position change until ctx is done.
	Watch(ctx context.Context) (<-chan Fix, error)
}

// Sample is the upload payload for one fix.
type Sample struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	ShipmentID string    `json:"shipmentID,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

type Uploader interface {
	UploadLocation(ctx context.Context, driverID string, s Sample) error
	SetTracking(ctx context.Context, driverID string, enabled bool) error
}

var ErrAlreadyRunning = errors.New("tracking already running")

type ReporterConfig struct {
	DriverID   string
	ShipmentID string
	Interval   time.Duration
	Source     PositionSource
	Uploader   Uploader
}

// Reporter pushes positions from both the watch stream and a fixed timer
// through the same upload path. Near-duplicate uploads are expected.
// Failed uploads are logged and skipped; the next tick is independent.
type Reporter struct {
	cfg ReporterConfig
	log log.Logger

	mu sync.Mutex
	// starting is set while Start waits for the first fix.
	starting bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Reporter{cfg: cfg, log: logger.With("driver", cfg.DriverID)}
}

func (r *Reporter) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Start takes one fix, uploads it and begins watching. The loop runs until
// Stop is called or ctx is cancelled. If the device cannot produce a fix,
// Start returns ErrLocationUnavailable and tracking stays stopped.
// The lock is not held while waiting on the device; cancel ctx to abandon a
// slow first fix.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil || r.starting {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.starting = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
	}()

	first, err := r.cfg.Source.Current(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrLocationUnavailable, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	watch, err := r.cfg.Source.Watch(loopCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", apperrors.ErrLocationUnavailable, err)
	}

	r.upload(ctx, first)
	if err := r.cfg.Uploader.SetTracking(ctx, r.cfg.DriverID, true); err != nil {
		level.Warn(r.log).Log("msg", "could not flag tracking enabled", "err", err)
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		cancel()
		return ErrAlreadyRunning
	}
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx, watch, r.done)
	r.mu.Unlock()

	level.Info(r.log).Log("msg", "tracking started", "interval", r.cfg.Interval)
	return nil
}

func (r *Reporter) loop(ctx context.Context, watch <-chan Fix, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-watch:
			if !ok {
				// Source stopped streaming; keep the timer going.
				watch = nil
				continue
			}
			r.upload(ctx, fix)
		case <-ticker.C:
			fix, err := r.cfg.Source.Current(ctx)
			if err != nil {
				level.Warn(r.log).Log("msg", "position unavailable", "err", err)
				continue
			}
			r.upload(ctx, fix)
		}
	}
}

func (r *Reporter) upload(ctx context.Context, fix Fix) {
	s := Sample{
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		Speed:      fix.Speed,
		Heading:    fix.Heading,
		Accuracy:   fix.Accuracy,
		ShipmentID: r.cfg.ShipmentID,
		RecordedAt: fix.At,
	}
	if err := r.cfg.Uploader.UploadLocation(ctx, r.cfg.DriverID, s); err != nil {
		level.Warn(r.log).Log("msg", "location upload failed", "err", err)
	}
}

// Stop cancels the watch and the timer, waits for the loop to exit and
// flags the driver as no longer tracked. Stopping an idle reporter is a no-op.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	level.Info(r.log).Log("msg", "tracking stopped")
	return r.cfg.Uploader.SetTracking(ctx, r.cfg.DriverID, false)
}
