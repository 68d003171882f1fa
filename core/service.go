package core

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/internal/telemetry"
	"github.com/hyperledger-labs/lane-relayer/log"
	"golang.org/x/time/rate"
)

// ServiceConfig configures the per-lane relay loop.
type ServiceConfig struct {
	// Interval is the pause between successful relay rounds
	Interval time.Duration `json:"interval" yaml:"interval"`

	// MaxBackoffAttempts is the number of consecutive transient failures
	// tolerated before the lane is failed
	MaxBackoffAttempts uint `json:"max_backoff_attempts" yaml:"max_backoff_attempts"`

	// InitialBackoff and MaxBackoff bound the exponential backoff delay
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" yaml:"max_backoff"`
}

const (
	defaultRelayInterval      = 3 * time.Second
	defaultMaxBackoffAttempts = uint(8)
	defaultInitialBackoff     = time.Second
	defaultMaxBackoff         = 2 * time.Minute
)

func (c ServiceConfig) interval() time.Duration {
	if c.Interval == 0 {
		return defaultRelayInterval
	}
	return c.Interval
}

func (c ServiceConfig) maxBackoffAttempts() uint {
	if c.MaxBackoffAttempts == 0 {
		return defaultMaxBackoffAttempts
	}
	return c.MaxBackoffAttempts
}

func (c ServiceConfig) initialBackoff() time.Duration {
	if c.InitialBackoff == 0 {
		return defaultInitialBackoff
	}
	return c.InitialBackoff
}

func (c ServiceConfig) maxBackoff() time.Duration {
	if c.MaxBackoff == 0 {
		return defaultMaxBackoff
	}
	return c.MaxBackoff
}

// backoff returns the delay before the n-th consecutive retry (n starts at 1).
func (c ServiceConfig) backoff(n uint) time.Duration {
	d := c.initialBackoff()
	for i := uint(1); i < n; i++ {
		d *= 2
		if d >= c.maxBackoff() {
			return c.maxBackoff()
		}
	}
	if d > c.maxBackoff() {
		return c.maxBackoff()
	}
	return d
}

// RelayService drives one lane engine: rounds at a fixed interval,
// exponential backoff on transient failures, terminal failure otherwise.
type RelayService struct {
	eng *LaneEngine
	cfg ServiceConfig
}

// NewRelayService returns a new service
func NewRelayService(eng *LaneEngine, cfg ServiceConfig) *RelayService {
	return &RelayService{eng: eng, cfg: cfg}
}

// StartService sets up and starts a relay service over a single lane.
func StartService(ctx context.Context, lane LaneID, src, dst *ProvableChain, tracker *Tracker, limiter *rate.Limiter, engCfg EngineConfig, svcCfg ServiceConfig) error {
	eng := NewLaneEngine(lane, src, dst, tracker, limiter, engCfg)
	if err := eng.SetupRelay(ctx); err != nil {
		return err
	}
	return NewRelayService(eng, svcCfg).Start(ctx)
}

// Start runs the relay loop until the context is cancelled or the lane
// fails. In-flight rounds complete before cancellation takes effect at the
// next suspension point.
func (srv *RelayService) Start(ctx context.Context) error {
	logger := log.GetLogger().WithLane(srv.eng.src.ChainID(), srv.eng.dst.ChainID(), srv.eng.Lane().String())

	var attempts uint
	for {
		err := srv.eng.Serve(ctx)
		switch {
		case err == nil:
			attempts = 0
			if err := wait(ctx, srv.cfg.interval()); err != nil {
				return err
			}
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case IsRetriable(err):
			attempts++
			telemetry.SubmissionRetriesCounter.Add(ctx, 1)
			if attempts >= srv.cfg.maxBackoffAttempts() {
				srv.eng.Fail(errors.Wrapf(err, "transient failures exhausted %d attempts", attempts))
				return err
			}
			delay := srv.cfg.backoff(attempts)
			srv.eng.MarkBackoff()
			logger.Warn("transient failure, backing off",
				"try", attempts,
				"try_limit", srv.cfg.maxBackoffAttempts(),
				"delay", delay.String(),
				"error", err.Error(),
			)
			if err := wait(ctx, delay); err != nil {
				return err
			}
		default:
			srv.eng.Fail(err)
			return err
		}
	}
}

// Scheduler runs one relay service per lane concurrently. Lanes share only
// the submission rate limiter and the metrics sink; a failing lane never
// takes down its siblings.
type Scheduler struct {
	mu    sync.Mutex
	lanes map[LaneID]*scheduledLane
}

type scheduledLane struct {
	srv      *RelayService
	stop     chan struct{}
	stopOnce sync.Once
}

func (l *scheduledLane) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

func NewScheduler() *Scheduler {
	return &Scheduler{lanes: map[LaneID]*scheduledLane{}}
}

// Add registers a lane service. Adding a lane twice is a configuration error.
func (s *Scheduler) Add(lane LaneID, srv *RelayService) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lanes[lane]; ok {
		return errors.Wrapf(ErrConfiguration, "lane %s already scheduled", lane)
	}
	s.lanes[lane] = &scheduledLane{srv: srv, stop: make(chan struct{})}
	return nil
}

// Cancel stops the lane's service. The lane finishes its in-flight
// submission before stopping. Cancelling a lane before Run keeps it from
// starting at all.
func (s *Scheduler) Cancel(lane LaneID) {
	s.mu.Lock()
	l, ok := s.lanes[lane]
	s.mu.Unlock()
	if ok {
		l.stopOnce.Do(func() { close(l.stop) })
	}
}

// Run starts every registered lane and blocks until all lanes have
// stopped. It returns an error only if every lane failed; individual lane
// failures are logged and leave the remaining lanes running.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := log.GetLogger().WithModule("core.scheduler")

	s.mu.Lock()
	lanes := make(map[LaneID]*scheduledLane, len(s.lanes))
	for lane, l := range s.lanes {
		lanes[lane] = l
	}
	s.mu.Unlock()

	if len(lanes) == 0 {
		return errors.Wrap(ErrConfiguration, "no lanes to relay")
	}

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		started  int
		failed   int
		lastErr  error
	)
	for lane, l := range lanes {
		lane, l := lane, l
		if l.stopped() {
			logger.Info("lane cancelled before start", "lane_id", lane.String())
			continue
		}
		laneCtx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-l.stop:
				cancel()
			case <-laneCtx.Done():
			}
		}()

		started++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			if err := l.srv.Start(laneCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("lane terminated", err, "lane_id", lane.String())
				failedMu.Lock()
				failed++
				lastErr = err
				failedMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if started > 0 && failed == started && lastErr != nil {
		return errors.Wrap(lastErr, "all lanes terminated")
	}
	return ctx.Err()
}
