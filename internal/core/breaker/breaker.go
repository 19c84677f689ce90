// Package breaker implements a Closed/Open/HalfOpen failure-isolation state
// machine guarding calls to an external dependency.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ledgermate/governor/internal/metrics"
)

// ErrOpen is returned when the breaker rejects a call without attempting it.
// Callers should treat it as backpressure ("retry later"), not a dependency
// error.
var ErrOpen = errors.New("circuit breaker is open")

// State enumerates the breaker's positions.
type State int

const (
	// Closed lets calls through; failures accumulate toward the threshold.
	Closed State = iota
	// Open rejects every call until the recovery timeout elapses.
	Open
	// HalfOpen lets exactly one trial call through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes one breaker. A less reliable, lower-priority dependency
// should use a lower threshold and shorter timeout so it fails fast without
// dragging down the rest of the system.
type Config struct {
	// FailureThreshold is the consecutive classified-failure count that
	// opens the breaker.
	FailureThreshold int `mapstructure:"failure_threshold" json:"failure_threshold"`

	// RecoveryTimeout is how long the breaker stays open before probing.
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout" json:"recovery_timeout"`
}

// Classifier decides whether an error counts as a dependency failure for
// threshold purposes. Errors it rejects propagate through the breaker
// without touching its state, so callers can tell "the dependency
// misbehaved" apart from a bug in their own code.
type Classifier func(error) bool

// Breaker is the per-dependency state machine. Safe for concurrent use; the
// lock is held only across state checks and updates, never across the
// wrapped call.
type Breaker struct {
	name       string
	cfg        Config
	classifier Classifier
	clock      func() time.Time
	log        *logging.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// New builds a breaker. A nil classifier counts every error as a failure.
func New(name string, cfg Config, classifier Classifier, log *logging.Logger) *Breaker {
	if classifier == nil {
		classifier = func(error) bool { return true }
	}
	return &Breaker{
		name:       name,
		cfg:        cfg,
		classifier: classifier,
		clock:      time.Now,
		log:        log,
	}
}

// Do runs op under the breaker. The three outcomes are distinguishable:
// ErrOpen (rejected, op never invoked), the original error (attempt failed),
// or nil (attempt succeeded).
func (b *Breaker) Do(ctx context.Context, op func(context.Context) error) error {
	if !b.admit() {
		return ErrOpen
	}

	err := op(ctx)
	if err == nil {
		b.onSuccess()
		return nil
	}

	if b.classifier(err) {
		b.onFailure()
	}
	return err
}

// admit decides whether a call may proceed, moving Open to HalfOpen once the
// recovery timeout has elapsed.
func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}

	if b.clock().Sub(b.lastFailure) >= b.cfg.RecoveryTimeout {
		b.setState(HalfOpen)
		if b.log != nil {
			b.log.Info("circuit breaker half-open, probing dependency",
				zap.String("breaker", b.name))
		}
		return true
	}

	return false
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == HalfOpen {
		b.setState(Closed)
		if b.log != nil {
			b.log.Info("circuit breaker recovered",
				zap.String("breaker", b.name))
		}
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.clock()

	if b.state == HalfOpen || b.failures >= b.cfg.FailureThreshold {
		if b.state != Open && b.log != nil {
			b.log.Error("circuit breaker opened",
				zap.String("breaker", b.name),
				zap.Int("failures", b.failures))
		}
		b.setState(Open)
	}
}

// setState swaps the state and mirrors the transition into telemetry.
// Caller holds b.mu.
func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	metrics.RecordBreakerTransition(b.name, from.String(), to.String())
	metrics.SetBreakerOpen(b.name, to == Open)
}

// State returns the breaker's current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the consecutive classified-failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Name returns the dependency name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}
