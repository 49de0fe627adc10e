package resilience

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// BreakerConfig tunes a failure-ratio breaker.
type BreakerConfig struct {
	Target       string
	MinRequests  uint32
	FailureRatio float64
	OpenFor      time.Duration
	Logger       *zerolog.Logger
}

// Breaker guards calls to a flaky dependency.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[struct{}]
	target string
}

// NewBreaker constructs a breaker that opens when the failure ratio exceeds the
// configured threshold once the minimum number of requests is observed.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 1
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.FailureRatio > 1 {
		cfg.FailureRatio = 1
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	target := strings.TrimSpace(cfg.Target)
	if target == "" {
		target = "default"
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	b := &Breaker{target: target}
	b.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        target,
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordTransition(name, from, to)
			logger.Info().Str("target", name).Str("from_state", from.String()).Str("to_state", to.String()).Msg("breaker_transition")
		},
	})
	recordState(target, gobreaker.StateClosed)
	return b
}

// Do runs fn through the breaker.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpenCircuit
	}
	return err
}

// State reports the current breaker state as "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Backoff returns an exponential backoff duration for the provided attempt.
// Jitter is expressed as a fraction (e.g. 0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * jitterPct
	delta := (rand.Float64()*2 - 1) * jitter
	return d + time.Duration(delta)
}

func recordState(target string, state gobreaker.State) {
	BreakerState.WithLabelValues(target).Set(stateGaugeValue(state))
}

func recordTransition(target string, from, to gobreaker.State) {
	recordState(target, to)
	BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
	if to == gobreaker.StateOpen {
		BreakerOpenedTotal.WithLabelValues(target).Inc()
	}
}

func stateGaugeValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}
