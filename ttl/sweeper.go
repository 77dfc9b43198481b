// Package ttl expires idle in-memory conversations.
//
// # Description
//
// Conversations live in process memory and would otherwise accumulate
// forever. The sweeper runs in the background and removes conversations
// whose last activity is older than the configured TTL. Swept sessions
// are simply gone: a client reusing the id gets a fresh conversation.
package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/brandchat-io/brandchat/observability"
)

// =============================================================================
// Configuration
// =============================================================================

// SweeperConfig holds configuration for the conversation sweeper.
//
// # Fields
//
//   - Interval: How often to run sweep cycles. Default: 15 minutes.
//   - TTL: Idle age after which a conversation is removed. Default: 24 hours.
type SweeperConfig struct {
	Interval time.Duration
	TTL      time.Duration
}

// DefaultSweeperConfig returns production-ready sweeper defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: 15 * time.Minute,
		TTL:      24 * time.Hour,
	}
}

// SweeperConfigFromEnv builds a SweeperConfig from the environment.
//
// # Description
//
// Reads CONVERSATION_TTL and CONVERSATION_SWEEP_INTERVAL as Go duration
// strings. Unset or unparsable values fall back to the defaults with a
// warning.
func SweeperConfigFromEnv() SweeperConfig {
	cfg := DefaultSweeperConfig()

	if raw := os.Getenv("CONVERSATION_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Warn("Invalid CONVERSATION_TTL, using default", "value", raw, "default", cfg.TTL.String())
		} else {
			cfg.TTL = d
		}
	}

	if raw := os.Getenv("CONVERSATION_SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Warn("Invalid CONVERSATION_SWEEP_INTERVAL, using default", "value", raw, "default", cfg.Interval.String())
		} else {
			cfg.Interval = d
		}
	}

	return cfg
}

// =============================================================================
// Conversation Sweeper
// =============================================================================

// IdleSweeper removes conversations idle since before the cutoff and
// reports how many were removed. Satisfied by *chat.Manager.
type IdleSweeper interface {
	SweepIdle(cutoff time.Time) int
}

// ConversationSweeper periodically expires idle conversations.
//
// # Description
//
// Manages the lifecycle of a background goroutine that sweeps idle
// conversations at the configured interval. Uses the ticker + done
// channel pattern for graceful shutdown.
//
// # Thread Safety
//
// All public methods are thread-safe.
type ConversationSweeper struct {
	target  IdleSweeper
	config  SweeperConfig
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewConversationSweeper creates a sweeper over the given target.
//
// # Inputs
//
//   - target: The conversation store to sweep, usually the engine manager.
//   - config: Sweep interval and TTL.
//
// # Outputs
//
//   - *ConversationSweeper: Ready to Start().
func NewConversationSweeper(target IdleSweeper, config SweeperConfig) *ConversationSweeper {
	return &ConversationSweeper{
		target: target,
		config: config,
		done:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
//
// # Description
//
// Starts a goroutine that sweeps at the configured interval until Stop()
// is called or the context is cancelled. An initial sweep runs
// immediately on start.
//
// # Outputs
//
//   - error: Non-nil if the sweeper is already running.
func (s *ConversationSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // Reset for potential restart
	s.mu.Unlock()

	slog.Info("Conversation sweeper starting",
		"interval", s.config.Interval.String(),
		"ttl", s.config.TTL.String(),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call multiple times.
func (s *ConversationSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	slog.Info("Conversation sweeper stopping")
	close(s.done)
	s.running = false
}

// RunNow performs one sweep cycle immediately and returns the number of
// conversations removed. Does not affect the scheduled cycle timing.
func (s *ConversationSweeper) RunNow() int {
	return s.sweep()
}

func (s *ConversationSweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Conversation sweeper stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("Conversation sweeper stopped (stop requested)")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *ConversationSweeper) sweep() int {
	cutoff := time.Now().Add(-s.config.TTL)
	removed := s.target.SweepIdle(cutoff)

	if removed > 0 {
		slog.Info("Swept idle conversations", "removed", removed, "cutoff", cutoff.Format(time.RFC3339))
	} else {
		slog.Debug("Sweep cycle completed (no idle conversations)")
	}

	if observability.DefaultMetrics != nil {
		observability.DefaultMetrics.RecordSweep(removed)
	}
	return removed
}
