// Package supervisor implements the Attempt Supervisor (C6): it owns one
// attempt's lifecycle from Running to a terminal state, detecting stuck or
// timed-out children the launcher's own exit-driven status write can't see,
// and triggering per-attempt Docker cleanup once a terminal state is
// reached.
package supervisor

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Cyber-Gym/enigma-plus/pkg/attempt"
	"github.com/Cyber-Gym/enigma-plus/pkg/dockerx"
	"github.com/Cyber-Gym/enigma-plus/pkg/janitor"
	"github.com/Cyber-Gym/enigma-plus/pkg/launcher"
)

// Thresholds are the staleness/timeout ceilings an attempt is held to
// before the supervisor forces it terminal.
type Thresholds struct {
	Hard     time.Duration // overall per-attempt ceiling; exceeding it is TimedOut
	Stale    time.Duration // status file mtime staleness ceiling; exceeding it is Stuck
	NoStatus time.Duration // ceiling for a session with no status file at all; Stuck
}

// DefaultThresholds returns the recommended stale/no-status/hard ceilings.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Hard:     3600 * time.Second,
		Stale:    1800 * time.Second,
		NoStatus: 1800 * time.Second,
	}
}

// Config parameterizes a Supervisor.
type Config struct {
	Janitor        *janitor.Janitor
	CleanupEnabled bool
	Thresholds     Thresholds
	PollInterval   time.Duration // default 5s; also drives the aggressive sweep
}

// Result is the terminal outcome of one supervised attempt.
type Result struct {
	Attempt attempt.Descriptor
	State   attempt.State
}

// Supervisor tracks every in-flight attempt's Session and resolves it to a
// terminal attempt.State, invoking per-attempt cleanup along the way.
type Supervisor struct {
	janitor        *janitor.Janitor
	cleanupEnabled bool
	thresholds     Thresholds
	pollInterval   time.Duration

	mu      sync.Mutex
	active  int
}

// New builds a Supervisor.
func New(cfg Config) *Supervisor {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Supervisor{
		janitor:        cfg.Janitor,
		cleanupEnabled: cfg.CleanupEnabled,
		thresholds:     cfg.Thresholds,
		pollInterval:   cfg.PollInterval,
	}
}

// ActiveCount returns the number of attempts currently being supervised.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Supervise registers sess for tracking and returns a channel that receives
// exactly one Result once the attempt reaches a terminal state. The
// returned channel is closed after the Result is sent.
func (s *Supervisor) Supervise(ctx context.Context, sess *launcher.Session) <-chan Result {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	resultCh := make(chan Result, 1)
	go s.watch(ctx, sess, resultCh)
	return resultCh
}

func (s *Supervisor) watch(ctx context.Context, sess *launcher.Session, resultCh chan<- Result) {
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
		close(resultCh)
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.Done():
			state := s.resolveFromStatusFile(sess.Attempt)
			s.finish(ctx, sess.Attempt, state, resultCh)
			return

		case <-ctx.Done():
			_ = sess.Kill()
			state := s.resolveFromStatusFile(sess.Attempt)
			if !state.IsTerminal() {
				state = attempt.FailedCompleted
			}
			s.finish(ctx, sess.Attempt, state, resultCh)
			return

		case <-ticker.C:
			if state, stuck := s.checkStuck(sess); stuck {
				log.Warn().
					Str("attempt", sess.Attempt.ContainerName).
					Str("state", state.String()).
					Msg("attempt supervisor forcing terminal state")
				_ = sess.Kill()
				<-sess.Done()
				s.finish(ctx, sess.Attempt, state, resultCh)
				return
			}
		}
	}
}

// checkStuck evaluates the non-exit-driven transitions : stale
// status mtime, missing status file past its grace period, and the hard
// per-attempt ceiling. It never downgrades a state the child's own exit
// already resolved — callers only reach here while sess is still running.
func (s *Supervisor) checkStuck(sess *launcher.Session) (attempt.State, bool) {
	age := time.Since(sess.StartedAt)
	if age >= s.thresholds.Hard {
		return attempt.TimedOut, true
	}

	info, err := os.Stat(sess.Attempt.StatusPath)
	if err != nil {
		if age >= s.thresholds.NoStatus {
			return attempt.Stuck, true
		}
		return attempt.Pending, false
	}

	if time.Since(info.ModTime()) >= s.thresholds.Stale {
		return attempt.Stuck, true
	}

	return attempt.Pending, false
}

// resolveFromStatusFile reads the attempt's terminal status file and maps
// it to an attempt.State, applying the status-absent and docker-signature
// promotion rules. It is only called after the session's child has exited
// (or been killed), so any status file present is expected to hold a
// terminal value.
func (s *Supervisor) resolveFromStatusFile(att attempt.Descriptor) attempt.State {
	data, err := os.ReadFile(att.StatusPath)
	if err != nil {
		// status absent & session gone: promote to FailedCompleted.
		return attempt.FailedCompleted
	}

	switch strings.TrimSpace(string(data)) {
	case launcher.StatusCompletedSucc:
		return attempt.SuccessCompleted
	case launcher.StatusCompletedFailed:
		if att.LogPath != "" && HasDockerErrorInLog(att.LogPath) {
			return attempt.DockerError
		}
		return attempt.FailedCompleted
	default:
		// RUNNING or an unrecognized value with the child already gone: treat
		// as a failure rather than leaving the attempt non-terminal forever.
		return attempt.FailedCompleted
	}
}

// finish invokes per-attempt cleanup (if enabled) and delivers the Result.
func (s *Supervisor) finish(ctx context.Context, att attempt.Descriptor, state attempt.State, resultCh chan<- Result) {
	if s.cleanupEnabled && s.janitor != nil {
		summary := s.janitor.PerAttemptCleanup(ctx, att.ContainerName, att.ExecutionID, att.Challenge.ChallengeID)
		log.Info().
			Str("attempt", att.ContainerName).
			Int("cleanup_succeeded", summary.Succeeded).
			Int("cleanup_failed", summary.Failed).
			Msg("per-attempt cleanup complete")
	}

	resultCh <- Result{Attempt: att, State: state}
}

// HasDockerErrorInLog is a convenience wrapper the scheduler can use before
// dispatching a retry, to decide whether a failed attempt's log carries a
// known Docker error signature worth surfacing distinctly from an ordinary
// solver failure.
func HasDockerErrorInLog(logPath string) bool {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return false
	}
	return dockerx.HasDockerErrorSignature(string(data))
}
