// Package scheduler implements the Parallel Scheduler (C7): the
// round-based, FIFO-within-round dispatcher that drives every (challenge,
// try_number) attempt through the Docker Environment Adapter (C9), the
// Worker Launcher (C5), and the Attempt Supervisor (C6), bounding in-flight
// attempts at parallel_tasks and enforcing the per-round drain guardrail
//.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Cyber-Gym/enigma-plus/pkg/attempt"
	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
	"github.com/Cyber-Gym/enigma-plus/pkg/dockerenv"
	"github.com/Cyber-Gym/enigma-plus/pkg/janitor"
	"github.com/Cyber-Gym/enigma-plus/pkg/launcher"
	"github.com/Cyber-Gym/enigma-plus/pkg/metrics"
	"github.com/Cyber-Gym/enigma-plus/pkg/supervisor"
)

// Outcome is one attempt's final disposition, as delivered to the caller
// once the round it belongs to has drained.
type Outcome struct {
	Attempt attempt.Descriptor
	State   attempt.State
}

// Config parameterizes a Scheduler: the collaborators it drives (Adapter,
// Supervisor, Janitor, Metrics) plus values taken from the run
// configuration.
type Config struct {
	Challenges  []challenge.Descriptor
	DataPath    string
	ExecutionID string
	LogsDir     string

	Adapter    *dockerenv.Adapter
	Supervisor *supervisor.Supervisor
	Janitor    *janitor.Janitor
	Metrics    *metrics.Registry // optional

	SolverCommand string
	LauncherOpts  launcher.Options
	Writeups      challenge.WriteupIndex // optional; sampled one-per-attempt
	Env           []string
	DynamicPorts  bool

	StartTry                int
	TryTimes                int
	ParallelTasks           int
	DelayBetweenSubmissions time.Duration
	MaxWaitTime             time.Duration
	PollInterval            time.Duration // dispatch-loop poll; default 5s 
}

// Scheduler is the Parallel Scheduler (C7).
type Scheduler struct {
	cfg Config

	mu       sync.Mutex
	inflight map[string]inflightAttempt
}

type inflightAttempt struct {
	session *launcher.Session
	handle  *dockerenv.Handle
}

// New builds a Scheduler, applying default poll interval when unset.
func New(cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ParallelTasks < 1 {
		cfg.ParallelTasks = 1
	}
	return &Scheduler{cfg: cfg, inflight: make(map[string]inflightAttempt)}
}

// Run executes every round in [StartTry, TryTimes] to completion and
// returns every attempt's terminal Outcome. On context cancellation (the
// caller wiring SIGINT/SIGTERM into ctx ) it kills every
// outstanding session and returns the outcomes gathered so far alongside
// the cancellation error; the janitor's final sweep is left to the caller.
func (s *Scheduler) Run(ctx context.Context) ([]Outcome, error) {
	var outcomes []Outcome

	for tryNumber := s.cfg.StartTry; tryNumber <= s.cfg.TryTimes; tryNumber++ {
		roundOutcomes, err := s.runRound(ctx, tryNumber)
		outcomes = append(outcomes, roundOutcomes...)
		if err != nil {
			return outcomes, err
		}
	}

	return outcomes, nil
}

// runRound drains one try_number's attempt queue: the FIFO dispatch phase
// bounded by ParallelTasks, followed by the drain-to-completion phase
// bounded by MaxWaitTime.
func (s *Scheduler) runRound(ctx context.Context, tryNumber int) ([]Outcome, error) {
	queue := make([]attempt.Descriptor, 0, len(s.cfg.Challenges))
	for _, ch := range s.cfg.Challenges {
		queue = append(queue, attempt.New(s.cfg.ExecutionID, len(queue)+1, ch, tryNumber, s.cfg.LogsDir))
	}

	completions := make(chan Outcome, len(queue))
	active := 0
	var outcomes []Outcome

	log.Info().Int("try_number", tryNumber).Int("queue_len", len(queue)).Msg("scheduler: starting round")

	// Dispatch phase: FIFO within the round, bounded at ParallelTasks
	// in-flight attempts.
	for len(queue) > 0 {
		if ctx.Err() != nil {
			s.killAll(ctx)
			return outcomes, ctx.Err()
		}

		if active >= s.cfg.ParallelTasks {
			select {
			case out := <-completions:
				active--
				outcomes = append(outcomes, out)
				s.recordMetrics(out)
			case <-time.After(s.cfg.PollInterval):
			case <-ctx.Done():
				s.killAll(ctx)
				return outcomes, ctx.Err()
			}
			continue
		}

		att := queue[0]
		queue = queue[1:]
		s.dispatch(ctx, att, completions)
		active++

		select {
		case <-time.After(s.cfg.DelayBetweenSubmissions):
		case <-ctx.Done():
			s.killAll(ctx)
			return outcomes, ctx.Err()
		}
	}

	// Drain phase: wait for outstanding attempts subject to the absolute
	// max_wait_time guardrail, after which remaining sessions are
	// force-killed.
	deadline := time.Now().Add(s.cfg.MaxWaitTime)
	for active > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Warn().Int("try_number", tryNumber).Int("still_active", active).Msg("scheduler: max_wait_time exceeded, force-killing remaining attempts")
			s.killAll(ctx)
			remaining = 4 * s.cfg.PollInterval
			deadline = time.Now().Add(remaining)
		}

		wait := s.cfg.PollInterval
		if remaining < wait {
			wait = remaining
		}

		select {
		case out := <-completions:
			active--
			outcomes = append(outcomes, out)
			s.recordMetrics(out)
		case <-time.After(wait):
			if time.Now().After(deadline) {
				// Force-kill was already issued above; give stragglers one
				// more grace window, then stop waiting on them.
				for key, att := range s.drainRemaining() {
					log.Warn().Str("attempt", key).Msg("scheduler: attempt did not terminate after force-kill, abandoning")
					outcomes = append(outcomes, Outcome{Attempt: att, State: attempt.TimedOut})
					active--
				}
			}
		case <-ctx.Done():
			s.killAll(ctx)
			return outcomes, ctx.Err()
		}
	}

	log.Info().Int("try_number", tryNumber).Int("completed", len(outcomes)).Msg("scheduler: round drained")
	return outcomes, nil
}

// dispatch brings up the attempt's challenge environment, launches its
// solver child, and hands it to the supervisor, forwarding the eventual
// Outcome onto completions. It never blocks the caller.
func (s *Scheduler) dispatch(ctx context.Context, att attempt.Descriptor, completions chan<- Outcome) {
	key := att.ContainerName

	handle, err := s.cfg.Adapter.Start(ctx, att, att.Challenge, composePathFor(att.Challenge), "", s.cfg.DynamicPorts)
	if err != nil {
		log.Error().Err(err).Str("attempt", key).Msg("scheduler: failed to bring up challenge environment")
		s.runJanitorCleanup(ctx, att)
		completions <- Outcome{Attempt: att, State: attempt.DockerError}
		return
	}

	opt := s.cfg.LauncherOpts
	opt.DynamicPorts = s.cfg.DynamicPorts
	opt.Writeup = s.sampleWriteup(att.Challenge.ChallengeID)
	argv := launcher.BuildArgv(s.cfg.SolverCommand, att, att.Challenge, s.cfg.DataPath, opt)

	sess, err := launcher.Launch(ctx, att, argv, s.cfg.Env)
	if err != nil {
		log.Error().Err(err).Str("attempt", key).Msg("scheduler: failed to launch solver child")
		_ = handle.Close(ctx)
		s.runJanitorCleanup(ctx, att)
		completions <- Outcome{Attempt: att, State: attempt.DockerError}
		return
	}

	s.mu.Lock()
	s.inflight[key] = inflightAttempt{session: sess, handle: handle}
	s.mu.Unlock()
	s.writeActiveSessions()

	resultCh := s.cfg.Supervisor.Supervise(ctx, sess)

	go func() {
		result := <-resultCh

		closeCtx := ctx
		if closeCtx.Err() != nil {
			// Close still needs to run even if the run context that started
			// the attempt has already been cancelled.
			var cancel context.CancelFunc
			closeCtx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
		}
		if err := handle.Close(closeCtx); err != nil {
			log.Warn().Err(err).Str("attempt", key).Msg("scheduler: challenge environment teardown failed")
		}

		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
		s.writeActiveSessions()

		completions <- Outcome{Attempt: result.Attempt, State: result.State}
	}()
}

// sampleWriteup draws one writeup hint uniformly at random from the ones
// available for challengeID, or returns "" if none are configured.
func (s *Scheduler) sampleWriteup(challengeID string) string {
	writeups := s.cfg.Writeups[challengeID]
	if len(writeups) == 0 {
		return ""
	}
	return writeups[rand.Intn(len(writeups))].TaskWriteup
}

// writeActiveSessions rewrites logs/active_sessions_{execution_id}.txt with
// one "session_name:status_path" line per in-flight attempt, the on-disk
// registry external tooling can use to see what a run is doing without
// talking to the scheduler directly.
func (s *Scheduler) writeActiveSessions() {
	s.mu.Lock()
	lines := make([]string, 0, len(s.inflight))
	for _, ia := range s.inflight {
		lines = append(lines, ia.session.Attempt.SessionName+":"+ia.session.Attempt.StatusPath)
	}
	s.mu.Unlock()

	if s.cfg.LogsDir == "" {
		return
	}
	if err := os.MkdirAll(s.cfg.LogsDir, 0o755); err != nil {
		return
	}
	path := filepath.Join(s.cfg.LogsDir, fmt.Sprintf("active_sessions_%s.txt", s.cfg.ExecutionID))
	_ = os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

// runJanitorCleanup invokes per-attempt cleanup directly for attempts that
// never reach the supervisor (dispatch itself failed).
func (s *Scheduler) runJanitorCleanup(ctx context.Context, att attempt.Descriptor) {
	if s.cfg.Janitor == nil {
		return
	}
	s.cfg.Janitor.PerAttemptCleanup(ctx, att.ContainerName, att.ExecutionID, att.Challenge.ChallengeID)
}

// killAll force-kills every in-flight session, used on cancellation and on
// the max_wait_time guardrail.
func (s *Scheduler) killAll(ctx context.Context) {
	s.mu.Lock()
	for key, ia := range s.inflight {
		if err := ia.session.Kill(); err != nil {
			log.Warn().Err(err).Str("attempt", key).Msg("scheduler: failed to kill session")
		}
	}
	s.mu.Unlock()
}

// drainRemaining returns the attempts still tracked as in-flight, for the
// rare case a force-killed session never signals completion before the
// grace window elapses.
func (s *Scheduler) drainRemaining() map[string]attempt.Descriptor {
	s.mu.Lock()
	out := make(map[string]attempt.Descriptor, len(s.inflight))
	for key, ia := range s.inflight {
		out[key] = ia.session.Attempt
		delete(s.inflight, key)
	}
	s.mu.Unlock()
	s.writeActiveSessions()
	return out
}

func (s *Scheduler) recordMetrics(out Outcome) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.RecordAttemptTerminal(out.State == attempt.SuccessCompleted)
	if out.State == attempt.DockerError {
		s.cfg.Metrics.DockerErrors.Inc()
	}
}

// composePathFor returns the source docker-compose manifest for ch,
// conventionally docker-compose.yml at the root of its repo checkout.
func composePathFor(ch challenge.Descriptor) string {
	return filepath.Join(ch.RepoPath, "docker-compose.yml")
}
