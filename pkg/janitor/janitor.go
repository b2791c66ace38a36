// Package janitor enumerates and tears down the containers, networks, and
// temp files a run creates, with a bounded-concurrency worker pool so
// cleanup can never exert unbounded pressure on the Docker daemon. Every
// operation is best-effort and idempotent: failures are logged and
// swallowed, never propagated to the scheduler.
//
package janitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Cyber-Gym/enigma-plus/pkg/dockerx"
)

// AuditEntry records one cleanup action for the end-of-run cleanup log.
type AuditEntry struct {
	Timestamp time.Time
	Action    string
	Target    string
	Success   bool
	Error     string
}

// Summary aggregates the audit log into pass/fail counts.
type Summary struct {
	TotalActions int
	Succeeded    int
	Failed       int
}

func (s Summary) String() string {
	return fmt.Sprintf("cleanup: %d actions, %d succeeded, %d failed", s.TotalActions, s.Succeeded, s.Failed)
}

// Janitor is the Docker Janitor (C3): initial sweep, per-attempt cleanup,
// and final sweep, each running through a bounded worker pool.
type Janitor struct {
	docker            *dockerx.Client
	longLivedImageRef string // substring matched against image refs to spare the long-lived LLM-server container
	containerPoolSize int
	networkPoolSize   int
	operationTimeout  time.Duration

	mu        sync.Mutex
	auditLog  []AuditEntry
}

// Config configures a Janitor.
type Config struct {
	LongLivedImageRef string
	ContainerPoolSize int
	NetworkPoolSize   int
	OperationTimeout  time.Duration
}

// New creates a Janitor.
func New(docker *dockerx.Client, cfg Config) *Janitor {
	if cfg.ContainerPoolSize <= 0 {
		cfg.ContainerPoolSize = 10
	}
	if cfg.NetworkPoolSize <= 0 {
		cfg.NetworkPoolSize = 5
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 30 * time.Second
	}
	return &Janitor{
		docker:            docker,
		longLivedImageRef: cfg.LongLivedImageRef,
		containerPoolSize: cfg.ContainerPoolSize,
		networkPoolSize:   cfg.NetworkPoolSize,
		operationTimeout:  cfg.OperationTimeout,
	}
}

// InitialSweep removes every container not derived from the known
// long-lived LLM-server image, removes every network whose name begins
// with "ctfnet" or "tmp_ctfnet" or ends in "_default", and prunes unused
// networks and volumes.
func (j *Janitor) InitialSweep(ctx context.Context) Summary {
	containers, err := j.docker.ListContainers(ctx, "")
	if err != nil {
		j.logAudit("initial_sweep.list_containers", "", false, err)
		return j.summary()
	}

	targets := make([]string, 0, len(containers))
	for _, c := range containers {
		if j.longLivedImageRef != "" && strings.Contains(c.Image, j.longLivedImageRef) {
			continue
		}
		targets = append(targets, c.ID)
	}
	j.teardownContainers(ctx, targets)

	networks, err := j.docker.ListNetworks(ctx, "")
	if err != nil {
		j.logAudit("initial_sweep.list_networks", "", false, err)
	} else {
		netTargets := make([]string, 0)
		for _, n := range networks {
			if strings.HasPrefix(n.Name, "ctfnet") || strings.HasPrefix(n.Name, "tmp_ctfnet") || strings.HasSuffix(n.Name, "_default") {
				netTargets = append(netTargets, n.ID)
			}
		}
		j.teardownNetworks(ctx, netTargets)
	}

	if err := j.docker.PruneNetworks(ctx); err != nil {
		j.logAudit("initial_sweep.prune_networks", "", false, err)
	} else {
		j.logAudit("initial_sweep.prune_networks", "", true, nil)
	}
	if err := j.docker.PruneVolumes(ctx); err != nil {
		j.logAudit("initial_sweep.prune_volumes", "", false, err)
	} else {
		j.logAudit("initial_sweep.prune_volumes", "", true, nil)
	}

	return j.summary()
}

// PerAttemptCleanup removes the one container and the networks belonging to
// a single terminated attempt. The container is looked up by containerName;
// a network is removed when its name contains both executionID and
// instanceIDOrChallengeID.
func (j *Janitor) PerAttemptCleanup(ctx context.Context, containerName, executionID, instanceIDOrChallengeID string) Summary {
	containers, err := j.docker.ListContainers(ctx, containerName)
	if err != nil {
		j.logAudit("per_attempt.list_containers", containerName, false, err)
	} else {
		ids := make([]string, 0, len(containers))
		for _, c := range containers {
			ids = append(ids, c.ID)
		}
		j.teardownContainers(ctx, ids)
	}

	networks, err := j.docker.ListNetworks(ctx, "")
	if err != nil {
		j.logAudit("per_attempt.list_networks", "", false, err)
		return j.summary()
	}

	var targets []string
	for _, n := range networks {
		if strings.Contains(n.Name, executionID) && strings.Contains(n.Name, instanceIDOrChallengeID) {
			targets = append(targets, n.ID)
		}
	}
	j.teardownNetworks(ctx, targets)

	return j.summary()
}

// FinalSweep removes every container whose name carries the
// "{execution_id}-parallel-" prefix and every network whose name contains
// execution_id, then prunes.
func (j *Janitor) FinalSweep(ctx context.Context, executionID string) Summary {
	containers, err := j.docker.ListContainers(ctx, fmt.Sprintf("%s-parallel-", executionID))
	if err != nil {
		j.logAudit("final_sweep.list_containers", "", false, err)
	} else {
		ids := make([]string, 0, len(containers))
		for _, c := range containers {
			ids = append(ids, c.ID)
		}
		j.teardownContainers(ctx, ids)
	}

	networks, err := j.docker.ListNetworks(ctx, "")
	if err != nil {
		j.logAudit("final_sweep.list_networks", "", false, err)
	} else {
		var targets []string
		for _, n := range networks {
			if strings.Contains(n.Name, executionID) {
				targets = append(targets, n.ID)
			}
		}
		j.teardownNetworks(ctx, targets)
	}

	if err := j.docker.PruneNetworks(ctx); err != nil {
		j.logAudit("final_sweep.prune_networks", "", false, err)
	}

	return j.summary()
}

// teardownContainers tears down each container ID through a bounded worker
// pool, state-aware: running containers are stopped with a short timeout,
// paused containers are unpaused then stopped, exited/dead containers go
// straight to removal, and every container is force-removed at the end
// regardless of how the stop/unpause step went.
func (j *Janitor) teardownContainers(ctx context.Context, ids []string) {
	j.runPool(ctx, ids, j.containerPoolSize, func(ctx context.Context, id string) error {
		return j.teardownContainer(ctx, id)
	}, "teardown_container")
}

func (j *Janitor) teardownContainer(ctx context.Context, id string) error {
	inspect, err := j.docker.InspectContainer(ctx, id)
	if err != nil {
		if dockerx.IsNotFoundOrNotRunning(err) {
			return nil
		}
		return err
	}

	var stopErr error
	switch {
	case inspect.State.Paused:
		if stopErr = j.docker.UnpauseContainer(ctx, id); stopErr == nil {
			stopErr = j.docker.StopContainer(ctx, id, 10)
		}
	case inspect.State.Running:
		stopErr = j.docker.StopContainer(ctx, id, 10)
	default:
		// exited, dead, or created: no stop needed, go straight to removal.
	}
	if stopErr != nil {
		log.Debug().Err(stopErr).Str("container", id).Msg("stop before removal failed, force-removing anyway")
	}

	return j.docker.RemoveContainer(ctx, id)
}

// teardownNetworks disconnects every attached container (force) then
// removes each network, through a bounded worker pool.
func (j *Janitor) teardownNetworks(ctx context.Context, ids []string) {
	j.runPool(ctx, ids, j.networkPoolSize, func(ctx context.Context, id string) error {
		if err := j.docker.DisconnectAll(ctx, id); err != nil {
			log.Debug().Err(err).Str("network", id).Msg("disconnect before removal failed, continuing")
		}
		return j.docker.RemoveNetwork(ctx, id)
	}, "teardown_network")
}

// runPool fans work out across a bounded number of goroutines, capping
// Docker-daemon pressure, and logs every outcome to the audit trail.
func (j *Janitor) runPool(ctx context.Context, ids []string, poolSize int, fn func(context.Context, string) error, action string) {
	if len(ids) == 0 {
		return
	}

	sem := make(chan struct{}, poolSize)
	var wg sync.WaitGroup

	for _, id := range ids {
		id := id
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			opCtx, cancel := context.WithTimeout(ctx, j.operationTimeout)
			defer cancel()

			err := fn(opCtx, id)
			j.logAudit(action, id, err == nil, err)
		}()
	}

	wg.Wait()
}

func (j *Janitor) logAudit(action, target string, success bool, err error) {
	entry := AuditEntry{
		Timestamp: time.Now(),
		Action:    action,
		Target:    target,
		Success:   success,
	}
	if err != nil {
		entry.Error = err.Error()
		log.Debug().Str("action", action).Str("target", target).Err(err).Msg("cleanup action failed (swallowed)")
	}

	j.mu.Lock()
	j.auditLog = append(j.auditLog, entry)
	j.mu.Unlock()
}

// summary returns the current cleanup summary.
func (j *Janitor) summary() Summary {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Summary{}
	for _, e := range j.auditLog {
		s.TotalActions++
		if e.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// AuditLog returns a copy of every recorded cleanup action.
func (j *Janitor) AuditLog() []AuditEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]AuditEntry, len(j.auditLog))
	copy(out, j.auditLog)
	return out
}

// VerifyGone checks that a container and a network are absent, used to
// confirm the ≤30s cleanup-grace-period testable property.
func (j *Janitor) VerifyGone(ctx context.Context, containerName, networkName string) (bool, error) {
	containers, err := j.docker.ListContainers(ctx, containerName)
	if err != nil {
		return false, fmt.Errorf("failed to list containers verifying cleanup: %w", err)
	}
	if len(containers) > 0 {
		return false, nil
	}

	networks, err := j.docker.ListNetworks(ctx, networkName)
	if err != nil {
		return false, fmt.Errorf("failed to list networks verifying cleanup: %w", err)
	}
	return len(networks) == 0, nil
}
