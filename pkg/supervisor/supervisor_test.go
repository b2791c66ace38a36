package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Cyber-Gym/enigma-plus/pkg/attempt"
	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
	"github.com/Cyber-Gym/enigma-plus/pkg/launcher"
)

func testAttempt(t *testing.T, dir string) attempt.Descriptor {
	t.Helper()
	ch := challenge.Descriptor{ChallengeID: "pwn_warmup", Category: "pwn", Name: "warmup"}
	return attempt.New("host-1-000000", 1, ch, 1, dir)
}

func TestResolveFromStatusFile_Success(t *testing.T) {
	dir := t.TempDir()
	att := testAttempt(t, dir)
	if err := os.MkdirAll(filepath.Dir(att.StatusPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(att.StatusPath, []byte(launcher.StatusCompletedSucc), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(Config{})
	if got := s.resolveFromStatusFile(att); got != attempt.SuccessCompleted {
		t.Errorf("resolveFromStatusFile = %v, want SuccessCompleted", got)
	}
}

func TestResolveFromStatusFile_FailedWithoutDockerSignature(t *testing.T) {
	dir := t.TempDir()
	att := testAttempt(t, dir)
	os.MkdirAll(filepath.Dir(att.StatusPath), 0o755)
	os.WriteFile(att.StatusPath, []byte(launcher.StatusCompletedFailed), 0o644)
	os.MkdirAll(filepath.Dir(att.LogPath), 0o755)
	os.WriteFile(att.LogPath, []byte("solver exited nonzero, no docker issue here\n"), 0o644)

	s := New(Config{})
	if got := s.resolveFromStatusFile(att); got != attempt.FailedCompleted {
		t.Errorf("resolveFromStatusFile = %v, want FailedCompleted", got)
	}
}

func TestResolveFromStatusFile_DockerErrorOverridesFailed(t *testing.T) {
	dir := t.TempDir()
	att := testAttempt(t, dir)
	os.MkdirAll(filepath.Dir(att.StatusPath), 0o755)
	os.WriteFile(att.StatusPath, []byte(launcher.StatusCompletedFailed), 0o644)
	os.MkdirAll(filepath.Dir(att.LogPath), 0o755)
	os.WriteFile(att.LogPath, []byte("docker.errors.APIError: conflict\n"), 0o644)

	s := New(Config{})
	if got := s.resolveFromStatusFile(att); got != attempt.DockerError {
		t.Errorf("resolveFromStatusFile = %v, want DockerError", got)
	}
}

func TestResolveFromStatusFile_AbsentPromotesToFailed(t *testing.T) {
	dir := t.TempDir()
	att := testAttempt(t, dir)

	s := New(Config{})
	if got := s.resolveFromStatusFile(att); got != attempt.FailedCompleted {
		t.Errorf("resolveFromStatusFile = %v, want FailedCompleted for a missing status file", got)
	}
}

func TestHasDockerErrorInLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attempt.log")
	os.WriteFile(path, []byte("failed to create endpoint on network ctfnet-x: exchange full\n"), 0o644)

	if !HasDockerErrorInLog(path) {
		t.Error("expected docker error signature to be detected")
	}
	if HasDockerErrorInLog(filepath.Join(dir, "missing.log")) {
		t.Error("missing log file should report no signature")
	}
}

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	if th.Hard != 3600*time.Second || th.Stale != 1800*time.Second || th.NoStatus != 1800*time.Second {
		t.Errorf("unexpected defaults: %+v", th)
	}
}

func TestSupervise_SuccessCompleted(t *testing.T) {
	dir := t.TempDir()
	att := testAttempt(t, dir)

	sess, err := launcher.Launch(context.Background(), att, []string{"sh", "-c", "exit 0"}, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	s := New(Config{PollInterval: 10 * time.Millisecond})
	resultCh := s.Supervise(context.Background(), sess)

	select {
	case res := <-resultCh:
		if res.State != attempt.SuccessCompleted {
			t.Errorf("State = %v, want SuccessCompleted", res.State)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}

	if s.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0 after completion", s.ActiveCount())
	}
}

func TestSupervise_FailedCompleted(t *testing.T) {
	dir := t.TempDir()
	att := testAttempt(t, dir)

	sess, err := launcher.Launch(context.Background(), att, []string{"sh", "-c", "exit 1"}, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	s := New(Config{PollInterval: 10 * time.Millisecond})
	resultCh := s.Supervise(context.Background(), sess)

	select {
	case res := <-resultCh:
		if res.State != attempt.FailedCompleted {
			t.Errorf("State = %v, want FailedCompleted", res.State)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestSupervise_TimedOutOnHardCeiling(t *testing.T) {
	dir := t.TempDir()
	att := testAttempt(t, dir)

	sess, err := launcher.Launch(context.Background(), att, []string{"sleep", "30"}, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	s := New(Config{
		PollInterval: 10 * time.Millisecond,
		Thresholds:   Thresholds{Hard: 30 * time.Millisecond, Stale: time.Hour, NoStatus: time.Hour},
	})
	resultCh := s.Supervise(context.Background(), sess)

	select {
	case res := <-resultCh:
		if res.State != attempt.TimedOut {
			t.Errorf("State = %v, want TimedOut", res.State)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for supervisor to kill the stuck child")
	}
}

func TestSupervise_StuckOnStaleStatusMtime(t *testing.T) {
	dir := t.TempDir()
	att := testAttempt(t, dir)

	sess, err := launcher.Launch(context.Background(), att, []string{"sleep", "30"}, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	stale := time.Now().Add(-time.Hour)
	if err := os.Chtimes(att.StatusPath, stale, stale); err != nil {
		t.Fatal(err)
	}

	s := New(Config{
		PollInterval: 10 * time.Millisecond,
		Thresholds:   Thresholds{Hard: time.Hour, Stale: 20 * time.Millisecond, NoStatus: time.Hour},
	})
	resultCh := s.Supervise(context.Background(), sess)

	select {
	case res := <-resultCh:
		if res.State != attempt.Stuck {
			t.Errorf("State = %v, want Stuck", res.State)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for supervisor to kill the stale attempt")
	}
}

func TestSupervise_ContextCancellationKillsAndFinishes(t *testing.T) {
	dir := t.TempDir()
	att := testAttempt(t, dir)

	sess, err := launcher.Launch(context.Background(), att, []string{"sleep", "30"}, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{PollInterval: 10 * time.Millisecond, Thresholds: Thresholds{Hard: time.Hour, Stale: time.Hour, NoStatus: time.Hour}})
	resultCh := s.Supervise(ctx, sess)

	cancel()

	select {
	case res, ok := <-resultCh:
		if !ok {
			t.Fatal("result channel closed without a Result")
		}
		if !res.State.IsTerminal() {
			t.Errorf("State = %v, want a terminal state", res.State)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for cancellation to resolve the attempt")
	}
}
