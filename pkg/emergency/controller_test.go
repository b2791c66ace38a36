package emergency

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStopRunsCallbacksOnce(t *testing.T) {
	c := New(Config{
		StopFile:     filepath.Join(t.TempDir(), "stop"),
		PollInterval: 10 * time.Millisecond,
	})

	calls := 0
	c.OnStop(func() { calls++ })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	c.Stop("test")
	c.Stop("test") // second call must be a no-op

	select {
	case <-c.StopChannel():
	case <-time.After(time.Second):
		t.Fatal("stop channel was never closed")
	}

	if calls != 1 {
		t.Fatalf("callbacks ran %d times, want 1", calls)
	}
	if !c.IsStopped() {
		t.Fatal("IsStopped() = false after Stop")
	}
}

func TestStopFileTriggersStop(t *testing.T) {
	stopFile := filepath.Join(t.TempDir(), "stop")
	c := New(Config{
		StopFile:     stopFile,
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	if err := c.CreateStopFile(); err != nil {
		t.Fatalf("CreateStopFile: %v", err)
	}

	select {
	case <-c.StopChannel():
	case <-time.After(time.Second):
		t.Fatal("dropping the stop file never triggered a stop")
	}

	if !c.IsStopped() {
		t.Fatal("IsStopped() = false after stop file appeared")
	}
}

func TestCreateAndRemoveStopFile(t *testing.T) {
	stopFile := filepath.Join(t.TempDir(), "stop")
	c := New(Config{StopFile: stopFile})

	if err := c.CreateStopFile(); err != nil {
		t.Fatalf("CreateStopFile: %v", err)
	}
	if _, err := os.Stat(stopFile); err != nil {
		t.Fatalf("stop file not created: %v", err)
	}

	if err := c.RemoveStopFile(); err != nil {
		t.Fatalf("RemoveStopFile: %v", err)
	}
	if _, err := os.Stat(stopFile); !os.IsNotExist(err) {
		t.Fatalf("stop file still exists after RemoveStopFile")
	}
}
