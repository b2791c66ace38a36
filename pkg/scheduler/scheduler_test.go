package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Cyber-Gym/enigma-plus/pkg/attempt"
	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
	"github.com/Cyber-Gym/enigma-plus/pkg/launcher"
)

func TestSampleWriteupReturnsEmptyWithNoIndex(t *testing.T) {
	s := New(Config{})
	if got := s.sampleWriteup("web_100"); got != "" {
		t.Fatalf("sampleWriteup() = %q, want empty with no writeup index configured", got)
	}
}

func TestSampleWriteupDrawsFromConfiguredIndex(t *testing.T) {
	s := New(Config{
		Writeups: challenge.WriteupIndex{
			"web_100": {{TaskWriteup: "only hint"}},
		},
	})
	if got := s.sampleWriteup("web_100"); got != "only hint" {
		t.Fatalf("sampleWriteup() = %q, want %q", got, "only hint")
	}
	if got := s.sampleWriteup("pwn_200"); got != "" {
		t.Fatalf("sampleWriteup() for unindexed challenge = %q, want empty", got)
	}
}

func TestWriteActiveSessionsWritesOneLinePerInflightAttempt(t *testing.T) {
	logsDir := t.TempDir()
	s := New(Config{ExecutionID: "exec1", LogsDir: logsDir})

	ch := challenge.Descriptor{ChallengeID: "web_100", RepoPath: "/challenges/web_100"}
	att := attempt.New("exec1", 1, ch, 1, logsDir)
	sess := &launcher.Session{Attempt: att}

	s.mu.Lock()
	s.inflight[att.ContainerName] = inflightAttempt{session: sess}
	s.mu.Unlock()

	s.writeActiveSessions()

	path := filepath.Join(logsDir, "active_sessions_exec1.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading active sessions file: %v", err)
	}

	line := strings.TrimSpace(string(data))
	want := att.SessionName + ":" + att.StatusPath
	if line != want {
		t.Fatalf("active sessions file = %q, want %q", line, want)
	}
}
