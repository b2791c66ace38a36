package attempt

import (
	"strings"
	"testing"

	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
)

func TestStateIsTerminal(t *testing.T) {
	nonTerminal := []State{Pending, Running}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}

	terminal := []State{SuccessCompleted, FailedCompleted, TimedOut, Stuck, DockerError}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestNewDerivesNamesPerConvention(t *testing.T) {
	ch := challenge.Descriptor{ChallengeID: "pwn_ExampleA", Category: "pwn"}
	d := New("exec123", 7, ch, 2, "logs")

	wantContainer := "exec123-parallel-7-pwn_ExampleA-try2"
	if d.ContainerName != wantContainer {
		t.Errorf("ContainerName = %q, want %q", d.ContainerName, wantContainer)
	}

	wantSession := "swe_exec123_7_pwn_ExampleA_try2"
	if d.SessionName != wantSession {
		t.Errorf("SessionName = %q, want %q", d.SessionName, wantSession)
	}

	if !strings.Contains(d.StatusPath, "status_exec123/7_pwn_ExampleA_try2.txt") {
		t.Errorf("StatusPath = %q, missing expected components", d.StatusPath)
	}
}

func TestNetworkNameUniquePerAttempt(t *testing.T) {
	ch1 := challenge.Descriptor{ChallengeID: "web_A"}
	ch2 := challenge.Descriptor{ChallengeID: "web_B"}

	d1 := New("exec1", 1, ch1, 1, "logs")
	d2 := New("exec1", 2, ch2, 1, "logs")

	if d1.NetworkName() == d2.NetworkName() {
		t.Fatal("expected distinct network names for distinct attempts")
	}
}
