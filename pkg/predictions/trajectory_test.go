package predictions

import "testing"

func TestWriteReadTrajectory_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	traj := Trajectory{
		History: []HistoryEntry{
			{Role: "system", Content: "you are a CTF solver"},
			{Role: "user", Content: "here is the challenge"},
		},
		Trajectory: []Step{
			{Action: "ls", Observation: "flag.txt"},
			{Action: "cat flag.txt", Observation: "flag{roundtrip}"},
		},
		Info: Info{ModelStats: ModelStats{TokensSent: 120, TokensReceived: 45}},
	}

	if err := WriteTrajectory(dir, "pwn_ExampleA", traj); err != nil {
		t.Fatalf("WriteTrajectory: %v", err)
	}

	if !Exists(dir, "pwn_ExampleA") {
		t.Fatal("Exists() = false after WriteTrajectory")
	}

	got, err := ReadTrajectory(dir, "pwn_ExampleA")
	if err != nil {
		t.Fatalf("ReadTrajectory: %v", err)
	}

	if got.StepCount() != 2 {
		t.Errorf("StepCount() = %d, want 2", got.StepCount())
	}
	if got.Info.ModelStats.TokensSent != 120 || got.Info.ModelStats.TokensReceived != 45 {
		t.Errorf("model stats = %+v, want sent=120 received=45", got.Info.ModelStats)
	}
	if len(got.History) != 2 || got.History[1].Content != "here is the challenge" {
		t.Errorf("history not round-tripped correctly: %+v", got.History)
	}
	if got.Trajectory[1].Observation != "flag{roundtrip}" {
		t.Errorf("step observation not round-tripped: %+v", got.Trajectory[1])
	}
}

func TestExists_FalseWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir, "nonexistent") {
		t.Error("Exists() = true for a file that was never written")
	}
}
