package predictions

import (
	"path/filepath"
	"testing"
)

func TestCollate(t *testing.T) {
	dir := t.TempDir()
	predsPath := filepath.Join(dir, "all_preds.jsonl")

	if err := Append(predsPath, Record{InstanceID: "pwn_A", ModelPatch: strptr("flag{a}")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := Append(predsPath, Record{InstanceID: "web_B", ModelPatch: nil}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := Append(predsPath, Record{InstanceID: "crypto_C", ModelPatch: strptr("flag{c}")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := WriteTrajectory(dir, "pwn_A", Trajectory{}); err != nil {
		t.Fatalf("WriteTrajectory: %v", err)
	}
	// crypto_C is captured but its .traj is deliberately missing.

	summary, err := Collate(dir)
	if err != nil {
		t.Fatalf("Collate: %v", err)
	}

	if summary.Captured != 2 {
		t.Errorf("Captured = %d, want 2", summary.Captured)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if len(summary.MissingTrajectory) != 1 || summary.MissingTrajectory[0] != "crypto_C" {
		t.Errorf("MissingTrajectory = %v, want [crypto_C]", summary.MissingTrajectory)
	}
	if len(summary.Outcomes) != 3 {
		t.Fatalf("Outcomes length = %d, want 3", len(summary.Outcomes))
	}
	// Outcomes are sorted by instance_id.
	if summary.Outcomes[0].Record.InstanceID != "crypto_C" {
		t.Errorf("Outcomes[0].InstanceID = %q, want crypto_C", summary.Outcomes[0].Record.InstanceID)
	}
}
