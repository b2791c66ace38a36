package predictions

import (
	"os"
	"path/filepath"
	"testing"
)

func strptr(s string) *string { return &s }

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "all_preds.jsonl")

	records := []Record{
		{InstanceID: "pwn_ExampleA", ModelPatch: nil, TryNumber: 1},
		{InstanceID: "pwn_ExampleA", ModelPatch: strptr("flag{a}"), TryNumber: 2},
		{InstanceID: "web_ExampleB", ModelPatch: strptr("flag{b}"), TryNumber: 1},
	}
	for _, rec := range records {
		if err := Append(path, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadAll returned %d records, want 3", len(got))
	}
}

func TestCanonical_PrefersNonNullModelPatch(t *testing.T) {
	records := []Record{
		{InstanceID: "pwn_ExampleA", ModelPatch: nil},
		{InstanceID: "pwn_ExampleA", ModelPatch: strptr("flag{a}")},
		{InstanceID: "pwn_ExampleA", ModelPatch: nil},
	}

	canonical := Canonical(records)
	rec, ok := canonical["pwn_ExampleA"]
	if !ok {
		t.Fatal("expected pwn_ExampleA in canonical map")
	}
	if !rec.Captured() {
		t.Errorf("expected canonical record to be the captured one, got %+v", rec)
	}
}

func TestCanonical_FallsBackToFirstLine(t *testing.T) {
	records := []Record{
		{InstanceID: "rev_Puzzle", ModelPatch: nil, TryNumber: 1},
		{InstanceID: "rev_Puzzle", ModelPatch: nil, TryNumber: 2},
	}

	canonical := Canonical(records)
	rec := canonical["rev_Puzzle"]
	if rec.TryNumber != 1 {
		t.Errorf("expected first line to win when none are captured, got try_number=%d", rec.TryNumber)
	}
}

func TestReadCanonical_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "all_preds.jsonl")

	_ = Append(path, Record{InstanceID: "crypto_X", ModelPatch: nil})
	_ = Append(path, Record{InstanceID: "crypto_X", ModelPatch: strptr("flag{x}")})

	canonical, err := ReadCanonical(path)
	if err != nil {
		t.Fatalf("ReadCanonical: %v", err)
	}
	if !canonical["crypto_X"].Captured() {
		t.Errorf("expected crypto_X to be captured")
	}
}

func TestAppend_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "all_preds.jsonl")

	if err := Append(path, Record{InstanceID: "misc_Y", ModelPatch: strptr("flag{y}")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("opening for malformed append: %v", err)
	}
	if _, err := f.WriteString("not json at all\n"); err != nil {
		t.Fatalf("writing malformed line: %v", err)
	}
	f.Close()

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected malformed line to be skipped, got %d records", len(got))
	}
}
