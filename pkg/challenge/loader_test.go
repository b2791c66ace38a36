package challenge

import (
	"os"
	"path/filepath"
	"testing"
)

func writeJSON(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSlicesInclusive(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "challenges.json", `{
		"crypto_Alpha": {"category":"crypto","name":"Alpha","internal_port":9000,"server_alias":"alpha","repo_path":"alpha"},
		"pwn_Beta": {"category":"pwn","name":"Beta","internal_port":9001,"server_alias":"beta","repo_path":"beta"},
		"web_Gamma": {"category":"web","name":"Gamma","internal_port":80,"server_alias":"gamma","repo_path":"gamma"}
	}`)

	descs, _, err := Load(path, 1, 2, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("expected 2 challenges for range [1,2], got %d", len(descs))
	}
	// Sorted by challenge_id: crypto_Alpha, pwn_Beta, web_Gamma
	if descs[0].ChallengeID != "crypto_Alpha" || descs[1].ChallengeID != "pwn_Beta" {
		t.Fatalf("unexpected slice contents: %+v", descs)
	}
}

func TestLoadDefaultsToFullRange(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "challenges.json", `{
		"misc_One": {"category":"misc","name":"One","internal_port":1,"server_alias":"one","repo_path":"one"}
	}`)

	descs, _, err := Load(path, 0, 0, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("expected 1 challenge, got %d", len(descs))
	}
}

func TestLoadRejectsInvertedRange(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "challenges.json", `{"a_X": {"internal_port":1}}`)

	if _, _, err := Load(path, 5, 1, ""); err == nil {
		t.Fatal("expected error for start > end")
	}
}

func TestLoadWithWriteups(t *testing.T) {
	dir := t.TempDir()
	chPath := writeJSON(t, dir, "challenges.json", `{"crypto_Foo": {"category":"crypto","name":"Foo","internal_port":1,"server_alias":"foo","repo_path":"foo"}}`)
	wPath := writeJSON(t, dir, "writeups.json", `{"crypto_Foo": [{"task_writeup":"hint one"},{"task_writeup":"hint two"}]}`)

	descs, writeups, err := Load(chPath, 1, 1, wPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("expected 1 challenge")
	}
	hints := writeups["crypto_Foo"]
	if len(hints) != 2 {
		t.Fatalf("expected 2 writeups for crypto_Foo, got %d", len(hints))
	}
}

func TestCategory(t *testing.T) {
	cases := map[string]string{
		"pwn_ExampleA": "pwn",
		"web_Gamma":    "web",
		"noprefix":     "noprefix",
	}
	for id, want := range cases {
		if got := Category(id); got != want {
			t.Errorf("Category(%q) = %q, want %q", id, got, want)
		}
	}
}
