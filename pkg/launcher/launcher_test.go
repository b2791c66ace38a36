package launcher

import (
	"strings"
	"testing"

	"github.com/Cyber-Gym/enigma-plus/pkg/attempt"
	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
	"github.com/Cyber-Gym/enigma-plus/pkg/config"
)

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	cases := map[string]string{
		"":              "''",
		"plain":         "'plain'",
		"it's a quote":  `'it'"'"'s a quote'`,
		"''":            `''"'"''"'"''`,
	}
	for in, want := range cases {
		if got := ShellQuote(in); got != want {
			t.Errorf("ShellQuote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildArgvOmitsWriteupWhenEmpty(t *testing.T) {
	ch := challenge.Descriptor{ChallengeID: "web_100", RepoPath: "/challenges/web_100"}
	att := attempt.New("exec1", 1, ch, 1, "/logs")

	argv := BuildArgv("run_ctf.py", att, ch, "challenges.json", Options{ModelName: "gpt-4o"})
	for _, a := range argv {
		if a == "--writeup" {
			t.Fatalf("argv contains --writeup with no writeup configured: %v", argv)
		}
	}
}

func TestBuildArgvIncludesShellQuotedWriteup(t *testing.T) {
	ch := challenge.Descriptor{ChallengeID: "web_100", RepoPath: "/challenges/web_100"}
	att := attempt.New("exec1", 1, ch, 2, "/logs")

	argv := BuildArgv("run_ctf.py", att, ch, "challenges.json", Options{
		ModelName:     "gpt-4o",
		TrajectoryDir: "trajectories/ctf",
		Writeup:       "look at the cookie",
	})

	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "--writeup 'look at the cookie'") {
		t.Fatalf("argv missing shell-quoted writeup flag: %v", argv)
	}
	if !strings.Contains(joined, "trajectories/ctf/try2") {
		t.Fatalf("argv trajectory_path does not honor try_number: %v", argv)
	}
}

func TestEnvForProvidersAreDisjointFromUnrelatedCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")

	env := EnvFor(config.ModelConfig{Provider: "openai"})
	found := false
	for _, e := range env {
		if e == "OPENAI_API_KEY=sk-test" {
			found = true
		}
		if strings.HasPrefix(e, "ANTHROPIC_API_KEY=") {
			t.Fatalf("openai provider leaked an anthropic credential: %v", env)
		}
	}
	if !found {
		t.Fatalf("openai provider env missing OPENAI_API_KEY: %v", env)
	}
}
