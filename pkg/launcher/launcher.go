// Package launcher is the Worker Launcher (C5): it builds the solver
// command line for one attempt, starts it as a supervised child process,
// and owns that child's status-file/log-file contract.
//
// Writing the status file, teeing logs, grepping for Docker error
// signatures, and translating the exit code are pure control-flow
// responsibilities, implemented natively below around a supervised
// os/exec.Cmd rather than as a generated shell wrapper script. The child
// solver remains an opaque executable.
package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Cyber-Gym/enigma-plus/pkg/attempt"
	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
	"github.com/Cyber-Gym/enigma-plus/pkg/config"
	"github.com/Cyber-Gym/enigma-plus/pkg/dockerx"
)

// Status values written to an attempt's status file.
const (
	StatusRunning         = "RUNNING"
	StatusCompletedSucc   = "COMPLETED_SUCCESS"
	StatusCompletedFailed = "COMPLETED_FAILED"
	StatusFinished        = "FINISHED"
)

// Options carries the per-attempt, per-run values the launcher needs to
// build a command line and environment.
type Options struct {
	ModelName            string
	HostURL              string
	PerInstanceStepLimit int
	Temperature          float64
	TopP                 float64
	DynamicPorts         bool
	AllowDirtyRepo       bool
	ImageName            string
	TrajectoryDir        string
	ConfigFile           string
	Writeup              string // raw writeup text, empty if none selected
}

// BuildArgv constructs the solver's argv for one attempt, following the
// recognized solver command-line flags.
func BuildArgv(solverCommand string, att attempt.Descriptor, ch challenge.Descriptor, dataPath string, opt Options) []string {
	args := []string{
		solverCommand,
		"--model_name", opt.ModelName,
		"--ctf",
		"--image_name", opt.ImageName,
		"--data_path", dataPath,
		"--repo_path", ch.RepoPath,
		"--host_url", opt.HostURL,
		"--per_instance_step_limit", strconv.Itoa(opt.PerInstanceStepLimit),
		"--trajectory_path", filepath.Join(opt.TrajectoryDir, fmt.Sprintf("try%d", att.TryNumber)),
		"--temperature", strconv.FormatFloat(opt.Temperature, 'f', -1, 64),
		"--top_p", strconv.FormatFloat(opt.TopP, 'f', -1, 64),
		"--container_name", att.ContainerName,
	}
	if opt.ConfigFile != "" {
		args = append(args, "--config_file", opt.ConfigFile)
	}
	if opt.DynamicPorts {
		args = append(args, "--enable_dynamic_ports")
	}
	if opt.AllowDirtyRepo {
		args = append(args, "--allow_dirty_repo")
	}
	if opt.Writeup != "" {
		args = append(args, "--writeup", ShellQuote(opt.Writeup))
	}
	return args
}

// ShellQuote wraps s in single quotes, escaping any embedded single quote
// as '"'"' so the flag survives shell re-parsing.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// EnvFor returns the credential environment variables required by the
// configured model backend, to be appended to the child's environment.
func EnvFor(model config.ModelConfig) []string {
	switch model.Provider {
	case "bedrock", "bedrock-anthropic":
		return passthroughEnv("ISENGARD_PRODUCTION_ACCOUNT", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN")
	case "openai", "ollama", "together", "vllm":
		env := passthroughEnv("OPENAI_API_KEY")
		if model.HostURL != "" {
			env = append(env, "OPENAI_API_BASE_URL="+model.HostURL)
		}
		return env
	case "anthropic":
		return passthroughEnv("ANTHROPIC_API_KEY")
	default:
		return nil
	}
}

func passthroughEnv(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			if name == "ISENGARD_PRODUCTION_ACCOUNT" {
				out = append(out, name+"=true")
				continue
			}
			out = append(out, name+"="+v)
		}
	}
	return out
}

// Session is one launched, supervised attempt child process.
type Session struct {
	Attempt   attempt.Descriptor
	StartedAt time.Time

	cmd        *exec.Cmd
	statusPath string
	logPath    string

	mu       sync.Mutex
	logLines strings.Builder
	done     chan struct{}
}

// Launch starts argv as a supervised child, writing RUNNING to the
// attempt's status file before exec and tee-ing combined stdout/stderr to
// logPath (if non-empty) while also buffering it for Docker error-signature
// scanning. On exit it writes the terminal status: COMPLETED_SUCCESS for a
// zero exit with no Docker error signature found, COMPLETED_FAILED
// otherwise.
func Launch(ctx context.Context, att attempt.Descriptor, argv []string, env []string) (*Session, error) {
	if err := os.MkdirAll(filepath.Dir(att.StatusPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}
	if err := writeStatus(att.StatusPath, StatusRunning); err != nil {
		return nil, fmt.Errorf("failed to write initial status: %w", err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var logFile *os.File
	if att.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(att.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.Create(att.LogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
	}

	s := &Session{
		Attempt:    att,
		StartedAt:  time.Now(),
		cmd:        cmd,
		statusPath: att.StatusPath,
		logPath:    att.LogPath,
		done:       make(chan struct{}),
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start solver child: %w", err)
	}

	go s.pump(stdout, logFile)
	go s.wait()

	return s, nil
}

// pump tees the child's combined output to the log file (if any) and an
// in-memory buffer used for the Docker error-signature scan.
func (s *Session) pump(r io.Reader, logFile *os.File) {
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		s.mu.Lock()
		s.logLines.WriteString(line)
		s.logLines.WriteByte('\n')
		s.mu.Unlock()

		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}
	}
}

// wait blocks for the child to exit, then writes the terminal status: on
// exit code 0 COMPLETED_SUCCESS, otherwise COMPLETED_FAILED — but if the
// captured log carries a Docker error signature, COMPLETED_FAILED overrides
// a zero exit code too.
func (s *Session) wait() {
	err := s.cmd.Wait()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	s.mu.Lock()
	logText := s.logLines.String()
	s.mu.Unlock()

	status := StatusCompletedFailed
	if exitCode == 0 {
		status = StatusCompletedSucc
	}
	if dockerx.HasDockerErrorSignature(logText) {
		status = StatusCompletedFailed
		log.Warn().Str("attempt", s.Attempt.ContainerName).Msg("docker error signature detected in child log, overriding status")
	}

	if err := writeStatus(s.statusPath, status); err != nil {
		log.Error().Err(err).Str("attempt", s.Attempt.ContainerName).Msg("failed to write terminal status")
	}

	close(s.done)
}

// Done returns a channel closed once the session's terminal status has
// been written.
func (s *Session) Done() <-chan struct{} { return s.done }

// Kill terminates the entire child process group, used by the supervisor
// on stuck/timeout/cancellation.
func (s *Session) Kill() error {
	if s.cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(s.cmd.Process.Pid)
	if err != nil {
		return s.cmd.Process.Kill()
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

// writeStatus overwrites the attempt's status file with a single value.
// Status-file writes are last-writer-wins; only terminal writers are
// expected to overwrite a RUNNING value.
func writeStatus(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
