// Package attempt defines the per-(challenge, try) unit of work the
// scheduler dispatches, the supervisor tracks, and the launcher executes,
// along with the naming conventions that derive container/session/status
// names deterministically from an attempt's identity.
package attempt

import (
	"fmt"
	"os"
	"time"

	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
)

// State is a terminal or non-terminal point in an attempt's lifecycle. The
// zero value is Pending. States form the partial order
// Pending < Running < (any terminal state); once a terminal state is set it
// is never downgraded.
type State int

const (
	Pending State = iota
	Running
	SuccessCompleted
	FailedCompleted
	TimedOut
	Stuck
	DockerError
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case SuccessCompleted:
		return "SuccessCompleted"
	case FailedCompleted:
		return "FailedCompleted"
	case TimedOut:
		return "TimedOut"
	case Stuck:
		return "Stuck"
	case DockerError:
		return "DockerError"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is one of the attempt's terminal states.
func (s State) IsTerminal() bool {
	return s >= SuccessCompleted
}

// Descriptor identifies and names one (challenge, try_number) attempt
// within a run. Every field here is computed once, at attempt-construction
// time, from the run's execution_id and the attempt's position.
type Descriptor struct {
	InstanceID    int
	Challenge     challenge.Descriptor
	TryNumber     int
	ExecutionID   string
	ContainerName string
	SessionName   string
	StatusPath    string
	LogPath       string
}

// NewExecutionID builds the engine's unique per-run token: a short
// hostname, the process ID, and a short timestamp.
func NewExecutionID(now time.Time) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "host"
	}
	if len(host) > 8 {
		host = host[:8]
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), now.Format("150405"))
}

// New builds a Descriptor for one (challenge, try_number) pair, deriving
// every name from executionID, instanceID, and the challenge's ID.
func New(executionID string, instanceID int, ch challenge.Descriptor, tryNumber int, logsDir string) Descriptor {
	containerName := fmt.Sprintf("%s-parallel-%d-%s-try%d", executionID, instanceID, ch.ChallengeID, tryNumber)
	sessionName := fmt.Sprintf("swe_%s_%d_%s_try%d", executionID, instanceID, ch.ChallengeID, tryNumber)
	statusPath := fmt.Sprintf("%s/status_%s/%d_%s_try%d.txt", logsDir, executionID, instanceID, ch.ChallengeID, tryNumber)
	logPath := fmt.Sprintf("%s/%s_parallel_%d_%s_try%d.log", logsDir, executionID, instanceID, ch.ChallengeID, tryNumber)

	return Descriptor{
		InstanceID:    instanceID,
		Challenge:     ch,
		TryNumber:     tryNumber,
		ExecutionID:   executionID,
		ContainerName: containerName,
		SessionName:   sessionName,
		StatusPath:    statusPath,
		LogPath:       logPath,
	}
}

// ComposeSuffix returns the short, filesystem/docker-name-safe suffix used
// to disambiguate this attempt's services, containers, and network.
func (d Descriptor) ComposeSuffix() string {
	return fmt.Sprintf("%d-%s-try%d", d.InstanceID, d.Challenge.ChallengeID, d.TryNumber)
}

// NetworkName returns this attempt's private bridge network name. It
// carries the execution ID so the janitor's execution-scoped sweeps match it.
func (d Descriptor) NetworkName() string {
	return fmt.Sprintf("ctfnet-%s-%s", d.ExecutionID, d.ComposeSuffix())
}

// InstanceIDString returns the prediction-record instance_id, which by
// convention is "<category>_<Name>" (i.e. the challenge ID itself).
func (d Descriptor) InstanceIDString() string {
	return d.Challenge.ChallengeID
}
