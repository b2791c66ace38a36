package predictions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// HistoryEntry is one turn of the conversation the solver had with its
// model backend, carried in a trajectory file's "history" array so it can
// later be replayed into training data.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Step is one entry in a trajectory file's "trajectory" array: one
// environment interaction. Its shape varies by solver version, so beyond
// the fields collators rely on it is carried as opaque JSON rather than a
// fixed struct.
type Step struct {
	Action      string          `json:"action,omitempty"`
	Observation string          `json:"observation,omitempty"`
	Extra       json.RawMessage `json:"-"`
}

// MarshalJSON merges Step's named fields with any additional keys captured
// in Extra, so round-tripping a trajectory written by a different solver
// version doesn't silently drop fields this package doesn't know about.
func (s Step) MarshalJSON() ([]byte, error) {
	merged := map[string]json.RawMessage{}
	if len(s.Extra) > 0 {
		if err := json.Unmarshal(s.Extra, &merged); err != nil {
			return nil, fmt.Errorf("trajectory: merging step extras: %w", err)
		}
	}
	if s.Action != "" {
		b, _ := json.Marshal(s.Action)
		merged["action"] = b
	}
	if s.Observation != "" {
		b, _ := json.Marshal(s.Observation)
		merged["observation"] = b
	}
	return json.Marshal(merged)
}

// UnmarshalJSON captures the named fields this package understands and
// stashes the rest of the object verbatim in Extra.
func (s *Step) UnmarshalJSON(data []byte) error {
	var named struct {
		Action      string `json:"action"`
		Observation string `json:"observation"`
	}
	if err := json.Unmarshal(data, &named); err != nil {
		return fmt.Errorf("trajectory: unmarshaling step: %w", err)
	}
	s.Action = named.Action
	s.Observation = named.Observation
	s.Extra = append(json.RawMessage(nil), data...)
	return nil
}

// ModelStats is the token-accounting block a trajectory's info section
// carries, fed directly by a modelclient.Stats snapshot at attempt end.
type ModelStats struct {
	TokensSent     int64 `json:"tokens_sent"`
	TokensReceived int64 `json:"tokens_received"`
}

// Info is the trajectory file's "info" object.
type Info struct {
	ModelStats ModelStats `json:"model_stats"`
}

// Trajectory is the full contents of one <instance_id>.traj file: the
// conversation history, the step-by-step environment interaction log, and
// end-of-attempt model usage stats.
type Trajectory struct {
	History    []HistoryEntry `json:"history"`
	Trajectory []Step         `json:"trajectory"`
	Info       Info           `json:"info"`
}

// StepCount returns the number of environment interactions recorded, used
// by collators as a proxy for attempt depth.
func (t Trajectory) StepCount() int {
	return len(t.Trajectory)
}

// WriteTrajectory marshals traj as indented JSON to dir/<instanceID>.traj.
func WriteTrajectory(dir, instanceID string, traj Trajectory) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("trajectory: creating %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(traj, "", "  ")
	if err != nil {
		return fmt.Errorf("trajectory: marshaling %s: %w", instanceID, err)
	}

	path := TrajectoryPath(dir, instanceID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("trajectory: writing %s: %w", path, err)
	}
	return nil
}

// ReadTrajectory reads and parses dir/<instanceID>.traj.
func ReadTrajectory(dir, instanceID string) (Trajectory, error) {
	path := TrajectoryPath(dir, instanceID)
	data, err := os.ReadFile(path)
	if err != nil {
		return Trajectory{}, fmt.Errorf("trajectory: reading %s: %w", path, err)
	}

	var traj Trajectory
	if err := json.Unmarshal(data, &traj); err != nil {
		return Trajectory{}, fmt.Errorf("trajectory: parsing %s: %w", path, err)
	}
	return traj, nil
}

// TrajectoryPath returns the conventional path of an instance's trajectory
// file within a run directory.
func TrajectoryPath(dir, instanceID string) string {
	return filepath.Join(dir, instanceID+".traj")
}

// Exists reports whether dir/<instanceID>.traj is present, used by
// collators to flag a captured prediction with no trajectory file as a
// data-integrity warning.
func Exists(dir, instanceID string) bool {
	_, err := os.Stat(TrajectoryPath(dir, instanceID))
	return err == nil
}
