package predictions

import (
	"path/filepath"
	"sort"
)

// InstanceOutcome pairs one instance's canonical prediction record with
// whether its trajectory file was found alongside it.
type InstanceOutcome struct {
	Record          Record
	TrajectoryFound bool
}

// RunSummary is the collated result of one run directory's predictions and
// trajectories, the shape downstream analytics scripts consume.
type RunSummary struct {
	Outcomes          []InstanceOutcome
	Captured          int
	Failed            int
	MissingTrajectory []string // instance_ids with a captured flag but no .traj file
}

// Collate reads runDir's all_preds.jsonl, resolves the canonical record per
// instance_id, and cross-references each against its trajectory file.
// Results are sorted by instance_id for stable reporting.
func Collate(runDir string) (RunSummary, error) {
	predsPath := filepath.Join(runDir, "all_preds.jsonl")
	canonical, err := ReadCanonical(predsPath)
	if err != nil {
		return RunSummary{}, err
	}

	ids := make([]string, 0, len(canonical))
	for id := range canonical {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summary := RunSummary{Outcomes: make([]InstanceOutcome, 0, len(ids))}
	for _, id := range ids {
		rec := canonical[id]
		found := Exists(runDir, id)
		summary.Outcomes = append(summary.Outcomes, InstanceOutcome{Record: rec, TrajectoryFound: found})

		if rec.Captured() {
			summary.Captured++
			if !found {
				summary.MissingTrajectory = append(summary.MissingTrajectory, id)
			}
		} else {
			summary.Failed++
		}
	}

	return summary, nil
}
