// Package challenge loads a challenges index and optional writeup-hint
// index, and emits the set of challenge descriptors a run will attempt.
package challenge

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Descriptor is one challenge's immutable definition, loaded at startup.
// The category prefix before the first underscore in ChallengeID names the
// CTF subdomain (web, pwn, rev, crypto, misc, forensics).
type Descriptor struct {
	ChallengeID  string `json:"challenge_id"`
	RepoPath     string `json:"repo_path"`
	Category     string `json:"category"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	InternalPort int    `json:"internal_port"`
	ServerAlias  string `json:"server_alias"`
	Files        []string `json:"files,omitempty"`
}

// Writeup is one hint text associated with a challenge ID.
type Writeup struct {
	TaskWriteup string `json:"task_writeup"`
}

// WriteupIndex maps a challenge ID to the writeups available for it.
type WriteupIndex map[string][]Writeup

// Load reads a JSON object keyed by challenge_id from datasetPath, applies
// 1-based [start, end] slicing (inclusive end; end<=0 means "to the last
// challenge"), and optionally loads a writeup index. Challenges are
// returned in a stable order (sorted by challenge_id) so repeated loads of
// the same dataset produce the same slice.
func Load(datasetPath string, start, end int, writeupPath string) ([]Descriptor, WriteupIndex, error) {
	data, err := os.ReadFile(datasetPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read challenges index %s: %w", datasetPath, err)
	}

	raw := map[string]Descriptor{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse challenges index %s: %w", datasetPath, err)
	}

	ids := make([]string, 0, len(raw))
	for id, desc := range raw {
		if desc.ChallengeID == "" {
			desc.ChallengeID = id
			raw[id] = desc
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if start < 1 {
		start = 1
	}
	if end <= 0 || end > len(ids) {
		end = len(ids)
	}
	if start > end {
		return nil, nil, fmt.Errorf("invalid challenge range [%d,%d] over %d challenges", start, end, len(ids))
	}

	selected := make([]Descriptor, 0, end-start+1)
	for _, id := range ids[start-1 : end] {
		selected = append(selected, raw[id])
	}

	var writeups WriteupIndex
	if writeupPath != "" {
		writeups, err = loadWriteups(writeupPath)
		if err != nil {
			return nil, nil, err
		}
	}

	return selected, writeups, nil
}

func loadWriteups(path string) (WriteupIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read writeup index %s: %w", path, err)
	}

	idx := WriteupIndex{}
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse writeup index %s: %w", path, err)
	}
	return idx, nil
}

// Category returns the CTF subdomain named by the prefix of a challenge ID
// before its first underscore.
func Category(challengeID string) string {
	if idx := strings.IndexByte(challengeID, '_'); idx > 0 {
		return challengeID[:idx]
	}
	return challengeID
}
