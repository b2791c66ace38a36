// Package dockerenv is the Docker Environment Adapter (C9): it brings up
// the isolated challenge stack for one attempt (a compose-up of the
// Compose Rewriter's output), attaches the solver's sandbox container to
// that stack's private network, and tears everything down on Close.
//
// The sandbox-attach step joins the private bridge network and nothing
// else, attaching the solver sandbox to the challenge's network.
package dockerenv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Cyber-Gym/enigma-plus/pkg/attempt"
	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
	"github.com/Cyber-Gym/enigma-plus/pkg/compose"
	"github.com/Cyber-Gym/enigma-plus/pkg/dockerx"
	"github.com/Cyber-Gym/enigma-plus/pkg/janitor"
)

// httpCategories lists challenge categories whose service is reached over
// HTTP; everything else is assumed to be a raw socket (netcat-style) service.
var httpCategories = map[string]bool{
	"web":  true,
	"misc": true,
}

// Handle is a live challenge stack for one attempt.
type Handle struct {
	ComposePath       string
	NetworkID         string
	NetworkName       string
	PortMap           compose.PortMap
	ServerDescription string

	attempt attempt.Descriptor
	adapter *Adapter
}

// Adapter is the Docker Environment Adapter (C9).
type Adapter struct {
	docker   *dockerx.Client
	rewriter *compose.Rewriter
	janitor  *janitor.Janitor
}

// New creates an Adapter.
func New(docker *dockerx.Client, rewriter *compose.Rewriter, j *janitor.Janitor) *Adapter {
	return &Adapter{docker: docker, rewriter: rewriter, janitor: j}
}

// Start brings up the challenge stack for att, optionally rewriting ports
// and networks for isolation, and attaches sandboxContainerID to its
// network.
func (a *Adapter) Start(ctx context.Context, att attempt.Descriptor, ch challenge.Descriptor, sourceComposePath, sandboxContainerID string, dynamicPorts bool) (*Handle, error) {
	h := &Handle{attempt: att, adapter: a}

	if dynamicPorts {
		netName := att.NetworkName()
		portMap := compose.PortMap{}

		// The challenge descriptor's internal_port must be allocated even
		// when the compose file declares no ports section for it at all.
		if ch.InternalPort > 0 {
			external, err := a.rewriter.Allocator.AllocateOne()
			if err != nil {
				return nil, fmt.Errorf("failed to allocate external port for challenge internal port %d: %w", ch.InternalPort, err)
			}
			portMap[ch.InternalPort] = external
		}

		composePath, err := a.rewriter.Rewrite(sourceComposePath, att.ComposeSuffix(), netName, portMap)
		if err != nil {
			return nil, fmt.Errorf("failed to rewrite compose manifest: %w", err)
		}

		h.ComposePath = composePath
		h.NetworkName = netName
		h.PortMap = portMap
	} else {
		h.ComposePath = sourceComposePath
		h.NetworkName = "ctfnet"
		h.PortMap = compose.PortMap{}
	}

	networkID, err := a.docker.CreateNetwork(ctx, h.NetworkName)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure network %s exists: %w", h.NetworkName, err)
	}
	h.NetworkID = networkID

	if err := a.composeUp(ctx, h.ComposePath); err != nil {
		return nil, fmt.Errorf("failed to bring up challenge stack: %w", err)
	}

	if sandboxContainerID != "" {
		if err := a.docker.ConnectContainer(ctx, h.NetworkID, sandboxContainerID); err != nil {
			return nil, fmt.Errorf("failed to attach solver sandbox to challenge network: %w", err)
		}
	}

	h.ServerDescription = serverDescription(ch)

	return h, nil
}

// composeUp runs `docker compose -f <path> up -d --force-recreate`.
func (a *Adapter) composeUp(ctx context.Context, composePath string) error {
	return runCompose(ctx, composePath, "up", "-d", "--force-recreate")
}

// composeDown runs `docker compose -f <path> down`.
func (a *Adapter) composeDown(ctx context.Context, composePath string) error {
	return runCompose(ctx, composePath, "down")
}

func runCompose(ctx context.Context, composePath string, args ...string) error {
	full := append([]string{"compose", "-f", composePath}, args...)
	cmd := exec.CommandContext(ctx, "docker", full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", strings.Join(full, " "), err, stderr.String())
	}
	return nil
}

// serverDescription formulates the text the solver places in its challenge
// prompt. It always names the service alias and internal port, never
// localhost or the external port, since the solver reaches the challenge
// as a peer container on the shared bridge (Testable Property 3).
func serverDescription(ch challenge.Descriptor) string {
	category := challenge.Category(ch.ChallengeID)
	if ch.Category != "" {
		category = ch.Category
	}

	if httpCategories[category] {
		return fmt.Sprintf("access via curl http://%s:%d", ch.ServerAlias, ch.InternalPort)
	}
	return fmt.Sprintf("access via connect_start %s %d", ch.ServerAlias, ch.InternalPort)
}

// Close tears the challenge stack down: compose down, remove the private
// network via the janitor, and unlink the rewritten manifest and any
// temporary siblings it left behind.
func (h *Handle) Close(ctx context.Context) error {
	if err := h.adapter.composeDown(ctx, h.ComposePath); err != nil {
		log.Warn().Err(err).Str("compose_path", h.ComposePath).Msg("compose down failed during close")
	}

	if h.NetworkID != "" {
		if err := h.adapter.docker.DisconnectAll(ctx, h.NetworkID); err != nil {
			log.Debug().Err(err).Str("network", h.NetworkID).Msg("disconnect during close failed, continuing")
		}
		if err := h.adapter.docker.RemoveNetwork(ctx, h.NetworkID); err != nil {
			log.Warn().Err(err).Str("network", h.NetworkID).Msg("network removal failed during close")
		}
	}

	h.cleanupTempFiles()

	return nil
}

// cleanupTempFiles removes the rewritten manifest and any sibling temp
// files the rewriter left named docker-compose-{suffix}-*.yml.
func (h *Handle) cleanupTempFiles() {
	if h.ComposePath == "" {
		return
	}
	pattern := filepath.Join(filepath.Dir(h.ComposePath), fmt.Sprintf("docker-compose-%s-*.yml", h.attempt.ComposeSuffix()))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		log.Debug().Err(err).Str("pattern", pattern).Msg("failed to list rewritten compose files")
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", path).Msg("failed to remove rewritten compose file")
		}
	}
}
