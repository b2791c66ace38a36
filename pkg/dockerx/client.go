// Package dockerx wraps the Docker Engine API client with the small set of
// operations the janitor, environment adapter, and launcher need: container
// and network enumeration, state-aware teardown, and exec.
package dockerx

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

// Client wraps the raw Docker API client.
type Client struct {
	cli *client.Client
}

// New creates a Client from the ambient Docker environment
// (DOCKER_HOST, etc.), negotiating the API version with the daemon.
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Raw exposes the underlying client for callers that need an operation this
// wrapper doesn't cover.
func (c *Client) Raw() *client.Client { return c.cli }

// Close releases the underlying client's resources.
func (c *Client) Close() error { return c.cli.Close() }

// ListContainers lists all containers (including stopped ones) optionally
// filtered by name substring.
func (c *Client) ListContainers(ctx context.Context, nameFilter string) ([]types.Container, error) {
	opts := container.ListOptions{All: true}
	if nameFilter != "" {
		f := filters.NewArgs()
		f.Add("name", nameFilter)
		opts.Filters = f
	}
	return c.cli.ContainerList(ctx, opts)
}

// InspectContainer returns full state for one container.
func (c *Client) InspectContainer(ctx context.Context, id string) (types.ContainerJSON, error) {
	return c.cli.ContainerInspect(ctx, id)
}

// ContainerPID returns the container's top-level PID.
func (c *Client) ContainerPID(ctx context.Context, id string) (int, error) {
	inspect, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect container %s: %w", id, err)
	}
	return inspect.State.Pid, nil
}

// StopContainer stops a running container with the given timeout in
// seconds, tolerating "already stopped"/"no such container" as success.
func (c *Client) StopContainer(ctx context.Context, id string, timeoutSeconds int) error {
	err := c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeoutSeconds})
	if err != nil && !IsNotFoundOrNotRunning(err) {
		return fmt.Errorf("failed to stop container %s: %w", id, err)
	}
	return nil
}

// UnpauseContainer unpauses a paused container.
func (c *Client) UnpauseContainer(ctx context.Context, id string) error {
	if err := c.cli.ContainerUnpause(ctx, id); err != nil && !IsNotFoundOrNotRunning(err) {
		return fmt.Errorf("failed to unpause container %s: %w", id, err)
	}
	return nil
}

// RemoveContainer force-removes a container, tolerating "already removed".
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	err := c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !IsNotFoundOrNotRunning(err) {
		return fmt.Errorf("failed to remove container %s: %w", id, err)
	}
	return nil
}

// KillContainer sends a signal to a running container.
func (c *Client) KillContainer(ctx context.Context, id, signal string) error {
	if err := c.cli.ContainerKill(ctx, id, signal); err != nil && !IsNotFoundOrNotRunning(err) {
		return fmt.Errorf("failed to kill container %s: %w", id, err)
	}
	return nil
}

// ListNetworks lists networks optionally filtered by a name substring.
func (c *Client) ListNetworks(ctx context.Context, nameFilter string) ([]network.Summary, error) {
	opts := network.ListOptions{}
	if nameFilter != "" {
		f := filters.NewArgs()
		f.Add("name", nameFilter)
		opts.Filters = f
	}
	return c.cli.NetworkList(ctx, opts)
}

// CreateNetwork creates a bridge network, tolerating "already exists".
func (c *Client) CreateNetwork(ctx context.Context, name string) (string, error) {
	resp, err := c.cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"})
	if err != nil {
		if IsAlreadyExists(err) {
			nets, listErr := c.ListNetworks(ctx, name)
			if listErr == nil {
				for _, n := range nets {
					if n.Name == name {
						return n.ID, nil
					}
				}
			}
		}
		return "", fmt.Errorf("failed to create network %s: %w", name, err)
	}
	return resp.ID, nil
}

// DisconnectAll force-disconnects every container attached to a network.
func (c *Client) DisconnectAll(ctx context.Context, networkID string) error {
	inspect, err := c.cli.NetworkInspect(ctx, networkID, network.InspectOptions{})
	if err != nil {
		if IsNotFoundOrNotRunning(err) {
			return nil
		}
		return fmt.Errorf("failed to inspect network %s: %w", networkID, err)
	}

	for containerID := range inspect.Containers {
		if err := c.cli.NetworkDisconnect(ctx, networkID, containerID, true); err != nil && !IsNotFoundOrNotRunning(err) {
			return fmt.Errorf("failed to disconnect container %s from network %s: %w", containerID, networkID, err)
		}
	}
	return nil
}

// ConnectContainer attaches a container to a network.
func (c *Client) ConnectContainer(ctx context.Context, networkID, containerID string) error {
	if err := c.cli.NetworkConnect(ctx, networkID, containerID, nil); err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("failed to connect container %s to network %s: %w", containerID, networkID, err)
	}
	return nil
}

// RemoveNetwork removes a network, tolerating "already removed".
func (c *Client) RemoveNetwork(ctx context.Context, id string) error {
	if err := c.cli.NetworkRemove(ctx, id); err != nil && !IsNotFoundOrNotRunning(err) {
		return fmt.Errorf("failed to remove network %s: %w", id, err)
	}
	return nil
}

// PruneNetworks removes all unused networks.
func (c *Client) PruneNetworks(ctx context.Context) error {
	_, err := c.cli.NetworksPrune(ctx, filters.NewArgs())
	if err != nil {
		return fmt.Errorf("failed to prune networks: %w", err)
	}
	return nil
}

// PruneVolumes removes all unused volumes.
func (c *Client) PruneVolumes(ctx context.Context) error {
	_, err := c.cli.VolumesPrune(ctx, filters.NewArgs())
	if err != nil {
		return fmt.Errorf("failed to prune volumes: %w", err)
	}
	return nil
}

// ExecCommand runs cmd inside a running container and returns its combined
// output, erroring if the exit code is non-zero.
func (c *Client) ExecCommand(ctx context.Context, containerID string, cmd []string) (string, error) {
	execCfg := container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	}
	execID, err := c.cli.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return "", fmt.Errorf("failed to create exec in container %s: %w", containerID, err)
	}

	attach, err := c.cli.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to attach exec in container %s: %w", containerID, err)
	}
	defer attach.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, attach.Reader); err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read exec output in container %s: %w", containerID, err)
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect exec in container %s: %w", containerID, err)
	}
	if inspect.ExitCode != 0 {
		return buf.String(), fmt.Errorf("exec in container %s exited %d: %s", containerID, inspect.ExitCode, buf.String())
	}

	return buf.String(), nil
}
