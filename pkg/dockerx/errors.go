package dockerx

import (
	"strings"

	"github.com/docker/docker/errdefs"
)

// IsNotFoundOrNotRunning reports whether err represents a condition that
// should be treated as a no-op success by idempotent cleanup: the
// container/network is already gone, or already in the requested state.
func IsNotFoundOrNotRunning(err error) bool {
	if err == nil {
		return false
	}
	if errdefs.IsNotFound(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such container") ||
		strings.Contains(msg, "no such network") ||
		strings.Contains(msg, "is not running") ||
		strings.Contains(msg, "already stopped") ||
		strings.Contains(msg, "is not paused")
}

// IsAlreadyExists reports whether err represents a resource that already
// exists under the requested name.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if errdefs.IsConflict(err) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// DockerErrorSignatures is the set of substrings that indicate a Docker
// daemon-side transient failure (network-pool exhaustion, endpoint-create
// failure, 5xx) rather than a solver-caused failure.
var DockerErrorSignatures = []string{
	"failed to create endpoint",
	"exchange full",
	"Internal Server Error",
	"docker.errors",
	"500 Server Error",
}

// HasDockerErrorSignature reports whether log text contains any known
// Docker transient-error signature.
func HasDockerErrorSignature(logText string) bool {
	for _, sig := range DockerErrorSignatures {
		if strings.Contains(logText, sig) {
			return true
		}
	}
	return false
}
