// Package compose rewrites a challenge's docker-compose manifest so that an
// arbitrary number of identical challenge stacks can coexist on one host:
// every service and its container_name get a unique suffix, every port
// mapping is resolved through the port allocator, and the shared "ctfnet"
// network reference is replaced by a private bridge network name.
//
// The rewrite is structural, not textual: it decodes the manifest into a
// generic YAML document, mutates the relevant keys, and re-encodes it,
// rather than pattern-matching the source text.
package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Cyber-Gym/enigma-plus/pkg/portalloc"
)

// sharedNetworkName is the network name challenge compose files declare by
// convention; the rewriter always replaces it with the attempt's private
// bridge network.
const sharedNetworkName = "ctfnet"

// PortMap tracks internal_port -> external_port allocations for one attempt,
// shared across every service in the manifest being rewritten.
type PortMap map[int]int

// Rewriter rewrites compose manifests using an Allocator to resolve any
// internal port not already present in the port map.
type Rewriter struct {
	Allocator *portalloc.Allocator
}

// New creates a Rewriter backed by the given port allocator.
func New(allocator *portalloc.Allocator) *Rewriter {
	return &Rewriter{Allocator: allocator}
}

// Rewrite reads sourcePath, applies the C2 transformations using suffix and
// netName, and writes the result next to sourcePath (so relative build
// contexts continue to resolve). portMap is both an input (ports already
// allocated for this attempt) and an output (mutated in place to record any
// newly allocated ports). It returns the path to the new manifest.
func (r *Rewriter) Rewrite(sourcePath, suffix, netName string, portMap PortMap) (string, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to read compose manifest %s: %w", sourcePath, err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse compose manifest %s: %w", sourcePath, err)
	}

	if portMap == nil {
		portMap = PortMap{}
	}

	if err := r.rewriteServices(doc, suffix, netName, portMap); err != nil {
		return "", err
	}
	rewriteTopLevelNetworks(doc, netName)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rewritten compose manifest: %w", err)
	}

	dir := filepath.Dir(sourcePath)
	f, err := os.CreateTemp(dir, fmt.Sprintf("docker-compose-%s-*.yml", suffix))
	if err != nil {
		return "", fmt.Errorf("failed to create rewritten compose file: %w", err)
	}
	finalPath := f.Name()
	defer f.Close()

	if _, err := f.Write(out); err != nil {
		return "", fmt.Errorf("failed to write rewritten compose file %s: %w", finalPath, err)
	}

	return finalPath, nil
}

func (r *Rewriter) rewriteServices(doc map[string]interface{}, suffix, netName string, portMap PortMap) error {
	servicesRaw, ok := doc["services"]
	if !ok {
		return fmt.Errorf("compose manifest has no top-level 'services' section")
	}
	services, ok := servicesRaw.(map[string]interface{})
	if !ok {
		return fmt.Errorf("compose manifest 'services' section is not a mapping")
	}

	renamed := make(map[string]interface{}, len(services))
	for name, svcRaw := range services {
		svc, ok := svcRaw.(map[string]interface{})
		if !ok {
			svc = map[string]interface{}{}
		}

		if cn, ok := svc["container_name"]; ok {
			svc["container_name"] = withSuffix(fmt.Sprintf("%v", cn), suffix)
		}

		if err := r.rewritePorts(svc, portMap); err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}

		rewriteNetworkRefs(svc, netName)

		renamed[withSuffix(name, suffix)] = svc
	}

	// If any service declares no ports at all but the port map is non-empty
	// (the challenge descriptor's internal_port was allocated without any
	// compose-level ports: entry), inject bindings into the first service so
	// the stack remains host-accessible.
	if len(portMap) > 0 {
		injectMissingBindings(renamed, portMap)
	}

	doc["services"] = renamed
	return nil
}

// rewritePorts resolves every declared port mapping of form "EXT:INT" or a
// bare INT through portMap, allocating a fresh external port via the
// allocator when one isn't already recorded.
func (r *Rewriter) rewritePorts(svc map[string]interface{}, portMap PortMap) error {
	portsRaw, ok := svc["ports"]
	if !ok {
		return nil
	}
	ports, ok := portsRaw.([]interface{})
	if !ok {
		return nil
	}

	rewritten := make([]interface{}, 0, len(ports))
	for _, p := range ports {
		spec := fmt.Sprintf("%v", p)
		internal, err := internalPortOf(spec)
		if err != nil {
			return err
		}

		external, ok := portMap[internal]
		if !ok {
			ext, err := r.Allocator.AllocateOne()
			if err != nil {
				return fmt.Errorf("allocating external port for internal port %d: %w", internal, err)
			}
			external = ext
			portMap[internal] = external
		}

		rewritten = append(rewritten, fmt.Sprintf("%d:%d", external, internal))
	}

	svc["ports"] = rewritten
	return nil
}

// withSuffix appends "-suffix" to name, unless name is already suffixed
// that way: Rewrite must stay idempotent on suffix, so re-rewriting an
// already-rewritten manifest with the same suffix must not double it up.
func withSuffix(name, suffix string) string {
	if suffix == "" || strings.HasSuffix(name, "-"+suffix) {
		return name
	}
	return name + "-" + suffix
}

// internalPortOf parses a compose port spec ("8080:80", bare "80", or
// "127.0.0.1:8080:80") and returns the container-internal port.
func internalPortOf(spec string) (int, error) {
	parts := strings.Split(spec, ":")
	last := parts[len(parts)-1]
	last = strings.TrimSuffix(last, "/tcp")
	last = strings.TrimSuffix(last, "/udp")

	port, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("unrecognized port spec %q: %w", spec, err)
	}
	return port, nil
}

// injectMissingBindings adds an explicit ports: list to the first service
// (by iteration order) that declares none, covering every entry currently
// in portMap.
func injectMissingBindings(services map[string]interface{}, portMap PortMap) {
	for _, svcRaw := range services {
		svc, ok := svcRaw.(map[string]interface{})
		if !ok {
			continue
		}
		if _, hasPorts := svc["ports"]; hasPorts {
			continue
		}

		bindings := make([]interface{}, 0, len(portMap))
		for internal, external := range portMap {
			bindings = append(bindings, fmt.Sprintf("%d:%d", external, internal))
		}
		svc["ports"] = bindings
		return
	}
}

// rewriteNetworkRefs rewrites a service's "networks" entry (list form or
// dict-with-aliases form) so any reference to the shared network name
// instead points at netName.
func rewriteNetworkRefs(svc map[string]interface{}, netName string) {
	netsRaw, ok := svc["networks"]
	if !ok {
		return
	}

	switch nets := netsRaw.(type) {
	case []interface{}:
		for i, n := range nets {
			if fmt.Sprintf("%v", n) == sharedNetworkName {
				nets[i] = netName
			}
		}
	case map[string]interface{}:
		renamed := make(map[string]interface{}, len(nets))
		for name, cfg := range nets {
			if name == sharedNetworkName {
				name = netName
			}
			renamed[name] = cfg
		}
		svc["networks"] = renamed
	}
}

// rewriteTopLevelNetworks drops the shared network declaration and declares
// netName as an internal bridge network instead.
func rewriteTopLevelNetworks(doc map[string]interface{}, netName string) {
	networks, ok := doc["networks"].(map[string]interface{})
	if !ok {
		networks = map[string]interface{}{}
	}
	delete(networks, sharedNetworkName)
	networks[netName] = map[string]interface{}{
		"driver": "bridge",
		"name":   netName,
	}
	doc["networks"] = networks
}
