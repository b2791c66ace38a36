package compose

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/Cyber-Gym/enigma-plus/pkg/portalloc"
)

func writeFixture(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "docker-compose.yml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestRewriteRenamesServicesAndPorts(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, `
services:
  web:
    image: challenge/web:latest
    container_name: web
    ports:
      - "80:80"
    networks:
      - ctfnet
networks:
  ctfnet:
    external: true
`)

	r := New(portalloc.New(20900, 21000))
	portMap := PortMap{}

	outPath, err := r.Rewrite(src, "abc123", "ctfnet-abc123", portMap)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	defer os.Remove(outPath)

	if !strings.Contains(filepath.Base(outPath), "docker-compose-abc123-") {
		t.Fatalf("expected rewritten filename to carry the suffix, got %s", outPath)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read rewritten file: %v", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse rewritten file: %v", err)
	}

	services := doc["services"].(map[string]interface{})
	svc, ok := services["web-abc123"]
	if !ok {
		t.Fatalf("expected renamed service 'web-abc123', got keys %v", keysOf(services))
	}

	svcMap := svc.(map[string]interface{})
	if svcMap["container_name"] != "web-abc123" {
		t.Fatalf("expected container_name to carry the suffix, got %v", svcMap["container_name"])
	}

	ports := svcMap["ports"].([]interface{})
	if len(ports) != 1 {
		t.Fatalf("expected one port binding, got %v", ports)
	}
	spec := ports[0].(string)
	if !strings.HasSuffix(spec, ":80") {
		t.Fatalf("expected internal port 80 preserved, got %s", spec)
	}
	if spec == "80:80" {
		t.Fatalf("expected a freshly allocated external port, not a passthrough: %s", spec)
	}

	if allocated, ok := portMap[80]; !ok || allocated == 0 {
		t.Fatalf("expected portMap to record the allocation for internal port 80")
	}

	nets := doc["networks"].(map[string]interface{})
	if _, ok := nets["ctfnet"]; ok {
		t.Fatal("expected the shared ctfnet entry to be dropped")
	}
	netCfg, ok := nets["ctfnet-abc123"]
	if !ok {
		t.Fatalf("expected the private network to be declared, got keys %v", keysOf(nets))
	}
	if netCfg.(map[string]interface{})["driver"] != "bridge" {
		t.Fatal("expected the private network to use the bridge driver")
	}
}

func TestRewriteReusesExistingPortMapEntry(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, `
services:
  svc:
    image: x
    ports:
      - "9999:9999"
networks:
  ctfnet: {}
`)

	r := New(portalloc.New(21100, 21200))
	portMap := PortMap{9999: 15000}

	outPath, err := r.Rewrite(src, "s1", "ctfnet-s1", portMap)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	defer os.Remove(outPath)

	data, _ := os.ReadFile(outPath)
	var doc map[string]interface{}
	yaml.Unmarshal(data, &doc)

	services := doc["services"].(map[string]interface{})
	svc := services["svc-s1"].(map[string]interface{})
	ports := svc["ports"].([]interface{})
	if ports[0].(string) != "15000:9999" {
		t.Fatalf("expected pre-allocated external port to be reused, got %v", ports[0])
	}
}

func TestRewriteInjectsBindingsWhenNoPortsDeclared(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, `
services:
  svc:
    image: x
networks:
  ctfnet: {}
`)

	r := New(portalloc.New(21300, 21400))
	portMap := PortMap{9999: 15050}

	outPath, err := r.Rewrite(src, "s2", "ctfnet-s2", portMap)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	defer os.Remove(outPath)

	data, _ := os.ReadFile(outPath)
	var doc map[string]interface{}
	yaml.Unmarshal(data, &doc)

	services := doc["services"].(map[string]interface{})
	svc := services["svc-s2"].(map[string]interface{})
	ports, ok := svc["ports"].([]interface{})
	if !ok || len(ports) != 1 {
		t.Fatalf("expected an injected port binding, got %v", svc["ports"])
	}
	if ports[0].(string) != "15050:9999" {
		t.Fatalf("expected injected binding 15050:9999, got %v", ports[0])
	}
}

func keysOf(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
