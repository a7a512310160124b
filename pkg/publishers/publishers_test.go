package publishers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write publishers file: %v", err)
	}
	return path
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writeConfigFile(t, "publishers.yaml", `
publishers:
  - id: audit-log
    type: log
  - id: webhook
    type: http
    enabled: false
    http:
      url: https://hooks.example/archive
      headers:
        Authorization: "Bearer token"
  - id: queue
    type: sqs
    sqs:
      uri: https://sqs.us-east-1.amazonaws.com/123/archive
      region: us-east-1
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	if got := len(reg.All()); got != 3 {
		t.Fatalf("loaded %d publishers, want 3", got)
	}

	// The disabled webhook must be filtered out of the enabled view.
	enabled := reg.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("enabled = %d publishers, want 2", len(enabled))
	}
	for _, cfg := range enabled {
		if cfg.ID == "webhook" {
			t.Fatalf("disabled publisher leaked into enabled set")
		}
	}

	webhook, ok := reg.ByID("webhook")
	if !ok {
		t.Fatalf("ByID(webhook) not found")
	}
	if webhook.HTTP.Method != "POST" {
		t.Fatalf("http method default = %q", webhook.HTTP.Method)
	}
	if webhook.HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("http timeout default = %d", webhook.HTTP.TimeoutSeconds)
	}
}

func TestLoadRegistryRejectsInvalidConfigs(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{name: "no entries", contents: "publishers: []"},
		{name: "missing id", contents: "publishers:\n  - type: log"},
		{name: "missing type", contents: "publishers:\n  - id: sink"},
		{name: "http without url", contents: "publishers:\n  - id: sink\n    type: http\n    http:\n      method: PUT"},
		{name: "sqs without region", contents: "publishers:\n  - id: sink\n    type: sqs\n    sqs:\n      uri: https://sqs.example/q"},
		{name: "sns without topic", contents: "publishers:\n  - id: sink\n    type: sns\n    sns:\n      region: us-east-1"},
		{name: "pubsub without topic", contents: "publishers:\n  - id: sink\n    type: pubsub\n    pubsub:\n      project_id: proj"},
		{name: "duplicate ids", contents: "publishers:\n  - id: sink\n    type: log\n  - id: sink\n    type: log"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfigFile(t, "publishers.yaml", tc.contents)
			if _, err := LoadRegistry(path); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestRegistryRejectsUnknownType(t *testing.T) {
	reg := DefaultRegistry()

	_, err := reg.PublisherFor(context.Background(), PublisherConfig{ID: "sink", Type: "carrier-pigeon"}, nil)
	if err == nil {
		t.Fatalf("expected an error for an unregistered type")
	}
}
