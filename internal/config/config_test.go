package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
detection:
  endpoint: http://localhost:8000
  confidence_threshold: 0.6
hazard:
  proximity_radius: 80
tracker:
  confirm_frames: 4
  re_alert_interval: 90s
notifier:
  webhook_url: http://localhost:9999/notify
streams:
  - id: cam-1
    kind: dir
    source: /data/frames/cam-1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadConfigAppliesDefaultsAndOverrides: yaml overrides defaults, the
// rest keeps them.
func TestLoadConfigAppliesDefaultsAndOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Detection.ConfidenceThreshold != 0.6 {
		t.Fatalf("yaml threshold not applied: %v", cfg.Detection.ConfidenceThreshold)
	}
	if cfg.Tracker.ConfirmFrames != 4 {
		t.Fatalf("yaml confirm_frames not applied: %v", cfg.Tracker.ConfirmFrames)
	}
	if cfg.Hazard.ProximityRadius != 80 {
		t.Fatalf("yaml proximity_radius not applied: %v", cfg.Hazard.ProximityRadius)
	}
	// untouched defaults
	if cfg.Tracker.ResolveFrames != 5 {
		t.Fatalf("default resolve_frames lost: %v", cfg.Tracker.ResolveFrames)
	}
	if cfg.Notifier.OverflowPolicy != OverflowDropOldest {
		t.Fatalf("default overflow policy lost: %v", cfg.Notifier.OverflowPolicy)
	}
	if cfg.Pipeline.ReconnectCap.Std() != 30*time.Second {
		t.Fatalf("default reconnect cap lost: %v", cfg.Pipeline.ReconnectCap)
	}
	if cfg.Tracker.ReAlertInterval.Std() != 90*time.Second {
		t.Fatalf("yaml re_alert_interval not applied: %v", cfg.Tracker.ReAlertInterval)
	}
}

// TestEnvOverridesYAML: environment variables take priority over the file.
func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("DETECTION_ENDPOINT", "http://gpu-box:8000")
	t.Setenv("CONFIRM_FRAMES", "7")
	t.Setenv("INFER_DEADLINE", "3s")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Detection.Endpoint != "http://gpu-box:8000" {
		t.Fatalf("env endpoint not applied: %v", cfg.Detection.Endpoint)
	}
	if cfg.Tracker.ConfirmFrames != 7 {
		t.Fatalf("env confirm_frames not applied: %v", cfg.Tracker.ConfirmFrames)
	}
	if cfg.Detection.InferDeadline.Std() != 3*time.Second {
		t.Fatalf("env infer_deadline not applied: %v", cfg.Detection.InferDeadline)
	}
}

// TestValidationRejectsBadConfigs: startup must fail on configs the
// pipeline cannot honor.
func TestValidationRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing endpoint", func(c *Config) { c.Detection.Endpoint = "" }},
		{"threshold above one", func(c *Config) { c.Detection.ConfidenceThreshold = 1.5 }},
		{"negative label threshold", func(c *Config) {
			c.Detection.LabelThresholds = map[string]float64{"Person": -0.1}
		}},
		{"zero confirm frames", func(c *Config) { c.Tracker.ConfirmFrames = 0 }},
		{"zero resolve frames", func(c *Config) { c.Tracker.ResolveFrames = 0 }},
		{"bad assoc iou", func(c *Config) { c.Tracker.AssocIoU = 0 }},
		{"zero proximity radius", func(c *Config) { c.Hazard.ProximityRadius = 0 }},
		{"zero queue capacity", func(c *Config) { c.Pipeline.FrameQueueCapacity = 0 }},
		{"unknown overflow policy", func(c *Config) { c.Notifier.OverflowPolicy = "newest-wins" }},
		{"zero retry limit", func(c *Config) { c.Notifier.RetryLimit = 0 }},
		{"no streams", func(c *Config) { c.Streams = nil }},
		{"duplicate stream ids", func(c *Config) {
			c.Streams = []StreamConfig{
				{ID: "cam-1", Kind: "dir", Source: "/a"},
				{ID: "cam-1", Kind: "dir", Source: "/b"},
			}
		}},
		{"unknown source kind", func(c *Config) {
			c.Streams = []StreamConfig{{ID: "cam-1", Kind: "rtsp", Source: "rtsp://x"}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Detection.Endpoint = "http://localhost:8000"
			cfg.Streams = []StreamConfig{{ID: "cam-1", Kind: "dir", Source: "/data"}}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// TestMissingFileFails: a missing config file is a startup error.
func TestMissingFileFails(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
