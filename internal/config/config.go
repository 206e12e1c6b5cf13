package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from "5s" / "2m30s" style
// strings in both yaml and environment variables.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// OverflowPolicy поведение очереди уведомлений при переполнении
type OverflowPolicy string

const (
	OverflowDropOldest OverflowPolicy = "drop-oldest"
	OverflowReject     OverflowPolicy = "reject"
)

// StreamConfig describes one camera stream to monitor.
// Kind selects the frame source: "dir" reads JPEG files from a local
// directory, "minio" streams objects from a bucket/prefix URL.
type StreamConfig struct {
	ID     string `yaml:"id"`
	Kind   string `yaml:"kind"`
	Source string `yaml:"source"`
}

// Config структура конфига
type Config struct {
	Detection struct {
		Endpoint            string             `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
		ConfidenceThreshold float64            `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
		LabelThresholds     map[string]float64 `yaml:"label_thresholds"`
		InferDeadline       Duration           `yaml:"infer_deadline" env:"INFER_DEADLINE"`
		MaxConcurrent       int                `yaml:"max_concurrent" env:"MAX_CONCURRENT_INFERENCES"`
	} `yaml:"detection"`

	Hazard struct {
		IoUThresholdHardhat float64 `yaml:"iou_threshold_hardhat" env:"IOU_THRESHOLD_HARDHAT"`
		IoUThresholdVest    float64 `yaml:"iou_threshold_vest" env:"IOU_THRESHOLD_VEST"`
		ProximityRadius     float64 `yaml:"proximity_radius" env:"PROXIMITY_RADIUS"`
	} `yaml:"hazard"`

	Tracker struct {
		ConfirmFrames   int      `yaml:"confirm_frames" env:"CONFIRM_FRAMES"`
		ResolveFrames   int      `yaml:"resolve_frames" env:"RESOLVE_FRAMES"`
		ReAlertInterval Duration `yaml:"re_alert_interval" env:"RE_ALERT_INTERVAL"`
		AssocIoU        float64  `yaml:"assoc_iou"`
	} `yaml:"tracker"`

	Pipeline struct {
		FrameQueueCapacity int      `yaml:"frame_queue_capacity" env:"FRAME_QUEUE_CAPACITY"`
		SourceTimeout      Duration `yaml:"source_timeout" env:"SOURCE_TIMEOUT"`
		ReconnectBase      Duration `yaml:"reconnect_base"`
		ReconnectCap       Duration `yaml:"reconnect_cap"`
		HeartbeatInterval  Duration `yaml:"heartbeat_interval"`
	} `yaml:"pipeline"`

	Notifier struct {
		QueueCapacity  int            `yaml:"queue_capacity" env:"NOTIFIER_QUEUE_CAPACITY"`
		OverflowPolicy OverflowPolicy `yaml:"overflow_policy" env:"NOTIFIER_OVERFLOW_POLICY"`
		RetryLimit     int            `yaml:"retry_limit" env:"NOTIFIER_RETRY_LIMIT"`
		BackoffBase    Duration       `yaml:"backoff_base" env:"NOTIFIER_BACKOFF_BASE"`
		BackoffCap     Duration       `yaml:"backoff_cap" env:"NOTIFIER_BACKOFF_CAP"`
		WebhookURL     string         `yaml:"webhook_url" env:"WEBHOOK_URL"`
		WebhookToken   string         `yaml:"webhook_token" env:"WEBHOOK_TOKEN"`
	} `yaml:"notifier"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	} `yaml:"minio"`

	Kafka struct {
		Brokers        []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		AlertTopic     string   `yaml:"alert_topic" env:"ALERT_TOPIC"`
		HeartbeatTopic string   `yaml:"heartbeat_topic" env:"HEARTBEAT_TOPIC"`
	} `yaml:"kafka"`

	API struct {
		Addr string `yaml:"addr" env:"API_ADDR"`
	} `yaml:"api"`

	Streams []StreamConfig `yaml:"streams"`
}

// LoadConfig читает YAML, затем переменные окружения с приоритетом
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	if filename == "" {
		filename = "local.yaml"
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a config with the defaults applied; yaml/env override it.
func Default() *Config {
	cfg := &Config{}
	cfg.Detection.ConfidenceThreshold = 0.5
	cfg.Detection.InferDeadline = Duration(2 * time.Second)
	cfg.Detection.MaxConcurrent = 2
	cfg.Hazard.IoUThresholdHardhat = 0.3
	cfg.Hazard.IoUThresholdVest = 0.3
	cfg.Hazard.ProximityRadius = 50
	cfg.Tracker.ConfirmFrames = 3
	cfg.Tracker.ResolveFrames = 5
	cfg.Tracker.ReAlertInterval = Duration(5 * time.Minute)
	cfg.Tracker.AssocIoU = 0.3
	cfg.Pipeline.FrameQueueCapacity = 4
	cfg.Pipeline.SourceTimeout = Duration(5 * time.Second)
	cfg.Pipeline.ReconnectBase = Duration(time.Second)
	cfg.Pipeline.ReconnectCap = Duration(30 * time.Second)
	cfg.Pipeline.HeartbeatInterval = Duration(5 * time.Second)
	cfg.Notifier.QueueCapacity = 64
	cfg.Notifier.OverflowPolicy = OverflowDropOldest
	cfg.Notifier.RetryLimit = 5
	cfg.Notifier.BackoffBase = Duration(time.Second)
	cfg.Notifier.BackoffCap = Duration(30 * time.Second)
	cfg.API.Addr = ":8002"
	return cfg
}

// Validate отклоняет конфиг с недопустимыми порогами.
// Any error here is fatal at startup: the process must not run with a
// config it cannot honor.
func (c *Config) Validate() error {
	if c.Detection.Endpoint == "" {
		return fmt.Errorf("config: detection endpoint is required")
	}
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: confidence_threshold %v out of [0,1]", c.Detection.ConfidenceThreshold)
	}
	for label, t := range c.Detection.LabelThresholds {
		if t < 0 || t > 1 {
			return fmt.Errorf("config: label threshold %q=%v out of [0,1]", label, t)
		}
	}
	if c.Detection.MaxConcurrent < 1 {
		return fmt.Errorf("config: max_concurrent must be >= 1")
	}
	if c.Hazard.IoUThresholdHardhat < 0 || c.Hazard.IoUThresholdHardhat > 1 {
		return fmt.Errorf("config: iou_threshold_hardhat %v out of [0,1]", c.Hazard.IoUThresholdHardhat)
	}
	if c.Hazard.IoUThresholdVest < 0 || c.Hazard.IoUThresholdVest > 1 {
		return fmt.Errorf("config: iou_threshold_vest %v out of [0,1]", c.Hazard.IoUThresholdVest)
	}
	if c.Hazard.ProximityRadius <= 0 {
		return fmt.Errorf("config: proximity_radius must be positive")
	}
	if c.Tracker.ConfirmFrames < 1 {
		return fmt.Errorf("config: confirm_frames must be >= 1")
	}
	if c.Tracker.ResolveFrames < 1 {
		return fmt.Errorf("config: resolve_frames must be >= 1")
	}
	if c.Tracker.AssocIoU <= 0 || c.Tracker.AssocIoU > 1 {
		return fmt.Errorf("config: assoc_iou %v out of (0,1]", c.Tracker.AssocIoU)
	}
	if c.Pipeline.FrameQueueCapacity < 1 {
		return fmt.Errorf("config: frame_queue_capacity must be >= 1")
	}
	if c.Notifier.QueueCapacity < 1 {
		return fmt.Errorf("config: notifier queue_capacity must be >= 1")
	}
	switch c.Notifier.OverflowPolicy {
	case OverflowDropOldest, OverflowReject:
	default:
		return fmt.Errorf("config: unknown overflow_policy %q", c.Notifier.OverflowPolicy)
	}
	if c.Notifier.RetryLimit < 1 {
		return fmt.Errorf("config: notifier retry_limit must be >= 1")
	}
	if len(c.Streams) == 0 {
		return fmt.Errorf("config: at least one stream is required")
	}
	seen := map[string]bool{}
	for _, s := range c.Streams {
		if s.ID == "" {
			return fmt.Errorf("config: stream id is required")
		}
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate stream id %q", s.ID)
		}
		seen[s.ID] = true
		switch s.Kind {
		case "dir", "minio":
		default:
			return fmt.Errorf("config: stream %s: unknown source kind %q", s.ID, s.Kind)
		}
		if s.Source == "" {
			return fmt.Errorf("config: stream %s: source is required", s.ID)
		}
	}
	return nil
}
