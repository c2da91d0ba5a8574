package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration, loaded from the path in
// HOMEGRAPH_CONFIG (default ./homegraph.yaml). Zero values fall back to the
// package defaults above.
type File struct {
	Port        string `yaml:"port"`
	DataDir     string `yaml:"data_dir"`
	MaxMemoryMB int64  `yaml:"max_memory_mb"`

	Widget WidgetConfig `yaml:"widget"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
}

// WidgetConfig describes what the dashboard widget tracks and how densely
// its history is sampled.
type WidgetConfig struct {
	// Entities to track. Must be non-empty: a widget with no rows is a
	// configuration mistake, not an empty dashboard.
	Entities []string `yaml:"entities"`

	// WindowHours is the history window ("last N hours")
	WindowHours float64 `yaml:"window_hours"`

	// PointsPerHour is the chart density. 0 disables downsampling and
	// serves raw events.
	PointsPerHour float64 `yaml:"points_per_hour"`
}

// MQTTConfig enables the MQTT state source when BrokerURL is set.
type MQTTConfig struct {
	BrokerURL   string `yaml:"broker_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

var ErrNoEntities = errors.New("widget config must list at least one entity")

// Load reads and validates the configuration file. The widget section is
// validated up front: a config without tracked entities is rejected rather
// than served as an empty dashboard.
func Load(path string) (File, error) {
	cfg := File{
		Port:        DefaultPort,
		DataDir:     DefaultDataDir,
		MaxMemoryMB: DefaultMaxMemoryMB,
		Widget: WidgetConfig{
			WindowHours:   DefaultWindowHours,
			PointsPerHour: DefaultPointsPerHour,
		},
		MQTT: MQTTConfig{
			TopicPrefix: MQTTDefaultPrefix,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.MaxMemoryMB <= 0 {
		cfg.MaxMemoryMB = DefaultMaxMemoryMB
	}
	if cfg.Widget.WindowHours <= 0 {
		cfg.Widget.WindowHours = DefaultWindowHours
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = MQTTDefaultPrefix
	}

	return cfg, cfg.Widget.Validate()
}

// Validate rejects widget configs that cannot be served.
func (w WidgetConfig) Validate() error {
	if len(w.Entities) == 0 {
		return ErrNoEntities
	}
	for _, id := range w.Entities {
		if id == "" {
			return fmt.Errorf("widget config contains an empty entity id")
		}
	}
	if w.WindowHours <= 0 || w.WindowHours > MaxWindowHours {
		return fmt.Errorf("window_hours must be in (0, %d], got %v", MaxWindowHours, w.WindowHours)
	}
	if w.PointsPerHour > MaxPointsPerHour {
		return fmt.Errorf("points_per_hour must be at most %d, got %v", MaxPointsPerHour, w.PointsPerHour)
	}
	return nil
}
