package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "homegraph.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
data_dir: /tmp/homegraph-test
max_memory_mb: 64
widget:
  entities:
    - sensor.living_room_temp
    - switch.porch_light
  window_hours: 12
  points_per_hour: 6
mqtt:
  broker_url: tcp://localhost:1883
  topic_prefix: hg
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if len(cfg.Widget.Entities) != 2 {
		t.Errorf("Expected 2 entities, got %v", cfg.Widget.Entities)
	}
	if cfg.Widget.WindowHours != 12 || cfg.Widget.PointsPerHour != 6 {
		t.Errorf("Widget overrides not applied: %+v", cfg.Widget)
	}
	if cfg.MQTT.BrokerURL != "tcp://localhost:1883" || cfg.MQTT.TopicPrefix != "hg" {
		t.Errorf("MQTT config not applied: %+v", cfg.MQTT)
	}
}

func TestLoad_DefaultsFill(t *testing.T) {
	path := writeConfig(t, `
widget:
  entities: [sensor.a]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Expected default port, got %s", cfg.Port)
	}
	if cfg.Widget.WindowHours != DefaultWindowHours {
		t.Errorf("Expected default window, got %v", cfg.Widget.WindowHours)
	}
	if cfg.Widget.PointsPerHour != DefaultPointsPerHour {
		t.Errorf("Expected default density, got %v", cfg.Widget.PointsPerHour)
	}
	if cfg.MQTT.TopicPrefix != MQTTDefaultPrefix {
		t.Errorf("Expected default topic prefix, got %s", cfg.MQTT.TopicPrefix)
	}
}

func TestLoad_RejectsEmptyEntityList(t *testing.T) {
	path := writeConfig(t, `
widget:
  window_hours: 24
`)

	_, err := Load(path)
	if !errors.Is(err, ErrNoEntities) {
		t.Errorf("Expected ErrNoEntities, got %v", err)
	}
}

func TestWidgetConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		widget WidgetConfig
		ok     bool
	}{
		{"valid", WidgetConfig{Entities: []string{"sensor.a"}, WindowHours: 24, PointsPerHour: 4}, true},
		{"raw mode", WidgetConfig{Entities: []string{"sensor.a"}, WindowHours: 24, PointsPerHour: 0}, true},
		{"no entities", WidgetConfig{WindowHours: 24}, false},
		{"empty entity id", WidgetConfig{Entities: []string{""}, WindowHours: 24}, false},
		{"zero window", WidgetConfig{Entities: []string{"sensor.a"}, WindowHours: 0}, false},
		{"huge window", WidgetConfig{Entities: []string{"sensor.a"}, WindowHours: MaxWindowHours + 1}, false},
		{"absurd density", WidgetConfig{Entities: []string{"sensor.a"}, WindowHours: 24, PointsPerHour: MaxPointsPerHour + 1}, false},
	}

	for _, test := range tests {
		err := test.widget.Validate()
		if test.ok && err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
		}
		if !test.ok && err == nil {
			t.Errorf("%s: expected validation error", test.name)
		}
	}
}

func TestLoad_DefaultPointsPerHourSurvivesExplicitZero(t *testing.T) {
	// points_per_hour: 0 means raw mode and must not be replaced by the
	// default density.
	path := writeConfig(t, `
widget:
  entities: [sensor.a]
  points_per_hour: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Widget.PointsPerHour != 0 {
		t.Errorf("Explicit 0 should stay 0 (raw mode), got %v", cfg.Widget.PointsPerHour)
	}
}
