package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flight_config.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
# test overrides
LOOP_PERIOD_MS = 20
TAKEOFF_THRUST = 400
HORIZONTAL_ACCEL_CONTROL = true
TOPIC_IMU = bench/imu
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LoopPeriodMS != 20 {
		t.Errorf("LoopPeriodMS = %d, want 20", cfg.LoopPeriodMS)
	}
	if cfg.TakeoffThrust != 400 {
		t.Errorf("TakeoffThrust = %v, want 400", cfg.TakeoffThrust)
	}
	if !cfg.HorizontalAccelControl {
		t.Error("HorizontalAccelControl not set")
	}
	if cfg.TopicIMU != "bench/imu" {
		t.Errorf("TopicIMU = %q, want bench/imu", cfg.TopicIMU)
	}
	// Untouched keys keep their defaults.
	if cfg.AbsMaxThrottle != 150 {
		t.Errorf("AbsMaxThrottle = %v, want default 150", cfg.AbsMaxThrottle)
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "NO_SUCH_KEY = 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an unknown key")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []string{
		"LOOP_PERIOD_MS = fast",
		"LOOP_PERIOD_MS = 0",
		"IMU_ACCEL_RANGE = 9",
		"TAKEOFF_RAMP_STEPS = -1",
	}
	for _, line := range cases {
		path := writeConfig(t, line+"\n")
		if _, err := Load(path); err == nil {
			t.Errorf("Load accepted %q", line)
		}
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults fail validation: %v", err)
	}
}
