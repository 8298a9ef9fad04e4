package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"

	"ward/session"
)

func TestEngineUsesDefaultsWhenUnset(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	got := Engine()
	want := session.DefaultConfig()
	if got.BatchThreshold != want.BatchThreshold {
		t.Errorf("threshold = %d, want default %d", got.BatchThreshold, want.BatchThreshold)
	}
	if got.BatchInterval != want.BatchInterval {
		t.Errorf("interval = %v, want default %v", got.BatchInterval, want.BatchInterval)
	}
}

func TestEngineHonorsOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set(KeyBatchThreshold, 3)
	viper.Set(KeyBatchInterval, "30s")
	viper.Set(KeySilenceGap, "1500ms")

	got := Engine()
	if got.BatchThreshold != 3 {
		t.Errorf("threshold = %d, want 3", got.BatchThreshold)
	}
	if got.BatchInterval != 30*time.Second {
		t.Errorf("interval = %v, want 30s", got.BatchInterval)
	}
	if got.SilenceGap != 1500*time.Millisecond {
		t.Errorf("silence gap = %v, want 1.5s", got.SilenceGap)
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	if err := Validate(); err == nil {
		t.Fatal("validation passed with nothing configured")
	}

	viper.Set(KeyDatabaseURL, "postgres://localhost/ward")
	if err := Validate(); err == nil {
		t.Fatal("validation passed without an STT key")
	}

	viper.Set(KeyDeepgramAPIKey, "dg-key")
	if err := Validate(); err != nil {
		t.Fatalf("validation failed with full config: %v", err)
	}
}
