package config

import (
	"fmt"

	"github.com/spf13/viper"

	"ward/session"
)

// Viper keys for the engine tunables. The batch and silence thresholds are
// deliberately configuration rather than constants, pending calibration
// against real encounters.
const (
	KeyDatabaseURL    = "database_url"
	KeyDeepgramAPIKey = "deepgram_api_key"
	KeyOpenAIAPIKey   = "openai_api_key"
	KeyPort           = "port"
	KeyBatchThreshold = "batch_threshold"
	KeyBatchInterval  = "batch_interval"
	KeySilenceGap     = "silence_gap"
)

// Engine builds the session engine configuration from viper, falling back to
// the engine defaults for anything unset.
func Engine() session.Config {
	cfg := session.DefaultConfig()
	if v := viper.GetInt(KeyBatchThreshold); v > 0 {
		cfg.BatchThreshold = v
	}
	if v := viper.GetDuration(KeyBatchInterval); v > 0 {
		cfg.BatchInterval = v
	}
	if v := viper.GetDuration(KeySilenceGap); v > 0 {
		cfg.SilenceGap = v
	}
	return cfg
}

// Validate checks the settings serve cannot run without.
func Validate() error {
	if viper.GetString(KeyDatabaseURL) == "" {
		return fmt.Errorf("%s is required", KeyDatabaseURL)
	}
	if viper.GetString(KeyDeepgramAPIKey) == "" {
		return fmt.Errorf("%s is required", KeyDeepgramAPIKey)
	}
	return nil
}
