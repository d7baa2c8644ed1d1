package configdb

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/maskwatch/maskwatch/server/monitor"
)

const configMainKey = "main"

// Root system config
type ConfigJSON struct {
	Stabilizer monitor.StabilizerSettings `json:"stabilizer"`
}

// GetConfig returns the stored system config, or defaults if none has
// been saved yet.
func (c *ConfigDB) GetConfig() (*ConfigJSON, error) {
	raw := SystemConfig{}
	err := c.DB.First(&raw, "key = ?", configMainKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ConfigJSON{
			Stabilizer: monitor.DefaultStabilizerSettings(),
		}, nil
	} else if err != nil {
		return nil, err
	}
	cfg := &ConfigJSON{}
	if err := json.Unmarshal([]byte(raw.Value), cfg); err != nil {
		return nil, fmt.Errorf("Failed to parse system config: %w", err)
	}
	return cfg, nil
}

func (c *ConfigDB) SetConfig(cfg *ConfigJSON) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	j, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.DB.Exec("INSERT INTO system_config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		configMainKey, string(j)).Error
}

// Returns an error if there is anything invalid about the config, or nil if everything is OK
func ValidateConfig(c *ConfigJSON) error {
	s := &c.Stabilizer
	if s.LockStreak < 1 {
		return fmt.Errorf("Stabilizer lockStreak must be at least 1")
	}
	if s.FastExitStreak < 1 {
		return fmt.Errorf("Stabilizer fastExitStreak must be at least 1")
	}
	if s.RelockStreak < 1 {
		return fmt.Errorf("Stabilizer relockStreak must be at least 1")
	}
	if s.LockFramesWithMask < 1 || s.LockFramesOther < 1 {
		return fmt.Errorf("Stabilizer lock durations must be at least 1 frame")
	}
	if s.LockExtendFrames < 1 {
		return fmt.Errorf("Stabilizer lockExtendFrames must be at least 1")
	}
	if s.HistorySize < 1 {
		return fmt.Errorf("Stabilizer historySize must be at least 1")
	}
	if s.DiagnosticInterval < 0 {
		return fmt.Errorf("Stabilizer diagnosticInterval may not be negative")
	}
	return nil
}
