package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir         string
	DBPath          string
	LogPath         string
	TargetsFile     string
	ScreenshotDir   string
	SettleDelay     time.Duration
	WaitPoll        time.Duration
	PointerDuration time.Duration
	LogLevel        string
}

// fileConfig mirrors config.yaml. Zero values leave the defaults alone.
type fileConfig struct {
	TargetsFile     string        `yaml:"targets_file"`
	ScreenshotDir   string        `yaml:"screenshot_dir"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	WaitPoll        time.Duration `yaml:"wait_poll"`
	PointerDuration time.Duration `yaml:"pointer_duration"`
	LogLevel        string        `yaml:"log_level"`
}

func New() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	return Load(getEnv("PYDIRECTOR_DATA_DIR", filepath.Join(homeDir, ".pydirector")))
}

// Load builds a Config rooted at dataDir, applying dataDir/config.yaml
// and then environment overrides.
func Load(dataDir string) (*Config, error) {
	c := &Config{
		DataDir:         dataDir,
		DBPath:          filepath.Join(dataDir, "actions.db"),
		LogPath:         filepath.Join(dataDir, "pydirector.log"),
		TargetsFile:     filepath.Join(dataDir, "target.csv"),
		ScreenshotDir:   filepath.Join(dataDir, "screenshots"),
		SettleDelay:     500 * time.Millisecond,
		WaitPoll:        100 * time.Millisecond,
		PointerDuration: 500 * time.Millisecond,
		LogLevel:        "info",
	}

	if err := c.applyFile(filepath.Join(dataDir, "config.yaml")); err != nil {
		return nil, err
	}

	c.TargetsFile = getEnv("PYDIRECTOR_TARGETS", c.TargetsFile)
	c.LogLevel = getEnv("PYDIRECTOR_LOG_LEVEL", c.LogLevel)

	return c, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if fc.TargetsFile != "" {
		c.TargetsFile = c.resolve(fc.TargetsFile)
	}
	if fc.ScreenshotDir != "" {
		c.ScreenshotDir = c.resolve(fc.ScreenshotDir)
	}
	if fc.SettleDelay > 0 {
		c.SettleDelay = fc.SettleDelay
	}
	if fc.WaitPoll > 0 {
		c.WaitPoll = fc.WaitPoll
	}
	if fc.PointerDuration > 0 {
		c.PointerDuration = fc.PointerDuration
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	return nil
}

// resolve makes relative paths in config.yaml relative to the data dir.
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(c.ScreenshotDir, 0755); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
