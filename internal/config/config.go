package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mantonx/mediatags/internal/logger"
	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	// Storage locations for the tag index, profiles and catalog
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Scan execution
	Scanner ScannerConfig `yaml:"scanner" json:"scanner"`

	// Deep classifier model
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`

	// External vision tagger plugin
	Vision VisionConfig `yaml:"vision" json:"vision"`

	// Asset catalog database
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	Server ServerConfig `yaml:"server" json:"server"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// StorageConfig holds the document locations. Empty paths are derived from DataDir.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir" json:"data_dir" env:"MEDIATAGS_DATA_DIR"`
	TagIndexPath string `yaml:"tag_index_path" json:"tag_index_path" env:"MEDIATAGS_TAG_INDEX_PATH"`
	ProfilesPath string `yaml:"profiles_path" json:"profiles_path" env:"MEDIATAGS_PROFILES_PATH"`
}

// ScannerConfig holds profile run configuration
type ScannerConfig struct {
	WorkerCount     int           `yaml:"worker_count" json:"worker_count" env:"MEDIATAGS_WORKER_COUNT"`
	FFProbeBinary   string        `yaml:"ffprobe_binary" json:"ffprobe_binary" env:"MEDIATAGS_FFPROBE"`
	FFProbeTimeout  time.Duration `yaml:"ffprobe_timeout" json:"ffprobe_timeout" env:"MEDIATAGS_FFPROBE_TIMEOUT"`
	LoadGuard       bool          `yaml:"load_guard" json:"load_guard" env:"MEDIATAGS_LOAD_GUARD"`
	CPUThreshold    float64       `yaml:"cpu_threshold" json:"cpu_threshold" env:"MEDIATAGS_CPU_THRESHOLD"`
	MemoryThreshold float64       `yaml:"memory_threshold" json:"memory_threshold" env:"MEDIATAGS_MEMORY_THRESHOLD"`
	MaxThrottleWait time.Duration `yaml:"max_throttle_wait" json:"max_throttle_wait" env:"MEDIATAGS_MAX_THROTTLE_WAIT"`
	WatchProfiles   bool          `yaml:"watch_profiles" json:"watch_profiles" env:"MEDIATAGS_WATCH_PROFILES"`
}

// ClassifierConfig holds the deep classifier settings
type ClassifierConfig struct {
	// ModelPath points at a model description; empty selects the embedded default model
	ModelPath      string `yaml:"model_path" json:"model_path" env:"MEDIATAGS_MODEL_PATH"`
	CompanionLayer string `yaml:"companion_layer" json:"companion_layer" env:"MEDIATAGS_COMPANION_LAYER"`
}

// VisionConfig holds the external vision plugin settings
type VisionConfig struct {
	PluginPath string        `yaml:"plugin_path" json:"plugin_path" env:"MEDIATAGS_VISION_PLUGIN"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" env:"MEDIATAGS_VISION_TIMEOUT"`
}

// CatalogConfig holds the asset catalog database settings
type CatalogConfig struct {
	Type string `yaml:"type" json:"type" env:"MEDIATAGS_CATALOG_TYPE"`
	Path string `yaml:"path" json:"path" env:"MEDIATAGS_CATALOG_PATH"`
	DSN  string `yaml:"dsn" json:"-" env:"MEDIATAGS_CATALOG_DSN"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr" env:"MEDIATAGS_ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"MEDIATAGS_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"MEDIATAGS_WRITE_TIMEOUT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"MEDIATAGS_LOG_LEVEL"`
	Format string `yaml:"format" json:"format" env:"MEDIATAGS_LOG_FORMAT"`
}

// ConfigWatcher is called when configuration changes
type ConfigWatcher func(oldConfig, newConfig *Config)

// ConfigManager manages application configuration
type ConfigManager struct {
	config     *Config
	configPath string
	watchers   []ConfigWatcher
	mu         sync.RWMutex
}

var (
	globalConfigManager *ConfigManager
	configOnce          sync.Once
)

// GetConfigManager returns the global configuration manager instance
func GetConfigManager() *ConfigManager {
	configOnce.Do(func() {
		globalConfigManager = NewConfigManager()
	})
	return globalConfigManager
}

// NewConfigManager creates a new configuration manager holding the defaults
func NewConfigManager() *ConfigManager {
	cfg := DefaultConfig()
	applyDerivedConfig(cfg)
	return &ConfigManager{
		config:   cfg,
		watchers: make([]ConfigWatcher, 0),
	}
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: "./mediatags-data",
		},
		Scanner: ScannerConfig{
			WorkerCount:     1,
			FFProbeBinary:   "ffprobe",
			FFProbeTimeout:  2 * time.Second,
			LoadGuard:       false,
			CPUThreshold:    85.0,
			MemoryThreshold: 90.0,
			MaxThrottleWait: 30 * time.Second,
			WatchProfiles:   true,
		},
		Classifier: ClassifierConfig{
			CompanionLayer: "ai_quick",
		},
		Vision: VisionConfig{
			Timeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			Type: "sqlite",
		},
		Server: ServerConfig{
			Addr:         ":8087",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func (cm *ConfigManager) LoadConfig(configPath string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	oldConfig := *cm.config
	cm.configPath = configPath

	newConfig := DefaultConfig()

	if configPath != "" && fileExists(configPath) {
		if err := loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
		logger.Info("configuration loaded from file", "path", configPath)
	}

	if err := loadStructFromEnv(reflect.ValueOf(newConfig).Elem()); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := validateConfig(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	applyDerivedConfig(newConfig)
	cm.config = newConfig

	for _, watcher := range cm.watchers {
		go watcher(&oldConfig, newConfig)
	}
	return nil
}

// GetConfig returns a copy of the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	configCopy := *cm.config
	return &configCopy
}

// AddWatcher adds a configuration change watcher
func (cm *ConfigManager) AddWatcher(watcher ConfigWatcher) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.watchers = append(cm.watchers, watcher)
}

// SaveConfig saves the current configuration to the path it was loaded from
func (cm *ConfigManager) SaveConfig() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.configPath == "" {
		return fmt.Errorf("no config path set")
	}
	return saveToFile(cm.configPath, cm.config)
}

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

func saveToFile(path string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// loadStructFromEnv overrides fields whose env variable is set. Unset variables
// leave file and default values alone.
func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := os.LookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.Catalog.Type != "sqlite" && config.Catalog.Type != "postgres" {
		return fmt.Errorf("unsupported catalog type: %s", config.Catalog.Type)
	}

	if config.Catalog.Type == "postgres" && config.Catalog.DSN == "" {
		return fmt.Errorf("postgres catalog requires a dsn")
	}

	if config.Scanner.WorkerCount < 0 {
		return fmt.Errorf("invalid worker count: %d", config.Scanner.WorkerCount)
	}

	if config.Scanner.FFProbeTimeout < 0 {
		return fmt.Errorf("invalid ffprobe timeout: %s", config.Scanner.FFProbeTimeout)
	}

	for name, pct := range map[string]float64{
		"cpu_threshold":    config.Scanner.CPUThreshold,
		"memory_threshold": config.Scanner.MemoryThreshold,
	} {
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("invalid %s: %.1f", name, pct)
		}
	}

	return nil
}

func applyDerivedConfig(config *Config) {
	if config.Storage.DataDir == "" {
		config.Storage.DataDir = DefaultConfig().Storage.DataDir
	}
	if config.Storage.TagIndexPath == "" {
		config.Storage.TagIndexPath = filepath.Join(config.Storage.DataDir, "tag_index.json")
	}
	if config.Storage.ProfilesPath == "" {
		config.Storage.ProfilesPath = filepath.Join(config.Storage.DataDir, "scan_profiles.json")
	}
	if config.Catalog.Path == "" && config.Catalog.Type == "sqlite" {
		config.Catalog.Path = filepath.Join(config.Storage.DataDir, "catalog.db")
	}

	// 0 means one worker per core, capped
	if config.Scanner.WorkerCount == 0 {
		config.Scanner.WorkerCount = min(max(1, runtime.NumCPU()), 8)
	}
	if config.Scanner.FFProbeTimeout == 0 {
		config.Scanner.FFProbeTimeout = 2 * time.Second
	}
	if config.Classifier.CompanionLayer == "" {
		config.Classifier.CompanionLayer = "ai_quick"
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Get returns the current global configuration
func Get() *Config {
	return GetConfigManager().GetConfig()
}

// Load loads configuration from the specified path into the global manager
func Load(configPath string) error {
	return GetConfigManager().LoadConfig(configPath)
}

// AddWatcher adds a global configuration watcher
func AddWatcher(watcher ConfigWatcher) {
	GetConfigManager().AddWatcher(watcher)
}

// Save saves the current global configuration
func Save() error {
	return GetConfigManager().SaveConfig()
}
