package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = ".smarttest.yaml"

type Config struct {
	ServerURL         string        `yaml:"server_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxFileBytes      int64         `yaml:"max_file_bytes"`
	MaxFiles          int           `yaml:"max_files"`
	AllowedExtensions []string      `yaml:"allowed_extensions"`
	BlockedDirs       []string      `yaml:"blocked_dirs"`
	RedactionPatterns []string      `yaml:"redaction_patterns"`
	OutputDir         string        `yaml:"output_dir"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	DashboardAddr     string        `yaml:"dashboard_addr"`
}

var configCache struct {
	mu      sync.RWMutex
	path    string
	exists  bool
	modTime int64
	cfg     Config
}

func Default() Config {
	return Config{
		ServerURL:         "http://localhost:5001",
		Timeout:           5 * time.Minute,
		RequestsPerSecond: 0, // 0 means unlimited
		MaxFileBytes:      10 << 20,
		MaxFiles:          500,
		AllowedExtensions: []string{".py", ".js", ".ts", ".jsx", ".tsx", ".go", ".java", ".rb", ".php", ".cs", ".c", ".cpp", ".h", ".kt", ".swift", ".rs", ".scala", ".json", ".yaml", ".yml", ".xml", ".html", ".txt", ".toml", ".cfg", ".ini"},
		BlockedDirs:       []string{".git", "node_modules", "__pycache__", ".venv", "venv", "vendor", "dist", "build", ".idea", ".vscode"},
		OutputDir:         ".",
		LogLevel:          "warn",
		LogFormat:         "text",
		DashboardAddr:     "127.0.0.1:8088",
	}
}

// Load reads path (DefaultPath when empty) on top of Default and applies
// SMARTTEST_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	if absPath, err := filepath.Abs(path); err == nil {
		path = absPath
	}

	cfg, err := loadFile(path)
	if err != nil {
		return applyEnv(Default()), err
	}
	return applyEnv(cfg), nil
}

func loadFile(path string) (Config, error) {
	st, statErr := os.Stat(path)
	if statErr != nil {
		configCache.mu.RLock()
		if configCache.path == path && !configCache.exists {
			cached := configCache.cfg
			configCache.mu.RUnlock()
			return cached, nil
		}
		configCache.mu.RUnlock()
		storeCache(path, false, 0, Default())
		return Default(), nil
	}

	modTime := st.ModTime().UnixNano()
	configCache.mu.RLock()
	if configCache.path == path && configCache.exists && configCache.modTime == modTime {
		cached := configCache.cfg
		configCache.mu.RUnlock()
		return cached, nil
	}
	configCache.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg = normalize(cfg)

	storeCache(path, true, modTime, cfg)
	return cfg, nil
}

func storeCache(path string, exists bool, modTime int64, cfg Config) {
	configCache.mu.Lock()
	configCache.path = path
	configCache.exists = exists
	configCache.modTime = modTime
	configCache.cfg = cfg
	configCache.mu.Unlock()
}

// normalize replaces out-of-range values with defaults.
func normalize(cfg Config) Config {
	def := Default()
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ServerURL == "" {
		cfg.ServerURL = def.ServerURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond < 0 {
		cfg.RequestsPerSecond = 0
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = def.MaxFileBytes
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = def.MaxFiles
	}
	exts := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	cfg.AllowedExtensions = exts
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
		cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	default:
		cfg.LogLevel = def.LogLevel
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
		cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	default:
		cfg.LogFormat = def.LogFormat
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.DashboardAddr == "" {
		cfg.DashboardAddr = def.DashboardAddr
	}
	return cfg
}

func applyEnv(cfg Config) Config {
	if v := os.Getenv("SMARTTEST_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("SMARTTEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("SMARTTEST_REQUESTS_PER_SECOND"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RequestsPerSecond = n
		}
	}
	if v := os.Getenv("SMARTTEST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SMARTTEST_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	return normalize(cfg)
}

// Save writes cfg as YAML to path.
func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultPath
	}
	data, err := yaml.Marshal(normalize(cfg))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Set updates a single key by its YAML name.
func Set(cfg Config, key, value string) (Config, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "server_url":
		cfg.ServerURL = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return cfg, fmt.Errorf("invalid timeout %q: %w", value, err)
		}
		cfg.Timeout = d
	case "requests_per_second":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid requests_per_second %q: %w", value, err)
		}
		cfg.RequestsPerSecond = n
	case "max_file_bytes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid max_file_bytes %q: %w", value, err)
		}
		cfg.MaxFileBytes = n
	case "max_files":
		n, err := strconv.Atoi(value)
		if err != nil {
			return cfg, fmt.Errorf("invalid max_files %q: %w", value, err)
		}
		cfg.MaxFiles = n
	case "output_dir":
		cfg.OutputDir = value
	case "log_level":
		cfg.LogLevel = value
	case "log_format":
		cfg.LogFormat = value
	case "dashboard_addr":
		cfg.DashboardAddr = value
	default:
		return cfg, fmt.Errorf("unknown config key: %s", key)
	}
	return normalize(cfg), nil
}
