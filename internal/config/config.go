// Package config loads the flat runtime settings record for agentic-core:
// provider selection, sandbox limits, container images, and the handful
// of thresholds the loop and validator consume.
//
// Grounded on original_source/config.py's load_settings() for field shape
// and AGENTCORE_*-prefixed env var naming (renamed from the original's
// SOFTNIX_* prefix), and on the teacher's internal/attractor/engine/config.go
// for the Go idiom of a typed config struct with defaulting + validation
// split into separate passes, plus its gopkg.in/yaml.v3 strict-decode
// habit for an optional on-disk overlay.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the effective runtime settings record for one process.
type Config struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	MaxIters  int    `yaml:"max_iters"`
	Workspace string `yaml:"workspace"`
	RunsDir   string `yaml:"runs_dir"`
	SkillsDir string `yaml:"skills_dir"`

	SafeCommands []string `yaml:"safe_commands"`

	OpenAIAPIKey  string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	ClaudeAPIKey  string `yaml:"-"`
	ClaudeBaseURL string `yaml:"claude_base_url"`
	CustomAPIKey  string `yaml:"-"`
	CustomBaseURL string `yaml:"custom_base_url"`
	CustomModel   string `yaml:"custom_model"`
	APIKey        string `yaml:"-"`

	CORSOrigins           []string `yaml:"cors_origins"`
	CORSAllowCredentials  bool     `yaml:"cors_allow_credentials"`

	ExecTimeoutSec              int     `yaml:"exec_timeout_sec"`
	ExecRuntime                 string  `yaml:"exec_runtime"`
	ExecContainerLifecycle      string  `yaml:"exec_container_lifecycle"`
	ExecContainerImage          string  `yaml:"exec_container_image"`
	ExecContainerImageProfile   string  `yaml:"exec_container_image_profile"`
	ExecContainerImageBase      string  `yaml:"exec_container_image_base"`
	ExecContainerImageWeb       string  `yaml:"exec_container_image_web"`
	ExecContainerImageData      string  `yaml:"exec_container_image_data"`
	ExecContainerImageScraping  string  `yaml:"exec_container_image_scraping"`
	ExecContainerImageML        string  `yaml:"exec_container_image_ml"`
	ExecContainerImageQA        string  `yaml:"exec_container_image_qa"`
	ExecContainerNetwork        string  `yaml:"exec_container_network"`
	ExecContainerCPUs           float64 `yaml:"exec_container_cpus"`
	ExecContainerMemory         string  `yaml:"exec_container_memory"`
	ExecContainerPIDsLimit      int     `yaml:"exec_container_pids_limit"`
	ExecContainerCacheDir       string  `yaml:"exec_container_cache_dir"`
	ExecContainerPipCacheEnabled bool   `yaml:"exec_container_pip_cache_enabled"`

	MaxActionOutputChars     int  `yaml:"max_action_output_chars"`
	NoProgressRepeatThreshold int `yaml:"no_progress_repeat_threshold"`
	WebFetchTLSVerify        bool `yaml:"web_fetch_tls_verify"`

	RunMaxWallTimeSec int `yaml:"run_max_wall_time_sec"`

	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the settings record with the original's documented
// defaults, before any env var or file overlay is applied.
func Default() *Config {
	return &Config{
		Provider:                    "openai",
		Model:                       "gpt-4o-mini",
		MaxIters:                    10,
		Workspace:                   ".",
		RunsDir:                     ".agentcore/runs",
		SkillsDir:                   "skillpacks",
		SafeCommands:                []string{"ls", "pwd", "cat", "echo", "python", "pytest", "rm"},
		OpenAIBaseURL:               "https://api.openai.com/v1",
		ClaudeBaseURL:               "https://api.anthropic.com",
		CustomModel:                 "gpt-4o-mini",
		CORSOrigins:                 []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		CORSAllowCredentials:        true,
		ExecTimeoutSec:              30,
		ExecRuntime:                 "host",
		ExecContainerLifecycle:      "per_action",
		ExecContainerImage:          "python:3.11-slim",
		ExecContainerImageProfile:   "auto",
		ExecContainerNetwork:        "none",
		ExecContainerCPUs:           1.0,
		ExecContainerMemory:         "512m",
		ExecContainerPIDsLimit:      256,
		ExecContainerCacheDir:       ".agentcore/container-cache",
		ExecContainerPipCacheEnabled: true,
		MaxActionOutputChars:        12000,
		NoProgressRepeatThreshold:   3,
		WebFetchTLSVerify:           true,
		ListenAddr:                  ":8080",
		MetricsAddr:                 ":9090",
	}
}

// Load builds the effective Config: defaults, then an optional YAML
// overlay file (if overlayPath is non-empty and exists), then
// AGENTCORE_*-prefixed environment variables (highest priority, matching
// the original's layering).
func Load(overlayPath string) (*Config, error) {
	loadDotenv(".env")

	cfg := Default()

	if overlayPath != "" {
		if err := applyYAMLOverlay(cfg, overlayPath); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyContainerImageFallbacks(cfg)

	if !hasCommand(cfg.SafeCommands, "rm") {
		cfg.SafeCommands = append(cfg.SafeCommands, "rm")
	}
	if abs, err := filepath.Abs(cfg.Workspace); err == nil {
		cfg.Workspace = abs
	}
	return cfg, nil
}

func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	strPtr := func(name string) string { return os.Getenv(name) }
	intVal := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	floatVal := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(name); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	boolVal := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = parseBool(v, *dst)
		}
	}
	csvVal := func(name string, dst *[]string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = parseCSV(v)
		}
	}

	str("AGENTCORE_PROVIDER", &cfg.Provider)
	str("AGENTCORE_MODEL", &cfg.Model)
	intVal("AGENTCORE_MAX_ITERS", &cfg.MaxIters)
	str("AGENTCORE_WORKSPACE", &cfg.Workspace)
	str("AGENTCORE_RUNS_DIR", &cfg.RunsDir)
	str("AGENTCORE_SKILLS_DIR", &cfg.SkillsDir)
	csvVal("AGENTCORE_SAFE_COMMANDS", &cfg.SafeCommands)

	cfg.OpenAIAPIKey = orEnv(cfg.OpenAIAPIKey, strPtr("AGENTCORE_OPENAI_API_KEY"))
	str("AGENTCORE_OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	cfg.ClaudeAPIKey = orEnv(cfg.ClaudeAPIKey, strPtr("AGENTCORE_CLAUDE_API_KEY"))
	str("AGENTCORE_CLAUDE_BASE_URL", &cfg.ClaudeBaseURL)
	cfg.CustomAPIKey = orEnv(cfg.CustomAPIKey, strPtr("AGENTCORE_CUSTOM_API_KEY"))
	str("AGENTCORE_CUSTOM_BASE_URL", &cfg.CustomBaseURL)
	str("AGENTCORE_CUSTOM_MODEL", &cfg.CustomModel)
	cfg.APIKey = orEnv(cfg.APIKey, strPtr("AGENTCORE_API_KEY"))

	csvVal("AGENTCORE_CORS_ORIGINS", &cfg.CORSOrigins)
	boolVal("AGENTCORE_CORS_ALLOW_CREDENTIALS", &cfg.CORSAllowCredentials)

	intVal("AGENTCORE_EXEC_TIMEOUT_SEC", &cfg.ExecTimeoutSec)
	str("AGENTCORE_EXEC_RUNTIME", &cfg.ExecRuntime)
	str("AGENTCORE_EXEC_CONTAINER_LIFECYCLE", &cfg.ExecContainerLifecycle)
	str("AGENTCORE_EXEC_CONTAINER_IMAGE", &cfg.ExecContainerImage)
	str("AGENTCORE_EXEC_CONTAINER_IMAGE_PROFILE", &cfg.ExecContainerImageProfile)
	str("AGENTCORE_EXEC_CONTAINER_IMAGE_BASE", &cfg.ExecContainerImageBase)
	str("AGENTCORE_EXEC_CONTAINER_IMAGE_WEB", &cfg.ExecContainerImageWeb)
	str("AGENTCORE_EXEC_CONTAINER_IMAGE_DATA", &cfg.ExecContainerImageData)
	str("AGENTCORE_EXEC_CONTAINER_IMAGE_SCRAPING", &cfg.ExecContainerImageScraping)
	str("AGENTCORE_EXEC_CONTAINER_IMAGE_ML", &cfg.ExecContainerImageML)
	str("AGENTCORE_EXEC_CONTAINER_IMAGE_QA", &cfg.ExecContainerImageQA)
	str("AGENTCORE_EXEC_CONTAINER_NETWORK", &cfg.ExecContainerNetwork)
	floatVal("AGENTCORE_EXEC_CONTAINER_CPUS", &cfg.ExecContainerCPUs)
	str("AGENTCORE_EXEC_CONTAINER_MEMORY", &cfg.ExecContainerMemory)
	intVal("AGENTCORE_EXEC_CONTAINER_PIDS_LIMIT", &cfg.ExecContainerPIDsLimit)
	str("AGENTCORE_EXEC_CONTAINER_CACHE_DIR", &cfg.ExecContainerCacheDir)
	boolVal("AGENTCORE_EXEC_CONTAINER_PIP_CACHE_ENABLED", &cfg.ExecContainerPipCacheEnabled)

	intVal("AGENTCORE_MAX_ACTION_OUTPUT_CHARS", &cfg.MaxActionOutputChars)
	intVal("AGENTCORE_NO_PROGRESS_REPEAT_THRESHOLD", &cfg.NoProgressRepeatThreshold)
	boolVal("AGENTCORE_WEB_FETCH_TLS_VERIFY", &cfg.WebFetchTLSVerify)
	intVal("AGENTCORE_RUN_MAX_WALL_TIME_SEC", &cfg.RunMaxWallTimeSec)

	str("AGENTCORE_LISTEN_ADDR", &cfg.ListenAddr)
	str("AGENTCORE_METRICS_ADDR", &cfg.MetricsAddr)
}

// applyContainerImageFallbacks mirrors the original's __post_init__: any
// per-profile container image left unset falls back to the general image.
func applyContainerImageFallbacks(cfg *Config) {
	for _, dst := range []*string{
		&cfg.ExecContainerImageBase, &cfg.ExecContainerImageWeb, &cfg.ExecContainerImageData,
		&cfg.ExecContainerImageScraping, &cfg.ExecContainerImageML, &cfg.ExecContainerImageQA,
	} {
		if strings.TrimSpace(*dst) == "" {
			*dst = cfg.ExecContainerImage
		}
	}
}

func orEnv(current, envVal string) string {
	if envVal != "" {
		return envVal
	}
	return current
}

func hasCommand(commands []string, name string) bool {
	for _, c := range commands {
		if c == name {
			return true
		}
	}
	return false
}

func parseCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// loadDotenv mirrors the original's minimal .env loader: explicitly
// exported shell env always wins over a .env entry.
func loadDotenv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
			value = value[1 : len(value)-1]
		}
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
}
