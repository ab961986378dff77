// Package config loads the MFP_-prefixed environment configuration via
// viper, with optional .env support.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting, each populated from the
// MFP_-prefixed environment variable of the same name.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`

	CompileOnStartup   bool   `mapstructure:"compile_on_startup"`
	CompiledOutputDir  string `mapstructure:"compiled_output_dir"`
	SwaggerConfigFile  string `mapstructure:"swagger_config_file"`

	LLMEnhance bool   `mapstructure:"llm_enhance"`
	LLMAPIKey  string `mapstructure:"llm_api_key"`
	LLMModel   string `mapstructure:"llm_model"`

	DockerImage             string `mapstructure:"docker_image"`
	ExecutionTimeoutSeconds int    `mapstructure:"execution_timeout_seconds"`
	MaxOutputSizeBytes      int    `mapstructure:"max_output_size_bytes"`
	NetworkMode             string `mapstructure:"network_mode"`

	CacheEnabled    bool   `mapstructure:"cache_enabled"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
	CacheMaxEntries int    `mapstructure:"cache_max_entries"`
	CacheDBPath     string `mapstructure:"cache_db_path"`

	AllowedDomains   []string `mapstructure:"allowed_domains"`
	MaxCodeSizeBytes int      `mapstructure:"max_code_size_bytes"`

	MaxSandboxLaunchesPerSec float64 `mapstructure:"max_sandbox_launches_per_sec"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("debug", false)
	v.SetDefault("compile_on_startup", true)
	v.SetDefault("compiled_output_dir", "./compiled")
	v.SetDefault("swagger_config_file", "./config/swaggers.yaml")
	v.SetDefault("llm_enhance", false)
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_model", "gemini-2.0-flash")
	v.SetDefault("docker_image", "mfp-sandbox:latest")
	v.SetDefault("execution_timeout_seconds", 30)
	v.SetDefault("max_output_size_bytes", 1_048_576)
	v.SetDefault("network_mode", "mfp_network")
	v.SetDefault("cache_enabled", true)
	v.SetDefault("cache_ttl_seconds", 3600)
	v.SetDefault("cache_max_entries", 500)
	v.SetDefault("cache_db_path", "./data/cache.db")
	v.SetDefault("allowed_domains", []string{})
	v.SetDefault("max_code_size_bytes", 65_536)
	v.SetDefault("max_sandbox_launches_per_sec", 0.0)
}

// Load reads .env (if present, silently ignored if absent), then builds a
// Config from environment variables under the MFP_ prefix. Unknown keys
// are ignored, matching the original's extra="ignore" settings behavior.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MFP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind every field explicitly so BindEnv picks up MFP_<KEY> even when
	// the variable was never otherwise referenced.
	for _, key := range []string{
		"host", "port", "log_level", "debug", "compile_on_startup",
		"compiled_output_dir", "swagger_config_file", "llm_enhance",
		"llm_api_key", "llm_model", "docker_image",
		"execution_timeout_seconds", "max_output_size_bytes", "network_mode",
		"cache_enabled", "cache_ttl_seconds", "cache_max_entries",
		"cache_db_path", "allowed_domains", "max_code_size_bytes",
		"max_sandbox_launches_per_sec",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// ServerEnvVarNames returns the two per-server credential variable
// names, MFP_<SERVER>_BASE_URL and MFP_<SERVER>_AUTH, with the server
// name uppercased.
func ServerEnvVarNames(serverName string) (baseURLVar, authVar string) {
	upper := strings.ToUpper(serverName)
	return fmt.Sprintf("MFP_%s_BASE_URL", upper), fmt.Sprintf("MFP_%s_AUTH", upper)
}
