package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const envPrefix = "SYNERGIZE_"

// DatabaseConfig holds the database connection information.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
	// AutoMigrate creates the api_keys table on startup. Defaults to true.
	AutoMigrate *bool `yaml:"auto_migrate"`
}

// Configured reports whether enough information is present to open a connection.
func (c DatabaseConfig) Configured() bool {
	return c.Type != "" && c.DSN != ""
}

// ShouldMigrate reports whether the schema should be migrated on startup.
func (c DatabaseConfig) ShouldMigrate() bool {
	return c.AutoMigrate == nil || *c.AutoMigrate
}

// AdminConfig holds configuration for the key management routes.
type AdminConfig struct {
	Password string `yaml:"password"`
}

// GitHubConfig holds configuration for the README host.
type GitHubConfig struct {
	APIURL    string `yaml:"api_url"`
	Token     string `yaml:"token"`
	UserAgent string `yaml:"user_agent"`
}

// LLMConfig holds configuration for the summarization model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	UsageResetSpec string `yaml:"usage_reset_spec"`
}

// Config holds the configuration for the service.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Admin     AdminConfig     `yaml:"admin"`
	GitHub    GitHubConfig    `yaml:"github"`
	LLM       LLMConfig       `yaml:"llm"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Port      int             `yaml:"port"`
	Debug     bool            `yaml:"debug"`
}

// LoadConfig reads and parses the configuration file, then applies .env and
// environment overrides. It returns the config and any warnings worth logging.
var LoadConfig = func(path string) (*Config, []string, error) {
	var config Config
	var warnings []string

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// A missing file is fine: everything can come from the environment.

	// Existing environment variables win over .env entries.
	_ = godotenv.Load()

	if err := applyEnv(&config); err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, applyDefaults(&config)...)

	return &config, warnings, nil
}

func applyEnv(config *Config) error {
	if v := getenv("DATABASE_TYPE"); v != "" {
		config.Database.Type = v
	}
	if v := getenv("DATABASE_DSN"); v != "" {
		config.Database.DSN = v
	}
	if v := getenv("DATABASE_AUTO_MIGRATE"); v != "" {
		b := v == "true"
		config.Database.AutoMigrate = &b
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPORT %q: %w", envPrefix, v, err)
		}
		config.Port = port
	}
	if v := getenv("DEBUG"); v != "" {
		config.Debug = v == "true"
	}
	if v := getenv("ADMIN_PASSWORD"); v != "" {
		config.Admin.Password = v
	}
	if v := getenv("GITHUB_API_URL"); v != "" {
		config.GitHub.APIURL = v
	}
	if v := firstEnv(envPrefix+"GITHUB_TOKEN", "GITHUB_TOKEN"); v != "" {
		config.GitHub.Token = v
	}
	if v := getenv("LLM_PROVIDER"); v != "" {
		config.LLM.Provider = v
	}
	if v := getenv("LLM_MODEL"); v != "" {
		config.LLM.Model = v
	}
	if v := getenv("LLM_BASE_URL"); v != "" {
		config.LLM.BaseURL = v
	}
	if v := getenv("LLM_API_KEY"); v != "" {
		config.LLM.APIKey = v
	}
	if v := getenv("SCHEDULER_USAGE_RESET_SPEC"); v != "" {
		config.Scheduler.UsageResetSpec = v
	}
	return nil
}

func applyDefaults(config *Config) []string {
	var warnings []string

	if config.Port == 0 {
		config.Port = 8080
	}
	if config.GitHub.APIURL == "" {
		config.GitHub.APIURL = "https://api.github.com"
	}
	config.GitHub.APIURL = strings.TrimSuffix(config.GitHub.APIURL, "/")
	if config.GitHub.UserAgent == "" {
		config.GitHub.UserAgent = "Synergize-App"
	}

	config.LLM.Provider = strings.ToLower(config.LLM.Provider)
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	// Provider specific keys are accepted when no explicit key is set.
	if config.LLM.APIKey == "" {
		switch config.LLM.Provider {
		case "openai":
			config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			config.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "gemini":
			config.LLM.Model = "gemini-1.5-flash"
		default:
			config.LLM.Model = "gpt-3.5-turbo"
		}
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Scheduler.UsageResetSpec == "" {
		config.Scheduler.UsageResetSpec = "@daily"
	}

	if !config.Database.Configured() {
		warnings = append(warnings, "database type and dsn are not configured; key endpoints will report configuration_error")
	}
	if config.LLM.APIKey == "" {
		warnings = append(warnings, "llm api key not configured - AI-powered summaries will not be available")
	}
	if config.Admin.Password == "" {
		warnings = append(warnings, "admin.password not set, key management routes are unauthenticated")
	}
	return warnings
}

func getenv(name string) string {
	return os.Getenv(envPrefix + name)
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
