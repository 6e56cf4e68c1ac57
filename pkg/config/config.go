package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProvider        = "openai"
	DefaultSessionStore    = "file"
	DefaultTranslateTarget = "en"
)

// ProviderSettings holds credentials and routing for a provider.
type ProviderSettings struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"baseURL,omitempty"`
}

type Config struct {
	Provider        string `yaml:"provider,omitempty"`
	SystemPrompt    string `yaml:"systemPrompt,omitempty"`
	Persona         string `yaml:"persona,omitempty"`
	PromptTemplate  string `yaml:"promptTemplate,omitempty"`
	RenderMarkdown  bool   `yaml:"renderMarkdown,omitempty"`
	TranslateTarget string `yaml:"translateTarget,omitempty"`
	SessionStore    string `yaml:"sessionStore,omitempty" validate:"omitempty,oneof=file sqlite"`

	Providers map[string]ProviderSettings `yaml:"providers,omitempty"`
}

// Dir returns the per-binary configuration directory, creating it if needed.
func Dir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to determine executable path: %w", err)
	}
	binaryName := filepath.Base(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user home directory: %w", err)
	}
	configDir := filepath.Join(homeDir, ".config", binaryName)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

func LoadOrCreateConfig() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// SystemPrompt stays empty so the persona's seed prompt applies
		// until the user writes an explicit one.
		defaultCfg := &Config{
			Provider:        DefaultProvider,
			Persona:         "default",
			RenderMarkdown:  true,
			TranslateTarget: DefaultTranslateTarget,
			SessionStore:    DefaultSessionStore,
			Providers:       map[string]ProviderSettings{},
		}
		if err := saveConfig(configPath, defaultCfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultCfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

func saveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// APIKeyEnvVar returns the environment variable consulted for a provider's
// API key, e.g. OPENAI_API_KEY.
func APIKeyEnvVar(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

func ResolveAPIKey(flagVal, envVar, configVal, provider string) (string, error) {
	if strings.TrimSpace(flagVal) != "" {
		return strings.TrimSpace(flagVal), nil
	}
	if envVal := os.Getenv(envVar); strings.TrimSpace(envVal) != "" {
		return strings.TrimSpace(envVal), nil
	}
	if strings.TrimSpace(configVal) != "" {
		return strings.TrimSpace(configVal), nil
	}

	return "", fmt.Errorf("%s API key is required. Provide via flag, %s environment variable, or config", provider, envVar)
}

func (cfg *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// GetProviderSettings fetches settings from the Providers map.
func (cfg *Config) GetProviderSettings(name string) ProviderSettings {
	if cfg.Providers != nil {
		if ps, ok := cfg.Providers[name]; ok {
			return ps
		}
	}
	return ProviderSettings{}
}
