package config

import (
	"reflect"
	"strings"
)

// ConfigManager merges CLI flag values into a loaded Config.
// Priority: CLI flags > config file > default values.
type ConfigManager struct {
	Config *Config
	Flags  map[string]interface{}
}

func NewConfigManager(cfg *Config) *ConfigManager {
	return &ConfigManager{
		Config: cfg,
		Flags:  make(map[string]interface{}),
	}
}

// RegisterFlag records a CLI flag value under the config key it overrides.
// The key must match the field's YAML tag.
func (cm *ConfigManager) RegisterFlag(key string, value interface{}) {
	cm.Flags[key] = value
}

// MergeConfiguration applies registered flag values over the config struct.
// Zero-valued flags never override, so unset flags leave the file values
// intact.
func (cm *ConfigManager) MergeConfiguration() *Config {
	configValue := reflect.ValueOf(cm.Config).Elem()
	configType := configValue.Type()

	for i := 0; i < configType.NumField(); i++ {
		field := configType.Field(i)
		yamlTag := field.Tag.Get("yaml")
		if yamlTag == "" {
			continue
		}
		configFieldName := strings.Split(yamlTag, ",")[0]
		flagValue, exists := cm.Flags[configFieldName]
		if !exists || isZeroValue(reflect.ValueOf(flagValue)) {
			continue
		}
		fieldValue := configValue.Field(i)
		if !fieldValue.CanSet() {
			continue
		}
		flagVal := reflect.ValueOf(flagValue)
		if flagVal.Type().ConvertibleTo(fieldValue.Type()) {
			fieldValue.Set(flagVal.Convert(fieldValue.Type()))
		}
	}
	return cm.Config
}

// MergeProviderOverrides folds flag-level provider settings into the
// Providers entry for the named provider. Empty values leave the stored
// settings untouched.
func (cm *ConfigManager) MergeProviderOverrides(provider, apiKey, model, baseURL string) *Config {
	if cm.Config.Providers == nil {
		cm.Config.Providers = map[string]ProviderSettings{}
	}
	ps := cm.Config.Providers[provider]
	if strings.TrimSpace(apiKey) != "" {
		ps.APIKey = apiKey
	}
	if strings.TrimSpace(model) != "" {
		ps.Model = model
	}
	if strings.TrimSpace(baseURL) != "" {
		ps.BaseURL = baseURL
	}
	cm.Config.Providers[provider] = ps
	return cm.Config
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	default:
		return v.IsZero()
	}
}
