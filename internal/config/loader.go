package config

import "chainbal/internal/fault"

func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, &fault.ConfigError{Key: "ENV_FILE", Reason: err.Error()}
	}
	return Load(FromEnviron())
}
