//go:build !dev

package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Release builds only read an env file when ENV_FILE names one.
func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if path == "" {
		return nil
	}
	return godotenv.Load(path)
}
