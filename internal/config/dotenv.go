package config

import "github.com/joho/godotenv"

// LoadDotEnv reads a .env file into the process environment.
// Existing env vars are not overridden (env takes precedence).
// A missing file returns an error the caller may ignore.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}
