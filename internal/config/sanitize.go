package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg
	if sanitized.Security.BackupKey != "" {
		sanitized.Security.BackupKey = maskSecret(sanitized.Security.BackupKey)
	}
	return &sanitized
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
