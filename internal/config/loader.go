package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces doccached environment variables.
const envPrefix = "DOCCACHED_"

// maxConfigFileSize rejects runaway config files.
const maxConfigFileSize = 1 << 20

// Load reads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (DOCCACHED_SERVER_PORT, DOCCACHED_CACHE_PROVIDER, ...)
//  2. YAML config file
//  3. Defaults
//
// Environment variables strip the DOCCACHED_ prefix, then split on the
// first underscore into section and field:
//
//	DOCCACHED_SERVER_PORT              -> server.port
//	DOCCACHED_SYNC_MIN_CONTENT_LENGTH  -> sync.min_content_length
//	DOCCACHED_PRIMARY_DSN              -> primary.dsn
//
// An empty configPath skips the file and loads defaults plus environment.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// DOCCACHED_SECTION_FIELD_NAME -> section.field_name
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		section, field := parts[0], parts[1]

		// The cache section nests per-provider blocks one level deeper.
		if section == "cache" {
			for _, sub := range []string{"chromem_", "qdrant_"} {
				if strings.HasPrefix(field, sub) {
					return section + "." + strings.TrimSuffix(sub, "_") + "." + strings.TrimPrefix(field, sub)
				}
			}
		}
		return section + "." + field
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
