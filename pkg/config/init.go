package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dfsgate Configuration File
#
# Values can be overridden with DFSGATE_* environment variables,
# e.g. DFSGATE_LOGGING_LEVEL=DEBUG or DFSGATE_ACCOUNT_KEY=...
`

// sectionComments are written above each top-level section.
var sectionComments = map[string]string{
	"logging":    "Logging: level (DEBUG, INFO, WARN, ERROR), format (text, json), output (stdout, stderr, path)",
	"account":    "Storage account and the filesystem operated on",
	"filesystem": "Filesystem service tuning; sizes are in bytes",
	"store":      "Store backend: dfs (REST endpoint), memory or badger (local emulators)",
	"transport":  "Outgoing request throttling; requests_per_second 0 disables it",
	"metrics":    "Prometheus endpoint served at /metrics",
}

// InitConfig writes a default configuration file at the default location.
//
// Returns the path written. Fails if the file exists unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file at path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and one
// comment per section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	// Mapping content alternates key and value nodes.
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
		if key.Value == "transport" {
			setScalar(value, "timeout", cfg.Transport.Timeout.String())
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.String(), nil
}

// setScalar replaces the value of key in a mapping node with a string.
func setScalar(mapping *yaml.Node, key, value string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
			return
		}
	}
}
