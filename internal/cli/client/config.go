package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envToken  = "CLAIM_TOKEN"
	envAPIURL = "CLAIM_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

// GlobalConfig is the saved login stored in config.json.
type GlobalConfig struct {
	Token  string `json:"token"`
	APIURL string `json:"api_url"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "claim"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// LoadGlobalConfig returns nil, nil when no login has been saved.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := getConfigPathFunc()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// SaveGlobalConfig writes config.json with 0600 permissions.
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := getConfigDirFunc()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := getConfigPathFunc()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func DeleteGlobalConfig() error {
	configPath, err := getConfigPathFunc()
	if err != nil {
		return err
	}
	if err := os.Remove(configPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// LooksLikeJWT checks the compact serialization shape only; the server
// verifies the signature.
func LooksLikeJWT(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts[:2] {
		if p == "" || strings.ContainsAny(p, "+/= ") {
			return false
		}
	}
	return true
}

// CredentialSource records where the token came from.
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceNone         CredentialSource = "none"
)

// ResolveCredentials applies the cascade flag, environment, saved login.
// The URL falls back to the local default; an empty token is allowed because
// servers without JWT_SECRET do not check it.
func ResolveCredentials(flagToken, flagURL string) (CredentialSource, string, string, error) {
	source := SourceNone
	token, url := flagToken, flagURL
	if token != "" {
		source = SourceFlag
	}

	if token == "" {
		if token = os.Getenv(envToken); token != "" {
			source = SourceEnv
		}
	}
	if url == "" {
		url = os.Getenv(envAPIURL)
	}

	if token == "" || url == "" {
		saved, err := LoadGlobalConfig()
		if err != nil {
			return SourceNone, "", "", err
		}
		if saved != nil {
			if token == "" && saved.Token != "" {
				token = saved.Token
				source = SourceGlobalConfig
			}
			if url == "" {
				url = saved.APIURL
			}
		}
	}

	if url == "" {
		url = defaultAPIURL
	}
	return source, token, strings.TrimRight(url, "/"), nil
}
