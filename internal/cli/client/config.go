package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
)

const (
	envToken  = "SIGNMAKER_TOKEN"
	envAPIURL = "SIGNMAKER_API_URL"

	defaultAPIURL = "http://localhost:8080"
	chatPath      = "/chat"
)

var tokenPattern = regexp.MustCompile(`^smk_[0-9a-fA-F]{64}$`)

// GlobalConfig is the persisted CLI configuration in config.json.
type GlobalConfig struct {
	Token  string `json:"token,omitempty"`
	APIURL string `json:"api_url,omitempty"`
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
	return filepath.Join(configDir, "signmaker"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads config.json. A missing file yields nil, nil.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
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

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
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

// DeleteGlobalConfig removes config.json if present.
func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.Remove(configPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// IsValidToken reports whether token has the smk_<64 hex> shape.
func IsValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// Source tells where a setting came from.
type Source string

const (
	SourceFlag         Source = "flag"
	SourceEnv          Source = "env"
	SourceGlobalConfig Source = "global_config"
	SourceDefault      Source = "default"
	SourceNone         Source = "none"
)

// Settings are the resolved connection settings of the chat CLI.
type Settings struct {
	APIURL      string
	Token       string
	URLSource   Source
	TokenSource Source
}

// Endpoint is the chat URL derived from APIURL.
func (s Settings) Endpoint() string {
	base := strings.TrimRight(s.APIURL, "/")
	if strings.HasSuffix(base, chatPath) {
		return base
	}
	return base + chatPath
}

// Anonymous reports whether requests go out without a token.
func (s Settings) Anonymous() bool {
	return s.Token == ""
}

// ResolveSettings applies the cascade flag → env → global config →
// default, field by field. cmd may be nil to skip flags. No token is fine:
// the server answers anonymous requests without memory context.
func ResolveSettings(cmd *cobra.Command) (Settings, error) {
	s := Settings{URLSource: SourceNone, TokenSource: SourceNone}

	if cmd != nil {
		if v, err := cmd.Flags().GetString("token"); err == nil && v != "" {
			s.Token, s.TokenSource = v, SourceFlag
		}
		if v, err := cmd.Flags().GetString("api-url"); err == nil && v != "" {
			s.APIURL, s.URLSource = v, SourceFlag
		}
	}

	if s.Token == "" {
		if v := os.Getenv(envToken); v != "" {
			s.Token, s.TokenSource = v, SourceEnv
		}
	}
	if s.APIURL == "" {
		if v := os.Getenv(envAPIURL); v != "" {
			s.APIURL, s.URLSource = v, SourceEnv
		}
	}

	if s.Token == "" || s.APIURL == "" {
		global, err := LoadGlobalConfig()
		if err != nil {
			return Settings{}, err
		}
		if global != nil {
			if s.Token == "" && global.Token != "" {
				s.Token, s.TokenSource = global.Token, SourceGlobalConfig
			}
			if s.APIURL == "" && global.APIURL != "" {
				s.APIURL, s.URLSource = global.APIURL, SourceGlobalConfig
			}
		}
	}

	if s.APIURL == "" {
		s.APIURL, s.URLSource = defaultAPIURL, SourceDefault
	}
	if s.Token != "" && !IsValidToken(s.Token) {
		return Settings{}, fmt.Errorf("invalid token from %s (expected 'smk_<64 hex chars>')", s.TokenSource)
	}
	return s, nil
}

// AddConnectionFlags registers the flags ResolveSettings reads.
func AddConnectionFlags(root *cobra.Command) {
	root.PersistentFlags().String("token", "", "Access token (overrides env and config)")
	root.PersistentFlags().String("api-url", "", "Server base URL (overrides env and config)")
}
