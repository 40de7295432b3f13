// Package config loads codepad settings from defaults, a YAML file and
// CODEPAD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user settings directory below $HOME.
const DirName = ".codepad"

// Config is the effective configuration of every codepad command.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// Session identity used by the sync engine and the project commands.
	UID       string `mapstructure:"uid" yaml:"uid"`
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`
	RootName  string `mapstructure:"root_name" yaml:"root_name"`

	// RemoteURL points at a codepad server. Empty means local-only.
	RemoteURL  string `mapstructure:"remote_url" yaml:"remote_url"`
	LocalStore string `mapstructure:"local_store" yaml:"local_store"`

	ServerAddr    string `mapstructure:"server_addr" yaml:"server_addr"`
	DBPath        string `mapstructure:"db_path" yaml:"db_path"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`

	Judge0URL  string `mapstructure:"judge0_url" yaml:"judge0_url"`
	Judge0Host string `mapstructure:"judge0_host" yaml:"judge0_host"`
	Judge0Key  string `mapstructure:"judge0_key" yaml:"judge0_key"`

	LLMAPIKey  string `mapstructure:"llm_api_key" yaml:"llm_api_key"`
	LLMBaseURL string `mapstructure:"llm_base_url" yaml:"llm_base_url"`
	LLMModel   string `mapstructure:"llm_model" yaml:"llm_model"`

	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	SaveTimeoutSec   int `mapstructure:"save_timeout_sec" yaml:"save_timeout_sec"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("root_name", "project")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("mongo_database", "codepad")
	v.SetDefault("judge0_url", "https://judge0-ce.p.rapidapi.com")
	v.SetDefault("judge0_host", "judge0-ce.p.rapidapi.com")
	v.SetDefault("llm_base_url", "https://api.openai.com/v1")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("http_timeout_sec", 30)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("save_timeout_sec", 30)
}

// Dir returns ~/.codepad.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Load reads configuration. Precedence: env > config file > defaults.
// A missing config file is not an error; a malformed one is.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CODEPAD")
	v.AutomaticEnv()
	setDefaults(v)
	// Unmarshal only sees env values for keys viper already knows about.
	for _, k := range (&Config{}).Keys() {
		_ = v.BindEnv(k)
	}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, "codepad.db")
	}
	if c.LocalStore == "" {
		c.LocalStore = filepath.Join(dir, "local.db")
	}
	return &c, nil
}

// Save writes c to cfgFile, or to ~/.codepad/config.yaml when cfgFile is
// empty, creating the directory if necessary.
func Save(c *Config, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// The file may hold API keys.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// HTTPTimeout, BaseDelay and MaxDelay convert the integer settings.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

func (c *Config) SaveTimeout() time.Duration {
	return time.Duration(c.SaveTimeoutSec) * time.Second
}

type field struct {
	str    *string
	num    *int
	secret bool
}

func (c *Config) fields() map[string]field {
	return map[string]field{
		"log_level":           {str: &c.LogLevel},
		"uid":                 {str: &c.UID},
		"project_id":          {str: &c.ProjectID},
		"root_name":           {str: &c.RootName},
		"remote_url":          {str: &c.RemoteURL},
		"local_store":         {str: &c.LocalStore},
		"server_addr":         {str: &c.ServerAddr},
		"db_path":             {str: &c.DBPath},
		"mongo_uri":           {str: &c.MongoURI, secret: true},
		"mongo_database":      {str: &c.MongoDatabase},
		"judge0_url":          {str: &c.Judge0URL},
		"judge0_host":         {str: &c.Judge0Host},
		"judge0_key":          {str: &c.Judge0Key, secret: true},
		"llm_api_key":         {str: &c.LLMAPIKey, secret: true},
		"llm_base_url":        {str: &c.LLMBaseURL},
		"llm_model":           {str: &c.LLMModel},
		"http_timeout_sec":    {num: &c.HTTPTimeoutSec},
		"retry_max_attempts":  {num: &c.RetryMaxAttempts},
		"retry_base_delay_ms": {num: &c.RetryBaseDelayMs},
		"retry_max_delay_ms":  {num: &c.RetryMaxDelayMs},
		"save_timeout_sec":    {num: &c.SaveTimeoutSec},
	}
}

// Keys lists every settable key in sorted order.
func (c *Config) Keys() []string {
	f := c.fields()
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a value by key, parsing integers where needed.
func (c *Config) Set(key, val string) error {
	f, ok := c.fields()[key]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	if f.num != nil {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*f.num = i
		return nil
	}
	*f.str = val
	return nil
}

// Get returns the display value of key. Secrets are masked.
func (c *Config) Get(key string) (string, bool) {
	f, ok := c.fields()[key]
	if !ok {
		return "", false
	}
	if f.num != nil {
		return strconv.Itoa(*f.num), true
	}
	if f.secret {
		return Mask(*f.str), true
	}
	return *f.str, true
}

// Mask hides all but the last four characters of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
