package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nkiryanov/betplatform/internal/logger"
	"github.com/nkiryanov/betplatform/internal/service/event"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultMetricsAddr   = "localhost:9100"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultBettingWindow = event.DefaultBettingWindow
)

type Config struct {
	// Default logging level
	LogLevel string `yaml:"log_level"`

	// Environment: development logs text, production logs json
	Environment string `yaml:"environment"`

	// Address on which the API will be run
	ListenAddr string `yaml:"run_address"`

	// Address of /metrics and /healthz. Disabled if empty
	MetricsAddr string `yaml:"metrics_address"`

	// Database to connect to
	DatabaseDSN string `yaml:"database_uri"`

	// Secret key JWT access tokens are signed with
	SecretKey string `yaml:"secret_key"`

	// Redis for idempotency keys. Requests are not deduplicated if empty
	RedisAddr string `yaml:"redis_address"`

	// Kafka brokers outbox messages are published to. Dispatching is disabled if empty
	KafkaBrokers []string `yaml:"kafka_brokers"`

	// How long approved event accepts bets
	BettingWindow time.Duration `yaml:"betting_window"`
}

func NewConfig() *Config {
	return &Config{
		LogLevel:      defaultLoggingLevel,
		Environment:   defaultEnvironment,
		ListenAddr:    defaultListenAddr,
		MetricsAddr:   defaultMetricsAddr,
		BettingWindow: defaultBettingWindow,
	}
}

// Load config from yaml file. ${VAR} references are expanded with getenv
// Options missing in the file are kept as is
func (c *Config) LoadFile(path string, getenv func(string) string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	expanded := os.Expand(string(data), getenv)

	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	return nil
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}

	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = splitList(value)
			}
			return nil
		}
	}

	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":     setString(&c.ListenAddr),
		"METRICS_ADDRESS": setString(&c.MetricsAddr),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"SECRET_KEY":      setString(&c.SecretKey),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"ENVIRONMENT":     setString(&c.Environment),
		"REDIS_ADDRESS":   setString(&c.RedisAddr),
		"KAFKA_BROKERS":   setList(&c.KafkaBrokers),
		"BETTING_WINDOW":  setDuration(&c.BettingWindow),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) flagSet(configFile *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("betplatform", pflag.ContinueOnError)

	fs.StringVarP(configFile, "config", "c", *configFile, "Path to yaml config file")
	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.MetricsAddr, "metrics-address", "m", c.MetricsAddr, "Metrics and health listen address, empty to disable")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address for idempotency keys")
	fs.StringSliceVarP(&c.KafkaBrokers, "kafka-brokers", "k", c.KafkaBrokers, "Comma separated kafka brokers")
	fs.DurationVarP(&c.BettingWindow, "betting-window", "w", c.BettingWindow, "How long approved event accepts bets")

	return fs
}

func (c *Config) ParseFlags(args []string) error {
	var configFile string
	return c.flagSet(&configFile).Parse(args)
}

// Config file is looked up before any other source: flag, then CONFIG_FILE variable
func ConfigFile(args []string, getenv func(string) string) (string, error) {
	configFile := getenv("CONFIG_FILE")

	fs := (&Config{}).flagSet(&configFile)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true

	if err := fs.Parse(args); err != nil {
		return "", err
	}

	return configFile, nil
}

// Defaults, then config file, .env, environment and flags. Later sources win
func LoadConfig(args []string, getenv func(string) string, getwd func() (string, error)) (*Config, error) {
	c := NewConfig()

	configFile, err := ConfigFile(args, getenv)
	if err != nil {
		return nil, fmt.Errorf("error while parsing flags: %w", err)
	}
	if configFile != "" {
		if err := c.LoadFile(configFile, getenv); err != nil {
			return nil, err
		}
	}

	if err := c.LoadDotEnv(getwd); err != nil {
		return nil, fmt.Errorf("error while loading .env: %w", err)
	}

	if err := c.LoadEnv(getenv); err != nil {
		return nil, err
	}

	if err := c.ParseFlags(args); err != nil {
		return nil, fmt.Errorf("error while parsing flags: %w", err)
	}

	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database uri is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.BettingWindow <= 0 {
		errs = append(errs, fmt.Errorf("betting window must be positive, got %s", c.BettingWindow))
	}

	return errors.Join(errs...)
}

func splitList(value string) []string {
	var items []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
