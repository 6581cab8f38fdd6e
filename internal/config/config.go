// Package config loads cardfs settings from a YAML file, a .env file and
// CARDFS_* environment variables, and validates the result against an
// embedded CUE schema.
//
// Precedence, highest first: process environment, .env file, YAML file,
// defaults.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Remote kinds.
const (
	RemoteNone    = "none"
	RemoteMemory  = "memory"
	RemoteSurreal = "surreal"
)

// Config is the full cardfs configuration.
type Config struct {
	CachePath   string `yaml:"cache_path" json:"cache_path"`
	User        string `yaml:"user" json:"user"`
	JWTSecret   string `yaml:"jwt_secret" json:"jwt_secret"`
	Token       string `yaml:"token" json:"token"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`

	Remote Remote `yaml:"remote" json:"remote"`
	Asset  Asset  `yaml:"asset" json:"asset"`
	Editor Editor `yaml:"editor" json:"editor"`
}

// Remote selects and configures the remote document channel.
type Remote struct {
	Kind      string `yaml:"kind" json:"kind"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Database  string `yaml:"database" json:"database"`
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"password"`
}

// Asset configures the S3-compatible image bucket. Uploads are disabled
// while Bucket is empty.
type Asset struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Region    string `yaml:"region" json:"region"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	PublicURL string `yaml:"public_url" json:"public_url"`
}

// Editor holds the set editor defaults.
type Editor struct {
	MaxCards   int  `yaml:"max_cards" json:"max_cards"`
	MassCreate bool `yaml:"mass_create" json:"mass_create"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		CachePath: "cardfs.db",
		LogLevel:  "info",
		Remote: Remote{
			Kind:      RemoteNone,
			Namespace: "cardfs",
			Database:  "cardfs",
		},
		Editor: Editor{MaxCards: 30},
	}
}

// Options controls where Load looks.
type Options struct {
	// Path is the YAML file. Empty skips the file; a missing file is an
	// error only when set explicitly.
	Path string

	// EnvFile is the dotenv file. Defaults to ".env"; missing is fine.
	EnvFile string

	// Getenv reads the process environment. Defaults to os.LookupEnv.
	Getenv func(string) (string, bool)
}

// Load builds the configuration and validates it.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.Path != "" {
		if err := mergeFile(&cfg, opts.Path); err != nil {
			return Config{}, err
		}
	}

	lookup, err := envLookup(opts)
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func envLookup(opts Options) (func(string) (string, bool), error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.LookupEnv
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
		dotenv = nil
	}

	return func(key string) (string, bool) {
		if v, ok := getenv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// applyEnv overrides cfg from CARDFS_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CARDFS_CACHE_PATH":    &cfg.CachePath,
		"CARDFS_USER":          &cfg.User,
		"CARDFS_JWT_SECRET":    &cfg.JWTSecret,
		"CARDFS_TOKEN":         &cfg.Token,
		"CARDFS_LOG_LEVEL":     &cfg.LogLevel,
		"CARDFS_METRICS_ADDR":  &cfg.MetricsAddr,
		"CARDFS_REMOTE":        &cfg.Remote.Kind,
		"CARDFS_SURREAL_URL":   &cfg.Remote.Endpoint,
		"CARDFS_SURREAL_NS":    &cfg.Remote.Namespace,
		"CARDFS_SURREAL_DB":    &cfg.Remote.Database,
		"CARDFS_SURREAL_USER":  &cfg.Remote.Username,
		"CARDFS_SURREAL_PASS":  &cfg.Remote.Password,
		"CARDFS_S3_ENDPOINT":   &cfg.Asset.Endpoint,
		"CARDFS_S3_REGION":     &cfg.Asset.Region,
		"CARDFS_S3_BUCKET":     &cfg.Asset.Bucket,
		"CARDFS_S3_ACCESS_KEY": &cfg.Asset.AccessKey,
		"CARDFS_S3_SECRET_KEY": &cfg.Asset.SecretKey,
		"CARDFS_S3_PUBLIC_URL": &cfg.Asset.PublicURL,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("CARDFS_MAX_CARDS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CARDFS_MAX_CARDS: %w", err)
		}
		cfg.Editor.MaxCards = n
	}
	if v, ok := lookup("CARDFS_MASS_CREATE"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CARDFS_MASS_CREATE: %w", err)
		}
		cfg.Editor.MassCreate = b
	}
	return nil
}

// Validate checks cfg against the embedded schema.
func Validate(cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	value := ctx.CompileBytes(data, cue.Filename("config"))
	if err := value.Err(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
