package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultLogLevel   = "info"
	DefaultDriver     = "sqlite"
	DefaultDBFileName = "clinic.db"
	DefaultBlobDir    = "uploads"
	DefaultBackend    = "local"
	DefaultMatchMode  = "prefix"

	configFileName = ".filerecon.toml"
	envFileName    = ".env"

	configDirEnvKey          = "FILERECON_CONFIG_DIR"
	trustProjectConfigEnvKey = "FILERECON_TRUST_PROJECT_CONFIG"
)

// DatabaseConfig selects the record store.
type DatabaseConfig struct {
	Driver string `toml:"driver" validate:"oneof=sqlite postgres mysql"`
	Path   string `toml:"path" validate:"required_if=Driver sqlite"`
	DSN    string `toml:"dsn" validate:"required_unless=Driver sqlite"`
}

// S3Config locates blobs stored in an S3 bucket.
type S3Config struct {
	Bucket         string `toml:"bucket"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint" validate:"omitempty,url"`
	Prefix         string `toml:"prefix"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// Static credentials. Both empty selects the AWS default credential chain.
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// BlobsConfig selects the upload store.
type BlobsConfig struct {
	Backend string   `toml:"backend" validate:"oneof=local s3"`
	Dir     string   `toml:"dir" validate:"required_if=Backend local"`
	S3      S3Config `toml:"s3"`
}

// ReconcileConfig tunes reconciliation passes.
type ReconcileConfig struct {
	MatchMode string `toml:"match_mode" validate:"oneof=prefix strict"`
	StatBlobs bool   `toml:"stat_blobs"`
}

// MetricsConfig controls the textfile metrics output.
type MetricsConfig struct {
	TextfilePath string `toml:"textfile_path"`
}

// Config defines runtime configuration for filerecon.
type Config struct {
	LogLevel  string          `toml:"log_level"`
	Database  DatabaseConfig  `toml:"database"`
	Blobs     BlobsConfig     `toml:"blobs"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Metrics   MetricsConfig   `toml:"metrics"`

	TrustedProjectConfigPath string `toml:"-"`
	EnvFilePath              string `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Database: DatabaseConfig{Driver: DefaultDriver},
		Blobs:    BlobsConfig{Backend: DefaultBackend},
		Reconcile: ReconcileConfig{
			MatchMode: DefaultMatchMode,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

// loadEnvFile reads KEY=VALUE pairs from path without overriding variables
// already present in the environment.
func loadEnvFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"log_level",
	"database.driver",
	"database.path",
	"database.dsn",
	"blobs.backend",
	"blobs.dir",
	"blobs.s3.bucket",
	"blobs.s3.region",
	"blobs.s3.endpoint",
	"blobs.s3.prefix",
	"blobs.s3.force_path_style",
	"blobs.s3.access_key_id",
	"blobs.s3.secret_access_key",
	"reconcile.match_mode",
	"reconcile.stat_blobs",
	"metrics.textfile_path",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "log_level":
		return c.LogLevel, nil
	case "database.driver":
		return c.Database.Driver, nil
	case "database.path":
		return c.Database.Path, nil
	case "database.dsn":
		return redactDSN(c.Database.DSN), nil
	case "blobs.backend":
		return c.Blobs.Backend, nil
	case "blobs.dir":
		return c.Blobs.Dir, nil
	case "blobs.s3.bucket":
		return c.Blobs.S3.Bucket, nil
	case "blobs.s3.region":
		return c.Blobs.S3.Region, nil
	case "blobs.s3.endpoint":
		return c.Blobs.S3.Endpoint, nil
	case "blobs.s3.prefix":
		return c.Blobs.S3.Prefix, nil
	case "blobs.s3.force_path_style":
		return strconv.FormatBool(c.Blobs.S3.ForcePathStyle), nil
	case "blobs.s3.access_key_id":
		return c.Blobs.S3.AccessKeyID, nil
	case "blobs.s3.secret_access_key":
		return redactSecret(c.Blobs.S3.SecretAccessKey), nil
	case "reconcile.match_mode":
		return c.Reconcile.MatchMode, nil
	case "reconcile.stat_blobs":
		return strconv.FormatBool(c.Reconcile.StatBlobs), nil
	case "metrics.textfile_path":
		return c.Metrics.TextfilePath, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads .env and config from trusted files, applies env overrides and
// validates the result.
func Load() (*Config, error) {
	cfg := Default()

	if cwd, err := os.Getwd(); err == nil {
		envPath := filepath.Join(cwd, envFileName)
		loaded, err := loadEnvFile(envPath)
		if err != nil {
			return nil, err
		}
		if loaded {
			cfg.EnvFilePath = envPath
		}
	}

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := envValue("FILERECON_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := envValue("FILERECON_DB_DSN", "DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := envValue("FILERECON_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := envValue("FILERECON_BLOB_DIR", "UPLOAD_DIR"); v != "" {
		c.Blobs.Dir = v
	}
	if v := envValue("FILERECON_S3_ACCESS_KEY_ID"); v != "" {
		c.Blobs.S3.AccessKeyID = v
	}
	if v := envValue("FILERECON_S3_SECRET_ACCESS_KEY"); v != "" {
		c.Blobs.S3.SecretAccessKey = v
	}
	if v := envValue("FILERECON_MATCH_MODE"); v != "" {
		c.Reconcile.MatchMode = v
	}
	if v := envValue("FILERECON_METRICS_TEXTFILE"); v != "" {
		c.Metrics.TextfilePath = v
	}
}

// envValue returns the first non-empty value among keys.
func envValue(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

var driverAliases = map[string]string{
	"sqlite3":    "sqlite",
	"postgresql": "postgres",
	"pgx":        "postgres",
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if alias, ok := driverAliases[c.Database.Driver]; ok {
		c.Database.Driver = alias
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.Driver == "sqlite" && strings.TrimSpace(c.Database.Path) == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.Database.Path = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	c.Blobs.Backend = strings.ToLower(strings.TrimSpace(c.Blobs.Backend))
	if c.Blobs.Backend == "" {
		c.Blobs.Backend = DefaultBackend
	}
	if c.Blobs.Backend == "local" && strings.TrimSpace(c.Blobs.Dir) == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.Blobs.Dir = filepath.Join(cwd, DefaultBlobDir)
		}
	}

	c.Reconcile.MatchMode = strings.ToLower(strings.TrimSpace(c.Reconcile.MatchMode))
	if c.Reconcile.MatchMode == "" {
		c.Reconcile.MatchMode = DefaultMatchMode
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateBlobs, BlobsConfig{})
	return v
}

func validateBlobs(sl validator.StructLevel) {
	blobs := sl.Current().Interface().(BlobsConfig)
	if blobs.Backend == "s3" && strings.TrimSpace(blobs.S3.Bucket) == "" {
		sl.ReportError(blobs.S3.Bucket, "bucket", "Bucket", "required_with_s3", "")
	}
	// Static credentials come in pairs.
	hasID := strings.TrimSpace(blobs.S3.AccessKeyID) != ""
	hasSecret := strings.TrimSpace(blobs.S3.SecretAccessKey) != ""
	if hasID && !hasSecret {
		sl.ReportError(blobs.S3.SecretAccessKey, "secret_access_key", "SecretAccessKey", "required_with_s3", "")
	}
	if hasSecret && !hasID {
		sl.ReportError(blobs.S3.AccessKeyID, "access_key_id", "AccessKeyID", "required_with_s3", "")
	}
}

// Validate checks the config values. Error messages use TOML key names.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	if fe.Tag() == "required_with_s3" {
		key = "blobs.s3." + fe.Field()
	}
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "required_if", "required_unless", "required_with_s3":
		return fmt.Sprintf("%s is required", key)
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", key, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}

// redactDSN hides a password embedded in a URL-style DSN.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":xxxxx@" + host
}

// redactSecret hides a secret value while showing whether it is set.
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "xxxxx"
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "blobs.s3.force_path_style", "reconcile.stat_blobs":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "database.driver":
		value = strings.ToLower(value)
		if alias, ok := driverAliases[value]; ok {
			value = alias
		}
		if value != "sqlite" && value != "postgres" && value != "mysql" {
			return nil, fmt.Errorf("%s must be sqlite, postgres or mysql", key)
		}
		return value, nil
	case "blobs.backend":
		value = strings.ToLower(value)
		if value != "local" && value != "s3" {
			return nil, fmt.Errorf("%s must be local or s3", key)
		}
		return value, nil
	case "reconcile.match_mode":
		value = strings.ToLower(value)
		if value != "prefix" && value != "strict" {
			return nil, fmt.Errorf("%s must be prefix or strict", key)
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
