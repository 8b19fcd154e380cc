package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	PasswordBcrypt   = "bcrypt"
	PasswordArgon2id = "argon2id"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port              string        `yaml:"port" env:"PORT"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`
	Log struct {
		Format string `yaml:"format" env:"LOG_FORMAT"` // "console" or "json"
	} `yaml:"log"`
	Database struct {
		Driver string `yaml:"driver" env:"DATABASE_DRIVER"`
		URL    string `yaml:"url" env:"DATABASE_URL"`
	} `yaml:"database"`
	JWT struct {
		Secret                   string `yaml:"secret" env:"JWT_SECRET"`
		Algorithm                string `yaml:"algorithm" env:"JWT_ALGORITHM"`
		AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES"`
		RefreshTokenExpireDays   int    `yaml:"refresh_token_expire_days" env:"REFRESH_TOKEN_EXPIRE_DAYS"`
	} `yaml:"jwt"`
	Password struct {
		Algorithm  string `yaml:"algorithm" env:"PASSWORD_ALGORITHM"`
		BcryptCost int    `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
	} `yaml:"password"`
	Login struct {
		MaxAttempts int           `yaml:"max_attempts" env:"LOGIN_MAX_ATTEMPTS"`
		Window      time.Duration `yaml:"window" env:"LOGIN_WINDOW"`
	} `yaml:"login"`
	Gemini struct {
		APIKey            string        `yaml:"api_key" env:"GEMINI_API_KEY"`
		ModelName         string        `yaml:"model_name" env:"GEMINI_MODEL"`
		MaxRetries        int           `yaml:"max_retries" env:"GEMINI_MAX_RETRIES"`
		RetryDelay        time.Duration `yaml:"retry_delay" env:"GEMINI_RETRY_DELAY"`
		RequestsPerMinute int           `yaml:"requests_per_minute" env:"GEMINI_REQUESTS_PER_MINUTE"`
	} `yaml:"gemini"`
	Upload struct {
		MaxSize         int64 `yaml:"max_size" env:"MAX_UPLOAD_SIZE"`
		DefaultNumCards int   `yaml:"default_num_cards" env:"DEFAULT_NUM_CARDS"`
	} `yaml:"upload"`
	Redis struct {
		URL string `yaml:"url" env:"REDIS_URL"`
	} `yaml:"redis"`
	S3 struct {
		Enabled        bool   `yaml:"enabled" env:"S3_ENABLED"`
		Bucket         string `yaml:"bucket" env:"S3_BUCKET"`
		Region         string `yaml:"region" env:"S3_REGION"`
		AccessKeyID    string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
		SecretKey      string `yaml:"secret_key" env:"S3_SECRET_KEY"`
		Endpoint       string `yaml:"endpoint" env:"S3_ENDPOINT"`
		ForcePathStyle bool   `yaml:"force_path_style" env:"S3_FORCE_PATH_STYLE"`
	} `yaml:"s3"`
}

// LoadConfig reads the YAML file at configPath (if it exists), then applies
// variables from .env and the process environment on top of it.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	if configPath != "" {
		file, err := os.Open(configPath)
		switch {
		case err == nil:
			defer file.Close()
			decoder := yaml.NewDecoder(file)
			if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// environment-only deployment
		default:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	}

	// The .env file is optional.
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.URL == "" && c.Database.Driver == DriverSQLite {
		c.Database.URL = "./data/flashcards.db"
	}
	if c.JWT.Algorithm == "" {
		c.JWT.Algorithm = "HS256"
	}
	if c.JWT.AccessTokenExpireMinutes == 0 {
		c.JWT.AccessTokenExpireMinutes = 30
	}
	if c.JWT.RefreshTokenExpireDays == 0 {
		c.JWT.RefreshTokenExpireDays = 7
	}
	if c.Password.Algorithm == "" {
		c.Password.Algorithm = PasswordBcrypt
	}
	if c.Password.BcryptCost == 0 {
		c.Password.BcryptCost = 10
	}
	if c.Login.MaxAttempts == 0 {
		c.Login.MaxAttempts = 10
	}
	if c.Login.Window == 0 {
		c.Login.Window = 15 * time.Minute
	}
	if c.Gemini.ModelName == "" {
		c.Gemini.ModelName = "gemini-2.0-flash"
	}
	if c.Gemini.MaxRetries == 0 {
		c.Gemini.MaxRetries = 3
	}
	if c.Gemini.RetryDelay == 0 {
		c.Gemini.RetryDelay = 2 * time.Second
	}
	if c.Gemini.RequestsPerMinute == 0 {
		c.Gemini.RequestsPerMinute = 8
	}
	if c.Upload.MaxSize == 0 {
		c.Upload.MaxSize = 10 << 20
	}
	if c.Upload.DefaultNumCards == 0 {
		c.Upload.DefaultNumCards = 5
	}
}

// Validate reports the first setting that would prevent the server from starting.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWT.Algorithm)
	}
	if c.JWT.AccessTokenExpireMinutes < 0 || c.JWT.RefreshTokenExpireDays < 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.AccessTokenTTL() >= c.RefreshTokenTTL() {
		return errors.New("access token lifetime must be shorter than refresh token lifetime")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.Password.Algorithm {
	case PasswordBcrypt, PasswordArgon2id:
	default:
		return fmt.Errorf("unsupported password algorithm %q", c.Password.Algorithm)
	}
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost %d out of range 4..31", c.Password.BcryptCost)
	}
	if c.Upload.MaxSize <= 0 {
		return errors.New("MAX_UPLOAD_SIZE must be positive")
	}
	if c.S3.Enabled && (c.S3.Bucket == "" || c.S3.Region == "") {
		return errors.New("s3 bucket and region are required when s3 is enabled")
	}
	return nil
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.JWT.RefreshTokenExpireDays) * 24 * time.Hour
}
