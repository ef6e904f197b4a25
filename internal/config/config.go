package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Media    MediaConfig    `mapstructure:"media"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Review   ReviewConfig   `mapstructure:"review"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Per-wallet limit on uploads and submission creates.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// RedisConfig enables the Redis submission counter when Enabled is set.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
	UseSSL          bool          `mapstructure:"use_ssl"`
}

// JWTConfig holds the secret shared with the external auth service.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// MediaConfig bounds what MediaIngestor accepts.
type MediaConfig struct {
	ImageMaxBytes int64         `mapstructure:"image_max_bytes"`
	VideoMaxBytes int64         `mapstructure:"video_max_bytes"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
}

// LedgerConfig points at the external reward ledger.
type LedgerConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ServiceToken string        `mapstructure:"service_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ReviewConfig struct {
	ReviewerWallets []string `mapstructure:"reviewer_wallets"`
}

type SyncConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, media.image_max_bytes -> MEDIA_IMAGE_MAX_BYTES
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	// A missing file is fine; env vars and defaults may be enough.
	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.rate_limit_per_minute", 30)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "bounty_pipeline")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.public_base_url", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.presign_expiry", "1h")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("media.image_max_bytes", 10<<20)
	v.SetDefault("media.video_max_bytes", 200<<20)
	v.SetDefault("media.upload_timeout", "60s")
	v.SetDefault("ledger.base_url", "")
	v.SetDefault("ledger.service_token", "")
	v.SetDefault("ledger.timeout", "5s")
	v.SetDefault("review.reviewer_wallets", []string{})
	v.SetDefault("sync.poll_interval", "15s")
	v.SetDefault("log.level", "info")
}
