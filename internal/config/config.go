package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	InputPath  string
	InputType  string
	InputSheet string
	OutputPath string

	DBDriver  string
	DBDSN     string
	DBMaxOpen int

	ProfilePath string
	Title       string
	Year        string

	LogLevel  string
	LogFormat string

	FetchTimeoutMs    int
	FetchRateLimitRPS int
	FetchMaxAttempts  int

	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	WatchDebounceMs int
	ArchiveDir      string
}

// Load reads .env, an optional YAML file named by SSR_CONFIG, and SSR_*
// environment variables, in increasing priority.
func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("SSR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("input.path", filepath.Join(cwd, "data", "ssr.xlsx"))
	v.SetDefault("input.type", "")
	v.SetDefault("input.sheet", "")
	v.SetDefault("output.path", "-")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", filepath.Join(cwd, "data", "ssr.db"))
	v.SetDefault("db.max_open", 4)

	v.SetDefault("profile.path", "")
	v.SetDefault("schedule.title", "")
	v.SetDefault("schedule.year", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("fetch.timeout_ms", 30000)
	v.SetDefault("fetch.rate_limit_rps", 2)
	v.SetDefault("fetch.max_attempts", 5)

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")

	v.SetDefault("watch.debounce_ms", 500)
	v.SetDefault("archive.dir", "")

	if path := strings.TrimSpace(os.Getenv("SSR_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		InputPath:  v.GetString("input.path"),
		InputType:  v.GetString("input.type"),
		InputSheet: v.GetString("input.sheet"),
		OutputPath: v.GetString("output.path"),

		DBDriver:  v.GetString("db.driver"),
		DBDSN:     v.GetString("db.dsn"),
		DBMaxOpen: v.GetInt("db.max_open"),

		ProfilePath: v.GetString("profile.path"),
		Title:       v.GetString("schedule.title"),
		Year:        v.GetString("schedule.year"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),

		FetchTimeoutMs:    v.GetInt("fetch.timeout_ms"),
		FetchRateLimitRPS: v.GetInt("fetch.rate_limit_rps"),
		FetchMaxAttempts:  v.GetInt("fetch.max_attempts"),

		S3Region:    v.GetString("s3.region"),
		S3Endpoint:  v.GetString("s3.endpoint"),
		S3AccessKey: v.GetString("s3.access_key"),
		S3SecretKey: v.GetString("s3.secret_key"),

		WatchDebounceMs: v.GetInt("watch.debounce_ms"),
		ArchiveDir:      v.GetString("archive.dir"),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required setting: %s", name)
	}
	return nil
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

func (c Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}
