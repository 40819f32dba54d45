package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log       Logger         `mapstructure:"logger"`
	DB        Database       `mapstructure:"database"`
	API       API            `mapstructure:"api"`
	Cache     Cache          `mapstructure:"cache"`
	Queue     Queue          `mapstructure:"queue"`
	Fetch     Fetch          `mapstructure:"fetch"`
	Schedule  Schedule       `mapstructure:"schedule"`
	Retention Retention      `mapstructure:"retention"`
	Sweeper   Sweeper        `mapstructure:"sweeper"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Discord   DiscordConfig  `mapstructure:"discord"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port int `mapstructure:"port"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// Queue holds per-queue worker counts. Small defaults bound outbound HTTP
// concurrency and database write pressure.
type Queue struct {
	FetchWorkers   int `mapstructure:"fetch_workers"`
	LogWorkers     int `mapstructure:"log_workers"`
	RestoreWorkers int `mapstructure:"restore_workers"`
	SweeperWorkers int `mapstructure:"sweeper_workers"`
}

type Fetch struct {
	TimeoutDuration time.Duration     `mapstructure:"timeout_duration"`
	MaxBodyLogBytes int64             `mapstructure:"max_body_log_bytes"`
	DefaultHeaders  map[string]string `mapstructure:"default_headers"`
}

type Schedule struct {
	MinInterval       time.Duration `mapstructure:"min_interval"`
	ValidationHorizon int           `mapstructure:"validation_horizon"`
	RestorePageSize   int           `mapstructure:"restore_page_size"`
}

type Retention struct {
	MaxLogsPerTask int `mapstructure:"max_logs_per_task"`
}

type Sweeper struct {
	Cron           string `mapstructure:"cron"`
	RetentionDays  int    `mapstructure:"retention_days"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

type TelegramConfig struct {
	BotToken                  string        `mapstructure:"bot_token"`
	ChatID                    string        `mapstructure:"chat_id"`
	TimeoutDuration           time.Duration `mapstructure:"timeout_duration"`
	MaxGlobalRequestPerSecond int           `mapstructure:"max_global_request_per_second"`
}

type DiscordConfig struct {
	WebhookURL                string        `mapstructure:"webhook_url"`
	TimeoutDuration           time.Duration `mapstructure:"timeout_duration"`
	MaxGlobalRequestPerSecond int           `mapstructure:"max_global_request_per_second"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("queue.fetch_workers", 5)
	viper.SetDefault("queue.log_workers", 2)
	viper.SetDefault("queue.restore_workers", 2)
	viper.SetDefault("queue.sweeper_workers", 1)

	viper.SetDefault("fetch.timeout_duration", 30*time.Second)
	viper.SetDefault("fetch.max_body_log_bytes", 50*1024)

	viper.SetDefault("schedule.min_interval", time.Minute)
	viper.SetDefault("schedule.validation_horizon", 2)
	viper.SetDefault("schedule.restore_page_size", 100)

	viper.SetDefault("retention.max_logs_per_task", 10)

	viper.SetDefault("sweeper.cron", "0 0 3 * * *")
	viper.SetDefault("sweeper.retention_days", 30)
	viper.SetDefault("sweeper.max_concurrency", 5)

	viper.SetDefault("cache.default_expiration", 24*time.Hour)
	viper.SetDefault("cache.cleanup_interval", time.Hour)
}
