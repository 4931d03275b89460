package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/teeroy47/murimi/internal/db"
	syncengine "github.com/teeroy47/murimi/internal/sync"
)

// Config is the full service configuration.
type Config struct {
	ListenAddr     string
	MigrationsPath string
	PullPageSize   int
	Database       db.Config
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		MigrationsPath: "./migrations",
		PullPageSize:   syncengine.DefaultPullPageSize,
		Database:       db.DefaultConfig(),
	}
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()         // allow environment overrides
	v.SetEnvPrefix("MURIMI") // map env vars like MURIMI_DATABASE.HOST

	v.BindEnv("server.addr")
	v.BindEnv("sync.pull_page_size")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("server.addr") {
		cfg.ListenAddr = v.GetString("server.addr")
	}
	if v.IsSet("server.migrations_path") {
		cfg.MigrationsPath = v.GetString("server.migrations_path")
	}
	if v.IsSet("sync.pull_page_size") {
		cfg.PullPageSize = v.GetInt("sync.pull_page_size")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}
