package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug          bool
		TestMode       bool
		Env            string // DEV (default), TEST, QA, PROD
		AppName        string
		Build          string
		SchoolTimezone string
		AllowedOrigins []string
		RollbarToken   string

		Server struct {
			Host            string
			DebugHost       string
			ShutdownTimeout time.Duration
		}

		Database DatabaseConfig
	}

	DatabaseConfig struct {
		Engine     string // postgres | sqlite
		Name       string
		Path       string // sqlite file path
		Host       string
		Port       string
		User       string
		Password   string
		AdminUser  string
		AdminPass  string
		DisableTLS bool
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Begi")
	v.SetDefault("build", "dev")
	v.SetDefault("schoolTimezone", "Africa/Nairobi")
	v.SetDefault("allowedOrigins", []string{"*"})
	v.SetDefault("serverHost", "0.0.0.0:8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("databaseEngine", "sqlite")
	v.SetDefault("databaseName", "begi")
	v.SetDefault("databasePath", "begi.db")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseDisableTLS", true)

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		Env:            env,
		AppName:        v.GetString("appName"),
		Build:          v.GetString("build"),
		SchoolTimezone: v.GetString("schoolTimezone"),
		AllowedOrigins: v.GetStringSlice("allowedOrigins"),
		RollbarToken:   v.GetString("rollbarToken"),
	}
	conf.Server.Host = v.GetString("serverHost")
	conf.Server.DebugHost = v.GetString("serverDebugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("serverShutdownTimeout")
	conf.Database = DatabaseConfig{
		Engine:     v.GetString("databaseEngine"),
		Name:       v.GetString("databaseName"),
		Path:       v.GetString("databasePath"),
		Host:       v.GetString("databaseHost"),
		Port:       v.GetString("databasePort"),
		User:       v.GetString("databaseUser"),
		Password:   v.GetString("databasePassword"),
		AdminUser:  v.GetString("databaseAdminUser"),
		AdminPass:  v.GetString("databaseAdminPassword"),
		DisableTLS: v.GetBool("databaseDisableTLS"),
	}
	return conf
}
