package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chrome   ChromeConfig
	Replay   ReplayConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Charset  string
}

type ChromeConfig struct {
	HeadlessMode bool
	ExecPath     string
	WindowWidth  int
	WindowHeight int
}

type ReplayConfig struct {
	// StepTimeout bounds each replayed step, locating included.
	StepTimeout time.Duration
	// PollInterval paces element resolution retries.
	PollInterval time.Duration
	// NavigationGrace is the quiet window a page load must survive before a
	// suspended run continues.
	NavigationGrace time.Duration
	// MaxWorkers caps concurrently running replays.
	MaxWorkers int
}

type LogConfig struct {
	Level  string
	Format string // console, json
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Mode:         getEnv("SERVER_MODE", "debug"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "3306"),
			Username: getEnv("DB_USERNAME", "root"),
			Password: getEnv("DB_PASSWORD", "root"),
			Database: getEnv("DB_NAME", "flowreplay"),
			Charset:  getEnv("DB_CHARSET", "utf8mb4"),
		},
		Chrome: ChromeConfig{
			HeadlessMode: getEnvAsBool("CHROME_HEADLESS", true),
			ExecPath:     getEnv("CHROME_PATH", ""),
			WindowWidth:  getEnvAsInt("CHROME_WINDOW_WIDTH", 1920),
			WindowHeight: getEnvAsInt("CHROME_WINDOW_HEIGHT", 1080),
		},
		Replay: ReplayConfig{
			StepTimeout:     getEnvAsDuration("REPLAY_STEP_TIMEOUT", 30*time.Second),
			PollInterval:    getEnvAsDuration("REPLAY_POLL_INTERVAL", 500*time.Millisecond),
			NavigationGrace: getEnvAsDuration("REPLAY_NAVIGATION_GRACE", time.Second),
			MaxWorkers:      getEnvAsInt("REPLAY_MAX_WORKERS", 4),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	return config, nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
