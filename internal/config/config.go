package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server   ServerConfig
	Remotion RemotionConfig
	Telegram TelegramConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RemotionConfig struct {
	// EngineURL is the base URL of the Remotion render sidecar.
	EngineURL string
	// ServeURL points at a pre-built Remotion bundle. When empty the server
	// asks the sidecar to bundle the project at startup.
	ServeURL      string
	CompositionID string
	Codec         string
}

type TelegramConfig struct {
	BotToken string
	// APIEndpoint overrides the Telegram Bot API endpoint (tests, proxies).
	APIEndpoint string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("TELEGRAM_BOT_TOKEN")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("remotion.engine_url", "REMOTION_ENGINE_URL")
	_ = viper.BindEnv("remotion.serve_url", "REMOTION_SERVE_URL")
	_ = viper.BindEnv("remotion.composition_id", "REMOTION_COMPOSITION_ID")
	_ = viper.BindEnv("remotion.codec", "REMOTION_CODEC")
	_ = viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	_ = viper.BindEnv("telegram.api_endpoint", "TELEGRAM_API_ENDPOINT")

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("remotion.engine_url", "http://localhost:3001")
	viper.SetDefault("remotion.composition_id", "QuizVideo")
	viper.SetDefault("remotion.codec", "h264")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Remotion: RemotionConfig{
			EngineURL:     viper.GetString("remotion.engine_url"),
			ServeURL:      viper.GetString("remotion.serve_url"),
			CompositionID: viper.GetString("remotion.composition_id"),
			Codec:         viper.GetString("remotion.codec"),
		},
		Telegram: TelegramConfig{
			BotToken:    viper.GetString("telegram.bot_token"),
			APIEndpoint: viper.GetString("telegram.api_endpoint"),
		},
	}

	return cfg, nil
}
