package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	API     APIConfig
	Stream  StreamConfig
	Extract ExtractConfig
}

type ServerConfig struct {
	Port     string
	LogLevel string
}

// APIConfig locates the remote Yapper video-processing API.
type APIConfig struct {
	BaseURL string
	Timeout int // seconds
}

// StreamConfig bounds the push-stream reconnection policy.
type StreamConfig struct {
	BackoffSeconds int
	MaxRetries     int
}

// ExtractConfig holds defaults applied when the frontend omits them.
type ExtractConfig struct {
	SubtitleLanguage string
	NoAutoSubs       bool
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("api.base_url", "YAPPER_API_URL")
	_ = viper.BindEnv("api.timeout", "YAPPER_API_TIMEOUT")
	_ = viper.BindEnv("stream.backoff_seconds", "STREAM_BACKOFF_SECONDS")
	_ = viper.BindEnv("stream.max_retries", "STREAM_MAX_RETRIES")
	_ = viper.BindEnv("extract.subtitle_language", "EXTRACT_SUBTITLE_LANGUAGE")
	_ = viper.BindEnv("extract.no_auto_subs", "EXTRACT_NO_AUTO_SUBS")

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("api.base_url", "http://localhost:8000")
	viper.SetDefault("api.timeout", 120)
	viper.SetDefault("stream.backoff_seconds", 2)
	viper.SetDefault("stream.max_retries", 3)
	viper.SetDefault("extract.subtitle_language", "en")
	viper.SetDefault("extract.no_auto_subs", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			LogLevel: viper.GetString("server.log_level"),
		},
		API: APIConfig{
			BaseURL: viper.GetString("api.base_url"),
			Timeout: viper.GetInt("api.timeout"),
		},
		Stream: StreamConfig{
			BackoffSeconds: viper.GetInt("stream.backoff_seconds"),
			MaxRetries:     viper.GetInt("stream.max_retries"),
		},
		Extract: ExtractConfig{
			SubtitleLanguage: viper.GetString("extract.subtitle_language"),
			NoAutoSubs:       viper.GetBool("extract.no_auto_subs"),
		},
	}

	return cfg, nil
}
