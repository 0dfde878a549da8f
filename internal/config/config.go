package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Quotes   Quotes   `mapstructure:"quotes"`
	Session  Session  `mapstructure:"session"`
	Trading  Trading  `mapstructure:"trading"`
	Logger   Logger   `mapstructure:"logger"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Quotes holds the configuration for the quote provider API.
type Quotes struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Session holds the configuration for the session cookie.
type Session struct {
	Secret     string `mapstructure:"secret"`
	CookieName string `mapstructure:"cookie_name"`
}

// Trading holds the simulated trading rules.
type Trading struct {
	StartingCash float64 `mapstructure:"starting_cash"`
	FeeFlat      float64 `mapstructure:"fee_flat"`
	FeeRate      float64 `mapstructure:"fee_rate"`
	HouseAccount string  `mapstructure:"house_account"`
	HomeTicker   string  `mapstructure:"home_ticker"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("quotes.base_url", "https://query1.finance.yahoo.com")
	viper.SetDefault("quotes.rate_limit", 10) // requests per second
	viper.SetDefault("quotes.rate_limit_burst", 5)
	viper.SetDefault("quotes.timeout_seconds", 10)
	viper.SetDefault("session.cookie_name", "session")
	viper.SetDefault("trading.starting_cash", 10000)
	viper.SetDefault("trading.fee_flat", 0.50)
	viper.SetDefault("trading.fee_rate", 0.003)
	viper.SetDefault("trading.house_account", "admin")
	viper.SetDefault("trading.home_ticker", "uber")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
