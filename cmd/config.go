package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all service configuration
type Config struct {
	// Server settings
	HTTPAddress string
	FrontendURL string

	// PostgreSQL and Redis
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Remote file store
	GoogleCredentialsFile string
	DriveRootFolder       string
	DriveSharedFolderID   string

	// EPS gateway
	EPSBaseURL   string
	EPSUsername  string
	EPSPassword  string
	EPSHashKey   string
	EPSStoreID   string
	EPSLiveMode  bool
	CallbackBase string

	// bKash gateway
	BkashAppKey    string
	BkashAppSecret string
	BkashUsername  string
	BkashPassword  string
	BkashLiveMode  bool

	// Uddoktapay gateway
	UddoktapayAPIKey  string
	UddoktapayBaseURL string

	// Transactional mail
	ResendAPIKey string
	MailFrom     string
}

// LoadConfig loads configuration from files and environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Configure environment variables - do this BEFORE reading config
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"HTTPAddress":           "HTTP_ADDRESS",
		"FrontendURL":           "FRONTEND_URL",
		"PostgresDSN":           "POSTGRES_DSN",
		"RedisAddr":             "REDIS_ADDR",
		"RedisPassword":         "REDIS_PASSWORD",
		"RedisDB":               "REDIS_DB",
		"GoogleCredentialsFile": "GOOGLE_CREDENTIALS_FILE",
		"DriveRootFolder":       "DRIVE_ROOT_FOLDER",
		"DriveSharedFolderID":   "DRIVE_SHARED_FOLDER_ID",
		"EPSBaseURL":            "EPS_BASE_URL",
		"EPSUsername":           "EPS_USERNAME",
		"EPSPassword":           "EPS_PASSWORD",
		"EPSHashKey":            "EPS_HASH_KEY",
		"EPSStoreID":            "EPS_STORE_ID",
		"EPSLiveMode":           "EPS_LIVE_MODE",
		"CallbackBase":          "CALLBACK_BASE_URL",
		"BkashAppKey":           "BKASH_APP_KEY",
		"BkashAppSecret":        "BKASH_APP_SECRET",
		"BkashUsername":         "BKASH_USERNAME",
		"BkashPassword":         "BKASH_PASSWORD",
		"BkashLiveMode":         "BKASH_LIVE_MODE",
		"UddoktapayAPIKey":      "UDDOKTAPAY_API_KEY",
		"UddoktapayBaseURL":     "UDDOKTAPAY_BASE_URL",
		"ResendAPIKey":          "RESEND_API_KEY",
		"MailFrom":              "MAIL_FROM",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("mouzadrive_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.mouzadrive")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTPAddress", ":8080")
	v.SetDefault("FrontendURL", "http://localhost:3000")
	v.SetDefault("RedisAddr", "localhost:6379")
	v.SetDefault("RedisDB", 0)
	v.SetDefault("DriveRootFolder", "মৌজা ম্যাপ ফাইল")
	v.SetDefault("UddoktapayBaseURL", "https://pay.bdmouza.com")
}

// validateConfig validates the required configuration fields
func validateConfig(config *Config) error {
	var missingVars []string

	if config.PostgresDSN == "" {
		missingVars = append(missingVars, "POSTGRES_DSN")
	}

	if config.GoogleCredentialsFile == "" {
		missingVars = append(missingVars, "GOOGLE_CREDENTIALS_FILE")
	}

	if config.EPSBaseURL == "" {
		missingVars = append(missingVars, "EPS_BASE_URL")
	}

	if config.EPSUsername == "" {
		missingVars = append(missingVars, "EPS_USERNAME")
	}

	if config.EPSPassword == "" {
		missingVars = append(missingVars, "EPS_PASSWORD")
	}

	if config.EPSHashKey == "" {
		missingVars = append(missingVars, "EPS_HASH_KEY")
	}

	if config.EPSStoreID == "" {
		missingVars = append(missingVars, "EPS_STORE_ID")
	}

	if config.CallbackBase == "" {
		missingVars = append(missingVars, "CALLBACK_BASE_URL")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	return nil
}
