package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Valeurs par défaut des seuils métier
const (
	DefaultLoyaltySessionCutoff         = 5
	DefaultLowFunnelAlertThreshold      = 0.1
	DefaultMaxSessionGapMinutes         = 120
	DefaultAlertDropPct                 = 0.1
	DefaultHighConvertingBrandThreshold = 0.1
)

// ConfigError signale une configuration irrécupérable au démarrage
type ConfigError struct {
	Field  string
	Reason string
}

// Error implémente error
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Field, e.Reason)
}

// Config regroupe les seuils métier et les chemins du pipeline
// Struct explicite passée à chaque étape: les tests surchargent les
// seuils sans toucher d'état partagé
type Config struct {
	// Seuils métier
	LoyaltySessionCutoff         int
	LowFunnelAlertThreshold      float64
	MaxSessionGap                time.Duration
	AlertDropPct                 float64
	HighConvertingBrandThreshold float64

	// Fuseau horaire supposé pour les timestamps naïfs
	DefaultLocation *time.Location

	// Chemins
	DataPath  string
	OutputDir string

	// Entrepôt Postgres (source alternative d'événements bruts)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
}

// Default retourne une configuration avec les valeurs par défaut
func Default() Config {
	return Config{
		LoyaltySessionCutoff:         DefaultLoyaltySessionCutoff,
		LowFunnelAlertThreshold:      DefaultLowFunnelAlertThreshold,
		MaxSessionGap:                DefaultMaxSessionGapMinutes * time.Minute,
		AlertDropPct:                 DefaultAlertDropPct,
		HighConvertingBrandThreshold: DefaultHighConvertingBrandThreshold,
		DefaultLocation:              time.UTC,
		DataPath:                     "data/raw/events.csv",
		OutputDir:                    "outputs",
		DBHost:                       "localhost",
		DBPort:                       "5432",
		DBUser:                       "clickpulse",
		DBPassword:                   "clickpulse",
		DBName:                       "clickpulse",
		DBSSLMode:                    "disable",
	}
}

// Load charge la configuration depuis l'environnement (.env optionnel)
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	var err error
	if cfg.LoyaltySessionCutoff, err = intEnv("LOYALTY_SESSION_CUTOFF", cfg.LoyaltySessionCutoff); err != nil {
		return Config{}, err
	}
	if cfg.LowFunnelAlertThreshold, err = floatEnv("LOW_FUNNEL_ALERT_THRESHOLD", cfg.LowFunnelAlertThreshold); err != nil {
		return Config{}, err
	}
	gapMinutes, err := intEnv("MAX_SESSION_DURATION_MINUTES", DefaultMaxSessionGapMinutes)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSessionGap = time.Duration(gapMinutes) * time.Minute
	if cfg.AlertDropPct, err = floatEnv("ALERT_DROP_PCT", cfg.AlertDropPct); err != nil {
		return Config{}, err
	}
	if cfg.HighConvertingBrandThreshold, err = floatEnv("HIGH_CONVERTING_BRAND_THRESHOLD", cfg.HighConvertingBrandThreshold); err != nil {
		return Config{}, err
	}

	if tz := os.Getenv("DEFAULT_TIMEZONE"); tz != "" {
		loc, locErr := time.LoadLocation(tz)
		if locErr != nil {
			return Config{}, &ConfigError{Field: "DEFAULT_TIMEZONE", Reason: locErr.Error()}
		}
		cfg.DefaultLocation = loc
	}

	cfg.DataPath = getEnv("DATA_PATH", cfg.DataPath)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)

	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = getEnv("DB_SSLMODE", cfg.DBSSLMode)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate vérifie la cohérence des seuils
func (c Config) Validate() error {
	if c.LoyaltySessionCutoff < 1 {
		return &ConfigError{Field: "LOYALTY_SESSION_CUTOFF", Reason: "must be at least 1"}
	}
	if c.LowFunnelAlertThreshold < 0 || c.LowFunnelAlertThreshold > 1 {
		return &ConfigError{Field: "LOW_FUNNEL_ALERT_THRESHOLD", Reason: "must be within [0,1]"}
	}
	if c.MaxSessionGap <= 0 {
		return &ConfigError{Field: "MAX_SESSION_DURATION_MINUTES", Reason: "must be positive"}
	}
	if c.AlertDropPct <= 0 {
		return &ConfigError{Field: "ALERT_DROP_PCT", Reason: "must be positive"}
	}
	if c.HighConvertingBrandThreshold < 0 || c.HighConvertingBrandThreshold > 1 {
		return &ConfigError{Field: "HIGH_CONVERTING_BRAND_THRESHOLD", Reason: "must be within [0,1]"}
	}
	if c.DefaultLocation == nil {
		return &ConfigError{Field: "DEFAULT_TIMEZONE", Reason: "location not resolved"}
	}
	return nil
}

// ConnString construit la chaîne de connexion Postgres
func (c Config) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// getEnv récupère une variable d'environnement avec fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// intEnv lit un entier depuis l'environnement
func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigError{Field: key, Reason: "not an integer: " + raw}
	}
	return v, nil
}

// floatEnv lit un flottant depuis l'environnement
func floatEnv(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ConfigError{Field: key, Reason: "not a number: " + raw}
	}
	return v, nil
}
