package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	WebPort           int
	DataDir           string
	SoapURL           string
	UseProductionSOAP bool
	LogLevel          string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		WebPort:           getEnvAsInt("WEB_PORT", 3000),
		DataDir:           getEnv("DATA_DIR", "/data"),
		SoapURL:           getEnv("SOAP_URL", "http://ae89:8086/gxsalud/servlet/com.asesp.gxsalud.alabwbs01"),
		UseProductionSOAP: getEnvAsBool("USE_PRODUCTION_SOAP", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	setupLogger(cfg.LogLevel)

	slog.Info("Configuración cargada",
		"webPort", cfg.WebPort,
		"dataDir", cfg.DataDir,
		"soapProduction", cfg.UseProductionSOAP,
	)

	return cfg, nil
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

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)
}
