package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	AMQPURL     string

	// MigrationsDir, when set, makes the server apply pending migrations
	// on startup.
	MigrationsDir string

	UPIPayeeID   string
	UPIPayeeName string
	Currency     string

	RateLimitPerMinute        int
	RateLimitBurst            int
	SessionRateLimitPerMinute int
	SessionRateLimitBurst     int
}

func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:          port,
		DatabaseURL:   os.Getenv("DB_DSN"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		MigrationsDir: os.Getenv("MIGRATIONS_DIR"),

		UPIPayeeID:   readString("UPI_PAYEE_ID", "restaurant@upi"),
		UPIPayeeName: readString("UPI_PAYEE_NAME", "Restaurant"),
		Currency:     readString("CURRENCY", "INR"),

		RateLimitPerMinute:        readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:            readInt("RATE_LIMIT_BURST", 30),
		SessionRateLimitPerMinute: readInt("SESSION_RATE_LIMIT_PER_MIN", 600),
		SessionRateLimitBurst:     readInt("SESSION_RATE_LIMIT_BURST", 120),
	}
}

func readString(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
