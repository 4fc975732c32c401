package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration for the metadata service.
type Server struct {
	Addr          string
	PostgresURL   string
	RedisURL      string
	KafkaSeeds    []string
	KafkaTopic    string
	JWTSigningKey string
	IssuerKeyFile string
	ScopeName     string
	CacheTTL      time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SYNDIC_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	scope := os.Getenv("SYNDIC_SCOPE")
	if scope == "" {
		scope = "default"
	}

	topic := os.Getenv("SYNDIC_KAFKA_TOPIC")
	if topic == "" {
		topic = "syndic.audit"
	}

	var seeds []string
	if raw := os.Getenv("SYNDIC_KAFKA_SEEDS"); raw != "" {
		seeds = strings.Split(raw, ",")
	}

	cacheTTL := 5 * time.Minute
	if raw := os.Getenv("SYNDIC_CACHE_TTL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cacheTTL = time.Duration(secs) * time.Second
		}
	}

	jwtSigningKey := os.Getenv("SYNDIC_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		PostgresURL:   os.Getenv("SYNDIC_POSTGRES_URL"),
		RedisURL:      os.Getenv("SYNDIC_REDIS_URL"),
		KafkaSeeds:    seeds,
		KafkaTopic:    topic,
		JWTSigningKey: jwtSigningKey,
		IssuerKeyFile: os.Getenv("SYNDIC_ISSUER_KEY_FILE"),
		ScopeName:     scope,
		CacheTTL:      cacheTTL,
	}
}
