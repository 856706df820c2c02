// Package config holds environment-driven configuration for a parsec
// node: section membership bootstrap, gossip timing, DKG and coin
// tuning, plus the ops surface (REST/gRPC/auth) the node exposes.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for a parsec node.
type Config struct {
	Node    NodeConfig    `json:"node"`
	Gossip  GossipConfig  `json:"gossip"`
	DKG     DKGConfig     `json:"dkg"`
	Coin    CoinConfig    `json:"coin"`
	Server  ServerConfig  `json:"server"`
	Redis   RedisConfig   `json:"redis"`
	NATS    NATSConfig    `json:"nats"`
	JWT     JWTConfig     `json:"jwt"`
	Logging LoggingConfig `json:"logging"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// NodeConfig identifies this node and the genesis section it joins.
type NodeConfig struct {
	Name         string   `json:"name" validate:"required"`
	GenesisPeers []string `json:"genesis_peers" validate:"required,min=1"`
}

// GossipConfig tunes the request/response gossip cadence.
type GossipConfig struct {
	Period      time.Duration `json:"period"`
	MaxBatch    int           `json:"max_batch"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DKGConfig tunes distributed-key-generation session handling.
type DKGConfig struct {
	SessionTimeout time.Duration `json:"session_timeout"`
}

// CoinConfig tunes common-coin round-hash rotation.
type CoinConfig struct {
	ShareCollectTimeout time.Duration `json:"share_collect_timeout"`
}

// ServerConfig holds the ops REST/gRPC surface configuration.
type ServerConfig struct {
	RESTPort     int           `json:"rest_port"`
	GRPCPort     int           `json:"grpc_port"`
	WSPort       int           `json:"ws_port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// RedisConfig configures the optional non-authoritative block mirror.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// NATSConfig configures the optional decided-block fan-out bus.
type NATSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// JWTConfig configures operator bearer-token auth on the REST surface.
type JWTConfig struct {
	Secret         string        `json:"secret"`
	ExpirationTime time.Duration `json:"expiration_time"`
	Issuer         string        `json:"issuer"`

	// AdminOperatorID/AdminPasswordHash bootstrap the single built-in
	// "admin" operator login/login handler checks a POSTed password
	// against; additional operators, if ever needed, would be
	// provisioned the same way through a future operator store rather
	// than by growing this config further.
	AdminOperatorID   string `json:"admin_operator_id"`
	AdminPasswordHash string `json:"admin_password_hash"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `json:"level"`
}

// RateLimitConfig configures the ops surface's rate limiter.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	Burst             int `json:"burst"`
}

// Load loads configuration from environment variables, falling back
// to development defaults for any unset value.
func Load() *Config {
	return &Config{
		Node: NodeConfig{
			Name:         getEnv("PARSEC_NODE_NAME", "node-0"),
			GenesisPeers: splitEnv("PARSEC_GENESIS_PEERS", []string{"node-0"}),
		},
		Gossip: GossipConfig{
			Period:         time.Duration(getEnvInt("PARSEC_GOSSIP_PERIOD_MS", 200)) * time.Millisecond,
			MaxBatch:       getEnvInt("PARSEC_GOSSIP_MAX_BATCH", 256),
			RequestTimeout: time.Duration(getEnvInt("PARSEC_GOSSIP_REQUEST_TIMEOUT_S", 5)) * time.Second,
		},
		DKG: DKGConfig{
			SessionTimeout: time.Duration(getEnvInt("PARSEC_DKG_SESSION_TIMEOUT_S", 30)) * time.Second,
		},
		Coin: CoinConfig{
			ShareCollectTimeout: time.Duration(getEnvInt("PARSEC_COIN_SHARE_TIMEOUT_S", 10)) * time.Second,
		},
		Server: ServerConfig{
			RESTPort:     getEnvInt("PARSEC_REST_PORT", 8080),
			GRPCPort:     getEnvInt("PARSEC_GRPC_PORT", 9090),
			WSPort:       getEnvInt("PARSEC_WS_PORT", 9091),
			Host:         getEnv("PARSEC_HOST", "0.0.0.0"),
			ReadTimeout:  time.Duration(getEnvInt("PARSEC_READ_TIMEOUT_S", 10)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("PARSEC_WRITE_TIMEOUT_S", 10)) * time.Second,
			IdleTimeout:  time.Duration(getEnvInt("PARSEC_IDLE_TIMEOUT_S", 60)) * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("PARSEC_REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("PARSEC_NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Subject: getEnv("PARSEC_NATS_SUBJECT", "parsec.blocks"),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "dev-secret-key"),
			ExpirationTime:    time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
			Issuer:            getEnv("JWT_ISSUER", "parsec"),
			AdminOperatorID:   getEnv("PARSEC_ADMIN_OPERATOR_ID", "admin"),
			AdminPasswordHash: getEnv("PARSEC_ADMIN_PASSWORD_HASH", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 600),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 60),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			if i > start {
				out = append(out, value[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
