package config

import (
	pkgconfig "github.com/ChrisIntorcia/roundtwo-live-engine/pkg/config"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	PubSub    PubSubConfig `mapstructure:"pubsub"`
	Auth      AuthConfig
	Presence  PresenceConfig
	Chat      ChatConfig
	Purchase  PurchaseConfig
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogQueries      bool   `mapstructure:"log_queries"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type PubSubConfig struct {
	// Driver selects the event bus backend: redis, kafka, or none.
	Driver       string
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaGroupID string `mapstructure:"kafka_group_id"`
}

type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	JWTIssuer       string `mapstructure:"jwt_issuer"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
}

type PresenceConfig struct {
	// Backend selects the presence store: redis or memory.
	Backend                  string
	HeartbeatTTLSeconds      int `mapstructure:"heartbeat_ttl_seconds"`
	SweepIntervalSeconds     int `mapstructure:"sweep_interval_seconds"`
	BroadcastIntervalSeconds int `mapstructure:"broadcast_interval_seconds"`
}

type ChatConfig struct {
	// Backend selects the recent-message log: redis or memory.
	Backend      string
	TailSize     int      `mapstructure:"tail_size"`
	TailTTLHours int      `mapstructure:"tail_ttl_hours"`
	BlockedTerms []string `mapstructure:"blocked_terms"`
}

type PurchaseConfig struct {
	PaymentServiceURL      string `mapstructure:"payment_service_url"`
	ProfileServiceURL      string `mapstructure:"profile_service_url"`
	CaptureTimeoutSeconds  int    `mapstructure:"capture_timeout_seconds"`
	CaptureConcurrency     int    `mapstructure:"capture_concurrency"`
	ReconcileIntervalSecs  int    `mapstructure:"reconcile_interval_seconds"`
	ReconcileMinAgeSeconds int    `mapstructure:"reconcile_min_age_seconds"`
	LedgerMaxRetries       int    `mapstructure:"ledger_max_retries"`
}

type WebSocketConfig struct {
	MaxMessageSize   int64 `mapstructure:"max_message_size"`
	WriteWaitSecs    int   `mapstructure:"write_wait_seconds"`
	PongWaitSecs     int   `mapstructure:"pong_wait_seconds"`
	PingIntervalSecs int   `mapstructure:"ping_interval_seconds"`
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "live_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/live_engine.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_queries", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.kafka_brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka_group_id", "live-engine")
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.jwt_issuer", "live-engine")
	v.SetDefault("auth.token_ttl_minutes", 720)
	v.SetDefault("presence.backend", "redis")
	v.SetDefault("presence.heartbeat_ttl_seconds", 30)
	v.SetDefault("presence.sweep_interval_seconds", 10)
	v.SetDefault("presence.broadcast_interval_seconds", 5)
	v.SetDefault("chat.backend", "redis")
	v.SetDefault("chat.tail_size", 100)
	v.SetDefault("chat.tail_ttl_hours", 24)
	v.SetDefault("chat.blocked_terms", []string{})
	v.SetDefault("purchase.payment_service_url", "http://localhost:9100")
	v.SetDefault("purchase.profile_service_url", "http://localhost:9101")
	v.SetDefault("purchase.capture_timeout_seconds", 10)
	v.SetDefault("purchase.capture_concurrency", 32)
	v.SetDefault("purchase.reconcile_interval_seconds", 60)
	v.SetDefault("purchase.reconcile_min_age_seconds", 120)
	v.SetDefault("purchase.ledger_max_retries", 8)
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.write_wait_seconds", 10)
	v.SetDefault("websocket.pong_wait_seconds", 60)
	v.SetDefault("websocket.ping_interval_seconds", 54)
	v.SetDefault("log.level", "info")

	// Bind environment variables
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.kafka_brokers", "KAFKA_BROKERS")
	v.BindEnv("pubsub.kafka_group_id", "KAFKA_GROUP_ID")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.jwt_issuer", "JWT_ISSUER")
	v.BindEnv("presence.backend", "PRESENCE_BACKEND")
	v.BindEnv("presence.heartbeat_ttl_seconds", "PRESENCE_HEARTBEAT_TTL")
	v.BindEnv("chat.backend", "CHAT_BACKEND")
	v.BindEnv("purchase.payment_service_url", "PAYMENT_SERVICE_URL")
	v.BindEnv("purchase.profile_service_url", "PROFILE_SERVICE_URL")
	v.BindEnv("purchase.capture_timeout_seconds", "CAPTURE_TIMEOUT_SECONDS")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
