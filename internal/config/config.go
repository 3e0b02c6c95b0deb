package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Relational store (conversations, messages, notifications, profiles)
	Database DatabaseConfig `json:"database"`

	// Redis backs the realtime feed, the query cache, creation locks and the task queue
	Redis RedisConfig `json:"redis"`

	// MongoDB GridFS holds message attachments
	MongoDB MongoDBConfig `json:"mongodb"`
	Storage StorageConfig `json:"storage"`

	// Firebase Configuration
	Firebase FirebaseConfig `json:"firebase"`

	// Notification Configuration
	Notification NotificationConfig `json:"notification"`

	Chat ChatConfig `json:"chat"`
	Auth AuthConfig `json:"auth"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	GRPCPort     string `json:"grpc_port"`
	MediaPort    string `json:"media_port"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	Environment  string `json:"environment"` // development, staging, production
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Driver       string `json:"driver"` // mysql, postgres
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
	AutoMigrate  bool   `json:"auto_migrate"`
}

type RedisConfig struct {
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

type MongoDBConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// StorageConfig describes where attachments live and how their public URLs are built
type StorageConfig struct {
	Bucket        string `json:"bucket"`
	PublicBaseURL string `json:"public_base_url"`
}

// FirebaseConfig contains Firebase Cloud Messaging configuration
type FirebaseConfig struct {
	ProjectID           string `json:"project_id"`
	CredentialsFilePath string `json:"credentials_file_path"`
	Enabled             bool   `json:"enabled"`
}

// NotificationConfig contains notification system configuration
type NotificationConfig struct {
	Workers           int    `json:"workers"`             // Number of worker goroutines
	ChannelBufferSize int    `json:"channel_buffer_size"` // Channel buffer size
	MaxRetries        int    `json:"max_retries"`         // Max retry attempts for queued delivery
	Queue             string `json:"queue"`               // asynq queue name
	UseQueue          bool   `json:"use_queue"`           // deliver through asynq instead of in-process workers
	Enabled           bool   `json:"enabled"`
}

type ChatConfig struct {
	BackendTimeout       int   `json:"backend_timeout"` // Seconds
	CacheTTL             int   `json:"cache_ttl"`       // Seconds
	CreateLockTTL        int   `json:"create_lock_ttl"` // Seconds
	MaxContentLength     int   `json:"max_content_length"`
	MaxAttachmentBytes   int64 `json:"max_attachment_bytes"`
	ScopeReadToRecipient bool  `json:"scope_read_to_recipient"`
}

type AuthConfig struct {
	JWTSecret string `json:"-"`
	Issuer    string `json:"issuer"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, text
	OutputPath string `json:"output_path"` // stdout, stderr, or file path
}

// Load builds the configuration from the environment, falling back to development defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvOrDefault("SERVER_PORT", "8080"),
			GRPCPort:     getEnvOrDefault("GRPC_PORT", "9090"),
			MediaPort:    getEnvOrDefault("MEDIA_PORT", "8081"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			Environment:  getEnvOrDefault("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver:       getEnvOrDefault("DB_DRIVER", "mysql"),
			Host:         getEnvOrDefault("DB_HOST", "localhost"),
			Port:         getEnvOrDefault("DB_PORT", "3306"),
			Username:     getEnvOrDefault("DB_USER", "revline"),
			Password:     getEnvOrDefault("DB_PASSWORD", ""),
			DatabaseName: getEnvOrDefault("DB_NAME", "revline"),
			SSLMode:      getEnvOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:     getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
			Enabled: getEnvBool("REDIS_ENABLED", false),
		},
		MongoDB: MongoDBConfig{
			Host:     getEnvOrDefault("MONGO_HOST", "localhost"),
			Port:     getEnvOrDefault("MONGO_PORT", "27017"),
			Username: getEnvOrDefault("MONGO_USERNAME", ""),
			Password: getEnvOrDefault("MONGO_PASSWORD", ""),
			Database: getEnvOrDefault("MONGO_DATABASE", "revline"),
		},
		Storage: StorageConfig{
			Bucket:        getEnvOrDefault("STORAGE_BUCKET", "chat-attachments"),
			PublicBaseURL: getEnvOrDefault("STORAGE_PUBLIC_BASE_URL", "http://localhost:8081"),
		},
		Firebase: FirebaseConfig{
			ProjectID:           getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
			CredentialsFilePath: getEnvOrDefault("FIREBASE_CREDENTIALS_PATH", ""),
			Enabled:             getEnvBool("FIREBASE_ENABLED", false),
		},
		Notification: NotificationConfig{
			Workers:           getEnvInt("NOTIF_WORKERS", 5),
			ChannelBufferSize: getEnvInt("NOTIF_BUFFER_SIZE", 1000),
			MaxRetries:        getEnvInt("NOTIF_MAX_RETRIES", 3),
			Queue:             getEnvOrDefault("NOTIF_QUEUE", "notifications"),
			UseQueue:          getEnvBool("NOTIF_USE_QUEUE", false),
			Enabled:           getEnvBool("NOTIF_ENABLED", true),
		},
		Chat: ChatConfig{
			BackendTimeout:       getEnvInt("CHAT_BACKEND_TIMEOUT", 10),
			CacheTTL:             getEnvInt("CHAT_CACHE_TTL", 300),
			CreateLockTTL:        getEnvInt("CHAT_CREATE_LOCK_TTL", 5),
			MaxContentLength:     getEnvInt("CHAT_MAX_CONTENT_LENGTH", 4000),
			MaxAttachmentBytes:   int64(getEnvInt("CHAT_MAX_ATTACHMENT_BYTES", 10<<20)),
			ScopeReadToRecipient: getEnvBool("CHAT_SCOPE_READ_TO_RECIPIENT", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
			Issuer:    getEnvOrDefault("JWT_ISSUER", "revline"),
		},
		Logging: LoggingConfig{
			Level:      getEnvOrDefault("LOG_LEVEL", "info"),
			Format:     getEnvOrDefault("LOG_FORMAT", "text"),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "stdout"),
		},
	}
}

// Validate rejects settings the services cannot start with.
func (cfg *Config) Validate() error {
	var problems []string

	switch cfg.Database.Driver {
	case "mysql", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("unsupported database driver %q", cfg.Database.Driver))
	}
	if cfg.Database.DatabaseName == "" {
		problems = append(problems, "database name is required")
	}
	if cfg.Auth.JWTSecret == "" {
		problems = append(problems, "JWT secret is required")
	}
	if cfg.Storage.Bucket == "" {
		problems = append(problems, "storage bucket is required")
	}
	if cfg.Chat.BackendTimeout <= 0 {
		problems = append(problems, "chat backend timeout must be positive")
	}
	if cfg.Notification.UseQueue && !cfg.Redis.Enabled {
		problems = append(problems, "queued notification delivery requires redis")
	}
	if cfg.Notification.Workers <= 0 {
		problems = append(problems, "notification workers must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}

	if cfg.Database.Driver == "postgres" {
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.DatabaseName,
			cfg.Database.SSLMode,
		)
	}

	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	host := fmt.Sprintf("%s:%s", cfg.MongoDB.Host, cfg.MongoDB.Port)
	if cfg.MongoDB.Username == "" {
		return fmt.Sprintf("mongodb://%s/%s", host, cfg.MongoDB.Database)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s/%s?authSource=admin",
		url.QueryEscape(cfg.MongoDB.Username),
		url.QueryEscape(cfg.MongoDB.Password),
		host,
		cfg.MongoDB.Database,
	)
}

func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.BackendTimeout) * time.Second
}

func (c ChatConfig) CacheExpiry() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

func (c ChatConfig) LockExpiry() time.Duration {
	if c.CreateLockTTL <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.CreateLockTTL) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
