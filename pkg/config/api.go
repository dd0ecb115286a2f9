package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment            string
	Addr                   string
	StoreDriver            string
	DatabaseURL            string
	MigrationsDir          string
	DBMaxConns             int
	DBAcquireTimeout       time.Duration
	JWTSecret              string
	AccessTokenTTL         time.Duration
	RateLimitRedisAddr     string
	RateLimitRedisPass     string
	RateLimitRedisDB       int
	NotificationRetention  time.Duration
	NotificationSweepEvery time.Duration
	DeadlineReminderEvery  time.Duration
	NotifyBreakerFailures  int
	NotifyBreakerCooldown  time.Duration
	LogLevel               string
	LogFile                string
	LogMaxSizeMB           int
	LogMaxBackups          int
	LogMaxAgeDays          int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:            GetString("APP_ENV", "development"),
		Addr:                   GetString("API_ADDR", ":5000"),
		StoreDriver:            GetString("STORE_DRIVER", "postgres"),
		DatabaseURL:            GetString("DATABASE_URL", "postgres://taskhub:taskhub@db:5432/taskhub?sslmode=disable"),
		MigrationsDir:          GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		DBMaxConns:             GetInt("DB_MAX_CONNS", 5),
		DBAcquireTimeout:       GetDuration("DB_ACQUIRE_TIMEOUT_MS", 3000, time.Millisecond),
		JWTSecret:              GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:         GetDuration("ACCESS_TOKEN_TTL_MIN", 7*24*60, time.Minute),
		RateLimitRedisAddr:     GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:     GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:       GetInt("RATE_LIMIT_REDIS_DB", 0),
		NotificationRetention:  GetDuration("NOTIFICATION_RETENTION_DAYS", 30, 24*time.Hour),
		NotificationSweepEvery: GetDuration("NOTIFICATION_SWEEP_MINUTES", 60, time.Minute),
		DeadlineReminderEvery:  GetDuration("DEADLINE_REMINDER_MINUTES", 60, time.Minute),
		NotifyBreakerFailures:  GetInt("NOTIFY_BREAKER_FAILURES", 5),
		NotifyBreakerCooldown:  GetDuration("NOTIFY_BREAKER_COOLDOWN_SECONDS", 30, time.Second),
		LogLevel:               GetString("LOG_LEVEL", "info"),
		LogFile:                GetString("LOG_FILE", ""),
		LogMaxSizeMB:           GetInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups:          GetInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays:          GetInt("LOG_MAX_AGE_DAYS", 28),
	}
}
