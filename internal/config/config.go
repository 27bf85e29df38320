package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/unitstay/service-booking/internal/platform/database"
)

const envPrefix = "BOOKING"

// KafkaConfig holds broker settings. With Enabled false no producer or consumer is started.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	GroupPrefix string
}

// PolicyConfig tunes the booking policy.
type PolicyConfig struct {
	// OverlapFailOpen treats a failed overlap lookup as "unit free" instead of rejecting.
	OverlapFailOpen bool
}

// RateLimitConfig limits requests per client IP. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port            string
	AppEnv          string
	DBConfig        database.Config
	KafkaConfig     KafkaConfig
	PolicyConfig    PolicyConfig
	RateLimitConfig RateLimitConfig
	ShutdownTimeout time.Duration
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *ServiceConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads configuration from BOOKING_* environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("db.driver", database.DriverPostgres)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "booking_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.sqlite_path", "booking.db")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.group_prefix", "")
	v.SetDefault("policy.overlap_fail_open", false)
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("shutdown.timeout", "10s")

	_ = v.BindEnv("service.port", "BOOKING_SERVICE_PORT", "PORT")
	_ = v.BindEnv("app.env", "BOOKING_APP_ENV", "APP_ENV")
	_ = v.BindEnv("db.driver", "BOOKING_DB_DRIVER")
	_ = v.BindEnv("db.host", "BOOKING_DB_HOST")
	_ = v.BindEnv("db.port", "BOOKING_DB_PORT")
	_ = v.BindEnv("db.user", "BOOKING_DB_USER")
	_ = v.BindEnv("db.password", "BOOKING_DB_PASSWORD")
	_ = v.BindEnv("db.name", "BOOKING_DB_NAME")
	_ = v.BindEnv("db.sslmode", "BOOKING_DB_SSLMODE")
	_ = v.BindEnv("db.sqlite_path", "BOOKING_DB_SQLITE_PATH")
	_ = v.BindEnv("db.max_open_conns", "BOOKING_DB_MAX_OPEN_CONNS")
	_ = v.BindEnv("db.max_idle_conns", "BOOKING_DB_MAX_IDLE_CONNS")
	_ = v.BindEnv("db.conn_max_lifetime", "BOOKING_DB_CONN_MAX_LIFETIME")
	_ = v.BindEnv("kafka.enabled", "BOOKING_KAFKA_ENABLED")
	_ = v.BindEnv("kafka.brokers", "BOOKING_KAFKA_BROKERS", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.group_prefix", "BOOKING_KAFKA_GROUP_PREFIX")
	_ = v.BindEnv("policy.overlap_fail_open", "BOOKING_POLICY_OVERLAP_FAIL_OPEN")
	_ = v.BindEnv("rate_limit.rps", "BOOKING_RATE_LIMIT_RPS")
	_ = v.BindEnv("rate_limit.burst", "BOOKING_RATE_LIMIT_BURST")
	_ = v.BindEnv("shutdown.timeout", "BOOKING_SHUTDOWN_TIMEOUT")

	connMaxLifetime, err := time.ParseDuration(v.GetString("db.conn_max_lifetime"))
	if err != nil {
		return nil, fmt.Errorf("invalid db.conn_max_lifetime: %w", err)
	}
	shutdownTimeout, err := time.ParseDuration(v.GetString("shutdown.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid shutdown.timeout: %w", err)
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("db.driver")))
	if driver != database.DriverPostgres && driver != database.DriverSQLite {
		return nil, fmt.Errorf("unsupported db.driver %q", driver)
	}

	return &ServiceConfig{
		Port:   servicePort(v.GetString("service.port")),
		AppEnv: v.GetString("app.env"),
		DBConfig: database.Config{
			Driver:          driver,
			Host:            v.GetString("db.host"),
			Port:            v.GetInt("db.port"),
			User:            v.GetString("db.user"),
			Password:        v.GetString("db.password"),
			DBName:          v.GetString("db.name"),
			SSLMode:         v.GetString("db.sslmode"),
			SQLitePath:      v.GetString("db.sqlite_path"),
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		KafkaConfig: KafkaConfig{
			Enabled:     v.GetBool("kafka.enabled"),
			Brokers:     splitList(v.GetString("kafka.brokers")),
			GroupPrefix: v.GetString("kafka.group_prefix"),
		},
		PolicyConfig: PolicyConfig{
			OverlapFailOpen: v.GetBool("policy.overlap_fail_open"),
		},
		RateLimitConfig: RateLimitConfig{
			RPS:   v.GetFloat64("rate_limit.rps"),
			Burst: v.GetInt("rate_limit.burst"),
		},
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

// servicePort turns "8080" into ":8080" and leaves "host:port" alone.
func servicePort(port string) string {
	port = strings.TrimSpace(port)
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
