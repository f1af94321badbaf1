// Package config loads application configuration from environment
// variables.  A .env file and an optional YAML file named by CONFIG_FILE
// fill in variables that are not set in the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration values.
//
// Fields:
//  Env, Port            – application environment and HTTP port.
//  DB*                  – MySQL connection and pool settings.
//  JWTSecret            – HS256 secret for access tokens.
//  AccessTTLMin         – lifetime of tokens issued by utils.NewAccessToken.
//  AMQPURL              – RabbitMQ URL; empty disables publishing.
//  NotificationQueue    – durable queue for user notifications.
//  BadgeQueue           – durable queue for badge re-evaluation requests.
//  NotificationLog      – file the notification consumer appends to.
//  EventTimezone        – zone in which series dates are computed.
//  ReconcileCron        – cron schedule of the reconciliation sweep; empty disables it.
//  LogLevel, LogFormat  – logrus level and text|json output.
type Config struct {
	Env               string
	Port              string
	DBUser            string
	DBPass            string
	DBHost            string
	DBPort            string
	DBName            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	JWTSecret         string
	AccessTTLMin      int
	AMQPURL           string
	NotificationQueue string
	BadgeQueue        string
	NotificationLog   string
	EventTimezone     string
	ReconcileCron     string
	LogLevel          string
	LogFormat         string
}

// Load reads the configuration.  Missing required variables are reported
// together in one error.
func Load() (Config, error) {
	// .env is optional; variables already set win.
	_ = godotenv.Load()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyOverlay(path); err != nil {
			return Config{}, err
		}
	}

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:               getenv("APP_ENV", "dev"),
		Port:              getenv("APP_PORT", "8080"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		JWTSecret:         must("JWT_SECRET"),
		AccessTTLMin:      envInt("ACCESS_TOKEN_TTL_MIN", 60),
		AMQPURL:           os.Getenv("AMQP_URL"),
		NotificationQueue: getenv("NOTIFICATION_QUEUE", "konfi.notifications"),
		BadgeQueue:        getenv("BADGE_QUEUE", "konfi.badges.check"),
		NotificationLog:   getenv("NOTIFICATION_LOG", "logs/notifications.log"),
		EventTimezone:     getenv("EVENT_TIMEZONE", "Europe/Berlin"),
		ReconcileCron:     getenv("RECONCILE_CRON", "@every 5m"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogFormat:         getenv("LOG_FORMAT", "text"),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad is Load for main: a configuration error ends the process.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	return cfg
}

// Location resolves EventTimezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.EventTimezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid EVENT_TIMEZONE %q", c.EventTimezone)
	}
	return loc, nil
}

// applyOverlay reads a flat YAML mapping of variable names to values and
// exports every entry that is not already set.
func applyOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	for k, v := range values {
		key := strings.ToUpper(strings.TrimSpace(k))
		if _, set := os.LookupEnv(key); set || v == nil {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(v)); err != nil {
			return errors.Wrapf(err, "export %s", key)
		}
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
