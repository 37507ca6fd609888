package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds the configuration settings for the application.
// Values come from defaults, an optional YAML file named by CONFIG_PATH,
// and TASKPULSE_* environment variables, later sources winning.
type Config struct {
	Env        string           `yaml:"env"`        // Env is the current environment: local, development, production.
	Storage    StorageConfig    `yaml:"storage"`    // Storage selects the task store backend
	Database   PostgresConfig   `yaml:"postgres"`   // Database holds the postgres database configuration
	Mongo      MongoConfig      `yaml:"mongo"`      // Mongo holds the mongodb configuration
	HTTP       HTTPConfig       `yaml:"http"`       // HTTP configures the dashboard API server
	Monitoring MonitoringConfig `yaml:"monitoring"` // Monitoring configures the health and metrics server
	Analytics  AnalyticsConfig  `yaml:"analytics"`  // Analytics tunes the aggregation
	Admin      AdminConfig      `yaml:"admin"`      // Admin is the account seeded on start
	Telegram   TelegramConfig   `yaml:"telegram"`   // Telegram configures the optional bot
	RedisAddr  string           `yaml:"redis_addr"` // RedisAddr is the redis server address, empty disables the cache.
}

// StorageConfig selects the task store backend.
type StorageConfig struct {
	Driver   string `yaml:"driver"`    // Driver is one of postgres, mongo, memory.
	SeedFile string `yaml:"seed_file"` // SeedFile is a JSON document loaded into the memory driver.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`     // Host is the database server address.
	Port     string `yaml:"port"`     // Port is the database server port.
	User     string `yaml:"user"`     // User is the database user.
	Password string `yaml:"password"` // Password is the database user's password.
	Name     string `yaml:"db_name"`  // Name is the name of the database.
}

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// HTTPConfig configures the dashboard API server.
type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // RequestTimeout bounds one analytics computation, 0 disables it.
	AllowedOrigin  string        `yaml:"allowed_origin"`
}

// MonitoringConfig configures the health and metrics server.
type MonitoringConfig struct {
	Port int `yaml:"port"`
}

// AnalyticsConfig tunes the aggregation.
type AnalyticsConfig struct {
	ActivityLimit   int `yaml:"activity_limit"`   // ActivityLimit is the length of the recent activity feed.
	TeamConcurrency int `yaml:"team_concurrency"` // TeamConcurrency bounds the queries in flight per team member.
}

// AdminConfig is the default admin account seeded on start.
type AdminConfig struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
}

// TelegramConfig configures the bot. An empty token disables it.
type TelegramConfig struct {
	Token         string        `yaml:"token"`   // Token is an unique telegram bot token
	PollerTimeout time.Duration `yaml:"timeout"` // PollerTimeout is the long polling timeout
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	AdminIDs      []int64       `yaml:"admin_ids"` // AdminIDs are the Telegram accounts allowed to act as admin users
}

//nolint:gochecknoglobals // default values
var defaults = map[string]any{
	"env":                        "production",
	"storage.driver":             DriverPostgres,
	"storage.seed_file":          "",
	"postgres.host":              "localhost",
	"postgres.port":              "5432",
	"postgres.user":              "",
	"postgres.password":          "",
	"postgres.db_name":           "taskpulse",
	"mongo.uri":                  "mongodb://localhost:27017",
	"mongo.database":             "taskpulse",
	"http.addr":                  ":5000",
	"http.read_timeout":          "5s",
	"http.write_timeout":         "30s",
	"http.request_timeout":       "0s",
	"http.allowed_origin":        "*",
	"monitoring.port":            8080,
	"analytics.activity_limit":   20,
	"analytics.team_concurrency": 8,
	"admin.id":                   "admin",
	"admin.username":             "Admin",
	"admin.email":                "admin@taskmanagement.com",
	"telegram.token":             "",
	"telegram.timeout":           "10s",
	"telegram.cache_ttl":         "12h",
	"telegram.admin_ids":         "",
	"redis_addr":                 "",
}

// MustLoad loads the configuration and panics when it is unusable.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("TASKPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		// check if file exists
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			panic("config file does not exist: " + configPath)
		}

		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			panic("config error: " + err.Error())
		}
	}

	cfg := &Config{
		Env: v.GetString("env"),
		Storage: StorageConfig{
			Driver:   v.GetString("storage.driver"),
			SeedFile: v.GetString("storage.seed_file"),
		},
		Database: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Name:     v.GetString("postgres.db_name"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
		},
		HTTP: HTTPConfig{
			Addr:           v.GetString("http.addr"),
			ReadTimeout:    mustDuration(v, "http.read_timeout"),
			WriteTimeout:   mustDuration(v, "http.write_timeout"),
			RequestTimeout: mustDuration(v, "http.request_timeout"),
			AllowedOrigin:  v.GetString("http.allowed_origin"),
		},
		Monitoring: MonitoringConfig{
			Port: v.GetInt("monitoring.port"),
		},
		Analytics: AnalyticsConfig{
			ActivityLimit:   v.GetInt("analytics.activity_limit"),
			TeamConcurrency: v.GetInt("analytics.team_concurrency"),
		},
		Admin: AdminConfig{
			ID:       v.GetString("admin.id"),
			Username: v.GetString("admin.username"),
			Email:    v.GetString("admin.email"),
		},
		Telegram: TelegramConfig{
			Token:         v.GetString("telegram.token"),
			PollerTimeout: mustDuration(v, "telegram.timeout"),
			CacheTTL:      mustDuration(v, "telegram.cache_ttl"),
			AdminIDs:      mustIDs(v, "telegram.admin_ids"),
		},
		RedisAddr: v.GetString("redis_addr"),
	}

	switch cfg.Storage.Driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		panic("unknown storage driver: " + cfg.Storage.Driver)
	}

	return cfg
}

// mustDuration parses a duration setting, panicking on malformed values
// instead of silently reading them as zero.
func mustDuration(v *viper.Viper, key string) time.Duration {
	duration, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		panic("failed to parse " + key + " from configuration")
	}
	return duration
}

// mustIDs reads a list of Telegram IDs given either as a YAML list or as a
// comma separated string (the form environment variables take).
func mustIDs(v *viper.Viper, key string) []int64 {
	var raw []string
	if list, ok := v.Get(key).([]any); ok {
		for _, item := range list {
			raw = append(raw, fmt.Sprint(item))
		}
	} else {
		raw = strings.Split(v.GetString(key), ",")
	}

	ids := make([]int64, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			panic("failed to parse " + key + " from configuration")
		}
		ids = append(ids, id)
	}
	return ids
}
