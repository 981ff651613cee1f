package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	SessionRedis  = "redis"
	SessionMemory = "memory"

	ScopeOwner = "owner"
	ScopeAll   = "all"
)

type Config struct {
	AppEnv  string
	APIPort string
	JWTKey  []byte

	SessionSecret []byte
	SessionMaxAge time.Duration
	CookieSecure  bool
	CORSOrigin    string

	StoreDriver   string
	SessionDriver string

	MongoURI string
	MongoDB  string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NATSURL             string
	EventsSubjectPrefix string

	BroadcastInterval time.Duration
	BroadcastScope    string

	LogLevel  string
	LogFormat string
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Environment
// variables still win over anything set here.
type fileConfig struct {
	Server struct {
		Port       string `yaml:"port"`
		CORSOrigin string `yaml:"cors_origin"`
	} `yaml:"server"`
	Store struct {
		Driver   string `yaml:"driver"`
		MongoURI string `yaml:"mongo_uri"`
		MongoDB  string `yaml:"mongo_db"`
	} `yaml:"store"`
	Session struct {
		Driver string `yaml:"driver"`
		MaxAge string `yaml:"max_age"`
	} `yaml:"session"`
	Broadcast struct {
		Interval string `yaml:"interval"`
		Scope    string `yaml:"scope"`
	} `yaml:"broadcast"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

var AppConfig *Config

// defaults holds values from the YAML overlay, consulted by getEnv before the
// hard-coded fallback.
var defaults = map[string]string{}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on environment variables")
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("could not read config file")
		}
	}

	AppConfig = &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		APIPort:             getEnv("API_PORT", "10000"),
		JWTKey:              []byte(getEnv("JWT_SECRET", "defaultsecret")),
		SessionSecret:       []byte(getEnv("SESSION_SECRET", "defaultsessionsecret")),
		SessionMaxAge:       getEnvAsDuration("SESSION_MAX_AGE", 7*24*time.Hour),
		CookieSecure:        getEnvAsBool("COOKIE_SECURE", false),
		CORSOrigin:          getEnv("CORS_ORIGIN", "*"),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		SessionDriver:       strings.ToLower(getEnv("SESSION_DRIVER", SessionRedis)),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:             getEnv("MONGO_DB", "timetrack"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "user"),
		DBPassword:          getEnv("DB_PASSWORD", "password"),
		DBName:              getEnv("DB_NAME", "timetrack"),
		DBSslMode:           getEnv("DB_SSLMODE", "disable"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvAsInt("REDIS_DB", 0),
		NATSURL:             getEnv("NATS_URL", ""),
		EventsSubjectPrefix: getEnv("EVENTS_SUBJECT_PREFIX", "timers"),
		BroadcastInterval:   getEnvAsDuration("BROADCAST_INTERVAL", time.Second),
		BroadcastScope:      strings.ToLower(getEnv("BROADCAST_SCOPE", ScopeOwner)),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
	}

	if AppConfig.AppEnv == "production" {
		AppConfig.CookieSecure = true
	}
	if AppConfig.BroadcastInterval <= 0 {
		AppConfig.BroadcastInterval = time.Second
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	set := func(key, value string) {
		if value != "" {
			defaults[key] = value
		}
	}
	set("API_PORT", fc.Server.Port)
	set("CORS_ORIGIN", fc.Server.CORSOrigin)
	set("STORE_DRIVER", fc.Store.Driver)
	set("MONGO_URI", fc.Store.MongoURI)
	set("MONGO_DB", fc.Store.MongoDB)
	set("SESSION_DRIVER", fc.Session.Driver)
	set("SESSION_MAX_AGE", fc.Session.MaxAge)
	set("BROADCAST_INTERVAL", fc.Broadcast.Interval)
	set("BROADCAST_SCOPE", fc.Broadcast.Scope)
	set("LOG_LEVEL", fc.Log.Level)
	set("LOG_FORMAT", fc.Log.Format)
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if value, ok := defaults[key]; ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("1s", "168h") or a bare
// number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
