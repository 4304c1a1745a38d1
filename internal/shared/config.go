package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/subosito/gotenv"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	BotToken     string
	AdminChatID  int64
	JWTSecret    string
	TokenTTL     time.Duration
	ReportHour   int // local hour for the daily report, -1 disables
	Timezone     string
	CacheTTL     time.Duration
	TxRetries    int
}

func Load() Config {
	_ = gotenv.Load() // .env is optional

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atoi64 := func(k string, def int64) int64 {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/resort?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		BotToken:    env("TELEGRAM_BOT_TOKEN", ""),
		AdminChatID: atoi64("TELEGRAM_ADMIN_CHAT_ID", 0),
		JWTSecret:   env("JWT_SECRET", ""),
		TokenTTL:    time.Duration(atoi("TOKEN_TTL_HOURS", 24*7)) * time.Hour,
		ReportHour:  atoi("REPORT_HOUR", 8),
		Timezone:    env("TIMEZONE", "Asia/Tashkent"),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		TxRetries:   atoi("TX_RETRIES", 3),
	}
	if c.BotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN is empty; login and notifications disabled")
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; using an insecure default")
		c.JWTSecret = "dev-secret-change-me"
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
