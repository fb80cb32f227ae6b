package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultSiteURL = "https://www.hararemetro.co.zw"

type Config struct {
	AppPort string
	GinMode string
	// SiteURL 出现在抓取请求的 User-Agent 中，方便源站联系我们
	SiteURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string

	CronSpec    string
	SourcesFile string
	// UpdateMinInterval 手动触发 /api/update 的最小间隔，0 表示不限制
	UpdateMinInterval time.Duration

	LogLevel string

	// 同时配置时整个站点启用 Basic Auth，/health 除外
	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	return &Config{
		AppPort:           getEnv("APP_PORT", "9000"),
		GinMode:           getEnv("GIN_MODE", "release"),
		SiteURL:           strings.TrimRight(getEnv("SITE_URL", defaultSiteURL), "/"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		PostgresDSN:       getEnv("POSTGRES_DSN", ""),
		CronSpec:          getEnv("CRON_SPEC", "*/30 * * * *"),
		SourcesFile:       getEnv("SOURCES_FILE", ""),
		UpdateMinInterval: getEnvDuration("UPDATE_MIN_INTERVAL", 0),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		BasicAuthUser:     getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:     getEnv("APP_BASIC_PASS", ""),
	}
}

// UserAgent 抓取 RSS 时使用的固定 UA
func (c *Config) UserAgent() string {
	return "HarareMetro/1.0 (+" + c.SiteURL + ")"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// getEnvDuration 解析 "90s"、"5m" 这类 Go duration，解析失败或为负时回退默认值
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d < 0 {
		return def
	}
	return d
}
