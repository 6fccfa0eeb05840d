package config

import (
	"flag"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Поисковые бэкенды.
const (
	SearchElastic = "elastic"
	SearchMemory  = "memory"
)

type Config struct {
	// Хранилище и аутентификация
	DatabaseDSN string        `env:"DATABASE_URI"`
	AuthSecret  string        `env:"AUTH_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL"`
	AdminLogins []string      `env:"ADMIN_LOGINS" envSeparator:","`

	// HTTP
	BaseURL     string `env:"BASE_URL"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`
	ServerURL   string `env:"-"`

	// Поисковый индекс
	SearchBackend   string   `env:"SEARCH_BACKEND"`
	ElasticURLs     []string `env:"ELASTICSEARCH_URL" envSeparator:","`
	ElasticIndex    string   `env:"ELASTICSEARCH_INDEX"`
	ElasticUsername string   `env:"ELASTICSEARCH_USERNAME"`
	ElasticPassword string   `env:"ELASTICSEARCH_PASSWORD"`
	ElasticRefresh  string   `env:"ELASTICSEARCH_REFRESH"`

	// Таймауты шагов и сверка
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT"`
	IndexTimeout      time.Duration `env:"INDEX_TIMEOUT"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL"`
	ReconcileBatch    int           `env:"RECONCILE_BATCH"`
	ReconcileWorkers  int           `env:"RECONCILE_WORKERS"`

	LogLevel string `env:"LOG_LEVEL"`
}

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	elasticURLs := strings.Join(cfg.ElasticURLs, ",")

	// flags работают ТОЛЬКО если переменные из env не заданы
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "строка подключения к БД")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "секрет для подписи JWT")
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "адрес сервера в виде host:port")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "enable HTTPS")
	flag.StringVar(&cfg.SearchBackend, "search", cfg.SearchBackend, "поисковый бэкенд: elastic или memory")
	flag.StringVar(&elasticURLs, "es", elasticURLs, "адреса Elasticsearch через запятую")
	flag.StringVar(&cfg.ElasticIndex, "es-index", cfg.ElasticIndex, "имя индекса камер")
	flag.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", cfg.ReconcileInterval, "период фоновой сверки индекса (0 — выключена)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "уровень логирования")

	flag.Parse()

	cfg.ElasticURLs = splitList(elasticURLs)
	cfg.AdminLogins = splitList(strings.Join(cfg.AdminLogins, ","))

	// Defaults
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "dev-secret-key"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	// validate BaseURL: must be in "address:port" (no scheme, no path). Otherwise use default.
	hostPortRe := regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = "localhost:8081"
	}
	if cfg.EnableHTTPS {
		cfg.ServerURL = "https://" + cfg.BaseURL
	} else {
		cfg.ServerURL = "http://" + cfg.BaseURL
	}

	if cfg.SearchBackend != SearchMemory {
		cfg.SearchBackend = SearchElastic
	}
	if len(cfg.ElasticURLs) == 0 {
		cfg.ElasticURLs = []string{"http://localhost:9200"}
	}
	if cfg.ElasticIndex == "" {
		cfg.ElasticIndex = "cameras_index"
	}
	// по умолчанию запись ждёт refresh: только что созданная камера сразу находится поиском
	switch cfg.ElasticRefresh {
	case "true", "false", "wait_for":
	default:
		cfg.ElasticRefresh = "wait_for"
	}

	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = 3 * time.Second
	}
	if cfg.ReconcileInterval < 0 {
		cfg.ReconcileInterval = 0
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = 100
	}
	if cfg.ReconcileWorkers <= 0 {
		cfg.ReconcileWorkers = 4
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
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
