package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Cfg struct {
	Database   Database
	Logger     Logger
	BitBrowser BitBrowser
	Windows    Windows
	Points     Points
	Sheets     Sheets
	Humanize   Humanize
	Accounts   Accounts
	Selectors  Selectors
	Server     Server
	Migrations Migrations
}

type Database struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

type Migrations struct {
	Path string
}

type Logger struct {
	Env   string
	Level string
}

// BitBrowser описывает локальный REST API антидетект-браузера.
type BitBrowser struct {
	BaseURL string
	Timeout time.Duration
}

// Windows содержит настройки многооконного режима.
type Windows struct {
	ProfileIDs       []string      // ID профилей браузера, по одному на окно
	TaskInterval     time.Duration // Пауза между задачами в одном окне
	StartupDelay     time.Duration // Пауза после открытия окна до проверки баланса
	WorkerStagger    time.Duration // Интервал между запуском воркеров
	RestartDelay     time.Duration // Пауза перед повторным подключением окна
	SetupRetries     int           // Попыток настройки окна
	MaxErrors        int           // Подряд идущих ошибок до остановки окна
	ErrorCooldown    time.Duration // Пауза после ошибки воркера
	QueuePollTimeout time.Duration // Таймаут ожидания задачи из очереди
	ProgressInterval time.Duration // Период отчета о прогрессе
}

// Points содержит настройки контроля баланса.
type Points struct {
	Enabled      bool
	MinThreshold int           // Минимальный баланс, ниже которого окно ставится на паузу
	CostPerRun   int           // Стоимость одной генерации
	CacheTTL     time.Duration // Сколько держать закэшированное значение
}

// Sheets описывает раскладку CSV-таблиц с промптами.
type Sheets struct {
	PromptColumn int
	StatusColumn int
	StatusText   string
	RejectedText string
	StartRow     int
}

// Humanize задает диапазон случайных задержек между действиями.
type Humanize struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Accounts — параметры регистрации новых учетных записей.
type Accounts struct {
	MailDomain string // Домен почтовых адресов для новых аккаунтов
}

type Selectors struct {
	Path string
}

type Server struct {
	Host string
	Port string
}

func Load() (*Cfg, error) {
	_ = godotenv.Load()

	cfg := &Cfg{
		Database: Database{
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			Name:     os.Getenv("DB_NAME"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASS"),
		},
		Logger: Logger{
			Env:   env("ENV", "dev"),
			Level: env("LOG_LEVEL", "info"),
		},
		BitBrowser: BitBrowser{
			BaseURL: env("BITBROWSER_URL", "http://127.0.0.1:54345"),
			Timeout: envDuration("BITBROWSER_TIMEOUT", 10*time.Second),
		},
		Windows: Windows{
			ProfileIDs:       envList("BROWSER_PROFILE_IDS"),
			TaskInterval:     envDuration("TASK_INTERVAL", 5*time.Second),
			StartupDelay:     envDuration("WINDOW_STARTUP_DELAY", 25*time.Second),
			WorkerStagger:    envDuration("WORKER_STAGGER", 15*time.Second),
			RestartDelay:     envDuration("WINDOW_RESTART_DELAY", 10*time.Second),
			SetupRetries:     envInt("WINDOW_SETUP_RETRIES", 5),
			MaxErrors:        envInt("WINDOW_MAX_ERRORS", 5),
			ErrorCooldown:    envDuration("WINDOW_ERROR_COOLDOWN", 30*time.Second),
			QueuePollTimeout: envDuration("QUEUE_POLL_TIMEOUT", 2*time.Second),
			ProgressInterval: envDuration("PROGRESS_INTERVAL", 30*time.Second),
		},
		Points: Points{
			Enabled:      envBoolDefault("POINTS_ENABLED", true),
			MinThreshold: envInt("POINTS_MIN_THRESHOLD", 4),
			CostPerRun:   envInt("POINTS_COST_PER_RUN", 2),
			CacheTTL:     envDuration("POINTS_CACHE_TTL", 60*time.Second),
		},
		Sheets: Sheets{
			PromptColumn: envInt("SHEET_PROMPT_COLUMN", 2),
			StatusColumn: envInt("SHEET_STATUS_COLUMN", 3),
			StatusText:   env("SHEET_STATUS_TEXT", "done"),
			RejectedText: env("SHEET_REJECTED_TEXT", "rejected"),
			StartRow:     envInt("SHEET_START_ROW", 2),
		},
		Humanize: Humanize{
			MinDelay: envDuration("HUMANIZE_MIN_DELAY", 2*time.Second),
			MaxDelay: envDuration("HUMANIZE_MAX_DELAY", 5*time.Second),
		},
		Accounts: Accounts{
			MailDomain: env("ACCOUNTS_MAIL_DOMAIN", "example.com"),
		},
		Selectors: Selectors{
			Path: env("SELECTORS_PATH", "selectors.yaml"),
		},
		Server: Server{
			Host: env("HTTP_HOST", "127.0.0.1"),
			Port: env("HTTP_PORT", "8642"),
		},
		Migrations: Migrations{
			Path: env("MIGRATIONS_PATH", "file://migrations"),
		},
	}

	return cfg, nil
}

func env(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Голое число трактуем как секунды
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}

func envBoolDefault(key string, defaultValue bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v == "true" || v == "1" || v == "yes"
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
