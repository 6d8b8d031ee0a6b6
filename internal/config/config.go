package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	PolicyCorrelation = "correlation"
	PolicyFixed       = "fixed"
)

const (
	ProviderDir   = "dir"
	ProviderIMAP  = "imap"
	ProviderGmail = "gmail"
)

type Config struct {
	DBPath    string
	OutputDir string

	InboxProvider    string
	InboxDir         string
	InboxIntervalSec int
	InboxFetchMax    int
	MailLabel        string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	SourceCurrency string
	TargetCurrency string
	EURUSDRate     string

	ScoringPolicy   string
	ReferenceFiles  []string
	ReferenceFromDB bool

	LogLevel        string
	LogFormat       string
	MetricsTextfile string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "loanrisk.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		InboxProvider:    strings.ToLower(getEnv("INBOX_PROVIDER", ProviderDir)),
		InboxDir:         getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),
		InboxIntervalSec: getEnvInt("INBOX_INTERVAL_SEC", 30),
		InboxFetchMax:    getEnvInt("INBOX_FETCH_MAX", 50),
		MailLabel:        getEnv("MAIL_LABEL", "INBOX"),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		SourceCurrency: strings.ToUpper(getEnv("SOURCE_CURRENCY", "EUR")),
		TargetCurrency: strings.ToUpper(getEnv("TARGET_CURRENCY", "USD")),
		EURUSDRate:     getEnv("EUR_USD_RATE", "1.137"),

		ScoringPolicy:   strings.ToLower(getEnv("SCORING_POLICY", PolicyCorrelation)),
		ReferenceFiles:  getEnvList("REFERENCE_FILES"),
		ReferenceFromDB: getEnvBool("REFERENCE_FROM_DB", false),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.ScoringPolicy {
	case PolicyCorrelation, PolicyFixed:
	default:
		return fmt.Errorf("unsupported SCORING_POLICY: %s", c.ScoringPolicy)
	}
	switch c.InboxProvider {
	case "", ProviderDir, ProviderIMAP, ProviderGmail:
	default:
		return fmt.Errorf("unsupported INBOX_PROVIDER: %s", c.InboxProvider)
	}
	if c.InboxIntervalSec <= 0 {
		return fmt.Errorf("INBOX_INTERVAL_SEC must be positive, got %d", c.InboxIntervalSec)
	}
	return nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key string) []string {
	value := getEnv(key, "")
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
