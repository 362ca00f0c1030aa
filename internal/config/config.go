package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	MaxUploadBytes      int64         `yaml:"max_upload_bytes"`
	APIRateLimitRPS     float64       `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst   int           `yaml:"api_rate_limit_burst"`
	APIMaxInFlight      int           `yaml:"api_max_inflight"`
	APIBackpressureWait time.Duration `yaml:"api_backpressure_wait"`

	// ReferenceSource is "static" (built-in mock record) or "djp".
	ReferenceSource   string        `yaml:"reference_source"`
	DJPTimeout        time.Duration `yaml:"djp_timeout"`
	DJPAllowedHosts   []string      `yaml:"djp_allowed_hosts"`
	PostgresDSN       string        `yaml:"postgres_dsn"`
	ReferenceCacheTTL time.Duration `yaml:"reference_cache_ttl"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	TesseractBin  string `yaml:"tesseract_bin"`
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	PdftoppmBin   string `yaml:"pdftoppm_bin"`
	OCRDPI        int    `yaml:"ocr_dpi"`
	OCRMaxPages   int    `yaml:"ocr_max_pages"`
	ScratchPath   string `yaml:"scratch_path"`

	ResilienceRetryMaxAttempts    int           `yaml:"resilience_retry_max_attempts"`
	ResilienceRetryInitialBackoff time.Duration `yaml:"resilience_retry_initial_backoff"`
	ResilienceRetryMaxBackoff     time.Duration `yaml:"resilience_retry_max_backoff"`
	ResilienceRetryMultiplier     float64       `yaml:"resilience_retry_multiplier"`
	ResilienceBreakerEnabled      bool          `yaml:"resilience_breaker_enabled"`
	ResilienceBreakerMinRequests  int           `yaml:"resilience_breaker_min_requests"`
	ResilienceBreakerFailureRatio float64       `yaml:"resilience_breaker_failure_ratio"`
	ResilienceBreakerOpenTimeout  time.Duration `yaml:"resilience_breaker_open_timeout"`
	ResilienceBreakerHalfOpenMax  int           `yaml:"resilience_breaker_half_open_max_calls"`
}

func defaults() Config {
	return Config{
		APIPort:  "8000",
		LogLevel: "info",

		MaxUploadBytes:      20 << 20,
		APIRateLimitRPS:     0,
		APIRateLimitBurst:   10,
		APIMaxInFlight:      16,
		APIBackpressureWait: 250 * time.Millisecond,

		ReferenceSource:   "static",
		DJPTimeout:        10 * time.Second,
		DJPAllowedHosts:   []string{"efaktur.pajak.go.id", "svc.efaktur.pajak.go.id"},
		ReferenceCacheTTL: 24 * time.Hour,

		NATSSubject: "efaktur.validations",

		TesseractBin:  "tesseract",
		TesseractLang: "ind+eng",
		PdftoppmBin:   "pdftoppm",
		OCRDPI:        300,
		OCRMaxPages:   5,

		ResilienceRetryMaxAttempts:    3,
		ResilienceRetryInitialBackoff: 200 * time.Millisecond,
		ResilienceRetryMaxBackoff:     time.Second,
		ResilienceRetryMultiplier:     2,
		ResilienceBreakerEnabled:      true,
		ResilienceBreakerMinRequests:  5,
		ResilienceBreakerFailureRatio: 0.5,
		ResilienceBreakerOpenTimeout:  60 * time.Second,
		ResilienceBreakerHalfOpenMax:  1,
	}
}

// Load resolves configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIPort = mustEnv("API_PORT", cfg.APIPort)
	cfg.LogLevel = mustEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.MaxUploadBytes = int64(mustEnvInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	cfg.APIRateLimitRPS = mustEnvFloat("API_RATE_LIMIT_RPS", cfg.APIRateLimitRPS)
	cfg.APIRateLimitBurst = mustEnvInt("API_RATE_LIMIT_BURST", cfg.APIRateLimitBurst)
	cfg.APIMaxInFlight = mustEnvInt("API_MAX_INFLIGHT", cfg.APIMaxInFlight)
	cfg.APIBackpressureWait = mustEnvDuration("API_BACKPRESSURE_WAIT", cfg.APIBackpressureWait)

	cfg.ReferenceSource = strings.ToLower(mustEnv("REFERENCE_SOURCE", cfg.ReferenceSource))
	cfg.DJPTimeout = mustEnvDuration("DJP_TIMEOUT", cfg.DJPTimeout)
	cfg.DJPAllowedHosts = mustEnvList("DJP_ALLOWED_HOSTS", cfg.DJPAllowedHosts)
	cfg.PostgresDSN = mustEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.ReferenceCacheTTL = mustEnvDuration("REFERENCE_CACHE_TTL", cfg.ReferenceCacheTTL)

	cfg.NATSURL = mustEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = mustEnv("NATS_SUBJECT", cfg.NATSSubject)

	cfg.TesseractBin = mustEnv("TESSERACT_BIN", cfg.TesseractBin)
	cfg.TesseractLang = mustEnv("TESSERACT_LANG", cfg.TesseractLang)
	cfg.TessdataDir = mustEnv("TESSDATA_DIR", cfg.TessdataDir)
	cfg.PdftoppmBin = mustEnv("PDFTOPPM_BIN", cfg.PdftoppmBin)
	cfg.OCRDPI = mustEnvInt("OCR_DPI", cfg.OCRDPI)
	cfg.OCRMaxPages = mustEnvInt("OCR_MAX_PAGES", cfg.OCRMaxPages)
	cfg.ScratchPath = mustEnv("SCRATCH_PATH", cfg.ScratchPath)

	cfg.ResilienceRetryMaxAttempts = mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", cfg.ResilienceRetryMaxAttempts)
	cfg.ResilienceRetryInitialBackoff = mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", cfg.ResilienceRetryInitialBackoff)
	cfg.ResilienceRetryMaxBackoff = mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", cfg.ResilienceRetryMaxBackoff)
	cfg.ResilienceRetryMultiplier = mustEnvFloat("RESILIENCE_RETRY_MULTIPLIER", cfg.ResilienceRetryMultiplier)
	cfg.ResilienceBreakerEnabled = mustEnvBool("RESILIENCE_BREAKER_ENABLED", cfg.ResilienceBreakerEnabled)
	cfg.ResilienceBreakerMinRequests = mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", cfg.ResilienceBreakerMinRequests)
	cfg.ResilienceBreakerFailureRatio = mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", cfg.ResilienceBreakerFailureRatio)
	cfg.ResilienceBreakerOpenTimeout = mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", cfg.ResilienceBreakerOpenTimeout)
	cfg.ResilienceBreakerHalfOpenMax = mustEnvInt("RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS", cfg.ResilienceBreakerHalfOpenMax)
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// mustEnvList reads a comma separated list; blank entries are dropped.
func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
