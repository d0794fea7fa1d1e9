package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Input sources.
const (
	SourceFile  = "file"
	SourceKafka = "kafka"
)

// Raw store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	AnthropicAPIKey       string
	ClassifierModel       string
	ClassifierTimeout     time.Duration
	ClassifierMaxAttempts int
	ClassifierInitBackoff time.Duration
	ClassifierMaxBackoff  time.Duration
	ClassifierRatePerSec  float64
	ClassifierBurst       int
	IncidentMaxChars      int
	ScoreMaxChars         int
	FreshnessPolicy       domain.FreshnessPolicy
	FreshnessWindow       time.Duration
	FreshnessLocation     *time.Location
	RelevanceMode         domain.RelevanceMode
	MinContentLength      int
	TargetsFile           string
	Targets               domain.Targets
	DataDir               string
	RawStoreBackend       string
	RawStorePath          string
	VerifiedJSONPath      string
	ReportPath            string
	LockPath              string
	InputSource           string
	InputFile             string
	KafkaBrokers          []string
	KafkaSourceTopic      string
	KafkaSinkTopic        string
	KafkaGroupID          string
	BatchSize             int
	BatchFlushInterval    time.Duration
	NotifyEmailEnabled    bool
	SMTPHost              string
	SMTPPort              int
	SMTPUser              string
	SMTPPass              string
	EmailFrom             string
	EmailTo               []string
	NotifyKafkaEnabled    bool
	Schedule              string
	ScheduleTimezone      string
	JobTimeout            time.Duration
	HTTPAddr              string
	LogLevel              string
	LogFormat             string
	ShutdownTimeout       time.Duration
}

// Freshness returns the configured recency policy.
func (c *Config) Freshness() domain.Freshness {
	return domain.Freshness{Policy: c.FreshnessPolicy, Window: c.FreshnessWindow, Location: c.FreshnessLocation}
}

// Load reads configuration from environment variables, applying defaults where unset.
// A missing classifier key, or missing SMTP settings when email is enabled, is an error.
func Load() (*Config, error) {
	var errs []error
	dur := func(key, def string) time.Duration {
		d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s", key))
		}
		return d
	}
	posInt := func(key string, def int) int {
		n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, strconv.Itoa(def)))
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s", key))
		}
		return n
	}
	boolean := func(key string) bool {
		v := sharedcfg.EnvOrDefault(key, "false")
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s", key))
		}
		return b
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		errs = append(errs, err)
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		errs = append(errs, err)
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		errs = append(errs, err)
	}

	policy, err := domain.ParseFreshnessPolicy(sharedcfg.EnvOrDefault("FRESHNESS_POLICY", string(domain.PolicyElapsed)))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid FRESHNESS_POLICY: %w", err))
	}
	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("FRESHNESS_TIMEZONE", "UTC"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid FRESHNESS_TIMEZONE: %w", err))
	}
	mode, err := domain.ParseRelevanceMode(sharedcfg.EnvOrDefault("RELEVANCE_MODE", string(domain.ModeAnd)))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid RELEVANCE_MODE: %w", err))
	}

	rate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("CLASSIFIER_RATE_PER_SECOND", "2"), 64)
	if err != nil || rate <= 0 {
		errs = append(errs, errors.New("invalid CLASSIFIER_RATE_PER_SECOND"))
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "output")
	backend := strings.ToLower(sharedcfg.EnvOrDefault("RAW_STORE_BACKEND", BackendJSON))
	rawDefault := filepath.Join(dataDir, "tweets_raw.json")
	if backend == BackendSQLite {
		rawDefault = filepath.Join(dataDir, "tweets_raw.db")
	}

	cfg := &Config{
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		ClassifierModel:       sharedcfg.EnvOrDefault("CLASSIFIER_MODEL", "claude-3-5-haiku-latest"),
		ClassifierTimeout:     dur("CLASSIFIER_TIMEOUT", "30s"),
		ClassifierMaxAttempts: posInt("CLASSIFIER_MAX_ATTEMPTS", 3),
		ClassifierInitBackoff: dur("CLASSIFIER_INITIAL_BACKOFF", "500ms"),
		ClassifierMaxBackoff:  dur("CLASSIFIER_MAX_BACKOFF", "5s"),
		ClassifierRatePerSec:  rate,
		ClassifierBurst:       posInt("CLASSIFIER_BURST", 1),
		IncidentMaxChars:      posInt("INCIDENT_MAX_CHARS", 4000),
		ScoreMaxChars:         posInt("SCORE_MAX_CHARS", 2000),
		FreshnessPolicy:       policy,
		FreshnessWindow:       dur("FRESHNESS_WINDOW", "72h"),
		FreshnessLocation:     loc,
		RelevanceMode:         mode,
		MinContentLength:      posInt("MIN_CONTENT_LENGTH", domain.DefaultMinContentLength),
		TargetsFile:           os.Getenv("TARGETS_FILE"),
		DataDir:               dataDir,
		RawStoreBackend:       backend,
		RawStorePath:          sharedcfg.EnvOrDefault("RAW_STORE_PATH", rawDefault),
		VerifiedJSONPath:      sharedcfg.EnvOrDefault("VERIFIED_JSON_PATH", filepath.Join(dataDir, "live_verified_fires.json")),
		ReportPath:            sharedcfg.EnvOrDefault("REPORT_PATH", filepath.Join(dataDir, "verified_fires.xlsx")),
		LockPath:              sharedcfg.EnvOrDefault("LOCK_PATH", filepath.Join(dataDir, ".firewatch.lock")),
		InputSource:           strings.ToLower(sharedcfg.EnvOrDefault("INPUT_SOURCE", SourceFile)),
		InputFile:             sharedcfg.EnvOrDefault("INPUT_FILE", "tweets_raw.json"),
		KafkaBrokers:          sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:      sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-fire-posts"),
		KafkaSinkTopic:        sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "verified-fire-incidents"),
		KafkaGroupID:          sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "firewatch"),
		BatchSize:             batchSize,
		BatchFlushInterval:    flushInterval,
		NotifyEmailEnabled:    boolean("NOTIFY_EMAIL_ENABLED"),
		SMTPHost:              os.Getenv("SMTP_HOST"),
		SMTPPort:              posInt("SMTP_PORT", 587),
		SMTPUser:              os.Getenv("SMTP_USER"),
		SMTPPass:              os.Getenv("SMTP_PASS"),
		EmailFrom:             os.Getenv("EMAIL_FROM"),
		EmailTo:               splitList(os.Getenv("EMAIL_TO")),
		NotifyKafkaEnabled:    boolean("NOTIFY_KAFKA_ENABLED"),
		Schedule:              sharedcfg.EnvOrDefault("SCHEDULE", "0 */2 * * *"),
		ScheduleTimezone:      sharedcfg.EnvOrDefault("SCHEDULE_TIMEZONE", "UTC"),
		JobTimeout:            dur("JOB_TIMEOUT", "30m"),
		HTTPAddr:              sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:              sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:             sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:       shutdownTimeout,
	}

	if cfg.AnthropicAPIKey == "" {
		errs = append(errs, errors.New("ANTHROPIC_API_KEY is required"))
	}
	if cfg.RawStoreBackend != BackendJSON && cfg.RawStoreBackend != BackendSQLite {
		errs = append(errs, fmt.Errorf("invalid RAW_STORE_BACKEND %q", cfg.RawStoreBackend))
	}
	switch cfg.InputSource {
	case SourceFile, SourceKafka:
	default:
		errs = append(errs, fmt.Errorf("invalid INPUT_SOURCE %q", cfg.InputSource))
	}
	if (cfg.InputSource == SourceKafka || cfg.NotifyKafkaEnabled) && len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if cfg.NotifyEmailEnabled {
		for key, v := range map[string]string{
			"SMTP_HOST":  cfg.SMTPHost,
			"SMTP_USER":  cfg.SMTPUser,
			"SMTP_PASS":  cfg.SMTPPass,
			"EMAIL_FROM": cfg.EmailFrom,
		} {
			if v == "" {
				errs = append(errs, fmt.Errorf("%s is required when NOTIFY_EMAIL_ENABLED is true", key))
			}
		}
		if len(cfg.EmailTo) == 0 {
			errs = append(errs, errors.New("EMAIL_TO is required when NOTIFY_EMAIL_ENABLED is true"))
		}
	}
	if cfg.ClassifierMaxBackoff > 0 && cfg.ClassifierInitBackoff > cfg.ClassifierMaxBackoff {
		errs = append(errs, errors.New("CLASSIFIER_INITIAL_BACKOFF exceeds CLASSIFIER_MAX_BACKOFF"))
	}

	targets, err := LoadTargets(cfg.TargetsFile)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Targets = targets

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
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
