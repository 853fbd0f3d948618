package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Empty DatabaseURL, Redis.URL
// or Kafka.Brokers select the in-memory / no-op implementations.
type Server struct {
	Addr           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration
	TrustedProxies string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	Auth         AuthConfig
	Credential   CredentialConfig
	VerifyLimits VerifyLimitConfig
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers            string
	AuditTopic         string
	Acks               string
	Retries            int
	DeliveryTimeout    time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration
	AdminAPIToken string
}

// CredentialConfig drives eligibility, issuance retries and rendering.
type CredentialConfig struct {
	VerifyBaseURL     string
	IssuerName        string
	PassingScore      float64
	ScoreScale        float64
	IssueMaxAttempts  int
	IssueRetryBackoff time.Duration
}

type VerifyLimitConfig struct {
	RatePerMinute int
	Burst         int
}

const (
	devSigningKey = "dev-secret-key-change-in-production"

	// DevAdminToken is the X-Admin-Token accepted in dev when ADMIN_API_TOKEN is unset.
	DevAdminToken = "dev-admin-token"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []error
	env := envOr("ACADEMY_ENV", "dev")

	cfg := Server{
		Addr:           envOr("ACADEMY_ADDR", ":8080"),
		Environment:    env,
		LogLevel:       envOr("LOG_LEVEL", "info"),
		RequestTimeout: durationOr("REQUEST_TIMEOUT", 15*time.Second, &errs),
		TrustedProxies: os.Getenv("TRUSTED_PROXIES"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOr("REDIS_POOL_SIZE", 20, &errs),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", 2*time.Second, &errs),
			ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", 500*time.Millisecond, &errs),
			WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", 500*time.Millisecond, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:            os.Getenv("KAFKA_BROKERS"),
			AuditTopic:         envOr("AUDIT_TOPIC", "academy.credentials.events"),
			Acks:               envOr("KAFKA_ACKS", "all"),
			Retries:            intOr("KAFKA_RETRIES", 3, &errs),
			DeliveryTimeout:    durationOr("KAFKA_DELIVERY_TIMEOUT", 30*time.Second, &errs),
			OutboxPollInterval: durationOr("OUTBOX_POLL_INTERVAL", 500*time.Millisecond, &errs),
			OutboxBatchSize:    intOr("OUTBOX_BATCH_SIZE", 100, &errs),
		},
		Auth: AuthConfig{
			JWTSigningKey: envOr("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:     envOr("JWT_ISSUER", "academy"),
			JWTAudience:   envOr("JWT_AUDIENCE", "academy-api"),
			TokenTTL:      durationOr("TOKEN_TTL", 15*time.Minute, &errs),
			AdminAPIToken: os.Getenv("ADMIN_API_TOKEN"),
		},
		Credential: CredentialConfig{
			VerifyBaseURL:     strings.TrimRight(envOr("VERIFY_BASE_URL", "http://localhost:8080"), "/"),
			IssuerName:        envOr("ISSUER_NAME", "Academy"),
			PassingScore:      floatOr("PASSING_SCORE", 70, &errs),
			ScoreScale:        floatOr("SCORE_SCALE", 100, &errs),
			IssueMaxAttempts:  intOr("ISSUE_MAX_ATTEMPTS", 3, &errs),
			IssueRetryBackoff: durationOr("ISSUE_RETRY_BACKOFF", 50*time.Millisecond, &errs),
		},
		VerifyLimits: VerifyLimitConfig{
			RatePerMinute: intOr("VERIFY_RATE_PER_MINUTE", 60, &errs),
			Burst:         intOr("VERIFY_BURST", 20, &errs),
		},
	}

	if cfg.IsDev() && cfg.Auth.AdminAPIToken == "" {
		cfg.Auth.AdminAPIToken = DevAdminToken
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Server{}, errors.Join(errs...)
	}
	return cfg, nil
}

// IsDev reports whether the process runs in the development environment.
func (s Server) IsDev() bool { return s.Environment == "dev" }

// Validate enforces cross-field rules. Production refuses development secrets.
func (s Server) Validate() error {
	var errs []error
	c := s.Credential
	if c.ScoreScale <= 0 {
		errs = append(errs, errors.New("SCORE_SCALE must be positive"))
	}
	if c.PassingScore < 0 || c.PassingScore > c.ScoreScale {
		errs = append(errs, fmt.Errorf("PASSING_SCORE must be within [0, %v]", c.ScoreScale))
	}
	if c.IssueMaxAttempts < 1 || c.IssueMaxAttempts > 10 {
		errs = append(errs, errors.New("ISSUE_MAX_ATTEMPTS must be between 1 and 10"))
	}
	if u, err := url.Parse(c.VerifyBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("VERIFY_BASE_URL must be an absolute URL"))
	}
	if s.VerifyLimits.RatePerMinute < 1 || s.VerifyLimits.Burst < 1 {
		errs = append(errs, errors.New("VERIFY_RATE_PER_MINUTE and VERIFY_BURST must be positive"))
	}
	if !s.IsDev() {
		if s.Auth.JWTSigningKey == devSigningKey {
			errs = append(errs, errors.New("JWT_SIGNING_KEY must be set outside dev"))
		}
		if s.Auth.AdminAPIToken == "" {
			errs = append(errs, errors.New("ADMIN_API_TOKEN must be set outside dev"))
		}
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func floatOr(key string, fallback float64, errs *[]error) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func durationOr(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}
