package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dzoothis/oddsfeed/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	HTTPAddr       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LogLevel       logging.Level

	DBURL                   string
	DBDisablePreparedBinary bool

	CacheEnabled bool
	CacheTTL     time.Duration

	CORSAllowedOrigins []string

	PprofEnabled bool
	PprofAddr    string

	UptraceEnabled     bool
	UptraceDSN         string
	UptraceLogsEnabled bool

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration

	FeedEnabled               bool
	FeedProviders             []string
	FeedBaseURLByProvider     map[string]string
	FeedAPIKeyByProvider      map[string]string
	FeedTimeout               time.Duration
	FeedMaxRetries            int
	FeedCircuitEnabled        bool
	FeedCircuitFailureCount   int
	FeedCircuitOpenTimeout    time.Duration
	FeedCircuitHalfOpenMaxReq int

	ResolutionAcceptThreshold  float64
	ResolutionFloorThreshold   float64
	ResolutionAmbiguityEpsilon float64

	AggregationTimeTolerance time.Duration

	SyncSportIDs        []int64
	SyncFetchTimeout    time.Duration
	SyncSweepAfterCycle bool

	LifecycleStalenessThreshold time.Duration
	LifecycleOverrunGrace       time.Duration
	LifecycleSweepWorkers       int

	InternalJobToken            string
	QStashEnabled               bool
	QStashBaseURL               string
	QStashToken                 string
	QStashTargetBaseURL         string
	QStashRetries               int
	QStashCircuitEnabled        bool
	QStashCircuitFailureCount   int
	QStashCircuitOpenTimeout    time.Duration
	QStashCircuitHalfOpenMaxReq int
	JobSyncInterval             time.Duration
	JobLifecycleInterval        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("APP_SERVICE_NAME", "oddsfeed-api"),
		ServiceVersion: getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:       getEnv("APP_HTTP_ADDR", ":8080"),
		LogLevel:       parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		DBURL:          strings.TrimSpace(getEnv("DB_URL", "")),
	}

	cfg.ReadTimeout, err = getEnvAsDuration("APP_READ_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	cfg.WriteTimeout, err = getEnvAsDuration("APP_WRITE_TIMEOUT", "15s")
	if err != nil {
		return Config{}, err
	}

	cfg.DBDisablePreparedBinary, err = getEnvAsBool("DB_DISABLE_PREPARED_BINARY_RESULT", "true")
	if err != nil {
		return Config{}, err
	}

	cfg.CacheEnabled, err = getEnvAsBool("CACHE_ENABLED", "true")
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL, err = getEnvAsDuration("CACHE_TTL", "60s")
	if err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be > 0")
	}

	cfg.CORSAllowedOrigins = splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*"))
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	cfg.PprofEnabled, err = getEnvAsBool("PPROF_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if cfg.PprofEnabled && cfg.PprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadFeed(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadPipeline(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadJobs(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadObservability(cfg *Config) error {
	var err error

	cfg.UptraceEnabled, err = getEnvAsBool("UPTRACE_ENABLED", "false")
	if err != nil {
		return err
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	cfg.UptraceLogsEnabled, err = getEnvAsBool("UPTRACE_LOGS_ENABLED", "true")
	if err != nil {
		return err
	}

	cfg.PyroscopeEnabled, err = getEnvAsBool("PYROSCOPE_ENABLED", "false")
	if err != nil {
		return err
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	cfg.PyroscopeUploadRate, err = getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", "15s")
	if err != nil {
		return err
	}
	if cfg.PyroscopeUploadRate <= 0 {
		return fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	return nil
}

func loadFeed(cfg *Config) error {
	var err error

	cfg.FeedEnabled, err = getEnvAsBool("FEED_ENABLED", "false")
	if err != nil {
		return err
	}
	cfg.FeedProviders = splitCSV(getEnv("FEED_PROVIDERS", "oddsprime,betstream,rapidodds"))
	if len(cfg.FeedProviders) == 0 {
		return fmt.Errorf("FEED_PROVIDERS cannot be empty")
	}

	cfg.FeedBaseURLByProvider, err = parseStringMap(getEnv("FEED_BASE_URL_MAP", ""))
	if err != nil {
		return fmt.Errorf("parse FEED_BASE_URL_MAP: %w", err)
	}
	cfg.FeedAPIKeyByProvider, err = parseStringMap(getEnv("FEED_API_KEY_MAP", ""))
	if err != nil {
		return fmt.Errorf("parse FEED_API_KEY_MAP: %w", err)
	}
	if cfg.FeedEnabled {
		for _, provider := range cfg.FeedProviders {
			if strings.TrimSpace(cfg.FeedBaseURLByProvider[provider]) == "" {
				return fmt.Errorf("FEED_BASE_URL_MAP is missing provider %q", provider)
			}
			if strings.TrimSpace(cfg.FeedAPIKeyByProvider[provider]) == "" {
				return fmt.Errorf("FEED_API_KEY_MAP is missing provider %q", provider)
			}
		}
	}

	cfg.FeedTimeout, err = getEnvAsDuration("FEED_TIMEOUT", "20s")
	if err != nil {
		return err
	}
	if cfg.FeedTimeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be > 0")
	}
	cfg.FeedMaxRetries, err = getEnvAsInt("FEED_MAX_RETRIES", 2)
	if err != nil {
		return fmt.Errorf("parse FEED_MAX_RETRIES: %w", err)
	}
	if cfg.FeedMaxRetries < 0 {
		return fmt.Errorf("FEED_MAX_RETRIES must be >= 0")
	}
	cfg.FeedCircuitEnabled, err = getEnvAsBool("FEED_CIRCUIT_ENABLED", "true")
	if err != nil {
		return err
	}
	cfg.FeedCircuitFailureCount, err = getEnvAsInt("FEED_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return fmt.Errorf("parse FEED_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if cfg.FeedCircuitFailureCount < 1 {
		return fmt.Errorf("FEED_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	cfg.FeedCircuitOpenTimeout, err = getEnvAsDuration("FEED_CIRCUIT_OPEN_TIMEOUT", "15s")
	if err != nil {
		return err
	}
	if cfg.FeedCircuitOpenTimeout <= 0 {
		return fmt.Errorf("FEED_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	cfg.FeedCircuitHalfOpenMaxReq, err = getEnvAsInt("FEED_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return fmt.Errorf("parse FEED_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if cfg.FeedCircuitHalfOpenMaxReq < 1 {
		return fmt.Errorf("FEED_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	return nil
}

func loadPipeline(cfg *Config) error {
	var err error

	cfg.ResolutionAcceptThreshold, err = getEnvAsFloat("RESOLUTION_ACCEPT_THRESHOLD", 0.85)
	if err != nil {
		return fmt.Errorf("parse RESOLUTION_ACCEPT_THRESHOLD: %w", err)
	}
	cfg.ResolutionFloorThreshold, err = getEnvAsFloat("RESOLUTION_FLOOR_THRESHOLD", 0.55)
	if err != nil {
		return fmt.Errorf("parse RESOLUTION_FLOOR_THRESHOLD: %w", err)
	}
	cfg.ResolutionAmbiguityEpsilon, err = getEnvAsFloat("RESOLUTION_AMBIGUITY_EPSILON", 0.03)
	if err != nil {
		return fmt.Errorf("parse RESOLUTION_AMBIGUITY_EPSILON: %w", err)
	}

	cfg.AggregationTimeTolerance, err = getEnvAsDuration("AGGREGATION_TIME_TOLERANCE", "30m")
	if err != nil {
		return err
	}
	if cfg.AggregationTimeTolerance <= 0 {
		return fmt.Errorf("AGGREGATION_TIME_TOLERANCE must be > 0")
	}

	cfg.SyncSportIDs, err = parseInt64CSV(getEnv("SYNC_SPORT_IDS", "1"))
	if err != nil {
		return fmt.Errorf("parse SYNC_SPORT_IDS: %w", err)
	}
	cfg.SyncFetchTimeout, err = getEnvAsDuration("SYNC_FETCH_TIMEOUT", "25s")
	if err != nil {
		return err
	}
	if cfg.SyncFetchTimeout <= 0 {
		return fmt.Errorf("SYNC_FETCH_TIMEOUT must be > 0")
	}
	cfg.SyncSweepAfterCycle, err = getEnvAsBool("SYNC_SWEEP_AFTER_CYCLE", "true")
	if err != nil {
		return err
	}

	cfg.LifecycleStalenessThreshold, err = getEnvAsDuration("LIFECYCLE_STALENESS_THRESHOLD", "48h")
	if err != nil {
		return err
	}
	if cfg.LifecycleStalenessThreshold <= 0 {
		return fmt.Errorf("LIFECYCLE_STALENESS_THRESHOLD must be > 0")
	}
	cfg.LifecycleOverrunGrace, err = getEnvAsDuration("LIFECYCLE_OVERRUN_GRACE", "30m")
	if err != nil {
		return err
	}
	if cfg.LifecycleOverrunGrace <= 0 {
		return fmt.Errorf("LIFECYCLE_OVERRUN_GRACE must be > 0")
	}
	cfg.LifecycleSweepWorkers, err = getEnvAsInt("LIFECYCLE_SWEEP_WORKERS", 4)
	if err != nil {
		return fmt.Errorf("parse LIFECYCLE_SWEEP_WORKERS: %w", err)
	}
	if cfg.LifecycleSweepWorkers < 1 {
		return fmt.Errorf("LIFECYCLE_SWEEP_WORKERS must be >= 1")
	}

	return nil
}

func loadJobs(cfg *Config) error {
	var err error

	cfg.InternalJobToken = strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", ""))

	cfg.QStashEnabled, err = getEnvAsBool("QSTASH_ENABLED", "false")
	if err != nil {
		return err
	}
	cfg.QStashBaseURL = strings.TrimSpace(getEnv("QSTASH_BASE_URL", "https://qstash.upstash.io"))
	cfg.QStashToken = strings.TrimSpace(getEnv("QSTASH_TOKEN", ""))
	cfg.QStashTargetBaseURL = strings.TrimSpace(getEnv("QSTASH_TARGET_BASE_URL", ""))
	cfg.QStashRetries, err = getEnvAsInt("QSTASH_RETRIES", 3)
	if err != nil {
		return fmt.Errorf("parse QSTASH_RETRIES: %w", err)
	}
	if cfg.QStashRetries < 0 {
		return fmt.Errorf("QSTASH_RETRIES must be >= 0")
	}
	cfg.QStashCircuitEnabled, err = getEnvAsBool("QSTASH_CIRCUIT_ENABLED", "true")
	if err != nil {
		return err
	}
	cfg.QStashCircuitFailureCount, err = getEnvAsInt("QSTASH_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return fmt.Errorf("parse QSTASH_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if cfg.QStashCircuitFailureCount < 1 {
		return fmt.Errorf("QSTASH_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	cfg.QStashCircuitOpenTimeout, err = getEnvAsDuration("QSTASH_CIRCUIT_OPEN_TIMEOUT", "15s")
	if err != nil {
		return err
	}
	if cfg.QStashCircuitOpenTimeout <= 0 {
		return fmt.Errorf("QSTASH_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	cfg.QStashCircuitHalfOpenMaxReq, err = getEnvAsInt("QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return fmt.Errorf("parse QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if cfg.QStashCircuitHalfOpenMaxReq < 1 {
		return fmt.Errorf("QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	if cfg.QStashEnabled {
		if cfg.QStashToken == "" {
			return fmt.Errorf("QSTASH_TOKEN is required when QSTASH_ENABLED=true")
		}
		if cfg.QStashTargetBaseURL == "" {
			return fmt.Errorf("QSTASH_TARGET_BASE_URL is required when QSTASH_ENABLED=true")
		}
		if cfg.InternalJobToken == "" {
			return fmt.Errorf("INTERNAL_JOB_TOKEN is required when QSTASH_ENABLED=true")
		}
	}

	cfg.JobSyncInterval, err = getEnvAsDuration("JOB_SYNC_INTERVAL", "1m")
	if err != nil {
		return err
	}
	if cfg.JobSyncInterval <= 0 {
		return fmt.Errorf("JOB_SYNC_INTERVAL must be > 0")
	}
	cfg.JobLifecycleInterval, err = getEnvAsDuration("JOB_LIFECYCLE_INTERVAL", "5m")
	if err != nil {
		return err
	}
	if cfg.JobLifecycleInterval <= 0 {
		return fmt.Errorf("JOB_LIFECYCLE_INTERVAL must be > 0")
	}

	return nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsBool(key, fallback string) (bool, error) {
	out, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseInt64CSV(v string) ([]int64, error) {
	parts := splitCSV(v)
	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", part, err)
		}
		if value <= 0 {
			return nil, fmt.Errorf("id must be > 0, got %q", part)
		}
		out = append(out, value)
	}
	return out, nil
}

// parseStringMap parses "key=value,key=value" items. Values may contain
// colons, so '=' is the separator.
func parseStringMap(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}

		segments := strings.SplitN(item, "=", 2)
		if len(segments) != 2 {
			return nil, fmt.Errorf("invalid map item %q, expected key=value", item)
		}

		key := strings.ToLower(strings.TrimSpace(segments[0]))
		if key == "" {
			return nil, fmt.Errorf("empty key in item %q", item)
		}
		value := strings.TrimSpace(segments[1])
		if value == "" {
			return nil, fmt.Errorf("empty value in item %q", item)
		}

		out[key] = value
	}
	return out, nil
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}
