package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// DataRoot is the directory the report tree, order files, and shared
	// images live under.
	DataRoot  string
	ReportDir string
	OrderDir  string

	// StaticBaseURL, when set, is the HTTP base the published assets are
	// served from. Empty means assets are local files only.
	StaticBaseURL string

	Archive ArchiveConfig

	// OrderDSN, when set, is the Postgres DSN custom batch orders are
	// loaded from instead of order files.
	OrderDSN string

	ProbeStart   int
	ProbeCeiling int
	ScanWorkers  int
	CheckTimeout time.Duration
	DirectoryTTL time.Duration

	Interesting []string
}

// ArchiveConfig points at the S3-compatible store the published report
// assets are archived to.
type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	dataRoot := flag.String("data", "static", "data root directory")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}
	if envRoot := strings.TrimSpace(os.Getenv("DATA_ROOT")); envRoot != "" {
		*dataRoot = envRoot
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:          *port,
		Env:           env,
		DataRoot:      *dataRoot,
		ReportDir:     firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_DIR")), "report"),
		OrderDir:      firstNonEmpty(strings.TrimSpace(os.Getenv("ORDER_DIR")), "order"),
		StaticBaseURL: strings.TrimSpace(os.Getenv("STATIC_BASE_URL")),
		Archive:       loadArchiveConfig(env),
		OrderDSN:      strings.TrimSpace(os.Getenv("ORDER_PG_DSN")),
		ProbeStart:    intEnv("DIAG_PROBE_START", 10),
		ProbeCeiling:  intEnv("DIAG_PROBE_CEILING", 30),
		ScanWorkers:   intEnv("SCAN_WORKERS", 8),
		CheckTimeout:  durationEnv("ASSET_CHECK_TIMEOUT", 5*time.Second),
		DirectoryTTL:  durationEnv("DIRECTORY_CACHE_TTL", 15*time.Minute),
		Interesting:   loadInteresting(),
	}, nil
}

func loadArchiveConfig(env string) ArchiveConfig {
	endpoint := resolveArchiveEndpoint(env)
	return ArchiveConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")), "wiki-know-reports"),
		UseSSL:    resolveArchiveUseSSL(env),
		Prefix:    strings.TrimSpace(os.Getenv("ARCHIVE_S3_PREFIX")),
	}
}

func resolveArchiveEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ARCHIVE_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT"))
}

func resolveArchiveUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARCHIVE_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

// loadInteresting reads the curated test list, one of the comma-separated
// INTERESTING_TESTS variable or the built-in April 2013 picks.
func loadInteresting() []string {
	if raw := strings.TrimSpace(os.Getenv("INTERESTING_TESTS")); raw != "" {
		var out []string
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
		return out
	}
	return defaultInteresting
}

// defaultInteresting is the hand-picked set of high-confidence, large-effect
// tests from the April 2013 fundraiser.
var defaultInteresting = []string{
	"1366633701Bolding",
	"1366633701TranslateRUru",
	"1366633701Translateit",
	"1366634069Bolding",
	"1366635965Banner.design",
	"1366636027Banner.design",
	"1366637220askString",
	"1366637397firstSentence",
	"1366638504icon",
	"1366642072var",
	"1366642192buttonText",
	"1366642279tabText",
	"1366642382askString",
	"1366645458color",
	"1366645609color",
	"1366645732color",
	"1366650515dropdown.format",
	"1366650784dropdown.type",
	"1366650867do.we.mention.this.is.tax.deductable",
	"1366652971var",
	"1366653155var",
	"1366653283useful",
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
