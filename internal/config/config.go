package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingDomain        = errors.New("site.domain is required")
	ErrMissingCMSURL        = errors.New("CMS_BASE_URL is required")
	ErrInvalidPolicy        = errors.New("FAILURE_POLICY must be 'stop' or 'skip'")
	ErrInvalidBackend       = errors.New("LEDGER_BACKEND must be 'file' or 'redis'")
	ErrInvalidProvider      = errors.New("TRANSLATOR_PROVIDER must be 'openai' or 'gemini'")
	ErrInvalidConcurrency   = errors.New("IMAGE_CONCURRENCY must be at least 1")
	ErrMissingSelector      = errors.New("site selectors must not be empty")
	ErrMissingArchiveRegion = errors.New("ARCHIVE_REGION is required when ARCHIVE_BUCKET is set")
)

const (
	PolicyStop = "stop"
	PolicySkip = "skip"

	BackendFile  = "file"
	BackendRedis = "redis"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Site       SiteConfig
	Browser    BrowserConfig
	CMS        CMSConfig
	Translator TranslatorConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Archive    ArchiveConfig
	Server     ServerConfig
	Pipeline   PipelineConfig
	Logging    LoggingConfig
}

// SiteConfig describes the crawled shop. It is read from the YAML site profile.
type SiteConfig struct {
	Domain                 string         `yaml:"domain"`
	ListingPath            string         `yaml:"listing_path"`
	ListingSelector        string         `yaml:"listing_selector"`
	Attributes             AttributeNames `yaml:"attributes"`
	StructuredDataSelector string         `yaml:"structured_data_selector"`
	StructuredDataMarker   string         `yaml:"structured_data_marker"`
	HighlightsSelector     string         `yaml:"highlights_selector"`
	DescriptionSelector    string         `yaml:"description_selector"`
	Prompts                Prompts        `yaml:"prompts"`
}

// AttributeNames maps listing element attributes to item fields.
type AttributeNames struct {
	SKU   string `yaml:"sku"`
	Link  string `yaml:"link"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// Prompts are the system instructions sent with each translation request.
type Prompts struct {
	Title       string `yaml:"title"`
	Highlights  string `yaml:"highlights"`
	Description string `yaml:"description"`
}

type BrowserConfig struct {
	Headless  bool
	Timeout   time.Duration
	UserAgent string
	Locale    string
}

type CMSConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

type TranslatorConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type StorageConfig struct {
	LedgerBackend string
	LedgerPath    string
	RedisKey      string
}

// DatabaseConfig holds the publication history connection. URL, when set,
// takes precedence over the individual fields.
type DatabaseConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	EventStream string
}

type ArchiveConfig struct {
	Bucket string
	Region string
	Prefix string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

type ServerConfig struct {
	Addr string
}

type PipelineConfig struct {
	FailurePolicy    string
	MaxPages         int
	ImageConcurrency int
	ImageDir         string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadEnvFile loads key/value pairs from a dotenv file into the environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the environment and the site profile
// named by SITE_PROFILE.
func Load() (*Config, error) {
	return LoadWithProfile(getEnvOrDefault("SITE_PROFILE", "site.yaml"))
}

func LoadWithProfile(profilePath string) (*Config, error) {
	site, err := loadSiteProfile(profilePath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Site: site,
		Browser: BrowserConfig{
			Headless:  getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:   getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			UserAgent: getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			Locale:    getEnvOrDefault("BROWSER_LOCALE", "en-US"),
		},
		CMS: CMSConfig{
			BaseURL:  strings.TrimRight(getEnvOrDefault("CMS_BASE_URL", ""), "/"),
			Username: getEnvOrDefault("CMS_USERNAME", ""),
			Password: getEnvOrDefault("CMS_PASSWORD", ""),
			Timeout:  getDurationOrDefault("CMS_TIMEOUT", 60*time.Second),
		},
		Translator: TranslatorConfig{
			Provider: strings.ToLower(getEnvOrDefault("TRANSLATOR_PROVIDER", ProviderOpenAI)),
			APIKey:   getEnvOrDefault("TRANSLATOR_API_KEY", ""),
			Model:    getEnvOrDefault("TRANSLATOR_MODEL", ""),
			BaseURL:  getEnvOrDefault("TRANSLATOR_BASE_URL", ""),
		},
		Storage: StorageConfig{
			LedgerBackend: strings.ToLower(getEnvOrDefault("LEDGER_BACKEND", BackendFile)),
			LedgerPath:    getEnvOrDefault("LEDGER_PATH", "memory.json"),
			RedisKey:      getEnvOrDefault("LEDGER_REDIS_KEY", "catalog-sync:processed"),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			URL:      getEnvOrDefault("DATABASE_URL", ""),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "catalog_sync"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Addr:        getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:    getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:          getIntOrDefault("REDIS_DB", 0),
			EventStream: getEnvOrDefault("EVENTS_STREAM", ""),
		},
		Archive: ArchiveConfig{
			Bucket: getEnvOrDefault("ARCHIVE_BUCKET", ""),
			Region: getEnvOrDefault("ARCHIVE_REGION", ""),
			Prefix: getEnvOrDefault("ARCHIVE_PREFIX", "catalog-sync"),
		},
		Server: ServerConfig{
			Addr: getEnvOrDefault("STATUS_ADDR", ""),
		},
		Pipeline: PipelineConfig{
			FailurePolicy:    strings.ToLower(getEnvOrDefault("FAILURE_POLICY", PolicyStop)),
			MaxPages:         getIntOrDefault("MAX_PAGES", 0),
			ImageConcurrency: getIntOrDefault("IMAGE_CONCURRENCY", 4),
			ImageDir:         getEnvOrDefault("IMAGE_DIR", "images"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if domain := os.Getenv("SITE_DOMAIN"); domain != "" {
		cfg.Site.Domain = domain
	}
	cfg.Site.Domain = strings.TrimRight(cfg.Site.Domain, "/")

	if cfg.Translator.Model == "" {
		cfg.Translator.Model = defaultModel(cfg.Translator.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Site.Domain == "" {
		return ErrMissingDomain
	}

	if c.CMS.BaseURL == "" {
		return ErrMissingCMSURL
	}

	if c.Site.ListingSelector == "" || c.Site.StructuredDataSelector == "" ||
		c.Site.HighlightsSelector == "" || c.Site.DescriptionSelector == "" {
		return ErrMissingSelector
	}

	switch c.Pipeline.FailurePolicy {
	case PolicyStop, PolicySkip:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidPolicy, c.Pipeline.FailurePolicy)
	}

	switch c.Storage.LedgerBackend {
	case BackendFile, BackendRedis:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidBackend, c.Storage.LedgerBackend)
	}

	switch c.Translator.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidProvider, c.Translator.Provider)
	}

	if c.Pipeline.ImageConcurrency < 1 {
		return ErrInvalidConcurrency
	}

	if c.Archive.Enabled() && c.Archive.Region == "" {
		return ErrMissingArchiveRegion
	}

	return nil
}

// DefaultSite returns the profile used when no site.yaml is present.
func DefaultSite() SiteConfig {
	return SiteConfig{
		ListingPath:     "/product/page/",
		ListingSelector: ".product-item",
		Attributes: AttributeNames{
			SKU:   "sku",
			Link:  "href",
			Name:  "name",
			Price: "price",
		},
		StructuredDataSelector: `script[type="application/ld+json"]`,
		StructuredDataMarker:   `"@type":"Product"`,
		HighlightsSelector:     ".product-highlights",
		DescriptionSelector:    ".product-description",
		Prompts: Prompts{
			Title:       defaultPrompt,
			Highlights:  defaultPrompt,
			Description: defaultPrompt,
		},
	}
}

// loadSiteProfile overlays the YAML profile at path on top of DefaultSite.
func loadSiteProfile(path string) (SiteConfig, error) {
	site := DefaultSite()
	if path == "" {
		return site, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return site, nil
		}
		return site, fmt.Errorf("failed to read site profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &site); err != nil {
		return site, fmt.Errorf("failed to parse site profile %s: %w", path, err)
	}

	return site, nil
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-1.5-flash"
	}
	return "gpt-3.5-turbo-0125"
}

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultPrompt    = "You translate e-commerce product content from English to French. Keep any HTML markup intact and answer with the translation only."
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
