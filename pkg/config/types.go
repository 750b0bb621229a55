package config

import "time"

// Export represents the full config for one shop export
type Export struct {
	Name        string      `yaml:"name" validate:"required"`        // Required: used in logs and metrics
	ProjectKey  string      `yaml:"project_key" validate:"required"` // Required: API project key
	Region      string      `yaml:"region"`                          // EU or US
	APIURL      string      `yaml:"api_url,omitempty"`               // overrides the region's API host
	AuthURL     string      `yaml:"auth_url,omitempty"`              // overrides the region's auth host
	Credentials Credentials `yaml:"credentials"`                     // Client credentials for the token endpoint
	HTTP        HTTP        `yaml:"http,omitempty"`                  // Transport tuning
	Extract     Extract     `yaml:"extract,omitempty"`               // Pagination and normalization settings
	Purchases   Purchases   `yaml:"purchases,omitempty"`             // Purchase CSV settings
	Customers   Customers   `yaml:"customers,omitempty"`             // Optional customer CSV
	Feed        Feed        `yaml:"feed,omitempty"`                  // Product feed settings
	Cache       Cache       `yaml:"cache,omitempty"`                 // Category lookup cache
	Output      Output      `yaml:"output,omitempty"`                // Artifact destination
	Metrics     Metrics     `yaml:"metrics,omitempty"`               // Run metrics
	Notify      Notify      `yaml:"notify,omitempty"`                // Run-completed notification
	Schedule    string      `yaml:"schedule,omitempty"`              // Cron spec for scheduled runs
	Log         Log         `yaml:"log,omitempty"`                   // Logging
}

// Credentials contains the OAuth2 client credentials
type Credentials struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
	Token        string `yaml:"token,omitempty"` // pre-issued bearer token, skips the token endpoint
}

// HTTP holds transport settings
type HTTP struct {
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	MaxAttempts       int           `yaml:"max_attempts,omitempty" validate:"gte=0"`
	InitialBackoff    float64       `yaml:"initial_backoff,omitempty" validate:"gte=0"` // seconds
	BackoffMultiplier float64       `yaml:"backoff_multiplier,omitempty" validate:"gte=0"`
	RetryableStatuses []int         `yaml:"retryable_statuses,omitempty"`
	RateLimit         float64       `yaml:"rate_limit,omitempty" validate:"gte=0"` // requests per second, 0 disables
	Burst             int           `yaml:"burst,omitempty" validate:"gte=0"`
}

// Extract defines how collections are walked and normalized
type Extract struct {
	PageSize   int      `yaml:"page_size,omitempty"`
	Staged     string   `yaml:"staged,omitempty"` // "true" or "false"
	Locales    []string `yaml:"locales,omitempty"`
	Currencies []string `yaml:"currencies,omitempty"`
	MaxItems   *int     `yaml:"max_items,omitempty"` // bounded sample instead of a full walk
	// Where holds an extra predicate per collection, e.g.
	// orders: 'orderState = "Complete"'. It is ANDed with the cursor.
	Where map[string]string `yaml:"where,omitempty"`
}

// Purchases defines the purchase table export
type Purchases struct {
	Enabled           *bool  `yaml:"enabled,omitempty"`
	File              string `yaml:"file,omitempty"`
	ReportingCurrency string `yaml:"reporting_currency,omitempty"`
}

// Customers defines the optional customer table export
type Customers struct {
	File string `yaml:"file,omitempty"`
}

// Feed defines the product feed export
type Feed struct {
	Enabled       *bool  `yaml:"enabled,omitempty"`
	File          string `yaml:"file,omitempty"`
	Title         string `yaml:"title,omitempty"`
	Website       string `yaml:"website,omitempty"`
	Currency      string `yaml:"currency,omitempty"`
	Locale        string `yaml:"locale,omitempty"`
	CategoryMode  string `yaml:"category_mode,omitempty"` // single or all
	RenameTable   string `yaml:"rename_table,omitempty"`  // path to "old: new" lines
	ProgressEvery int    `yaml:"progress_every,omitempty"`
}

// CacheType defines supported category cache backends
type CacheType string

const (
	CacheMemory CacheType = "memory"
	CacheRedis  CacheType = "redis"
)

// Cache configures category lookups
type Cache struct {
	Type              CacheType `yaml:"type,omitempty"`
	PreloadCategories bool      `yaml:"preload_categories,omitempty"`
	Redis             Redis     `yaml:"redis,omitempty"`
}

// Redis holds connection settings for the redis cache
type Redis struct {
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
}

// Output defines where artifacts are written
type Output struct {
	Dir string `yaml:"dir,omitempty"`
	S3  *S3    `yaml:"s3,omitempty"`
}

// S3 configures artifact upload after a successful run
type S3 struct {
	Bucket       string `yaml:"bucket" validate:"required"`
	Prefix       string `yaml:"prefix,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	AccessKey    string `yaml:"access_key,omitempty"`
	SecretKey    string `yaml:"secret_key,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
}

// Metrics configures the run metrics textfile
type Metrics struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Notify configures run notifications
type Notify struct {
	Kafka *Kafka `yaml:"kafka,omitempty"`
}

// Kafka holds producer settings
type Kafka struct {
	Brokers []string `yaml:"brokers" validate:"required,min=1"`
	Topic   string   `yaml:"topic" validate:"required"`
}

// Log configures the logger
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Pretty bool   `yaml:"pretty,omitempty"`
}

// PurchasesEnabled reports whether the purchase export runs (default true).
func (e *Export) PurchasesEnabled() bool {
	return e.Purchases.Enabled == nil || *e.Purchases.Enabled
}

// FeedEnabled reports whether the feed export runs (default true).
func (e *Export) FeedEnabled() bool {
	return e.Feed.Enabled == nil || *e.Feed.Enabled
}
