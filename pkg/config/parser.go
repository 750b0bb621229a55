package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// Page size bounds of the source API
const (
	DefaultPageSize = 250
	MaxPageSize     = 500
)

// Collections that accept an extract.where predicate
var WhereCollections = []string{"product-projections", "orders", "customers", "categories"}

type ValidationError struct {
	Field   string
	Message string
}

type Validator interface {
	Validate(config *Export) []ValidationError
}

// Returns the string representation of validation error
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DefaultValueSetter Handles the interface for setting default values
type DefaultValueSetter interface {
	SetDefaults(config *Export)
}

// VariableExpander defines the interface for expanding variables
type VariableExpander interface {
	Expand(data []byte) []byte
}

// EnvExpander implements VariableExpander using environment variables
type EnvExpander struct{}

// Expand expands environment variables with the given data
func (e *EnvExpander) Expand(data []byte) []byte {
	expanded := os.Expand(string(data), os.Getenv)
	return []byte(expanded)
}

// ExportLoader loads and checks export configurations
type ExportLoader struct {
	expander      VariableExpander
	validators    []Validator
	defaultSetter DefaultValueSetter
}

// NewExportLoader creates a new ExportLoader with the given components
func NewExportLoader(
	expander VariableExpander,
	defaultSetter DefaultValueSetter,
	validators ...Validator,
) *ExportLoader {
	return &ExportLoader{
		expander:      expander,
		validators:    validators,
		defaultSetter: defaultSetter,
	}
}

// NewDefaultLoader wires the env expander, defaults and every validator.
func NewDefaultLoader() *ExportLoader {
	return NewExportLoader(
		&EnvExpander{},
		&ExportDefaults{},
		&RequiredFieldValidator{},
		&StructValidator{validate: validator.New()},
		&RegionValidator{},
		&ExtractValidator{},
		&LocaleValidator{},
		&FeedValidator{},
		&ScheduleValidator{},
		&CacheValidator{},
	)
}

// Load a new export config from YAML file
func (l *ExportLoader) Load(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "failed to read file")
	}

	return l.Parse(data)
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the environment
// before expansion. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return errors.WrapError(err, errors.ErrConfiguration, "failed to load env file")
	}
	return nil
}

// Parse parses a yaml config
func (l *ExportLoader) Parse(data []byte) (*Export, error) {
	if l.expander != nil {
		data = l.expander.Expand(data)
	}

	var export Export
	if err := yaml.Unmarshal(data, &export); err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "failed to parse YAML")
	}

	if l.defaultSetter != nil {
		l.defaultSetter.SetDefaults(&export)
	}

	var allErrors []ValidationError
	for _, validator := range l.validators {
		allErrors = append(allErrors, validator.Validate(&export)...)
	}

	if len(allErrors) > 0 {
		return nil, fmt.Errorf("%w: validation errors: %v", errors.ErrConfiguration, allErrors)
	}

	return &export, nil
}

// ExportDefaults implements DefaultValueSetter for Export
type ExportDefaults struct{}

// SetDefaults sets default values for Export
func (d *ExportDefaults) SetDefaults(cfg *Export) {
	if cfg.Region == "" {
		cfg.Region = "EU"
	}

	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 30 * time.Second
	}
	if cfg.HTTP.MaxAttempts == 0 {
		cfg.HTTP.MaxAttempts = 3
	}
	if cfg.HTTP.InitialBackoff == 0 {
		cfg.HTTP.InitialBackoff = 0.5
	}
	if cfg.HTTP.BackoffMultiplier == 0 {
		cfg.HTTP.BackoffMultiplier = 2
	}
	if len(cfg.HTTP.RetryableStatuses) == 0 {
		cfg.HTTP.RetryableStatuses = []int{429, 502, 503, 504}
	}

	if cfg.Extract.PageSize == 0 {
		cfg.Extract.PageSize = DefaultPageSize
	}
	if cfg.Extract.Staged == "" {
		cfg.Extract.Staged = "false"
	}
	if len(cfg.Extract.Locales) == 0 {
		cfg.Extract.Locales = []string{"en", "de"}
	}
	if len(cfg.Extract.Currencies) == 0 {
		cfg.Extract.Currencies = []string{"USD", "EUR"}
	}

	if cfg.Purchases.File == "" {
		cfg.Purchases.File = "purchases.csv"
	}
	if cfg.Purchases.ReportingCurrency == "" {
		cfg.Purchases.ReportingCurrency = "USD"
	}

	if cfg.Feed.File == "" {
		cfg.Feed.File = "catalog.xml"
	}
	if cfg.Feed.Title == "" {
		cfg.Feed.Title = cfg.ProjectKey
	}
	if cfg.Feed.Currency == "" {
		cfg.Feed.Currency = cfg.Purchases.ReportingCurrency
	}
	if cfg.Feed.Locale == "" {
		cfg.Feed.Locale = cfg.Extract.Locales[0]
	}
	if cfg.Feed.CategoryMode == "" {
		cfg.Feed.CategoryMode = "single"
	}
	if cfg.Feed.ProgressEvery == 0 {
		cfg.Feed.ProgressEvery = 100
	}

	if cfg.Cache.Type == "" {
		cfg.Cache.Type = CacheMemory
	}
	if cfg.Cache.Redis.TTL == 0 {
		cfg.Cache.Redis.TTL = time.Hour
	}
	if cfg.Cache.Redis.Prefix == "" {
		cfg.Cache.Redis.Prefix = "commerce-export:category:"
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = filepath.Join("upload", cfg.ProjectKey)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// RequiredFieldValidator validates required fields
type RequiredFieldValidator struct{}

// Validate checks that all required fields are present
func (v *RequiredFieldValidator) Validate(cfg *Export) []ValidationError {
	var errs []ValidationError

	if cfg.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "is required"})
	}
	if cfg.ProjectKey == "" {
		errs = append(errs, ValidationError{Field: "project_key", Message: "is required"})
	}
	if !cfg.PurchasesEnabled() && !cfg.FeedEnabled() && cfg.Customers.File == "" {
		errs = append(errs, ValidationError{Field: "purchases/feed/customers", Message: "nothing to export"})
	}

	return errs
}

// StructValidator applies the validate struct tags
type StructValidator struct {
	validate *validator.Validate
}

// Validate runs tag based validation and maps failures to config fields
func (v *StructValidator) Validate(cfg *Export) []ValidationError {
	if v.validate == nil {
		v.validate = validator.New()
	}

	err := v.validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{Field: "config", Message: err.Error()}}
	}

	errs := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Export.Name and Export.ProjectKey are reported by RequiredFieldValidator
		if fe.Namespace() == "Export.Name" || fe.Namespace() == "Export.ProjectKey" {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   strings.TrimPrefix(fe.Namespace(), "Export."),
			Message: fmt.Sprintf("failed %q check", fe.Tag()),
		})
	}
	return errs
}

// RegionValidator checks the API region
type RegionValidator struct{}

// Validate accepts the two regions the source API is hosted in
func (v *RegionValidator) Validate(cfg *Export) []ValidationError {
	switch strings.ToUpper(cfg.Region) {
	case "EU", "US":
		return nil
	default:
		return []ValidationError{{Field: "region", Message: fmt.Sprintf("unknown region %q (has to be EU or US)", cfg.Region)}}
	}
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// ExtractValidator validates pagination and normalization settings
type ExtractValidator struct{}

// Validate checks page size, staged flag, item cap and currencies
func (v *ExtractValidator) Validate(cfg *Export) []ValidationError {
	var errs []ValidationError
	ex := cfg.Extract

	if ex.PageSize <= 0 || ex.PageSize > MaxPageSize {
		errs = append(errs, ValidationError{Field: "extract.page_size", Message: fmt.Sprintf("must be between 1 and %d", MaxPageSize)})
	}
	if ex.Staged != "true" && ex.Staged != "false" {
		errs = append(errs, ValidationError{Field: "extract.staged", Message: "has to be either true or false"})
	}
	if ex.MaxItems != nil && *ex.MaxItems <= 0 {
		errs = append(errs, ValidationError{Field: "extract.max_items", Message: "has to be larger than 0"})
	}

	for _, cur := range ex.Currencies {
		if !currencyCode.MatchString(cur) {
			errs = append(errs, ValidationError{Field: "extract.currencies", Message: fmt.Sprintf("invalid currency %q", cur)})
		}
	}
	for collection, pred := range ex.Where {
		if !contains(WhereCollections, collection) {
			errs = append(errs, ValidationError{Field: "extract.where", Message: fmt.Sprintf("unknown collection %q", collection)})
		} else if strings.TrimSpace(pred) == "" {
			errs = append(errs, ValidationError{Field: "extract.where." + collection, Message: "is empty"})
		}
	}
	if !currencyCode.MatchString(cfg.Purchases.ReportingCurrency) {
		errs = append(errs, ValidationError{Field: "purchases.reporting_currency", Message: fmt.Sprintf("invalid currency %q", cfg.Purchases.ReportingCurrency)})
	}

	return errs
}

// LocaleValidator checks that every configured locale is a BCP 47 tag
type LocaleValidator struct{}

// Validate parses each locale with the language package
func (v *LocaleValidator) Validate(cfg *Export) []ValidationError {
	var errs []ValidationError
	for _, loc := range cfg.Extract.Locales {
		if _, err := language.Parse(loc); err != nil {
			errs = append(errs, ValidationError{Field: "extract.locales", Message: fmt.Sprintf("invalid locale %q", loc)})
		}
	}
	return errs
}

// ScheduleValidator checks the cron expression used by the schedule command
type ScheduleValidator struct{}

// Validate accepts an empty schedule or a standard five field cron spec
func (v *ScheduleValidator) Validate(cfg *Export) []ValidationError {
	if cfg.Schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return []ValidationError{{Field: "schedule", Message: err.Error()}}
	}
	return nil
}

// FeedValidator validates the product feed settings
type FeedValidator struct{}

// Validate checks the feed's locale, currency and category mode. A disabled
// feed is checked too, since the feed command runs it regardless.
func (v *FeedValidator) Validate(cfg *Export) []ValidationError {
	var errs []ValidationError
	if !contains(cfg.Extract.Locales, cfg.Feed.Locale) {
		errs = append(errs, ValidationError{Field: "feed.locale", Message: fmt.Sprintf("%q is not one of extract.locales", cfg.Feed.Locale)})
	}
	if !contains(cfg.Extract.Currencies, cfg.Feed.Currency) {
		errs = append(errs, ValidationError{Field: "feed.currency", Message: fmt.Sprintf("%q is not one of extract.currencies", cfg.Feed.Currency)})
	}
	switch cfg.Feed.CategoryMode {
	case "single", "all":
	default:
		errs = append(errs, ValidationError{Field: "feed.category_mode", Message: fmt.Sprintf("unknown mode %q (single or all)", cfg.Feed.CategoryMode)})
	}

	return errs
}

// CacheValidator validates the category cache backend
type CacheValidator struct{}

// Validate checks the cache type and its connection settings
func (v *CacheValidator) Validate(cfg *Export) []ValidationError {
	switch cfg.Cache.Type {
	case CacheMemory:
		return nil
	case CacheRedis:
		if cfg.Cache.Redis.Addr == "" {
			return []ValidationError{{Field: "cache.redis.addr", Message: "is required for redis cache"}}
		}
		return nil
	default:
		return []ValidationError{{Field: "cache.type", Message: fmt.Sprintf("unknown cache type: %s", cfg.Cache.Type)}}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
