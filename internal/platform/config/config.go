package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultCheckoutRateLimit   = 20
	defaultCheckoutRateWindow  = time.Minute
	defaultEnvironment         = "local"
	defaultAdminRole           = "admin"
	defaultStoreDriver         = StoreDriverFirestore
	defaultMongoDatabase       = "shopblizz"
	defaultRedisTTL            = 10 * time.Minute
	defaultMediaPrefix         = "products"
	defaultCustomerTopic       = "order-customer-notifications"
	defaultOperationsTopic     = "order-operations-notifications"
	defaultNotifierTimeout     = 10 * time.Second
	defaultRetentionWindow     = 30 * 24 * time.Hour
	defaultRetentionInterval   = 24 * time.Hour
	defaultRetentionBatchSize  = 100
	defaultBreakerMaxFailures  = 5
	defaultBreakerOpenDuration = 30 * time.Second
)

// Store drivers accepted by API_STORE_DRIVER.
const (
	StoreDriverFirestore = "firestore"
	StoreDriverMongo     = "mongo"
)

// Config captures all runtime configuration organised by concern. It is loaded once at
// start-up and passed by value; nothing in the process mutates it afterwards.
type Config struct {
	Server    ServerConfig
	Security  SecurityConfig
	Firebase  FirebaseConfig
	Store     StoreConfig
	Firestore FirestoreConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Storage   StorageConfig
	PubSub    PubSubConfig
	Pricing   PricingConfig
	Catalog   CatalogConfig
	Retention RetentionConfig
	Breaker   BreakerConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// CheckoutRateLimit caps order submissions per client address within CheckoutRateWindow.
	// Zero disables the limit.
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration
}

// SecurityConfig identifies the deployment and the role required on operator routes.
type SecurityConfig struct {
	Environment string
	AdminRole   string
}

// FirebaseConfig stores Firebase project settings used for ID token verification.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	Driver string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// MongoConfig stores MongoDB connection parameters.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig configures the product snapshot cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// StorageConfig names the bucket that hosts product media.
type StorageConfig struct {
	MediaBucket  string
	MediaPrefix  string
	PublicHost   string
	UploadMaxMiB int
}

// PubSubConfig names the topics order notifications are published to.
type PubSubConfig struct {
	ProjectID       string
	CustomerTopic   string
	OperationsTopic string
	Timeout         time.Duration
}

// PricingConfig holds the shipping rate table.
type PricingConfig struct {
	ShippingRates domain.ShippingRates
}

// CatalogConfig holds the category list.
type CatalogConfig struct {
	Categories []domain.Category
}

// RetentionConfig controls the sweeper that purges soft-deleted products.
type RetentionConfig struct {
	Window    time.Duration
	Interval  time.Duration
	BatchSize int
}

// BreakerConfig tunes the circuit breakers around media and notification calls.
type BreakerConfig struct {
	MaxFailures  uint32
	OpenDuration time.Duration
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to an empty value.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns hashed identifiers safe for logging.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out = append(out, hex.EncodeToString(sum[:8]))
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks config fields (e.g. "Mongo.URI") that must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// EnvironmentValues returns the merged environment (dotenv < process env < explicit map) so
// callers can build dependencies such as the secret fetcher before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(dotEnv))
	for key, value := range dotEnv {
		values[key] = value
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[key] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the application configuration from defaults, .env overrides, environment
// variables and optional secret lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}

	// A malformed rate table leaves rates nil and is reported by validateConfig.
	rates, _ := ratesWithDefault(lookup, "API_PRICING_SHIPPING_RATES", domain.DefaultShippingRates())

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),

			CheckoutRateLimit:  intWithDefault(lookup, "API_SERVER_CHECKOUT_RATE_LIMIT", defaultCheckoutRateLimit),
			CheckoutRateWindow: durationWithDefault(lookup, "API_SERVER_CHECKOUT_RATE_WINDOW", defaultCheckoutRateWindow),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultEnvironment)),
			AdminRole:   strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ADMIN_ROLE", defaultAdminRole)),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(stringWithDefault(lookup, "API_STORE_DRIVER", defaultStoreDriver)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Mongo: MongoConfig{
			URI:      stringWithDefault(lookup, "API_MONGO_URI", ""),
			Database: stringWithDefault(lookup, "API_MONGO_DATABASE", defaultMongoDatabase),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "API_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "API_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "API_REDIS_DB", 0),
			TTL:      durationWithDefault(lookup, "API_REDIS_TTL", defaultRedisTTL),
		},
		Storage: StorageConfig{
			MediaBucket:  stringWithDefault(lookup, "API_STORAGE_MEDIA_BUCKET", ""),
			MediaPrefix:  stringWithDefault(lookup, "API_STORAGE_MEDIA_PREFIX", defaultMediaPrefix),
			PublicHost:   stringWithDefault(lookup, "API_STORAGE_PUBLIC_HOST", "https://storage.googleapis.com"),
			UploadMaxMiB: intWithDefault(lookup, "API_STORAGE_UPLOAD_MAX_MIB", 5),
		},
		PubSub: PubSubConfig{
			ProjectID:       stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			CustomerTopic:   stringWithDefault(lookup, "API_PUBSUB_CUSTOMER_TOPIC", defaultCustomerTopic),
			OperationsTopic: stringWithDefault(lookup, "API_PUBSUB_OPERATIONS_TOPIC", defaultOperationsTopic),
			Timeout:         durationWithDefault(lookup, "API_PUBSUB_TIMEOUT", defaultNotifierTimeout),
		},
		Pricing: PricingConfig{
			ShippingRates: rates,
		},
		Catalog: CatalogConfig{
			Categories: categoriesWithDefault(lookup, "API_CATALOG_CATEGORIES", domain.DefaultCategories),
		},
		Retention: RetentionConfig{
			Window:    durationWithDefault(lookup, "API_RETENTION_WINDOW", defaultRetentionWindow),
			Interval:  durationWithDefault(lookup, "API_RETENTION_INTERVAL", defaultRetentionInterval),
			BatchSize: intWithDefault(lookup, "API_RETENTION_BATCH_SIZE", defaultRetentionBatchSize),
		},
		Breaker: BreakerConfig{
			MaxFailures:  uint32(intWithDefault(lookup, "API_BREAKER_MAX_FAILURES", defaultBreakerMaxFailures)),
			OpenDuration: durationWithDefault(lookup, "API_BREAKER_OPEN_DURATION", defaultBreakerOpenDuration),
		},
	}

	// Firestore and Pub/Sub default to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Mongo.URI", &cfg.Mongo.URI},
		{"Redis.Password", &cfg.Redis.Password},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	var missing []string
	for _, name := range options.requiredSecrets {
		name = strings.TrimSpace(name)
		if name != "" && resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingSecretsError{names: missing}
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "secret://") && !strings.HasPrefix(trimmed, "sm://") {
		return value, nil
	}
	ref := "secret://" + strings.TrimPrefix(strings.TrimPrefix(trimmed, "secret://"), "sm://")
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var fields []string

	if cfg.Server.Port == "" {
		fields = append(fields, "Server.Port")
	}
	if cfg.Server.CheckoutRateLimit < 0 {
		fields = append(fields, "Server.CheckoutRateLimit")
	}
	if cfg.Server.CheckoutRateLimit > 0 && cfg.Server.CheckoutRateWindow <= 0 {
		fields = append(fields, "Server.CheckoutRateWindow")
	}
	if cfg.Firebase.ProjectID == "" {
		fields = append(fields, "Firebase.ProjectID")
	}
	switch cfg.Store.Driver {
	case StoreDriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			fields = append(fields, "Firestore.ProjectID")
		}
	case StoreDriverMongo:
		if strings.TrimSpace(cfg.Mongo.URI) == "" {
			fields = append(fields, "Mongo.URI")
		}
		if strings.TrimSpace(cfg.Mongo.Database) == "" {
			fields = append(fields, "Mongo.Database")
		}
	default:
		fields = append(fields, "Store.Driver")
	}
	if cfg.Storage.MediaBucket == "" {
		fields = append(fields, "Storage.MediaBucket")
	}
	if len(cfg.Pricing.ShippingRates) == 0 {
		fields = append(fields, "Pricing.ShippingRates")
	}
	if len(cfg.Catalog.Categories) == 0 {
		fields = append(fields, "Catalog.Categories")
	}
	if cfg.Retention.Window <= 0 {
		fields = append(fields, "Retention.Window")
	}
	if cfg.Retention.Interval <= 0 {
		fields = append(fields, "Retention.Interval")
	}
	if cfg.Retention.BatchSize <= 0 {
		fields = append(fields, "Retention.BatchSize")
	}

	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func categoriesWithDefault(lookup func(string) (string, bool), key string, fallback []domain.Category) []domain.Category {
	values := csvWithDefault(lookup, key)
	if len(values) == 0 {
		return append([]domain.Category(nil), fallback...)
	}
	out := make([]domain.Category, 0, len(values))
	for _, value := range values {
		out = append(out, domain.Category(strings.ToLower(value)))
	}
	return out
}

// ratesWithDefault parses "standard=100,fast=200".
func ratesWithDefault(lookup func(string) (string, bool), key string, fallback domain.ShippingRates) (domain.ShippingRates, error) {
	entries := csvWithDefault(lookup, key)
	if len(entries) == 0 {
		return fallback.Clone(), nil
	}
	rates := make(domain.ShippingRates, len(entries))
	for _, entry := range entries {
		name, rawCost, ok := strings.Cut(entry, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("config: malformed shipping rate %q", entry)
		}
		cost, err := strconv.ParseInt(strings.TrimSpace(rawCost), 10, 64)
		if err != nil || cost < 0 {
			return nil, fmt.Errorf("config: invalid shipping cost for %q", name)
		}
		rates[domain.ShippingMethod(name)] = cost
	}
	return rates, nil
}
