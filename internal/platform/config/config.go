package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultDatabaseDriver      = DriverFirestore
	defaultOperationTimeout    = 5 * time.Second
	defaultMongoDatabase       = "storefront"
	defaultStatsCacheTTL       = 5 * time.Second
	defaultAuthMode            = AuthModeFirebase
	defaultEventsDriver        = EventsDriverNone
	defaultSecurityEnvironment = "local"
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultIdempotencyInterval = 15 * time.Minute
)

// Supported database drivers.
const (
	DriverFirestore = "firestore"
	DriverMongo     = "mongo"
)

// Supported authentication modes.
const (
	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"
)

// Supported event publishing drivers.
const (
	EventsDriverNone   = "none"
	EventsDriverPubSub = "pubsub"
	EventsDriverKafka  = "kafka"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	Stats       StatsConfig
	Auth        AuthConfig
	PSP         PSPConfig
	Events      EventsConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver           string
	OperationTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
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

// RedisConfig configures the cache and idempotency store. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StatsConfig tunes the order statistics engine.
type StatsConfig struct {
	CacheTTL time.Duration
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode      string
	JWTSecret string
}

// PSPConfig collects secrets for payment providers.
type PSPConfig struct {
	RazorpayKeySecret   string
	StripeWebhookSecret string
}

// EventsConfig selects where order events are published.
type EventsConfig struct {
	Driver       string
	PubSubTopic  string
	KafkaBrokers []string
	KafkaTopic   string
}

// SecurityConfig groups environment scoped settings.
type SecurityConfig struct {
	Environment string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header          string
	TTL             time.Duration
	CleanupInterval time.Duration
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

// Error implements the error interface.
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

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to empty values.
type MissingSecretsError struct {
	names []string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

// RedactedNames returns hashed identifiers safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		out = append(out, redactSecretName(name))
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

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the system environment.
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

// WithRequiredSecrets marks config field names (e.g. "PSP.RazorpayKeySecret") as mandatory.
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

// EnvironmentValues returns the merged environment (dotenv < OS env < explicit map) so callers can
// initialise dependencies, such as the secret fetcher, before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	if options.secret == nil {
		options.secret = SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		})
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(stringWithDefault(lookup, "API_DATABASE_DRIVER", defaultDatabaseDriver)),
			OperationTimeout: durationWithDefault(lookup, "API_DATABASE_OPERATION_TIMEOUT", defaultOperationTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
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
		},
		Stats: StatsConfig{
			CacheTTL: durationWithDefault(lookup, "API_STATS_CACHE_TTL", defaultStatsCacheTTL),
		},
		Auth: AuthConfig{
			Mode:      strings.ToLower(stringWithDefault(lookup, "API_AUTH_MODE", defaultAuthMode)),
			JWTSecret: stringWithDefault(lookup, "API_AUTH_JWT_SECRET", ""),
		},
		PSP: PSPConfig{
			RazorpayKeySecret:   stringWithDefault(lookup, "API_PSP_RAZORPAY_KEY_SECRET", ""),
			StripeWebhookSecret: stringWithDefault(lookup, "API_PSP_STRIPE_WEBHOOK_SECRET", ""),
		},
		Events: EventsConfig{
			Driver:       strings.ToLower(stringWithDefault(lookup, "API_EVENTS_DRIVER", defaultEventsDriver)),
			PubSubTopic:  stringWithDefault(lookup, "API_EVENTS_PUBSUB_TOPIC", ""),
			KafkaBrokers: csvWithDefault(lookup, "API_EVENTS_KAFKA_BROKERS"),
			KafkaTopic:   stringWithDefault(lookup, "API_EVENTS_KAFKA_TOPIC", ""),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
		},
		Idempotency: IdempotencyConfig{
			Header:          stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:             durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval: durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
		},
	}

	// Firestore project defaults to Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Mongo.URI", &cfg.Mongo.URI},
		{"Redis.Password", &cfg.Redis.Password},
		{"Auth.JWTSecret", &cfg.Auth.JWTSecret},
		{"PSP.RazorpayKeySecret", &cfg.PSP.RazorpayKeySecret},
		{"PSP.StripeWebhookSecret", &cfg.PSP.StripeWebhookSecret},
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

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Database.OperationTimeout <= 0 {
		missing = append(missing, "Database.OperationTimeout")
	}

	switch cfg.Database.Driver {
	case DriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case DriverMongo:
		if strings.TrimSpace(cfg.Mongo.URI) == "" {
			missing = append(missing, "Mongo.URI")
		}
		if strings.TrimSpace(cfg.Mongo.Database) == "" {
			missing = append(missing, "Mongo.Database")
		}
	default:
		missing = append(missing, "Database.Driver")
	}

	switch cfg.Auth.Mode {
	case AuthModeFirebase:
		if cfg.Firebase.ProjectID == "" {
			missing = append(missing, "Firebase.ProjectID")
		}
	case AuthModeJWT:
		if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
			missing = append(missing, "Auth.JWTSecret")
		}
	default:
		missing = append(missing, "Auth.Mode")
	}

	switch cfg.Events.Driver {
	case EventsDriverNone:
	case EventsDriverPubSub:
		if cfg.Events.PubSubTopic == "" {
			missing = append(missing, "Events.PubSubTopic")
		}
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case EventsDriverKafka:
		if len(cfg.Events.KafkaBrokers) == 0 {
			missing = append(missing, "Events.KafkaBrokers")
		}
		if cfg.Events.KafkaTopic == "" {
			missing = append(missing, "Events.KafkaTopic")
		}
	default:
		missing = append(missing, "Events.Driver")
	}

	if cfg.Stats.CacheTTL < 0 {
		missing = append(missing, "Stats.CacheTTL")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var missing []string
	seen := make(map[string]struct{}, len(required))
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{names: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	values, err := godotenv.Read(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
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
		return []string{}
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
