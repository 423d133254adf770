package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "trendora-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Driver != DriverFirestore {
		t.Errorf("expected firestore driver, got %s", cfg.Database.Driver)
	}
	if cfg.Firestore.ProjectID != "trendora-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Auth.Mode != AuthModeFirebase {
		t.Errorf("expected firebase auth mode, got %s", cfg.Auth.Mode)
	}
	if cfg.Events.Driver != EventsDriverNone {
		t.Errorf("expected events disabled, got %s", cfg.Events.Driver)
	}
	if cfg.Stats.CacheTTL != 5*time.Second {
		t.Errorf("unexpected stats cache ttl %s", cfg.Stats.CacheTTL)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("expected redis disabled, got %s", cfg.Redis.Addr)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Idempotency.CleanupInterval != defaultIdempotencyInterval {
		t.Errorf("unexpected default cleanup interval: %s", cfg.Idempotency.CleanupInterval)
	}
}

func TestLoadMongoWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                  "9090",
		"API_SERVER_IDLE_TIMEOUT":          "2m",
		"API_DATABASE_DRIVER":              "MONGO",
		"API_DATABASE_OPERATION_TIMEOUT":   "3s",
		"API_MONGO_URI":                    "secret://mongo/uri",
		"API_MONGO_DATABASE":               "shop",
		"API_REDIS_ADDR":                   "localhost:6379",
		"API_REDIS_DB":                     "2",
		"API_STATS_CACHE_TTL":              "1m",
		"API_AUTH_MODE":                    "jwt",
		"API_AUTH_JWT_SECRET":              "sm://jwt/secret",
		"API_PSP_RAZORPAY_KEY_SECRET":      "secret://razorpay/key",
		"API_PSP_STRIPE_WEBHOOK_SECRET":    "whsec_plain",
		"API_EVENTS_DRIVER":                "kafka",
		"API_EVENTS_KAFKA_BROKERS":         "k1:9092, k2:9092,",
		"API_EVENTS_KAFKA_TOPIC":           "orders",
		"API_SECURITY_ENVIRONMENT":         "PROD",
		"API_IDEMPOTENCY_HEADER":           "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":              "48h",
		"API_IDEMPOTENCY_CLEANUP_INTERVAL": "30m",
	}
	secrets := map[string]string{
		"secret://mongo/uri":    "mongodb://db:27017",
		"secret://jwt/secret":   "jwt-signing",
		"secret://razorpay/key": "rzp-secret",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Database.Driver != DriverMongo || cfg.Database.OperationTimeout != 3*time.Second {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" || cfg.Mongo.Database != "shop" {
		t.Errorf("unexpected mongo config %+v", cfg.Mongo)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Stats.CacheTTL != time.Minute {
		t.Errorf("unexpected stats ttl %s", cfg.Stats.CacheTTL)
	}
	if cfg.Auth.JWTSecret != "jwt-signing" {
		t.Errorf("expected legacy sm:// reference to resolve, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.PSP.RazorpayKeySecret != "rzp-secret" || cfg.PSP.StripeWebhookSecret != "whsec_plain" {
		t.Errorf("unexpected psp config %+v", cfg.PSP)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected kafka brokers %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected security environment prod, got %s", cfg.Security.Environment)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.TTL != 48*time.Hour || cfg.Idempotency.CleanupInterval != 30*time.Minute {
		t.Errorf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIREBASE_PROJECT_ID=trendora-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "trendora-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := map[string]bool{}
	for _, f := range validation.Fields() {
		fields[f] = true
	}
	if !fields["Firestore.ProjectID"] || !fields["Firebase.ProjectID"] {
		t.Fatalf("unexpected fields %v", validation.Fields())
	}
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "trendora-dev",
		"API_DATABASE_DRIVER":     "postgres",
		"API_EVENTS_DRIVER":       "sns",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	got := validation.Fields()
	if len(got) != 2 || got[0] != "Database.Driver" || got[1] != "Events.Driver" {
		t.Fatalf("unexpected fields %v", got)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":       "trendora-dev",
		"API_PSP_STRIPE_WEBHOOK_SECRET": "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Errorf("expected resolver not configured cause, got %v", err)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_ID", "trendora-secrets")

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
	}))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}
	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_ID"]; got != "trendora-secrets" {
		t.Fatalf("expected system env value, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "trendora-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("PSP.StripeWebhookSecret", "PSP.StripeWebhookSecret"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "PSP.StripeWebhookSecret" {
		t.Fatalf("unexpected names %v", names)
	}
	expectedRedacted := redactSecretName("PSP.StripeWebhookSecret")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}
