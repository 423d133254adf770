package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	meterName           = "github.com/trendora/api/internal/platform/secrets"
)

var clientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references against Google Secret Manager. Values are cached, and a
// local dotenv-formatted file answers when the remote is unreachable or no project is configured.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	projectID  string
	cacheTTL   time.Duration
	now        func() time.Time

	fallbackPath string
	fallbackOnce sync.Once
	fallback     map[string]string

	mu    sync.Mutex
	cache map[string]cacheEntry

	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

type fetcherConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	cacheTTL     time.Duration
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithProject sets the Secret Manager project used when a reference carries no ?project=.
func WithProject(projectID string) Option {
	return func(cfg *fetcherConfig) { cfg.projectID = strings.TrimSpace(projectID) }
}

// WithFallbackFile overrides the local fallback file path.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) { cfg.fallbackPath = strings.TrimSpace(path) }
}

// WithCacheTTL expires cached values after ttl. Zero caches for the process lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *fetcherConfig) { cfg.cacheTTL = ttl }
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) { cfg.meter = m }
}

// WithSecretManagerClient injects a preconfigured client.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

// WithClientOptions forwards options used when the fetcher creates its own client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

// NewFetcher builds a Fetcher. A client that cannot be created leaves the fetcher in fallback-only
// mode rather than failing.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{logger: zap.NewNop(), fallbackPath: defaultFallbackPath}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.meter == nil {
		cfg.meter = otel.Meter(meterName)
	}

	f := &Fetcher{
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		cacheTTL:     cfg.cacheTTL,
		now:          time.Now,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]cacheEntry),
	}

	var err error
	if f.latency, err = cfg.meter.Float64Histogram("secrets.fetch.latency", metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("secrets: register latency metric: %w", err)
	}
	if f.cacheHits, err = cfg.meter.Int64Counter("secrets.fetch.cache_hits"); err != nil {
		return nil, fmt.Errorf("secrets: register cache metric: %w", err)
	}

	switch {
	case cfg.client != nil:
		f.client = cfg.client
	case cfg.projectID != "":
		client, err := clientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager client unavailable; using fallback file", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	return f, nil
}

// Close releases the client created by the fetcher.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// ResolveSecret implements config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve returns the secret value for ref, consulting the cache, Secret Manager, then the
// fallback file.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := f.now()
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	key := parsed.Canonical + "#" + parsed.Version

	if value, ok := f.cached(key); ok {
		f.cacheHits.Add(ctx, 1)
		f.observe(ctx, start, "cache")
		return value, nil
	}

	project := parsed.Project
	if project == "" {
		project = f.projectID
	}
	if project != "" && f.client != nil {
		value, err := f.fetchRemote(ctx, project, parsed)
		if err == nil {
			f.store(key, value)
			f.observe(ctx, start, "remote")
			return value, nil
		}
		if !isFallbackError(err) {
			f.observe(ctx, start, "error")
			return "", fmt.Errorf("secrets: fetch %s: %w", parsed.Canonical, err)
		}
		f.logger.Debug("secrets: falling back to local file", zap.String("secret", parsed.Name), zap.Error(err))
	}

	value, ok := f.lookupFallback(parsed)
	if !ok {
		f.observe(ctx, start, "error")
		return "", fmt.Errorf("secrets: no value for %s", parsed.Canonical)
	}
	f.store(key, value)
	f.observe(ctx, start, "fallback")
	return value, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, project string, ref parsedReference) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, ref.Name, ref.Version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) cached(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.cache[key]
	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && f.now().After(entry.expiresAt) {
		delete(f.cache, key)
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) store(key, value string) {
	entry := cacheEntry{value: value}
	if f.cacheTTL > 0 {
		entry.expiresAt = f.now().Add(f.cacheTTL)
	}
	f.mu.Lock()
	f.cache[key] = entry
	f.mu.Unlock()
}

// lookupFallback reads KEY=VALUE lines where KEY is a secret:// or sm:// reference.
func (f *Fetcher) lookupFallback(ref parsedReference) (string, bool) {
	f.fallbackOnce.Do(func() {
		f.fallback = map[string]string{}
		if f.fallbackPath == "" {
			return
		}
		values, err := godotenv.Read(f.fallbackPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				f.logger.Warn("secrets: unable to read fallback file", zap.String("path", f.fallbackPath), zap.Error(err))
			}
			return
		}
		for k, v := range values {
			parsed, err := parseReference(k)
			if err != nil {
				continue
			}
			f.fallback[parsed.Canonical+"#"+parsed.Version] = v
			if _, exists := f.fallback[parsed.Canonical]; !exists || parsed.Version == "latest" {
				f.fallback[parsed.Canonical] = v
			}
		}
	})
	if v, ok := f.fallback[ref.Canonical+"#"+ref.Version]; ok {
		return v, true
	}
	v, ok := f.fallback[ref.Canonical]
	return v, ok
}

func (f *Fetcher) observe(ctx context.Context, start time.Time, source string) {
	elapsed := f.now().Sub(start)
	f.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(attribute.String("source", source)))
}

type parsedReference struct {
	Canonical string
	Name      string
	Version   string
	Project   string
}

// parseReference accepts secret://NAME[?version=V&project=P] and the sm:// alias.
func parseReference(ref string) (parsedReference, error) {
	ref = strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(ref, "sm://"); ok {
		ref = "secret://" + rest
	}
	if ref == "" {
		return parsedReference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return parsedReference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return parsedReference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return parsedReference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}
	version := strings.TrimSpace(u.Query().Get("version"))
	if version == "" {
		version = "latest"
	}
	return parsedReference{
		Canonical: "secret://" + name,
		Name:      name,
		Version:   version,
		Project:   strings.TrimSpace(u.Query().Get("project")),
	}, nil
}

func isFallbackError(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded, codes.NotFound:
		return true
	default:
		return false
	}
}
