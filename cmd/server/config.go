package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dasmlab/polyglot/pkg/admission"
	"github.com/dasmlab/polyglot/pkg/detect"
)

const (
	// ModeClient serves translations with locally loaded backends.
	ModeClient = "CLIENT"
	// ModeProxy forwards every hop to peer instances.
	ModeProxy = "PROXY"
)

// Config is the server configuration. Every flag defaults to an
// environment variable so containers can be configured through env alone.
type Config struct {
	Port            int
	GRPCPort        int
	Mode            string
	Models          []string
	CatalogPath     string
	Preload         bool
	RateLimit       int
	RedisAddr       string
	CounterKey      string
	Clients         []string
	DNSNamespace    string
	PeerAddressTTL  time.Duration
	DefaultLanguage string
	Detector        string
	DetectorURL     string
	LogLevel        string
}

// envLookup returns an environment value, "" when unset.
type envLookup func(key string) string

// parseConfig parses args with defaults taken from env.
func parseConfig(args []string, getenv envLookup) (*Config, error) {
	fs := flag.NewFlagSet("polyglot", flag.ContinueOnError)
	d := defaults{getenv: getenv}

	port := fs.Int("port", d.integer("TRANSLATOR_PORT", 8080), "HTTP API port")
	grpcPort := fs.Int("grpc-port", d.integer("TRANSLATOR_GRPC_PORT", 50051), "gRPC health port (0 disables)")
	mode := fs.String("mode", d.str("TRANSLATOR_MODE", ModeClient), "Translator mode: CLIENT (local backends) or PROXY (federated)")
	models := fs.String("models", d.str("TRANSLATOR_MODELS", "mock"), "Comma separated backend ids to load in CLIENT mode")
	catalog := fs.String("catalog", d.str("TRANSLATOR_CATALOG", ""), "Path to the backend catalog (YAML); empty uses the built-in catalog")
	preload := fs.Bool("preload", d.boolean("TRANSLATOR_PRELOAD_MODELS", false), "Warm up every backend after loading")
	rateLimit := fs.Int("rate-limit", d.integer("TRANSLATOR_RATE_LIMIT", 3), "Maximum concurrent requests across instances (0 disables)")
	redisAddr := fs.String("redis-addr", d.str("TRANSLATOR_REDIS_ADDR", ""), "Redis address of the shared request counter; empty uses an in-process counter")
	counterKey := fs.String("counter-key", d.str("TRANSLATOR_COUNTER_KEY", admission.DefaultCounterKey), "Redis key of the shared request counter")
	clients := fs.String("clients", d.str("TRANSLATOR_CLIENTS", ""), "Comma separated peer ids used in PROXY mode")
	namespace := fs.String("dns-namespace", d.str("TRANSLATOR_DNS_NAMESPACE", "translator"), "DNS namespace appended to peer ids for SRV discovery")
	ttl := fs.Duration("peer-address-ttl", d.duration("TRANSLATOR_PEER_ADDRESS_TTL", 0), "How long resolved peer addresses are cached (0 caches forever)")
	defaultLanguage := fs.String("default-language", d.str("TRANSLATOR_DEFAULT_LANGUAGE", "en"), "Language rooting GET /languages")
	detector := fs.String("detector", d.str("TRANSLATOR_DETECTOR", string(detect.KindWhatlang)), "Language detector: whatlang or libretranslate")
	detectorURL := fs.String("detector-url", d.str("TRANSLATOR_DETECTOR_URL", "http://localhost:5000"), "LibreTranslate URL used by the libretranslate detector")
	logLevel := fs.String("log-level", d.str("LOGLEVEL", "info"), "Log level: debug, info, warn, error")

	if d.err != nil {
		return nil, d.err
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            *port,
		GRPCPort:        *grpcPort,
		Mode:            strings.ToUpper(strings.TrimSpace(*mode)),
		Models:          splitList(*models),
		CatalogPath:     *catalog,
		Preload:         *preload,
		RateLimit:       *rateLimit,
		RedisAddr:       *redisAddr,
		CounterKey:      *counterKey,
		Clients:         splitList(*clients),
		DNSNamespace:    *namespace,
		PeerAddressTTL:  *ttl,
		DefaultLanguage: *defaultLanguage,
		Detector:        strings.ToLower(*detector),
		DetectorURL:     *detectorURL,
		LogLevel:        *logLevel,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeClient:
		if len(c.Models) == 0 {
			return errors.New("CLIENT mode requires at least one model")
		}
	case ModeProxy:
		if len(c.Clients) == 0 {
			return errors.New("PROXY mode requires at least one client")
		}
	default:
		return fmt.Errorf("unknown mode %q (supported: %s, %s)", c.Mode, ModeClient, ModeProxy)
	}
	switch detect.Kind(c.Detector) {
	case detect.KindWhatlang, detect.KindLibreTranslate:
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	if c.PeerAddressTTL < 0 {
		return errors.New("peer address TTL must not be negative")
	}
	if c.DefaultLanguage == "" {
		return errors.New("default language must not be empty")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// defaults reads flag defaults from the environment, keeping the first
// malformed value as err.
type defaults struct {
	getenv envLookup
	err    error
}

func (d *defaults) str(key, def string) string {
	if v := d.getenv(key); v != "" {
		return v
	}
	return def
}

func (d *defaults) integer(key string, def int) int {
	v := d.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		d.fail(key, err)
		return def
	}
	return n
}

func (d *defaults) boolean(key string, def bool) bool {
	v := d.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		d.fail(key, err)
		return def
	}
	return b
}

func (d *defaults) duration(key string, def time.Duration) time.Duration {
	v := d.getenv(key)
	if v == "" {
		return def
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		d.fail(key, err)
		return def
	}
	return dur
}

func (d *defaults) fail(key string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
