package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

// Selectors are the structural locators of the detail page, one per scraped field.
type Selectors struct {
	Player      string `toml:"player"`
	Title       string `toml:"title"`
	Trailer     string `toml:"trailer"`
	Genres      string `toml:"genres"`
	Duration    string `toml:"duration"`
	ReleaseYear string `toml:"release_year"`
	Rating      string `toml:"rating"`
	Synopsis    string `toml:"synopsis"`
	Thumbnail   string `toml:"thumbnail"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Player:      "#player iframe",
		Title:       ".movie-detail h1",
		Trailer:     "#trailer iframe",
		Genres:      "ul.genres li",
		Duration:    "span.duration",
		ReleaseYear: "span.release-year",
		Rating:      "a.rating-imdb",
		Synopsis:    ".synopsis p",
		Thumbnail:   `meta[property="og:image"]`,
	}
}

type IngestConfig struct {
	FeedURL            string
	SiteBaseURL        string
	AssetDir           string
	PublicAssetBaseURL string
	Interval           time.Duration
	FetchTimeout       time.Duration
	RequestsPerSecond  float64
	UserAgent          string
	Selectors          Selectors
}

type Config struct {
	HTTPAddr     string
	GRPCAddr     string
	EventsTCP    string
	EventsUDP    string // "off" disables UDP delivery
	LogMode      string
	Ingest       IngestConfig
	Auth         AuthConfig
	DatabasePath string
}

// fileConfig mirrors the TOML layout; durations stay strings until Load parses them.
type fileConfig struct {
	Database struct {
		Path string `toml:"path"`
	} `toml:"database"`
	HTTP struct {
		Addr string `toml:"addr"`
	} `toml:"http"`
	GRPC struct {
		Addr string `toml:"addr"`
	} `toml:"grpc"`
	Events struct {
		TCPAddr string `toml:"tcp_addr"`
		UDPAddr string `toml:"udp_addr"`
	} `toml:"events"`
	Log struct {
		Mode string `toml:"mode"`
	} `toml:"log"`
	Auth struct {
		JWTSecret   string `toml:"jwt_secret"`
		JWTIssuer   string `toml:"jwt_issuer"`
		JWTTTLHours int    `toml:"jwt_ttl_hours"`
	} `toml:"auth"`
	Ingest struct {
		FeedURL            string    `toml:"feed_url"`
		SiteBaseURL        string    `toml:"site_base_url"`
		AssetDir           string    `toml:"asset_dir"`
		PublicAssetBaseURL string    `toml:"public_asset_base_url"`
		Interval           string    `toml:"interval"`
		FetchTimeout       string    `toml:"fetch_timeout"`
		RequestsPerSecond  *float64  `toml:"requests_per_second"`
		UserAgent          string    `toml:"user_agent"`
		Selectors          Selectors `toml:"selectors"`
	} `toml:"ingest"`
}

func Default() Config {
	return Config{
		HTTPAddr:  ":8080",
		GRPCAddr:  ":9090",
		EventsTCP: ":7070",
		EventsUDP: ":7071",
		LogMode:   "dev",
		Ingest: IngestConfig{
			FeedURL:            "http://localhost:9000/feed.xml",
			SiteBaseURL:        "http://localhost:9000/",
			AssetDir:           "data/assets",
			PublicAssetBaseURL: "http://localhost:8080/assets",
			Interval:           time.Hour,
			FetchTimeout:       30 * time.Second,
			RequestsPerSecond:  2,
			UserAgent:          defaultUserAgent,
			Selectors:          DefaultSelectors(),
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "moviehub",
			JWTDuration: 24 * time.Hour,
		},
	}
}

// Load returns defaults, overlaid by the TOML file named in MOVIEHUB_CONFIG (if any),
// overlaid by MOVIEHUB_* environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("MOVIEHUB_CONFIG")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := applyTOML(&cfg, b); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyTOML(cfg *Config, b []byte) error {
	var fc fileConfig
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("decode toml: %w", err)
	}

	setString(&cfg.DatabasePath, fc.Database.Path)
	setString(&cfg.HTTPAddr, fc.HTTP.Addr)
	setString(&cfg.GRPCAddr, fc.GRPC.Addr)
	setString(&cfg.EventsTCP, fc.Events.TCPAddr)
	setString(&cfg.EventsUDP, fc.Events.UDPAddr)
	setString(&cfg.LogMode, fc.Log.Mode)

	setString(&cfg.Auth.JWTSecret, fc.Auth.JWTSecret)
	setString(&cfg.Auth.JWTIssuer, fc.Auth.JWTIssuer)
	if fc.Auth.JWTTTLHours > 0 {
		cfg.Auth.JWTDuration = time.Duration(fc.Auth.JWTTTLHours) * time.Hour
	}

	in := &cfg.Ingest
	setString(&in.FeedURL, fc.Ingest.FeedURL)
	setString(&in.SiteBaseURL, fc.Ingest.SiteBaseURL)
	setString(&in.AssetDir, fc.Ingest.AssetDir)
	setString(&in.PublicAssetBaseURL, fc.Ingest.PublicAssetBaseURL)
	setString(&in.UserAgent, fc.Ingest.UserAgent)
	if err := setDuration(&in.Interval, fc.Ingest.Interval); err != nil {
		return fmt.Errorf("ingest.interval: %w", err)
	}
	if err := setDuration(&in.FetchTimeout, fc.Ingest.FetchTimeout); err != nil {
		return fmt.Errorf("ingest.fetch_timeout: %w", err)
	}
	if fc.Ingest.RequestsPerSecond != nil {
		in.RequestsPerSecond = *fc.Ingest.RequestsPerSecond
	}

	sel := &in.Selectors
	setString(&sel.Player, fc.Ingest.Selectors.Player)
	setString(&sel.Title, fc.Ingest.Selectors.Title)
	setString(&sel.Trailer, fc.Ingest.Selectors.Trailer)
	setString(&sel.Genres, fc.Ingest.Selectors.Genres)
	setString(&sel.Duration, fc.Ingest.Selectors.Duration)
	setString(&sel.ReleaseYear, fc.Ingest.Selectors.ReleaseYear)
	setString(&sel.Rating, fc.Ingest.Selectors.Rating)
	setString(&sel.Synopsis, fc.Ingest.Selectors.Synopsis)
	setString(&sel.Thumbnail, fc.Ingest.Selectors.Thumbnail)
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.DatabasePath, os.Getenv("MOVIEHUB_DB_PATH"))
	setString(&cfg.HTTPAddr, os.Getenv("MOVIEHUB_HTTP_ADDR"))
	setString(&cfg.GRPCAddr, os.Getenv("MOVIEHUB_GRPC_ADDR"))
	setString(&cfg.EventsTCP, os.Getenv("MOVIEHUB_EVENTS_TCP_ADDR"))
	setString(&cfg.EventsUDP, os.Getenv("MOVIEHUB_EVENTS_UDP_ADDR"))
	setString(&cfg.LogMode, os.Getenv("MOVIEHUB_LOG_MODE"))

	setString(&cfg.Ingest.FeedURL, os.Getenv("MOVIEHUB_FEED_URL"))
	setString(&cfg.Ingest.SiteBaseURL, os.Getenv("MOVIEHUB_SITE_BASE_URL"))
	setString(&cfg.Ingest.AssetDir, os.Getenv("MOVIEHUB_ASSET_DIR"))
	setString(&cfg.Ingest.PublicAssetBaseURL, os.Getenv("MOVIEHUB_PUBLIC_ASSET_BASE_URL"))
	setString(&cfg.Ingest.UserAgent, os.Getenv("MOVIEHUB_USER_AGENT"))
	if err := setDuration(&cfg.Ingest.Interval, os.Getenv("MOVIEHUB_INGEST_INTERVAL")); err != nil {
		return fmt.Errorf("MOVIEHUB_INGEST_INTERVAL: %w", err)
	}
	if err := setDuration(&cfg.Ingest.FetchTimeout, os.Getenv("MOVIEHUB_FETCH_TIMEOUT")); err != nil {
		return fmt.Errorf("MOVIEHUB_FETCH_TIMEOUT: %w", err)
	}
	if v := strings.TrimSpace(os.Getenv("MOVIEHUB_REQUESTS_PER_SECOND")); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MOVIEHUB_REQUESTS_PER_SECOND: %w", err)
		}
		cfg.Ingest.RequestsPerSecond = rps
	}

	auth := LoadAuthConfig()
	if os.Getenv("MOVIEHUB_JWT_SECRET") != "" {
		cfg.Auth.JWTSecret = auth.JWTSecret
	}
	if os.Getenv("MOVIEHUB_JWT_ISSUER") != "" {
		cfg.Auth.JWTIssuer = auth.JWTIssuer
	}
	if os.Getenv("MOVIEHUB_JWT_TTL_HOURS") != "" {
		cfg.Auth.JWTDuration = auth.JWTDuration
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Ingest.FeedURL) == "" {
		errs = append(errs, errors.New("ingest.feed_url is required"))
	}
	if strings.TrimSpace(c.Ingest.AssetDir) == "" {
		errs = append(errs, errors.New("ingest.asset_dir is required"))
	}
	if strings.TrimSpace(c.Ingest.PublicAssetBaseURL) == "" {
		errs = append(errs, errors.New("ingest.public_asset_base_url is required"))
	}
	if c.Ingest.Interval <= 0 {
		errs = append(errs, errors.New("ingest.interval must be positive"))
	}
	if c.Ingest.FetchTimeout <= 0 {
		errs = append(errs, errors.New("ingest.fetch_timeout must be positive"))
	}
	if c.Ingest.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("ingest.requests_per_second must be >= 0"))
	}
	return errors.Join(errs...)
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("MOVIEHUB_JWT_SECRET")
	if secret == "" {
		// dev default (change for production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("MOVIEHUB_JWT_ISSUER")
	if issuer == "" {
		issuer = "moviehub"
	}

	ttl := 24 * time.Hour
	if hours, err := strconv.Atoi(strings.TrimSpace(os.Getenv("MOVIEHUB_JWT_TTL_HOURS"))); err == nil && hours > 0 {
		ttl = time.Duration(hours) * time.Hour
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: ttl,
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
