package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"lpsn-harvester/utils"
)

const (
	DefaultBaseURL   = "https://lpsn.dsmz.de/"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultOutput    = "output.xlsx"
)

type Config struct {
	BaseURL        string
	SpeciesURL     string
	UserAgent      string
	RequestTimeout time.Duration
	RateLimit      int
	OutputFile     string
	DatabaseURL    string
	LogLevel       string
}

// Load reads envFile (".env" when empty) if it exists, then the process
// environment.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	timeout, err := getEnvInt("REQUEST_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getEnvInt("RATE_LIMIT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:        getEnv("LPSN_BASE_URL", DefaultBaseURL),
		SpeciesURL:     getEnv("LPSN_SPECIES_URL", ""),
		UserAgent:      getEnv("USER_AGENT", DefaultUserAgent),
		RequestTimeout: time.Duration(timeout) * time.Second,
		RateLimit:      rateLimit,
		OutputFile:     getEnv("OUTPUT_FILE", DefaultOutput),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the URLs. An explicit SpeciesURL decides the site root that
// relative links resolve against; otherwise SpeciesURL is derived from BaseURL.
func (c *Config) Validate() error {
	if c.SpeciesURL != "" {
		if !utils.IsAbsoluteHTTPURL(c.SpeciesURL) {
			return fmt.Errorf("invalid LPSN_SPECIES_URL %q", c.SpeciesURL)
		}
		root, err := utils.SiteRoot(c.SpeciesURL)
		if err != nil {
			return fmt.Errorf("invalid LPSN_SPECIES_URL: %w", err)
		}
		c.BaseURL = root
	} else {
		root, err := utils.SiteRoot(c.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid LPSN_BASE_URL: %w", err)
		}
		c.BaseURL = root
		c.SpeciesURL = root + "species"
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("OUTPUT_FILE must not be empty")
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return n, nil
}
