// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

const (
	defaultTerminalURL = "https://cliente.ligvideo.com.br/#/home"
	defaultCartPath    = "/carrinho/"
	defaultCookieName  = "ligvideo_cart_token"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string

	// StoreID identifies the store to the video-call terminal. Also names the secret in production.
	StoreID string

	// Adapter type (currently only "woocommerce" supported)
	AdapterType string

	Merchant MerchantConfig
	LigVideo LigVideoConfig
}

// MerchantConfig contains the store connection settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type MerchantConfig struct {
	StoreURL     string `json:"store_url"`
	StoreDomain  string `json:"store_domain"` // Derived from StoreURL if not set
	APIKey       string `json:"api_key"`
	APISecret    string `json:"api_secret"`
	CartPath     string `json:"cart_path,omitempty"`     // storefront cart page, relative to StoreURL
	CookieName   string `json:"cookie_name,omitempty"`   // cookie carrying the cart token
	CookieDomain string `json:"cookie_domain,omitempty"` // optional, defaults to the request host
}

// LigVideoConfig holds the terminal integration settings.
// Keys are base64; an empty public key is valid configuration and makes
// catalog exports fail with no_key.
type LigVideoConfig struct {
	PublicKey     string `json:"public_key"`
	PrivateKey    string `json:"private_key,omitempty"` // kept for the terminal tooling, never used to seal
	ButtonEnabled bool   `json:"button_enabled"`
	TerminalURL   string `json:"terminal_url,omitempty"`
}

// CartURL returns the absolute URL of the storefront cart page.
func (m MerchantConfig) CartURL() string {
	path := m.CartPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(m.StoreURL, "/") + path
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		StoreID:     os.Getenv("STORE_ID"),
		AdapterType: envOrDefault("ADAPTER_TYPE", "woocommerce"),
	}

	// StoreID required in all environments
	if cfg.StoreID == "" {
		return nil, fmt.Errorf("STORE_ID environment variable required")
	}

	// Load store and key settings based on environment
	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Use a struct that matches the JSON structure
	var fileConfig struct {
		Port        string         `json:"port"`
		Environment string         `json:"environment"`
		LogLevel    string         `json:"log_level"`
		AdapterType string         `json:"adapter_type"`
		StoreID     string         `json:"store_id"`
		Merchant    MerchantConfig `json:"merchant"`
		LigVideo    LigVideoConfig `json:"ligvideo"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		AdapterType: withDefault(fileConfig.AdapterType, "woocommerce"),
		StoreID:     fileConfig.StoreID,
		Merchant:    fileConfig.Merchant,
		LigVideo:    fileConfig.LigVideo,
	}

	if cfg.StoreID == "" {
		return nil, fmt.Errorf("store_id is required")
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// storeSecret is the JSON document kept in Secret Manager for one store.
type storeSecret struct {
	MerchantConfig
	PublicKey     string `json:"public_key"`
	PrivateKey    string `json:"private_key"`
	ButtonEnabled *bool  `json:"button_enabled"`
	TerminalURL   string `json:"terminal_url"`
}

// loadFromSecretManager fetches store config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{store_id}/versions/latest
// Non-secret settings may still come from env vars; the secret wins when both are set.
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StoreID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := c.loadFromEnv(); err != nil {
		return err
	}
	return c.applySecret(result.Payload.Data)
}

// applySecret overlays a storeSecret JSON document onto c.
func (c *Config) applySecret(data []byte) error {
	var secret storeSecret
	if err := json.Unmarshal(data, &secret); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	m := secret.MerchantConfig
	c.Merchant.StoreURL = withDefault(m.StoreURL, c.Merchant.StoreURL)
	c.Merchant.StoreDomain = withDefault(m.StoreDomain, c.Merchant.StoreDomain)
	c.Merchant.APIKey = withDefault(m.APIKey, c.Merchant.APIKey)
	c.Merchant.APISecret = withDefault(m.APISecret, c.Merchant.APISecret)
	c.Merchant.CartPath = withDefault(m.CartPath, c.Merchant.CartPath)
	c.Merchant.CookieName = withDefault(m.CookieName, c.Merchant.CookieName)
	c.Merchant.CookieDomain = withDefault(m.CookieDomain, c.Merchant.CookieDomain)

	c.LigVideo.PublicKey = withDefault(secret.PublicKey, c.LigVideo.PublicKey)
	c.LigVideo.PrivateKey = withDefault(secret.PrivateKey, c.LigVideo.PrivateKey)
	c.LigVideo.TerminalURL = withDefault(secret.TerminalURL, c.LigVideo.TerminalURL)
	if secret.ButtonEnabled != nil {
		c.LigVideo.ButtonEnabled = *secret.ButtonEnabled
	}
	return nil
}

// loadFromEnv reads store config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Merchant = MerchantConfig{
		StoreURL:     os.Getenv("MERCHANT_STORE_URL"),
		StoreDomain:  os.Getenv("MERCHANT_STORE_DOMAIN"),
		APIKey:       os.Getenv("MERCHANT_API_KEY"),
		APISecret:    os.Getenv("MERCHANT_API_SECRET"),
		CartPath:     os.Getenv("MERCHANT_CART_PATH"),
		CookieName:   os.Getenv("CART_COOKIE_NAME"),
		CookieDomain: os.Getenv("CART_COOKIE_DOMAIN"),
	}

	enabled, err := parseFlag(os.Getenv("LIGVIDEO_BUTTON_ENABLED"))
	if err != nil {
		return fmt.Errorf("parsing LIGVIDEO_BUTTON_ENABLED: %w", err)
	}
	c.LigVideo = LigVideoConfig{
		PublicKey:     os.Getenv("LIGVIDEO_PUBLIC_KEY"),
		PrivateKey:    os.Getenv("LIGVIDEO_PRIVATE_KEY"),
		ButtonEnabled: enabled,
		TerminalURL:   os.Getenv("LIGVIDEO_TERMINAL_URL"),
	}
	return nil
}

// applyDefaults fills optional settings and sanitizes key material.
func (c *Config) applyDefaults() {
	c.Merchant.CartPath = withDefault(c.Merchant.CartPath, defaultCartPath)
	c.Merchant.CookieName = withDefault(c.Merchant.CookieName, defaultCookieName)
	c.LigVideo.TerminalURL = withDefault(c.LigVideo.TerminalURL, defaultTerminalURL)
	c.LigVideo.PublicKey = SanitizeKey(c.LigVideo.PublicKey)
	c.LigVideo.PrivateKey = SanitizeKey(c.LigVideo.PrivateKey)

	// Derive store domain from URL if not explicitly set
	if c.Merchant.StoreDomain == "" && c.Merchant.StoreURL != "" {
		c.Merchant.StoreDomain = extractDomain(c.Merchant.StoreURL)
	}
}

// validate checks that all required configuration fields are present.
// A missing public key is not an error: the catalog endpoint reports it per request.
func (c *Config) validate() error {
	if c.AdapterType != "woocommerce" {
		return fmt.Errorf("unsupported adapter type %q", c.AdapterType)
	}
	if c.Merchant.StoreURL == "" {
		return fmt.Errorf("store_url is required")
	}
	if c.Merchant.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.Merchant.APISecret == "" {
		return fmt.Errorf("api_secret is required")
	}

	// Validate store URL is well-formed
	u, err := url.Parse(c.Merchant.StoreURL)
	if err != nil {
		return fmt.Errorf("invalid store_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid store_url: scheme must be http or https")
	}

	return nil
}

var whitespace = regexp.MustCompile(`\s+`)

// SanitizeKey strips whitespace from base64 key material and clears it when
// the result is not valid base64.
func SanitizeKey(value string) string {
	value = whitespace.ReplaceAllString(value, "")
	if value == "" {
		return ""
	}
	if _, err := base64.StdEncoding.DecodeString(value); err == nil {
		return value
	}
	if _, err := base64.RawStdEncoding.DecodeString(value); err == nil {
		return value
	}
	return ""
}

// parseFlag reads a boolean setting. Empty means false; "yes" and "on" are accepted as true.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return false, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

// extractDomain parses the domain from a URL string.
func extractDomain(storeURL string) string {
	u, err := url.Parse(storeURL)
	if err != nil {
		// Fallback: strip protocol prefix manually
		domain := strings.TrimPrefix(storeURL, "https://")
		domain = strings.TrimPrefix(domain, "http://")
		return strings.Split(domain, "/")[0]
	}
	return u.Host
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
