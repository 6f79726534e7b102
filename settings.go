// settings.go
// ------------
// Settings are loaded once at process start and passed explicitly to every
// tentacle. Values come from an optional YAML file (with ${VAR} and
// ${VAR:-default} expansion) and are then overridden by TENTACLES_*
// environment variables.
package tentacles

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "TENTACLES_"

type Settings struct {
	CacheSize        int           `yaml:"cache_size"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	PaginationMethod string        `yaml:"pagination_method"`

	// EncryptionKey seals persisted tokens when set.
	EncryptionKey string `yaml:"encryption_key"`
	// TokenBackend is one of file, redis, sqlite or memory.
	TokenBackend string `yaml:"token_backend"`
	TokenDir     string `yaml:"token_dir"`
	RedisAddr    string `yaml:"redis_addr"`
	SQLitePath   string `yaml:"sqlite_path"`

	Webhook   WebhookSettings             `yaml:"webhook"`
	Providers map[string]ProviderSettings `yaml:"providers"`
}

type WebhookSettings struct {
	Provider string `yaml:"provider"`
	Addr     string `yaml:"addr"`
	Path     string `yaml:"path"`
}

// ProviderSettings are the credentials and overrides for one provider.
type ProviderSettings struct {
	APIKey        string            `yaml:"api_key"`
	ClientID      string            `yaml:"client_id"`
	ClientSecret  string            `yaml:"client_secret"`
	RedirectURI   string            `yaml:"redirect_uri"`
	BaseURL       string            `yaml:"base_url"`
	Scopes        []string          `yaml:"scopes"`
	WebhookSecret string            `yaml:"webhook_secret"`
	Limits        *Limits           `yaml:"limits"`
	MaxRetries    int               `yaml:"max_retries"`
	Extra         map[string]string `yaml:"extra"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() *Settings {
	return &Settings{
		CacheSize:        DefaultCacheSize,
		CacheTTL:         DefaultCacheTTL,
		PaginationMethod: string(PaginationOffsetLimit),
		TokenBackend:     "file",
		Webhook:          WebhookSettings{Addr: ":8000", Path: "/webhook"},
		Providers:        map[string]ProviderSettings{},
	}
}

// LoadSettings reads path (if non-empty) over the defaults and applies the environment.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapError(ErrConfiguration, err, "read settings file %s", path)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), s); err != nil {
			return nil, WrapError(ErrConfiguration, err, "parse settings file %s", path)
		}
		if s.Providers == nil {
			s.Providers = map[string]ProviderSettings{}
		}
	}
	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	if _, err := ParsePaginationStyle(s.PaginationMethod); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	if v, ok := lookupEnv("CACHE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return WrapError(ErrConfiguration, err, "%sCACHE_SIZE", envPrefix)
		}
		s.CacheSize = n
	}
	if v, ok := lookupEnv("CACHE_TTL"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return WrapError(ErrConfiguration, err, "%sCACHE_TTL", envPrefix)
		}
		s.CacheTTL = d
	}
	if v, ok := lookupEnv("PAGINATION_METHOD"); ok {
		s.PaginationMethod = v
	}
	if v, ok := lookupEnv("ENCRYPTION_KEY"); ok {
		s.EncryptionKey = v
	}
	if v, ok := lookupEnv("TOKEN_BACKEND"); ok {
		s.TokenBackend = v
	}
	if v, ok := lookupEnv("TOKEN_DIR"); ok {
		s.TokenDir = v
	}
	if v, ok := lookupEnv("REDIS_ADDR"); ok {
		s.RedisAddr = v
	}
	if v, ok := lookupEnv("SQLITE_PATH"); ok {
		s.SQLitePath = v
	}
	return nil
}

// Provider returns the settings for name with TENTACLES_<NAME>_* overrides applied,
// e.g. TENTACLES_STRIPE_API_KEY.
func (s *Settings) Provider(name string) ProviderSettings {
	ps := s.Providers[name]
	prefix := strings.ToUpper(name) + "_"
	for suffix, dst := range map[string]*string{
		"API_KEY":        &ps.APIKey,
		"CLIENT_ID":      &ps.ClientID,
		"CLIENT_SECRET":  &ps.ClientSecret,
		"REDIRECT_URI":   &ps.RedirectURI,
		"BASE_URL":       &ps.BaseURL,
		"WEBHOOK_SECRET": &ps.WebhookSecret,
	} {
		if v, ok := lookupEnv(prefix + suffix); ok {
			*dst = v
		}
	}
	return ps
}

// Pagination returns the configured default pagination style.
func (s *Settings) Pagination() PaginationStrategy {
	style, err := ParsePaginationStyle(s.PaginationMethod)
	if err != nil {
		return PaginationOffsetLimit
	}
	return style
}

// Apply copies the cache and pagination defaults into cfg where cfg leaves them unset.
func (s *Settings) Apply(cfg *ProviderConfig) {
	if cfg.CacheSize == 0 {
		cfg.CacheSize = s.CacheSize
		if s.CacheSize == 0 {
			cfg.CacheSize = -1
		}
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = s.CacheTTL
	}
	if cfg.Pagination == nil {
		cfg.Pagination = s.Pagination()
	}
}

// Require fails with a configuration error naming every empty field.
func (ps ProviderSettings) Require(provider string, fields ...string) error {
	values := map[string]string{
		"api_key":        ps.APIKey,
		"client_id":      ps.ClientID,
		"client_secret":  ps.ClientSecret,
		"redirect_uri":   ps.RedirectURI,
		"base_url":       ps.BaseURL,
		"webhook_secret": ps.WebhookSecret,
	}
	var missing []string
	for _, f := range fields {
		if values[f] == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &Error{Kind: ErrConfiguration, Provider: provider, Message: "missing " + strings.Join(missing, ", ")}
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// parseSeconds accepts a bare number of seconds or a Go duration string.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

var envVarRegex = regexp.MustCompile(`\$\{[^}]+\}|\$[A-Za-z_][A-Za-z0-9_]*`)

func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		// ${VAR_NAME:-default}
		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}
