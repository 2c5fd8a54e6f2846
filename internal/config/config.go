package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration accepts Go duration strings ("15s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type AppCfg struct {
	Env          string   `yaml:"env"`
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
}

type MongoCfg struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisCfg struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TwilioCfg configures the Verify-style OTP delivery provider.
type TwilioCfg struct {
	AccountSID string `yaml:"accountSID"`
	AuthToken  string `yaml:"authToken"`
	ServiceSID string `yaml:"serviceSID"`
	BaseURL    string `yaml:"baseURL"`
}

// CookieCfg controls the session cookie envelope. Key is base64, 32 bytes
// decoded. MaxAge is milliseconds, matching the stored session data blob.
type CookieCfg struct {
	Name     string `yaml:"name"`
	Key      string `yaml:"key"`
	MaxAge   int64  `yaml:"maxAgeMs"`
	Secure   bool   `yaml:"secure"`
	SameSite string `yaml:"sameSite"`
}

type SecurityCfg struct {
	HashSalt           string   `yaml:"hashSalt"`
	GrantKey           string   `yaml:"grantKey"` // base64, 32 bytes decoded
	PasswordHashCost   int      `yaml:"passwordHashCost"`
	EnableOTPCounter   bool     `yaml:"enableOtpCounter"`
	OTPAttemptLimit    int64    `yaml:"otpAttemptLimit"`
	LoginAttemptLimit  int64    `yaml:"loginAttemptLimit"`
	LoginAttemptWindow Duration `yaml:"loginAttemptWindow"`
	EnableRecaptcha    bool     `yaml:"enableRecaptcha"`
	RecaptchaSecret    string   `yaml:"recaptchaSecret"`
	RecaptchaURL       string   `yaml:"recaptchaURL"`
}

// PlatformCfg is one entry of the platform/protocol registry, resolved at
// configuration time rather than by string comparison at the call site.
type PlatformCfg struct {
	Name       string `yaml:"name"`
	Protocol   string `yaml:"protocol"` // "oauth2" or "twofactor"
	GatewayURL string `yaml:"gatewayURL"`
	ClientID   string `yaml:"clientID"`
	RedirectURI string `yaml:"redirectURI"`
}

type Config struct {
	App       AppCfg        `yaml:"app"`
	Mongo     MongoCfg      `yaml:"mongo"`
	Redis     RedisCfg      `yaml:"redis"`
	Twilio    TwilioCfg     `yaml:"twilio"`
	Cookie    CookieCfg     `yaml:"cookie"`
	Security  SecurityCfg   `yaml:"security"`
	Platforms []PlatformCfg `yaml:"platforms"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	override := func(env string, apply func(string)) {
		if v := os.Getenv(env); v != "" {
			apply(v)
		}
	}

	override("APP_ENV", func(v string) { cfg.App.Env = v })
	override("APP_PORT", func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = n
		}
	})
	override("MONGO_URI", func(v string) { cfg.Mongo.URI = v })
	override("MONGO_DB", func(v string) { cfg.Mongo.Database = v })
	override("REDIS_ADDR", func(v string) { cfg.Redis.Addr = v })
	override("REDIS_PASSWORD", func(v string) { cfg.Redis.Password = v })
	override("TWILIO_ACCOUNT_SID", func(v string) { cfg.Twilio.AccountSID = v })
	override("TWILIO_AUTH_TOKEN", func(v string) { cfg.Twilio.AuthToken = v })
	override("TWILIO_SERVICE_SID", func(v string) { cfg.Twilio.ServiceSID = v })
	override("COOKIE_NAME", func(v string) { cfg.Cookie.Name = v })
	override("COOKIE_KEY", func(v string) { cfg.Cookie.Key = v })
	override("HASH_SALT", func(v string) { cfg.Security.HashSalt = v })
	override("GRANT_KEY", func(v string) { cfg.Security.GrantKey = v })
	override("RECAPTCHA_SECRET", func(v string) { cfg.Security.RecaptchaSecret = v })

	if v := os.Getenv("ENABLE_RECAPTCHA"); v == "true" {
		cfg.Security.EnableRecaptcha = true
	}
	if v := os.Getenv("ENABLE_OTP_COUNTER"); v == "true" {
		cfg.Security.EnableOTPCounter = true
	}

	override("OTP_ATTEMPT_LIMIT", func(v string) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Security.OTPAttemptLimit = n
		}
	})
	override("LOGIN_ATTEMPT_LIMIT", func(v string) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Security.LoginAttemptLimit = n
		}
	})
	override("PASSWORD_HASH_COST", func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.PasswordHashCost = n
		}
	})

	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = "SWOB"
	}
	if cfg.Cookie.MaxAge == 0 {
		cfg.Cookie.MaxAge = (2 * time.Hour).Milliseconds()
	}
	if cfg.Cookie.SameSite == "" {
		cfg.Cookie.SameSite = "Lax"
	}
	if cfg.Security.OTPAttemptLimit == 0 {
		cfg.Security.OTPAttemptLimit = 5
	}
	if cfg.Security.LoginAttemptLimit == 0 {
		cfg.Security.LoginAttemptLimit = 5
	}
	if cfg.Security.LoginAttemptWindow == 0 {
		cfg.Security.LoginAttemptWindow = Duration(15 * time.Minute)
	}

	if cfg.Mongo.URI == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	if _, err := cfg.CookieKey(); err != nil {
		return nil, fmt.Errorf("COOKIE_KEY: %w", err)
	}
	if _, err := cfg.GrantKey(); err != nil {
		return nil, fmt.Errorf("GRANT_KEY: %w", err)
	}
	if cfg.Security.HashSalt == "" {
		return nil, errors.New("HASH_SALT is required")
	}
	if cfg.Security.EnableRecaptcha && cfg.Security.RecaptchaSecret == "" {
		return nil, errors.New("reCAPTCHA enabled but RECAPTCHA_SECRET is missing")
	}

	return cfg, nil
}

// CookieKey decodes the cookie encryption key.
func (c *Config) CookieKey() ([]byte, error) {
	return decodeKey(c.Cookie.Key)
}

// GrantKey decodes the grant encryption key.
func (c *Config) GrantKey() ([]byte, error) {
	return decodeKey(c.Security.GrantKey)
}

func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("key is required")
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
