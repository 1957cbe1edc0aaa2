package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the console process.
// Values come from the environment; a .env file in the working directory is loaded first
// when present. Variables already in the environment win over the file.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Console   ConsoleConfig
	Telephony TelephonyConfig
	CRM       CRMConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// DBConfig is optional. Without DB_HOST call history and audit stay in memory.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

func (c DBConfig) Enabled() bool { return c.Host != "" }

// RedisConfig is optional. Without REDIS_HOST no line guard is taken.
type RedisConfig struct {
	Host string
	Port int
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// ConsoleConfig identifies the agent line this process serves.
type ConsoleConfig struct {
	AgentNumber string
	EmployeeID  string

	EndedGrace        time.Duration
	SubmitCloseDelay  time.Duration
	DurationTick      time.Duration
	RecordWriteBuffer int

	// InstanceID tags this process's Redis line holds so a restart can reclaim them.
	// Defaults to the hostname.
	InstanceID  string
	LineLockTTL time.Duration
}

type TelephonyConfig struct {
	// PushURL is the websocket endpoint of the telephony push channel. Optional;
	// events can also arrive on the webhook.
	PushURL       string
	WebhookSecret string

	CallerID     string
	Record       bool
	CallbackURLs []string
}

type CRMConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DB.Enabled() {
		n, err := optionalInt("DB_PORT", 5432)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Enabled() {
		n, err := optionalInt("REDIS_PORT", 6379)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Console.AgentNumber = strings.TrimSpace(os.Getenv("CONSOLE_AGENT_NUMBER"))
	c.Console.EmployeeID = strings.TrimSpace(os.Getenv("CONSOLE_EMPLOYEE_ID"))
	c.Console.EndedGrace = mustDuration("CONSOLE_ENDED_GRACE")
	c.Console.SubmitCloseDelay = mustDuration("CONSOLE_SUBMIT_CLOSE_DELAY")
	c.Console.DurationTick = mustDuration("CONSOLE_DURATION_TICK")
	c.Console.InstanceID = strings.TrimSpace(os.Getenv("CONSOLE_INSTANCE_ID"))
	c.Console.LineLockTTL = mustDuration("CONSOLE_LINE_LOCK_TTL")
	{
		n, err := optionalInt("CONSOLE_RECORD_BUFFER", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Console.RecordWriteBuffer = n
	}

	c.Telephony.PushURL = strings.TrimSpace(os.Getenv("TELEPHONY_PUSH_URL"))
	c.Telephony.WebhookSecret = os.Getenv("TELEPHONY_WEBHOOK_SECRET")
	c.Telephony.CallerID = strings.TrimSpace(os.Getenv("TELEPHONY_CALLER_ID"))
	{
		b, err := optionalBool("TELEPHONY_RECORD", true)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Telephony.Record = b
	}
	c.Telephony.CallbackURLs = splitList(os.Getenv("TELEPHONY_CALLBACK_URLS"))

	c.CRM.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("CRM_BASE_URL")), "/")
	c.CRM.Token = os.Getenv("CRM_TOKEN")
	c.CRM.Timeout = mustDuration("CRM_TIMEOUT")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Enabled() {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if strings.TrimSpace(c.DB.SSLMode) == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("DB_HOST is required in production"))
	}

	if c.Redis.Enabled() && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Console.AgentNumber == "" {
		errs = append(errs, errors.New("CONSOLE_AGENT_NUMBER is required"))
	}
	if c.Console.EmployeeID == "" {
		errs = append(errs, errors.New("CONSOLE_EMPLOYEE_ID is required"))
	}
	if c.Console.EndedGrace <= 0 {
		c.Console.EndedGrace = 2 * time.Second
	}
	if c.Console.SubmitCloseDelay <= 0 {
		c.Console.SubmitCloseDelay = 1500 * time.Millisecond
	}
	if c.Console.DurationTick <= 0 {
		c.Console.DurationTick = time.Second
	}
	if c.Console.RecordWriteBuffer <= 0 {
		c.Console.RecordWriteBuffer = 64
	}
	if c.Console.InstanceID == "" {
		if host, err := os.Hostname(); err == nil {
			c.Console.InstanceID = host
		}
	}
	if c.Console.LineLockTTL <= 0 {
		c.Console.LineLockTTL = 30 * time.Second
	}

	if c.CRM.BaseURL == "" {
		errs = append(errs, errors.New("CRM_BASE_URL is required"))
	}
	if c.CRM.Timeout <= 0 {
		c.CRM.Timeout = 10 * time.Second
	}
	if c.IsProduction() && c.Telephony.WebhookSecret == "" {
		errs = append(errs, errors.New("TELEPHONY_WEBHOOK_SECRET is required in production"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, def int) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return def, nil
	}
	return mustInt(key)
}

func optionalBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
