package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:     AppConfig{Env: "local", Port: 8080},
		Auth:    AuthConfig{JWTSecret: "secret"},
		Console: ConsoleConfig{AgentNumber: "919876543210", EmployeeID: "emp-1"},
		CRM:     CRMConfig{BaseURL: "http://crm.local"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	c.Telephony.WebhookSecret = "s"
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "console"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "console"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Console.EndedGrace != 2*time.Second || c.Console.SubmitCloseDelay != 1500*time.Millisecond || c.Console.DurationTick != time.Second {
		t.Fatalf("unexpected console defaults: %+v", c.Console)
	}
	if c.Console.LineLockTTL != 30*time.Second {
		t.Fatalf("unexpected line lock ttl default: %v", c.Console.LineLockTTL)
	}
	if c.CRM.Timeout != 10*time.Second {
		t.Fatalf("unexpected crm timeout default: %v", c.CRM.Timeout)
	}
}

func TestValidate_DBAndRedisOptionalLocally(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error without db/redis, got %v", err)
	}
	if c.DB.Enabled() || c.Redis.Enabled() {
		t.Fatalf("db and redis should be disabled")
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := "APP_ENV=local\nAPP_PORT=9090\nJWT_SECRET=s\nCONSOLE_AGENT_NUMBER=100\nCONSOLE_EMPLOYEE_ID=e\nCRM_BASE_URL=http://crm.local/\nTELEPHONY_CALLBACK_URLS=http://a, http://b\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	for _, k := range []string{"APP_ENV", "APP_PORT", "JWT_SECRET", "CONSOLE_AGENT_NUMBER", "CONSOLE_EMPLOYEE_ID", "CRM_BASE_URL", "TELEPHONY_CALLBACK_URLS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Port != 9090 || c.Console.AgentNumber != "100" {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.CRM.BaseURL != "http://crm.local" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.CRM.BaseURL)
	}
	if len(c.Telephony.CallbackURLs) != 2 || !c.Telephony.Record {
		t.Fatalf("unexpected telephony config: %+v", c.Telephony)
	}
}
