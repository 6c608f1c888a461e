package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "1234567:test-token")
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS_PATH", "/tmp/creds.json")
	t.Setenv("SHEET_KEY_REFERENCE", "ref-sheet-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("testdata/absent.env")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Telegram.RegistrationCode != "vipe" {
		t.Errorf("registration code = %q, want vipe", cfg.Telegram.RegistrationCode)
	}
	if cfg.Sheets.ReportsID != "ref-sheet-key" {
		t.Errorf("reports sheet = %q, want fallback to reference sheet", cfg.Sheets.ReportsID)
	}
	if cfg.Reference.RefreshInterval != 24*time.Hour {
		t.Errorf("refresh interval = %v, want 24h", cfg.Reference.RefreshInterval)
	}
	if cfg.Reference.MaxAge != 72*time.Hour {
		t.Errorf("max age = %v, want 72h", cfg.Reference.MaxAge)
	}
	if cfg.Drafts.Backend != BackendSQLite {
		t.Errorf("backend = %q, want sqlite", cfg.Drafts.Backend)
	}
	if cfg.Scheduler.ProbeSchedule != "* * * * *" {
		t.Errorf("probe schedule = %q", cfg.Scheduler.ProbeSchedule)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_PORT", "9000")
	t.Setenv("SHEET_KEY_REPORTS", "reports-key")
	t.Setenv("CACHE_REFRESH_MINUTES", "30")
	t.Setenv("CACHE_MAX_AGE_MINUTES", "120")
	t.Setenv("DRAFT_STORE_BACKEND", BackendMongoDB)
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	cfg, err := Load("testdata/absent.env")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Sheets.ReportsID != "reports-key" {
		t.Errorf("reports sheet = %q", cfg.Sheets.ReportsID)
	}
	if cfg.Reference.RefreshInterval != 30*time.Minute {
		t.Errorf("refresh interval = %v", cfg.Reference.RefreshInterval)
	}
	if cfg.Drafts.Backend != BackendMongoDB {
		t.Errorf("backend = %q", cfg.Drafts.Backend)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		prepare func(t *testing.T)
		wantErr string
	}{
		{
			"missing token",
			func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("TELEGRAM_TOKEN", "")
			},
			"TELEGRAM_TOKEN",
		},
		{
			"missing credentials",
			func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("GOOGLE_SHEETS_CREDENTIALS_PATH", "")
			},
			"GOOGLE_SHEETS_CREDENTIALS_PATH",
		},
		{
			"mongodb without uri",
			func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("DRAFT_STORE_BACKEND", BackendMongoDB)
			},
			"MONGODB_URI",
		},
		{
			"unknown backend",
			func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("DRAFT_STORE_BACKEND", "redis")
			},
			"DRAFT_STORE_BACKEND",
		},
		{
			"max age below refresh",
			func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("CACHE_REFRESH_MINUTES", "120")
				t.Setenv("CACHE_MAX_AGE_MINUTES", "60")
			},
			"CACHE_MAX_AGE_MINUTES",
		},
		{
			"non-numeric refresh",
			func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv("CACHE_REFRESH_MINUTES", "daily")
			},
			"CACHE_REFRESH_MINUTES",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.prepare(t)

			_, err := Load("testdata/absent.env")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}
