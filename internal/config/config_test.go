package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ATTEND_BASE_URL", "")
	t.Setenv("UPLOAD_TIMEOUT", "")
	t.Setenv("CREDENTIAL_BACKEND", "")

	cfg := FromEnv()
	if cfg.Client.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q, want http://localhost:8000", cfg.Client.BaseURL)
	}
	if cfg.Client.APIPrefix != "/api/v1" {
		t.Errorf("APIPrefix = %q, want /api/v1", cfg.Client.APIPrefix)
	}
	if cfg.Client.UploadTimeout != 60*time.Second {
		t.Errorf("UploadTimeout = %s, want 60s", cfg.Client.UploadTimeout)
	}
	if cfg.CredentialBackend != "file" {
		t.Errorf("CredentialBackend = %q, want file", cfg.CredentialBackend)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ATTEND_BASE_URL", "https://attend.example.edu")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("KIOSK_SESSION_ID", "42")
	t.Setenv("KIOSK_CAPTURE_DIR", "/var/lib/kiosk/captures")

	cfg := FromEnv()
	if cfg.Client.BaseURL != "https://attend.example.edu" {
		t.Errorf("BaseURL = %q", cfg.Client.BaseURL)
	}
	if cfg.Client.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %s, want 5s", cfg.Client.RequestTimeout)
	}
	if cfg.Client.RateLimitPerMin != 30 {
		t.Errorf("RateLimitPerMin = %d, want 30", cfg.Client.RateLimitPerMin)
	}
	if cfg.KioskSessionID != "42" {
		t.Errorf("KioskSessionID = %q, want 42", cfg.KioskSessionID)
	}
	if cfg.KioskCaptureDir != "/var/lib/kiosk/captures" {
		t.Errorf("KioskCaptureDir = %q", cfg.KioskCaptureDir)
	}
}

func TestFromEnv_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("UPLOAD_TIMEOUT", "forever")

	cfg := FromEnv()
	if cfg.Client.UploadTimeout != 60*time.Second {
		t.Errorf("UploadTimeout = %s, want fallback 60s", cfg.Client.UploadTimeout)
	}
}

func TestClient_Endpoint(t *testing.T) {
	c := Client{BaseURL: "http://api.local/", APIPrefix: "/api/v1/"}
	if got := c.Endpoint(); got != "http://api.local/api/v1" {
		t.Errorf("Endpoint() = %q, want http://api.local/api/v1", got)
	}
}

func TestApp_Validate(t *testing.T) {
	valid := App{
		Client:            Client{BaseURL: "http://localhost:8000", RequestTimeout: time.Second, UploadTimeout: time.Second},
		CredentialBackend: "memory",
		EventBackend:      "memory",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	bad := valid
	bad.Client.BaseURL = "ftp://nope"
	bad.CredentialBackend = "file"
	bad.CredentialKey = ""
	bad.CredentialFile = "/tmp/cred"
	err := bad.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"ATTEND_BASE_URL", "CREDENTIAL_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestApp_Validate_UnknownBackends(t *testing.T) {
	cfg := App{
		Client:            Client{BaseURL: "http://x", RequestTimeout: time.Second, UploadTimeout: time.Second},
		CredentialBackend: "keychain",
		EventBackend:      "kafka",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	if !strings.Contains(err.Error(), "keychain") || !strings.Contains(err.Error(), "kafka") {
		t.Errorf("error %q should name both unknown backends", err)
	}
}
