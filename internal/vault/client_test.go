package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"license-server/config"
)

func TestDisabledClientIsNoOp(t *testing.T) {
	client, err := NewClient(config.VaultConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.IsEnabled() {
		t.Fatal("Client must report disabled")
	}

	secrets, err := client.LoadSecrets(context.Background())
	if err != nil {
		t.Fatalf("LoadSecrets must be a no-op when disabled: %v", err)
	}
	if secrets.AdminSecret != "" || secrets.DatabasePassword != "" {
		t.Errorf("Expected empty secrets, got %+v", secrets)
	}

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health must pass when disabled: %v", err)
	}

	if err := client.StoreSecrets(context.Background(), Secrets{}); err == nil {
		t.Error("StoreSecrets must refuse to write when disabled")
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewClient(config.VaultConfig{
		Enabled:    true,
		Address:    ts.URL,
		Token:      "test-token",
		MountPath:  "secret",
		SecretPath: "license-server",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, ts
}

func TestLoadSecrets(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/license-server" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Vault-Token"); got != "test-token" {
			t.Errorf("Expected vault token header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": map[string]interface{}{
					"database_password": "db-pass",
					"admin_secret_hash": "$2a$10$hash",
					"admin_signing_key": "sign-key",
				},
			},
		})
	}))

	secrets, err := client.LoadSecrets(context.Background())
	if err != nil {
		t.Fatalf("LoadSecrets failed: %v", err)
	}
	if secrets.DatabasePassword != "db-pass" {
		t.Errorf("Expected db-pass, got %q", secrets.DatabasePassword)
	}
	if secrets.AdminSecretHash != "$2a$10$hash" {
		t.Errorf("Expected the stored hash, got %q", secrets.AdminSecretHash)
	}
	if secrets.AdminSigningKey != "sign-key" {
		t.Errorf("Expected sign-key, got %q", secrets.AdminSigningKey)
	}
	// Missing fields come back empty, callers keep configured values
	if secrets.AdminSecret != "" {
		t.Errorf("Expected empty admin secret, got %q", secrets.AdminSecret)
	}
}

func TestStoreSecrets(t *testing.T) {
	var stored map[string]interface{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/license-server" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&stored); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.StoreSecrets(context.Background(), Secrets{
		DatabasePassword: "db-pass",
		AdminSecretHash:  "$2a$10$hash",
		AdminSigningKey:  "sign-key",
	})
	if err != nil {
		t.Fatalf("StoreSecrets failed: %v", err)
	}

	data, ok := stored["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected a KV v2 data envelope, got %v", stored)
	}
	if data["database_password"] != "db-pass" {
		t.Errorf("Expected db-pass, got %v", data["database_password"])
	}
	if data["admin_signing_key"] != "sign-key" {
		t.Errorf("Expected sign-key, got %v", data["admin_signing_key"])
	}
}

func TestHealthSealed(t *testing.T) {
	sealed := false
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sys/health" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if sealed {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"initialized": true,
			"sealed":      sealed,
		})
	}))

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Healthy vault reported an error: %v", err)
	}

	sealed = true
	if err := client.Health(context.Background()); err == nil {
		t.Fatal("Sealed vault must fail the health check")
	}
}
