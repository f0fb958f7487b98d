// Package vault loads deployment secrets (database password, admin
// secret) from HashiCorp Vault KV v2 when enabled. With Vault disabled
// the client is a no-op and config/env values are used as-is.
package vault

import (
	"context"
	"fmt"

	"license-server/config"

	"github.com/hashicorp/vault/api"
)

// Secrets holds the values the service reads from Vault
type Secrets struct {
	DatabasePassword string `json:"database_password"`
	AdminSecret      string `json:"admin_secret"`
	AdminSecretHash  string `json:"admin_secret_hash"`
	AdminSigningKey  string `json:"admin_signing_key"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// LoadSecrets reads the service secrets from Vault. Missing fields come
// back empty and the caller keeps its configured values for them.
func (c *Client) LoadSecrets(ctx context.Context) (*Secrets, error) {
	if !c.config.Enabled {
		return &Secrets{}, nil
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secrets found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	return &Secrets{
		DatabasePassword: getString(data, "database_password"),
		AdminSecret:      getString(data, "admin_secret"),
		AdminSecretHash:  getString(data, "admin_secret_hash"),
		AdminSigningKey:  getString(data, "admin_signing_key"),
	}, nil
}

// StoreSecrets writes the service secrets to Vault. The admin CLI uses
// it to seed a deployment; empty fields overwrite whatever is stored.
func (c *Client) StoreSecrets(ctx context.Context, secrets Secrets) error {
	if !c.config.Enabled {
		return fmt.Errorf("vault is disabled")
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"database_password": secrets.DatabasePassword,
			"admin_secret":      secrets.AdminSecret,
			"admin_secret_hash": secrets.AdminSecretHash,
			"admin_signing_key": secrets.AdminSigningKey,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, path, payload); err != nil {
		return fmt.Errorf("failed to store secrets in vault: %w", err)
	}
	return nil
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
