// license-admin is an operator tool that works against the licenses
// database directly, for the occasions when the dashboard is down or a
// batch of keys is needed on the command line.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"license-server/config"
	"license-server/internal/auth"
	"license-server/internal/database"
	"license-server/internal/license"
	"license-server/internal/vault"

	"github.com/google/uuid"
	"golang.org/x/term"
)

func main() {
	fmt.Println("========================================")
	fmt.Println(" License Administration Tool")
	fmt.Println("========================================")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config error: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		fmt.Printf("database error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		fmt.Printf("migration error: %v\n", err)
		os.Exit(1)
	}

	repo := database.NewRepository(db)
	keygen := license.NewKeyGenerator(repo, cfg.LicenseConfig.KeyPrefix, cfg.LicenseConfig.KeyGenMaxRetries)
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nOptions:")
		fmt.Println("  1. Create license keys")
		fmt.Println("  2. List licenses")
		fmt.Println("  3. Revoke a license")
		fmt.Println("  4. Show stats")
		fmt.Println("  5. Hash an admin secret")
		fmt.Println("  6. Store secrets in Vault")
		fmt.Println("  7. Exit")
		fmt.Print("\nSelect option: ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		switch input {
		case "1":
			createKeys(ctx, reader, repo, keygen, cfg)
		case "2":
			listLicenses(ctx, reader, repo)
		case "3":
			revokeLicense(ctx, reader, repo)
		case "4":
			showStats(ctx, repo)
		case "5":
			hashSecret()
		case "6":
			storeVaultSecrets(ctx, reader, cfg)
		case "7":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Invalid option")
		}
	}
}

func createKeys(ctx context.Context, reader *bufio.Reader, repo *database.Repository, keygen *license.KeyGenerator, cfg *config.Config) {
	fmt.Println("\n--- Create License Keys ---")

	fmt.Printf("Plan [%s]: ", cfg.LicenseConfig.DefaultPlan)
	plan := readLine(reader)
	if plan == "" {
		plan = cfg.LicenseConfig.DefaultPlan
	}

	fmt.Print("Email (blank for unbound): ")
	email := readLine(reader)

	fmt.Printf("Max activations [%d]: ", cfg.LicenseConfig.DefaultMaxActivations)
	maxActivations := readInt(reader, cfg.LicenseConfig.DefaultMaxActivations)
	if maxActivations < 1 {
		maxActivations = 1
	}

	fmt.Print("Expires in days (0 = never): ")
	expiresDays := readInt(reader, 0)

	fmt.Print("How many keys? [1]: ")
	count := readInt(reader, 1)
	if count < 1 || count > 100 {
		fmt.Println("Invalid count (1-100)")
		return
	}

	var expiresAt *time.Time
	if expiresDays > 0 {
		t := time.Now().AddDate(0, 0, expiresDays)
		expiresAt = &t
	}

	fmt.Printf("\nCreating %d license keys...\n", count)
	fmt.Println("========================================")

	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		key, err := keygen.Generate(ctx)
		if err != nil {
			fmt.Printf("  key generation failed: %v\n", err)
			return
		}

		lic := &database.License{
			LicenseKey:     key,
			Email:          email,
			Status:         database.StatusActive,
			Plan:           plan,
			MaxActivations: maxActivations,
			ExpiresAt:      expiresAt,
		}
		if err := repo.CreateLicense(ctx, lic); err != nil {
			fmt.Printf("  insert failed: %v\n", err)
			return
		}

		keys = append(keys, key)
		fmt.Printf("  %d. %s\n", i+1, key)
	}
	fmt.Println("========================================")

	fmt.Print("\nSave to file? (y/n): ")
	if strings.EqualFold(readLine(reader), "y") {
		filename := fmt.Sprintf("licenses_%s.txt", time.Now().Format("20060102_150405"))
		var content strings.Builder
		content.WriteString(fmt.Sprintf("# Plan: %s\n# Generated: %s\n# Count: %d\n\n",
			plan, time.Now().Format("2006-01-02 15:04:05"), count))
		for i, key := range keys {
			content.WriteString(fmt.Sprintf("%d. %s\n", i+1, key))
		}
		os.WriteFile(filename, []byte(content.String()), 0644)
		fmt.Printf("Saved to: %s\n", filename)
	}
}

func listLicenses(ctx context.Context, reader *bufio.Reader, repo *database.Repository) {
	fmt.Println("\n--- List Licenses ---")
	fmt.Print("Search (key or email, blank for all): ")
	search := readLine(reader)

	licenses, total, err := repo.ListLicenses(ctx, database.LicenseFilter{
		Page:   1,
		Limit:  50,
		Search: search,
	})
	if err != nil {
		fmt.Printf("list failed: %v\n", err)
		return
	}

	fmt.Printf("\n%d licenses (showing up to 50)\n", total)
	fmt.Println("========================================")
	for _, lic := range licenses {
		email := lic.Email
		if email == "" {
			email = "<unbound>"
		}
		expiry := "never"
		if lic.ExpiresAt != nil {
			expiry = lic.ExpiresAt.Format("2006-01-02")
		}
		fmt.Printf("  %s  %-9s  %s  %d/%d  expires %s\n",
			lic.LicenseKey, lic.Status, email, lic.Activations, lic.MaxActivations, expiry)
	}
	fmt.Println("========================================")
}

func revokeLicense(ctx context.Context, reader *bufio.Reader, repo *database.Repository) {
	fmt.Println("\n--- Revoke License ---")
	fmt.Print("Enter license key: ")
	key := license.NormalizeKey(readLine(reader))
	if key == "" {
		fmt.Println("No key entered")
		return
	}

	lic, err := repo.GetLicenseByKey(ctx, key)
	if err != nil {
		fmt.Printf("lookup failed: %v\n", err)
		return
	}
	if lic == nil {
		fmt.Println("License not found")
		return
	}

	fmt.Printf("Revoke %s (%s, %s)? (y/n): ", lic.LicenseKey, lic.Plan, lic.Status)
	if !strings.EqualFold(readLine(reader), "y") {
		fmt.Println("Aborted")
		return
	}

	if _, err := repo.SetLicenseStatus(ctx, lic.ID, database.StatusSuspended); err != nil {
		fmt.Printf("revoke failed: %v\n", err)
		return
	}
	if err := repo.DeleteSessionsForLicense(ctx, lic.ID); err != nil {
		fmt.Printf("session cleanup failed: %v\n", err)
		return
	}
	fmt.Println("Revoked")
}

func showStats(ctx context.Context, repo *database.Repository) {
	stats, err := repo.LicenseStats(ctx)
	if err != nil {
		fmt.Printf("stats failed: %v\n", err)
		return
	}

	fmt.Println("\n========================================")
	fmt.Printf("  Total licenses:     %d\n", stats.TotalLicenses)
	fmt.Printf("  Active:             %d\n", stats.ActiveLicenses)
	fmt.Printf("  Suspended:          %d\n", stats.SuspendedLicenses)
	fmt.Printf("  Expired:            %d\n", stats.ExpiredLicenses)
	fmt.Printf("  Validations (24h):  %d\n", stats.Validations24h)
	fmt.Printf("  Activations (24h):  %d\n", stats.Activations24h)
	fmt.Println("========================================")
}

// hashSecret produces a bcrypt hash suitable for ADMIN_SECRET_HASH so
// the plaintext secret never has to live in the server environment.
func hashSecret() {
	fmt.Print("\nEnter secret (input hidden): ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Printf("read failed: %v\n", err)
		return
	}
	if len(secret) == 0 {
		fmt.Println("Empty secret")
		return
	}

	hash, err := auth.HashSecret(string(secret))
	if err != nil {
		fmt.Printf("hash failed: %v\n", err)
		return
	}
	fmt.Printf("ADMIN_SECRET_HASH=%s\n", hash)
}

// storeVaultSecrets seeds the Vault KV path the server reads its
// secrets from. The admin secret is stored as a bcrypt hash plus a
// random-looking signing key, so the plaintext never leaves this
// prompt.
func storeVaultSecrets(ctx context.Context, reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Store Secrets in Vault ---")

	client, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		fmt.Printf("vault client error: %v\n", err)
		return
	}
	if !client.IsEnabled() {
		fmt.Println("Vault is disabled (set VAULT_ENABLED=true and VAULT_ADDR/VAULT_TOKEN)")
		return
	}
	if err := client.Health(ctx); err != nil {
		fmt.Printf("vault unreachable: %v\n", err)
		return
	}

	fmt.Print("Database password (input hidden, blank keeps configured value): ")
	dbPassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Printf("read failed: %v\n", err)
		return
	}
	if len(dbPassword) == 0 {
		dbPassword = []byte(cfg.DatabaseConfig.Password)
	}

	fmt.Print("Admin secret (input hidden): ")
	adminSecret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Printf("read failed: %v\n", err)
		return
	}
	if len(adminSecret) == 0 {
		fmt.Println("Empty admin secret")
		return
	}

	hash, err := auth.HashSecret(string(adminSecret))
	if err != nil {
		fmt.Printf("hash failed: %v\n", err)
		return
	}

	fmt.Print("Token signing key (blank to generate): ")
	signingKey := readLine(reader)
	if signingKey == "" {
		signingKey = uuid.New().String()
	}

	err = client.StoreSecrets(ctx, vault.Secrets{
		DatabasePassword: string(dbPassword),
		AdminSecretHash:  hash,
		AdminSigningKey:  signingKey,
	})
	if err != nil {
		fmt.Printf("store failed: %v\n", err)
		return
	}

	fmt.Printf("Stored at %s/%s\n", cfg.VaultConfig.MountPath, cfg.VaultConfig.SecretPath)
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func readInt(reader *bufio.Reader, def int) int {
	line := readLine(reader)
	if line == "" {
		return def
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return def
	}
	return n
}
