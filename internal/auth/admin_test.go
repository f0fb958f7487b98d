package auth

import (
	"testing"
	"time"
)

func TestNewAdminRequiresSecretOrHash(t *testing.T) {
	if _, err := NewAdmin("", "", "", time.Hour); err == nil {
		t.Fatal("Expected error when neither secret nor hash is set")
	}
	if _, err := NewAdmin("", "", "sign-key", time.Hour); err == nil {
		t.Fatal("A signing key alone cannot verify logins")
	}
}

func TestHashOnlyNeedsSigningKey(t *testing.T) {
	hash, err := HashSecret("s3cret")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	if _, err := NewAdmin("", hash, "", time.Hour); err == nil {
		t.Fatal("Hash without a signing key must be rejected")
	}

	admin, err := NewAdmin("", hash, "sign-key", time.Hour)
	if err != nil {
		t.Fatalf("Hash plus signing key should work: %v", err)
	}

	token, err := admin.Login("s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !admin.CheckToken(token) {
		t.Error("Issued token rejected")
	}
	if admin.CheckToken("sign-key") {
		t.Error("The signing key is not an admin token")
	}
	if admin.CheckToken("") {
		t.Error("Empty token must be rejected")
	}
	if _, err := admin.Login("wrong"); err != ErrBadPassword {
		t.Fatalf("Expected ErrBadPassword, got %v", err)
	}
}

func TestExplicitSigningKeySignsTokens(t *testing.T) {
	a, _ := NewAdmin("s3cret", "", "sign-key", time.Hour)
	b, _ := NewAdmin("other-secret", "", "sign-key", time.Hour)

	token, err := a.Login("s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !b.CheckToken(token) {
		t.Error("Instances sharing a signing key should accept each other's tokens")
	}
}

func TestLoginAndCheckToken(t *testing.T) {
	admin, err := NewAdmin("s3cret", "", "", time.Hour)
	if err != nil {
		t.Fatalf("NewAdmin failed: %v", err)
	}

	token, err := admin.Login("s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a token")
	}
	if !admin.CheckToken(token) {
		t.Error("Issued token rejected")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	admin, _ := NewAdmin("s3cret", "", "", time.Hour)

	_, err := admin.Login("wrong")
	if err != ErrBadPassword {
		t.Fatalf("Expected ErrBadPassword, got %v", err)
	}
}

func TestRawSecretAcceptedWithoutHash(t *testing.T) {
	admin, _ := NewAdmin("s3cret", "", "", time.Hour)

	if !admin.CheckToken("s3cret") {
		t.Error("Raw secret should be accepted when no hash is configured")
	}
	if admin.CheckToken("wrong") {
		t.Error("Wrong secret must be rejected")
	}
	if admin.CheckToken("") {
		t.Error("Empty token must be rejected")
	}
}

func TestRawSecretRejectedWithHash(t *testing.T) {
	hash, err := HashSecret("s3cret")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	admin, _ := NewAdmin("s3cret", hash, "", time.Hour)

	// With a hash configured, only JWTs pass the token check
	if admin.CheckToken("s3cret") {
		t.Error("Raw secret must be rejected when a hash is configured")
	}

	token, err := admin.Login("s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !admin.CheckToken(token) {
		t.Error("JWT should still be accepted")
	}
}

func TestHashedLoginWrongPassword(t *testing.T) {
	hash, _ := HashSecret("s3cret")
	admin, _ := NewAdmin("s3cret", hash, "", time.Hour)

	if _, err := admin.Login("wrong"); err != ErrBadPassword {
		t.Fatalf("Expected ErrBadPassword, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	admin, _ := NewAdmin("s3cret", "", "", time.Hour)
	admin.tokenDuration = -time.Minute

	token, err := admin.issueToken()
	if err != nil {
		t.Fatalf("issueToken failed: %v", err)
	}
	if admin.CheckToken(token) {
		t.Error("Expired token must be rejected")
	}
}

func TestTokenFromDifferentSecretRejected(t *testing.T) {
	a, _ := NewAdmin("secret-a", "", "", time.Hour)
	b, _ := NewAdmin("secret-b", "", "", time.Hour)

	token, err := a.Login("secret-a")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if b.CheckToken(token) {
		t.Error("Token signed with a foreign secret must be rejected")
	}
}
