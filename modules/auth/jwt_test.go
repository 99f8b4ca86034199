package auth

import (
	"errors"
	"testing"
	"time"
)

func testConfig() JWTConfig {
	return JWTConfig{
		SecretKey:     "test-secret-key",
		TokenDuration: time.Hour,
		Issuer:        "test-issuer",
	}
}

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := NewJWTManager(testConfig())

	token, err := manager.Generate("user-123", "bailey", "super-admin")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if token == "" {
		t.Error("Generate() returned empty token")
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("claims.UserID = %v, want user-123", claims.UserID)
	}
	if claims.Username != "bailey" {
		t.Errorf("claims.Username = %v, want bailey", claims.Username)
	}
	if claims.Roles != "super-admin" {
		t.Errorf("claims.Roles = %v, want super-admin", claims.Roles)
	}
	if claims.Issuer != "test-issuer" {
		t.Errorf("claims.Issuer = %v, want test-issuer", claims.Issuer)
	}
}

func TestJWTManager_ValidateExpiredToken(t *testing.T) {
	config := testConfig()
	config.TokenDuration = -time.Minute
	manager := NewJWTManager(config)

	token, err := manager.Generate("user-123", "bailey", "user")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = manager.Validate(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTManager_ValidateInvalidToken(t *testing.T) {
	manager := NewJWTManager(testConfig())

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"wrong key", mustGenerate(t, "other-secret")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.Validate(tt.token); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func mustGenerate(t *testing.T, secret string) string {
	t.Helper()
	config := testConfig()
	config.SecretKey = secret
	token, err := NewJWTManager(config).Generate("user-123", "bailey", "user")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return token
}

func TestClaims_HasRole(t *testing.T) {
	tests := []struct {
		name  string
		roles string
		role  string
		want  bool
	}{
		{"single match", "user", "user", true},
		{"multi match", "user,group-admin", "group-admin", true},
		{"no match", "user", "super-admin", false},
		{"empty roles", "", "user", false},
		{"partial name is not a match", "group-admin", "admin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Claims{Roles: tt.roles}
			if got := c.HasRole(tt.role); got != tt.want {
				t.Errorf("HasRole(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher()

	hash, err := hasher.Hash("hello")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "hello" {
		t.Error("Hash() returned the plaintext password")
	}

	if !hasher.Verify("hello", hash) {
		t.Error("Verify() = false for correct password")
	}
	if hasher.Verify("wrong", hash) {
		t.Error("Verify() = true for wrong password")
	}
}
