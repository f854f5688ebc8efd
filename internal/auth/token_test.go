package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/field-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, exp, err := tm.GenerateToken("user-1", domain.RoleTechnician)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry in the past: %v", exp)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q", claims.UserID)
	}
	if claims.Role != domain.RoleTechnician {
		t.Errorf("Role = %q", claims.Role)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("user-1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewTokenManager("secret-b", 60).ParseToken(token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := NewTokenManager("secret", 60).ParseToken("not-a-token"); err == nil {
		t.Fatal("garbage token must be rejected")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2!", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(hash, "hunter2!"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestPasswordHashZeroCostFallsBack(t *testing.T) {
	hash, err := HashPassword("hunter2!", 0)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.DefaultCost)
	}
}
