package jwtauth

import "testing"

func TestIssueAndParse(t *testing.T) {
	token, err := Issue("secret", "admin-42", "admin", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := ParseAuth("Bearer "+token, "secret")
	if err != nil {
		t.Fatalf("ParseAuth: %v", err)
	}
	if claims["sub"] != "admin-42" || claims["role"] != "admin" {
		t.Errorf("unexpected claims: %v", claims)
	}
}

func TestParseRejectsBadToken(t *testing.T) {
	if _, err := ParseAuth("", "secret"); err == nil {
		t.Error("expected error for empty header")
	}
	if _, err := ParseAuth("Bearer not.a.token", "secret"); err == nil {
		t.Error("expected error for malformed token")
	}

	token, err := Issue("secret", "admin-42", "admin", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := ParseAuth("Bearer "+token, "other-secret"); err == nil {
		t.Error("expected error for wrong secret")
	}
}
