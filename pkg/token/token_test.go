package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"missing header", "", "", true},
		{"wrong prefix", "Basic abc", "", true},
		{"lowercase prefix", "bearer abc", "", true},
		{"prefix only", "Bearer ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearer(tt.header)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("expected ErrInvalidToken, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	v := NewVerifier(testSecret, "lux")

	credential := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "user-123",
		"appId": "lux",
	})

	subject, err := v.Verify(credential)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "user-123" {
		t.Errorf("got subject %q, want %q", subject, "user-123")
	}
}

func TestVerify_Failures(t *testing.T) {
	v := NewVerifier(testSecret, "lux")

	tests := []struct {
		name       string
		credential string
	}{
		{"garbage", "not-a-jwt"},
		{"empty", ""},
		{"wrong secret", signToken(t, []byte("other-secret"), jwt.MapClaims{"sub": "user-123", "appId": "lux"})},
		{"wrong app id", signToken(t, testSecret, jwt.MapClaims{"sub": "user-123", "appId": "other-app"})},
		{"missing app id", signToken(t, testSecret, jwt.MapClaims{"sub": "user-123"})},
		{"missing subject", signToken(t, testSecret, jwt.MapClaims{"appId": "lux"})},
		{"expired", signToken(t, testSecret, jwt.MapClaims{
			"sub": "user-123", "appId": "lux", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(tt.credential); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerify_NotExpired(t *testing.T) {
	v := NewVerifier(testSecret, "lux")
	credential := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-123", "appId": "lux", "exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := v.Verify(credential); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
