package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sessiondomain "orgsession/internal/session/domain"
)

func TestWithSession(t *testing.T) {
	ctx := WithSession(context.Background(), &sessiondomain.Session{UserID: "user-1"})

	sess, ok := SessionFrom(ctx)
	if !ok || sess.UserID != "user-1" {
		t.Fatalf("SessionFrom = %+v, %v", sess, ok)
	}
	userID, ok := UserIDFrom(ctx)
	if !ok || userID != "user-1" {
		t.Errorf("UserIDFrom = %q, %v", userID, ok)
	}
}

func TestSessionFrom_Unset(t *testing.T) {
	if _, ok := SessionFrom(context.Background()); ok {
		t.Error("SessionFrom should be false on empty context")
	}
	if _, ok := SessionFrom(WithSession(context.Background(), nil)); ok {
		t.Error("SessionFrom should be false for a nil session")
	}
	if _, ok := UserIDFrom(context.Background()); ok {
		t.Error("UserIDFrom should be false on empty context")
	}
}

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "10.0.0.2:1234", "203.0.113.9"},
		{"remote addr", nil, "192.0.2.7:5555", "192.0.2.7"},
		{"remote without port", nil, "192.0.2.7", "192.0.2.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIPFromRequest(r); got != tt.want {
				t.Errorf("ClientIPFromRequest = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestClientIP(t *testing.T) {
	var got string
	h := RequestClientIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.4:80"
	h.ServeHTTP(httptest.NewRecorder(), r)
	if got != "198.51.100.4" {
		t.Errorf("ClientIP = %q", got)
	}
	if ClientIP(context.Background()) != "unknown" {
		t.Error("ClientIP default should be unknown")
	}
}
