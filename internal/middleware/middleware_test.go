package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gw2armory/armory-back/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "42", time.Now().Add(time.Hour))

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedUserID int64
	}{
		{name: "valid token", header: "Bearer " + valid, expectedStatus: http.StatusOK, expectedUserID: 42},
		{name: "missing header", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, expectedStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.token", expectedStatus: http.StatusUnauthorized},
		{
			name:           "wrong secret",
			header:         "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), "42", time.Now().Add(time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired",
			header:         "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "42", time.Now().Add(-time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "non numeric subject",
			header:         "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "cat", time.Now().Add(time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUserID int64
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID, _ = UserID(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			h := AuthMiddleware(&config.Config{JWTSecret: testSecret})(next)

			req := httptest.NewRequest(http.MethodGet, "/tokens", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if gotUserID != tt.expectedUserID {
				t.Errorf("user id = %d, want %d", gotUserID, tt.expectedUserID)
			}
		})
	}
}

func TestUserIDMissing(t *testing.T) {
	if _, ok := UserID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); ok {
		t.Error("expected no user id")
	}
}

func TestLoggingMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generates request id", func(t *testing.T) {
		hook.Reset()
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		id := w.Header().Get(requestIDHeader)
		if id == "" {
			t.Fatal("no request id set")
		}
		entry := hook.LastEntry()
		if entry == nil {
			t.Fatal("nothing logged")
		}
		if entry.Data["request_id"] != id || entry.Data["status"] != http.StatusTeapot {
			t.Errorf("unexpected log fields: %v", entry.Data)
		}
	})

	t.Run("keeps incoming request id", func(t *testing.T) {
		hook.Reset()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if got := w.Header().Get(requestIDHeader); got != "abc-123" {
			t.Errorf("request id = %q", got)
		}
		if status := hook.LastEntry().Data["status"]; status != http.StatusTeapot {
			t.Errorf("status = %v", status)
		}
	})
}
