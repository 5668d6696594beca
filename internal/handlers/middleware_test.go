package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"alert_console/internal/service"

	"github.com/gin-gonic/gin"
)

// newMiddlewareOnlyRouter mounts the auth middleware in front of an endpoint
// that echoes the resolved account.
func newMiddlewareOnlyRouter(auth *mockAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(&service.Service{Authorization: auth}, nil)
	r.GET("/secure", h.userIdMiddleware, func(c *gin.Context) {
		id, ok := accountID(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"account_id": id})
	})
	return r
}

func TestUserIDMiddleware(t *testing.T) {
	cases := []struct {
		name      string
		target    string
		header    string
		parseErr  error
		wantCode  int
		wantErr   string
		wantToken string
	}{
		{name: "missing header", target: "/secure", wantCode: http.StatusUnauthorized, wantErr: "missing Authorization header"},
		{name: "invalid scheme", target: "/secure", header: "Token abc", wantCode: http.StatusUnauthorized, wantErr: "invalid Authorization header format"},
		{name: "bearer without token", target: "/secure", header: "Bearer", wantCode: http.StatusUnauthorized, wantErr: "invalid Authorization header format"},
		{name: "rejected token", target: "/secure", header: "Bearer expired", parseErr: errors.New("expired"),
			wantCode: http.StatusUnauthorized, wantErr: "invalid or expired token", wantToken: "expired"},
		{name: "bearer header", target: "/secure", header: "Bearer good-token", wantCode: http.StatusOK, wantToken: "good-token"},
		{name: "query token", target: "/secure?token=ws-token", wantCode: http.StatusOK, wantToken: "ws-token"},
		{name: "header wins over query", target: "/secure?token=ws-token", header: "Bearer good-token",
			wantCode: http.StatusOK, wantToken: "good-token"},
		{name: "empty query token", target: "/secure?token=", wantCode: http.StatusUnauthorized, wantErr: "missing Authorization header"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &mockAuth{parseID: 123, parseErr: tc.parseErr}
			r := newMiddlewareOnlyRouter(auth)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status: got %d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if auth.lastParseToken != tc.wantToken {
				t.Fatalf("ParseToken got %q, want %q", auth.lastParseToken, tc.wantToken)
			}

			var out struct {
				Error     string `json:"error"`
				AccountID int    `json:"account_id"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.Error != tc.wantErr {
				t.Fatalf("error message: got %q, want %q", out.Error, tc.wantErr)
			}
			if tc.wantCode == http.StatusOK && out.AccountID != 123 {
				t.Fatalf("account id: got %d, want 123", out.AccountID)
			}
		})
	}
}

func TestAccountID_MissingIsUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if _, ok := accountID(c); ok {
		t.Fatalf("expected no account without middleware")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
