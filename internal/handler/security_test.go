package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/optiontech/servicedesk/internal/domain/auth"
)

type stubAPIKeys struct {
	info *auth.APIKeyInfo
}

func (s *stubAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if s.info == nil || s.info.KeyHash != hash {
		return nil, auth.ErrUnauthorized
	}
	return s.info, nil
}

func keyHash(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRequireAPIKey(t *testing.T) {
	pepper := []byte("test-pepper")
	const key = "staff-secret"

	repo := &stubAPIKeys{info: &auth.APIKeyInfo{
		ID:      "workshop",
		KeyHash: keyHash(key, pepper),
		Scopes:  []string{auth.ScopeOrders},
	}}

	var gotActor string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = actorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		header   string
		scope    string
		wantCode int
	}{
		{"missing key", "", auth.ScopeOrders, http.StatusUnauthorized},
		{"wrong key", "not-the-key", auth.ScopeOrders, http.StatusUnauthorized},
		{"valid key", key, auth.ScopeOrders, http.StatusOK},
		{"valid key no scope required", key, "", http.StatusOK},
		{"missing scope", key, auth.ScopeLedger, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotActor = ""
			handler := RequireAPIKey(repo, pepper, tt.scope)(inner)

			req := httptest.NewRequest(http.MethodPost, "/api/orders/SLB-1/transition", nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "workshop", gotActor)
			}
		})
	}
}

func TestActorFromWithoutAuth(t *testing.T) {
	assert.Empty(t, actorFrom(context.Background()))
}
