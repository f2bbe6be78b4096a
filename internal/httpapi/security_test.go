package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velmar/orderdesk/internal/domain/auth"
)

type mockKeyRepo struct {
	keys map[string]*auth.APIKey
}

func (m *mockKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKey, error) {
	k, ok := m.keys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return k, nil
}

func hashKey(pepper, key string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func newSecurityEnv(pepper string, keys ...*auth.APIKey) http.Handler {
	repo := &mockKeyRepo{keys: make(map[string]*auth.APIKey)}
	for _, k := range keys {
		repo.keys[k.KeyHash] = k
	}

	sec := NewSecurity(repo, []byte(pepper))
	return sec.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(actorFromContext(r.Context())))
	}))
}

func TestAuthenticate_ValidKeyInjectsActor(t *testing.T) {
	const pepper = "pepper"
	handler := newSecurityEnv(pepper, &auth.APIKey{
		ID:      "k1",
		KeyHash: hashKey(pepper, "secret-key"),
		Name:    "ops-console",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("api_key", "secret-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops-console", w.Body.String())
}

func TestAuthenticate_MissingKey(t *testing.T) {
	handler := newSecurityEnv("pepper")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 401, body["code"])
	assert.Equal(t, "validation_failure", body["kind"])
}

func TestAuthenticate_WrongKey(t *testing.T) {
	const pepper = "pepper"
	handler := newSecurityEnv(pepper, &auth.APIKey{
		ID:      "k1",
		KeyHash: hashKey(pepper, "secret-key"),
		Name:    "ops-console",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("api_key", "guessed-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticate_DifferentPepperRejects(t *testing.T) {
	handler := newSecurityEnv("pepper-a", &auth.APIKey{
		ID:      "k1",
		KeyHash: hashKey("pepper-b", "secret-key"),
		Name:    "ops-console",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("api_key", "secret-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorFromContext_Default(t *testing.T) {
	assert.Equal(t, "anonymous", actorFromContext(context.Background()))
}
