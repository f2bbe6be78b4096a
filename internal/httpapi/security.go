package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/velmar/orderdesk/internal/domain/auth"
)

type actorKey struct{}

// actorFromContext returns the authenticated key name, or "anonymous" when
// the request bypassed authentication (health probes, tests).
func actorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok {
		return actor
	}
	return "anonymous"
}

// ContextWithActor injects an actor name, used by tests to exercise handlers
// without the full middleware stack.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Security authenticates requests via HMAC-SHA256 hashed API keys carried in
// the api_key header. The key name becomes the actor attributed to status
// ledger entries.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates the authentication middleware with the given API key
// repository and HMAC pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate wraps next, rejecting requests whose api_key header does not
// resolve to an active stored key.
func (s *Security) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("api_key")
		if key == "" {
			writeUnauthorized(w)
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeUnauthorized(w)
			return
		}

		storedBytes, err := hex.DecodeString(info.KeyHash)
		if err != nil {
			writeUnauthorized(w)
			return
		}
		if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), info.Name)))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(http.StatusUnauthorized)
	e.FieldStart("kind")
	e.Str("validation_failure")
	e.FieldStart("message")
	e.Str("invalid or missing api_key")
	e.ObjEnd()
	writeJSON(w, http.StatusUnauthorized, &e)
}
