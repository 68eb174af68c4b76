package wall

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type contextKey string

const viewerKey contextKey = "viewer"

// ViewerFromContext returns the signed in user of a request, or nil.
func ViewerFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(viewerKey).(*User)
	return u
}

func WithViewer(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, viewerKey, u)
}

// AuthMiddleware resolves the bearer token of a request to a user and stores it in the
// request context. Requests without a valid token continue without a viewer.
func AuthMiddleware(next http.Handler, svc Service, signingKey []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := subjectFromToken(token, signingKey)
		if err != nil {
			log.Printf("[auth] rejected token: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		u, err := svc.FindViewer(ID(id))
		if err != nil {
			log.Printf("[auth] unknown viewer %s: %v", id, err)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), u)))
	})
}

// RequireAuth rejects requests that AuthMiddleware could not attach a viewer to.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerFromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			encodeError(ErrUnauthorized, w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

var errNoSigningKey = errors.New("no signing key configured")

// subjectFromToken verifies an HMAC signed token. With an empty key every token is
// rejected, since anyone could sign one.
func subjectFromToken(tokenString string, signingKey []byte) (string, error) {
	if len(signingKey) == 0 {
		return "", errNoSigningKey
	}
	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return signingKey, nil
	})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
