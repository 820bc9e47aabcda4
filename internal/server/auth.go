package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const viewerKey ctxKey = iota

var errForbiddenViewer = errors.New("viewer_id does not match token subject")

// authenticate requires an HS256 bearer token when a secret is configured.
// The token subject becomes the request's viewer.
func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.opts.JWTSecret == "" {
		return next
	}
	secret := []byte(s.opts.JWTSecret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if len(auth) < len("bearer ") || !strings.EqualFold(auth[:len("bearer ")], "bearer ") {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		token := strings.TrimSpace(auth[len("bearer "):])

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token has no subject")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey, sub)))
	})
}

// viewerFor picks the viewer for a request. An authenticated subject wins;
// a body viewer_id that disagrees with it is rejected.
func viewerFor(r *http.Request, requested string) (string, error) {
	sub, ok := r.Context().Value(viewerKey).(string)
	if !ok {
		return requested, nil
	}
	if requested != "" && requested != sub {
		return "", errForbiddenViewer
	}
	return sub, nil
}
