package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	mw "github.com/leyden/paysandbox/internal/api/middleware"
	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/model"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// withSession injects dashboard session claims into the request context,
// as the session middleware would after validating a token.
func withSession(r *http.Request, accountID, email string) *http.Request {
	claims := &core.SessionClaims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: accountID},
	}
	ctx := context.WithValue(r.Context(), mw.SessionClaimsKey, claims)
	return r.WithContext(ctx)
}

// withSandboxKey injects a validated API key identity into the request
// context, as the API key middleware would.
func withSandboxKey(r *http.Request, key *model.APIKey) *http.Request {
	ctx := context.WithValue(r.Context(), mw.APIKeyIdentityKey, key)
	return r.WithContext(ctx)
}

const validID = "test-id-1"
const testAccountID = "test-account-1"

// testKEK is a fixed 32-byte master key for tests that seal webhook
// secrets.
const testKEK = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
