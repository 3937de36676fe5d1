package app

import (
	"net/http"
	"testing"
)

func TestSignUpAndSignIn(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})

	payload := env.do(http.MethodPost, "/api/auth/signup", map[string]any{
		"email":       "Fay@Example.com",
		"password":    "a-long-password",
		"displayName": "Fay",
	}, http.StatusCreated)
	if payload["accessToken"] == "" || payload["userName"] != "Fay" {
		t.Fatalf("unexpected signup payload: %v", payload)
	}

	// Email lookup is case insensitive.
	payload = env.do(http.MethodPost, "/api/auth/signin", map[string]any{
		"email":    "fay@example.com",
		"password": "a-long-password",
	}, http.StatusOK)
	token, _ := payload["accessToken"].(string)
	if token == "" {
		t.Fatalf("signin returned no token: %v", payload)
	}

	env.token = token
	payload = env.do(http.MethodGet, "/api/session", nil, http.StatusOK)
	if payload["authenticated"] != true || payload["userName"] != "Fay" {
		t.Fatalf("session introspection failed: %v", payload)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	env.signUp("gil@example.com", "Gil")

	payload := env.do(http.MethodPost, "/api/auth/signup", map[string]any{
		"email":       "gil@example.com",
		"password":    "another-password",
		"displayName": "Gil Again",
	}, http.StatusConflict)
	if payload["code"] != "EMAIL_EXISTS" {
		t.Fatalf("expected EMAIL_EXISTS, got %v", payload["code"])
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	env.signUp("hal@example.com", "Hal")

	payload := env.do(http.MethodPost, "/api/auth/signin", map[string]any{
		"email":    "hal@example.com",
		"password": "wrong-password",
	}, http.StatusUnauthorized)
	if payload["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", payload["code"])
	}

	env.do(http.MethodPost, "/api/auth/signin", map[string]any{
		"email":    "nobody@example.com",
		"password": "wrong-password",
	}, http.StatusUnauthorized)
}

func TestSignUpValidation(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})

	env.do(http.MethodPost, "/api/auth/signup", map[string]any{
		"email": "not-an-email", "password": "a-long-password", "displayName": "X",
	}, http.StatusUnprocessableEntity)

	env.do(http.MethodPost, "/api/auth/signup", map[string]any{
		"email": "ivy@example.com", "password": "short", "displayName": "Ivy",
	}, http.StatusUnprocessableEntity)

	env.do(http.MethodPost, "/api/auth/signup", map[string]any{
		"email": "ivy@example.com", "password": "a-long-password", "displayName": "",
	}, http.StatusUnprocessableEntity)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})

	payload := env.do(http.MethodGet, "/api/content", nil, http.StatusUnauthorized)
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", payload["code"])
	}

	env.token = "garbage.token"
	env.do(http.MethodPost, "/api/pipeline", map[string]any{"contentType": "post"}, http.StatusUnauthorized)

	// Anonymous introspection is a soft failure, not a 401.
	env.token = ""
	payload = env.do(http.MethodGet, "/api/session", nil, http.StatusOK)
	if payload["authenticated"] != false {
		t.Fatalf("anonymous session should read unauthenticated: %v", payload)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})

	payload := env.do(http.MethodGet, "/api/health", nil, http.StatusOK)
	if payload["ok"] != true {
		t.Fatalf("health payload: %v", payload)
	}

	payload = env.do(http.MethodGet, "/api/ready", nil, http.StatusOK)
	if payload["status"] != "ready" {
		t.Fatalf("ready payload: %v", payload)
	}
}
