package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://test.salesforce.com", "https://test.salesforce.com"},
		{"https://acme--dev.sandbox.my.salesforce.com", "https://test.salesforce.com"},
		{"https://acme.my.salesforce.com", "https://acme.my.salesforce.com"},
		{"https://na1.salesforce.com", "https://login.salesforce.com"},
		{"not a url", "https://login.salesforce.com"},
	}
	for _, tt := range tests {
		if got := LoginURL(tt.in); got != tt.want {
			t.Errorf("LoginURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAuthenticate_PasswordGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/oauth2/token" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "password" || r.Form.Get("client_id") != "cid" ||
			r.Form.Get("username") != "se@example.com" || r.Form.Get("password") != "secretSECTOK" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant", "error_description": "authentication failure"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "00Dxx!token",
			"instance_url": "https://acme.my.salesforce.com",
			"token_type":   "Bearer",
		})
	}))
	defer server.Close()

	creds := Credentials{Username: "se@example.com", Password: "secret", SecurityToken: "SECTOK", ClientID: "cid", ClientSecret: "cs"}
	token, instance, err := Authenticate(context.Background(), server.Client(), server.URL, "https://fallback.example.com", creds)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if token != "00Dxx!token" || instance != "https://acme.my.salesforce.com" {
		t.Errorf("got token %q instance %q", token, instance)
	}

	creds.Password = "wrong"
	_, _, err = Authenticate(context.Background(), server.Client(), server.URL, "", creds)
	if !HasStatusCode(err, http.StatusBadRequest) || !HasErrorCode(err, "invalid_grant") {
		t.Errorf("want invalid_grant API error, got %v", err)
	}
}

func TestAuthenticate_AccessTokenShortCircuits(t *testing.T) {
	token, instance, err := Authenticate(context.Background(), nil, "https://unused.invalid", "https://acme.my.salesforce.com", Credentials{AccessToken: "tok"})
	if err != nil || token != "tok" || instance != "https://acme.my.salesforce.com" {
		t.Errorf("got %q %q %v", token, instance, err)
	}
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	if _, _, err := Authenticate(context.Background(), nil, "https://login.salesforce.com", "", Credentials{Username: "u"}); err == nil {
		t.Error("expected missing-credentials error")
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv(EnvAccessToken, "tok")
	t.Setenv(EnvUsername, "user")
	c := CredentialsFromEnv()
	if c.AccessToken != "tok" || c.Username != "user" {
		t.Errorf("got %+v", c)
	}
}
