package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Environment variables read by CredentialsFromEnv. EnvInstanceURL
// overrides the configured instance URL.
const (
	EnvInstanceURL   = "SF_INSTANCE_URL"
	EnvAccessToken   = "SF_ACCESS_TOKEN"
	EnvUsername      = "SF_USERNAME"
	EnvPassword      = "SF_PASSWORD"
	EnvSecurityToken = "SF_SECURITY_TOKEN"
	EnvClientID      = "SF_CLIENT_ID"
	EnvClientSecret  = "SF_CLIENT_SECRET"
)

// Credentials authenticate against Salesforce. Either AccessToken is set,
// or the username-password OAuth flow fields are.
type Credentials struct {
	AccessToken   string
	Username      string
	Password      string
	SecurityToken string
	ClientID      string
	ClientSecret  string
}

// CredentialsFromEnv reads credentials from the process environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		AccessToken:   os.Getenv(EnvAccessToken),
		Username:      os.Getenv(EnvUsername),
		Password:      os.Getenv(EnvPassword),
		SecurityToken: os.Getenv(EnvSecurityToken),
		ClientID:      os.Getenv(EnvClientID),
		ClientSecret:  os.Getenv(EnvClientSecret),
	}
}

// Settings are the connection parameters shared by every client of a run.
type Settings struct {
	InstanceURL       string
	APIVersion        string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// LoginURL returns the OAuth host for an instance: test.salesforce.com for
// sandboxes, the instance itself for My Domain hosts, login.salesforce.com
// otherwise.
func LoginURL(instanceURL string) string {
	u, err := url.Parse(instanceURL)
	if err != nil || u.Host == "" {
		return "https://login.salesforce.com"
	}
	host := u.Hostname()
	switch {
	case strings.HasPrefix(host, "test.") || strings.HasSuffix(host, ".sandbox.my.salesforce.com"):
		return "https://test.salesforce.com"
	case strings.HasSuffix(host, ".my.salesforce.com"):
		return "https://" + host
	default:
		return "https://login.salesforce.com"
	}
}

// Authenticate exchanges username-password credentials for an access token
// at loginURL. It returns the token and the instance URL the token is
// valid for, which falls back to instanceURL when the response omits it.
func Authenticate(ctx context.Context, httpClient *http.Client, loginURL, instanceURL string, c Credentials) (token, instance string, err error) {
	if c.AccessToken != "" {
		return c.AccessToken, instanceURL, nil
	}
	if c.Username == "" || c.Password == "" || c.ClientID == "" {
		return "", "", fmt.Errorf("missing Salesforce credentials: set %s, or %s, %s, %s, %s and %s",
			EnvAccessToken, EnvUsername, EnvPassword, EnvSecurityToken, EnvClientID, EnvClientSecret)
	}
	conf := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimSuffix(loginURL, "/") + "/services/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	tok, err := conf.PasswordCredentialsToken(ctx, c.Username, c.Password+c.SecurityToken)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", "", newAPIError("authenticate", re.Response.StatusCode, re.ErrorCode, re.ErrorDescription)
		}
		return "", "", fmt.Errorf("authenticate: %w", err)
	}
	instance = instanceURL
	if v, ok := tok.Extra("instance_url").(string); ok && v != "" {
		instance = v
	}
	return tok.AccessToken, instance, nil
}

// Dial authenticates and returns a ready client.
func Dial(ctx context.Context, s Settings, c Credentials, opts ...Option) (*Salesforce, error) {
	httpClient := &http.Client{Timeout: s.Timeout}
	token, instance, err := Authenticate(ctx, httpClient, LoginURL(s.InstanceURL), s.InstanceURL, c)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithHTTPClient(httpClient),
		WithRateLimit(s.RequestsPerSecond),
	}
	if s.APIVersion != "" {
		base = append(base, WithAPIVersion(s.APIVersion))
	}
	return New(instance, token, append(base, opts...)...)
}

// NewFactory returns a Factory that dials a fresh Salesforce client per
// call. Each client has its own HTTP client and rate limiter.
func NewFactory(s Settings, c Credentials, opts ...Option) Factory {
	return func(ctx context.Context) (Client, error) {
		return Dial(ctx, s, c, opts...)
	}
}
