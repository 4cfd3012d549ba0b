// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package oauth implements the optional GitHub-style OAuth device flow
// backing start_github_auth/poll_github_auth: a device code is requested,
// the user is shown a verification URL and short code, and the caller polls
// the token endpoint until the user approves (or the code expires). Grounded
// on the teacher's oidc/auth0.Agent, which makes the same kind of
// context-scoped POST-and-decode calls against an OAuth token endpoint; the
// device-flow state machine itself (authorization_pending/slow_down) has no
// teacher equivalent since auth0.Agent only does the JWT-bearer grant.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors surfaced by Poll. ErrAuthorizationPending is not terminal: the
// caller should keep polling at Interval. Every other error ends the flow.
var (
	ErrAuthorizationPending = errors.New("oauth: authorization pending")
	ErrAccessDenied         = errors.New("oauth: access denied")
	ErrCodeExpired          = errors.New("oauth: device code expired")

	// errSlowDown wraps ErrAuthorizationPending so Poll can widen its interval.
	errSlowDown = fmt.Errorf("%w: slow down", ErrAuthorizationPending)
)

// Config points the flow at a provider's device-authorization and token
// endpoints. The default values match GitHub's OAuth device flow.
type Config struct {
	ClientID        string
	DeviceCodeURL   string
	TokenURL        string
	Scope           string
	HTTPTimeout     time.Duration
	PollGracePeriod time.Duration // added to the provider-advertised interval on slow_down
}

func (c Config) withDefaults() Config {
	if c.DeviceCodeURL == "" {
		c.DeviceCodeURL = "https://github.com/login/device/code"
	}
	if c.TokenURL == "" {
		c.TokenURL = "https://github.com/login/oauth/access_token"
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.PollGracePeriod == 0 {
		c.PollGracePeriod = 5 * time.Second
	}
	return c
}

// DeviceFlow runs the device-authorization grant described in RFC 8628.
type DeviceFlow struct {
	cfg  Config
	http *http.Client
}

// NewDeviceFlow constructs a DeviceFlow for cfg.
func NewDeviceFlow(cfg Config) *DeviceFlow {
	cfg = cfg.withDefaults()
	return &DeviceFlow{cfg: cfg, http: &http.Client{Timeout: cfg.HTTPTimeout}}
}

// StartResult is what start_github_auth hands back to the UI to render the
// "go to this URL and enter this code" prompt.
type StartResult struct {
	DeviceCode      string        `json:"device_code"`
	UserCode        string        `json:"user_code"`
	VerificationURI string        `json:"verification_uri"`
	ExpiresIn       time.Duration `json:"expires_in"`
	Interval        time.Duration `json:"interval"`
}

// Start requests a device code and user code from the provider.
func (f *DeviceFlow) Start(ctx context.Context) (*StartResult, error) {
	form := url.Values{
		"client_id": {f.cfg.ClientID},
		"scope":     {f.cfg.Scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.DeviceCodeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oauth: new device code request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth: device code request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oauth: device code endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		ExpiresIn       int    `json:"expires_in"`
		Interval        int    `json:"interval"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("oauth: decode device code response: %w", err)
	}
	if body.Interval == 0 {
		body.Interval = 5
	}

	return &StartResult{
		DeviceCode:      body.DeviceCode,
		UserCode:        body.UserCode,
		VerificationURI: body.VerificationURI,
		ExpiresIn:       time.Duration(body.ExpiresIn) * time.Second,
		Interval:        time.Duration(body.Interval) * time.Second,
	}, nil
}

// pollOnce makes one token-endpoint request for deviceCode, classifying the
// provider's error codes into the sentinels above.
func (f *DeviceFlow) pollOnce(ctx context.Context, deviceCode string) (string, error) {
	form := url.Values{
		"client_id":   {f.cfg.ClientID},
		"device_code": {deviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("oauth: new token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth: token request: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("oauth: decode token response: %w", err)
	}

	switch body.Error {
	case "":
		if body.AccessToken == "" {
			return "", errors.New("oauth: token response missing access_token")
		}
		return body.AccessToken, nil
	case "authorization_pending":
		return "", ErrAuthorizationPending
	case "slow_down":
		return "", errSlowDown
	case "expired_token":
		return "", ErrCodeExpired
	case "access_denied":
		return "", ErrAccessDenied
	default:
		return "", fmt.Errorf("oauth: token endpoint error: %s", body.Error)
	}
}

// Poll repeats pollOnce at start.Interval until a token is returned, the
// code expires, access is denied, or ctx is canceled (the UI's internal stop
// signal when the modal closes). A slow_down response widens the interval by
// PollGracePeriod for the remainder of the poll, matching the provider's
// request to back off.
func (f *DeviceFlow) Poll(ctx context.Context, start *StartResult) (string, error) {
	interval := start.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(start.ExpiresIn)

	for {
		if start.ExpiresIn > 0 && time.Now().After(deadline) {
			return "", ErrCodeExpired
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}

		token, err := f.pollOnce(ctx, start.DeviceCode)
		switch {
		case err == nil:
			return token, nil
		case errors.Is(err, errSlowDown):
			interval += f.cfg.PollGracePeriod
			continue
		case errors.Is(err, ErrAuthorizationPending):
			continue
		default:
			return "", err
		}
	}
}

// ParseClaims extracts the claims from token without verifying its
// signature: save_api_token persists whatever bearer token the provider
// issued, and the dispatcher only needs to read informational claims (e.g.
// expiry) from it, not re-authenticate the provider.
func ParseClaims(token string) (jwt.MapClaims, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("oauth: parse token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("oauth: unexpected claims type")
	}
	return claims, nil
}
