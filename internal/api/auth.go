package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Credential endpoints. The login route lives under /ops, signup under
// /client — the split mirrors the vault service's route layout.
const (
	loginPath  = "/ops/login"
	signupPath = "/client/signup"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IsOps    bool   `json:"is_ops"`
}

// Login exchanges credentials for a bearer token. No Authorization header
// is sent — this is the one anonymous POST besides signup. Bad credentials
// surface as an *Error with KindUnauthorized.
func (c *Client) Login(ctx context.Context, identifier, secret string) (string, error) {
	c.logger.Info("logging in",
		slog.String("identifier", identifier),
	)

	bodyFunc := jsonBody(loginRequest{Username: identifier, Password: secret})

	resp, err := c.doAnonymous(ctx, http.MethodPost, loginPath, bodyFunc)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var lr loginResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&lr); decErr != nil {
		return "", &Error{
			StatusCode: resp.StatusCode,
			Kind:       KindUnknown,
			Message:    fmt.Sprintf("decoding login response: %v", decErr),
			Err:        fmt.Errorf("%w: %w", ErrUnknown, decErr),
		}
	}

	if lr.AccessToken == "" {
		return "", &Error{
			StatusCode: resp.StatusCode,
			Kind:       KindUnknown,
			Message:    "login response missing access_token",
			Err:        ErrUnknown,
		}
	}

	c.logger.Info("login succeeded",
		slog.String("identifier", identifier),
	)

	return lr.AccessToken, nil
}

// Signup registers a new account. Registration does not establish a
// session — callers log in separately. privileged requests an ops-role
// account.
func (c *Client) Signup(ctx context.Context, identifier, secret string, privileged bool) error {
	c.logger.Info("signing up",
		slog.String("identifier", identifier),
		slog.Bool("privileged", privileged),
	)

	bodyFunc := jsonBody(signupRequest{Email: identifier, Password: secret, IsOps: privileged})

	resp, err := c.doAnonymous(ctx, http.MethodPost, signupPath, bodyFunc)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain body to reuse connection.
	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return fmt.Errorf("api: draining signup response body: %w", drainErr)
	}

	c.logger.Info("signup succeeded",
		slog.String("identifier", identifier),
	)

	return nil
}

// doAnonymous mirrors do() but never attaches the bearer header, and never
// retries: credential exchanges are user-interactive, and a duplicated
// signup POST is not idempotent.
func (c *Client) doAnonymous(ctx context.Context, method, path string, bodyFunc func() (io.Reader, error)) (*http.Response, error) {
	url := c.baseURL + path

	resp, err := c.doOnce(ctx, method, url, bodyFunc, false)
	if err != nil {
		return nil, newTransportError(err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	return nil, statusErrorFromBody(resp.StatusCode, errBody)
}

// jsonBody returns a bodyFunc producing a fresh JSON reader per attempt.
func jsonBody(v any) func() (io.Reader, error) {
	return func() (io.Reader, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}

		return bytes.NewReader(data), nil
	}
}
