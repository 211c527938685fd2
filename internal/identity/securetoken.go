package identity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// SecureTokenURL é o endpoint público de renovação de tokens do Firebase.
const SecureTokenURL = "https://securetoken.googleapis.com/v1/token"

type secureTokenClient struct {
	http     *resty.Client
	endpoint string
	apiKey   string
}

type secureTokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

type secureTokenError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *secureTokenClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("FIREBASE_WEB_API_KEY não configurada")
	}

	var (
		out  secureTokenResponse
		fail secureTokenError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		SetResult(&out).
		SetError(&fail).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("securetoken: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrRefreshRejected, fail.Error.Message)
	case resp.IsError():
		return nil, fmt.Errorf("securetoken: status %d", resp.StatusCode())
	}

	return &TokenPair{IDToken: out.IDToken, RefreshToken: out.RefreshToken, ExpiresIn: out.ExpiresIn}, nil
}
