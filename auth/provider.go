package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// UserMetadata is the role/department blob the identity provider stores
// alongside a user and embeds in the tokens it issues.
type UserMetadata struct {
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
}

// ProviderUser is a verified principal as reported by the identity provider.
type ProviderUser struct {
	ID       string
	Email    string
	Metadata UserMetadata
}

// Provider verifies bearer credentials issued by the identity provider and
// writes corrected metadata back through its admin API.
type Provider struct {
	jwtSecret  []byte
	baseURL    string
	serviceKey string
	http       *http.Client
}

// NewProvider builds a Provider. baseURL and serviceKey may be empty, in
// which case metadata write-backs are silently skipped.
func NewProvider(jwtSecret, baseURL, serviceKey string) *Provider {
	return &Provider{
		jwtSecret:  []byte(jwtSecret),
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

// VerifyToken exchanges a bearer credential for a verified principal. The
// returned error distinguishes malformed tokens from expired/invalid ones.
func (p *Provider) VerifyToken(tokenString string) (*ProviderUser, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.jwtSecret, nil
	})
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors&jwt.ValidationErrorMalformed != 0 {
				return nil, fmt.Errorf("malformed token")
			}
			if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
				return nil, fmt.Errorf("token is expired or not yet valid")
			}
		}
		return nil, fmt.Errorf("invalid token: %v", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	email, _ := claims["email"].(string)

	user := &ProviderUser{ID: sub, Email: email}
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		user.Metadata.Role, _ = meta["role"].(string)
		user.Metadata.Department, _ = meta["department"].(string)
	}
	return user, nil
}

// UpdateUserMetadata writes the corrected role/department back into the
// provider's stored metadata for the user. Callers dispatch it detached and
// discard the result; it is never retried.
func (p *Provider) UpdateUserMetadata(ctx context.Context, userID string, meta UserMetadata) error {
	if p.baseURL == "" || p.serviceKey == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]UserMetadata{"app_metadata": meta})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	url := fmt.Sprintf("%s/admin/users/%s", p.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("metadata update failed (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
