package unifi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// csrfFromToken reads the csrfToken claim from the payload segment of a
// three-part dot-delimited token. The signature is not checked; the value is
// only echoed back to the controller.
func csrfFromToken(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("token has %d segments, want 3", len(parts))
	}

	payload := parts[1]
	if m := len(payload) % 4; m != 0 {
		payload += strings.Repeat("=", 4-m)
	}
	raw, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("decode token payload: %w", err)
		}
	}

	var claims struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return "", fmt.Errorf("parse token payload: %w", err)
	}
	if claims.CSRFToken == "" {
		return "", fmt.Errorf("token payload has no csrfToken")
	}
	return claims.CSRFToken, nil
}
