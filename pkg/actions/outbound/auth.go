package outbound

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"

	"github.com/gearboxhq/gearbox/pkg/models"
)

const jwtTokenLifetime = 5 * time.Minute

// BuildAuthHeaders materializes the header set for the configured auth mode.
func BuildAuthHeaders(auth models.AuthConfig) (map[string]string, error) {
	switch auth.Mode {
	case models.AuthModeNone, "":
		return map[string]string{}, nil

	case models.AuthModeBearer:
		if auth.Token == "" {
			return nil, fmt.Errorf("bearer auth mode requires a token")
		}

		return map[string]string{"Authorization": "Bearer " + auth.Token}, nil

	case models.AuthModeAPIKey:
		if auth.APIKey == "" || auth.APISecret == "" {
			return nil, fmt.Errorf("api_key auth mode requires key and secret")
		}

		return map[string]string{
			"x-api-key":    auth.APIKey,
			"x-api-secret": auth.APISecret,
		}, nil

	case models.AuthModeJWT:
		if auth.JWTSecret == "" {
			return nil, fmt.Errorf("jwt auth mode requires a signing secret")
		}

		token, err := mintJWT(auth)
		if err != nil {
			return nil, err
		}

		return map[string]string{"Authorization": "Bearer " + token}, nil

	default:
		return nil, fmt.Errorf("unknown auth mode %q", auth.Mode)
	}
}

// mintJWT signs a short-lived HS256 token per request.
func mintJWT(auth models.AuthConfig) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Issuer:    auth.JWTIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtTokenLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt: %w", err)
	}

	return signed, nil
}
