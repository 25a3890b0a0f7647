package utils

import (
	"fmt"
	"time"

	"masterhelp-backend/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

// JWTService issues and validates the HS256 tokens used by the API
type JWTService struct {
	secretKey []byte
}

// NewJWTService creates a JWT service from the configured secret
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
	}
}

// GenerateTokenPair generates an access token (15 min) and refresh token (7 days)
func (j *JWTService) GenerateTokenPair(userID, username string) (accessToken, refreshToken string, expiresIn int64, err error) {
	now := time.Now()

	accessExpiry := now.Add(15 * time.Minute)
	accessClaims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Type:     "access",
		Exp:      accessExpiry.Unix(),
		Iat:      now.Unix(),
	}

	accessTokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessToken, err = accessTokenObj.SignedString(j.secretKey)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshExpiry := now.Add(7 * 24 * time.Hour)
	refreshClaims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Type:     "refresh",
		Exp:      refreshExpiry.Unix(),
		Iat:      now.Unix(),
	}

	refreshTokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshToken, err = refreshTokenObj.SignedString(j.secretKey)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, accessExpiry.Unix(), nil
}

// GenerateResetToken generates a short-lived token for password reset links (1 hour)
func (j *JWTService) GenerateResetToken(userID, username string) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Type:     "reset",
		Exp:      now.Add(1 * time.Hour).Unix(),
		Iat:      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses a token and checks signature and expiry
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}

	return claims, nil
}

// ValidateRefreshToken validates a token and requires the "refresh" type
func (j *JWTService) ValidateRefreshToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != "refresh" {
		return nil, fmt.Errorf("not a refresh token")
	}
	return claims, nil
}

// ValidateResetToken validates a token and requires the "reset" type
func (j *JWTService) ValidateResetToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != "reset" {
		return nil, fmt.Errorf("not a reset token")
	}
	return claims, nil
}
