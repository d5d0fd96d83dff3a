package auth

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims is the payload the account service signs: the user id and username.
type CustomClaims struct {
	UserID   string `json:"_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 tokens issued by the account service.
// An empty issuer accepts any issuer.
type JWTVerifier struct {
	secret []byte
	issuer string
}

var _ contract.IIdentityVerifier = (*JWTVerifier)(nil)

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify returns the user of a valid token, ErrInvalidCredential otherwise.
func (v *JWTVerifier) Verify(token string) (domain.UserID, error) {
	claims, err := v.ValidateToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidCredential, err)
	}
	return domain.UserID(claims.UserID), nil
}

// ValidateToken parses and validates the signature, expiration and issuer of a JWT string.
func (v *JWTVerifier) ValidateToken(tokenString string) (*CustomClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty token")
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, options...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user id")
	}
	return claims, nil
}

// GenerateToken signs a token the way the account service does. Used by the probe and tests.
func GenerateToken(secret, issuer string, userID domain.UserID, username string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:   userID.String(),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
