package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("MISSING_TOKEN")
	ErrInvalidToken = errors.New("INVALID_TOKEN")
)

// Claims carried by intake bearer tokens. Subject is the applicant id.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens and maps them to a Principal.
type Verifier struct {
	secret    []byte
	issuer    string
	adminRole string
}

func NewVerifier(secret, issuer, adminRole string) *Verifier {
	if adminRole == "" {
		adminRole = "admin"
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, adminRole: adminRole}
}

// FromHeader parses an Authorization header value.
func (v *Verifier) FromHeader(header string) (Principal, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return Principal{}, ErrMissingToken
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tok == "" {
		return Principal{}, ErrMissingToken
	}
	return v.Verify(tok)
}

func (v *Verifier) Verify(tok string) (Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return Principal{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Principal{}, fmt.Errorf("%w: subject is empty", ErrInvalidToken)
	}

	return Principal{
		ApplicantID: c.Subject,
		Username:    c.Username,
		Email:       c.Email,
		IsAdmin:     c.Role == v.adminRole,
	}, nil
}

// Sign issues a token for p. Used by tests and local tooling only.
func (v *Verifier) Sign(p Principal, ttl time.Duration) (string, error) {
	role := "applicant"
	if p.IsAdmin {
		role = v.adminRole
	}
	now := time.Now()
	claims := Claims{
		Username: p.Username,
		Email:    p.Email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ApplicantID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
