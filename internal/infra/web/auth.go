package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Session/JWT primitives =====

type AuthConfig struct {
	HMACSecret   []byte
	CookieName   string
	CookieDomain string
	SecureCookie bool
	TTL          time.Duration
}

type AuthManager struct{ cfg AuthConfig }

func NewAuthManager(secret string, secure bool, domain string, ttl time.Duration) *AuthManager {
	return &AuthManager{cfg: AuthConfig{
		HMACSecret:   []byte(secret),
		CookieName:   "operator_session",
		CookieDomain: domain, // "" is fine for a host-only cookie
		SecureCookie: secure, // true in prod (TLS)
		TTL:          ttl,
	}}
}

type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Operator is the human-readable identity behind the session, used in audit
// logs for fleet mutations.
func (c *OperatorClaims) Operator() string {
	if c.Subject == "" {
		return "operator"
	}
	return c.Subject
}

// Mint issues a session for the named operator. The shared API key
// authenticates the login; the name only identifies who acted.
func (a *AuthManager) Mint(w http.ResponseWriter, operator string) (string, error) {
	if operator == "" {
		operator = "operator"
	}
	now := time.Now()
	claims := OperatorClaims{
		Role: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
			Subject:   operator,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", err
	}

	c := &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, c)
	return signed, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	c := &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, c)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*OperatorClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	// Cookie
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		return a.parse(c.Value)
	}
	return nil, errors.New("missing token")
}

type claimsCtxKey struct{}

func withClaims(ctx context.Context, c *OperatorClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, c)
}

// claimsFrom returns the session claims stored by operatorMiddleware, or nil
// outside the gated group.
func claimsFrom(ctx context.Context) *OperatorClaims {
	c, _ := ctx.Value(claimsCtxKey{}).(*OperatorClaims)
	return c
}

func (a *AuthManager) parse(tok string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
