package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultDownloadExpiry applies when the caller asks for no particular expiry
const DefaultDownloadExpiry = time.Hour

// MaxDownloadExpiry bounds caller-supplied expiries
const MaxDownloadExpiry = 7 * 24 * time.Hour

// ErrInvalidToken is wrapped by every Verify failure
var ErrInvalidToken = errors.New("invalid download token")

// DownloadClaims identify the object a download token grants access to
type DownloadClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

// URLSigner issues and verifies time-bounded download URLs for stored objects
type URLSigner struct {
	secret        []byte
	baseURL       string
	defaultExpiry time.Duration
	now           func() time.Time
}

// NewURLSigner creates a signer. baseURL is the externally reachable prefix
// of the file download endpoint, e.g. "https://api.example.com/files".
func NewURLSigner(secret, baseURL string) (*URLSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing key is required")
	}
	return &URLSigner{
		secret:        []byte(secret),
		baseURL:       strings.TrimRight(baseURL, "/"),
		defaultExpiry: DefaultDownloadExpiry,
		now:           time.Now,
	}, nil
}

// SetDefaultExpiry changes the expiry used when Sign is given none. Values
// outside (0, MaxDownloadExpiry] are ignored.
func (s *URLSigner) SetDefaultExpiry(d time.Duration) {
	if d > 0 && d <= MaxDownloadExpiry {
		s.defaultExpiry = d
	}
}

// SignedURL is a download URL and the time it stops working
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sign issues a URL for key valid for expiry. A non-positive expiry uses the
// signer's default; longer than MaxDownloadExpiry is an error.
func (s *URLSigner) Sign(key string, expiry time.Duration) (*SignedURL, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if expiry <= 0 {
		expiry = s.defaultExpiry
	}
	if expiry > MaxDownloadExpiry {
		return nil, fmt.Errorf("expiry %s exceeds maximum %s", expiry, MaxDownloadExpiry)
	}

	now := s.now()
	expiresAt := now.Add(expiry)
	claims := &DownloadClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   TenantOf(key),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &SignedURL{
		URL:       s.baseURL + "?token=" + url.QueryEscape(tokenString),
		ExpiresAt: expiresAt.UTC().Truncate(time.Second),
	}, nil
}

// Verify checks a download token and returns the object key it grants
func (s *URLSigner) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: token string is empty", ErrInvalidToken)
	}

	claims := &DownloadClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: download link expired: %w", ErrInvalidToken, err)
		}
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Key == "" {
		return "", fmt.Errorf("%w: token is not valid", ErrInvalidToken)
	}
	return claims.Key, nil
}
