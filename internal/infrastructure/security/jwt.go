package security

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential covers every verification failure: bad signature,
// expired token, missing subject. Connections presenting such a credential
// are refused before any event is accepted.
var ErrInvalidCredential = errors.New("security: invalid credential")

// Identity is the verified user record extracted from a credential.
type Identity struct {
	UserID   string
	Username string
}

// Verifier turns a bearer credential into a verified identity.
type Verifier interface {
	Verify(credential string) (Identity, error)
}

// Options controls signing parameters for HMAC tokens.
type Options struct {
	Secret []byte
	Alg    string        // HS256/HS384/HS512, default HS256
	TTL    time.Duration // default 24h
}

// OptionsFromEnv reads the signing secret from JWT_SECRET.
func OptionsFromEnv() (Options, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return Options{}, errors.New("security: JWT_SECRET environment variable is not set")
	}
	return Options{Secret: []byte(secret)}, nil
}

// HMACVerifier validates HMAC-signed tokens issued by Generate.
type HMACVerifier struct {
	opts Options
}

func NewHMACVerifier(opts Options) *HMACVerifier {
	return &HMACVerifier{opts: opts}
}

var _ Verifier = (*HMACVerifier)(nil)

// Verify parses and validates the token, accepting only the HMAC family.
func (v *HMACVerifier) Verify(credential string) (Identity, error) {
	if strings.TrimSpace(credential) == "" {
		return Identity{}, ErrInvalidCredential
	}
	parsed, err := jwtlib.Parse(credential, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return v.opts.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidCredential
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidCredential
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, ErrInvalidCredential
	}
	name, _ := claims["name"].(string)
	return Identity{UserID: sub, Username: name}, nil
}

// Generate signs a token for the given identity. Used by the auth edge and by
// tests; the relay core only ever verifies.
func Generate(opts Options, id Identity) (string, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", err
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub": id.UserID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if id.Username != "" {
		claims["name"] = id.Username
	}
	return jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("security: unsupported alg %q", alg)
	}
}
