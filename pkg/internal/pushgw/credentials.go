package pushgw

import (
	"crypto/rsa"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
)

const MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// Credentials is the service account file issued by the push provider.
type Credentials struct {
	ProjectID    string `json:"project_id"`
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"token_uri"`
}

func ReadCredentials(path string) (Credentials, error) {
	var creds Credentials
	raw, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("unable to read push credentials: %v", err)
	}
	if err := jsoniter.Unmarshal(raw, &creds); err != nil {
		return creds, fmt.Errorf("unable to parse push credentials: %v", err)
	}
	return creds, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenSource mints bearer tokens from the credentials and keeps the
// current one until shortly before it expires.
type TokenSource struct {
	creds   Credentials
	key     *rsa.PrivateKey
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenSource(creds Credentials, timeout time.Duration) (*TokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("unable to parse push private key: %v", err)
	}
	return &TokenSource{
		creds:   creds,
		key:     key,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// Assertion signs the grant that is exchanged for an access token.
func (v *TokenSource) Assertion() (string, error) {
	now := v.now()
	claims := struct {
		Scope string `json:"scope"`
		jwt.RegisteredClaims
	}{
		Scope: MessagingScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.creds.ClientEmail,
			Audience:  jwt.ClaimStrings{v.creds.TokenURI},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if len(v.creds.PrivateKeyID) > 0 {
		token.Header["kid"] = v.creds.PrivateKeyID
	}
	tks, err := token.SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %v", err)
	}
	return tks, nil
}

func (v *TokenSource) Token() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.token) > 0 && v.now().Add(time.Minute).Before(v.expiry) {
		return v.token, nil
	}

	assertion, err := v.Assertion()
	if err != nil {
		return "", err
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	args.Set("assertion", assertion)

	agent := fiber.Post(v.creds.TokenURI).Form(args).Timeout(v.timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("unable to exchange push token: %v", errs[0])
	} else if code != fiber.StatusOK {
		return "", fmt.Errorf("unable to exchange push token: status %d: %s", code, body)
	}

	var resp tokenResponse
	if err := jsoniter.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unable to parse push token: %v", err)
	}
	v.token = resp.AccessToken
	v.expiry = v.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return v.token, nil
}
