// Package auth holds exchange credentials and the logged-in session
// state used to authorize API and websocket requests.
package auth

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func getenv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

// Environment variables holding exchange credentials.
const (
	EnvAPIURL     = "API_URL"
	EnvAPIVersion = "API_VERSION"
	EnvUsername   = "API_USERNAME"
	EnvPassword   = "API_PASSWORD"
	EnvTradingEnv = "TRADING_ENV"
)

// TradingEnv distinguishes the demo exchange from real money.
type TradingEnv string

const (
	EnvDemo TradingEnv = "demo"
	EnvProd TradingEnv = "prod"
)

// prodBaseURL is matched against API_URL as a second prod signal in
// case TRADING_ENV is mis-set.
const prodBaseURL = "trading-api.kalshi.com"

// Credentials is everything needed to sign in to the exchange.
type Credentials struct {
	Username   string
	Password   string
	BaseURL    string
	APIVersion string
	Env        TradingEnv
}

// FromEnv reads credentials from the environment. Any .env files given
// are loaded first; without arguments a ./.env file is loaded if
// present.
func FromEnv(files ...string) (*Credentials, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	c := &Credentials{
		Username:   getenv(EnvUsername),
		Password:   getenv(EnvPassword),
		BaseURL:    getenv(EnvAPIURL),
		APIVersion: getenv(EnvAPIVersion),
		Env:        TradingEnv(getenv(EnvTradingEnv)),
	}

	var missing []string
	if c.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if c.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if c.BaseURL == "" {
		missing = append(missing, EnvAPIURL)
	}
	if c.APIVersion == "" {
		missing = append(missing, EnvAPIVersion)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing env vars: %s", strings.Join(missing, ", "))
	}
	if c.Env == "" {
		c.Env = EnvDemo
	}
	return c, nil
}

// IsProd reports whether the credentials point at the real exchange.
func (c *Credentials) IsProd() bool {
	return c.Env == EnvProd || strings.Contains(c.BaseURL, prodBaseURL)
}

// GuardProd rejects mis-matched credentials before any request is
// sent: test runs must not hit prod, and prod runs must not silently
// hit demo.
func (c *Credentials) GuardProd(isTestRun bool) error {
	if isTestRun && c.IsProd() {
		return fmt.Errorf("credentials point at the production exchange but this is a test run")
	}
	if !isTestRun && !c.IsProd() {
		return fmt.Errorf("production run requested but credentials point at %s (%s)", c.BaseURL, c.Env)
	}
	return nil
}

// TokenLifetime is how long a login token stays usable before a fresh
// sign-in is required.
const TokenLifetime = time.Hour

// Session is the state returned by a successful login.
type Session struct {
	MemberID   string
	Token      string
	SignedInAt time.Time
}

// NewSession validates a login response. The exchange returns the
// token prefixed with the member id as "member_id:token".
func NewSession(memberID, memberIDAndToken string, now time.Time) (Session, error) {
	if memberID == "" {
		return Session{}, fmt.Errorf("login response has empty member id")
	}
	prefix := memberID + ":"
	if !strings.HasPrefix(memberIDAndToken, prefix) {
		return Session{}, fmt.Errorf("login token does not start with member id %q", memberID)
	}
	token := memberIDAndToken[len(prefix):]
	if token == "" {
		return Session{}, fmt.Errorf("login response has empty token")
	}
	return Session{MemberID: memberID, Token: token, SignedInAt: now}, nil
}

// IsFresh reports whether the session can still authorize requests.
func (s Session) IsFresh(now time.Time) bool {
	if s.MemberID == "" || s.Token == "" {
		return false
	}
	return now.Sub(s.SignedInAt) < TokenLifetime
}

// AuthorizationHeader formats the session for the Authorization
// header.
func (s Session) AuthorizationHeader() string {
	return s.MemberID + " " + s.Token
}
