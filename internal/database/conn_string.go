package database

import (
	"fmt"
	"net/url"

	"github.com/zcole/kalshi-core/internal/config"
)

// BuildConnString renders the archive database settings as a postgres
// URL. The password is query-escaped so generated secrets with ':' or
// '@' survive the round trip.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
