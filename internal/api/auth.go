package api

import (
	"crypto/subtle"
	"errors"
	"strings"

	"eventplace/internal/config"
)

const (
	permWriteConfirmations = "write:confirmations"
	permReadWorkflows      = "read:workflows"

	clientKeyUnknown = "unknown"
)

var (
	errPermissionDenied   = errors.New("permission denied")
	errMissingCredentials = errors.New("missing api key headers")
	errInvalidAPIKey      = errors.New("invalid api key")
	errInvalidExtra       = errors.New("invalid extra header")
	errRateLimited        = errors.New("rate limit exceeded")
)

// authenticator checks API-key credentials and per-caller rate limits.
// HTTP and gRPC read the headers their own way and share the decision.
type authenticator struct {
	enabled     bool
	authEnabled bool
	keyHeader   string
	extraHeader string
	clients     map[string]config.APIClientKey
	limiter     *rateLimiter
}

func newAuthenticator(cfg config.APIConfig) *authenticator {
	clients := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		clients[k.Key] = k
	}
	return &authenticator{
		enabled:     cfg.Enabled,
		authEnabled: cfg.Auth.Enabled,
		keyHeader:   headerName(cfg.Auth.HeaderAPIKey, "x-api-key"),
		extraHeader: headerName(cfg.Auth.HeaderExtra, "x-api-extra"),
		clients:     clients,
		limiter:     newRateLimiter(cfg.RateLimit),
	}
}

func headerName(configured, fallback string) string {
	if h := strings.ToLower(strings.TrimSpace(configured)); h != "" {
		return h
	}
	return fallback
}

// authorize validates the credentials for permission and then charges the
// caller's rate limit. limitKey is used when the request carries no api key.
func (a *authenticator) authorize(apiKey, extra, permission, limitKey string) error {
	if !a.enabled {
		return nil
	}
	apiKey = strings.TrimSpace(apiKey)
	if a.authEnabled {
		if err := a.verify(apiKey, strings.TrimSpace(extra), permission); err != nil {
			return err
		}
	}
	if apiKey != "" {
		limitKey = apiKey
	}
	if limitKey == "" {
		limitKey = clientKeyUnknown
	}
	if !a.limiter.allow(limitKey) {
		return errRateLimited
	}
	return nil
}

func (a *authenticator) verify(apiKey, extra, permission string) error {
	if apiKey == "" || extra == "" {
		return errMissingCredentials
	}
	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidExtra
	}
	if !hasPermission(client, permission) {
		return errPermissionDenied
	}
	return nil
}

// hasPermission treats an empty permission list as allow-all.
func hasPermission(client config.APIClientKey, required string) bool {
	if required == "" || len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case confirmMethod, retryMethod:
		return permWriteConfirmations
	case getWorkflowMethod:
		return permReadWorkflows
	default:
		return ""
	}
}
