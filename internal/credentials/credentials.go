// Package credentials resolves and masks the per-server secrets the
// executor injects into a sandbox container: "${VAR}" references against
// the host environment, OAuth2 client-credentials auth-header specs, and
// masked rendering of secret values for logs. Secrets travel only
// through the per-container environment, never through generated source.
package credentials

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/blackcoderx/mfp/internal/config"
)

// placeholderPattern matches "${VAR}" references inside an auth header
// value.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ResolveEnv resolves "${VAR}" references in value against the host
// environment. An unresolved reference is left literal in the output and
// reported via the returned unresolved slice so the caller can log it;
// resolution is never fatal.
func ResolveEnv(value string) (resolved string, unresolved []string) {
	resolved = placeholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		unresolved = append(unresolved, name)
		return match
	})
	return resolved, unresolved
}

// oauth2Prefix is the sentinel form a SwaggerSource's auth_header may take
// to request OAuth2 client-credentials resolution instead of a literal
// value: "oauth2:<token-url>:<client-id-env>:<client-secret-env>".
const oauth2Prefix = "oauth2:"

// IsOAuth2Spec reports whether an auth header value is an OAuth2
// client-credentials spec rather than a literal/placeholder value.
func IsOAuth2Spec(authHeader string) bool {
	return strings.HasPrefix(authHeader, oauth2Prefix)
}

// ResolveOAuth2 exchanges client credentials (read from the two named host
// environment variables) for a bearer token via the standard OAuth2
// client-credentials grant, returning a ready-to-use "Bearer <token>"
// header value.
func ResolveOAuth2(ctx context.Context, authHeader string) (string, error) {
	parts := strings.SplitN(strings.TrimPrefix(authHeader, oauth2Prefix), ":", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed oauth2 auth_header spec %q: want oauth2:<token-url>:<client-id-env>:<client-secret-env>", authHeader)
	}
	tokenURL, clientIDVar, clientSecretVar := parts[0], parts[1], parts[2]

	clientID, ok := os.LookupEnv(clientIDVar)
	if !ok {
		return "", fmt.Errorf("missing client id env var %q", clientIDVar)
	}
	clientSecret, ok := os.LookupEnv(clientSecretVar)
	if !ok {
		return "", fmt.Errorf("missing client secret env var %q", clientSecretVar)
	}

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	token, err := cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("exchanging client credentials: %w", err)
	}
	return "Bearer " + token.AccessToken, nil
}

// Materialize builds the per-container environment map for one server:
// MFP_<SERVER>_BASE_URL and MFP_<SERVER>_AUTH, resolving "${VAR}"
// references or an OAuth2 spec against the host environment/config.
func Materialize(ctx context.Context, cfg *config.Config, serverName, baseURL, authHeaderSpec string) (map[string]string, []string) {
	baseVar, authVar := config.ServerEnvVarNames(serverName)

	env := map[string]string{baseVar: baseURL}
	var unresolved []string

	switch {
	case authHeaderSpec == "":
		env[authVar] = ""
	case IsOAuth2Spec(authHeaderSpec):
		resolvedAuth, err := ResolveOAuth2(ctx, authHeaderSpec)
		if err != nil {
			unresolved = append(unresolved, fmt.Sprintf("oauth2(%s): %v", serverName, err))
			env[authVar] = ""
		} else {
			env[authVar] = resolvedAuth
		}
	default:
		resolvedAuth, missing := ResolveEnv(authHeaderSpec)
		env[authVar] = resolvedAuth
		unresolved = append(unresolved, missing...)
	}
	return env, unresolved
}

// Mask returns a masked version of a secret value for safe logging:
// values 12+ chars show their first/last 4 characters, values of 9-11
// chars show their first/last 2, and values of 8 chars or fewer collapse
// to a fixed placeholder.
func Mask(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	if len(value) < 12 {
		return value[:2] + "..." + value[len(value)-2:]
	}
	return value[:4] + "..." + value[len(value)-4:]
}
