package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
	httperrors "3tcapital/ms_ecommerce_audit/internal/infrastructure/http"
)

const (
	jwksRefreshInterval = 6 * time.Hour
	jwksHTTPTimeout     = 10 * time.Second
)

var (
	errNoCredentials  = errors.New("missing Authorization header")
	errBadCredentials = errors.New("credentials are not a bearer token")
)

type claimsKey struct{}

// ClaimsFromContext returns the claims of the token accepted for this request.
func ClaimsFromContext(ctx context.Context) (*jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwt.RegisteredClaims)
	return claims, ok
}

// JWTAuthenticator guards the log viewer API with bearer tokens signed by a
// key from a remote JWKS. When disabled its middleware is a pass-through.
type JWTAuthenticator struct {
	cfg     config.AuthSettings
	log     *slog.Logger
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
	open    map[string]bool
	stop    context.CancelFunc
}

func NewJWTAuthenticator(cfg config.AuthSettings, log *slog.Logger) (*JWTAuthenticator, error) {
	a := newAuthenticator(cfg, log)
	if !cfg.Enabled {
		return a, nil
	}

	ctx, stop := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{cfg.JWKSetURI}, keyfunc.Override{
		RefreshInterval: jwksRefreshInterval,
		HTTPTimeout:     jwksHTTPTimeout,
		RefreshErrorHandlerFunc: func(url string) func(context.Context, error) {
			return func(_ context.Context, err error) {
				log.Error("JWKS refresh failed", "url", url, "error", err)
			}
		},
	})
	if err != nil {
		stop()
		return nil, fmt.Errorf("load JWKS from %s: %w", cfg.JWKSetURI, err)
	}

	a.keyFunc = jwks.Keyfunc
	a.stop = stop
	return a, nil
}

func newAuthenticator(cfg config.AuthSettings, log *slog.Logger) *JWTAuthenticator {
	open := make(map[string]bool, len(cfg.BypassPaths))
	for _, p := range cfg.BypassPaths {
		if p != "" {
			open[p] = true
		}
	}

	return &JWTAuthenticator{
		cfg:  cfg,
		log:  log,
		open: open,
		parser: jwt.NewParser(
			jwt.WithIssuer(cfg.IssuerURI),
			jwt.WithLeeway(cfg.ClockSkew),
			jwt.WithExpirationRequired(),
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "PS256", "ES256"}),
		),
	}
}

// Middleware rejects requests without a valid bearer token. Accepted claims
// are available to handlers through ClaimsFromContext.
func (a *JWTAuthenticator) Middleware(next http.Handler) http.Handler {
	if !a.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.open[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			a.reject(w, r, err, "missing or malformed credentials")
			return
		}

		claims, err := a.verify(raw)
		if err != nil {
			a.reject(w, r, err, "invalid or expired token")
			return
		}

		a.log.Debug("token accepted", "subject", claims.Subject, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (a *JWTAuthenticator) verify(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := a.parser.ParseWithClaims(raw, claims, a.keyFunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

func (a *JWTAuthenticator) reject(w http.ResponseWriter, r *http.Request, cause error, reason string) {
	a.log.Warn("request rejected", "reason", reason, "error", cause, "path", r.URL.Path)
	w.Header().Set("WWW-Authenticate", `Bearer realm="logs"`)
	httperrors.WriteError(w, http.StatusUnauthorized, "Authentication failed", []string{reason}, a.log)
}

// Close stops the background JWKS refresh.
func (a *JWTAuthenticator) Close() {
	if a.stop != nil {
		a.stop()
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.ContainsAny(token, " \t") {
		return "", errBadCredentials
	}
	return token, nil
}
