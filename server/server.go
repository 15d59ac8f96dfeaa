package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/puku-sh/puku-auth/internal/config"
	"github.com/puku-sh/puku-auth/kvstore"
	"github.com/puku-sh/puku-auth/server/callbackstate"
	"github.com/puku-sh/puku-auth/server/sessionstore"
)

type Server struct {
	env            string // Environment (e.g., "DEV", "production")
	mux            *http.ServeMux
	routes         []string
	config         config.Config
	callbackStates callbackstate.Repo
	sessions       sessionstore.Repo
	provider       *oidc.Provider
	oauthConfig    *oauth2.Config
	subscriptions  *subscriptionMirror
	logger         zerolog.Logger
}

func New(ctx context.Context, cfg config.Config, store kvstore.Store) (*Server, error) {
	provider, err := googleProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create OIDC provider: %w", err)
	}

	s := &Server{
		mux:            http.NewServeMux(),
		config:         cfg,
		callbackStates: callbackstate.New(store, cfg.GetCallbackStateTTL()),
		sessions:       sessionstore.New(store, cfg.GetSessionTTL()),
		provider:       provider,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GetGoogleClientID(),
			ClientSecret: cfg.GetGoogleClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.GetBaseURL() + RouteGoogleCallback,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		subscriptions: newSubscriptionMirror(cfg.GetSubscriptionServiceURL()),
		logger:        log.With().Str("component", "authserver").Logger(),
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// googleProvider builds the Google OIDC provider. Production discovers the
// issuer; when all three endpoint overrides are configured, discovery is
// skipped so tests can point the flow at a stub server.
func googleProvider(ctx context.Context, cfg config.GoogleConfig) (*oidc.Provider, error) {
	if cfg.GetGoogleAuthURL() != "" && cfg.GetGoogleTokenURL() != "" && cfg.GetGoogleUserInfoURL() != "" {
		providerConfig := oidc.ProviderConfig{
			IssuerURL:   cfg.GetGoogleIssuer(),
			AuthURL:     cfg.GetGoogleAuthURL(),
			TokenURL:    cfg.GetGoogleTokenURL(),
			UserInfoURL: cfg.GetGoogleUserInfoURL(),
		}
		return providerConfig.NewProvider(ctx), nil
	}
	return oidc.NewProvider(ctx, cfg.GetGoogleIssuer())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		s.logger.Info().Str("route", route).Msg("registered")
	}
}
