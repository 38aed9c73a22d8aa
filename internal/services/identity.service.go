package services

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"findmyspot/config"
	"findmyspot/internal/types"
	"findmyspot/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// OIDCDiscovery represents the parts of the OIDC discovery document in use
type OIDCDiscovery struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKS_URI              string `json:"jwks_uri"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet represents a set of JSON Web Keys
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
	EmailVerified bool     `json:"email_verified"`
	Roles         []string `json:"roles"`
}

// IdentityService verifies ID tokens issued by the external identity provider.
// Discovery and signing keys are cached for cacheTTL. A token signed with an
// unknown kid refetches the keys at most once per jwksRefreshInterval.
type IdentityService struct {
	log        logger.Logger
	httpClient *http.Client
	issuer     string
	clientID   string
	jwksURL    string

	discovery     *OIDCDiscovery
	jwks          *JWKSet
	discoveryMux  sync.RWMutex
	jwksMux       sync.RWMutex
	discoveryTime time.Time
	jwksTime      time.Time
	cacheTTL      time.Duration

	jwksRefreshInterval time.Duration
}

type IdentityConfig struct {
	Issuer   string `json:"issuer"`
	ClientID string `json:"clientId"`
}

func NewIdentityService(cfg config.Config) *IdentityService {
	log := logger.New("IdentityService")

	service := &IdentityService{
		log:        log,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		issuer:     strings.TrimSuffix(cfg.IdentityIssuer, "/"),
		clientID:   cfg.IdentityClientID,
		jwksURL:    cfg.IdentityJWKSURL,
		cacheTTL:   15 * time.Minute,

		jwksRefreshInterval: time.Minute,
	}

	if !service.IsConfigured() {
		log.Warn("Identity provider not configured, authenticated routes will reject all requests")
	} else {
		log.Info("Identity service initialized", "issuer", service.issuer)
	}

	return service
}

func (s *IdentityService) IsConfigured() bool {
	return s.issuer != "" && s.clientID != ""
}

func (s *IdentityService) GetConfig() IdentityConfig {
	return IdentityConfig{Issuer: s.issuer, ClientID: s.clientID}
}

// ValidateIDToken verifies the token signature against the provider's JWKS
// and checks issuer, audience and expiry.
func (s *IdentityService) ValidateIDToken(
	ctx context.Context,
	idToken string,
) (*types.TokenInfo, error) {
	log := s.log.TraceFromContext(ctx).Function("ValidateIDToken")

	if !s.IsConfigured() {
		return nil, log.ErrorWithType(ErrUnauthorized, "identity provider not configured")
	}

	var claims idTokenClaims
	token, err := jwt.ParseWithClaims(
		idToken,
		&claims,
		func(token *jwt.Token) (any, error) {
			kid, ok := token.Header["kid"].(string)
			if !ok {
				return nil, log.ErrMsg("missing or invalid 'kid' in JWT header")
			}
			return s.getPublicKeyForToken(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil || !token.Valid {
		log.Warn("ID token rejected", "error", err)
		return &types.TokenInfo{Valid: false}, ErrUnauthorized
	}

	if claims.Subject == "" {
		return &types.TokenInfo{Valid: false}, log.ErrorWithType(ErrUnauthorized, "ID token has no subject")
	}

	name := claims.Name
	if name == "" && (claims.GivenName != "" || claims.FamilyName != "") {
		name = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}

	log.Debug("ID token validated", "sub", claims.Subject)

	return &types.TokenInfo{
		UserID:        claims.Subject,
		Email:         claims.Email,
		Name:          name,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		EmailVerified: claims.EmailVerified,
		Roles:         claims.Roles,
		Valid:         true,
	}, nil
}

func (s *IdentityService) getOIDCDiscovery(ctx context.Context) (*OIDCDiscovery, error) {
	log := s.log.TraceFromContext(ctx).Function("getOIDCDiscovery")

	s.discoveryMux.RLock()
	if s.discovery != nil && time.Since(s.discoveryTime) < s.cacheTTL {
		discovery := s.discovery
		s.discoveryMux.RUnlock()
		return discovery, nil
	}
	s.discoveryMux.RUnlock()

	var discovery OIDCDiscovery
	if err := s.getJSON(ctx, s.issuer+"/.well-known/openid-configuration", &discovery); err != nil {
		return nil, log.Err("failed to fetch OIDC discovery", err)
	}

	if discovery.Issuer != s.issuer {
		return nil, log.Error("invalid issuer in discovery document",
			"expected", s.issuer, "got", discovery.Issuer)
	}

	if discovery.JWKS_URI == "" {
		return nil, log.ErrMsg("missing JWKS URI in discovery document")
	}

	s.discoveryMux.Lock()
	s.discovery = &discovery
	s.discoveryTime = time.Now()
	s.discoveryMux.Unlock()

	return &discovery, nil
}

func (s *IdentityService) getJWKS(ctx context.Context, refresh bool) (*JWKSet, error) {
	log := s.log.TraceFromContext(ctx).Function("getJWKS")

	s.jwksMux.RLock()
	if s.jwks != nil {
		age := time.Since(s.jwksTime)
		if age < s.cacheTTL && (!refresh || age < s.jwksRefreshInterval) {
			jwks := s.jwks
			s.jwksMux.RUnlock()
			return jwks, nil
		}
	}
	s.jwksMux.RUnlock()

	jwksURL := s.jwksURL
	if jwksURL == "" {
		discovery, err := s.getOIDCDiscovery(ctx)
		if err != nil {
			return nil, err
		}
		jwksURL = discovery.JWKS_URI
	}

	var jwks JWKSet
	if err := s.getJSON(ctx, jwksURL, &jwks); err != nil {
		return nil, log.Err("failed to fetch JWKS", err)
	}

	if len(jwks.Keys) == 0 {
		return nil, log.ErrMsg("JWKS contains no keys")
	}

	s.jwksMux.Lock()
	s.jwks = &jwks
	s.jwksTime = time.Now()
	s.jwksMux.Unlock()

	log.Info("JWKS fetched successfully", "keys_count", len(jwks.Keys))
	return &jwks, nil
}

// getPublicKeyForToken finds the signing key for kid, refreshing the key set
// when the provider may have rotated keys since the last fetch.
func (s *IdentityService) getPublicKeyForToken(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	log := s.log.TraceFromContext(ctx).Function("getPublicKeyForToken")

	jwks, err := s.getJWKS(ctx, false)
	if err != nil {
		return nil, err
	}

	target := findJWK(jwks, kid)
	if target == nil {
		if jwks, err = s.getJWKS(ctx, true); err != nil {
			return nil, err
		}
		target = findJWK(jwks, kid)
	}

	if target == nil {
		return nil, log.Error("no matching key found in JWKS", "kid", kid)
	}

	if target.Kty != "RSA" {
		return nil, log.Error("unsupported key type", "kty", target.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(target.N)
	if err != nil {
		return nil, log.Err("failed to decode RSA modulus (n)", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(target.E)
	if err != nil {
		return nil, log.Err("failed to decode RSA exponent (e)", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() > int64(^uint(0)>>1) {
		return nil, log.Error("RSA exponent too large", "e", e.String())
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}

func findJWK(jwks *JWKSet, kid string) *JWK {
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == kid {
			return &jwks.Keys[i]
		}
	}
	return nil
}

func (s *IdentityService) getJSON(ctx context.Context, url string, target any) error {
	log := s.log.Function("getJSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Info("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return log.Error("identity provider request failed", "url", url, "statusCode", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}
