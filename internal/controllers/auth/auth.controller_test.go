package authController

import (
	"context"
	"errors"
	"testing"

	"findmyspot/internal/repositories/repotest"
	"findmyspot/internal/services"
	"findmyspot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	configured bool
	tokens     map[string]*types.TokenInfo
}

func (v *stubVerifier) IsConfigured() bool { return v.configured }

func (v *stubVerifier) GetConfig() services.IdentityConfig {
	return services.IdentityConfig{Issuer: "https://id.example.com", ClientID: "findmyspot"}
}

func (v *stubVerifier) ValidateIDToken(_ context.Context, idToken string) (*types.TokenInfo, error) {
	info, ok := v.tokens[idToken]
	if !ok {
		return &types.TokenInfo{Valid: false}, services.ErrUnauthorized
	}
	return info, nil
}

func newTestController(store *repotest.Store) AuthControllerInterface {
	verifier := &stubVerifier{
		configured: true,
		tokens: map[string]*types.TokenInfo{
			"good-token": {
				UserID:        "subject-1",
				Email:         "ada@example.com",
				Name:          "Ada Lovelace",
				EmailVerified: true,
				Valid:         true,
			},
		},
	}
	return New(verifier, store.Repository().User, store)
}

func TestAuthController_CreateSession(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty token", token: "  ", wantErr: services.ErrUnauthorized},
		{name: "invalid token", token: "forged", wantErr: services.ErrUnauthorized},
		{name: "valid token", token: "good-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repotest.NewStore()
			controller := newTestController(store)

			resp, err := controller.CreateSession(context.Background(), tt.token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Ada", resp.User.FirstName)
			assert.Equal(t, "Lovelace", resp.User.LastName)
			assert.Equal(t, "Ada Lovelace", resp.User.DisplayName)
			require.NotNil(t, resp.User.Email)
			assert.Equal(t, "ada@example.com", *resp.User.Email)
			assert.True(t, resp.User.ProfileVerified)
			assert.NotNil(t, resp.User.LastLoginAt)
		})
	}
}

func TestAuthController_CreateSession_ReusesUser(t *testing.T) {
	store := repotest.NewStore()
	controller := newTestController(store)

	first, err := controller.CreateSession(context.Background(), "good-token")
	require.NoError(t, err)

	second, err := controller.CreateSession(context.Background(), "good-token")
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestAuthController_CreateSession_StorageFailure(t *testing.T) {
	store := repotest.NewStore()
	store.FailOn("user.Update", errors.New("connection reset"))
	controller := newTestController(store)

	_, err := controller.CreateSession(context.Background(), "good-token")
	assert.ErrorIs(t, err, services.ErrTransport)
}

func TestAuthController_GetAuthConfig(t *testing.T) {
	configured := New(&stubVerifier{configured: true}, nil, nil).GetAuthConfig()
	assert.True(t, configured.Configured)
	assert.Equal(t, "findmyspot", configured.ClientID)

	unconfigured := New(&stubVerifier{}, nil, nil).GetAuthConfig()
	assert.False(t, unconfigured.Configured)
	assert.Empty(t, unconfigured.Issuer)
}
