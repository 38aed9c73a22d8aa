package repositories

import (
	"testing"

	"findmyspot/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestNewIdentityClaims(t *testing.T) {
	tests := []struct {
		name      string
		info      types.TokenInfo
		wantFirst string
		wantLast  string
		wantEmail bool
		wantName  bool
	}{
		{
			name:      "given and family names win",
			info:      types.TokenInfo{UserID: "s", Name: "Ada L", GivenName: "Ada", FamilyName: "Lovelace"},
			wantFirst: "Ada",
			wantLast:  "Lovelace",
			wantName:  true,
		},
		{
			name:      "split display name",
			info:      types.TokenInfo{UserID: "s", Name: "Grace Brewster Hopper", Email: "g@example.com"},
			wantFirst: "Grace",
			wantLast:  "Brewster Hopper",
			wantEmail: true,
			wantName:  true,
		},
		{
			name:      "nul bytes stripped",
			info:      types.TokenInfo{UserID: "s", Name: "Ada\x00 Lovelace "},
			wantFirst: "Ada",
			wantLast:  "Lovelace",
			wantName:  true,
		},
		{
			name: "no names",
			info: types.TokenInfo{UserID: "s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := NewIdentityClaims(&tt.info)
			assert.Equal(t, "s", claims.Subject)
			assert.Equal(t, tt.wantFirst, claims.FirstName)
			assert.Equal(t, tt.wantLast, claims.LastName)
			assert.Equal(t, tt.wantEmail, claims.Email != nil)
			assert.Equal(t, tt.wantName, claims.Name != nil)
		})
	}
}
