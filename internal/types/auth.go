package types

// TokenInfo represents validated ID token information
type TokenInfo struct {
	UserID        string
	Email         string
	Name          string
	GivenName     string
	FamilyName    string
	EmailVerified bool
	Roles         []string
	Valid         bool
}

type SessionRequest struct {
	IDToken string `json:"idToken"`
}
