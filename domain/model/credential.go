package model

import "time"

// Credential stores platform OAuth credentials per (user, platform).
// A refresh produces a new value; fields are never patched in place.
type Credential struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	Platform     string     `json:"platform"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       string     `json:"scopes"`
	AccountID    *string    `json:"account_id,omitempty"` // page id | ig user id | DID | channel id
	AccountName  *string    `json:"account_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsExpired reports now >= expiresAt. Credentials without an expiry never expire.
func (c Credential) IsExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

func (c Credential) HasRefreshToken() bool { return c.RefreshToken != "" }

// Account returns the platform-side account id or "".
func (c Credential) Account() string {
	if c.AccountID == nil {
		return ""
	}
	return *c.AccountID
}

// CredentialSet maps platform id to the user's credential for it.
type CredentialSet map[string]Credential

// Lookup returns the credential for platform when it carries an access token.
func (s CredentialSet) Lookup(platform string) (Credential, bool) {
	c, ok := s[platform]
	if !ok || c.AccessToken == "" {
		return Credential{}, false
	}
	return c, true
}

// CredentialStatus is the secret-free view returned to the connections endpoint.
type CredentialStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	Expired     bool       `json:"expired"`
	Refreshable bool       `json:"refreshable"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	AccountName *string    `json:"account_name,omitempty"`
}
