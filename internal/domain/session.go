package domain

import "time"

type UserSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	UserAgent string    `json:"user_agent"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired reports whether the session is past its expiry at the given instant.
func (s *UserSession) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionSummary is the client-facing view of a session, without the sealed token.
type SessionSummary struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"`
	Device    string    `json:"device,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *UserSession) Summary() SessionSummary {
	return SessionSummary{
		ID:        s.ID,
		UserAgent: s.UserAgent,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
}

// TokenPayload is the claim set carried by both access and refresh tokens.
type TokenPayload struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IssuedTokens is what a successful login hands to session creation.
type IssuedTokens struct {
	AccessToken  string
	RefreshToken string
	Role         string
	UserID       string
	UserAgent    string
}
