package models

// Access levels issued by the backend.
const (
	AccessMaster      = "master"
	AccessCoordinator = "coordenador"
	AccessUser        = "usuario"
)

// User is the authenticated user's profile.
type User struct {
	ID          ID     `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	FullName    string `json:"full_name"`
	AccessLevel string `json:"access_level,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// PresenceEntry is one peer known to be online.
type PresenceEntry struct {
	UserID      ID     `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"full_name"`
}

// TypingEntry is the local projection of a peer's typing signal.
type TypingEntry struct {
	UserID   ID     `json:"id"`
	Username string `json:"username"`
}
