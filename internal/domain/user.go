package domain

// GuestUserID is recorded on orders placed without an authenticated user.
const GuestUserID = "guest"

const RoleAdmin = "admin"

// CurrentUser is the authenticated session user. A nil *CurrentUser is a guest.
type CurrentUser struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Address     string `json:"address,omitempty"`
	Role        string `json:"role"`
}

// UserID returns the uid, or GuestUserID for a nil or anonymous user.
func (u *CurrentUser) UserID() string {
	if u == nil || u.UID == "" {
		return GuestUserID
	}
	return u.UID
}

func (u *CurrentUser) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
