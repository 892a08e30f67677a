package domain

type SessionStatus string

const (
	StatusUnauthenticated SessionStatus = "unauthenticated"
	StatusVerifying       SessionStatus = "verifying"
	StatusAuthenticated   SessionStatus = "authenticated"
	StatusError           SessionStatus = "error"
)

type User struct {
	ID       int64
	FullName string
	Email    string
}

// Session is a point-in-time view of the authentication state.
// User is only ever taken from a server response.
type Session struct {
	Token  string
	User   *User
	Status SessionStatus
	Err    string
}

func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// AuthResult is what the auth collaborator returns on login and registration.
type AuthResult struct {
	Token   string
	User    User
	Message string
}
