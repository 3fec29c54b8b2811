package entity

// Session is the authenticated state of one browser. Token and User are
// either both set or both empty.
type Session struct {
	Token string
	User  *User
}

func NewSession(token string, user User) Session {
	if token == "" {
		return Session{}
	}
	return Session{Token: token, User: &user}
}

func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}
