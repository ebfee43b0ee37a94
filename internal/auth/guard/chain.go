package guard

import "net/http"

// ChainAuthenticator tries each authenticator in order and returns the first
// success. It fails only when every authenticator rejects the request.
type ChainAuthenticator struct {
	auths []Authenticator
}

func NewChain(auths ...Authenticator) *ChainAuthenticator {
	return &ChainAuthenticator{auths: auths}
}

func (c *ChainAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	for _, a := range c.auths {
		principal, err := a.Authenticate(r)
		if err == nil {
			return principal, nil
		}
	}
	return nil, ErrUnauthenticated
}
