package mock

import (
	"context"
	"sync"
)

// Authenticator hands out "Bearer <Token>" and counts refreshes. Each
// Refresh appends "-refreshed" to the token unless RefreshErr is set.
type Authenticator struct {
	mu         sync.Mutex
	Token      string
	RefreshErr error
	refreshes  int
	ensures    int
}

func NewAuthenticator(token string) *Authenticator {
	return &Authenticator{Token: token}
}

func (a *Authenticator) AuthHeaders(ctx context.Context) (map[string]string, error) {
	if err := a.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]string{"Authorization": "Bearer " + a.Token}, nil
}

func (a *Authenticator) EnsureValidToken(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensures++
	return nil
}

func (a *Authenticator) Refresh(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshes++
	if a.RefreshErr != nil {
		return a.RefreshErr
	}
	a.Token += "-refreshed"
	return nil
}

func (a *Authenticator) Refreshes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshes
}

func (a *Authenticator) Ensures() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensures
}
