// Package identitytest oferece um provedor de identidade em memória para
// testes dos serviços e handlers.
package identitytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/planejafacil/api/internal/identity"
)

// User é o estado guardado pelo Fake.
type User struct {
	UID      string
	Email    string
	Password string
	Claims   map[string]any
	Revoked  int
}

// Fake implementa identity.Provider. Tokens têm o formato "token:<uid>".
type Fake struct {
	mu    sync.Mutex
	seq   int
	users map[string]*User

	// Falhas injetáveis por operação.
	FailCreate error
	FailUpdate error
	FailDelete map[string]error

	Deleted []string
}

var _ identity.Provider = (*Fake)(nil)

func New() *Fake {
	return &Fake{users: map[string]*User{}, FailDelete: map[string]error{}}
}

// TokenFor devolve o token aceito por VerifyToken para o uid.
func TokenFor(uid string) string { return "token:" + uid }

// Add cadastra um usuário diretamente.
func (f *Fake) Add(uid, email string, claims map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[uid] = &User{UID: uid, Email: email, Claims: claims}
}

// User devolve uma cópia do usuário ou nil.
func (f *Fake) User(uid string) *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (f *Fake) VerifyToken(_ context.Context, raw string) (*identity.Token, error) {
	switch raw {
	case "expired":
		return nil, identity.ErrTokenExpired
	case "revoked":
		return nil, identity.ErrTokenRevoked
	}
	uid, ok := strings.CutPrefix(raw, "token:")
	if !ok {
		return nil, identity.ErrTokenInvalid
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return nil, identity.ErrTokenInvalid
	}
	claims := map[string]any{}
	for k, v := range u.Claims {
		claims[k] = v
	}
	return &identity.Token{UID: uid, Email: u.Email, Claims: claims}, nil
}

func (f *Fake) CreateUser(_ context.Context, user identity.UserToCreate) (string, error) {
	if f.FailCreate != nil {
		return "", f.FailCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return "", identity.ErrEmailExists
		}
	}
	f.seq++
	uid := fmt.Sprintf("uid-%d", f.seq)
	f.users[uid] = &User{UID: uid, Email: user.Email, Password: user.Password}
	return uid, nil
}

func (f *Fake) SetCustomClaims(_ context.Context, uid string, claims map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.Claims = claims
	return nil
}

func (f *Fake) UpdateUser(_ context.Context, uid string, update identity.UserUpdate) error {
	if f.FailUpdate != nil {
		return f.FailUpdate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return identity.ErrUserNotFound
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.Password != nil {
		u.Password = *update.Password
	}
	return nil
}

func (f *Fake) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.Revoked++
	return nil
}

func (f *Fake) DeleteUser(_ context.Context, uid string) error {
	if err := f.FailDelete[uid]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[uid]; !ok {
		return identity.ErrUserNotFound
	}
	delete(f.users, uid)
	f.Deleted = append(f.Deleted, uid)
	return nil
}

func (f *Fake) RefreshToken(_ context.Context, refreshToken string) (*identity.TokenPair, error) {
	uid, ok := strings.CutPrefix(refreshToken, "refresh:")
	if !ok || f.User(uid) == nil {
		return nil, identity.ErrRefreshRejected
	}
	return &identity.TokenPair{IDToken: TokenFor(uid), RefreshToken: refreshToken, ExpiresIn: "3600"}, nil
}
