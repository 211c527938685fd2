package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/planejafacil/api/internal/auth"
	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/util"
)

// IdentitiesCollection guarda as identidades do provedor local.
const IdentitiesCollection = "identities"

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type localIdentity struct {
	Email        string         `json:"email"`
	PasswordHash string         `json:"passwordHash"`
	DisplayName  string         `json:"displayName"`
	Claims       map[string]any `json:"claims"`
	Disabled     bool           `json:"disabled"`
}

// Local implementa Provider sem serviços externos: identidades no
// docstore, senhas Argon2id, tokens HS256 e refresh tokens opacos no Redis.
type Local struct {
	store      docstore.Store
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	now        func() time.Time
}

var (
	_ Provider       = (*Local)(nil)
	_ PasswordSignIn = (*Local)(nil)
)

// NewLocal cria o provedor local.
func NewLocal(store docstore.Store, redisClient redisCommander, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *Local {
	return &Local{store: store, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL, now: time.Now}
}

func identityPath(uid string) string {
	return docstore.Join(IdentitiesCollection, uid)
}

func (l *Local) load(ctx context.Context, uid string) (*localIdentity, error) {
	doc, err := l.store.Get(ctx, identityPath(uid))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	var ident localIdentity
	if err := docstore.Decode(doc.Data, &ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

func (l *Local) findByEmail(ctx context.Context, email string) (string, *localIdentity, error) {
	docs, err := l.store.Query(ctx, IdentitiesCollection, docstore.Eq("email", normalizeEmail(email)))
	if err != nil {
		return "", nil, err
	}
	if len(docs) == 0 {
		return "", nil, ErrUserNotFound
	}
	var ident localIdentity
	if err := docstore.Decode(docs[0].Data, &ident); err != nil {
		return "", nil, err
	}
	return docs[0].ID, &ident, nil
}

func (l *Local) VerifyToken(ctx context.Context, raw string) (*Token, error) {
	claims, err := l.jwt.ParseAndValidate(raw)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	ident, err := l.load(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: usuário removido", ErrTokenInvalid)
		}
		return nil, err
	}
	if ident.Disabled {
		return nil, fmt.Errorf("%w: usuário desativado", ErrTokenRevoked)
	}

	validAfter, err := l.validAfter(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Unix() < validAfter {
		return nil, ErrTokenRevoked
	}

	tok := &Token{UID: claims.Subject, Email: claims.Email, AuthTime: claims.IssuedAt.Time, Claims: map[string]any{}}
	if claims.Role != "" {
		tok.Claims[ClaimRole] = claims.Role
	}
	if claims.MainUserID != "" {
		tok.Claims[ClaimMainUserID] = claims.MainUserID
	}
	return tok, nil
}

func (l *Local) validAfter(ctx context.Context, uid string) (int64, error) {
	val, err := l.redis.Get(ctx, auth.ValidAfterKey(uid)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (l *Local) CreateUser(ctx context.Context, u UserToCreate) (string, error) {
	email := normalizeEmail(u.Email)
	if _, _, err := l.findByEmail(ctx, email); err == nil {
		return "", ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return "", err
	}

	hash, err := auth.Hash(u.Password)
	if err != nil {
		return "", err
	}
	uid := util.NewID()
	err = l.store.Set(ctx, identityPath(uid), map[string]any{
		"email":        email,
		"passwordHash": hash,
		"displayName":  u.DisplayName,
		"claims":       map[string]any{},
		"disabled":     false,
		"createdAt":    docstore.ServerTimestamp,
	})
	if err != nil {
		return "", err
	}
	return uid, nil
}

func (l *Local) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	err := l.store.Update(ctx, identityPath(uid), map[string]any{"claims": claims})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (l *Local) UpdateUser(ctx context.Context, uid string, u UserUpdate) error {
	if _, err := l.load(ctx, uid); err != nil {
		return err
	}
	if u.Empty() {
		return nil
	}

	fields := map[string]any{"updatedAt": docstore.ServerTimestamp}
	if u.Email != nil {
		email := normalizeEmail(*u.Email)
		owner, _, err := l.findByEmail(ctx, email)
		switch {
		case err == nil && owner != uid:
			return ErrEmailExists
		case err != nil && !errors.Is(err, ErrUserNotFound):
			return err
		}
		fields["email"] = email
	}
	if u.Password != nil {
		hash, err := auth.Hash(*u.Password)
		if err != nil {
			return err
		}
		fields["passwordHash"] = hash
	}
	if u.DisplayName != nil {
		fields["displayName"] = *u.DisplayName
	}
	return l.store.Update(ctx, identityPath(uid), fields)
}

// RevokeRefreshTokens remove os refresh ativos e invalida ID tokens emitidos
// antes do segundo atual.
func (l *Local) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if _, err := l.load(ctx, uid); err != nil {
		return err
	}
	if err := l.dropRefreshTokens(ctx, uid); err != nil {
		return err
	}
	return l.redis.Set(ctx, auth.ValidAfterKey(uid), strconv.FormatInt(l.now().Unix(), 10), 0).Err()
}

func (l *Local) dropRefreshTokens(ctx context.Context, uid string) error {
	hashes, err := l.redis.SMembers(ctx, auth.RefreshIndexKey(uid)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, auth.RefreshRedisKey(h))
	}
	keys = append(keys, auth.RefreshIndexKey(uid))
	return l.redis.Del(ctx, keys...).Err()
}

func (l *Local) DeleteUser(ctx context.Context, uid string) error {
	if _, err := l.load(ctx, uid); err != nil {
		return err
	}
	if err := l.dropRefreshTokens(ctx, uid); err != nil {
		return err
	}
	if err := l.store.Delete(ctx, identityPath(uid)); err != nil {
		return err
	}
	return l.redis.Del(ctx, auth.ValidAfterKey(uid)).Err()
}

// RefreshToken troca um refresh válido por um novo par; o refresh usado é
// descartado.
func (l *Local) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	hash := auth.HashRefreshToken(strings.TrimSpace(refreshToken))
	uid, err := l.redis.Get(ctx, auth.RefreshRedisKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshRejected
	}
	if err != nil {
		return nil, err
	}
	if err := l.redis.Del(ctx, auth.RefreshRedisKey(hash)).Err(); err != nil {
		return nil, err
	}
	_ = l.redis.SRem(ctx, auth.RefreshIndexKey(uid), hash).Err()

	ident, err := l.load(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrRefreshRejected
		}
		return nil, err
	}
	if ident.Disabled {
		return nil, ErrRefreshRejected
	}
	return l.issue(ctx, uid, ident)
}

// SignIn autentica e-mail e senha.
func (l *Local) SignIn(ctx context.Context, email, password string) (*TokenPair, error) {
	uid, ident, err := l.findByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		auth.VerifyMissing(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := auth.Verify(password, ident.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok || ident.Disabled {
		return nil, ErrInvalidCredentials
	}
	return l.issue(ctx, uid, ident)
}

func (l *Local) issue(ctx context.Context, uid string, ident *localIdentity) (*TokenPair, error) {
	idToken, err := l.jwt.GenerateIDToken(uid, ident.Email, ident.Claims)
	if err != nil {
		return nil, err
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := l.redis.Set(ctx, auth.RefreshRedisKey(hash), uid, l.refreshTTL).Err(); err != nil {
		return nil, err
	}
	if err := l.redis.SAdd(ctx, auth.RefreshIndexKey(uid), hash).Err(); err != nil {
		return nil, err
	}
	_ = l.redis.Expire(ctx, auth.RefreshIndexKey(uid), l.refreshTTL).Err()

	return &TokenPair{
		IDToken:      idToken,
		RefreshToken: raw,
		ExpiresIn:    strconv.Itoa(int(l.jwt.AccessTTL().Seconds())),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
