package identity

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/go-resty/resty/v2"
	"google.golang.org/api/option"
)

// FirebaseConfig reúne os parâmetros do adaptador Firebase.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	WebAPIKey       string
	ClockSkew       time.Duration
	HTTPTimeout     time.Duration

	// CertsURL e TokenURL substituem os endpoints do Google (testes).
	CertsURL string
	TokenURL string
}

// authClient é o subconjunto do cliente Admin usado pelo adaptador.
type authClient interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, claims map[string]interface{}) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
	DeleteUser(ctx context.Context, uid string) error
}

// Firebase implementa Provider com o Firebase Admin SDK para gestão de
// usuários e verificação própria de ID tokens (tolerância configurável).
type Firebase struct {
	client   authClient
	verifier *idTokenVerifier
	refresh  *secureTokenClient
}

var _ Provider = (*Firebase)(nil)

// NewFirebase inicializa o app Admin e os clientes REST.
func NewFirebase(ctx context.Context, cfg FirebaseConfig) (*Firebase, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	return newFirebase(client, cfg), nil
}

func newFirebase(client authClient, cfg FirebaseConfig) *Firebase {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	certsURL := cfg.CertsURL
	if certsURL == "" {
		certsURL = GoogleCertsURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = SecureTokenURL
	}
	httpClient := resty.New().SetTimeout(timeout)

	return &Firebase{
		client:   client,
		verifier: newIDTokenVerifier(newKeySource(httpClient, certsURL), cfg.ProjectID, cfg.ClockSkew, time.Now),
		refresh:  &secureTokenClient{http: httpClient, endpoint: tokenURL, apiKey: cfg.WebAPIKey},
	}
}

// VerifyToken valida o token e confere revogação e desativação da conta.
func (f *Firebase) VerifyToken(ctx context.Context, raw string) (*Token, error) {
	tok, err := f.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	user, err := f.client.GetUser(ctx, tok.UID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, fmt.Errorf("%w: usuário removido", ErrTokenInvalid)
		}
		return nil, err
	}
	if user.Disabled {
		return nil, fmt.Errorf("%w: usuário desativado", ErrTokenRevoked)
	}
	if tok.AuthTime.Unix()*1000 < user.TokensValidAfterMillis {
		return nil, ErrTokenRevoked
	}
	return tok, nil
}

func (f *Firebase) CreateUser(ctx context.Context, u UserToCreate) (string, error) {
	params := (&auth.UserToCreate{}).Email(u.Email).Password(u.Password)
	if u.DisplayName != "" {
		params = params.DisplayName(u.DisplayName)
	}
	rec, err := f.client.CreateUser(ctx, params)
	if err != nil {
		return "", mapFirebaseErr(err)
	}
	return rec.UID, nil
}

func (f *Firebase) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	return mapFirebaseErr(f.client.SetCustomUserClaims(ctx, uid, claims))
}

func (f *Firebase) UpdateUser(ctx context.Context, uid string, u UserUpdate) error {
	if u.Empty() {
		return nil
	}
	params := &auth.UserToUpdate{}
	if u.Email != nil {
		params = params.Email(*u.Email)
	}
	if u.Password != nil {
		params = params.Password(*u.Password)
	}
	if u.DisplayName != nil {
		params = params.DisplayName(*u.DisplayName)
	}
	_, err := f.client.UpdateUser(ctx, uid, params)
	return mapFirebaseErr(err)
}

func (f *Firebase) RevokeRefreshTokens(ctx context.Context, uid string) error {
	return mapFirebaseErr(f.client.RevokeRefreshTokens(ctx, uid))
}

func (f *Firebase) DeleteUser(ctx context.Context, uid string) error {
	return mapFirebaseErr(f.client.DeleteUser(ctx, uid))
}

func (f *Firebase) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return f.refresh.Refresh(ctx, refreshToken)
}

func mapFirebaseErr(err error) error {
	switch {
	case err == nil:
		return nil
	case auth.IsEmailAlreadyExists(err):
		return fmt.Errorf("%w: %v", ErrEmailExists, err)
	case auth.IsUserNotFound(err):
		return fmt.Errorf("%w: %v", ErrUserNotFound, err)
	default:
		return err
	}
}
