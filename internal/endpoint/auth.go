package endpoint

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"campusattend/internal/apiclient"
	"campusattend/internal/credential"
	"campusattend/internal/model"
	"campusattend/internal/session"
)

var (
	authLogin          = public(Endpoint{Name: "auth.login", Method: http.MethodPost, Path: "/auth/login", Encoding: EncodingForm})
	authRegister       = public(send("auth.register", http.MethodPost, "/auth/register"))
	authMe             = get("auth.me", "/auth/me")
	authVerifyEmail    = public(send("auth.verify_email", http.MethodPost, "/auth/verify-email"))
	authForgotPassword = public(send("auth.forgot_password", http.MethodPost, "/auth/forgot-password"))
	authResetPassword  = public(send("auth.reset_password", http.MethodPost, "/auth/reset-password"))
	authChangePassword = send("auth.change_password", http.MethodPost, "/auth/change-password")
	authCheckEmail     = public(get("auth.check_email", "/auth/check-email", "email"))
	authLogout         = Endpoint{Name: "auth.logout", Method: http.MethodPost, Path: "/auth/logout", Encoding: EncodingNone, Auth: true}

	authEndpoints = []Endpoint{
		authLogin, authRegister, authMe, authVerifyEmail, authForgotPassword,
		authResetPassword, authChangePassword, authCheckEmail, authLogout,
	}
)

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        credential.User `json:"user"`
}

// Registration is a self-service sign-up (students and lecturers only).
type Registration struct {
	Email     string          `json:"email"`
	Password  string          `json:"password"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Role      credential.Role `json:"role"`
	Phone     string          `json:"phone,omitempty"`
}

// RegisterResult acknowledges a new, still unverified account.
type RegisterResult struct {
	Message string          `json:"message"`
	UserID  int64           `json:"user_id"`
	Email   string          `json:"email"`
	Role    credential.Role `json:"role"`
}

// Profile is the signed-in user plus whichever role profile applies.
type Profile struct {
	credential.User
	StudentProfile  model.Document `json:"student_profile,omitempty"`
	LecturerProfile model.Document `json:"lecturer_profile,omitempty"`
}

// Auth covers account and session operations.
type Auth struct {
	client  *apiclient.Client
	session *session.Context
}

// NewAuth binds the group to the authenticated client and the session it establishes credentials in.
func NewAuth(c *apiclient.Client, sess *session.Context) *Auth {
	return &Auth{client: c, session: sess}
}

// Login exchanges email and password for a credential. The credential is held by
// the session before Login returns, so the next request already carries it.
func (a *Auth) Login(ctx context.Context, email, password string) (credential.Credential, error) {
	var resp LoginResponse
	form := url.Values{"username": {email}, "password": {password}}
	if err := call(ctx, a.client, authLogin, Args{Form: form}, &resp); err != nil {
		return credential.Credential{}, err
	}
	if resp.AccessToken == "" {
		return credential.Credential{}, &apiclient.Error{
			Kind:      apiclient.KindTransport,
			Status:    http.StatusOK,
			Operation: authLogin.Name,
			Detail:    "malformed response",
			Err:       credential.ErrEmptyToken,
		}
	}
	c := credential.Credential{Token: resp.AccessToken, User: resp.User}
	if err := a.session.Establish(ctx, c); err != nil {
		return credential.Credential{}, err
	}
	return c, nil
}

// Logout notifies the server and then drops the local credential, even when the
// server call fails. An authorization failure is not reported since the session is gone either way.
func (a *Auth) Logout(ctx context.Context) error {
	err := call(ctx, a.client, authLogout, Args{}, nil)
	if errors.Is(err, apiclient.ErrAuthFailure) {
		err = nil
	}
	return errors.Join(err, a.session.End(ctx))
}

func (a *Auth) Register(ctx context.Context, r Registration) (*RegisterResult, error) {
	var out RegisterResult
	if err := call(ctx, a.client, authRegister, Args{Body: r}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the signed-in user's profile.
func (a *Auth) Me(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := call(ctx, a.client, authMe, Args{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Auth) VerifyEmail(ctx context.Context, token string) (*model.Message, error) {
	return a.message(ctx, authVerifyEmail, map[string]string{"token": token})
}

func (a *Auth) ForgotPassword(ctx context.Context, email string) (*model.Message, error) {
	return a.message(ctx, authForgotPassword, map[string]string{"email": email})
}

func (a *Auth) ResetPassword(ctx context.Context, token, newPassword string) (*model.Message, error) {
	return a.message(ctx, authResetPassword, map[string]string{"token": token, "new_password": newPassword})
}

func (a *Auth) ChangePassword(ctx context.Context, current, newPassword string) (*model.Message, error) {
	return a.message(ctx, authChangePassword, map[string]string{"current_password": current, "new_password": newPassword})
}

// CheckEmail reports whether email is free for registration.
func (a *Auth) CheckEmail(ctx context.Context, email string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	if err := call(ctx, a.client, authCheckEmail, Args{Query: url.Values{"email": {email}}}, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

func (a *Auth) message(ctx context.Context, e Endpoint, body any) (*model.Message, error) {
	var out model.Message
	if err := call(ctx, a.client, e, Args{Body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
