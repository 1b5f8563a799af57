package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"expenses/internal/auth"
	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/mail"
	"expenses/internal/storage"
)

// ResetTokenLifetime is how long a password reset link stays usable.
const ResetTokenLifetime = time.Hour

const (
	knownUsersSize = 1024
	knownUsersTTL  = time.Minute
)

// Session is what a successful sign-in returns.
type Session struct {
	Token string     `json:"token"`
	User  *core.User `json:"user"`
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthService runs registration, sign-in and password reset.
type AuthService struct {
	users       UserStore
	tokens      *auth.Tokens
	google      auth.GoogleVerifier
	mailer      mail.Dispatcher
	frontendURL string
	now         func() time.Time
	logger      *log.Logger

	// knownUsers remembers user ids that recently resolved to an account.
	knownUsers *cache.LRU[struct{}]
}

func NewAuthService(users UserStore, tokens *auth.Tokens, google auth.GoogleVerifier, mailer mail.Dispatcher, frontendURL string) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		google:      google,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
		logger:      log.WithComponent(log.ComponentAuth),
		knownUsers:  cache.NewLRU[struct{}](knownUsersSize, knownUsersTTL),
	}
}

// Authenticate resolves a bearer token to the id of an existing user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	if _, ok := s.knownUsers.Get(userID); ok {
		return userID, nil
	}

	_, err = s.users.UserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", core.NewError(core.KindUnauthenticated, "User not found", err)
	}
	if err != nil {
		return "", core.Internal("Server error", err)
	}
	s.knownUsers.Set(userID, struct{}{})
	return userID, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := core.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, core.Validation(core.ErrEmptyName)
	}
	if err := core.ValidateEmail(email); err != nil {
		return nil, core.Validation(err)
	}
	if err := core.ValidatePassword(in.Password); err != nil {
		return nil, core.Validation(err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, core.Internal("Server error", err)
	}
	now := s.now().UTC()
	u := &core.User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: hash, LastLogin: &now}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, core.NewError(core.KindConflict, "User already exists", err)
		}
		return nil, core.Internal("Server error", err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID, log.FieldOperation, log.OpRegister)
	s.dispatch(ctx, mail.NewMessage(mail.TemplateWelcome, u.Email, map[string]string{
		"name":   u.Name,
		"appURL": s.frontendURL,
	}))
	return s.session(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	invalid := core.NewError(core.KindInvalidCredentials, "Invalid credentials", nil)

	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, core.Internal("Server error", err)
	}
	if u.PasswordHash == "" {
		return nil, core.NewError(core.KindInvalidCredentials,
			"This account uses Google sign-in. Please log in with Google", nil)
	}
	if u.ResetPending(s.now()) {
		return nil, core.NewError(core.KindForbidden,
			"A password reset was requested for this account, please reset your password", nil)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, invalid
	}

	if err := s.touchLogin(ctx, u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "User logged in", log.FieldUserID, u.ID, log.FieldOperation, log.OpLogin)
	return s.session(u)
}

// GoogleLogin verifies a Google ID token and signs the matching user in,
// linking or creating the account on first use. Linking and creation need
// a verified email; an already linked Google account signs in regardless.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, core.Validation(errors.New("google credential is required"))
	}
	profile, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if profile.Email == "" {
		return nil, core.NewError(core.KindInvalidToken, "Google account has no email", nil)
	}

	u, err := s.users.UserByGoogleID(ctx, profile.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		// An unverified address must not claim an existing account or
		// squat on one that has not registered yet.
		if !profile.EmailVerified {
			return nil, core.NewError(core.KindInvalidToken, "Google account email is not verified", nil)
		}
		u, err = s.users.UserByEmail(ctx, profile.Email)
		if err == nil {
			u.GoogleID = profile.Subject
		}
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s.createGoogleUser(ctx, profile)
	case err != nil:
		return nil, core.Internal("Server error", err)
	}

	if profile.Picture != "" {
		u.Picture = profile.Picture
	}
	if profile.Locale != "" {
		u.Locale = profile.Locale
	}
	if err := s.touchLogin(ctx, u); err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *AuthService) createGoogleUser(ctx context.Context, p *auth.GoogleProfile) (*Session, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name, _, _ = strings.Cut(p.Email, "@")
	}
	now := s.now().UTC()
	u := &core.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     p.Email,
		GoogleID:  p.Subject,
		IsOAuth:   true,
		Picture:   p.Picture,
		Locale:    p.Locale,
		LastLogin: &now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, core.Internal("Server error", err)
	}
	s.logger.InfoContext(ctx, "User registered with Google", log.FieldUserID, u.ID)
	s.dispatch(ctx, mail.NewMessage(mail.TemplateWelcome, u.Email, map[string]string{
		"name":   u.Name,
		"appURL": s.frontendURL,
	}))
	return s.session(u)
}

func (s *AuthService) Me(ctx context.Context, userID string) (*core.User, error) {
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	return u, nil
}

// ForgotPassword issues a reset token and mails the link. Unknown emails
// succeed silently so accounts cannot be enumerated.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.InfoContext(ctx, "Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return core.Internal("Server error", err)
	}

	token, hash, err := auth.NewResetToken()
	if err != nil {
		return core.Internal("Server error", err)
	}
	expires := s.now().UTC().Add(ResetTokenLifetime)
	u.ResetTokenHash = hash
	u.ResetExpires = &expires
	u.ResetAttempts++
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return core.Internal("Server error", err)
	}

	msg := mail.NewMessage(mail.TemplatePasswordReset, u.Email, map[string]string{
		"name":      u.Name,
		"resetURL":  s.frontendURL + "/reset-password/" + token,
		"expiresIn": "1 hour",
	})
	if err := s.mailer.Dispatch(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Reset email could not be queued", log.FieldUserID, u.ID, log.FieldError, err)
		u.ResetTokenHash, u.ResetExpires = "", nil
		if uerr := s.users.UpdateUser(ctx, u); uerr != nil {
			s.logger.ErrorContext(ctx, "Failed to clear reset token", log.FieldUserID, u.ID, log.FieldError, uerr)
		}
		return core.Internal("Email could not be sent", err)
	}

	s.logger.InfoContext(ctx, "Password reset requested", log.FieldUserID, u.ID, log.FieldOperation, log.OpReset)
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if err := core.ValidatePassword(password); err != nil {
		return core.Validation(err)
	}
	invalid := core.NewError(core.KindValidation, "Invalid or expired reset token", nil)

	u, err := s.users.UserByResetToken(ctx, auth.HashResetToken(token))
	if errors.Is(err, storage.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return core.Internal("Server error", err)
	}
	if !u.ResetPending(s.now()) {
		return invalid
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.Internal("Server error", err)
	}
	u.PasswordHash = hash
	u.ResetTokenHash, u.ResetExpires, u.ResetAttempts = "", nil, 0
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return core.Internal("Server error", err)
	}
	s.logger.InfoContext(ctx, "Password reset completed", log.FieldUserID, u.ID, log.FieldOperation, log.OpReset)
	return nil
}

func (s *AuthService) touchLogin(ctx context.Context, u *core.User) error {
	now := s.now().UTC()
	u.LastLogin = &now
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return core.Internal("Server error", err)
	}
	return nil
}

func (s *AuthService) session(u *core.User) (*Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, core.Internal("Server error", err)
	}
	return &Session{Token: token, User: u}, nil
}

func (s *AuthService) dispatch(ctx context.Context, m mail.Message) {
	if err := s.mailer.Dispatch(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "Failed to queue email",
			log.FieldTemplate, m.Template, log.FieldError, err)
	}
}
