package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/lanternauth/lantern/internal/auth/domain"
	"github.com/lanternauth/lantern/internal/auth/store"
	"github.com/lanternauth/lantern/pkg/bearer"
	"github.com/lanternauth/lantern/pkg/cryptox"
	"github.com/lanternauth/lantern/pkg/idx"
	"github.com/lanternauth/lantern/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrUsernameTaken      = errors.New("username_taken")
)

// IdentityService owns user records: registration, credential checks,
// password changes, security stamps and the phone sign in codes. It also
// implements bearer.IdentityStore so the authentication pipeline can check
// stamps.
type IdentityService struct {
	Store store.Store

	// SMS delivers phone sign in codes. Nil disables delivery, which is
	// fine in development where codes are echoed to the caller.
	SMS SmsSender

	// TOTPIssuer is the issuer label embedded in provisioned code secrets.
	TOTPIssuer string
}

// FindByID fetches a user by id.
func (s *IdentityService) FindByID(ctx context.Context, id string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, id)
}

// FindByName fetches a user by username.
func (s *IdentityService) FindByName(ctx context.Context, username string) (domain.User, error) {
	return s.Store.Users().GetUserByUsername(ctx, username)
}

// SecurityStamp returns the subject's current stamp. Part of the
// bearer.IdentityStore contract.
func (s *IdentityService) SecurityStamp(ctx context.Context, subject string) (string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", bearer.ErrUnknownSubject
		}
		return "", err
	}
	return user.SecurityStamp, nil
}

// RotateStamp replaces the subject's security stamp, invalidating every
// access token minted under the old one.
func (s *IdentityService) RotateStamp(ctx context.Context, subject string) error {
	return s.Store.Users().UpdateSecurityStamp(ctx, subject, uuid.NewString())
}

// VerifyCredentials checks a username and password pair. It returns
// ErrInvalidCredentials for both unknown users and wrong passwords so the
// caller cannot probe which usernames exist.
func (s *IdentityService) VerifyCredentials(ctx context.Context, username, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	user, err := s.FindByName(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("password verification failed", slog.String("username", username))
		return domain.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// RegisterParams are the inputs for creating a new account.
type RegisterParams struct {
	Username        string
	Password        string
	Email           string
	PreferredName   string
	ProfileImageURL string
	Phone           string
	Roles           []string
}

// Register creates a new user with a fresh ULID, security stamp and argon2
// password hash.
func (s *IdentityService) Register(ctx context.Context, p RegisterParams) (domain.User, error) {
	username := strings.TrimSpace(p.Username)
	if username == "" || p.Password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword(p.Password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:              idx.New().String(),
		Username:        username,
		Email:           strings.TrimSpace(p.Email),
		PreferredName:   p.PreferredName,
		ProfileImageURL: p.ProfileImageURL,
		Phone:           p.Phone,
		Roles:           p.Roles,
		PasswordHash:    hash,
		SecurityStamp:   uuid.NewString(),
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// ChangePassword verifies the current password, installs the new hash and
// rotates the security stamp so outstanding access tokens die. All refresh
// tokens for the subject are removed within the same transaction.
func (s *IdentityService) ChangePassword(ctx context.Context, subject, current, next string) error {
	user, err := s.Store.Users().GetUserByID(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, subject, hash); err != nil {
			return err
		}
		if err := tx.Users().UpdateSecurityStamp(ctx, subject, uuid.NewString()); err != nil {
			return err
		}
		return tx.RefreshTokens().DeleteAllForSubject(ctx, subject)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password changed", slog.String("user_id", subject))
	return nil
}

// phoneCodeOpts shape the one-time codes sent over SMS: six digits with a
// five minute window and one period of skew either side.
var phoneCodeOpts = totp.ValidateOpts{
	Period:    300,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// phoneSuffixPattern captures the last nine characters of a user identifier,
// ignoring trailing whitespace. Suffix matching lets callers present their
// number with or without a country prefix.
var phoneSuffixPattern = regexp.MustCompile(`(.{9})\s*$`)

func phoneSuffix(identifier string) (string, bool) {
	m := phoneSuffixPattern.FindStringSubmatch(identifier)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// userByPhone resolves a user from a phone identifier by suffix match. It
// returns ErrInvalidCredentials for malformed identifiers and unknown
// numbers alike.
func (s *IdentityService) userByPhone(ctx context.Context, identifier string) (domain.User, error) {
	suffix, ok := phoneSuffix(identifier)
	if !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.Store.Users().GetUserByPhoneSuffix(ctx, suffix)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	return user, nil
}

// StartPhoneSignIn generates a one-time code for the user matching the phone
// identifier and hands it to the SMS sender. The code is also returned so
// development deployments can echo it to the caller.
func (s *IdentityService) StartPhoneSignIn(ctx context.Context, identifier string) (string, error) {
	user, err := s.userByPhone(ctx, identifier)
	if err != nil {
		return "", err
	}

	secret, err := s.phoneSecret(ctx, &user)
	if err != nil {
		return "", err
	}

	code, err := totp.GenerateCodeCustom(secret, time.Now(), phoneCodeOpts)
	if err != nil {
		return "", err
	}

	if s.SMS != nil {
		if err := s.SMS.SendSms(ctx, user.Phone, "Your sign in code is "+code); err != nil {
			return "", err
		}
	}

	slogx.FromContext(ctx).Info("phone sign in code issued", slog.String("user_id", user.ID))
	return code, nil
}

// CompletePhoneSignIn verifies a previously issued code and returns the
// matching user for sign in.
func (s *IdentityService) CompletePhoneSignIn(ctx context.Context, identifier, code string) (domain.User, error) {
	user, err := s.userByPhone(ctx, identifier)
	if err != nil {
		return domain.User{}, err
	}
	if !user.TOTPEnabled() {
		// No code was ever issued for this user.
		return domain.User{}, ErrInvalidCode
	}
	ok, err := totp.ValidateCustom(code, *user.TOTPSecret, time.Now(), phoneCodeOpts)
	if err != nil || !ok {
		return domain.User{}, ErrInvalidCode
	}
	return user, nil
}

// phoneSecret returns the user's code generation secret, provisioning and
// persisting one on first use.
func (s *IdentityService) phoneSecret(ctx context.Context, user *domain.User) (string, error) {
	if user.TOTPEnabled() {
		return *user.TOTPSecret, nil
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.TOTPIssuer,
		AccountName: user.Username,
		Period:      phoneCodeOpts.Period,
		Digits:      phoneCodeOpts.Digits,
		Algorithm:   phoneCodeOpts.Algorithm,
	})
	if err != nil {
		return "", err
	}

	secret := key.Secret()
	if err := s.Store.Users().UpdateTOTPSecret(ctx, user.ID, &secret); err != nil {
		return "", err
	}
	user.TOTPSecret = &secret
	return secret, nil
}
