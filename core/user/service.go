package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = core.NewPermissionError("account deactivated")
	ErrRefreshExpired       = core.NewPermissionError("refresh has expired")
	ErrInvalidResetLink     = core.NewValidationError(errors.New("invalid or expired password reset link"))
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when another user holds email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.DisplayName or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		conf     *core.Config
		logger   core.Logger
		resetGen resetTokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
		resetGen: resetTokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Create stores a new user. An empty role defaults to student.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		DisplayName: nu.DisplayName,
		Email:       nu.Email,
		Role:        nu.Role,
		IsActive:    true,
		IsManual:    nu.IsManual,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if usr.Role == "" {
		usr.Role = RoleStudent
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// SignUp registers a student account and sends the welcome email.
func (svc *Service) SignUp(ctx context.Context, nu NewUser) (User, error) {
	nu.Role = RoleStudent
	nu.IsManual = false
	usr, err := svc.Create(ctx, nu)
	if err != nil {
		return User{}, err
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Welcome to the Academy",
		TemplateName: "welcome",
		TemplateData: struct{ Name string }{Name: usr.Name()},
	})
	return usr, nil
}

// Authenticate checks credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr.LastLogin = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// RefreshClaims issues new claims for a still valid session, reloading the user.
func (svc *Service) RefreshClaims(ctx context.Context, claims Claims) (*Claims, error) {
	usr, err := svc.repo.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return nil, ErrAccountDeactivated
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(svc.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return nil, ErrRefreshExpired
	}
	return NewClaims(usr, svc.conf, claims.OrigIssuedAt), nil
}

// AdminClaim returns the "admin" claim of the user identified by uid.
// Without forceRefresh, the claim carried by a cached token of the same user is trusted as is.
// With forceRefresh, the user record is reloaded: security decisions must always force.
func (svc *Service) AdminClaim(ctx context.Context, uid string, cached *Claims, forceRefresh bool) (bool, error) {
	if !forceRefresh && cached != nil && cached.Subject == uid {
		return cached.IsAdmin, nil
	}
	usr, err := svc.repo.GetUserByID(ctx, uid)
	if err != nil {
		return false, errors.Wrap(err, "finding user by ID")
	}
	return usr.IsActive && usr.IsAdmin(), nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, orderings...)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	usr.DisplayName = uu.DisplayName
	usr.Email = uu.Email
	usr.Role = uu.Role
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// UpdateProfile changes the display name of a user.
func (svc *Service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	usr.DisplayName = up.DisplayName
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetRole grants or revokes the admin claim. Sessions see the change on their next forced refresh.
func (svc *Service) SetRole(ctx context.Context, email, role string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by email")
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword replaces the password of a user without any policy check. Used by the admin CLI.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return errors.Wrap(err, "finding user by email")
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUser(ctx, id)
}

// RequestPasswordReset emails a password reset link to the active user holding email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrAccountDeactivated
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: struct{ Name, UID, Token string }{
			Name:  usr.Name(),
			UID:   EncodeUID(usr),
			Token: svc.resetGen.makeToken(usr),
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	uid, err := decodeUID(data.UID)
	if err != nil {
		return ErrInvalidResetLink
	}
	usr, err := svc.repo.GetUserByID(ctx, uid)
	if err != nil {
		if err == ErrNotFound {
			return ErrInvalidResetLink
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.resetGen.verifyToken(usr, data.Token); err != nil {
		return ErrInvalidResetLink
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
