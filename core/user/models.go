package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mabu007/czane-beauty-academy/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// DefaultDisplayName is shown when a user never set a display name.
const DefaultDisplayName = "Student"

var AllRoles = []string{RoleAdmin, RoleStudent}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"isActive"`
	IsManual     bool      `json:"isManual"` // created by an administrator
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
	LastLogin    time.Time `json:"lastLogin"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// IsAdmin is the source of truth for the "admin" token claim.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

// Name returns the display name, or DefaultDisplayName.
func (u *User) Name() string {
	if u.DisplayName == "" {
		return DefaultDisplayName
	}
	return u.DisplayName
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	DisplayName     string `json:"displayName" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,userrole"`
	IsManual        bool   `json:"-"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.DisplayName = core.CleanString(nu.DisplayName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	DisplayName     string `json:"displayName"`
	Email           string `json:"email" validate:"omitempty,email"`
	IsActive        *bool  `json:"isActive"`
	Role            string `json:"role" validate:"omitempty,userrole"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc *Service) error {
	name := core.CleanString(uu.DisplayName)
	if name != "" {
		uu.DisplayName = name
	} else {
		uu.DisplayName = origUsr.DisplayName
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Role == "" {
		uu.Role = origUsr.Role
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, uu.Email, origUsr)
}

// UpdateProfile is what users may change about themselves.
type UpdateProfile struct {
	DisplayName string `json:"displayName" validate:"required,max=100"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.DisplayName = core.CleanString(up.DisplayName)
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search   string `query:"search"`
	Role     string `query:"role"`
	IsActive *bool  `query:"isActive"`
}

// OrderingFields maps each field users can be ordered by, camelCase aliases included, to its canonical name.
var OrderingFields = map[string]string{
	"created_at":   "created_at",
	"createdAt":    "created_at",
	"updated_at":   "updated_at",
	"updatedAt":    "updated_at",
	"last_login":   "last_login",
	"lastLogin":    "last_login",
	"email":        "email",
	"name":         "name",
	"display_name": "name",
	"displayName":  "name",
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true /* lower */)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
