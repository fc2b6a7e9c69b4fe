package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("user")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrUsernameExists       = errors.New("a user with this username already exists")
	ErrRoleNotAllowed       = errors.New("not enough rights to set this role")
	ErrAdminSelfRegister    = errors.New("admin accounts cannot be self-registered")
	ErrCannotDeactivateSelf = errors.New("you cannot deactivate your own account")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists, ignoring the user with ID `excludeID`.
		CheckUniqueness(ctx context.Context, username, email string, excludeID int) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of the names, Username or Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)

		CreateSupervision(ctx context.Context, sup Supervision) (Supervision, error)
		QuerySupervisions(ctx context.Context, filter SupervisionFilter) ([]Supervision, error)
		DeleteSupervision(ctx context.Context, id int) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		logger   core.Logger
		tokenGen passwordResetTokenGen
		conf     *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
		tokenGen: passwordResetTokenGen{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludeID int) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludeID); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates a teacher or student account for a visitor. Admins are created by other admins.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if nu.Role == RoleAdmin {
		return User{}, core.NewValidationError(ErrAdminSelfRegister, core.FieldError{Field: "role", Error: ErrAdminSelfRegister.Error()})
	}
	return svc.create(ctx, nu)
}

// Create creates a user on behalf of `actor`, who cannot grant a role above their own.
func (svc *Service) Create(ctx context.Context, actor User, nu NewUser) (User, error) {
	if !CanManageUsers(actor) {
		return User{}, core.ErrForbidden
	}
	if !CanAssignRole(actor, nu.Role) {
		return User{}, core.NewValidationError(ErrRoleNotAllowed, core.FieldError{Field: "role", Error: ErrRoleNotAllowed.Error()})
	}
	return svc.create(ctx, nu)
}

func (svc *Service) create(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Username:  nu.Username,
		Email:     nu.Email,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	users, err := svc.repo.QueryUsers(ctx, filter, core.CleanOrderings(ordering, OrderingFields...))
	return users, errors.Wrap(err, "querying users")
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	return usr, errors.Wrap(err, "getting user by ID")
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	return usr, errors.Wrap(err, "getting user by username or email")
}

// Update applies `uu` to `usr` on behalf of `actor`.
// Only admins can change the role, the active flag, the username or the email.
func (svc *Service) Update(ctx context.Context, actor, usr User, uu UpdateUser) (User, error) {
	if actor.ID != usr.ID && !CanManageUsers(actor) {
		return User{}, core.ErrForbidden
	}
	if uu.HasAdminFields() && !CanManageUsers(actor) {
		return User{}, core.ErrForbidden
	}
	if uu.Role != "" && !CanAssignRole(actor, uu.Role) {
		return User{}, core.NewValidationError(ErrRoleNotAllowed, core.FieldError{Field: "role", Error: ErrRoleNotAllowed.Error()})
	}
	if uu.IsActive != nil && !*uu.IsActive && actor.ID == usr.ID {
		return User{}, core.NewValidationError(ErrCannotDeactivateSelf)
	}

	if uu.FirstName != nil {
		usr.FirstName = *uu.FirstName
	}
	if uu.LastName != nil {
		usr.LastName = *uu.LastName
	}
	if uu.Username != "" {
		usr.Username = uu.Username
	}
	if uu.Email != "" {
		usr.Email = uu.Email
	}
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = NowFunc().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// Deactivate soft deletes a user. Inactive users cannot log in anymore.
func (svc *Service) Deactivate(ctx context.Context, actor User, id int) error {
	if !CanManageUsers(actor) {
		return core.ErrForbidden
	}
	if actor.ID == id {
		return core.NewValidationError(ErrCannotDeactivateSelf)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	usr.IsActive = false
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "deactivating user")
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = NowFunc().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting last login")
}

// SetPassword sets a new password without going through the password policy (admin CLI).
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating password")
}

// RequestPasswordReset emails a password reset link to the active user owning `email`.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return errors.Wrap(err, "getting user by email")
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) (User, error) {
	id, err := decodeUID(data.UID)
	if err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "uid", Error: err.Error()})
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewValidationError(errInvalidUID, core.FieldError{Field: "uid", Error: errInvalidUID.Error()})
		}
		return User{}, errors.Wrap(err, "getting user by ID")
	}
	if err = svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	return svc.SetPassword(ctx, usr, data.Password)
}

func (svc *Service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: map[string]string{
			"Name":     usr.Name(),
			"Username": usr.Username,
			"Role":     usr.Role,
		},
	})
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name(),
			"UID":   encodeUID(usr),
			"Token": svc.tokenGen.makeToken(usr),
		},
	})
	svc.logger.Debug(fmt.Sprintf("password reset requested for user %d", usr.ID), usr)
}
