package service

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/halqat/internal/dto"
	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/repository"
)

// passwordCost is the bcrypt work factor; tests lower it.
var passwordCost = bcrypt.DefaultCost

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type userService struct {
	mutator
}

// NewUserService constructs the account mutation handler.
func NewUserService(deps MutationDeps) MutationHandler {
	return &userService{mutator: newMutator(deps, "user", models.PermManageUsers, KindUsers, KindHalaqat)}
}

func (s *userService) Handle(ctx context.Context, rc RequestContext, action string, form url.Values) MutationResult {
	return s.dispatch(ctx, rc, action, form, map[string]actionFunc{
		"add":            s.add,
		"edit":           s.edit,
		"toggle_active":  s.toggleActive,
		"reset_password": s.resetPassword,
	})
}

// canManage reports whether rc may create or change accounts of role. Only programmers manage
// programmer accounts.
func canManage(rc RequestContext, role models.Role) bool {
	return role != models.RoleProgrammer || rc.User.Role == models.RoleProgrammer
}

type identity struct {
	column   string
	value    string
	username *string
	code     *string
}

// resolveIdentity enforces that teachers sign in with a personal code and everyone else with a username.
func resolveIdentity(payload dto.UserForm) (identity, error) {
	role := models.Role(payload.Role)
	if role.UsesPersonalCode() {
		if payload.PersonalCode == "" {
			return identity{}, invalid("personal_code", "Personal code is required for teachers")
		}
		code := payload.PersonalCode
		return identity{column: "personal_code", value: code, code: &code}, nil
	}
	if payload.Username == "" {
		return identity{}, invalid("username", "Username is required for %s accounts", role)
	}
	username := payload.Username
	return identity{column: "username", value: username, username: &username}, nil
}

func (s *userService) add(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	var payload dto.UserForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	role := models.Role(payload.Role)
	if !canManage(rc, role) {
		return outcome{}, ErrForbidden
	}
	ident, err := resolveIdentity(payload)
	if err != nil {
		return outcome{}, err
	}
	if payload.Password == "" {
		return outcome{}, invalid("password", "Password is required")
	}
	hash, err := hashPassword(payload.Password)
	if err != nil {
		return outcome{}, err
	}
	duplicate := "The " + strings.ReplaceAll(ident.column, "_", " ") + " \"" + ident.value + "\" is already in use"

	id, err := s.transact(ctx, rc, "add", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		if taken, err := tx.Users.IdentifierTaken(ctx, ident.column, ident.value, 0); err != nil {
			return 0, nil, err
		} else if taken {
			return 0, nil, conflict("%s", duplicate)
		}
		user := models.User{
			Username:     ident.username,
			PersonalCode: ident.code,
			PasswordHash: hash,
			Role:         role,
			FullName:     payload.FullName,
			Phone:        payload.Phone,
			Email:        payload.Email,
			IsActive:     true,
		}
		if err := tx.Users.Create(ctx, &user); err != nil {
			return 0, nil, uniqueConflict(err, duplicate)
		}
		return user.ID, map[string]interface{}{"role": user.Role, ident.column: ident.value}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "User added successfully", id: id}, nil
}

func (s *userService) edit(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	var payload dto.UserForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	role := models.Role(payload.Role)
	if !canManage(rc, role) {
		return outcome{}, ErrForbidden
	}
	ident, err := resolveIdentity(payload)
	if err != nil {
		return outcome{}, err
	}
	var hash string
	if payload.Password != "" {
		if hash, err = hashPassword(payload.Password); err != nil {
			return outcome{}, err
		}
	}
	duplicate := "The " + strings.ReplaceAll(ident.column, "_", " ") + " \"" + ident.value + "\" is already in use"

	_, err = s.transact(ctx, rc, "edit", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		existing, err := tx.Users.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if !canManage(rc, existing.Role) {
			return 0, nil, ErrForbidden
		}
		if existing.ID == rc.User.ID && existing.Role != role {
			return 0, nil, conflict("You cannot change your own role")
		}
		if taken, err := tx.Users.IdentifierTaken(ctx, ident.column, ident.value, id); err != nil {
			return 0, nil, err
		} else if taken {
			return 0, nil, conflict("%s", duplicate)
		}

		updates := map[string]interface{}{
			"role":          role,
			"full_name":     payload.FullName,
			"phone":         payload.Phone,
			"email":         payload.Email,
			"username":      ident.username,
			"personal_code": ident.code,
		}
		if hash != "" {
			updates["password_hash"] = hash
		}
		if err := tx.Users.Update(ctx, id, updates); err != nil {
			return 0, nil, uniqueConflict(notFound(err), duplicate)
		}
		return id, map[string]interface{}{"role": role, "password_changed": hash != ""}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "User updated successfully", id: id}, nil
}

func (s *userService) toggleActive(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	if id == rc.User.ID {
		return outcome{}, conflict("You cannot deactivate your own account")
	}

	var active bool
	_, err = s.transact(ctx, rc, "toggle_active", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		user, err := tx.Users.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if !canManage(rc, user.Role) {
			return 0, nil, ErrForbidden
		}
		active = !user.IsActive
		if err := tx.Users.Update(ctx, id, map[string]interface{}{"is_active": active}); err != nil {
			return 0, nil, notFound(err)
		}
		return id, map[string]interface{}{"is_active": active}, nil
	})
	if err != nil {
		return outcome{}, err
	}
	if active {
		return outcome{message: "User activated successfully", id: id}, nil
	}
	return outcome{message: "User deactivated successfully", id: id}, nil
}

func (s *userService) resetPassword(ctx context.Context, rc RequestContext, form url.Values) (outcome, error) {
	id, err := formID(form, "id")
	if err != nil {
		return outcome{}, err
	}
	var payload dto.PasswordForm
	if err := bindForm(s.validate, &payload, form); err != nil {
		return outcome{}, err
	}
	hash, err := hashPassword(payload.Password)
	if err != nil {
		return outcome{}, err
	}

	_, err = s.transact(ctx, rc, "reset_password", func(tx *repository.Store) (uint, map[string]interface{}, error) {
		user, err := tx.Users.GetByID(ctx, id)
		if err != nil {
			return 0, nil, notFound(err)
		}
		if !canManage(rc, user.Role) {
			return 0, nil, ErrForbidden
		}
		if err := tx.Users.Update(ctx, id, map[string]interface{}{"password_hash": hash}); err != nil {
			return 0, nil, notFound(err)
		}
		return id, nil, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Password reset successfully", id: id}, nil
}
