package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/erprbac/pkg/errors"
)

var (
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	// ErrPermissionNotFound indicates the permission id or code is not in the catalog.
	ErrPermissionNotFound = apperrors.New("PERMISSION_NOT_FOUND", "Permission not found", http.StatusNotFound)
	// ErrSystemRoleProtected prevents deleting system roles.
	ErrSystemRoleProtected = apperrors.New("SYSTEM_ROLE_PROTECTED", "System roles cannot be deleted", http.StatusForbidden)
	// ErrSuperadminRevoke rejects revocations against a role holding the superadmin bypass.
	ErrSuperadminRevoke = apperrors.New("SUPERADMIN_REVOKE", "Permissions cannot be revoked from a superadmin role", http.StatusForbidden)
	// ErrInvalidRoleLevel reports a level outside the assignable range.
	ErrInvalidRoleLevel = apperrors.New("INVALID_ROLE_LEVEL", "Role level must be between 1 and 98", http.StatusBadRequest)
	// ErrReservedRoleLevel reports an attempt to assign the superadmin level.
	ErrReservedRoleLevel = apperrors.New("RESERVED_ROLE_LEVEL", "Role level 99 is reserved for superadmin", http.StatusBadRequest)
	// ErrRoleNameRequired reports an empty role name.
	ErrRoleNameRequired = apperrors.New("ROLE_NAME_REQUIRED", "Role name is required", http.StatusBadRequest)
	// ErrRoleNameTaken reports a duplicate role name.
	ErrRoleNameTaken = apperrors.New("ROLE_NAME_TAKEN", "Role name already exists", http.StatusBadRequest)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate")
}

// isForeignKeyError detects writes referencing a row that no longer exists.
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23503" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1452 {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}
