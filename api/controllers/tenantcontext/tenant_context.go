package tenantcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/api/middleware"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
)

// ResolveTenantID extracts the caller's distributor and enforces admin access.
func ResolveTenantID(r *http.Request) (uuid.UUID, error) {
	ctx := r.Context()
	tenantID := middleware.TenantIDFromContext(ctx)
	if tenantID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context required")
	}

	if enums.UserRole(middleware.RoleFromContext(ctx)) != enums.UserRoleAdmin {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}

	id, err := uuid.Parse(tenantID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id")
	}
	return id, nil
}
