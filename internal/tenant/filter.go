package tenant

import (
	"context"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/metrics"
)

// Filter turns a caller identity into a retrieval predicate.
type Filter struct {
	logger *zap.Logger
}

func NewFilter(logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{logger: logger.Named("tenant")}
}

// Build returns the predicate restricting what uc may retrieve. Only the
// admin branch returns nil. A department manager without a department gets
// an unsatisfiable predicate; any role outside the known set gets the worker
// predicate.
func (f *Filter) Build(ctx context.Context, uc domain.UserContext) *Predicate {
	switch uc.Role {
	case domain.RoleAdmin:
		f.logger.Info("tenant filter bypass for admin",
			zap.String("user_id", uc.UserID))
		metrics.RecordTenantDecision("admin")
		return nil

	case domain.RoleDepartmentManager:
		if !uc.HasDepartment() {
			f.logger.Error("department manager without department assignment, denying all records",
				zap.String("user_id", uc.UserID))
			metrics.RecordTenantDecision("manager_no_department")
			return Never()
		}
		metrics.RecordTenantDecision("manager")
		return Eq(domain.FieldDepartmentID, uc.DepartmentID)

	case domain.RoleWorker:
		metrics.RecordTenantDecision("worker")
		return Eq(domain.FieldCreatedBy, uc.UserID)

	default:
		f.logger.Warn("unknown role, applying worker restriction",
			zap.String("user_id", uc.UserID),
			zap.String("role", string(uc.Role)))
		metrics.RecordTenantDecision("unknown_role")
		return Eq(domain.FieldCreatedBy, uc.UserID)
	}
}

// ValidateAccess decides from raw chunk metadata whether uc may see a record.
// It does not consult the predicate built by Build.
func ValidateAccess(uc domain.UserContext, meta domain.ChunkMetadata) bool {
	switch uc.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleDepartmentManager:
		return uc.DepartmentID != "" && meta.DepartmentID == uc.DepartmentID
	case domain.RoleWorker:
		return uc.UserID != "" && meta.CreatedBy == uc.UserID
	default:
		return false
	}
}
