package tenant

import (
	"context"

	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/domain"
	"github.com/smartclaim/triage/internal/metrics"
	"github.com/smartclaim/triage/internal/telemetry"
)

// Audit re-checks every search result with ValidateAccess and drops the ones
// uc may not see. A rejected result means the pre-filter let it through, so
// each one is reported at error severity.
func (f *Filter) Audit(ctx context.Context, uc domain.UserContext, results []domain.ScoredChunk) []domain.ScoredChunk {
	if len(results) == 0 {
		return results
	}

	allowed := make([]domain.ScoredChunk, 0, len(results))
	rejected := 0
	for _, r := range results {
		if ValidateAccess(uc, r.Metadata) {
			allowed = append(allowed, r)
			continue
		}
		rejected++
		f.logger.Error("access audit rejected a pre-filtered result",
			zap.String("user_id", uc.UserID),
			zap.String("role", string(uc.Role)),
			zap.String("record_id", r.Metadata.RecordID),
			zap.String("point_id", r.ID))
	}

	if rejected > 0 {
		metrics.RecordAuditRejections(rejected)
		telemetry.CaptureAuditViolation(ctx, string(uc.Role), rejected)
	}

	return allowed
}
