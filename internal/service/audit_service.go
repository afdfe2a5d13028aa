package service

import (
	"context"

	"posfinance/internal/model"
	"posfinance/internal/repository"

	"github.com/google/uuid"
)

// AuditService exposes the read side of the audit trail. Writes happen
// inside the owning service transactions, never through here.
type AuditService interface {
	List(ctx context.Context, companyID uuid.UUID, action, userID string, page, limit int) ([]model.AuditLog, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) List(ctx context.Context, companyID uuid.UUID, action, userID string, page, limit int) ([]model.AuditLog, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	filter := repository.AuditListFilter{
		CompanyID: companyID,
		Action:    action,
		Page:      page,
		Limit:     limit,
	}
	if userID != "" {
		filter.UserID = parseUserID(userID)
	}
	return s.repo.List(ctx, filter)
}
