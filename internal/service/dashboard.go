package service

import (
	"context"

	"github.com/example/complaintflow/backend/internal/models"
)

// taskKeysByRole lists the dashboard counters shown to each role, in
// display order. Keys mirror the my-tasks list filter.
var taskKeysByRole = map[models.Role][]string{
	models.RoleInstaller:           {"in_work", "needs_planning", "planned", "completed"},
	models.RoleManager:             {"in_work", "in_progress", "on_warehouse"},
	models.RoleServiceManager:      {"in_work", "new", "review", "overdue"},
	models.RoleComplaintDepartment: {"in_work", "pending", "overdue"},
	models.RoleAdmin:               {"new", "factory_overdue", "shipping_overdue", "sm_overdue"},
	models.RoleLeader:              {"new", "factory_overdue", "shipping_overdue", "sm_overdue"},
}

// Dashboard returns the total visible complaint count plus one counter per
// task bucket of the actor's role.
func (s *ComplaintService) Dashboard(ctx context.Context, actor *models.User) (map[string]int64, error) {
	visibility := VisibilityScope(actor)
	total, err := s.complaints.Count(ctx, visibility)
	if err != nil {
		return nil, err
	}
	stats := map[string]int64{"total": total}
	for _, key := range taskKeysByRole[actor.Role] {
		scope, ok := TaskScope(actor, key)
		if !ok {
			continue
		}
		n, err := s.complaints.Count(ctx, visibility, scope)
		if err != nil {
			return nil, err
		}
		stats[key] = n
	}
	return stats, nil
}
