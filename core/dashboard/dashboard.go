// Package dashboard aggregates the home page figures of a user.
package dashboard

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/organization"
	"github.com/trezcool/darasa/core/resource"
	"github.com/trezcool/darasa/core/schedule"
	"github.com/trezcool/darasa/core/user"
)

// UpcomingWindow is how far ahead upcoming events are looked up.
const UpcomingWindow = 7 * 24 * time.Hour

type Stats struct {
	Role             string           `json:"role"`
	OrganizationName string           `json:"organization_name"`
	ClassCount       int              `json:"class_count"`
	StudentCount     int              `json:"student_count"`
	TeacherCount     int              `json:"teacher_count,omitempty"`
	ResourceCount    int              `json:"resource_count"`
	EventCount       int              `json:"event_count,omitempty"`
	DiscussionCount  int              `json:"discussion_count"`
	UpcomingEvents   []schedule.Event `json:"upcoming_events"`
}

type (
	OrganizationService interface {
		GetByID(ctx context.Context, id int) (organization.Organization, error)
		CountMembers(ctx context.Context, orgID int, userRole string) (int, error)
	}

	ClassService interface {
		List(ctx context.Context, p access.Principal, filter class.QueryFilter) ([]class.Class, error)
		CountStudents(ctx context.Context, classIDs []int) (int, error)
	}

	ResourceService interface {
		ListByOrganization(ctx context.Context, p access.Principal, filter resource.QueryFilter) ([]resource.Resource, error)
		Count(ctx context.Context, orgID int) (int, error)
	}

	ScheduleService interface {
		ListForPrincipal(ctx context.Context, p access.Principal, filter schedule.QueryFilter) ([]schedule.Event, error)
		Upcoming(ctx context.Context, p access.Principal, within time.Duration) ([]schedule.Event, error)
	}

	DiscussionService interface {
		Count(ctx context.Context, orgID int) (int, error)
	}

	Service struct {
		orgs        OrganizationService
		classes     ClassService
		resources   ResourceService
		schedule    ScheduleService
		discussions DiscussionService
	}
)

func NewService(
	orgs OrganizationService,
	classes ClassService,
	resources ResourceService,
	sched ScheduleService,
	discussions DiscussionService,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(orgs, "orgs"),
		vala.IsNotNil(classes, "classes"),
		vala.IsNotNil(resources, "resources"),
		vala.IsNotNil(sched, "sched"),
		vala.IsNotNil(discussions, "discussions"),
	).CheckAndPanic()

	return &Service{
		orgs:        orgs,
		classes:     classes,
		resources:   resources,
		schedule:    sched,
		discussions: discussions,
	}
}

// Stats returns the dashboard figures of `p`, which depend on their role.
func (svc *Service) Stats(ctx context.Context, p access.Principal) (Stats, error) {
	if !p.IsActive {
		return Stats{}, core.ErrForbidden
	}
	stats := Stats{Role: p.Role, UpcomingEvents: []schedule.Event{}}
	if p.HasOrganization() {
		org, err := svc.orgs.GetByID(ctx, p.OrganizationID)
		if err != nil {
			return Stats{}, errors.Wrap(err, "getting organization")
		}
		stats.OrganizationName = org.Name
	}

	var err error
	switch p.Role {
	case user.RoleAdmin:
		err = svc.adminStats(ctx, p, &stats)
	case user.RoleTeacher:
		err = svc.teacherStats(ctx, p, &stats)
	case user.RoleStudent:
		err = svc.studentStats(ctx, p, &stats)
	}
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (svc *Service) adminStats(ctx context.Context, p access.Principal, stats *Stats) (err error) {
	if !p.HasOrganization() {
		return nil
	}
	if stats.TeacherCount, err = svc.orgs.CountMembers(ctx, p.OrganizationID, user.RoleTeacher); err != nil {
		return err
	}
	if stats.StudentCount, err = svc.orgs.CountMembers(ctx, p.OrganizationID, user.RoleStudent); err != nil {
		return err
	}
	classes, err := svc.classes.List(ctx, p, class.QueryFilter{})
	if err != nil {
		return err
	}
	stats.ClassCount = len(classes)
	if stats.ResourceCount, err = svc.resources.Count(ctx, p.OrganizationID); err != nil {
		return err
	}
	events, err := svc.schedule.ListForPrincipal(ctx, p, schedule.QueryFilter{})
	if err != nil {
		return err
	}
	stats.EventCount = len(events)
	stats.DiscussionCount, err = svc.discussions.Count(ctx, p.OrganizationID)
	return err
}

// teacherStats only counts what belongs to the current organization of `p`:
// classes left behind in a previous organization are ignored.
func (svc *Service) teacherStats(ctx context.Context, p access.Principal, stats *Stats) (err error) {
	classes, err := svc.classes.List(ctx, p, class.QueryFilter{})
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(classes))
	current := make(map[int]bool, len(classes))
	for _, c := range classes {
		if c.OrganizationID != 0 && c.OrganizationID == p.OrganizationID {
			ids = append(ids, c.ID)
			current[c.ID] = true
		}
	}
	stats.ClassCount = len(ids)
	if stats.StudentCount, err = svc.classes.CountStudents(ctx, ids); err != nil {
		return err
	}
	resources, err := svc.resources.ListByOrganization(ctx, p, resource.QueryFilter{})
	if err != nil {
		return err
	}
	stats.ResourceCount = len(resources)

	upcoming, err := svc.schedule.Upcoming(ctx, p, UpcomingWindow)
	if err != nil {
		return err
	}
	for _, evt := range upcoming {
		if current[evt.ClassID] {
			stats.UpcomingEvents = append(stats.UpcomingEvents, evt)
		}
	}
	stats.DiscussionCount, err = svc.discussions.Count(ctx, p.OrganizationID)
	return err
}

func (svc *Service) studentStats(ctx context.Context, p access.Principal, stats *Stats) (err error) {
	classes, err := svc.classes.List(ctx, p, class.QueryFilter{})
	if err != nil {
		return err
	}
	stats.ClassCount = len(classes)
	resources, err := svc.resources.ListByOrganization(ctx, p, resource.QueryFilter{})
	if err != nil {
		return err
	}
	stats.ResourceCount = len(resources)
	if stats.UpcomingEvents, err = svc.schedule.Upcoming(ctx, p, UpcomingWindow); err != nil {
		return err
	}
	stats.DiscussionCount, err = svc.discussions.Count(ctx, p.OrganizationID)
	return err
}
