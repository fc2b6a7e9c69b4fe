package discussion

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/organization"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("discussion")
	ErrReplyNotFound = core.NewNotFoundError("reply")
	ErrOnlyGlobalPin = errors.New("only global discussions can be pinned")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateDiscussion(ctx context.Context, d Discussion) (Discussion, error)
		GetDiscussion(ctx context.Context, id int) (Discussion, error)
		// QueryDiscussions lists the discussions of filter.OrganizationID.
		// Organization discussions are ordered by last activity. Global ones are ordered pinned first, then newest first.
		// A zero filter.Limit means no limit.
		QueryDiscussions(ctx context.Context, filter QueryFilter) ([]Discussion, error)
		UpdateDiscussion(ctx context.Context, d Discussion) (Discussion, error)
		// DeleteDiscussion also deletes its replies.
		DeleteDiscussion(ctx context.Context, id int) error

		// CreateReply also bumps the discussion's `updated_at` to the reply's creation time.
		CreateReply(ctx context.Context, r Reply) (Reply, error)
		GetReply(ctx context.Context, id int) (Reply, error)
		// QueryReplies lists the replies of discussion `discussionID`, oldest first.
		QueryReplies(ctx context.Context, discussionID int) ([]Reply, error)
		DeleteReply(ctx context.Context, id int) error
	}

	OrganizationGetter interface {
		GetByID(ctx context.Context, id int) (organization.Organization, error)
	}

	Service struct {
		repo Repository
		orgs OrganizationGetter
	}
)

func NewService(repo Repository, orgs OrganizationGetter) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(orgs, "orgs"),
	).CheckAndPanic()

	return &Service{repo: repo, orgs: orgs}
}

// Create starts a discussion in the forum of the organization of `p`.
func (svc *Service) Create(ctx context.Context, p access.Principal, nd NewDiscussion) (Discussion, error) {
	if !p.HasOrganization() || !access.CanPostDiscussion(p, p.OrganizationID) {
		return Discussion{}, core.ErrForbidden
	}
	return svc.create(ctx, p, nd, p.OrganizationID, "")
}

// CreateGlobal starts a discussion in the global forum, signed with the author's organization name.
func (svc *Service) CreateGlobal(ctx context.Context, p access.Principal, nd NewDiscussion) (Discussion, error) {
	if !access.CanPostDiscussion(p, 0) {
		return Discussion{}, core.ErrForbidden
	}
	orgName, err := svc.organizationName(ctx, p)
	if err != nil {
		return Discussion{}, err
	}
	return svc.create(ctx, p, nd, 0, orgName)
}

func (svc *Service) create(ctx context.Context, p access.Principal, nd NewDiscussion, orgID int, authorOrg string) (Discussion, error) {
	now := NowFunc().UTC()
	d := Discussion{
		Title:              nd.Title,
		Content:            nd.Content,
		AuthorID:           p.UserID,
		Category:           nd.Category,
		OrganizationID:     orgID,
		AuthorOrganization: authorOrg,
		Tags:               nd.Tags,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if d.Category == "" {
		d.Category = DefaultCategory
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	d, err := svc.repo.CreateDiscussion(ctx, d)
	return d, errors.Wrap(err, "creating discussion")
}

// ListByOrganization lists the discussions of organization `orgID`, most recently active first.
func (svc *Service) ListByOrganization(ctx context.Context, p access.Principal, orgID int, filter QueryFilter) ([]Discussion, error) {
	if err := svc.checkOrganizationReadable(ctx, p, orgID); err != nil {
		return nil, err
	}
	filter.OrganizationID = orgID
	filter.Limit = 0
	filter.Category = core.CleanString(filter.Category, true /* lower */)
	discussions, err := svc.repo.QueryDiscussions(ctx, filter)
	return discussions, errors.Wrap(err, "querying discussions")
}

// ListGlobal lists the global discussions, pinned first then newest first.
func (svc *Service) ListGlobal(ctx context.Context, p access.Principal, filter QueryFilter) ([]Discussion, error) {
	if !access.CanReadDiscussions(p, nil) {
		return nil, core.ErrForbidden
	}
	filter.OrganizationID = 0
	filter.Category = core.CleanString(filter.Category, true /* lower */)
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultGlobalLimit
	case filter.Limit > MaxGlobalLimit:
		filter.Limit = MaxGlobalLimit
	}
	discussions, err := svc.repo.QueryDiscussions(ctx, filter)
	return discussions, errors.Wrap(err, "querying discussions")
}

// Get returns discussion `id` with its replies.
func (svc *Service) Get(ctx context.Context, p access.Principal, id int) (Thread, error) {
	d, err := svc.getReadable(ctx, p, id)
	if err != nil {
		return Thread{}, err
	}
	replies, err := svc.repo.QueryReplies(ctx, d.ID)
	if err != nil {
		return Thread{}, errors.Wrap(err, "querying replies")
	}
	if replies == nil {
		replies = []Reply{}
	}
	return Thread{Discussion: d, Replies: replies}, nil
}

// Reply answers discussion `id`.
func (svc *Service) Reply(ctx context.Context, p access.Principal, id int, nr NewReply) (Reply, error) {
	d, err := svc.getReadable(ctx, p, id)
	if err != nil {
		return Reply{}, err
	}
	return svc.reply(ctx, p, d, nr)
}

// ReplyGlobal answers global discussion `id`.
func (svc *Service) ReplyGlobal(ctx context.Context, p access.Principal, id int, nr NewReply) (Reply, error) {
	d, err := svc.getReadable(ctx, p, id)
	if err != nil {
		return Reply{}, err
	}
	if !d.IsGlobal() {
		return Reply{}, ErrNotFound
	}
	return svc.reply(ctx, p, d, nr)
}

func (svc *Service) reply(ctx context.Context, p access.Principal, d Discussion, nr NewReply) (Reply, error) {
	if !access.CanPostDiscussion(p, d.OrganizationID) {
		return Reply{}, core.ErrForbidden
	}
	r := Reply{
		DiscussionID: d.ID,
		AuthorID:     p.UserID,
		Content:      nr.Content,
		CreatedAt:    NowFunc().UTC(),
	}
	if d.IsGlobal() {
		orgName, err := svc.organizationName(ctx, p)
		if err != nil {
			return Reply{}, err
		}
		r.AuthorOrganization = orgName
	}
	r, err := svc.repo.CreateReply(ctx, r)
	return r, errors.Wrap(err, "creating reply")
}

// Delete removes discussion `id` and its replies. Its author or a moderator only.
func (svc *Service) Delete(ctx context.Context, p access.Principal, id int) error {
	d, err := svc.getReadable(ctx, p, id)
	if err != nil {
		return err
	}
	if !access.CanModerateDiscussion(p, d.AuthorID, d.OrganizationID) {
		return core.ErrForbidden
	}
	return errors.Wrap(svc.repo.DeleteDiscussion(ctx, d.ID), "deleting discussion")
}

// DeleteReply removes reply `replyID` of discussion `id`. Its author or a moderator only.
func (svc *Service) DeleteReply(ctx context.Context, p access.Principal, id, replyID int) error {
	d, err := svc.getReadable(ctx, p, id)
	if err != nil {
		return err
	}
	r, err := svc.repo.GetReply(ctx, replyID)
	if err != nil {
		return errors.Wrap(err, "getting reply")
	}
	if r.DiscussionID != d.ID {
		return ErrReplyNotFound
	}
	if !access.CanModerateDiscussion(p, r.AuthorID, d.OrganizationID) {
		return core.ErrForbidden
	}
	return errors.Wrap(svc.repo.DeleteReply(ctx, r.ID), "deleting reply")
}

// Pin pins or unpins global discussion `id`. Admins only.
func (svc *Service) Pin(ctx context.Context, p access.Principal, id int, pinned bool) (Discussion, error) {
	if !access.CanPinDiscussion(p) {
		return Discussion{}, core.ErrForbidden
	}
	d, err := svc.repo.GetDiscussion(ctx, id)
	if err != nil {
		return Discussion{}, errors.Wrap(err, "getting discussion")
	}
	if !d.IsGlobal() {
		return Discussion{}, core.NewValidationError(ErrOnlyGlobalPin)
	}
	d.IsPinned = pinned
	d, err = svc.repo.UpdateDiscussion(ctx, d)
	return d, errors.Wrap(err, "updating discussion")
}

// Count counts the discussions of organization `orgID`.
func (svc *Service) Count(ctx context.Context, orgID int) (int, error) {
	if orgID == 0 {
		return 0, nil
	}
	discussions, err := svc.repo.QueryDiscussions(ctx, QueryFilter{OrganizationID: orgID})
	if err != nil {
		return 0, errors.Wrap(err, "querying discussions")
	}
	return len(discussions), nil
}

func (svc *Service) getReadable(ctx context.Context, p access.Principal, id int) (Discussion, error) {
	d, err := svc.repo.GetDiscussion(ctx, id)
	if err != nil {
		return Discussion{}, errors.Wrap(err, "getting discussion")
	}
	if d.IsGlobal() {
		if !access.CanReadDiscussions(p, nil) {
			return Discussion{}, ErrNotFound
		}
		return d, nil
	}
	if err = svc.checkOrganizationReadable(ctx, p, d.OrganizationID); err != nil {
		if err == core.ErrForbidden {
			return Discussion{}, ErrNotFound
		}
		return Discussion{}, err
	}
	return d, nil
}

func (svc *Service) checkOrganizationReadable(ctx context.Context, p access.Principal, orgID int) error {
	org, err := svc.orgs.GetByID(ctx, orgID)
	if err != nil {
		return errors.Wrap(err, "getting organization")
	}
	ref := org.Ref()
	if !access.CanViewOrganization(p, ref) {
		return organization.ErrNotFound
	}
	if !access.CanReadDiscussions(p, &ref) {
		return core.ErrForbidden
	}
	return nil
}

func (svc *Service) organizationName(ctx context.Context, p access.Principal) (string, error) {
	if !p.HasOrganization() {
		return "", nil
	}
	org, err := svc.orgs.GetByID(ctx, p.OrganizationID)
	if err != nil {
		return "", errors.Wrap(err, "getting organization")
	}
	return org.Name, nil
}
