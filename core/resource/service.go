package resource

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/class"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("resource")
	ErrURLRequired    = errors.New("an external URL is required for links")
	ErrNoOrganization = errors.New("you must belong to an organization to share resources")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateResource(ctx context.Context, res Resource) (Resource, error)
		GetResource(ctx context.Context, id int) (Resource, error)
		// QueryResources applies AND operation on the non-zero QueryFilter fields, newest first.
		QueryResources(ctx context.Context, filter QueryFilter) ([]Resource, error)
		UpdateResource(ctx context.Context, res Resource) (Resource, error)
		DeleteResource(ctx context.Context, id int) error
	}

	ClassGetter interface {
		Get(ctx context.Context, p access.Principal, id int) (class.Class, error)
		GetManaged(ctx context.Context, p access.Principal, id int) (class.Class, error)
		VisibleIDs(ctx context.Context, p access.Principal) ([]int, error)
	}

	Service struct {
		repo    Repository
		classes ClassGetter
	}
)

func NewService(repo Repository, classes ClassGetter) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(classes, "classes"),
	).CheckAndPanic()

	return &Service{repo: repo, classes: classes}
}

// Create shares a resource.
// Class resources inherit the grade level, subject and organization of their class when omitted.
// Other resources belong to the organization of `p`.
func (svc *Service) Create(ctx context.Context, p access.Principal, nr NewResource) (Resource, error) {
	if nr.ResourceType == TypeLink && nr.ExternalURL == "" {
		return Resource{}, core.NewValidationError(ErrURLRequired, core.FieldError{Field: "external_url", Error: ErrURLRequired.Error()})
	}

	now := NowFunc().UTC()
	res := Resource{
		Title:        nr.Title,
		Description:  nr.Description,
		ResourceType: nr.ResourceType,
		Content:      nr.Content,
		ExternalURL:  nr.ExternalURL,
		GradeLevel:   nr.GradeLevel,
		SubjectID:    nr.SubjectID,
		UploadedBy:   p.UserID,
		Tags:         nr.Tags,
		IsPublic:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if nr.IsPublic != nil {
		res.IsPublic = *nr.IsPublic
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}

	if nr.ClassID != 0 {
		c, err := svc.classes.GetManaged(ctx, p, nr.ClassID)
		if err != nil {
			return Resource{}, err
		}
		res.ClassID = c.ID
		res.OrganizationID = c.OrganizationID
		if res.GradeLevel == 0 {
			res.GradeLevel = c.GradeLevel
		}
		if res.SubjectID == 0 {
			res.SubjectID = c.SubjectID
		}
	} else {
		if !p.HasOrganization() {
			return Resource{}, core.NewValidationError(ErrNoOrganization)
		}
		res.OrganizationID = p.OrganizationID
	}

	res, err := svc.repo.CreateResource(ctx, res)
	return res, errors.Wrap(err, "creating resource")
}

// ListByOrganization lists the resources of the organization of `p` that they may see, newest first.
func (svc *Service) ListByOrganization(ctx context.Context, p access.Principal, filter QueryFilter) ([]Resource, error) {
	if !p.HasOrganization() {
		return []Resource{}, nil
	}
	filter.OrganizationID = p.OrganizationID
	filter.ClassID = 0
	filter.ResourceType = core.CleanString(filter.ResourceType, true /* lower */)

	all, err := svc.repo.QueryResources(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}

	classIDs, err := svc.classes.VisibleIDs(ctx, p)
	if err != nil {
		return nil, err
	}
	visibleClasses := make(map[int]bool, len(classIDs))
	for _, id := range classIDs {
		visibleClasses[id] = true
	}

	resources := make([]Resource, 0, len(all))
	for _, res := range all {
		if access.CanViewResource(p, res.Ref(), visibleClasses[res.ClassID]) {
			resources = append(resources, res)
		}
	}
	return resources, nil
}

// ListByClass lists the resources of class `classID`, newest first.
func (svc *Service) ListByClass(ctx context.Context, p access.Principal, classID int) ([]Resource, error) {
	c, err := svc.classes.Get(ctx, p, classID)
	if err != nil {
		return nil, err
	}
	resources, err := svc.repo.QueryResources(ctx, QueryFilter{ClassID: c.ID})
	return resources, errors.Wrap(err, "querying resources")
}

// Get returns resource `id` if `p` can see it. Hidden resources are reported as not found.
func (svc *Service) Get(ctx context.Context, p access.Principal, id int) (Resource, error) {
	res, err := svc.repo.GetResource(ctx, id)
	if err != nil {
		return Resource{}, errors.Wrap(err, "getting resource")
	}

	var classVisible bool
	if res.ClassID != 0 && res.UploadedBy != p.UserID {
		_, err = svc.classes.Get(ctx, p, res.ClassID)
		switch {
		case err == nil:
			classVisible = true
		case !core.IsNotFound(err):
			return Resource{}, err
		}
	}
	if !access.CanViewResource(p, res.Ref(), classVisible) {
		return Resource{}, ErrNotFound
	}
	return res, nil
}

func (svc *Service) Update(ctx context.Context, p access.Principal, id int, ur UpdateResource) (Resource, error) {
	res, err := svc.Get(ctx, p, id)
	if err != nil {
		return Resource{}, err
	}
	if !access.CanModifyOwned(p, res.UploadedBy, res.OrganizationID) {
		return Resource{}, core.ErrForbidden
	}

	if ur.Title != nil {
		res.Title = core.CleanString(*ur.Title)
	}
	if ur.Description != nil {
		res.Description = *ur.Description
	}
	if ur.ResourceType != nil {
		res.ResourceType = core.CleanString(*ur.ResourceType, true /* lower */)
	}
	if ur.Content != nil {
		res.Content = *ur.Content
	}
	if ur.ExternalURL != nil {
		res.ExternalURL = core.CleanString(*ur.ExternalURL)
	}
	if ur.GradeLevel != nil {
		res.GradeLevel = *ur.GradeLevel
	}
	if ur.SubjectID != nil {
		res.SubjectID = *ur.SubjectID
	}
	if ur.Tags != nil {
		res.Tags = ur.Tags
	}
	if ur.IsPublic != nil {
		res.IsPublic = *ur.IsPublic
	}
	if res.ResourceType == TypeLink && res.ExternalURL == "" {
		return Resource{}, core.NewValidationError(ErrURLRequired, core.FieldError{Field: "external_url", Error: ErrURLRequired.Error()})
	}
	res.UpdatedAt = NowFunc().UTC()

	res, err = svc.repo.UpdateResource(ctx, res)
	return res, errors.Wrap(err, "updating resource")
}

func (svc *Service) Delete(ctx context.Context, p access.Principal, id int) error {
	res, err := svc.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if !access.CanModifyOwned(p, res.UploadedBy, res.OrganizationID) {
		return core.ErrForbidden
	}
	return errors.Wrap(svc.repo.DeleteResource(ctx, res.ID), "deleting resource")
}

// Count counts the resources of organization `orgID`.
func (svc *Service) Count(ctx context.Context, orgID int) (int, error) {
	if orgID == 0 {
		return 0, nil
	}
	resources, err := svc.repo.QueryResources(ctx, QueryFilter{OrganizationID: orgID})
	if err != nil {
		return 0, errors.Wrap(err, "querying resources")
	}
	return len(resources), nil
}
