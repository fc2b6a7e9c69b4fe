package organization

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
)

type Organization struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	About             string    `json:"about"`
	Location          string    `json:"location"`
	ContactEmail      string    `json:"contact_email"`
	ContactPhone      string    `json:"contact_phone"`
	Website           string    `json:"website"`
	IsPublic          bool      `json:"is_public"`
	DiscussionPrivacy string    `json:"discussion_privacy"`
	CreatedBy         int       `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (org Organization) Ref() access.OrganizationRef {
	return access.OrganizationRef{ID: org.ID, IsPublic: org.IsPublic, DiscussionPrivacy: org.DiscussionPrivacy}
}

// Membership ties a user to their (single) organization.
type Membership struct {
	ID             int       `json:"id"`
	OrganizationID int       `json:"organization_id"`
	UserID         int       `json:"user_id"`
	Role           string    `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
}

// Member is a Membership along with the member's user details.
type Member struct {
	Membership
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserRole  string `json:"user_role"`
	IsActive  bool   `json:"is_active"`
}

// JoinResult tells what happened to the previous membership of a user joining an organization.
type JoinResult struct {
	Membership             Membership `json:"membership"`
	Switched               bool       `json:"switched"`
	PreviousOrganizationID int        `json:"previous_organization_id,omitempty"`
}

type NewOrganization struct {
	Name              string `json:"name" validate:"required,notblank,max=200"`
	Description       string `json:"description"`
	About             string `json:"about"`
	Location          string `json:"location" validate:"max=200"`
	ContactEmail      string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone      string `json:"contact_phone" validate:"max=50"`
	Website           string `json:"website" validate:"omitempty,url"`
	IsPublic          *bool  `json:"is_public"`
	DiscussionPrivacy string `json:"discussion_privacy" validate:"omitempty,oneof=public private"`
}

func (no *NewOrganization) Validate(validate *validator.Validate) error {
	no.Name = core.CleanString(no.Name)
	no.Location = core.CleanString(no.Location)
	no.ContactEmail = core.CleanString(no.ContactEmail, true /* lower */)
	no.ContactPhone = core.CleanString(no.ContactPhone)
	no.Website = core.CleanString(no.Website)
	no.DiscussionPrivacy = core.CleanString(no.DiscussionPrivacy, true /* lower */)
	return validate.Struct(no)
}

// UpdateOrganization defines what information may be provided to modify an existing Organization.
type UpdateOrganization struct {
	Name              *string `json:"name" validate:"omitempty,notblank,max=200"`
	Description       *string `json:"description"`
	About             *string `json:"about"`
	Location          *string `json:"location" validate:"omitempty,max=200"`
	ContactEmail      *string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone      *string `json:"contact_phone" validate:"omitempty,max=50"`
	Website           *string `json:"website" validate:"omitempty,url"`
	IsPublic          *bool   `json:"is_public"`
	DiscussionPrivacy *string `json:"discussion_privacy" validate:"omitempty,oneof=public private"`
}

func (uo *UpdateOrganization) Validate(validate *validator.Validate) error {
	return validate.Struct(uo)
}

type UpdateMember struct {
	Role string `json:"role" validate:"required,oneof=admin moderator member"`
}

type QueryFilter struct {
	Search string `query:"search"`
}

type MemberFilter struct {
	UserRoles []string `query:"role"`
}
