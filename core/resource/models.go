package resource

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
)

// Resource types
const (
	TypeNote       = "note"
	TypeVideo      = "video"
	TypePDF        = "pdf"
	TypePhoto      = "photo"
	TypeDocument   = "document"
	TypeLink       = "link"
	TypeAssignment = "assignment"
	TypeOther      = "other"
)

var AllTypes = []string{TypeNote, TypeVideo, TypePDF, TypePhoto, TypeDocument, TypeLink, TypeAssignment, TypeOther}

type Resource struct {
	ID             int       `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ResourceType   string    `json:"resource_type"`
	Content        string    `json:"content"`
	ExternalURL    string    `json:"external_url"`
	GradeLevel     int       `json:"grade_level,omitempty"`
	SubjectID      int       `json:"subject_id,omitempty"`
	ClassID        int       `json:"class_id,omitempty"`
	OrganizationID int       `json:"organization_id,omitempty"`
	UploadedBy     int       `json:"uploaded_by"`
	Tags           []string  `json:"tags"`
	IsPublic       bool      `json:"is_public"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (res Resource) Ref() access.ResourceRef {
	return access.ResourceRef{
		UploadedBy:     res.UploadedBy,
		ClassID:        res.ClassID,
		OrganizationID: res.OrganizationID,
		IsPublic:       res.IsPublic,
	}
}

type NewResource struct {
	Title        string   `json:"title" validate:"required,notblank,max=200"`
	Description  string   `json:"description"`
	ResourceType string   `json:"resource_type" validate:"required,oneof=note video pdf photo document link assignment other"`
	Content      string   `json:"content"`
	ExternalURL  string   `json:"external_url" validate:"omitempty,url"`
	GradeLevel   int      `json:"grade_level" validate:"grade"`
	SubjectID    int      `json:"subject_id"`
	ClassID      int      `json:"class_id"`
	Tags         []string `json:"tags" validate:"max=20,dive,max=50"`
	IsPublic     *bool    `json:"is_public"`
}

func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.ResourceType = core.CleanString(nr.ResourceType, true /* lower */)
	nr.ExternalURL = core.CleanString(nr.ExternalURL)
	nr.Tags = core.CleanStrings(nr.Tags, true /* lower */)
	return validate.Struct(nr)
}

// UpdateResource defines what information may be provided to modify an existing Resource.
// The scope of a resource (class & organization) cannot change.
type UpdateResource struct {
	Title        *string  `json:"title" validate:"omitempty,notblank,max=200"`
	Description  *string  `json:"description"`
	ResourceType *string  `json:"resource_type" validate:"omitempty,oneof=note video pdf photo document link assignment other"`
	Content      *string  `json:"content"`
	ExternalURL  *string  `json:"external_url" validate:"omitempty,url"`
	GradeLevel   *int     `json:"grade_level" validate:"omitempty,grade"`
	SubjectID    *int     `json:"subject_id"`
	Tags         []string `json:"tags" validate:"max=20,dive,max=50"` // nil: unchanged
	IsPublic     *bool    `json:"is_public"`
}

func (ur *UpdateResource) Validate(validate *validator.Validate) error {
	if ur.Tags != nil {
		ur.Tags = core.CleanStrings(ur.Tags, true /* lower */)
	}
	return validate.Struct(ur)
}

// QueryFilter is applied to resource listings; zero fields are ignored.
type QueryFilter struct {
	GradeLevel   int    `query:"grade"`
	SubjectID    int    `query:"subject"`
	ResourceType string `query:"type"`

	OrganizationID int `query:"-"`
	ClassID        int `query:"-"`
}
