package discussion

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

const (
	DefaultCategory = "general"

	DefaultGlobalLimit = 50
	MaxGlobalLimit     = 200
)

var Categories = []string{DefaultCategory, "academic", "announcement", "event", "help", "resource", "other"}

type Discussion struct {
	ID                 int       `json:"id"`
	Title              string    `json:"title"`
	Content            string    `json:"content"`
	AuthorID           int       `json:"author_id"`
	AuthorName         string    `json:"author_name"`
	Category           string    `json:"category"`
	OrganizationID     int       `json:"organization_id,omitempty"` // 0: global forum
	AuthorOrganization string    `json:"author_organization,omitempty"`
	Tags               []string  `json:"tags"`
	IsPinned           bool      `json:"is_pinned"`
	ReplyCount         int       `json:"reply_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (d Discussion) IsGlobal() bool { return d.OrganizationID == 0 }

type Reply struct {
	ID                 int       `json:"id"`
	DiscussionID       int       `json:"discussion_id"`
	AuthorID           int       `json:"author_id"`
	AuthorName         string    `json:"author_name"`
	AuthorOrganization string    `json:"author_organization,omitempty"`
	Content            string    `json:"content"`
	CreatedAt          time.Time `json:"created_at"`
}

// Thread is a discussion along with its replies, oldest first.
type Thread struct {
	Discussion
	Replies []Reply `json:"replies"`
}

type NewDiscussion struct {
	Title    string   `json:"title" validate:"required,notblank,max=200"`
	Content  string   `json:"content" validate:"required,notblank"`
	Category string   `json:"category" validate:"omitempty,oneof=general academic announcement event help resource other"`
	Tags     []string `json:"tags" validate:"max=10,dive,max=50"`
}

func (nd *NewDiscussion) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	nd.Content = core.CleanString(nd.Content)
	nd.Category = core.CleanString(nd.Category, true /* lower */)
	nd.Tags = core.CleanStrings(nd.Tags, true /* lower */)
	return validate.Struct(nd)
}

type NewReply struct {
	Content string `json:"content" validate:"required,notblank"`
}

func (nr *NewReply) Validate(validate *validator.Validate) error {
	nr.Content = core.CleanString(nr.Content)
	return validate.Struct(nr)
}

type PinRequest struct {
	Pinned bool `json:"pinned"`
}

type QueryFilter struct {
	Category string `query:"category"`
	Limit    int    `query:"limit"`

	OrganizationID int `query:"-"` // 0: global forum
}
