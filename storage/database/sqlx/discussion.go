package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/discussion"
)

const (
	discussionSelect = `
		SELECT d.id, d.title, d.content, d.author_id, COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username) AS author_name,
			d.category, d.organization_id, d.author_organization, d.tags, d.is_pinned, d.created_at, d.updated_at,
			(SELECT COUNT(*) FROM discussion_reply r WHERE r.discussion_id = d.id) AS reply_count
		FROM discussion d JOIN "user" u ON u.id = d.author_id`

	replySelect = `
		SELECT r.id, r.discussion_id, r.author_id, COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username) AS author_name,
			r.author_organization, r.content, r.created_at
		FROM discussion_reply r JOIN "user" u ON u.id = r.author_id`
)

type discussionRow struct {
	ID                 int            `db:"id"`
	Title              string         `db:"title"`
	Content            string         `db:"content"`
	AuthorID           int            `db:"author_id"`
	AuthorName         string         `db:"author_name"`
	Category           string         `db:"category"`
	OrganizationID     null.Int       `db:"organization_id"`
	AuthorOrganization string         `db:"author_organization"`
	Tags               pq.StringArray `db:"tags"`
	IsPinned           bool           `db:"is_pinned"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
	ReplyCount         int            `db:"reply_count"`
}

func (r discussionRow) discussion() discussion.Discussion {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return discussion.Discussion{
		ID:                 r.ID,
		Title:              r.Title,
		Content:            r.Content,
		AuthorID:           r.AuthorID,
		AuthorName:         r.AuthorName,
		Category:           r.Category,
		OrganizationID:     r.OrganizationID.Int,
		AuthorOrganization: r.AuthorOrganization,
		Tags:               tags,
		IsPinned:           r.IsPinned,
		ReplyCount:         r.ReplyCount,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

type replyRow struct {
	ID                 int       `db:"id"`
	DiscussionID       int       `db:"discussion_id"`
	AuthorID           int       `db:"author_id"`
	AuthorName         string    `db:"author_name"`
	AuthorOrganization string    `db:"author_organization"`
	Content            string    `db:"content"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r replyRow) reply() discussion.Reply {
	return discussion.Reply{
		ID:                 r.ID,
		DiscussionID:       r.DiscussionID,
		AuthorID:           r.AuthorID,
		AuthorName:         r.AuthorName,
		AuthorOrganization: r.AuthorOrganization,
		Content:            r.Content,
		CreatedAt:          r.CreatedAt.UTC(),
	}
}

type discussionRepository struct {
	db *sqlx.DB
}

var _ discussion.Repository = (*discussionRepository)(nil) // interface compliance check

func NewDiscussionRepository(db *sqlx.DB) *discussionRepository {
	return &discussionRepository{db: db}
}

func (repo *discussionRepository) CreateDiscussion(ctx context.Context, d discussion.Discussion) (discussion.Discussion, error) {
	q := repo.db.Rebind(`
		INSERT INTO discussion (title, content, author_id, category, organization_id, author_organization, tags,
			is_pinned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.db.QueryRowxContext(ctx, q,
		d.Title, d.Content, d.AuthorID, d.Category, nullInt(d.OrganizationID), d.AuthorOrganization,
		pq.Array(d.Tags), d.IsPinned, d.CreatedAt.UTC(), d.UpdatedAt.UTC(),
	).Scan(&d.ID)
	if err != nil {
		return discussion.Discussion{}, errors.Wrap(err, "inserting discussion")
	}
	return repo.GetDiscussion(ctx, d.ID)
}

func (repo *discussionRepository) GetDiscussion(ctx context.Context, id int) (discussion.Discussion, error) {
	var row discussionRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(discussionSelect+` WHERE d.id = ?`), id); err != nil {
		return discussion.Discussion{}, trapNoRowsErr(err, discussion.ErrNotFound, "getting discussion")
	}
	return row.discussion(), nil
}

func (repo *discussionRepository) QueryDiscussions(ctx context.Context, filter discussion.QueryFilter) ([]discussion.Discussion, error) {
	var where conditions
	order := ` ORDER BY d.updated_at DESC, d.id DESC`
	if filter.OrganizationID == 0 {
		where.add("d.organization_id IS NULL")
		order = ` ORDER BY d.is_pinned DESC, d.created_at DESC, d.id DESC`
	} else {
		where.add("d.organization_id = ?", filter.OrganizationID)
	}
	if filter.Category != "" {
		where.add("d.category = ?", filter.Category)
	}

	q := discussionSelect + where.String() + order
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		where.args = append(where.args, filter.Limit)
	}

	var rows []discussionRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying discussions")
	}
	discussions := make([]discussion.Discussion, 0, len(rows))
	for _, r := range rows {
		discussions = append(discussions, r.discussion())
	}
	return discussions, nil
}

func (repo *discussionRepository) UpdateDiscussion(ctx context.Context, d discussion.Discussion) (discussion.Discussion, error) {
	q := repo.db.Rebind(`UPDATE discussion SET title = ?, content = ?, category = ?, tags = ?, is_pinned = ?, updated_at = ? WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q, d.Title, d.Content, d.Category, pq.Array(d.Tags), d.IsPinned, d.UpdatedAt.UTC(), d.ID)
	if err != nil {
		return discussion.Discussion{}, errors.Wrap(err, "updating discussion")
	}
	if err = checkAffected(res, discussion.ErrNotFound); err != nil {
		return discussion.Discussion{}, err
	}
	return d, nil
}

func (repo *discussionRepository) DeleteDiscussion(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM discussion WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting discussion")
	}
	return checkAffected(res, discussion.ErrNotFound)
}

func (repo *discussionRepository) CreateReply(ctx context.Context, r discussion.Reply) (discussion.Reply, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE discussion SET updated_at = ? WHERE id = ?`), r.CreatedAt.UTC(), r.DiscussionID)
		if err != nil {
			return errors.Wrap(err, "bumping discussion")
		}
		if err = checkAffected(res, discussion.ErrNotFound); err != nil {
			return err
		}

		q := tx.Rebind(`
			INSERT INTO discussion_reply (discussion_id, author_id, author_organization, content, created_at)
			VALUES (?, ?, ?, ?, ?) RETURNING id`)
		err = tx.QueryRowxContext(ctx, q, r.DiscussionID, r.AuthorID, r.AuthorOrganization, r.Content, r.CreatedAt.UTC()).Scan(&r.ID)
		return errors.Wrap(err, "inserting reply")
	})
	if err != nil {
		return discussion.Reply{}, err
	}
	return repo.GetReply(ctx, r.ID)
}

func (repo *discussionRepository) GetReply(ctx context.Context, id int) (discussion.Reply, error) {
	var row replyRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(replySelect+` WHERE r.id = ?`), id); err != nil {
		return discussion.Reply{}, trapNoRowsErr(err, discussion.ErrReplyNotFound, "getting reply")
	}
	return row.reply(), nil
}

func (repo *discussionRepository) QueryReplies(ctx context.Context, discussionID int) ([]discussion.Reply, error) {
	var rows []replyRow
	q := repo.db.Rebind(replySelect + ` WHERE r.discussion_id = ? ORDER BY r.created_at, r.id`)
	if err := repo.db.SelectContext(ctx, &rows, q, discussionID); err != nil {
		return nil, errors.Wrap(err, "querying replies")
	}
	replies := make([]discussion.Reply, 0, len(rows))
	for _, r := range rows {
		replies = append(replies, r.reply())
	}
	return replies, nil
}

func (repo *discussionRepository) DeleteReply(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM discussion_reply WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting reply")
	}
	return checkAffected(res, discussion.ErrReplyNotFound)
}
