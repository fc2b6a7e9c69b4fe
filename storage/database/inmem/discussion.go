package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/discussion"
)

type discussionRepository struct {
	db *DB
}

var _ discussion.Repository = (*discussionRepository)(nil) // interface compliance check

func NewDiscussionRepository(db *DB) *discussionRepository {
	return &discussionRepository{db: db}
}

func (repo *discussionRepository) fill(d discussion.Discussion) discussion.Discussion {
	d.AuthorName = repo.db.userName(d.AuthorID)
	d.ReplyCount = 0
	for _, r := range repo.db.replies {
		if r.DiscussionID == d.ID {
			d.ReplyCount++
		}
	}
	return d
}

func (repo *discussionRepository) CreateDiscussion(ctx context.Context, d discussion.Discussion) (discussion.Discussion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	d.ID = repo.db.nextPK("discussion")
	repo.db.discussions[d.ID] = &d
	return repo.fill(d), nil
}

func (repo *discussionRepository) GetDiscussion(ctx context.Context, id int) (discussion.Discussion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.discussions[id]; ok {
		return repo.fill(*d), nil
	}
	return discussion.Discussion{}, discussion.ErrNotFound
}

func (repo *discussionRepository) QueryDiscussions(ctx context.Context, filter discussion.QueryFilter) ([]discussion.Discussion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	discussions := make([]discussion.Discussion, 0)
	for _, d := range repo.db.discussions {
		if d.OrganizationID != filter.OrganizationID ||
			(filter.Category != "" && d.Category != filter.Category) {
			continue
		}
		discussions = append(discussions, repo.fill(*d))
	}

	global := filter.OrganizationID == 0
	sort.Slice(discussions, func(i, j int) bool {
		a, b := discussions[i], discussions[j]
		if global {
			if a.IsPinned != b.IsPinned {
				return a.IsPinned
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		} else if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})

	if filter.Limit > 0 && len(discussions) > filter.Limit {
		discussions = discussions[:filter.Limit]
	}
	return discussions, nil
}

func (repo *discussionRepository) UpdateDiscussion(ctx context.Context, d discussion.Discussion) (discussion.Discussion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.discussions[d.ID]; !ok {
		return discussion.Discussion{}, discussion.ErrNotFound
	}
	repo.db.discussions[d.ID] = &d
	return repo.fill(d), nil
}

func (repo *discussionRepository) DeleteDiscussion(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.discussions[id]; !ok {
		return discussion.ErrNotFound
	}
	delete(repo.db.discussions, id)
	for rid, r := range repo.db.replies {
		if r.DiscussionID == id {
			delete(repo.db.replies, rid)
		}
	}
	return nil
}

func (repo *discussionRepository) CreateReply(ctx context.Context, r discussion.Reply) (discussion.Reply, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	d, ok := repo.db.discussions[r.DiscussionID]
	if !ok {
		return discussion.Reply{}, discussion.ErrNotFound
	}
	r.ID = repo.db.nextPK("reply")
	repo.db.replies[r.ID] = &r
	d.UpdatedAt = r.CreatedAt

	r.AuthorName = repo.db.userName(r.AuthorID)
	return r, nil
}

func (repo *discussionRepository) GetReply(ctx context.Context, id int) (discussion.Reply, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.replies[id]; ok {
		reply := *r
		reply.AuthorName = repo.db.userName(r.AuthorID)
		return reply, nil
	}
	return discussion.Reply{}, discussion.ErrReplyNotFound
}

func (repo *discussionRepository) QueryReplies(ctx context.Context, discussionID int) ([]discussion.Reply, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	replies := make([]discussion.Reply, 0)
	for _, r := range repo.db.replies {
		if r.DiscussionID == discussionID {
			reply := *r
			reply.AuthorName = repo.db.userName(r.AuthorID)
			replies = append(replies, reply)
		}
	}
	sort.Slice(replies, func(i, j int) bool {
		if !replies[i].CreatedAt.Equal(replies[j].CreatedAt) {
			return replies[i].CreatedAt.Before(replies[j].CreatedAt)
		}
		return replies[i].ID < replies[j].ID
	})
	return replies, nil
}

func (repo *discussionRepository) DeleteReply(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.replies[id]; !ok {
		return discussion.ErrReplyNotFound
	}
	delete(repo.db.replies, id)
	return nil
}
