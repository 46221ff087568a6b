package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"murmur/internal/models"
	"murmur/internal/thread"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn            func(context.Context, *models.Comment) error
	getByIDFn           func(context.Context, uint) (*models.Comment, error)
	listByPostFn        func(context.Context, uint) ([]*models.Comment, error)
	deleteAuthorizedFn  func(context.Context, uint, uint) (int64, error)
	deleteDescendantsFn func(context.Context, []uint) (int64, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) DeleteAuthorized(ctx context.Context, commentID, actingUserID uint) (int64, error) {
	return s.deleteAuthorizedFn(ctx, commentID, actingUserID)
}
func (s *commentRepoStub) DeleteDescendants(ctx context.Context, ids []uint) (int64, error) {
	return s.deleteDescendantsFn(ctx, ids)
}

// memCommentStore backs a commentRepoStub with an in-memory comment table so
// re-fetch behavior after mutations can be observed end to end.
type memCommentStore struct {
	comments []*models.Comment
	nextID   uint
	// deleteCalls records (commentID, actingUserID) pairs passed to DeleteAuthorized.
	deleteCalls [][2]uint
	// descendantCalls records the id batches passed to DeleteDescendants.
	descendantCalls [][]uint
}

func newMemCommentStore(comments ...*models.Comment) *memCommentStore {
	store := &memCommentStore{nextID: 1}
	for _, c := range comments {
		if c.ID >= store.nextID {
			store.nextID = c.ID + 1
		}
		store.comments = append(store.comments, c)
	}
	return store
}

func (m *memCommentStore) repo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error {
			c.ID = m.nextID
			m.nextID++
			c.CreatedAt = time.Now()
			m.comments = append(m.comments, c)
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			for _, c := range m.comments {
				if c.ID == id {
					return c, nil
				}
			}
			return nil, gorm.ErrRecordNotFound
		},
		listByPostFn: func(_ context.Context, postID uint) ([]*models.Comment, error) {
			var out []*models.Comment
			for _, c := range m.comments {
				if c.PostID == postID {
					out = append(out, c)
				}
			}
			return out, nil
		},
		deleteAuthorizedFn: func(_ context.Context, commentID, actingUserID uint) (int64, error) {
			m.deleteCalls = append(m.deleteCalls, [2]uint{commentID, actingUserID})
			for i, c := range m.comments {
				if c.ID == commentID {
					m.comments = append(m.comments[:i], m.comments[i+1:]...)
					return 1, nil
				}
			}
			return 0, nil
		},
		deleteDescendantsFn: func(_ context.Context, ids []uint) (int64, error) {
			m.descendantCalls = append(m.descendantCalls, ids)
			var removed int64
			kept := m.comments[:0:0]
		outer:
			for _, c := range m.comments {
				for _, id := range ids {
					if c.ID == id {
						removed++
						continue outer
					}
				}
				kept = append(kept, c)
			}
			m.comments = kept
			return removed, nil
		},
	}
}

// postOwnedBy returns a post repository whose every post belongs to ownerID.
func postOwnedBy(ownerID uint) *postRepoStub {
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
		return &models.Post{ID: id, UserID: ownerID}, nil
	}
	return repo
}

func seedComment(id, postID, userID uint, parentID *uint) *models.Comment {
	return &models.Comment{
		ID:        id,
		Content:   "seed",
		PostID:    postID,
		UserID:    userID,
		ParentID:  parentID,
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
	}
}

func TestDiscussionService_Load(t *testing.T) {
	t.Parallel()

	t.Run("builds forest from flat list", func(t *testing.T) {
		t.Parallel()
		parent := uint(1)
		store := newMemCommentStore(
			seedComment(1, 5, 2, nil),
			seedComment(2, 5, 3, &parent),
			seedComment(3, 5, 2, nil),
		)
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))

		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, uint(5), d.PostID())
		assert.Equal(t, uint(9), d.PostOwnerID())
		assert.Equal(t, []uint{1, 3}, d.Forest().RootIDs())
		assert.Equal(t, []uint{2}, d.Forest().ChildIDs(1))
	})

	t.Run("missing post is not found", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postRepo.getByIDFn = func(context.Context, uint, uint) (*models.Post, error) {
			return nil, gorm.ErrRecordNotFound
		}
		svc := NewDiscussionService(newMemCommentStore().repo(), postRepo)
		_, err := svc.Load(context.Background(), 404)
		assertAppErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("list failure is store unavailable", func(t *testing.T) {
		t.Parallel()
		repo := newMemCommentStore().repo()
		repo.listByPostFn = func(context.Context, uint) ([]*models.Comment, error) {
			return nil, errors.New("connection refused")
		}
		svc := NewDiscussionService(repo, postOwnedBy(1))
		_, err := svc.Load(context.Background(), 5)
		assertAppErrorCode(t, err, models.CodeStoreUnavailable)
	})

	t.Run("cyclic parent references are data integrity failures", func(t *testing.T) {
		t.Parallel()
		a, b := uint(1), uint(2)
		repo := newMemCommentStore().repo()
		repo.listByPostFn = func(context.Context, uint) ([]*models.Comment, error) {
			return []*models.Comment{
				seedComment(1, 5, 2, &b),
				seedComment(2, 5, 2, &a),
			}, nil
		}
		svc := NewDiscussionService(repo, postOwnedBy(1))
		_, err := svc.Load(context.Background(), 5)
		assertAppErrorCode(t, err, models.CodeDataIntegrity)
		assert.ErrorIs(t, err, thread.ErrCycleDetected)
	})
}

func TestDiscussion_AddComment(t *testing.T) {
	t.Parallel()

	t.Run("success re-fetches and surfaces the stored record", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore(seedComment(1, 5, 2, nil))
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		comment, err := d.AddComment(context.Background(), 3, "  hello there  ")
		require.NoError(t, err)
		assert.Equal(t, "hello there", comment.Content)
		assert.NotZero(t, comment.ID)
		assert.Nil(t, comment.ParentID)

		// The new comment must appear in the rebuilt forest, not just locally.
		assert.True(t, d.Forest().Contains(comment.ID))
		assert.Equal(t, 2, d.Forest().Size())
	})

	t.Run("anonymous viewers cannot comment", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore()
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		_, err = d.AddComment(context.Background(), thread.AnonymousUserID, "hi")
		assertAppErrorCode(t, err, models.CodeUnauthenticated)
		assert.Empty(t, store.comments)
	})

	t.Run("blank content fails before the store", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore()
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		_, err = d.AddComment(context.Background(), 3, "   \n\t ")
		assertAppErrorCode(t, err, models.CodeValidation)
		assert.Empty(t, store.comments)
	})

	t.Run("oversized content fails validation", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore()
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		_, err = d.AddComment(context.Background(), 3, strings.Repeat("x", 10001))
		assertAppErrorCode(t, err, models.CodeValidation)
	})

	t.Run("insert failure is store unavailable", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore()
		repo := store.repo()
		repo.createFn = func(context.Context, *models.Comment) error {
			return errors.New("write timeout")
		}
		svc := NewDiscussionService(repo, postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		_, err = d.AddComment(context.Background(), 3, "hi")
		assertAppErrorCode(t, err, models.CodeStoreUnavailable)
	})
}

func TestDiscussion_AddReply(t *testing.T) {
	t.Parallel()

	t.Run("reply nests under its parent", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore(seedComment(1, 5, 2, nil))
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		reply, err := d.AddReply(context.Background(), 3, 1, "agreed")
		require.NoError(t, err)
		require.NotNil(t, reply.ParentID)
		assert.Equal(t, uint(1), *reply.ParentID)
		assert.Equal(t, []uint{reply.ID}, d.Forest().ChildIDs(1))
	})

	t.Run("unknown parent fails before the store", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore(seedComment(1, 5, 2, nil))
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		_, err = d.AddReply(context.Background(), 3, 42, "into the void")
		assertAppErrorCode(t, err, models.CodeUnknownParent)
		assert.Len(t, store.comments, 1)
	})
}

func TestDiscussion_DeleteComment(t *testing.T) {
	t.Parallel()

	t.Run("author deletes own comment and its subtree", func(t *testing.T) {
		t.Parallel()
		p1, p2 := uint(1), uint(2)
		store := newMemCommentStore(
			seedComment(1, 5, 3, nil),
			seedComment(2, 5, 4, &p1),
			seedComment(3, 5, 3, &p2),
			seedComment(4, 5, 4, nil),
		)
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		require.NoError(t, d.DeleteComment(context.Background(), 3, 1))

		assert.Equal(t, [][2]uint{{1, 3}}, store.deleteCalls)
		require.Len(t, store.descendantCalls, 1)
		assert.ElementsMatch(t, []uint{2, 3}, store.descendantCalls[0])

		// Local state was patched without a re-fetch.
		assert.Equal(t, 1, d.Forest().Size())
		assert.Equal(t, []uint{4}, d.Forest().RootIDs())
	})

	t.Run("post author may moderate any comment", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore(seedComment(1, 5, 3, nil))
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		require.NoError(t, d.DeleteComment(context.Background(), 9, 1))
		assert.Zero(t, d.Forest().Size())
	})

	t.Run("unrelated user is denied without a store call", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore(seedComment(1, 5, 3, nil))
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		err = d.DeleteComment(context.Background(), 7, 1)
		assertAppErrorCode(t, err, models.CodeForbidden)
		assert.Empty(t, store.deleteCalls)
		assert.Equal(t, 1, d.Forest().Size())
	})

	t.Run("missing comment is not found", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore(seedComment(1, 5, 3, nil))
		svc := NewDiscussionService(store.repo(), postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		err = d.DeleteComment(context.Background(), 3, 42)
		assertAppErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("zero matched rows is forbidden, not success", func(t *testing.T) {
		t.Parallel()
		store := newMemCommentStore(seedComment(1, 5, 3, nil))
		repo := store.repo()
		repo.deleteAuthorizedFn = func(context.Context, uint, uint) (int64, error) {
			return 0, nil
		}
		svc := NewDiscussionService(repo, postOwnedBy(9))
		d, err := svc.Load(context.Background(), 5)
		require.NoError(t, err)

		err = d.DeleteComment(context.Background(), 3, 1)
		assertAppErrorCode(t, err, models.CodeForbidden)
		assert.Equal(t, 1, d.Forest().Size())
	})
}
