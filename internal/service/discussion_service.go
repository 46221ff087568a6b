// Package service holds the business rules between HTTP handlers and repositories.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/thread"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const maxCommentLen = 10000

// DiscussionService loads per-post discussions and carries the repositories
// every Discussion session mutates through.
type DiscussionService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

// NewDiscussionService creates a new DiscussionService.
func NewDiscussionService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
) *DiscussionService {
	return &DiscussionService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
	}
}

// Discussion is one post's loaded comment state: the flat list as the store
// returned it plus the forest built from it. Operations are serialized by a
// mutex so a mutation never interleaves with a read of half-updated state.
type Discussion struct {
	svc *DiscussionService

	mu          sync.Mutex
	postID      uint
	postOwnerID uint
	comments    []*models.Comment
	forest      *thread.Forest
}

// Load fetches the post (for its owner id), the complete comment list in
// ascending creation order, and builds the reply forest. Store failures
// surface as STORE_UNAVAILABLE; a cycle in the stored parent references
// surfaces as DATA_INTEGRITY instead of hanging the render.
func (s *DiscussionService) Load(ctx context.Context, postID uint) (*Discussion, error) {
	span, ctx := observability.NewSpan(ctx, "discussion.load")
	defer span.End()
	span.AddAttributes(attribute.Int("post.id", int(postID)))

	post, err := s.postRepo.GetByID(ctx, postID, 0)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		span.SetError(err)
		return nil, models.NewStoreUnavailableError(err)
	}

	d := &Discussion{
		svc:         s,
		postID:      postID,
		postOwnerID: post.UserID,
	}
	if err := d.refresh(ctx); err != nil {
		span.SetError(err)
		observability.RecordDiscussionOp("load", err)
		return nil, err
	}
	observability.RecordDiscussionOp("load", nil)
	return d, nil
}

// refresh re-reads the flat list and rebuilds the forest. Callers hold no
// lock yet during Load; mutating operations call it with the lock held.
func (d *Discussion) refresh(ctx context.Context) error {
	comments, err := d.svc.commentRepo.ListByPost(ctx, d.postID)
	if err != nil {
		return models.NewStoreUnavailableError(err)
	}
	forest, err := thread.BuildForest(comments)
	observability.ForestBuilds.Inc()
	if err != nil {
		observability.ForestCycles.Inc()
		return models.NewDataIntegrityError(err)
	}
	d.comments = comments
	d.forest = forest
	return nil
}

// PostID returns the id of the post this discussion belongs to.
func (d *Discussion) PostID() uint {
	return d.postID
}

// PostOwnerID returns the id of the post's author.
func (d *Discussion) PostOwnerID() uint {
	return d.postOwnerID
}

// Forest returns the current reply forest.
func (d *Discussion) Forest() *thread.Forest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.forest
}

// Comments returns the flat list in ascending creation order.
func (d *Discussion) Comments() []*models.Comment {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.Comment, len(d.comments))
	copy(out, d.comments)
	return out
}

// AddComment attaches a new top-level comment. Validation failures and a
// missing session fail before any store call. On success the discussion is
// re-fetched so id and created_at ordering stay authoritative with the store
// rather than synthesized locally.
func (d *Discussion) AddComment(ctx context.Context, actingUserID uint, content string) (*models.Comment, error) {
	return d.add(ctx, actingUserID, nil, content)
}

// AddReply attaches a reply under parentID. The parent must be part of the
// currently loaded forest; replying to a vanished comment fails with
// UNKNOWN_PARENT before any store call.
func (d *Discussion) AddReply(ctx context.Context, actingUserID, parentID uint, content string) (*models.Comment, error) {
	return d.add(ctx, actingUserID, &parentID, content)
}

func (d *Discussion) add(ctx context.Context, actingUserID uint, parentID *uint, content string) (*models.Comment, error) {
	op := "add_comment"
	if parentID != nil {
		op = "add_reply"
	}
	span, ctx := observability.NewSpan(ctx, "discussion."+op)
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	if actingUserID == thread.AnonymousUserID {
		err := models.NewUnauthenticatedError("You must be logged in to comment")
		observability.RecordDiscussionOp(op, err)
		return nil, err
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		err := models.NewValidationError("Content is required")
		observability.RecordDiscussionOp(op, err)
		return nil, err
	}
	if len(trimmed) > maxCommentLen {
		err := models.NewValidationError("Comment too long (max 10000 characters)")
		observability.RecordDiscussionOp(op, err)
		return nil, err
	}
	if parentID != nil && !d.forest.Contains(*parentID) {
		err := models.NewUnknownParentError(*parentID)
		observability.RecordDiscussionOp(op, err)
		return nil, err
	}

	comment := &models.Comment{
		Content:  trimmed,
		PostID:   d.postID,
		UserID:   actingUserID,
		ParentID: parentID,
	}
	if err := d.svc.commentRepo.Create(ctx, comment); err != nil {
		span.SetError(err)
		wrapped := wrapStoreError(err)
		observability.RecordDiscussionOp(op, wrapped)
		return nil, wrapped
	}

	// Consistency over latency: the store assigned id and created_at, so the
	// whole list is re-read instead of splicing a synthesized record in.
	if err := d.refresh(ctx); err != nil {
		span.SetError(err)
		observability.RecordDiscussionOp(op, err)
		return nil, err
	}

	observability.RecordDiscussionOp(op, nil)
	if fresh, ok := d.forest.Comment(comment.ID); ok {
		return fresh, nil
	}
	return comment, nil
}

// DeleteComment removes a comment and its reply subtree. The authorization
// gate runs against already-loaded state and denies without a store call.
// Deletion patches the local list and rebuilds the forest; no re-fetch is
// needed since removing known nodes cannot reorder surviving siblings.
func (d *Discussion) DeleteComment(ctx context.Context, actingUserID, commentID uint) error {
	span, ctx := observability.NewSpan(ctx, "discussion.delete_comment")
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	target, ok := d.forest.Comment(commentID)
	if !ok {
		err := models.NewNotFoundError("Comment", commentID)
		observability.RecordDiscussionOp("delete", err)
		return err
	}

	if !thread.CanDelete(actingUserID, target.UserID, d.postOwnerID) {
		err := models.NewForbiddenError("Only the comment author or the post author may delete a comment")
		observability.RecordDiscussionOp("delete", err)
		return err
	}

	rows, err := d.svc.commentRepo.DeleteAuthorized(ctx, commentID, actingUserID)
	if err != nil {
		span.SetError(err)
		wrapped := wrapStoreError(err)
		observability.RecordDiscussionOp("delete", wrapped)
		return wrapped
	}
	if rows == 0 {
		// The store disagreed with the loaded state (concurrent delete or
		// ownership change); zero matched rows is not success.
		err := models.NewForbiddenError("Comment not found or not owned")
		observability.RecordDiscussionOp("delete", err)
		return err
	}

	// Cascade: replies must not linger under a missing parent.
	descendants := d.forest.Descendants(commentID)
	if _, err := d.svc.commentRepo.DeleteDescendants(ctx, descendants); err != nil {
		span.SetError(err)
		wrapped := wrapStoreError(err)
		observability.RecordDiscussionOp("delete", wrapped)
		return wrapped
	}

	removed := make(map[uint]bool, len(descendants)+1)
	removed[commentID] = true
	for _, id := range descendants {
		removed[id] = true
	}
	kept := d.comments[:0:0]
	for _, c := range d.comments {
		if !removed[c.ID] {
			kept = append(kept, c)
		}
	}
	forest, buildErr := thread.BuildForest(kept)
	observability.ForestBuilds.Inc()
	if buildErr != nil {
		observability.ForestCycles.Inc()
		err := models.NewDataIntegrityError(buildErr)
		observability.RecordDiscussionOp("delete", err)
		return err
	}
	d.comments = kept
	d.forest = forest

	observability.RecordDiscussionOp("delete", nil)
	return nil
}

// wrapStoreError classifies repository failures: referential-constraint
// rejections are validation problems the caller can correct, everything else
// means the store could not serve the request.
func wrapStoreError(err error) *models.AppError {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if errors.Is(err, gorm.ErrForeignKeyViolated) ||
		strings.Contains(msg, "foreign key") ||
		strings.Contains(msg, "constraint") {
		return &models.AppError{
			Code:    models.CodeValidation,
			Message: "The store rejected the comment",
			Err:     err,
		}
	}
	return models.NewStoreUnavailableError(err)
}
