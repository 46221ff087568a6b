// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"murmur/internal/models"
	"murmur/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository is the store adapter for the comments relation. ListByPost
// returns either the complete ascending-created_at set or an error, never a
// silent partial list; deletion keeps the acting user in the SQL predicate as
// a second line of defense beside the in-process authorization gate.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	// DeleteAuthorized removes one comment, matching only rows the acting user
	// may remove (own comment, or any comment under an own post). Returns the
	// number of rows matched; zero means "not found or not owned".
	DeleteAuthorized(ctx context.Context, commentID, actingUserID uint) (int64, error)
	// DeleteDescendants removes the already-authorized reply subtree by id.
	DeleteDescendants(ctx context.Context, ids []uint) (int64, error)
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]interface{}{
		"comment_id": comment.ID,
		"post_id":    comment.PostID,
	})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	defer observability.TrackQuery("read", "comments")()
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(
	ctx context.Context,
	postID uint,
) ([]*models.Comment, error) {
	defer observability.TrackQuery("list", "comments")()
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at asc").
		Find(&comments).Error
	if err != nil {
		r.log.LogError(ctx, err, "list")
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) DeleteAuthorized(
	ctx context.Context,
	commentID, actingUserID uint,
) (int64, error) {
	defer observability.TrackQuery("delete", "comments")()
	res := r.db.WithContext(ctx).
		Where("id = ?", commentID).
		Where(
			"user_id = ? OR EXISTS (SELECT 1 FROM posts WHERE posts.id = comments.post_id AND posts.user_id = ?)",
			actingUserID, actingUserID,
		).
		Delete(&models.Comment{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return 0, res.Error
	}
	r.log.LogDelete(ctx, map[string]interface{}{
		"comment_id": commentID,
		"rows":       res.RowsAffected,
	})
	return res.RowsAffected, nil
}

func (r *commentRepository) DeleteDescendants(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	defer observability.TrackQuery("delete", "comments")()
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Comment{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
