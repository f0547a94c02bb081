package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/logger"
)

// Reconciler compares the denormalized counters of posts with the relations they count.
type Reconciler struct {
	db *gorm.DB
}

// NewReconciler returns an instance of Reconciler.
func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

const driftQuery = `SELECT p.id AS post_id,
	p.likes_count AS stored_likes,
	(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS actual_likes,
	p.comments_count AS stored_comments,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS actual_comments
FROM posts p`

// Check returns every post whose likes_count or comments_count disagrees with the number
// of its likes or comments.
func (rc *Reconciler) Check(ctx context.Context) ([]domain.CounterDrift, error) {
	var rows []domain.CounterDrift
	if err := rc.db.WithContext(ctx).Raw(driftQuery + " ORDER BY p.id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("check counters: %w", err)
	}
	drift := []domain.CounterDrift{}
	for _, r := range rows {
		if r.StoredLikes != r.ActualLikes || r.StoredComments != r.ActualComments {
			drift = append(drift, r)
		}
	}
	return drift, nil
}

// Fix rewrites the drifting counters from their relations and returns what was fixed.
func (rc *Reconciler) Fix(ctx context.Context) ([]domain.CounterDrift, error) {
	var fixed []domain.CounterDrift
	err := rc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drift, err := NewReconciler(tx).Check(ctx)
		if err != nil {
			return err
		}
		for _, d := range drift {
			err := tx.Model(&domain.Post{}).Where("id = ?", d.PostID).UpdateColumns(map[string]interface{}{
				"likes_count":    d.ActualLikes,
				"comments_count": d.ActualComments,
			}).Error
			if err != nil {
				return fmt.Errorf("fix counters of post %d: %w", d.PostID, err)
			}
			logger.Info("fixed post counters",
				zap.Int("post_id", d.PostID),
				zap.Int64("likes", d.ActualLikes),
				zap.Int64("comments", d.ActualComments))
		}
		fixed = drift
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fixed, nil
}
