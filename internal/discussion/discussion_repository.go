package discussion

import (
	"context"

	"discussion-service/internal/models"

	"gorm.io/gorm"
)

type DiscussionRepository interface {
	Create(ctx context.Context, discussion *models.Discussion) error
	FindByID(ctx context.Context, id uint) (*models.Discussion, error)
	FindAll(ctx context.Context) ([]*models.Discussion, error)
	FindByUserID(ctx context.Context, userID uint) ([]*models.Discussion, error)
	Update(ctx context.Context, discussion *models.Discussion) error
	Delete(ctx context.Context, id uint) error
}

type discussionRepository struct {
	db *gorm.DB
}

func NewDiscussionRepository(db *gorm.DB) DiscussionRepository {
	return &discussionRepository{db: db}
}

func (r *discussionRepository) Create(ctx context.Context, discussion *models.Discussion) error {
	return r.db.WithContext(ctx).Create(discussion).Error
}

func (r *discussionRepository) FindByID(ctx context.Context, id uint) (*models.Discussion, error) {
	var discussion models.Discussion
	err := r.db.WithContext(ctx).First(&discussion, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &discussion, nil
}

func (r *discussionRepository) FindAll(ctx context.Context) ([]*models.Discussion, error) {
	var discussions []*models.Discussion
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&discussions).Error
	return discussions, err
}

func (r *discussionRepository) FindByUserID(ctx context.Context, userID uint) ([]*models.Discussion, error) {
	var discussions []*models.Discussion
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&discussions).Error
	return discussions, err
}

func (r *discussionRepository) Update(ctx context.Context, discussion *models.Discussion) error {
	return r.db.WithContext(ctx).Save(discussion).Error
}

func (r *discussionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Discussion{}, "id = ?", id).Error
}
