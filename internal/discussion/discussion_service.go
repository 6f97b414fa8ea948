package discussion

import (
	"context"
	"errors"

	"discussion-service/internal/models"
	"discussion-service/internal/realtime"

	"gorm.io/gorm"
)

var (
	ErrDiscussionNotFound = errors.New("discussion not found")
	ErrNotOwner           = errors.New("not the discussion owner")
)

// Broadcaster is the seam to the realtime core. The hub satisfies it; the
// service never waits on delivery.
type Broadcaster interface {
	Broadcast(event realtime.Event)
}

type DiscussionService interface {
	Create(ctx context.Context, userID uint, req *CreateDiscussionRequest) (*DiscussionResponse, error)
	Get(ctx context.Context, id uint) (*DiscussionResponse, error)
	List(ctx context.Context) ([]*DiscussionResponse, error)
	ListByUser(ctx context.Context, userID uint) ([]*DiscussionResponse, error)
	Update(ctx context.Context, id uint, userID uint, req *UpdateDiscussionRequest) (*DiscussionResponse, error)
	Delete(ctx context.Context, id uint, userID uint) error
}

type discussionService struct {
	repo        DiscussionRepository
	broadcaster Broadcaster
}

func NewDiscussionService(repo DiscussionRepository, broadcaster Broadcaster) DiscussionService {
	return &discussionService{repo: repo, broadcaster: broadcaster}
}

func (s *discussionService) Create(ctx context.Context, userID uint, req *CreateDiscussionRequest) (*DiscussionResponse, error) {
	discussion := &models.Discussion{
		Title:   req.Title,
		Content: req.Content,
		UserID:  userID,
	}
	if err := s.repo.Create(ctx, discussion); err != nil {
		return nil, err
	}

	resp := toResponse(discussion)
	s.broadcaster.Broadcast(realtime.Event{
		DiscussionID: discussion.ID,
		Action:       realtime.ActionCreated,
		OwnerUserID:  discussion.UserID,
		Payload:      resp,
	})
	return resp, nil
}

func (s *discussionService) Get(ctx context.Context, id uint) (*DiscussionResponse, error) {
	discussion, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiscussionNotFound
		}
		return nil, err
	}
	return toResponse(discussion), nil
}

func (s *discussionService) List(ctx context.Context) ([]*DiscussionResponse, error) {
	discussions, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return toResponses(discussions), nil
}

func (s *discussionService) ListByUser(ctx context.Context, userID uint) ([]*DiscussionResponse, error) {
	discussions, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toResponses(discussions), nil
}

func (s *discussionService) Update(ctx context.Context, id uint, userID uint, req *UpdateDiscussionRequest) (*DiscussionResponse, error) {
	discussion, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiscussionNotFound
		}
		return nil, err
	}
	if discussion.UserID != userID {
		return nil, ErrNotOwner
	}

	if req.Title != nil {
		discussion.Title = *req.Title
	}
	if req.Content != nil {
		discussion.Content = *req.Content
	}
	if err := s.repo.Update(ctx, discussion); err != nil {
		return nil, err
	}

	resp := toResponse(discussion)
	s.broadcaster.Broadcast(realtime.Event{
		DiscussionID: discussion.ID,
		Action:       realtime.ActionUpdated,
		OwnerUserID:  discussion.UserID,
		Payload:      resp,
	})
	return resp, nil
}

func (s *discussionService) Delete(ctx context.Context, id uint, userID uint) error {
	discussion, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDiscussionNotFound
		}
		return err
	}
	if discussion.UserID != userID {
		return ErrNotOwner
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.broadcaster.Broadcast(realtime.Event{
		DiscussionID: id,
		Action:       realtime.ActionDeleted,
		OwnerUserID:  discussion.UserID,
	})
	return nil
}

func toResponse(d *models.Discussion) *DiscussionResponse {
	return &DiscussionResponse{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toResponses(discussions []*models.Discussion) []*DiscussionResponse {
	out := make([]*DiscussionResponse, 0, len(discussions))
	for _, d := range discussions {
		out = append(out, toResponse(d))
	}
	return out
}
