package discussion

import "time"

/** -------------------- DTOs -------------------- */
// Request
type CreateDiscussionRequest struct {
	Title   string `json:"title" binding:"required,min=1,max=200"`
	Content string `json:"content" binding:"required"`
}

type UpdateDiscussionRequest struct {
	Title   *string `json:"title,omitempty" binding:"omitempty,min=1,max=200"`
	Content *string `json:"content,omitempty"`
}

// Response
type DiscussionResponse struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    uint      `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
