package transfer

import "time"

type PostCreation struct {
	Caption          string    `json:"caption" validate:"max=5000"`
	ContentID        *int64    `json:"content_id" validate:"omitempty,gt=0"`
	ScheduledFor     time.Time `json:"scheduled_for" validate:"required"`
	SocialAccountIDs []int64   `json:"social_account_ids" validate:"required,min=1,dive,gt=0"`
	MaxRetries       *int      `json:"max_retries" validate:"omitempty,gte=0,lte=10"`
	Draft            bool      `json:"draft"`
}

type PostReschedule struct {
	ScheduledFor time.Time `json:"scheduled_for" validate:"required"`
}

type CaptionUpdate struct {
	Caption string `json:"caption" validate:"max=5000"`
}
