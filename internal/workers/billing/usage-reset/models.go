package usagereset

import (
	"context"
	"time"
)

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	UserID  string    `json:"userId"`
	ResetAt time.Time `json:"resetAt"`
}

type Resetter interface {
	Reset(ctx context.Context, userID string) error
}
