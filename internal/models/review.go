package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a piece of customer feedback collected through a tenant's public form.
type Review struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TenantID      uuid.UUID `json:"tenant_id" db:"tenant_id"`
	CustomerName  string    `json:"customer_name" db:"customer_name"`
	CustomerEmail *string   `json:"customer_email" db:"customer_email"`
	Rating        int       `json:"rating" db:"rating"`
	Comment       string    `json:"comment" db:"comment"`
	Source        string    `json:"source" db:"source"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ReviewFilter narrows review listings
type ReviewFilter struct {
	MinRating *int       `query:"min_rating"`
	MaxRating *int       `query:"max_rating"`
	Since     *time.Time `query:"since"`
	Limit     int        `query:"limit"`
	Offset    int        `query:"offset"`
}

// ReviewSummary aggregates a tenant's ratings.
type ReviewSummary struct {
	TenantID      uuid.UUID   `json:"tenant_id"`
	TotalReviews  int         `json:"total_reviews"`
	AverageRating float64     `json:"average_rating"`
	Histogram     map[int]int `json:"histogram"`
}

// ReviewEvent is pushed to realtime subscribers when a review arrives.
type ReviewEvent struct {
	Type     string    `json:"type"`
	TenantID uuid.UUID `json:"tenant_id"`
	Review   *Review   `json:"review"`
}
