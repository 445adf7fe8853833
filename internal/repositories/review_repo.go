package repositories

import (
	"context"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
)

type ReviewRepository interface {
	Create(ctx context.Context, scope access.Scope, review *models.Review) error
	GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*models.Review, bool, error)
	List(ctx context.Context, scope access.Scope, filter *models.ReviewFilter) ([]*models.Review, error)
	Summary(ctx context.Context, scope access.Scope) (*models.ReviewSummary, error)
}

type reviewRepo struct {
	db DBTX
}

func NewReviewRepo(db DBTX) ReviewRepository {
	return &reviewRepo{db: db}
}

const reviewColumns = `id, tenant_id, customer_name, customer_email, rating, comment, source, created_at`

func scanReview(row pgx.Row) (*models.Review, error) {
	rv := &models.Review{}
	if err := row.Scan(&rv.ID, &rv.TenantID, &rv.CustomerName, &rv.CustomerEmail, &rv.Rating, &rv.Comment, &rv.Source, &rv.CreatedAt); err != nil {
		return nil, err
	}
	return rv, nil
}

func (r *reviewRepo) Create(ctx context.Context, scope access.Scope, review *models.Review) error {
	if scope.IsEmpty() {
		return common.ErrAccessDenied
	}
	review.TenantID = scope.TenantID()
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}

	return inTenantTx(ctx, r.db, scope, "reviews.create", func(tx pgx.Tx) error {
		query := `
			INSERT INTO reviews (id, tenant_id, customer_name, customer_email, rating, comment, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := tx.Exec(ctx, query, review.ID, review.TenantID, review.CustomerName, review.CustomerEmail, review.Rating, review.Comment, review.Source, review.CreatedAt)
		return wrapErr("reviews.create", err)
	})
}

func (r *reviewRepo) GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*models.Review, bool, error) {
	if scope.IsEmpty() {
		return nil, false, nil
	}
	var review *models.Review
	var found bool
	err := inTenantTx(ctx, r.db, scope, "reviews.get", func(tx pgx.Tx) error {
		query := `SELECT ` + reviewColumns + ` FROM reviews WHERE tenant_id = $1 AND id = $2`
		rv, err := scanReview(tx.QueryRow(ctx, query, scope.TenantID(), id))
		found, err = optional("reviews.get", err)
		review = rv
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return review, true, nil
}

func (r *reviewRepo) List(ctx context.Context, scope access.Scope, filter *models.ReviewFilter) ([]*models.Review, error) {
	if scope.IsEmpty() {
		return []*models.Review{}, nil
	}
	if filter == nil {
		filter = &models.ReviewFilter{}
	}
	limit, offset, err := common.ValidatePaginationParams(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	var reviews []*models.Review
	err = inTenantTx(ctx, r.db, scope, "reviews.list", func(tx pgx.Tx) error {
		query := `
			SELECT ` + reviewColumns + `
			FROM reviews
			WHERE tenant_id = $1
			  AND ($2::int IS NULL OR rating >= $2)
			  AND ($3::int IS NULL OR rating <= $3)
			  AND ($4::timestamptz IS NULL OR created_at >= $4)
			ORDER BY created_at DESC
			LIMIT $5 OFFSET $6
		`
		rows, err := tx.Query(ctx, query, scope.TenantID(), filter.MinRating, filter.MaxRating, filter.Since, limit, offset)
		if err != nil {
			return wrapErr("reviews.list", err)
		}
		defer rows.Close()

		for rows.Next() {
			rv, err := scanReview(rows)
			if err != nil {
				return wrapErr("reviews.list", err)
			}
			reviews = append(reviews, rv)
		}
		return wrapErr("reviews.list", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepo) Summary(ctx context.Context, scope access.Scope) (*models.ReviewSummary, error) {
	summary := &models.ReviewSummary{TenantID: scope.TenantID(), Histogram: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	if scope.IsEmpty() {
		return summary, nil
	}

	err := inTenantTx(ctx, r.db, scope, "reviews.summary", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT rating, COUNT(*) FROM reviews WHERE tenant_id = $1 GROUP BY rating`, scope.TenantID())
		if err != nil {
			return wrapErr("reviews.summary", err)
		}
		defer rows.Close()

		for rows.Next() {
			var rating int
			var count int64
			if err := rows.Scan(&rating, &count); err != nil {
				return wrapErr("reviews.summary", err)
			}
			summary.Histogram[rating] = int(count)
		}
		return wrapErr("reviews.summary", rows.Err())
	})
	if err != nil {
		return nil, err
	}

	weighted := 0
	for rating, count := range summary.Histogram {
		summary.TotalReviews += count
		weighted += rating * count
	}
	if summary.TotalReviews > 0 {
		summary.AverageRating = float64(weighted) / float64(summary.TotalReviews)
	}
	return summary, nil
}
