package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/models"
	"reviewdesk/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const streamHeartbeat = 25 * time.Second

type ReviewHandlers struct {
	reviews  services.ReviewService
	settings services.SettingsService
}

func NewReviewHandlers(reviews services.ReviewService, settings services.SettingsService) *ReviewHandlers {
	return &ReviewHandlers{reviews: reviews, settings: settings}
}

// PublicProfile handles GET /v1/public/tenants/:tenant_id. It is what the
// public review form renders above the fields.
func (h *ReviewHandlers) PublicProfile(c echo.Context) error {
	tenantID, err := pathID(c, "tenant_id")
	if err != nil {
		return respondError(c, err, "request")
	}
	profile, err := h.settings.PublicProfile(c.Request().Context(), tenantID)
	if err != nil {
		return respondError(c, err, "business")
	}
	return c.JSON(http.StatusOK, profile)
}

// SubmitReview handles POST /v1/public/tenants/:tenant_id/reviews. No
// session is involved; the tenant comes from the path only.
func (h *ReviewHandlers) SubmitReview(c echo.Context) error {
	tenantID, err := pathID(c, "tenant_id")
	if err != nil {
		return respondError(c, err, "request")
	}
	var req services.SubmitReviewRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	review, err := h.reviews.Submit(c.Request().Context(), tenantID, &req, c.RealIP())
	if err != nil {
		return respondError(c, err, "business")
	}
	return c.JSON(http.StatusCreated, review)
}

// ListReviews handles GET /v1/reviews
func (h *ReviewHandlers) ListReviews(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	page, err := bindPage(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	filter := &models.ReviewFilter{Limit: page.Limit, Offset: page.Offset}
	if filter.MinRating, err = optionalRating(c, "min_rating"); err != nil {
		return respondError(c, err, "review")
	}
	if filter.MaxRating, err = optionalRating(c, "max_rating"); err != nil {
		return respondError(c, err, "review")
	}
	if s := c.QueryParam("since"); s != "" {
		since, perr := time.Parse(time.RFC3339, s)
		if perr != nil {
			return common.SendValidationError(c, "since", "must be an RFC 3339 timestamp")
		}
		filter.Since = &since
	}

	reviews, err := h.reviews.List(c.Request().Context(), actor, tenantID, filter)
	if err != nil {
		return respondError(c, err, "review")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reviews": reviews,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// GetReview handles GET /v1/reviews/:id
func (h *ReviewHandlers) GetReview(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "request")
	}
	review, err := h.reviews.Get(c.Request().Context(), actor, tenantID, id)
	if err != nil {
		return respondError(c, err, "review")
	}
	return c.JSON(http.StatusOK, review)
}

// ReviewSummary handles GET /v1/reviews/summary
func (h *ReviewHandlers) ReviewSummary(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	summary, err := h.reviews.Summary(c.Request().Context(), actor, tenantID)
	if err != nil {
		return respondError(c, err, "review")
	}
	return c.JSON(http.StatusOK, summary)
}

// StreamReviews handles GET /v1/reviews/stream as server-sent events. The
// feed ends when the client goes away.
func (h *ReviewHandlers) StreamReviews(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	ctx := c.Request().Context()
	sub, err := h.reviews.Subscribe(ctx, actor, tenantID)
	if err != nil {
		return respondError(c, err, "review")
	}
	defer sub.Unsubscribe()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case event, ok := <-sub.Events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.FromEcho(c).Warn("failed to encode review event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func optionalRating(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > 5 {
		return nil, &fieldError{Field: name, Message: "must be between 1 and 5"}
	}
	return &v, nil
}
