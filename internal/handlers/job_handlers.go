package handlers

import (
	"errors"
	"net/http"

	"reviewdesk/internal/common"
	"reviewdesk/internal/jobs/background"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/middleware"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// JobRunner is the part of the scheduler the master panel drives.
type JobRunner interface {
	Jobs() []background.JobStatus
	RunNow(name string) error
}

type JobHandlers struct {
	runner JobRunner
}

func NewJobHandlers(runner JobRunner) *JobHandlers {
	return &JobHandlers{runner: runner}
}

// ListJobs handles GET /v1/master/jobs
func (h *JobHandlers) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"jobs": h.runner.Jobs()})
}

// RunJob handles POST /v1/master/jobs/:name/run
func (h *JobHandlers) RunJob(c echo.Context) error {
	name := c.Param("name")
	if err := h.runner.RunNow(name); err != nil {
		if errors.Is(err, background.ErrUnknownJob) {
			return common.SendNotFoundError(c, "job")
		}
		return common.SendServerError(c, "Failed to start job")
	}

	log := logger.FromEcho(c).With(zap.String("job", name))
	if p := middleware.ProfileFrom(c); p != nil {
		log = log.With(zap.Stringer("actor_id", p.ID))
	}
	log.Info("job triggered manually")
	return c.JSON(http.StatusAccepted, map[string]string{"job": name, "status": "started"})
}
