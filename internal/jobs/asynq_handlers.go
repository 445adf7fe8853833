package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reviewdesk/internal/authclient"
	"reviewdesk/internal/config"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task type definitions
const (
	TypeInvitationEmail = "invitation:email"
)

// InvitationEmailPayload is the body of an invitation e-mail task.
type InvitationEmailPayload struct {
	Email     string `json:"email"`
	AcceptURL string `json:"accept_url"`
}

// NewInvitationEmailTask creates a new invitation e-mail task
func NewInvitationEmailTask(email, acceptURL string) (*asynq.Task, error) {
	data, err := json.Marshal(InvitationEmailPayload{Email: email, AcceptURL: acceptURL})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvitationEmail, data), nil
}

// Enqueuer is the part of *asynq.Client the queue uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// InvitationQueue hands invitation e-mails to the worker. It implements
// services.InvitationMailer.
type InvitationQueue struct {
	client Enqueuer
}

func NewInvitationQueue(client Enqueuer) *InvitationQueue {
	return &InvitationQueue{client: client}
}

func (q *InvitationQueue) SendInvitation(ctx context.Context, email, acceptURL string) error {
	task, err := NewInvitationEmailTask(email, acceptURL)
	if err != nil {
		return err
	}
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue("critical"),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeInvitationEmail, err)
	}
	return nil
}

// InviteSender is the part of the auth provider client that sends mail.
type InviteSender interface {
	InviteUserByEmail(ctx context.Context, email, redirectTo string, data map[string]any) error
	SendMagicLink(ctx context.Context, email, redirectTo string, createUser bool) error
}

// InvitationMailer delivers invitation e-mails through the auth provider.
// Addresses that already have an account get a sign-in link pointing at
// the same acceptance URL instead.
type InvitationMailer struct {
	auth InviteSender
}

func NewInvitationMailer(auth InviteSender) *InvitationMailer {
	return &InvitationMailer{auth: auth}
}

// ProcessTask handles invitation e-mail tasks
func (m *InvitationMailer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload InvitationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		metrics.RecordJobRun(TypeInvitationEmail, "invalid")
		return fmt.Errorf("failed to unmarshal invitation payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Email == "" || payload.AcceptURL == "" {
		metrics.RecordJobRun(TypeInvitationEmail, "invalid")
		return fmt.Errorf("invitation payload is incomplete: %w", asynq.SkipRetry)
	}
	log := logger.FromContext(ctx).With(zap.String("task", TypeInvitationEmail))

	err := m.auth.InviteUserByEmail(ctx, payload.Email, payload.AcceptURL, map[string]any{"accept_url": payload.AcceptURL})
	if authclient.IsUserExists(err) {
		log.Info("invitee already has an account, sending sign-in link")
		err = m.auth.SendMagicLink(ctx, payload.Email, payload.AcceptURL, false)
	}
	if err != nil {
		metrics.RecordJobRun(TypeInvitationEmail, "failed")
		log.Warn("invitation e-mail failed", zap.Error(err))
		return err
	}
	metrics.RecordJobRun(TypeInvitationEmail, "success")
	return nil
}

// NewWorker builds the task server and its routes.
func NewWorker(redisOpt asynq.RedisConnOpt, cfg config.QueuingConfig, mailer *InvitationMailer) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      cfg.QueuePriorities,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.L().Error("task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeInvitationEmail, asynq.HandlerFunc(mailer.ProcessTask))
	return srv, mux
}
