// Command accessctl inspects access decisions from the command line: who a
// token resolves to, what the guard says about a location, the state of an
// invitation token. It also runs schema migrations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/authclient"
	"reviewdesk/internal/common"
	"reviewdesk/internal/config"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repositories"
	"reviewdesk/internal/services"
	"reviewdesk/pkg/database"

	"go.uber.org/zap"
)

const usage = `usage: accessctl <command> [flags]

commands:
  whoami        resolve the profile behind a session and evaluate a location
  check-invite  report the state of an invitation token (-token or -link)
  migrate       apply (or roll back) schema migrations
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "accessctl:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("unknown command")

func run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "whoami":
		return runWhoami(ctx, args, out)
	case "check-invite":
		return runCheckInvite(ctx, args, out)
	case "migrate":
		return runMigrate(args, out)
	case "-h", "--help", "help":
		_, err := fmt.Fprint(out, usage)
		return err
	}
	return fmt.Errorf("%w %q\n%s", errUsage, cmd, usage)
}

func loadConfig(level string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(level, cfg.Server.Env)
	return cfg, nil
}

func runWhoami(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	opts := whoamiOptions{}
	fs.StringVar(&opts.AccessToken, "token", "", "access token of an existing session")
	fs.StringVar(&opts.Email, "email", "", "sign in with this e-mail instead of a token")
	fs.StringVar(&opts.Password, "password", "", "password for -email")
	fs.StringVar(&opts.Location, "location", "/v1/reviews", "location to evaluate")
	role := fs.String("role", string(models.RoleUser), "role the location requires (user, tenant_admin, super_admin or any)")
	timeout := fs.Duration("timeout", 15*time.Second, "overall time limit")
	verbose := fs.Bool("v", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *role != "any" {
		opts.Required = models.Role(*role)
		if !opts.Required.Valid() {
			return fmt.Errorf("invalid -role %q", *role)
		}
	}

	cfg, err := loadConfig(levelFor(*verbose))
	if err != nil {
		return err
	}
	opts.PublicEntry = cfg.Server.PublicEntryURL

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repositories.NewTenantRepo(pool)
	resolver := services.NewProfileResolver(repositories.NewProfileRepo(pool), readOnlyBinder{}, nil, 0)
	tenants := services.NewTenantService(tenantRepo, nil, nil, services.InvitationLinks{}, 0)
	auth := authclient.New(cfg.Auth.URL, cfg.Auth.AnonKey, "")

	report, err := whoami(ctx, whoamiDeps{Auth: auth, Resolver: resolver, Tenants: tenants}, opts)
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

// readOnlyBinder keeps whoami from creating profiles for unknown identities.
type readOnlyBinder struct{}

func (readOnlyBinder) BindOnSignup(context.Context, models.Identity) (*models.Profile, error) {
	return nil, common.ErrProfileNotFound
}

func runCheckInvite(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check-invite", flag.ContinueOnError)
	tokenFlag := fs.String("token", "", "invitation token from the accept link")
	link := fs.String("link", "", "full accept link as e-mailed, fragment included")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := inviteToken(*tokenFlag, *link)
	if err != nil {
		return err
	}

	cfg, err := loadConfig("warn")
	if err != nil {
		return err
	}
	pool, err := database.NewPool(ctx, cfg.Database.URL, 1)
	if err != nil {
		return err
	}
	defer pool.Close()

	invitations := services.NewInvitationService(repositories.NewInvitationRepo(pool), nil, nil, nil, nil, nil, services.InvitationLinks{})
	return checkInvite(ctx, invitations, token, out)
}

// inviteToken picks the invitation token from -token or from the query or
// fragment of -link.
func inviteToken(token, link string) (string, error) {
	switch {
	case token != "" && link != "":
		return "", errors.New("use -token or -link, not both")
	case token != "":
		return token, nil
	case link == "":
		return "", errors.New("-token or -link is required")
	}
	params, err := access.ParseAcceptanceParams(link)
	if err != nil || !params.HasInvitationToken() {
		return "", errors.New("the link carries no invitation token")
	}
	return params.Token, nil
}

type inviteReport struct {
	State     models.InvitationState `json:"state"`
	Email     string                 `json:"email,omitempty"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	Role      models.Role            `json:"role,omitempty"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

type invitationClassifier interface {
	Classify(ctx context.Context, token string) (models.InvitationState, *models.Invitation, error)
}

func checkInvite(ctx context.Context, invitations invitationClassifier, token string, out io.Writer) error {
	state, inv, err := invitations.Classify(ctx, token)
	if err != nil {
		return err
	}
	report := inviteReport{State: state}
	if inv != nil {
		report.Email = inv.Email
		report.TenantID = inv.TenantID.String()
		report.Role = inv.Role
		expires := inv.ExpiresAt
		report.ExpiresAt = &expires
	}
	if state != models.InvitationIssued {
		report.Message = (&common.InvitationError{Kind: state}).UserMessage()
	}
	return writeJSON(out, report)
}

func runMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	down := fs.Int("down", 0, "roll back this many migrations instead of applying")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig("info")
	if err != nil {
		return err
	}
	if *down > 0 {
		if err := database.RollbackMigrations(cfg.Database.URL, *down); err != nil {
			return err
		}
		logger.L().Info("rolled back", zap.Int("steps", *down))
		return nil
	}
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, "migrations applied")
	return err
}

func levelFor(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "warn"
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
