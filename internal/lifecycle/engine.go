// Package lifecycle implements the donation lifecycle: the organization
// approval gate, the matching engine, the donation state machine, the
// delivery tracker and the notification dispatcher that every transition
// feeds. Each exported operation runs as one transaction through a
// domain.UnitOfWork; a failing step rolls back every write of the call,
// notifications included.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clothdonate/internal/domain"
)

const tracerName = "clothdonate/internal/lifecycle"

// Options configures an Engine.
type Options struct {
	Store         domain.UnitOfWork
	Authorizer    Authorizer
	Renderer      Renderer
	Logger        zerolog.Logger
	Clock         func() time.Time
	NewID         func() string
	DefaultLocale string
}

// Engine runs lifecycle operations.
type Engine struct {
	store         domain.UnitOfWork
	auth          Authorizer
	render        Renderer
	logger        zerolog.Logger
	clock         func() time.Time
	newID         func() string
	defaultLocale string
	tracer        trace.Tracer
	notifications *Dispatcher
}

// NewEngine validates opts and builds an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("lifecycle: store is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("lifecycle: renderer is required")
	}
	if opts.Authorizer == nil {
		opts.Authorizer = RolePolicy{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}
	return &Engine{
		store:         opts.Store,
		auth:          opts.Authorizer,
		render:        opts.Renderer,
		logger:        opts.Logger,
		clock:         opts.Clock,
		newID:         opts.NewID,
		defaultLocale: opts.DefaultLocale,
		tracer:        otel.Tracer(tracerName),
		notifications: &Dispatcher{uow: opts.Store, clock: opts.Clock, newID: opts.NewID},
	}, nil
}

// Notifications exposes the dispatcher's read-state operations.
func (e *Engine) Notifications() *Dispatcher {
	return e.notifications
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

func (e *Engine) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "lifecycle."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// rejected logs a refused operation at debug level and passes err through.
func (e *Engine) rejected(op string, err error) error {
	if err != nil {
		e.logger.Debug().Err(err).Str("op", op).Msg("lifecycle: operation rejected")
	}
	return err
}

// notice describes one event to fan out to its resolved recipients.
type notice struct {
	kind     domain.EntityKind
	entityID string
	event    string
	// dedupeSuffix distinguishes repeatable events, e.g. one decline per organization.
	dedupeSuffix string
	typ          domain.NotificationType
	messageKey   string
	params       map[string]string
	related      domain.EntityRef
}

func (e *Engine) emit(ctx context.Context, repos domain.Repositories, actor Actor, n notice, parties Parties) error {
	event := n.event
	if n.dedupeSuffix != "" {
		event += ":" + n.dedupeSuffix
	}
	key := dedupeKey(n.kind, n.entityID, event)
	for _, userID := range ResolveRecipients(n.kind, n.event, parties) {
		locale, err := e.localeFor(ctx, repos, userID, actor)
		if err != nil {
			return err
		}
		title, message := e.render.Render(locale, n.messageKey, n.params)
		related := n.related
		if _, err := e.notifications.Notify(ctx, repos, NotifyInput{
			UserID:    userID,
			Type:      n.typ,
			Title:     title,
			Message:   message,
			Related:   &related,
			DedupeKey: key,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) localeFor(ctx context.Context, repos domain.Repositories, userID string, actor Actor) (string, error) {
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load recipient %s: %w", userID, err)
	}
	if l := strings.TrimSpace(user.Locale); l != "" {
		return l, nil
	}
	if l := strings.TrimSpace(actor.Locale); l != "" {
		return l, nil
	}
	return e.defaultLocale, nil
}

// partiesFor resolves the donor and, when present, the user behind orgID.
func partiesFor(ctx context.Context, repos domain.Repositories, donorID string, orgID *string) (Parties, *domain.Organization, error) {
	p := Parties{DonorID: donorID}
	if orgID == nil || *orgID == "" {
		return p, nil, nil
	}
	org, err := repos.Organizations.GetByID(ctx, *orgID)
	if err != nil {
		return p, nil, fmt.Errorf("load organization %s: %w", *orgID, err)
	}
	p.OrganizationUserID = org.UserID
	return p, org, nil
}
