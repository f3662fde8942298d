package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/halqat/internal/models"
	"github.com/noah-isme/halqat/internal/observability"
	"github.com/noah-isme/halqat/internal/repository"
)

// MutationResult is the outcome of one form action, rendered as a flash message.
type MutationResult struct {
	Success    bool
	Message    string
	AffectedID uint
}

// MutationHandler executes the POST actions of one management page.
type MutationHandler interface {
	Handle(ctx context.Context, rc RequestContext, action string, form url.Values) MutationResult
}

// MutationDeps bundles the collaborators shared by every mutation handler.
type MutationDeps struct {
	Store     *repository.Store
	Validator *validator.Validate
	Cache     StatsCache
	Location  *time.Location
	Logger    zerolog.Logger
}

type outcome struct {
	message string
	id      uint
}

type actionFunc func(ctx context.Context, rc RequestContext, form url.Values) (outcome, error)

// mutator owns the dispatch, audit and failure handling common to every entity.
type mutator struct {
	entity      string
	permission  models.Permission
	invalidates []ListKind
	store       *repository.Store
	validate    *validator.Validate
	cache       StatsCache
	location    *time.Location
	logger      zerolog.Logger
	now         func() time.Time
}

func newMutator(deps MutationDeps, entity string, permission models.Permission, invalidates ...ListKind) mutator {
	cache := deps.Cache
	if cache == nil {
		cache = noopStatsCache{}
	}
	validate := deps.Validator
	if validate == nil {
		validate = NewValidator()
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	return mutator{
		entity:      entity,
		permission:  permission,
		invalidates: invalidates,
		store:       deps.Store,
		validate:    validate,
		cache:       cache,
		location:    location,
		logger:      deps.Logger.With().Str("component", entity+"_mutations").Logger(),
		now:         time.Now,
	}
}

func (m *mutator) dispatch(ctx context.Context, rc RequestContext, action string, form url.Values, actions map[string]actionFunc) MutationResult {
	action = strings.TrimSpace(action)
	fn, known := actions[action]
	metricAction := action
	if !known {
		metricAction = "unknown"
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "mutation."+m.entity)
	span.SetAttributes(attribute.String("mutation.action", metricAction))
	defer span.End()

	logger := m.logger.With().
		Uint("actor_id", rc.User.ID).
		Str("actor_role", string(rc.User.Role)).
		Str("entity", m.entity).
		Str("action", action).
		Logger()

	var result outcome
	var err error
	switch {
	case !known:
		err = ErrUnknownAction
	case !rc.Has(m.permission):
		err = ErrForbidden
	default:
		result, err = fn(ctx, rc, form)
	}

	if err != nil {
		label := observability.OutcomeRejected
		if IsDomainError(err) {
			logger.Warn().Err(err).Msg("mutation rejected")
		} else {
			label = observability.OutcomeFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, "mutation_failed")
			logger.Error().Err(err).Msg("mutation failed")
		}
		observability.RecordMutation(m.entity, metricAction, label)
		return MutationResult{Success: false, Message: UserMessage(err)}
	}

	m.cache.Invalidate(ctx, m.invalidates...)
	observability.RecordMutation(m.entity, metricAction, observability.OutcomeSuccess)
	logger.Info().Uint("affected_id", result.id).Msg("mutation applied")
	return MutationResult{Success: true, Message: result.message, AffectedID: result.id}
}

// transact runs fn in one transaction and appends the audit entry inside it, so either both
// the change and its audit row are committed or neither is.
func (m *mutator) transact(ctx context.Context, rc RequestContext, action string, fn func(tx *repository.Store) (uint, map[string]interface{}, error)) (uint, error) {
	var affected uint
	err := m.store.Transaction(ctx, func(tx *repository.Store) error {
		id, metadata, err := fn(tx)
		if err != nil {
			return err
		}
		affected = id

		actor := rc.Actor()
		entry := ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     m.entity + "." + action,
			EntityType: m.entity,
			Metadata:   metadata,
		}
		if id != 0 {
			entry.EntityID = &id
		}
		if _, err := recordActivity(ctx, tx.Activity, entry); err != nil {
			return err
		}
		return nil
	})
	return affected, err
}

func (m *mutator) today() time.Time {
	return calendarDay(m.now(), m.location)
}

// notFound maps a missing row onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// uniqueConflict maps a storage unique violation onto a ConflictError with message.
func uniqueConflict(err error, message string) error {
	if repository.IsUniqueViolation(err) {
		return conflict("%s", message)
	}
	return err
}

// halqaAccess loads the halqa and enforces that teachers only touch halaqat they lead.
func halqaAccess(ctx context.Context, tx *repository.Store, rc RequestContext, halqaID uint) (models.Halqa, error) {
	halqa, err := tx.Halaqat.GetByID(ctx, halqaID)
	if err != nil {
		return models.Halqa{}, notFound(err)
	}
	if rc.IsTeacher() && (halqa.TeacherID == nil || *halqa.TeacherID != rc.User.ID) {
		return models.Halqa{}, ErrForbidden
	}
	return halqa, nil
}
