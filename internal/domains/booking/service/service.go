package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"slotbook/config"
	"slotbook/infras/otel"
	"slotbook/internal/domains/booking/model"
	"slotbook/internal/domains/booking/model/dto"
	"slotbook/internal/domains/booking/repository"
	slotRepo "slotbook/internal/domains/slot/repository"
	"slotbook/internal/events"
	"slotbook/shared"
	"slotbook/shared/cache"
	"slotbook/shared/constant"
	gDto "slotbook/shared/dto"
	"slotbook/shared/failure"
)

const (
	cacheGetAllBooking = "booking:gets"
	cacheCountBooking  = "booking:count"

	// Kept in sync with the prefixes the slot service caches under.
	cacheGetSlot    = "slot:get"
	cacheGetAllSlot = "slot:gets"
)

type Booking interface {
	Book(ctx context.Context, slotID string) (dto.BookResponse, error)
	Cancel(ctx context.Context, id string) error
	GetMine(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (dto.GetBookingsResponse, error)
	GetAll(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (dto.GetBookingsResponse, error)
	Count(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (int, error)
}

type serviceImpl struct {
	repo      repository.Booking
	slotRepo  slotRepo.Slot
	cfg       *config.Config
	cache     cache.RedisCache
	otel      otel.Otel
	publisher events.Publisher
}

func New(repo repository.Booking, slotRepo slotRepo.Slot, cfg *config.Config, cache cache.RedisCache, otel otel.Otel, publisher events.Publisher) Booking {
	return &serviceImpl{
		repo:      repo,
		slotRepo:  slotRepo,
		cfg:       cfg,
		cache:     cache,
		otel:      otel,
		publisher: publisher,
	}
}

// Book reserves a seat on the slot for the authenticated user. Every check
// runs inside one transaction: an advisory lock serializes the user's own
// attempts, the slot row is locked, and the capacity increment is guarded at
// the SQL level. Two users racing for the last seat cannot both win.
func (s *serviceImpl) Book(ctx context.Context, slotID string) (res dto.BookResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Book")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	sqltx, err := s.repo.BeginTx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin transaction")

		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := s.repo.RollbackTx(sqltx); rbErr != nil {
				log.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.repo.AcquireUserLockTx(ctx, sqltx, user); err != nil {
		log.Error().Err(err).Msg("failed to acquire user lock")

		return res, fmt.Errorf("failed to acquire user lock: %w", err)
	}

	slot, err := s.slotRepo.GetForUpdateTx(ctx, sqltx, slotID)
	if err != nil {
		log.Error().Err(err).Msg("failed to lock slot")

		return res, fmt.Errorf("failed to lock slot: %w", err)
	}

	if slot.ID == constant.Empty {
		return res, failure.NotFound("slot not found") // nolint:wrapcheck
	}

	if slot.BookedCount >= slot.Capacity {
		return res, failure.SlotFull // nolint:wrapcheck
	}

	duplicate, err := s.repo.ExistsConfirmedTx(ctx, sqltx, user, slotID)
	if err != nil {
		log.Error().Err(err).Msg("failed to check duplicate booking")

		return res, fmt.Errorf("failed to check duplicate booking: %w", err)
	}

	if duplicate {
		return res, failure.DuplicateBooking // nolint:wrapcheck
	}

	sameDay, err := s.repo.ExistsConfirmedOnDateTx(ctx, sqltx, user, slot.SlotDate)
	if err != nil {
		log.Error().Err(err).Msg("failed to check daily booking limit")

		return res, fmt.Errorf("failed to check daily booking limit: %w", err)
	}

	if sameDay {
		return res, failure.DailyLimitExceeded // nolint:wrapcheck
	}

	booking := dto.NewBookingModel(user, slotID)

	if err = s.repo.InsertTx(ctx, sqltx, booking); err != nil {
		log.Error().Err(err).Msg("failed to insert booking")

		return res, fmt.Errorf("failed to insert booking: %w", err)
	}

	reserved, err := s.slotRepo.IncrementBookedTx(ctx, sqltx, slotID)
	if err != nil {
		log.Error().Err(err).Msg("failed to increment booked count")

		return res, fmt.Errorf("failed to increment booked count: %w", err)
	}

	if !reserved {
		return res, failure.SlotFull // nolint:wrapcheck
	}

	if err = s.repo.CommitTx(sqltx); err != nil {
		log.Error().Err(err).Msg("failed to commit transaction")

		return res, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.afterBookingChange(ctx, events.NewBookingEvent(events.TypeBookingConfirmed, booking.ID, user, slotID))

	res.FromModel(booking)

	return res, nil
}

// Cancel soft-cancels a booking and releases its seat. Owners can cancel
// their own bookings, admins can cancel anyone's. Locks are taken slot row
// first, then booking row, the same order slot deletion uses, so the two
// paths cannot deadlock each other.
func (s *serviceImpl) Cancel(ctx context.Context, id string) (err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Cancel")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	role, _ := ctx.Value(constant.ContextKeyUserRole).(string)

	// Unlocked read to learn the slot. The slot_id of a booking never changes,
	// so it is safe to lock on before re-reading the row under the lock.
	existing, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get booking")

		return fmt.Errorf("failed to get booking: %w", err)
	}

	if existing.ID == constant.Empty {
		return failure.NotFound("booking not found") // nolint:wrapcheck
	}

	sqltx, err := s.repo.BeginTx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin transaction")

		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := s.repo.RollbackTx(sqltx); rbErr != nil {
				log.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	// The slot may already be deleted; the zero model is fine, the decrement
	// below then affects no rows.
	if _, err = s.slotRepo.GetForUpdateTx(ctx, sqltx, existing.SlotID); err != nil {
		log.Error().Err(err).Msg("failed to lock slot")

		return fmt.Errorf("failed to lock slot: %w", err)
	}

	booking, err := s.repo.GetForUpdateTx(ctx, sqltx, id)
	if err != nil {
		log.Error().Err(err).Msg("failed to lock booking")

		return fmt.Errorf("failed to lock booking: %w", err)
	}

	if booking.ID == constant.Empty {
		return failure.NotFound("booking not found") // nolint:wrapcheck
	}

	if booking.UserID != user && role != constant.RoleAdmin {
		return failure.ResourceRestrictedError // nolint:wrapcheck
	}

	if booking.Status == constant.BookingStatusCancelled {
		return failure.Conflict("booking is already cancelled") // nolint:wrapcheck
	}

	if err = s.repo.CancelTx(ctx, sqltx, id, user); err != nil {
		log.Error().Err(err).Msg("failed to cancel booking")

		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	if err = s.slotRepo.DecrementBookedTx(ctx, sqltx, booking.SlotID); err != nil {
		log.Error().Err(err).Msg("failed to decrement booked count")

		return fmt.Errorf("failed to decrement booked count: %w", err)
	}

	if err = s.repo.CommitTx(sqltx); err != nil {
		log.Error().Err(err).Msg("failed to commit transaction")

		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.afterBookingChange(ctx, events.NewBookingEvent(events.TypeBookingCancelled, booking.ID, booking.UserID, booking.SlotID))

	return nil
}

func (s *serviceImpl) GetMine(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (res dto.GetBookingsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".GetMine")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	filter.Operator = gDto.FilterGroupOperatorAnd
	filter.Filters = append(filter.Filters, gDto.Filter{
		Field:    model.FieldUserID,
		Operator: gDto.FilterOperatorEq,
		Value:    user,
		Table:    model.TableName,
	})

	return s.GetAll(ctx, req, filter)
}

func (s *serviceImpl) GetAll(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (res dto.GetBookingsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".GetAll")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKeyWithQuery(cacheGetAllBooking, req, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for bookings")

		return res, nil
	}

	total, err := s.Count(ctx, req, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count bookings")

		return res, fmt.Errorf("failed to count bookings: %w", err)
	}

	models, err := s.repo.GetAllDetails(ctx, req, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get bookings")

		return res, fmt.Errorf("failed to get bookings: %w", err)
	}

	res.FromModels(models, total, req.Limit)

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save bookings to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) Count(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (res int, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Count")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKeyWithQuery(cacheCountBooking, req, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for booking count")

		return res, nil
	}

	res, err = s.repo.CountDetails(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count bookings")

		return res, fmt.Errorf("failed to count bookings: %w", err)
	}

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save booking count to cache")
		}
	}()

	return res, nil
}

// afterBookingChange publishes the domain event and drops stale cache entries
// off the request path. A failed publish is logged, never surfaced.
func (s *serviceImpl) afterBookingChange(ctx context.Context, event events.BookingEvent) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.publisher.PublishBookingEvent(c, event); err != nil {
			log.Error().Err(err).Str("type", event.Type).Msg("failed to publish booking event")
		}

		if err := s.cache.Delete(c, shared.BuildCacheKey(cacheGetSlot, event.SlotID)); err != nil {
			log.Error().Err(err).Msg("failed to delete slot cache")
		}

		shared.InvalidateCaches(c, s.cache, cacheGetAllBooking)
		shared.InvalidateCaches(c, s.cache, cacheCountBooking)
		shared.InvalidateCaches(c, s.cache, cacheGetAllSlot)
	}()
}
