package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"slotbook/infras/otel"
	"slotbook/infras/postgres"
	"slotbook/internal/domains/booking/model"
	slotModel "slotbook/internal/domains/slot/model"
	"slotbook/shared/constant"
	gDto "slotbook/shared/dto"
	"slotbook/shared/logger"
	gRepo "slotbook/shared/repository"
	"slotbook/shared/timezone"
)

type Booking interface {
	Insert(ctx context.Context, model model.Booking) error
	InsertTx(ctx context.Context, sqltx *sqlx.Tx, model model.Booking) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Booking, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Booking, error)
	Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	Update(ctx context.Context, req map[string]any, filter gDto.FilterGroup) error
	Delete(ctx context.Context, filter gDto.FilterGroup) error
	GetAllDetails(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.BookingDetail, error)
	CountDetails(ctx context.Context, filter gDto.FilterGroup) (int, error)
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	CommitTx(sqltx *sqlx.Tx) error
	RollbackTx(sqltx *sqlx.Tx) error
	AcquireUserLockTx(ctx context.Context, sqltx *sqlx.Tx, userID string) error
	GetForUpdateTx(ctx context.Context, sqltx *sqlx.Tx, id string) (model.Booking, error)
	ExistsConfirmedTx(ctx context.Context, sqltx *sqlx.Tx, userID, slotID string) (bool, error)
	ExistsConfirmedOnDateTx(ctx context.Context, sqltx *sqlx.Tx, userID, slotDate string) (bool, error)
	CancelTx(ctx context.Context, sqltx *sqlx.Tx, id, user string) error
	CancelBySlotTx(ctx context.Context, sqltx *sqlx.Tx, slotID, user string) error
}

type repositoryImpl struct {
	gRepo.Repository[model.Booking]
	detail gRepo.Repository[model.BookingDetail]
	db     *postgres.Connection
	otel   otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Booking {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Booking](model.EntityName, model.TableName, model.FieldID, db, otel),
		detail:     gRepo.NewRepository[model.BookingDetail](model.DetailEntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

func (repo *repositoryImpl) GetAllDetails(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.BookingDetail, error) {
	return repo.detail.GetAll(ctx, params, filter, columns...) //nolint:wrapcheck
}

func (repo *repositoryImpl) CountDetails(ctx context.Context, filter gDto.FilterGroup) (int, error) {
	return repo.detail.Count(ctx, filter) //nolint:wrapcheck
}

func (repo *repositoryImpl) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	sqltx, err := repo.db.Write.BeginTxx(ctx, nil)
	if err != nil {
		logger.ErrorWithStack(err)

		return nil, fmt.Errorf("failed to begin transaction (%s): %w", model.EntityName, err)
	}

	return sqltx, nil
}

func (repo *repositoryImpl) CommitTx(sqltx *sqlx.Tx) error {
	if err := sqltx.Commit(); err != nil {
		logger.ErrorWithStack(err)

		return fmt.Errorf("failed to commit transaction (%s): %w", model.EntityName, err)
	}

	return nil
}

func (repo *repositoryImpl) RollbackTx(sqltx *sqlx.Tx) error {
	if err := sqltx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.ErrorWithStack(err)

		return fmt.Errorf("failed to rollback transaction (%s): %w", model.EntityName, err)
	}

	return nil
}

// AcquireUserLockTx serializes booking attempts of a single user for the
// lifetime of the transaction. Different users hash to different lock keys
// and proceed in parallel.
func (repo *repositoryImpl) AcquireUserLockTx(ctx context.Context, sqltx *sqlx.Tx, userID string) error {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, fmt.Sprintf("%s.%s.AcquireUserLockTx", constant.OtelRepositoryScopeName, model.EntityName))
	defer scope.End()

	query := "SELECT pg_advisory_xact_lock(hashtext($1))"
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	_, err := sqltx.ExecContext(ctx, query, userID)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return fmt.Errorf("failed to acquire user lock: %w", err)
	}

	return nil
}

func (repo *repositoryImpl) GetForUpdateTx(ctx context.Context, sqltx *sqlx.Tx, id string) (model.Booking, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, fmt.Sprintf("%s.%s.GetForUpdateTx", constant.OtelRepositoryScopeName, model.EntityName))
	defer scope.End()

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 FOR UPDATE", model.TableName, model.FieldID)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	var booking model.Booking

	err := sqltx.GetContext(ctx, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return booking, nil
	}

	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return booking, fmt.Errorf("failed to lock booking: %w", err)
	}

	return booking, nil
}

func (repo *repositoryImpl) ExistsConfirmedTx(ctx context.Context, sqltx *sqlx.Tx, userID, slotID string) (bool, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, fmt.Sprintf("%s.%s.ExistsConfirmedTx", constant.OtelRepositoryScopeName, model.EntityName))
	defer scope.End()

	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1 AND %s = $2 AND %s = $3)",
		model.TableName, model.FieldUserID, model.FieldSlotID, model.FieldStatus,
	)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	exist := false

	err := sqltx.GetContext(ctx, &exist, query, userID, slotID, constant.BookingStatusConfirmed)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to check confirmed booking: %w", err)
	}

	return exist, nil
}

// ExistsConfirmedOnDateTx reports whether the user already holds a confirmed
// booking on any slot carrying the given date token.
func (repo *repositoryImpl) ExistsConfirmedOnDateTx(ctx context.Context, sqltx *sqlx.Tx, userID, slotDate string) (bool, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, fmt.Sprintf("%s.%s.ExistsConfirmedOnDateTx", constant.OtelRepositoryScopeName, model.EntityName))
	defer scope.End()

	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s JOIN %s ON %s.%s = %s.%s WHERE %s.%s = $1 AND %s.%s = $2 AND %s.%s = $3)",
		model.TableName, slotModel.TableName,
		slotModel.TableName, slotModel.FieldID, model.TableName, model.FieldSlotID,
		model.TableName, model.FieldUserID,
		model.TableName, model.FieldStatus,
		slotModel.TableName, slotModel.FieldSlotDate,
	)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	exist := false

	err := sqltx.GetContext(ctx, &exist, query, userID, constant.BookingStatusConfirmed, slotDate)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to check daily booking: %w", err)
	}

	return exist, nil
}

// CancelTx soft-cancels a single confirmed booking. Cancelled rows keep their
// history, only the status flips.
func (repo *repositoryImpl) CancelTx(ctx context.Context, sqltx *sqlx.Tx, id, user string) error {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, fmt.Sprintf("%s.%s.CancelTx", constant.OtelRepositoryScopeName, model.EntityName))
	defer scope.End()

	query := fmt.Sprintf(
		"UPDATE %s SET %s = $2, %s = $3, %s = $3, %s = $4 WHERE %s = $1 AND %s = $5",
		model.TableName, model.FieldStatus, model.FieldCancelledAt,
		constant.FieldModifiedAt, constant.FieldModifiedBy,
		model.FieldID, model.FieldStatus,
	)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	_, err := sqltx.ExecContext(ctx, query, id, constant.BookingStatusCancelled, timezone.Now(), user, constant.BookingStatusConfirmed)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	return nil
}

// CancelBySlotTx soft-cancels every confirmed booking on a slot at once.
func (repo *repositoryImpl) CancelBySlotTx(ctx context.Context, sqltx *sqlx.Tx, slotID, user string) error {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, fmt.Sprintf("%s.%s.CancelBySlotTx", constant.OtelRepositoryScopeName, model.EntityName))
	defer scope.End()

	query := fmt.Sprintf(
		"UPDATE %s SET %s = $2, %s = $3, %s = $3, %s = $4 WHERE %s = $1 AND %s = $5",
		model.TableName, model.FieldStatus, model.FieldCancelledAt,
		constant.FieldModifiedAt, constant.FieldModifiedBy,
		model.FieldSlotID, model.FieldStatus,
	)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	_, err := sqltx.ExecContext(ctx, query, slotID, constant.BookingStatusCancelled, timezone.Now(), user, constant.BookingStatusConfirmed)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return fmt.Errorf("failed to cancel bookings by slot: %w", err)
	}

	return nil
}
