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
	"slotbook/internal/domains/slot/model"
	"slotbook/shared/constant"
	gDto "slotbook/shared/dto"
	"slotbook/shared/logger"
	gRepo "slotbook/shared/repository"
)

type Slot interface {
	Insert(ctx context.Context, model model.Slot) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Slot, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Slot, error)
	Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	Update(ctx context.Context, req map[string]any, filter gDto.FilterGroup) error
	Delete(ctx context.Context, filter gDto.FilterGroup) error
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	CommitTx(sqltx *sqlx.Tx) error
	RollbackTx(sqltx *sqlx.Tx) error
	GetForUpdateTx(ctx context.Context, sqltx *sqlx.Tx, id string) (model.Slot, error)
	IncrementBookedTx(ctx context.Context, sqltx *sqlx.Tx, id string) (bool, error)
	DecrementBookedTx(ctx context.Context, sqltx *sqlx.Tx, id string) error
	DeleteTx(ctx context.Context, sqltx *sqlx.Tx, filter gDto.FilterGroup) error
}

type repositoryImpl struct {
	gRepo.Repository[model.Slot]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Slot {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Slot](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
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

// GetForUpdateTx locks the slot row for the remainder of the transaction.
// A missing slot returns the zero model with a nil error, same as Get.
func (repo *repositoryImpl) GetForUpdateTx(ctx context.Context, sqltx *sqlx.Tx, id string) (model.Slot, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, fmt.Sprintf("%s.%s.GetForUpdateTx", constant.OtelRepositoryScopeName, model.EntityName))
	defer scope.End()

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 FOR UPDATE", model.TableName, model.FieldID)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	var slot model.Slot

	err := sqltx.GetContext(ctx, &slot, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return slot, nil
	}

	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return slot, fmt.Errorf("failed to lock slot: %w", err)
	}

	return slot, nil
}

// IncrementBookedTx reserves a seat only while capacity remains. The guard in
// the WHERE clause makes the check and the increment a single atomic statement,
// so it reports false instead of ever pushing booked_count past capacity.
func (repo *repositoryImpl) IncrementBookedTx(ctx context.Context, sqltx *sqlx.Tx, id string) (bool, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, fmt.Sprintf("%s.%s.IncrementBookedTx", constant.OtelRepositoryScopeName, model.EntityName))
	defer scope.End()

	query := fmt.Sprintf(
		"UPDATE %s SET %s = %s + 1 WHERE %s = $1 AND %s < %s",
		model.TableName, model.FieldBookedCount, model.FieldBookedCount,
		model.FieldID, model.FieldBookedCount, model.FieldCapacity,
	)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	result, err := sqltx.ExecContext(ctx, query, id)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to increment booked count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// DecrementBookedTx releases a seat, flooring at zero.
func (repo *repositoryImpl) DecrementBookedTx(ctx context.Context, sqltx *sqlx.Tx, id string) error {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, fmt.Sprintf("%s.%s.DecrementBookedTx", constant.OtelRepositoryScopeName, model.EntityName))
	defer scope.End()

	query := fmt.Sprintf(
		"UPDATE %s SET %s = GREATEST(%s - 1, 0) WHERE %s = $1",
		model.TableName, model.FieldBookedCount, model.FieldBookedCount, model.FieldID,
	)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	_, err := sqltx.ExecContext(ctx, query, id)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return fmt.Errorf("failed to decrement booked count: %w", err)
	}

	return nil
}
