package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"slotbook/config"
	"slotbook/infras/otel/mocks"
	bookingMocks "slotbook/internal/domains/booking/mocks"
	"slotbook/internal/domains/booking/model"
	"slotbook/internal/domains/booking/service"
	slotMocks "slotbook/internal/domains/slot/mocks"
	slotModel "slotbook/internal/domains/slot/model"
	eventMocks "slotbook/internal/events/mocks"
	cacheMocks "slotbook/shared/cache/mocks"
	"slotbook/shared/constant"
	gDto "slotbook/shared/dto"
	"slotbook/shared/failure"
	gModel "slotbook/shared/model"
	"slotbook/shared/timezone"
)

type serviceMocks struct {
	booking *bookingMocks.MockBooking
	slot    *slotMocks.MockSlot
}

func newService(t *testing.T) (service.Booking, serviceMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := serviceMocks{
		booking: bookingMocks.NewMockBooking(ctrl),
		slot:    slotMocks.NewMockSlot(ctrl),
	}

	cfg := &config.Config{}

	svc := service.New(m.booking, m.slot, cfg, cacheMocks.NewNoopCache(), mocks.NewOtel(), eventMocks.NewNoopPublisher())

	return svc, m
}

func userContext(userID, role string) context.Context {
	ctx := context.WithValue(context.Background(), constant.ContextKeyUserID, userID)

	return context.WithValue(ctx, constant.ContextKeyUserRole, role)
}

func openSlot() slotModel.Slot {
	return slotModel.Slot{
		ID:          "slot-id-123",
		SlotDate:    "2025-03-10",
		SlotTime:    "09:00",
		Capacity:    5,
		BookedCount: 2,
	}
}

func confirmedBooking() model.Booking {
	return model.Booking{
		ID:     "booking-id-123",
		UserID: "user-id-123",
		SlotID: "slot-id-123",
		Status: constant.BookingStatusConfirmed,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  "user-id-123",
			ModifiedBy: "user-id-123",
		},
	}
}

func TestBookingService_Book(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(m serviceMocks)
		wantErr   error
	}{
		{
			name: "successful booking",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().ExistsConfirmedTx(gomock.Any(), gomock.Any(), "user-id-123", "slot-id-123").Return(false, nil)
				m.booking.EXPECT().ExistsConfirmedOnDateTx(gomock.Any(), gomock.Any(), "user-id-123", "2025-03-10").Return(false, nil)
				m.booking.EXPECT().InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				m.slot.EXPECT().IncrementBookedTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(true, nil)
				m.booking.EXPECT().CommitTx(gomock.Any()).Return(nil)
			},
		},
		{
			name: "slot not found",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(slotModel.Slot{}, nil)
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: errors.New("slot not found"),
		},
		{
			name: "slot already full",
			setupMock: func(m serviceMocks) {
				fullSlot := openSlot()
				fullSlot.BookedCount = fullSlot.Capacity

				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(fullSlot, nil)
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: failure.SlotFull,
		},
		{
			name: "duplicate booking on same slot",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().ExistsConfirmedTx(gomock.Any(), gomock.Any(), "user-id-123", "slot-id-123").Return(true, nil)
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: failure.DuplicateBooking,
		},
		{
			name: "daily limit reached",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().ExistsConfirmedTx(gomock.Any(), gomock.Any(), "user-id-123", "slot-id-123").Return(false, nil)
				m.booking.EXPECT().ExistsConfirmedOnDateTx(gomock.Any(), gomock.Any(), "user-id-123", gomock.Any()).Return(true, nil)
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: failure.DailyLimitExceeded,
		},
		{
			name: "guarded increment loses the last seat",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().ExistsConfirmedTx(gomock.Any(), gomock.Any(), "user-id-123", "slot-id-123").Return(false, nil)
				m.booking.EXPECT().ExistsConfirmedOnDateTx(gomock.Any(), gomock.Any(), "user-id-123", gomock.Any()).Return(false, nil)
				m.booking.EXPECT().InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				m.slot.EXPECT().IncrementBookedTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(false, nil)
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: failure.SlotFull,
		},
		{
			name: "begin transaction error",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, errors.New("begin error"))
			},
			wantErr: errors.New("begin error"),
		},
		{
			name: "advisory lock error",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(errors.New("lock error"))
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: errors.New("lock error"),
		},
		{
			name: "insert error",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().ExistsConfirmedTx(gomock.Any(), gomock.Any(), "user-id-123", "slot-id-123").Return(false, nil)
				m.booking.EXPECT().ExistsConfirmedOnDateTx(gomock.Any(), gomock.Any(), "user-id-123", gomock.Any()).Return(false, nil)
				m.booking.EXPECT().InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("insert error"))
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: errors.New("insert error"),
		},
		{
			name: "commit error",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().ExistsConfirmedTx(gomock.Any(), gomock.Any(), "user-id-123", "slot-id-123").Return(false, nil)
				m.booking.EXPECT().ExistsConfirmedOnDateTx(gomock.Any(), gomock.Any(), "user-id-123", gomock.Any()).Return(false, nil)
				m.booking.EXPECT().InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				m.slot.EXPECT().IncrementBookedTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(true, nil)
				m.booking.EXPECT().CommitTx(gomock.Any()).Return(errors.New("commit error"))
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: errors.New("commit error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			ctx := userContext("user-id-123", constant.RoleUser)
			result, err := svc.Book(ctx, "slot-id-123")

			if tt.wantErr != nil {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, result.ID)
				assert.Equal(t, "slot-id-123", result.SlotID)
				assert.Equal(t, constant.BookingStatusConfirmed, result.Status)
			}
		})
	}
}

func TestBookingService_Book_FailureCodes(t *testing.T) {
	svc, m := newService(t)

	fullSlot := openSlot()
	fullSlot.BookedCount = fullSlot.Capacity

	m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
	m.booking.EXPECT().AcquireUserLockTx(gomock.Any(), gomock.Any(), "user-id-123").Return(nil)
	m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(fullSlot, nil)
	m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)

	ctx := userContext("user-id-123", constant.RoleUser)
	_, err := svc.Book(ctx, "slot-id-123")

	assert.ErrorIs(t, err, failure.SlotFull)
	assert.Equal(t, 409, failure.GetCode(err))
}

func TestBookingService_Cancel(t *testing.T) {
	tests := []struct {
		name      string
		userID    string
		role      string
		setupMock func(m serviceMocks)
		wantErr   bool
	}{
		{
			name:   "owner cancels own booking",
			userID: "user-id-123",
			role:   constant.RoleUser,
			setupMock: func(m serviceMocks) {
				// The slot row lock must come before the booking row lock,
				// matching the order slot deletion takes them in.
				gomock.InOrder(
					m.booking.EXPECT().Get(gomock.Any(), gomock.Any()).Return(confirmedBooking(), nil),
					m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil),
					m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil),
					m.booking.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "booking-id-123").Return(confirmedBooking(), nil),
					m.booking.EXPECT().CancelTx(gomock.Any(), gomock.Any(), "booking-id-123", "user-id-123").Return(nil),
					m.slot.EXPECT().DecrementBookedTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(nil),
					m.booking.EXPECT().CommitTx(gomock.Any()).Return(nil),
				)
			},
			wantErr: false,
		},
		{
			name:   "admin cancels someone else's booking",
			userID: "admin-id",
			role:   constant.RoleAdmin,
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().Get(gomock.Any(), gomock.Any()).Return(confirmedBooking(), nil)
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "booking-id-123").Return(confirmedBooking(), nil)
				m.booking.EXPECT().CancelTx(gomock.Any(), gomock.Any(), "booking-id-123", "admin-id").Return(nil)
				m.slot.EXPECT().DecrementBookedTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(nil)
				m.booking.EXPECT().CommitTx(gomock.Any()).Return(nil)
			},
			wantErr: false,
		},
		{
			name:   "slot already deleted still cancels",
			userID: "user-id-123",
			role:   constant.RoleUser,
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().Get(gomock.Any(), gomock.Any()).Return(confirmedBooking(), nil)
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(slotModel.Slot{}, nil)
				m.booking.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "booking-id-123").Return(confirmedBooking(), nil)
				m.booking.EXPECT().CancelTx(gomock.Any(), gomock.Any(), "booking-id-123", "user-id-123").Return(nil)
				m.slot.EXPECT().DecrementBookedTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(nil)
				m.booking.EXPECT().CommitTx(gomock.Any()).Return(nil)
			},
			wantErr: false,
		},
		{
			name:   "another user cannot cancel",
			userID: "intruder-id",
			role:   constant.RoleUser,
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().Get(gomock.Any(), gomock.Any()).Return(confirmedBooking(), nil)
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "booking-id-123").Return(confirmedBooking(), nil)
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: true,
		},
		{
			name:   "booking not found",
			userID: "user-id-123",
			role:   constant.RoleUser,
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().Get(gomock.Any(), gomock.Any()).Return(model.Booking{}, nil)
			},
			wantErr: true,
		},
		{
			name:   "booking removed before the lock",
			userID: "user-id-123",
			role:   constant.RoleUser,
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().Get(gomock.Any(), gomock.Any()).Return(confirmedBooking(), nil)
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "booking-id-123").Return(model.Booking{}, nil)
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: true,
		},
		{
			name:   "already cancelled",
			userID: "user-id-123",
			role:   constant.RoleUser,
			setupMock: func(m serviceMocks) {
				cancelled := confirmedBooking()
				cancelled.Status = constant.BookingStatusCancelled

				m.booking.EXPECT().Get(gomock.Any(), gomock.Any()).Return(confirmedBooking(), nil)
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "booking-id-123").Return(cancelled, nil)
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: true,
		},
		{
			name:   "decrement error",
			userID: "user-id-123",
			role:   constant.RoleUser,
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().Get(gomock.Any(), gomock.Any()).Return(confirmedBooking(), nil)
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "booking-id-123").Return(confirmedBooking(), nil)
				m.booking.EXPECT().CancelTx(gomock.Any(), gomock.Any(), "booking-id-123", "user-id-123").Return(nil)
				m.slot.EXPECT().DecrementBookedTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(errors.New("decrement error"))
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: true,
		},
		{
			name:   "commit error",
			userID: "user-id-123",
			role:   constant.RoleUser,
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().Get(gomock.Any(), gomock.Any()).Return(confirmedBooking(), nil)
				m.booking.EXPECT().BeginTx(gomock.Any()).Return(nil, nil)
				m.slot.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(openSlot(), nil)
				m.booking.EXPECT().GetForUpdateTx(gomock.Any(), gomock.Any(), "booking-id-123").Return(confirmedBooking(), nil)
				m.booking.EXPECT().CancelTx(gomock.Any(), gomock.Any(), "booking-id-123", "user-id-123").Return(nil)
				m.slot.EXPECT().DecrementBookedTx(gomock.Any(), gomock.Any(), "slot-id-123").Return(nil)
				m.booking.EXPECT().CommitTx(gomock.Any()).Return(errors.New("commit error"))
				m.booking.EXPECT().RollbackTx(gomock.Any()).Return(nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			ctx := userContext(tt.userID, tt.role)
			err := svc.Cancel(ctx, "booking-id-123")

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBookingService_GetMine(t *testing.T) {
	svc, m := newService(t)

	m.booking.EXPECT().
		CountDetails(gomock.Any(), gomock.Cond(func(x any) bool {
			filter := x.(gDto.FilterGroup)
			for _, f := range filter.Filters {
				if fill, ok := f.(gDto.Filter); ok && fill.Field == model.FieldUserID && fill.Value == "user-id-123" {
					return true
				}
			}
			return false
		})).
		Return(1, nil)

	m.booking.EXPECT().
		GetAllDetails(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]model.BookingDetail{{ID: "booking-id-123", UserID: "user-id-123"}}, nil)

	ctx := userContext("user-id-123", constant.RoleUser)
	result, err := svc.GetMine(ctx, gDto.QueryParams{Page: 1, Limit: 10}, gDto.FilterGroup{})

	assert.NoError(t, err)
	assert.Len(t, result.Bookings, 1)
	assert.Equal(t, "booking-id-123", result.Bookings[0].ID)
}

func TestBookingService_GetAll(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(m serviceMocks)
		wantErr   bool
	}{
		{
			name: "successful listing",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().
					CountDetails(gomock.Any(), gomock.Any()).
					Return(2, nil)

				m.booking.EXPECT().
					GetAllDetails(gomock.Any(), gomock.Any(), gomock.Any()).
					Return([]model.BookingDetail{{ID: "booking-1"}, {ID: "booking-2"}}, nil)
			},
			wantErr: false,
		},
		{
			name: "count error",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().
					CountDetails(gomock.Any(), gomock.Any()).
					Return(0, errors.New("count error"))
			},
			wantErr: true,
		},
		{
			name: "listing error",
			setupMock: func(m serviceMocks) {
				m.booking.EXPECT().
					CountDetails(gomock.Any(), gomock.Any()).
					Return(2, nil)

				m.booking.EXPECT().
					GetAllDetails(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.New("select error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			ctx := userContext("admin-id", constant.RoleAdmin)
			result, err := svc.GetAll(ctx, gDto.QueryParams{Page: 1, Limit: 10}, gDto.FilterGroup{})

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Len(t, result.Bookings, 2)
			}
		})
	}
}
