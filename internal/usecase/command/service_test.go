package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-engine/internal/adapter/cache"
	"github.com/simaogato/settlement-engine/internal/adapter/repository/memory"
	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSender is a mock implementation of domain.Sender for testing
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, req domain.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockRefunder is a mock implementation of Refunder for testing
type MockRefunder struct {
	mock.Mock
}

func (m *MockRefunder) Refund(ctx context.Context, req domain.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

const (
	accountA = "11111111111111111111111111"
	accountB = "22222222222222222222222222"
	accountC = "33333333333333333333333333"
	clearing = "99999999999999999999999999"
)

type fixture struct {
	service  *Service
	cache    *cache.RequestCache
	enqueue  *MockSender
	results  *MockSender
	refunder *MockRefunder
	acks     *memory.AckLog
}

func newFixture() *fixture {
	f := &fixture{
		cache:    cache.NewRequestCache(),
		enqueue:  new(MockSender),
		results:  new(MockSender),
		refunder: new(MockRefunder),
		acks:     memory.NewAckLog(),
	}
	f.service = NewService(f.cache, f.enqueue, f.results, f.refunder, f.acks,
		domain.MustBankAccount(clearing), nil)
	return f
}

func transfer(from, to string, amount int64) TransferInput {
	return TransferInput{From: from, To: to, Amount: decimal.NewFromInt(amount)}
}

func (f *fixture) create(t *testing.T, input CreateInput) uuid.UUID {
	t.Helper()
	if input.ID == uuid.Nil {
		input.ID = uuid.New()
	}
	f.enqueue.On("Send", mock.Anything, mock.MatchedBy(func(r domain.Request) bool {
		return r.ID() == input.ID
	})).Return(nil).Once()

	res, err := f.service.Create(context.Background(), input)
	require.NoError(t, err)
	require.True(t, res.IsSuccess, res.ErrorMessage)
	return input.ID
}

func TestService_Create(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 100)}})

	req, ok := f.cache.GetByKey(id)
	require.True(t, ok)
	assert.Equal(t, domain.RequestStateHeld, req.CurrentState())
	assert.False(t, req.IsCancelled())

	acked, err := f.acks.IsAcked(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, acked)
	f.enqueue.AssertExpectations(t)
}

func TestService_Create_ClearingDirections(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		wantView  domain.View
		wantTxs   int
	}{
		{name: "Inbound request should pay into clearing", direction: DirectionInbound, wantView: domain.ViewInboundToClearing, wantTxs: 1},
		{name: "Outbound request should pay out of clearing", direction: DirectionOutbound, wantView: domain.ViewOutboundFromClearing, wantTxs: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			id := f.create(t, CreateInput{
				Direction: tt.direction,
				Transfers: []TransferInput{
					transfer(accountA, accountB, 10),
					transfer(accountA, accountC, 5),
				},
			})

			req, ok := f.cache.GetByKey(id)
			require.True(t, ok)
			view, ok := req.(*domain.ClearingView)
			require.True(t, ok)
			assert.Equal(t, tt.wantView, view.View())
			assert.Len(t, req.Transactions(), tt.wantTxs)
		})
	}
}

func TestService_Create_BusinessFailures(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 100)}})

	t.Run("Duplicate id should fail as a result", func(t *testing.T) {
		res, err := f.service.Create(context.Background(), CreateInput{
			ID:        id,
			Transfers: []TransferInput{transfer(accountA, accountB, 1)},
		})
		require.NoError(t, err)
		assert.False(t, res.IsSuccess)
		assert.Equal(t, id, res.ID)
		assert.Contains(t, res.ErrorMessage, "already tracked")
	})

	t.Run("Inbound request with two senders should fail as a result", func(t *testing.T) {
		newID := uuid.New()
		res, err := f.service.Create(context.Background(), CreateInput{
			ID:        newID,
			Direction: DirectionInbound,
			Transfers: []TransferInput{
				transfer(accountA, accountC, 10),
				transfer(accountB, accountC, 5),
			},
		})
		require.NoError(t, err)
		assert.False(t, res.IsSuccess)
		assert.Contains(t, res.ErrorMessage, "more than one sender")
		assert.False(t, f.cache.Contains(newID))
	})
}

func TestService_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input CreateInput
	}{
		{
			name:  "Nil id should return an error",
			input: CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 1)}},
		},
		{
			name:  "No transfers should return an error",
			input: CreateInput{ID: uuid.New()},
		},
		{
			name:  "Malformed account should return an error",
			input: CreateInput{ID: uuid.New(), Transfers: []TransferInput{transfer("123", accountB, 1)}},
		},
		{
			name:  "Zero amount should return an error",
			input: CreateInput{ID: uuid.New(), Transfers: []TransferInput{transfer(accountA, accountB, 0)}},
		},
		{
			name:  "Same account should return an error",
			input: CreateInput{ID: uuid.New(), Transfers: []TransferInput{transfer(accountA, accountA, 1)}},
		},
		{
			name: "Unknown direction should return an error",
			input: CreateInput{
				ID:        uuid.New(),
				Direction: "sideways",
				Transfers: []TransferInput{transfer(accountA, accountB, 1)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			res, err := f.service.Create(context.Background(), tt.input)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Equal(t, Result{}, res)
			assert.Equal(t, 0, f.cache.Len())
			f.enqueue.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Create_EnqueueFailureLeavesRequestCached(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	var enqueued context.Context
	f.enqueue.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		enqueued = args.Get(0).(context.Context)
	}).Return(errors.New("queue closed"))

	_, err := f.service.Create(context.Background(), CreateInput{
		ID:        id,
		Timeout:   time.Hour,
		Transfers: []TransferInput{transfer(accountA, accountB, 1)},
	})
	assert.ErrorContains(t, err, "queue closed")
	assert.True(t, f.cache.Contains(id))
	require.NotNil(t, enqueued)
	assert.ErrorIs(t, enqueued.Err(), context.Canceled)

	acked, ackErr := f.acks.IsAcked(context.Background(), id)
	require.NoError(t, ackErr)
	assert.False(t, acked)
}

func TestService_Create_DetachesCallerContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	var enqueued context.Context
	f.enqueue.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		enqueued = args.Get(0).(context.Context)
	}).Return(nil)

	res, err := f.service.Create(ctx, CreateInput{
		ID:        uuid.New(),
		Timeout:   time.Hour,
		Transfers: []TransferInput{transfer(accountA, accountB, 1)},
	})
	require.NoError(t, err)
	require.True(t, res.IsSuccess)

	cancel()
	require.NotNil(t, enqueued)
	assert.NoError(t, enqueued.Err())
	_, hasDeadline := enqueued.Deadline()
	assert.True(t, hasDeadline)
}

func TestService_Create_PriorState(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{
		PriorState: domain.RequestStateFinished,
		Transfers:  []TransferInput{transfer(accountA, accountB, 1)},
	})

	req, ok := f.cache.GetByKey(id)
	require.True(t, ok)
	assert.Equal(t, domain.RequestStateFinished, req.OldState())
}

func TestService_Cancel(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 1)}})
	req, _ := f.cache.GetByKey(id)

	res, err := f.service.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, res.IsSuccess)
	assert.Equal(t, id, res.ID)
	assert.True(t, req.IsCancelled())
	assert.False(t, f.cache.Contains(id))

	acked, err := f.acks.IsAcked(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, acked)
}

func TestService_Finish(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 1)}})
	req, _ := f.cache.GetByKey(id)
	f.results.On("Send", mock.Anything, req).Return(nil).Once()

	res, err := f.service.Finish(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, res.IsSuccess)
	assert.False(t, f.cache.Contains(id))
	f.results.AssertExpectations(t)
}

func TestService_Finish_CancelledContext(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 1)}})
	f.results.On("Send", mock.Anything, mock.Anything).Return(context.Canceled)

	_, err := f.service.Finish(context.Background(), id)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, f.cache.Contains(id))
}

func TestService_Finish_ConcurrentCallsReportOnce(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 1)}})
	f.results.On("Send", mock.Anything, mock.Anything).Return(nil)

	const callers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.service.Finish(context.Background(), id)
			assert.NoError(t, err)
			if res.IsSuccess {
				successes.Add(1)
				return
			}
			assert.Contains(t, res.ErrorMessage, "request does not exist")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	f.results.AssertNumberOfCalls(t, "Send", 1)
	assert.False(t, f.cache.Contains(id))
}

func TestService_Refund_FailureRestoresRequest(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 1)}})
	f.refunder.On("Refund", mock.Anything, mock.Anything).Return(context.DeadlineExceeded).Once()

	_, err := f.service.Refund(context.Background(), id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, f.cache.Contains(id))
	f.results.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	acked, err := f.acks.IsAcked(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, acked)
}

func TestService_Refund_ConcurrentCallsRefundOnce(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 1)}})
	f.refunder.On("Refund", mock.Anything, mock.Anything).Return(nil)
	f.results.On("Send", mock.Anything, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Refund(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	f.refunder.AssertNumberOfCalls(t, "Refund", 1)
	f.results.AssertNumberOfCalls(t, "Send", 1)
}

func TestService_Refund(t *testing.T) {
	f := newFixture()
	id := f.create(t, CreateInput{Transfers: []TransferInput{transfer(accountA, accountB, 1)}})
	req, _ := f.cache.GetByKey(id)

	f.refunder.On("Refund", mock.Anything, req).Run(func(args mock.Arguments) {
		args.Get(1).(domain.Request).SetCurrentState(domain.RequestStateRefunded)
	}).Return(nil).Once()
	f.results.On("Send", mock.Anything, mock.MatchedBy(func(r domain.Request) bool {
		return r.CurrentState() == domain.RequestStateRefunded
	})).Return(nil).Once()

	res, err := f.service.Refund(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, res.IsSuccess)
	assert.False(t, f.cache.Contains(id))
	f.refunder.AssertExpectations(t)
	f.results.AssertExpectations(t)
}

func TestService_UnknownRequest(t *testing.T) {
	tests := []struct {
		name string
		run  func(s *Service, id uuid.UUID) (Result, error)
	}{
		{name: "Cancel unknown request should fail as a result", run: func(s *Service, id uuid.UUID) (Result, error) {
			return s.Cancel(context.Background(), id)
		}},
		{name: "Finish unknown request should fail as a result", run: func(s *Service, id uuid.UUID) (Result, error) {
			return s.Finish(context.Background(), id)
		}},
		{name: "Refund unknown request should fail as a result", run: func(s *Service, id uuid.UUID) (Result, error) {
			return s.Refund(context.Background(), id)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			id := uuid.New()

			res, err := tt.run(f.service, id)
			require.NoError(t, err)
			assert.False(t, res.IsSuccess)
			assert.Equal(t, id, res.ID)
			assert.Contains(t, res.ErrorMessage, "request does not exist")
			f.results.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			f.refunder.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
		})
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{in: "", want: DirectionDirect},
		{in: "direct", want: DirectionDirect},
		{in: "inbound", want: DirectionInbound},
		{in: "outbound", want: DirectionOutbound},
		{in: "up", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
