package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/infrastructure/repository/memory"
	"github.com/stretchr/testify/mock"
)

type mockEventSource struct {
	mock.Mock
	name string
}

func (m *mockEventSource) Provider() string { return m.name }

func (m *mockEventSource) FetchEvents(ctx context.Context, sportID int64) ([]feed.RawEvent, error) {
	args := m.Called(ctx, sportID)
	if out := args.Get(0); out != nil {
		return out.([]feed.RawEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSyncService_RunCycle_FetchesEverySourceOnce(t *testing.T) {
	t.Parallel()

	kickoff := time.Now().UTC().Add(6 * time.Hour).Truncate(time.Minute)

	primary := &mockEventSource{name: "oddsprime"}
	primary.
		On("FetchEvents", mock.Anything, memory.SportIDFootball).
		Return([]feed.RawEvent{
			premierLeagueEvent("oddsprime", "op-1", "Arsenal", "Chelsea", "SCHEDULED", kickoff),
		}, nil).
		Once()

	secondary := &mockEventSource{name: "betstream"}
	secondary.
		On("FetchEvents", mock.Anything, memory.SportIDFootball).
		Return(nil, context.DeadlineExceeded).
		Once()

	f := &syncFixture{matches: memory.NewMatchRepository(), audits: memory.NewAuditRepository()}
	svc := newSyncService(t, f, primary, secondary)

	result, err := svc.RunCycle(t.Context(), SyncInput{SportID: memory.SportIDFootball})
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("expected 1 created match, got %d", result.Created)
	}

	primary.AssertExpectations(t)
	secondary.AssertExpectations(t)
}
