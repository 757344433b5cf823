package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"FareWatch/internal/model"
	"FareWatch/internal/workflow"
	fwerrors "FareWatch/pkg/errors"
	"FareWatch/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	m.Run()
}

// memMarks 内存版终态标记，checkErr 非空时模拟 Redis 不可用。
type memMarks struct {
	processed map[string]bool
	checkErr  error
}

func newMemMarks() *memMarks {
	return &memMarks{processed: map[string]bool{}}
}

func (m *memMarks) IsProcessed(_ context.Context, messageID string) (bool, error) {
	if m.checkErr != nil {
		return false, m.checkErr
	}
	return m.processed[messageID], nil
}

func (m *memMarks) MarkProcessed(_ context.Context, messageID string) error {
	m.processed[messageID] = true
	return nil
}

type stubPriceCheck struct {
	calls  int
	result model.PriceCheckResult
	err    error
}

func (s *stubPriceCheck) Execute(_ context.Context, _ string, _ int64) (model.PriceCheckResult, error) {
	s.calls++
	return s.result, s.err
}

type stubRefresh struct {
	calls   int
	summary model.RefreshSummary
	err     error
}

func (s *stubRefresh) Execute(_ context.Context, _ string, _ int64) (model.RefreshSummary, error) {
	s.calls++
	return s.summary, s.err
}

func priceCheckBody(t *testing.T, messageID string, tripID int64) []byte {
	t.Helper()
	body, err := json.Marshal(model.PriceCheckMessage{
		MessageID:   messageID,
		TripID:      tripID,
		TriggeredBy: "manual",
	})
	require.NoError(t, err)
	return body
}

func refreshBody(t *testing.T, messageID string, userID int64) []byte {
	t.Helper()
	body, err := json.Marshal(model.RefreshAllMessage{
		MessageID:   messageID,
		UserID:      userID,
		TriggeredBy: "scheduler",
	})
	require.NoError(t, err)
	return body
}

func TestPriceCheckHandlerSuccessMarksProcessed(t *testing.T) {
	wf := &stubPriceCheck{result: model.PriceCheckResult{Success: true, SnapshotID: 42}}
	marks := newMemMarks()
	handler := priceCheckHandler(wf, marks)

	err := handler(context.Background(), priceCheckBody(t, "msg-1", 7))

	require.NoError(t, err)
	assert.Equal(t, 1, wf.calls)
	assert.True(t, marks.processed["msg-1"])
}

func TestPriceCheckHandlerSkipsAlreadyProcessed(t *testing.T) {
	wf := &stubPriceCheck{}
	marks := newMemMarks()
	marks.processed["msg-1"] = true
	handler := priceCheckHandler(wf, marks)

	err := handler(context.Background(), priceCheckBody(t, "msg-1", 7))

	assert.True(t, fwerrors.IsSkip(err))
	assert.Zero(t, wf.calls)
}

func TestPriceCheckHandlerMalformedBodySkipped(t *testing.T) {
	wf := &stubPriceCheck{}
	handler := priceCheckHandler(wf, newMemMarks())

	err := handler(context.Background(), []byte("not json"))

	assert.True(t, fwerrors.IsSkip(err))
	assert.Zero(t, wf.calls)
}

func TestPriceCheckHandlerFatalErrorAckedAndMarked(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"trip not found", fmt.Errorf("load trip: %w", fwerrors.TripNotFound)},
		{"run already failed", fmt.Errorf("run 9: %w", workflow.ErrRunAlreadyFailed)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wf := &stubPriceCheck{err: tc.err}
			marks := newMemMarks()
			handler := priceCheckHandler(wf, marks)

			err := handler(context.Background(), priceCheckBody(t, "msg-1", 7))

			require.NoError(t, err)
			assert.True(t, marks.processed["msg-1"], "fatal outcome is terminal and must be marked")
		})
	}
}

// 基础设施类失败不落终态标记：崩溃/nack 之后 broker 重投，
// 同一条消息必须还能驱动状态机，不能被幂等标记拦下。
func TestPriceCheckHandlerRetryableErrorNotMarkedAndRedeliveryRuns(t *testing.T) {
	wf := &stubPriceCheck{err: errors.New("provider timeout")}
	marks := newMemMarks()
	handler := priceCheckHandler(wf, marks)
	body := priceCheckBody(t, "msg-1", 7)

	err := handler(context.Background(), body)
	require.Error(t, err)
	assert.False(t, fwerrors.IsSkip(err))
	assert.False(t, marks.processed["msg-1"], "non-terminal failure must not leave a mark")

	// 重投：标记不存在，工作流再次执行并走到终态
	wf.err = nil
	wf.result = model.PriceCheckResult{Success: true, SnapshotID: 42}

	err = handler(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, 2, wf.calls)
	assert.True(t, marks.processed["msg-1"])
}

func TestPriceCheckHandlerMarkCheckFailureStillProcesses(t *testing.T) {
	wf := &stubPriceCheck{result: model.PriceCheckResult{Success: true}}
	marks := newMemMarks()
	marks.checkErr = errors.New("redis down")
	handler := priceCheckHandler(wf, marks)

	err := handler(context.Background(), priceCheckBody(t, "msg-1", 7))

	require.NoError(t, err)
	assert.Equal(t, 1, wf.calls)
}

func TestRefreshHandlerSuccessMarksProcessed(t *testing.T) {
	wf := &stubRefresh{summary: model.RefreshSummary{UserID: 3, Total: 2, Succeeded: 2}}
	marks := newMemMarks()
	handler := refreshAllHandler(wf, marks)

	err := handler(context.Background(), refreshBody(t, "msg-r1", 3))

	require.NoError(t, err)
	assert.Equal(t, 1, wf.calls)
	assert.True(t, marks.processed["msg-r1"])
}

func TestRefreshHandlerInProgressAcked(t *testing.T) {
	wf := &stubRefresh{err: fmt.Errorf("user 3: %w", fwerrors.RefreshInProgress)}
	marks := newMemMarks()
	handler := refreshAllHandler(wf, marks)

	err := handler(context.Background(), refreshBody(t, "msg-r1", 3))

	require.NoError(t, err)
	assert.True(t, marks.processed["msg-r1"])
}

func TestRefreshHandlerFailureStillAcked(t *testing.T) {
	wf := &stubRefresh{err: errors.New("list trips: db gone")}
	handler := refreshAllHandler(wf, newMemMarks())

	err := handler(context.Background(), refreshBody(t, "msg-r1", 3))

	require.NoError(t, err, "refresh failures wait for the next schedule cycle instead of requeueing")
}

func TestRefreshHandlerSkipsAlreadyProcessed(t *testing.T) {
	wf := &stubRefresh{}
	marks := newMemMarks()
	marks.processed["msg-r1"] = true
	handler := refreshAllHandler(wf, marks)

	err := handler(context.Background(), refreshBody(t, "msg-r1", 3))

	assert.True(t, fwerrors.IsSkip(err))
	assert.Zero(t, wf.calls)
}

func TestRefreshHandlerMalformedBodySkipped(t *testing.T) {
	wf := &stubRefresh{}
	handler := refreshAllHandler(wf, newMemMarks())

	err := handler(context.Background(), []byte("{"))

	assert.True(t, fwerrors.IsSkip(err))
	assert.Zero(t, wf.calls)
}
