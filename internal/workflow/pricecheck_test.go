package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"FareWatch/internal/fetch"
	"FareWatch/internal/model"
	fwerrors "FareWatch/pkg/errors"
	"FareWatch/pkg/providers"
	"FareWatch/pkg/retry"
)

// ---- 内存版协作方 ----

type fakeTrips struct {
	details map[int64]*model.TripDetails
	active  map[int64][]int64
}

func (f *fakeTrips) LoadTripDetails(ctx context.Context, tripID int64) (*model.TripDetails, error) {
	d, ok := f.details[tripID]
	if !ok {
		return nil, fmt.Errorf("trip %d: %w", tripID, fwerrors.TripNotFound)
	}
	return d, nil
}

func (f *fakeTrips) ListActiveTripIDs(ctx context.Context, userID int64) ([]int64, error) {
	return f.active[userID], nil
}

// fakeRuns 按值存取，模拟真实仓储：Update 失败时库里的行保持旧状态，
// 调用方内存里的修改不会悄悄生效。
type fakeRuns struct {
	mu         sync.Mutex
	byWorkflow map[string]*model.PriceCheckRun
	nextID     int64
	failUpdate func(run *model.PriceCheckRun) error
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{byWorkflow: make(map[string]*model.PriceCheckRun)}
}

func (f *fakeRuns) FindOrCreate(ctx context.Context, workflowID string, tripID int64) (*model.PriceCheckRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if run, ok := f.byWorkflow[workflowID]; ok {
		c := *run
		return &c, nil
	}

	f.nextID++
	run := model.PriceCheckRun{
		ID:         f.nextID,
		WorkflowID: workflowID,
		TripID:     tripID,
		Step:       model.RunStepPending,
	}
	f.byWorkflow[workflowID] = &run
	c := run
	return &c, nil
}

func (f *fakeRuns) Update(ctx context.Context, run *model.PriceCheckRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failUpdate != nil {
		if err := f.failUpdate(run); err != nil {
			return err
		}
	}

	c := *run
	f.byWorkflow[run.WorkflowID] = &c
	return nil
}

type fakeSnapshots struct {
	mu     sync.Mutex
	saved  []*model.PriceSnapshot
	nextID int64
}

func (f *fakeSnapshots) Save(ctx context.Context, snap *model.PriceSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if snap.ID == 0 {
		f.nextID++
		snap.ID = f.nextID
	}
	f.saved = append(f.saved, snap)
	return nil
}

func (f *fakeSnapshots) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// ---- 装配 ----

func testTripDetails(tripID int64) *model.TripDetails {
	ret := time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)
	d := &model.TripDetails{
		Trip: model.Trip{
			UserID:      7,
			Origin:      "PEK",
			Destination: "CDG",
			DepartDate:  time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
			ReturnDate:  &ret,
			RoundTrip:   true,
			Adults:      2,
			Status:      model.TripStatusActive,
		},
	}
	d.Trip.ID = tripID
	d.FlightPrefs.TripID = tripID
	d.HotelPrefs.TripID = tripID
	d.HotelPrefs.Rooms = 1
	d.HotelPrefs.AdultsPerRoom = 2
	return d
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

type harness struct {
	wf        *PriceCheck
	trips     *fakeTrips
	runs      *fakeRuns
	snapshots *fakeSnapshots
	flights   *providers.MockFlightClient
	hotels    *providers.MockHotelClient
}

func newHarness(tripID int64) *harness {
	h := &harness{
		trips:     &fakeTrips{details: map[int64]*model.TripDetails{}},
		runs:      newFakeRuns(),
		snapshots: &fakeSnapshots{},
		flights:   providers.NewMockFlightClient(),
		hotels:    providers.NewMockHotelClient(),
	}
	if tripID > 0 {
		h.trips.details[tripID] = testTripDetails(tripID)
	}

	h.flights.Offers = []providers.FlightOffer{
		{Provider: "mock", Airline: "CA", Stops: 0, Price: 450, Currency: "EUR"},
	}
	h.hotels.Offers = []providers.HotelOffer{
		{Provider: "mock", HotelName: "Le Mock", RoomType: "STANDARD", Price: 130, Currency: "EUR"},
	}

	h.wf = NewPriceCheck(
		h.trips,
		h.runs,
		h.snapshots,
		fetch.NewFlightAdapter(h.flights),
		fetch.NewHotelAdapter(h.hotels),
		fastRetry(),
		zap.NewNop(),
	)
	return h
}

func transientErr() error {
	return &providers.ProviderError{Provider: "mock", Code: "RATE_LIMITED", Message: "rate limited", Transient: true}
}

// ---- 用例 ----

func TestPriceCheckHappyPath(t *testing.T) {
	h := newHarness(1)

	result, err := h.wf.Execute(context.Background(), "wf-1", 1)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.FlightError)
	assert.Empty(t, result.HotelError)

	require.Equal(t, 1, h.snapshots.count())
	snap := h.snapshots.saved[0]
	require.NotNil(t, snap.FlightPrice)
	require.NotNil(t, snap.HotelPrice)
	require.NotNil(t, snap.TotalPrice)
	assert.Equal(t, 450.0, *snap.FlightPrice)
	assert.Equal(t, 130.0, *snap.HotelPrice)
	assert.Equal(t, 580.0, *snap.TotalPrice)

	run := h.runs.byWorkflow["wf-1"]
	assert.Equal(t, model.RunStepCompleted, run.Step)
}

func TestPriceCheckTripNotFound(t *testing.T) {
	h := newHarness(0) // 不注入任何行程

	result, err := h.wf.Execute(context.Background(), "wf-gone", 42)
	require.ErrorIs(t, err, fwerrors.TripNotFound)
	assert.False(t, result.Success)

	// 致命失败不写快照，不触发抓取
	assert.Equal(t, 0, h.snapshots.count())
	assert.Equal(t, 0, h.flights.CallCount())

	// 重投同一 workflow id：直接拒绝，不重新执行
	_, err = h.wf.Execute(context.Background(), "wf-gone", 42)
	require.ErrorIs(t, err, ErrRunAlreadyFailed)
	assert.Equal(t, 0, h.flights.CallCount())
}

func TestPriceCheckFlightRetriesExhausted(t *testing.T) {
	h := newHarness(1)
	h.flights.FailWith = transientErr() // 每次都失败

	result, err := h.wf.Execute(context.Background(), "wf-2", 1)
	require.NoError(t, err)

	// 单腿失败是降级成功：另一条腿的结果照常入快照
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.FlightError)
	assert.Empty(t, result.HotelError)

	assert.Equal(t, 3, h.flights.CallCount())
	assert.Equal(t, 1, h.hotels.CallCount())

	require.Equal(t, 1, h.snapshots.count())
	snap := h.snapshots.saved[0]
	assert.Nil(t, snap.FlightPrice)
	require.NotNil(t, snap.HotelPrice)
	require.NotNil(t, snap.TotalPrice)
	assert.Equal(t, 130.0, *snap.TotalPrice)
}

func TestPriceCheckTransientThenSuccess(t *testing.T) {
	h := newHarness(1)
	h.flights.FailWith = transientErr()
	h.flights.FailTimes = 2 // 前两次限流，第三次成功

	result, err := h.wf.Execute(context.Background(), "wf-3", 1)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.FlightError)
	assert.Equal(t, 3, h.flights.CallCount())

	require.Equal(t, 1, h.snapshots.count())
	assert.NotNil(t, h.snapshots.saved[0].FlightPrice)
}

func TestPriceCheckPermanentErrorNoRetry(t *testing.T) {
	h := newHarness(1)
	h.flights.FailWith = &providers.ProviderError{
		Provider: "mock", Code: "AUTH_FAILED", Message: "authentication failed", Transient: false,
	}

	result, err := h.wf.Execute(context.Background(), "wf-4", 1)
	require.NoError(t, err)

	// 永久失败不重试，直接吸收为腿级错误
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.FlightError)
	assert.Equal(t, 1, h.flights.CallCount())
}

func TestPriceCheckResumeFromFetched(t *testing.T) {
	h := newHarness(1)

	// 预置一条停在 fetched 阶段的执行记录，模拟写结果后崩溃再重投
	details, err := json.Marshal(testTripDetails(1))
	require.NoError(t, err)
	fr, err := json.Marshal(fetch.FlightResult{
		Offers: []providers.FlightOffer{{Airline: "AF", Stops: 0, Price: 380}},
	})
	require.NoError(t, err)
	hr, err := json.Marshal(fetch.HotelResult{
		Offers: []providers.HotelOffer{{HotelName: "Saved", Price: 90}},
	})
	require.NoError(t, err)

	h.runs.byWorkflow["wf-resume"] = &model.PriceCheckRun{
		ID:           99,
		WorkflowID:   "wf-resume",
		TripID:       1,
		Step:         model.RunStepFetched,
		TripDetails:  datatypes.JSON(details),
		FlightResult: datatypes.JSON(fr),
		HotelResult:  datatypes.JSON(hr),
	}

	result, err := h.wf.Execute(context.Background(), "wf-resume", 1)
	require.NoError(t, err)
	assert.True(t, result.Success)

	// 续跑沿用记录的抓取结果，不再调用提供商
	assert.Equal(t, 0, h.flights.CallCount())
	assert.Equal(t, 0, h.hotels.CallCount())

	require.Equal(t, 1, h.snapshots.count())
	snap := h.snapshots.saved[0]
	require.NotNil(t, snap.FlightPrice)
	assert.Equal(t, 380.0, *snap.FlightPrice)
}

func TestPriceCheckCompletedRunIsIdempotent(t *testing.T) {
	h := newHarness(1)

	result1, err := h.wf.Execute(context.Background(), "wf-dup", 1)
	require.NoError(t, err)
	require.True(t, result1.Success)
	firstCalls := h.flights.CallCount()

	// 同一消息重投：返回既有结论，不再抓取也不再写快照
	result2, err := h.wf.Execute(context.Background(), "wf-dup", 1)
	require.NoError(t, err)

	assert.Equal(t, result1.SnapshotID, result2.SnapshotID)
	assert.Equal(t, firstCalls, h.flights.CallCount())
	assert.Equal(t, 1, h.snapshots.count())
}

// 快照写成功但推进到 completed 的更新失败：SnapshotID 已经落回 run 记录，
// 重投续跑时不会再写第二张快照。
func TestPriceCheckCompletionUpdateFailureDoesNotDuplicateSnapshot(t *testing.T) {
	h := newHarness(1)

	updateFailed := false
	h.runs.failUpdate = func(run *model.PriceCheckRun) error {
		if run.Step == model.RunStepCompleted && !updateFailed {
			updateFailed = true
			return fmt.Errorf("connection reset")
		}
		return nil
	}

	_, err := h.wf.Execute(context.Background(), "wf-cut", 1)
	require.Error(t, err)
	require.True(t, updateFailed)
	require.Equal(t, 1, h.snapshots.count())

	// 库里的行还停在 fetched，但 SnapshotID 已持久化
	stored := h.runs.byWorkflow["wf-cut"]
	assert.Equal(t, model.RunStepFetched, stored.Step)
	require.NotNil(t, stored.SnapshotID)

	// 重投：跳过快照写入，直接终结
	result, err := h.wf.Execute(context.Background(), "wf-cut", 1)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, *stored.SnapshotID, result.SnapshotID)
	assert.Equal(t, 1, h.snapshots.count())
}

func TestPriceCheckZeroOffersStillSnapshots(t *testing.T) {
	h := newHarness(1)
	h.flights.Offers = nil
	h.hotels.Offers = nil

	result, err := h.wf.Execute(context.Background(), "wf-empty", 1)
	require.NoError(t, err)

	// 零报价是退化成功：快照照写，价格全为 NULL
	assert.True(t, result.Success)
	require.Equal(t, 1, h.snapshots.count())
	snap := h.snapshots.saved[0]
	assert.Nil(t, snap.FlightPrice)
	assert.Nil(t, snap.HotelPrice)
	assert.Nil(t, snap.TotalPrice)
}
