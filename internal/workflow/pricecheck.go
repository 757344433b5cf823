package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"FareWatch/internal/fetch"
	"FareWatch/internal/filter"
	"FareWatch/internal/model"
	fwerrors "FareWatch/pkg/errors"
	"FareWatch/pkg/metrics"
	"FareWatch/pkg/providers"
	"FareWatch/pkg/retry"
)

// ErrRunAlreadyFailed 表示该 workflow_id 的执行此前已致命失败，重投不再处理。
var ErrRunAlreadyFailed = errors.New("price check run already failed")

// PriceCheck 单行程价格检查工作流。
//
// 编排逻辑本身是建立在 PriceCheckRun 记录之上的确定性状态机：
// 所有 IO 都发生在带各自重试策略的活动里（抓取、落库），
// 每个阶段的产出写回 run 记录，消息重投时从记录的阶段继续，
// 已抓取的腿不会重新抓取，已写入的快照不会重复写入。
type PriceCheck struct {
	trips      TripLoader
	runs       RunStore
	snapshots  SnapshotStore
	flights    fetch.FlightAdapter
	hotels     fetch.HotelAdapter
	fetchRetry retry.Config
	logger     *zap.Logger
}

func NewPriceCheck(
	trips TripLoader,
	runs RunStore,
	snapshots SnapshotStore,
	flights fetch.FlightAdapter,
	hotels fetch.HotelAdapter,
	fetchRetry retry.Config,
	logger *zap.Logger,
) *PriceCheck {
	return &PriceCheck{
		trips:      trips,
		runs:       runs,
		snapshots:  snapshots,
		flights:    flights,
		hotels:     hotels,
		fetchRetry: fetchRetry,
		logger:     logger,
	}
}

// Execute 驱动一次价格检查直到终态。
// 返回 error 表示这次驱动没有到达终态，调用方可以重投；
// 致命失败（行程已删除）也会返回 error，但 run 记录已经标记 failed，
// 重投会直接返回 ErrRunAlreadyFailed。
func (w *PriceCheck) Execute(ctx context.Context, workflowID string, tripID int64) (model.PriceCheckResult, error) {
	start := time.Now()

	ctx, span := otel.Tracer("farewatch/workflow").Start(ctx, "price_check",
		trace.WithAttributes(
			attribute.String("workflow_id", workflowID),
			attribute.Int64("trip_id", tripID),
		),
	)
	defer span.End()

	run, err := w.runs.FindOrCreate(ctx, workflowID, tripID)
	if err != nil {
		return model.PriceCheckResult{}, err
	}

	// 重复投递：已终结的执行直接返回既有结论
	switch run.Step {
	case model.RunStepCompleted:
		return resultFromRun(run), nil
	case model.RunStepFailed:
		return resultFromRun(run), fmt.Errorf("%w: %s", ErrRunAlreadyFailed, run.FailureReason)
	}

	status := "failed"
	metrics.AddActivePriceChecks(ctx, 1)
	defer func() {
		metrics.AddActivePriceChecks(ctx, -1)
		metrics.RecordPriceCheck(ctx, status, time.Since(start))
	}()

	// Load：行程不存在是致命失败，不重试，不写快照
	var details *model.TripDetails
	if run.Step == model.RunStepPending {
		details, err = w.trips.LoadTripDetails(ctx, tripID)
		if err != nil {
			if errors.Is(err, fwerrors.TripNotFound) {
				run.Step = model.RunStepFailed
				run.FailureReason = err.Error()
				if uerr := w.runs.Update(ctx, run); uerr != nil {
					w.logger.Error("Failed to record fatal run state",
						zap.String("workflow_id", workflowID),
						zap.Error(uerr),
					)
				}
				return model.PriceCheckResult{Success: false}, err
			}
			return model.PriceCheckResult{}, err
		}

		payload, merr := json.Marshal(details)
		if merr != nil {
			return model.PriceCheckResult{}, fmt.Errorf("failed to marshal trip details: %w", merr)
		}
		run.TripDetails = datatypes.JSON(payload)
		run.Step = model.RunStepLoaded
		if err := w.runs.Update(ctx, run); err != nil {
			return model.PriceCheckResult{}, err
		}
	} else {
		// 续跑：沿用 Load 阶段记录的行程快照，保证输入一致
		details = &model.TripDetails{}
		if err := json.Unmarshal(run.TripDetails, details); err != nil {
			return model.PriceCheckResult{}, fmt.Errorf("failed to unmarshal trip details: %w", err)
		}
	}

	// 取消只在步骤边界生效，进行中的活动不强行打断
	if err := ctx.Err(); err != nil {
		return model.PriceCheckResult{}, err
	}

	// Fan-out：两条腿并发抓取，各自独立重试，等双方都到达终态再继续。
	// 一条腿重试耗尽只会变成该腿的错误字段，不会取消另一条腿。
	var flightRes fetch.FlightResult
	var hotelRes fetch.HotelResult
	if run.Step == model.RunStepLoaded {
		flightRes, hotelRes = w.fetchBothLegs(ctx, details)

		fr, merr := json.Marshal(flightRes)
		if merr != nil {
			return model.PriceCheckResult{}, fmt.Errorf("failed to marshal flight result: %w", merr)
		}
		hr, merr := json.Marshal(hotelRes)
		if merr != nil {
			return model.PriceCheckResult{}, fmt.Errorf("failed to marshal hotel result: %w", merr)
		}

		run.FlightResult = datatypes.JSON(fr)
		run.HotelResult = datatypes.JSON(hr)
		run.FlightError = flightRes.Err
		run.HotelError = hotelRes.Err
		run.Step = model.RunStepFetched
		if err := w.runs.Update(ctx, run); err != nil {
			return model.PriceCheckResult{}, err
		}
	} else {
		if err := json.Unmarshal(run.FlightResult, &flightRes); err != nil {
			return model.PriceCheckResult{}, fmt.Errorf("failed to unmarshal flight result: %w", err)
		}
		if err := json.Unmarshal(run.HotelResult, &hotelRes); err != nil {
			return model.PriceCheckResult{}, fmt.Errorf("failed to unmarshal hotel result: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return model.PriceCheckResult{}, err
	}

	// Filter：纯函数，无 IO，单腿报错时另一条腿照常过滤
	out := filter.Apply(flightRes, hotelRes, &details.FlightPrefs, &details.HotelPrefs)

	// Persist：run 记录保证同一次执行至多一张快照。
	// 快照写完先把 SnapshotID 落回 run 记录再推进到 completed：
	// 若后面的更新失败，重投时 SnapshotID 已在库里，不会再写第二张快照。
	if run.SnapshotID == nil {
		snap, serr := buildSnapshot(tripID, out)
		if serr != nil {
			return model.PriceCheckResult{}, serr
		}
		if err := w.snapshots.Save(ctx, snap); err != nil {
			return model.PriceCheckResult{}, err
		}
		metrics.RecordSnapshot(ctx)
		run.SnapshotID = &snap.ID
		if err := w.runs.Update(ctx, run); err != nil {
			return model.PriceCheckResult{}, err
		}
	}

	run.Step = model.RunStepCompleted
	if err := w.runs.Update(ctx, run); err != nil {
		return model.PriceCheckResult{}, err
	}

	status = "completed"
	result := resultFromRun(run)

	w.logger.Info("Price check completed",
		zap.String("workflow_id", workflowID),
		zap.Int64("trip_id", tripID),
		zap.Int64("snapshot_id", result.SnapshotID),
		zap.String("flight_error", result.FlightError),
		zap.String("hotel_error", result.HotelError),
	)

	return result, nil
}

// fetchBothLegs 并发执行两条腿的抓取活动，wait-for-all，保留双方结果。
func (w *PriceCheck) fetchBothLegs(ctx context.Context, details *model.TripDetails) (fetch.FlightResult, fetch.HotelResult) {
	var (
		wg        sync.WaitGroup
		flightRes fetch.FlightResult
		hotelRes  fetch.HotelResult
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		legStart := time.Now()

		res, err := retry.Do(ctx, w.fetchRetry, "flight_fetch", w.logger, func(ctx context.Context) (fetch.FlightResult, error) {
			return w.flights.Fetch(ctx, details)
		})
		if err != nil {
			// 重试耗尽：归一化成腿级错误
			res = fetch.FlightResult{Offers: []providers.FlightOffer{}, Err: fmt.Sprintf("%s: %v", fwerrors.FetchRetriesExceeded.Message, err)}
		}

		flightRes = res
		metrics.RecordLegFetch(ctx, "flight", legOutcome(res.Err), time.Since(legStart))
	}()

	go func() {
		defer wg.Done()
		legStart := time.Now()

		res, err := retry.Do(ctx, w.fetchRetry, "hotel_fetch", w.logger, func(ctx context.Context) (fetch.HotelResult, error) {
			return w.hotels.Fetch(ctx, details)
		})
		if err != nil {
			res = fetch.HotelResult{Offers: []providers.HotelOffer{}, Err: fmt.Sprintf("%s: %v", fwerrors.FetchRetriesExceeded.Message, err)}
		}

		hotelRes = res
		metrics.RecordLegFetch(ctx, "hotel", legOutcome(res.Err), time.Since(legStart))
	}()

	wg.Wait()
	return flightRes, hotelRes
}

func legOutcome(errText string) string {
	if errText != "" {
		return "error"
	}
	return "ok"
}

func resultFromRun(run *model.PriceCheckRun) model.PriceCheckResult {
	result := model.PriceCheckResult{
		Success:     run.Step == model.RunStepCompleted,
		FlightError: run.FlightError,
		HotelError:  run.HotelError,
	}
	if run.SnapshotID != nil {
		result.SnapshotID = *run.SnapshotID
	}
	return result
}

// buildSnapshot 把过滤结果折叠成一条快照。
// 价格取各腿排序后的首个报价；失败或零结果的腿价格为 NULL。
func buildSnapshot(tripID int64, out filter.Output) (*model.PriceSnapshot, error) {
	raw, err := json.Marshal(out.RawData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot raw data: %w", err)
	}

	snap := &model.PriceSnapshot{
		TripID:  tripID,
		RawData: datatypes.JSON(raw),
	}

	if len(out.Flights) > 0 {
		p := out.Flights[0].Price
		snap.FlightPrice = &p
	}
	if len(out.Hotels) > 0 {
		p := out.Hotels[0].Price
		snap.HotelPrice = &p
	}

	if snap.FlightPrice != nil || snap.HotelPrice != nil {
		total := 0.0
		if snap.FlightPrice != nil {
			total += *snap.FlightPrice
		}
		if snap.HotelPrice != nil {
			total += *snap.HotelPrice
		}
		snap.TotalPrice = &total
	}

	return snap, nil
}
