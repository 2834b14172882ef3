package overtime

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"attendance.service/internal/clock"
	"attendance.service/internal/core"
	"attendance.service/internal/ports/messaging"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// Syncer is the overtime operation the processor drives.
type Syncer interface {
	SyncRange(ctx context.Context, req core.SyncRequest) (int, error)
}

// Processor handles OvertimeSyncRequest messages from the overtime queue.
type Processor struct {
	syncer Syncer
	clock  *clock.Resolver
	now    func() time.Time
}

func NewProcessor(syncer Syncer, resolver *clock.Resolver) *Processor {
	return &Processor{
		syncer: syncer,
		clock:  resolver,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Process runs the requested sync. Malformed or invalid requests are dropped;
// infrastructure failures are retried with exponential backoff.
func (p *Processor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	if msg.Body == nil {
		return false, 0, fmt.Errorf("empty message body")
	}
	var req messaging.OvertimeSyncRequest
	if err := json.Unmarshal([]byte(*msg.Body), &req); err != nil {
		return false, 0, fmt.Errorf("failed to unmarshal overtime sync request: %w", err)
	}

	syncReq, err := p.toSyncRequest(req)
	if err != nil {
		return false, 0, err
	}

	updated, err := p.syncer.SyncRange(ctx, syncReq)
	if err != nil {
		if core.IsUserError(err) {
			return false, 0, err
		}
		return true, calculateBackoff(receiveCount(msg)), err
	}

	log.Ctx(ctx).Info().
		Str("employeeId", req.EmployeeID).
		Str("requestedBy", req.RequestedBy).
		Str("from", syncReq.From.String()).
		Str("to", syncReq.To.String()).
		Int("updated", updated).
		Msg("Overtime sync request processed")
	return false, 0, nil
}

// toSyncRequest resolves the requested window: a single date, a month, or the
// current month when neither is given.
func (p *Processor) toSyncRequest(req messaging.OvertimeSyncRequest) (core.SyncRequest, error) {
	out := core.SyncRequest{EmployeeID: req.EmployeeID, VerifyEmployee: req.EmployeeID != ""}

	switch {
	case req.Date != "":
		d, err := clock.ParseDate(req.Date)
		if err != nil {
			return out, fmt.Errorf("invalid date %q: %w", req.Date, err)
		}
		out.From, out.To = d, d
	case req.Month != 0 || req.Year != 0:
		if req.Month < 1 || req.Month > 12 || req.Year == 0 {
			return out, fmt.Errorf("invalid month %d/%d", req.Month, req.Year)
		}
		out.From, out.To = clock.MonthRange(req.Year, time.Month(req.Month))
	default:
		today := p.clock.Today(p.now())
		out.From, out.To = clock.MonthRange(today.Year, today.Month)
	}
	return out, nil
}

func receiveCount(msg types.Message) int {
	n, err := strconv.Atoi(msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// calculateBackoff doubles the delay with each delivery, capped at one hour.
func calculateBackoff(retryCount int) int32 {
	backoff := math.Pow(2, float64(retryCount)) * 10
	if backoff > 3600 {
		return 3600
	}
	return int32(backoff)
}
