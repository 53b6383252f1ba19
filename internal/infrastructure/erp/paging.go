package erp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erp/erpcore/internal/domain/integration"
)

const offsetTokenPrefix = "offset:"

// encodeOffsetToken builds an opaque continuation token resuming at offset
func encodeOffsetToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(offsetTokenPrefix + strconv.Itoa(offset)))
}

// decodeOffsetToken parses a continuation token; the empty token is offset 0
func decodeOffsetToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", integration.ErrInvalidPageToken, err)
	}
	digits, ok := strings.CutPrefix(string(raw), offsetTokenPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected token format", integration.ErrInvalidPageToken)
	}
	offset, err := strconv.Atoi(digits)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: bad offset %q", integration.ErrInvalidPageToken, digits)
	}
	return offset, nil
}

// nextToken returns the token of the page after [offset, offset+n), or "" on the last page
func nextToken(offset, n int, hasMore bool) string {
	if !hasMore || n == 0 {
		return ""
	}
	return encodeOffsetToken(offset + n)
}

// ---------------------------------------------------------------------------
// Sync loop shared by connectors
// ---------------------------------------------------------------------------

// syncPage is one page read during a sync run
type syncPage[T any] struct {
	Items   []T
	HasMore bool
	// Failed counts entities on the page that could not be mapped
	Failed int
	// Total is the backend-reported match count, when known
	Total *int64
}

// pageFetcher reads the page [offset, offset+limit). An expected backend
// failure is returned as a Failure; unexpected faults as an error.
type pageFetcher[T any] func(ctx context.Context, offset, limit int) (syncPage[T], *integration.Failure, error)

// runSync pages through fetch until the backend reports no more data.
// Progress is reported after every page. The resulting watermark is the
// latest change time seen, and never moves behind the request watermark.
func runSync[T any](
	ctx context.Context,
	req integration.SyncRequest,
	progress integration.ProgressReporter,
	limit int,
	fetch pageFetcher[T],
	changedAt func(T) time.Time,
) (integration.Result[*integration.SyncResult], error) {
	since, err := req.Watermark.Time()
	if err != nil {
		return integration.FailFrom[*integration.SyncResult](err), nil
	}

	result := &integration.SyncResult{
		Entity:    req.Entity,
		Mode:      req.Mode,
		Watermark: req.Watermark,
	}
	latest := since
	total := -1

	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return integration.Result[*integration.SyncResult]{}, err
		}

		page, failure, err := fetch(ctx, offset, limit)
		if err != nil {
			return integration.Result[*integration.SyncResult]{}, err
		}
		if failure != nil {
			return integration.FailWith[*integration.SyncResult](failure), nil
		}
		if page.Total != nil {
			total = int(*page.Total)
		}

		result.Failed += page.Failed
		for _, item := range page.Items {
			ts := changedAt(item)
			// backends filter by date at coarser granularity than the watermark
			if req.Mode == integration.SyncModeDelta && !ts.After(since) {
				continue
			}
			result.Processed++
			if ts.After(latest) {
				latest = ts
			}
		}
		offset += len(page.Items) + page.Failed

		integration.ReportProgress(progress, integration.SyncProgress{
			Entity:    req.Entity,
			Processed: result.Processed,
			Failed:    result.Failed,
			Total:     total,
		})

		if !page.HasMore || len(page.Items)+page.Failed == 0 {
			break
		}
	}

	result.Total = result.Processed + result.Failed
	if !latest.IsZero() {
		if wm := integration.WatermarkFromTime(latest); wm.Compare(result.Watermark) > 0 {
			result.Watermark = wm
		}
	}
	result.Status = integration.SyncStatusFor(result.Processed, result.Failed)
	return integration.Ok(result), nil
}

// checkSyncRequest validates a sync request against the provider capabilities
func checkSyncRequest(req integration.SyncRequest, caps integration.Capabilities) *integration.Failure {
	if err := req.Validate(); err != nil {
		return integration.FailFrom[struct{}](err).Failure()
	}
	if !caps.Supports(req.Entity) {
		return &integration.Failure{
			Code:    integration.CodeUnsupported,
			Message: fmt.Sprintf("sync of %s is not supported", req.Entity),
		}
	}
	if req.Mode == integration.SyncModeDelta && !caps.SupportsDeltaSync {
		return &integration.Failure{
			Code:    integration.CodeUnsupported,
			Message: "delta sync is not supported",
		}
	}
	return nil
}

// checkBatchSize rejects a bulk request exceeding the provider batch limit
func checkBatchSize(n int, caps integration.Capabilities) *integration.Failure {
	if caps.MaxBatchSize > 0 && n > caps.MaxBatchSize {
		err := fmt.Errorf("%w: %d items, limit is %d", integration.ErrBatchTooLarge, n, caps.MaxBatchSize)
		return integration.FailFrom[struct{}](err).Failure()
	}
	return nil
}
