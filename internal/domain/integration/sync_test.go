package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermark_TimeOrdering(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := WatermarkFromTime(base)
	b := WatermarkFromTime(base.Add(time.Nanosecond))
	c := WatermarkFromTime(base.Add(10 * time.Hour))

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(c))
	assert.Equal(t, 0, a.Compare(WatermarkFromTime(base)))
	assert.Equal(t, -1, Watermark("").Compare(a))

	got, err := c.Time()
	require.NoError(t, err)
	assert.True(t, got.Equal(base.Add(10*time.Hour)))
}

func TestWatermark_TimeZoneIndependent(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, loc)
	assert.Equal(t, WatermarkFromTime(ts.UTC()), WatermarkFromTime(ts))
}

func TestWatermark_Sequence(t *testing.T) {
	assert.Equal(t, -1, WatermarkFromSequence(9).Compare(WatermarkFromSequence(10)))

	seq, err := WatermarkFromSequence(42).Sequence()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)

	_, err = WatermarkFromTime(time.Now()).Sequence()
	assert.ErrorIs(t, err, ErrInvalidWatermark)
}

func TestSyncRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SyncRequest
		wantErr bool
	}{
		{"full", SyncRequest{Entity: EntityProduct, Mode: SyncModeFull}, false},
		{"delta with watermark", SyncRequest{Entity: EntityCustomer, Mode: SyncModeDelta, Watermark: WatermarkFromSequence(1)}, false},
		{"unknown entity", SyncRequest{Entity: "INVOICE", Mode: SyncModeFull}, true},
		{"unknown mode", SyncRequest{Entity: EntityProduct, Mode: "PARTIAL"}, true},
		{"full with watermark", SyncRequest{Entity: EntityProduct, Mode: SyncModeFull, Watermark: WatermarkFromSequence(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.True(t, IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSyncResult_CheckWatermark(t *testing.T) {
	req := SyncRequest{Entity: EntityProduct, Mode: SyncModeDelta, Watermark: WatermarkFromSequence(5)}

	assert.NoError(t, (&SyncResult{Watermark: WatermarkFromSequence(5)}).CheckWatermark(req))
	assert.NoError(t, (&SyncResult{Watermark: WatermarkFromSequence(6)}).CheckWatermark(req))
	assert.ErrorIs(t, (&SyncResult{Watermark: WatermarkFromSequence(4)}).CheckWatermark(req), ErrInvalidWatermark)
}

func TestSyncStatusFor(t *testing.T) {
	assert.Equal(t, SyncStatusCompleted, SyncStatusFor(0, 0))
	assert.Equal(t, SyncStatusCompleted, SyncStatusFor(10, 0))
	assert.Equal(t, SyncStatusPartiallyCompleted, SyncStatusFor(9, 1))
	assert.Equal(t, SyncStatusFailed, SyncStatusFor(0, 3))
}
