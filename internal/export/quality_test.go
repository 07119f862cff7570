package export

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/nem12-converter/internal/nem12"
)

func TestResolveQualityWithoutEvents(t *testing.T) {
	day := testDay(sequence(48), "A")
	day.ReasonCode = intPtr(51)
	day.ReasonDescription = "Meter replaced"

	got, err := ResolveQuality(day, ResolveOptions{})
	require.NoError(t, err)
	require.Len(t, got, 48)

	want := Quality{Method: "A", ReasonCode: intPtr(51), ReasonDescription: "Meter replaced"}
	for i, q := range got {
		assert.True(t, want.Equal(q), "interval %d: %+v", i+1, q)
	}
}

func TestResolveQualityWithEvents(t *testing.T) {
	day := testDay(sequence(48), "V",
		testEvent(1, 20, "A", nil),
		testEvent(21, 48, "S14", intPtr(32)),
	)

	got, err := ResolveQuality(day, ResolveOptions{})
	require.NoError(t, err)
	require.Len(t, got, 48)

	assert.Equal(t, "A", got[0].Method)
	assert.Nil(t, got[0].ReasonCode)
	assert.Equal(t, "A", got[19].Method)
	assert.Equal(t, "S14", got[20].Method)
	require.NotNil(t, got[47].ReasonCode)
	assert.Equal(t, 32, *got[47].ReasonCode)
}

func TestResolveQualityInconsistentEvents(t *testing.T) {
	tests := []struct {
		name         string
		events       []*nem12.IntervalEvent
		allowOverlap bool
		wantInterval int
		wantOverlap  bool
	}{
		{
			name:         "gap at the end",
			events:       []*nem12.IntervalEvent{testEvent(1, 20, "A", nil)},
			wantInterval: 21,
		},
		{
			name:         "gap in the middle",
			events:       []*nem12.IntervalEvent{testEvent(1, 10, "A", nil), testEvent(12, 48, "E", nil)},
			wantInterval: 11,
		},
		{
			name:         "overlap",
			events:       []*nem12.IntervalEvent{testEvent(1, 30, "A", nil), testEvent(25, 48, "E", nil)},
			wantInterval: 25,
			wantOverlap:  true,
		},
		{
			name:         "gap is an error even when overlaps are allowed",
			events:       []*nem12.IntervalEvent{testEvent(2, 48, "A", nil)},
			allowOverlap: true,
			wantInterval: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := testDay(sequence(48), "V", tt.events...)

			_, err := ResolveQuality(day, ResolveOptions{AllowOverlappingEvents: tt.allowOverlap})
			require.Error(t, err)

			var qErr *QualityResolutionError
			require.True(t, errors.As(err, &qErr))
			assert.Equal(t, tt.wantInterval, qErr.Interval)
			assert.Equal(t, tt.wantOverlap, qErr.Overlap)
			assert.True(t, qErr.IntervalDate.Equal(testDate))
		})
	}
}

func TestResolveQualityAllowedOverlapTakesFirstEvent(t *testing.T) {
	day := testDay(sequence(48), "V",
		testEvent(1, 30, "A", nil),
		testEvent(25, 48, "E", intPtr(7)),
	)

	got, err := ResolveQuality(day, ResolveOptions{AllowOverlappingEvents: true})
	require.NoError(t, err)
	assert.Equal(t, "A", got[24].Method)
	assert.Equal(t, "A", got[29].Method)
	assert.Equal(t, "E", got[30].Method)
}

func TestMergeQualities(t *testing.T) {
	a := Quality{Method: "A"}
	e := Quality{Method: "E", ReasonCode: intPtr(1)}

	assert.Equal(t, a, mergeQualities([]Quality{a, a, a}))
	assert.Equal(t, Quality{Method: VariableQuality}, mergeQualities([]Quality{a, e}))
	assert.Equal(t, Quality{Method: VariableQuality}, mergeQualities([]Quality{e, {Method: "E", ReasonCode: intPtr(2)}}))
	assert.True(t, e.Equal(mergeQualities([]Quality{e, {Method: "E", ReasonCode: intPtr(1)}})))
}
