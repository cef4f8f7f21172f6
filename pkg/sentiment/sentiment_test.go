package sentiment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	a := New()

	pos := a.Score("This stock is great, I love it! Amazing earnings.")
	require.Greater(t, pos, Threshold)
	require.LessOrEqual(t, pos, 1.0)

	neg := a.Score("Terrible company. Awful earnings, I hate this garbage.")
	require.Less(t, neg, -Threshold)
	require.GreaterOrEqual(t, neg, -1.0)

	require.Zero(t, a.Score(""))
}

func TestBlend(t *testing.T) {
	a := New()
	text := "Earnings were good."
	ctx := "Commenters are very bearish and worried about a terrible guidance cut."

	require.Equal(t, a.Score(text), a.Blend(text, ""))
	require.InDelta(t, 0.6*a.Score(text)+0.4*a.Score(ctx), a.Blend(text, ctx), 1e-9)
}

func TestAggregate(t *testing.T) {
	st := Aggregate("NVDA", []float64{0.8, 0.05, -0.05, -0.4, 0.0})
	require.Equal(t, "NVDA", st.Ticker)
	require.Equal(t, 5, st.Total)
	require.Equal(t, 1, st.Positive)
	require.Equal(t, 1, st.Negative)
	require.Equal(t, 3, st.Neutral)
	require.InDelta(t, 0.08, st.Average, 1e-9)

	empty := Aggregate("NVDA", nil)
	require.Zero(t, empty.Total)
	require.Zero(t, empty.Average)
}

func TestLabel(t *testing.T) {
	require.Equal(t, LabelPositive, Label(0.05))
	require.Equal(t, LabelNegative, Label(-0.05))
	require.Equal(t, LabelNeutral, Label(0.049))
	require.Equal(t, LabelNeutral, Label(0))
}
