package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStatisticsSnapshot(t *testing.T) {
	var vec = NewCommandsTotal()
	var s = NewStatistics(vec)

	s.Called("EXEC")
	s.Called("EXEC")
	s.Result("EXEC", nil)
	s.Result("EXEC", errors.New("boom"))
	s.Called("COPY")
	s.Result("COPY", nil)

	var snap = s.Snapshot()
	require.Len(t, snap, 3*len(Commands))
	require.Equal(t, []Stat{
		{Name: "EXEC", Count: 2},
		{Name: "EXEC OK", Count: 1},
		{Name: "EXEC ERR", Count: 1},
	}, snap[3:6])
	require.Equal(t, Stat{Name: "COPY OK", Count: 1}, snap[len(snap)-2])
	require.Equal(t, Stat{Name: "QUERY", Count: 0}, snap[6])

	require.Equal(t, float64(2), testutil.ToFloat64(vec.WithLabelValues("EXEC", Call)))
}
