package mainboilerplate

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.gazette.dev/sqlkv/metrics"
)

func TestInitLogTagsAndCountsEvents(t *testing.T) {
	var std = log.StandardLogger()
	var prevOut, prevFmt, prevLvl = std.Out, std.Formatter, std.GetLevel()
	var prevHooks = std.ReplaceHooks(make(log.LevelHooks))
	defer func() {
		std.SetOutput(prevOut)
		std.SetFormatter(prevFmt)
		std.SetLevel(prevLvl)
		std.ReplaceHooks(prevHooks)
	}()

	var buf bytes.Buffer
	InitLog(LogConfig{Level: "warn", Format: "json"}, log.Fields{"id": "quick-fox"})
	std.SetOutput(&buf)

	var warnings = testutil.ToFloat64(metrics.LogEventsTotal.WithLabelValues("warning"))
	var infos = testutil.ToFloat64(metrics.LogEventsTotal.WithLabelValues("info"))

	log.WithField("key", "db").Warn("failed to write periodic checkpoint")
	log.WithField("id", "explicit").Warn("tagged")
	log.Info("filtered by level")

	var dec = json.NewDecoder(&buf)
	var first, second map[string]interface{}
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	require.False(t, dec.More())

	require.Equal(t, "quick-fox", first["id"])
	require.Equal(t, "db", first["key"])
	require.Equal(t, "warning", first["level"])
	// Fields of the event take precedence.
	require.Equal(t, "explicit", second["id"])

	require.Equal(t, warnings+2, testutil.ToFloat64(metrics.LogEventsTotal.WithLabelValues("warning")))
	require.Equal(t, infos, testutil.ToFloat64(metrics.LogEventsTotal.WithLabelValues("info")))
}
