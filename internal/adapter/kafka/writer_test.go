package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madridclima/weather-etl/internal/domain"
)

func cleanedTestTable(t *testing.T) *domain.Table {
	t.Helper()

	tbl := domain.New(
		domain.ColDateTime,
		domain.ColTemperature,
		domain.ColHumidity,
		domain.ColWindSpeed,
		domain.ColWindDirection,
		domain.ColWindDirectionDegrees,
		domain.ColSkyCondition,
		domain.ColWindStatus,
	)
	require.NoError(t, tbl.AppendRow(
		time.Date(2025, 2, 18, 8, 0, 0, 0, time.UTC),
		22.5, 65.0, 10.0, "north", 0.0, "clear", domain.WindStatusWithWind,
	))
	require.NoError(t, tbl.AppendRow(
		time.Date(2025, 2, 18, 9, 0, 0, 0, time.UTC),
		23.0, 60.0, 0.0, "calm", nil, "clear", domain.WindStatusCalm,
	))
	return tbl
}

func TestSerializeRow(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 2, 18, 8, 15, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	tbl := cleanedTestTable(t)

	t.Run("keys message by municipality and datetime", func(t *testing.T) {
		msg, err := serializeRow(tbl, 0, "28079")
		require.NoError(t, err)

		assert.Equal(t, "28079-2025-02-18T08:00:00", string(msg.Key))
	})

	t.Run("carries every cleaned column in the payload", func(t *testing.T) {
		msg, err := serializeRow(tbl, 0, "28079")
		require.NoError(t, err)

		var obj map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &obj))

		assert.Equal(t, "2025-02-18T08:00:00Z", obj[domain.ColDateTime])
		assert.Equal(t, 22.5, obj[domain.ColTemperature])
		assert.Equal(t, "north", obj[domain.ColWindDirection])
		assert.Equal(t, "with wind", obj[domain.ColWindStatus])
	})

	t.Run("serializes calm rows with null degrees", func(t *testing.T) {
		msg, err := serializeRow(tbl, 1, "28079")
		require.NoError(t, err)

		var obj map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &obj))

		assert.Equal(t, "calm", obj[domain.ColWindDirection])
		assert.Nil(t, obj[domain.ColWindDirectionDegrees])
		assert.Equal(t, "calm", obj[domain.ColWindStatus])
	})

	t.Run("stamps headers with municipality and publish time", func(t *testing.T) {
		msg, err := serializeRow(tbl, 0, "28079")
		require.NoError(t, err)

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, "28079", headers["municipality"])
		assert.Equal(t, "2025-02-18T08:15:00Z", headers["published_at"])
	})
}
