package aemet

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madridclima/weather-etl/internal/domain"
)

func testForecast() *Forecast {
	return &Forecast{
		Nombre:    "Madrid",
		Provincia: "Madrid",
		Prediccion: prediccion{
			Dia: []day{
				{
					Fecha: "2025-02-18T00:00:00",
					Temperatura: []periodValue{
						{Value: "22.5", Periodo: "08"},
						{Value: "23.0", Periodo: "09"},
					},
					HumedadRelativa: []periodValue{
						{Value: "65", Periodo: "08"},
						{Value: "68", Periodo: "09"},
					},
					EstadoCielo: []skyState{
						{Value: "11", Periodo: "08", Descripcion: "Despejado"},
						{Value: "12", Periodo: "09", Descripcion: "Poco nuboso"},
					},
					VientoAndRachaMax: []windPeriod{
						{Direccion: []string{"N"}, Velocidad: []string{"10"}, Periodo: "08"},
						{Value: "18", Periodo: "08"}, // gust entry, no direction
						{Direccion: []string{"C"}, Velocidad: []string{"0"}, Periodo: "09"},
					},
				},
				{
					Fecha: "2025-02-19T00:00:00",
					Temperatura: []periodValue{
						{Value: "21.5", Periodo: "08"},
					},
					HumedadRelativa: []periodValue{
						{Value: "70", Periodo: "08"},
					},
					EstadoCielo: []skyState{
						{Value: "14", Periodo: "08", Descripcion: "Nuboso"},
					},
				},
			},
		},
	}
}

func TestParseForecast(t *testing.T) {
	collectedAt := time.Date(2025, 2, 18, 8, 15, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(collectedAt))
	defer domain.SetClock(nil)

	tbl, err := ParseForecast(testForecast())
	require.NoError(t, err)

	assert.Equal(t, []string{
		domain.ColDate, domain.ColHour,
		domain.ColTemperature, domain.ColHumidity, domain.ColWindSpeed,
		domain.ColWindDirection, domain.ColSkyCondition, domain.ColTimestamp,
	}, tbl.Columns())

	// Only periods with a temperature reading become rows.
	require.Equal(t, 3, tbl.Len())

	cell := func(row int, col string) any {
		v, ok := tbl.Cell(row, col)
		require.True(t, ok)
		return v
	}

	assert.Equal(t, "18/02/2025", cell(0, domain.ColDate))
	assert.Equal(t, 8, cell(0, domain.ColHour))
	assert.Equal(t, "22.5", cell(0, domain.ColTemperature))
	assert.Equal(t, "65", cell(0, domain.ColHumidity))
	assert.Equal(t, "10", cell(0, domain.ColWindSpeed))
	assert.Equal(t, "N", cell(0, domain.ColWindDirection))
	assert.Equal(t, "Despejado", cell(0, domain.ColSkyCondition))
	assert.Equal(t, "18/02/2025 08:15:00", cell(0, domain.ColTimestamp))

	// Calm slot keeps its sentinel code; translation happens downstream.
	assert.Equal(t, "C", cell(1, domain.ColWindDirection))
	assert.Equal(t, "0", cell(1, domain.ColWindSpeed))

	// Second day has no wind entries at all.
	assert.Equal(t, "19/02/2025", cell(2, domain.ColDate))
	assert.Nil(t, cell(2, domain.ColWindDirection))
	assert.Nil(t, cell(2, domain.ColWindSpeed))
}

func TestParseForecastFeedsClean(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 2, 18, 8, 15, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	raw, err := ParseForecast(testForecast())
	require.NoError(t, err)

	cleaned, err := domain.Clean(raw)
	require.NoError(t, err)

	require.Equal(t, 3, cleaned.Len())
	assert.Equal(t, domain.ColDateTime, cleaned.Columns()[0])

	dt, ok := cleaned.Cell(0, domain.ColDateTime)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 2, 18, 8, 0, 0, 0, time.UTC), dt)

	status, ok := cleaned.Cell(1, domain.ColWindStatus)
	require.True(t, ok)
	assert.Equal(t, domain.WindStatusCalm, status)
}

func TestParseForecastBadDate(t *testing.T) {
	f := testForecast()
	f.Prediccion.Dia[0].Fecha = "mañana"

	_, err := ParseForecast(f)
	require.ErrorIs(t, err, domain.ErrParse)
}
