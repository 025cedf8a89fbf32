package aemet

import (
	"fmt"
	"time"

	"github.com/madridclima/weather-etl/internal/domain"
)

// indirection is the first-step response. AEMET never serves data directly:
// the API answers with a short-lived URL where the payload actually lives.
type indirection struct {
	Descripcion string `json:"descripcion"`
	Estado      int    `json:"estado"`
	Datos       string `json:"datos"`
	Metadatos   string `json:"metadatos"`
}

// Forecast is one element of the hourly municipality forecast payload.
// The API returns a single-element array per municipality.
type Forecast struct {
	Nombre     string     `json:"nombre"`
	Provincia  string     `json:"provincia"`
	Elaborado  string     `json:"elaborado"`
	Prediccion prediccion `json:"prediccion"`
}

type prediccion struct {
	Dia []day `json:"dia"`
}

// day holds one forecast day. Each parameter is its own array of per-period
// entries; periods are two-digit hours "00".."23".
type day struct {
	Fecha             string        `json:"fecha"`
	Temperatura       []periodValue `json:"temperatura"`
	HumedadRelativa   []periodValue `json:"humedadRelativa"`
	EstadoCielo       []skyState    `json:"estadoCielo"`
	VientoAndRachaMax []windPeriod  `json:"vientoAndRachaMax"`
}

type periodValue struct {
	Value   string `json:"value"`
	Periodo string `json:"periodo"`
}

type skyState struct {
	Value       string `json:"value"`
	Periodo     string `json:"periodo"`
	Descripcion string `json:"descripcion"`
}

// windPeriod entries come in two flavors AEMET interleaves in the same array:
// direction/speed entries carrying direccion+velocidad, and gust entries
// carrying only value. Only the former have a direction.
type windPeriod struct {
	Direccion []string `json:"direccion"`
	Velocidad []string `json:"velocidad"`
	Periodo   string   `json:"periodo"`
	Value     string   `json:"value"`
}

// ParseForecast flattens a forecast into the raw observation table consumed
// by domain.Clean: one row per forecast hour that has a temperature reading,
// columns date (dd/mm/yyyy), hour (int), temperature, humidity, wind_speed,
// wind_direction, sky_condition, timestamp. Measurements stay raw strings;
// missing readings become nil cells. Every row of one call shares a single
// collection timestamp taken from the domain clock.
func ParseForecast(f *Forecast) (*domain.Table, error) {
	tbl := domain.New(
		domain.ColDate, domain.ColHour,
		domain.ColTemperature, domain.ColHumidity, domain.ColWindSpeed,
		domain.ColWindDirection, domain.ColSkyCondition, domain.ColTimestamp,
	)
	collectedAt := domain.Now().Format("02/01/2006 15:04:05")

	for _, d := range f.Prediccion.Dia {
		date, err := parseFecha(d.Fecha)
		if err != nil {
			return nil, err
		}

		for hour := 0; hour < 24; hour++ {
			periodo := fmt.Sprintf("%02d", hour)

			temp := findPeriodValue(d.Temperatura, periodo)
			if temp == nil {
				continue // temperature is the presence indicator for the slot
			}

			row := []any{
				date.Format("02/01/2006"),
				hour,
				*temp,
				anyOrNil(findPeriodValue(d.HumedadRelativa, periodo)),
				nil, // wind_speed
				nil, // wind_direction
				anyOrNil(findSkyDescription(d.EstadoCielo, periodo)),
				collectedAt,
			}
			if dir, speed, ok := findWind(d.VientoAndRachaMax, periodo); ok {
				row[4] = speed
				row[5] = dir
			}
			if err := tbl.AppendRow(row...); err != nil {
				return nil, err
			}
		}
	}
	return tbl, nil
}

func parseFecha(fecha string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if d, err := time.Parse(layout, fecha); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse forecast day date %q: %w", fecha, domain.ErrParse)
}

func findPeriodValue(values []periodValue, periodo string) *string {
	for _, v := range values {
		if v.Periodo == periodo && v.Value != "" {
			return &v.Value
		}
	}
	return nil
}

func findSkyDescription(states []skyState, periodo string) *string {
	for _, s := range states {
		if s.Periodo == periodo && s.Descripcion != "" {
			return &s.Descripcion
		}
	}
	return nil
}

// findWind returns the first direction/speed reading for the period,
// skipping gust-only entries.
func findWind(winds []windPeriod, periodo string) (dir, speed string, ok bool) {
	for _, w := range winds {
		if w.Periodo == periodo && len(w.Direccion) > 0 && len(w.Velocidad) > 0 {
			return w.Direccion[0], w.Velocidad[0], true
		}
	}
	return "", "", false
}

func anyOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
