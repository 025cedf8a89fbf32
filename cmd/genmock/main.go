// Command genmock generates a mock AEMET hourly forecast payload and the CSV
// fixtures derived from it. It runs the actual parser and cleaning pipeline so
// the fixtures match real collector behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -payload-out data/mock/madrid_hourly_payload.json \
//	  -raw-out data/mock/madrid_weather_forecast.csv \
//	  -clean-out data/mock/madrid_weather_clean.csv
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/madridclima/weather-etl/internal/adapter/aemet"
	"github.com/madridclima/weather-etl/internal/adapter/csvstore"
	"github.com/madridclima/weather-etl/internal/domain"
)

var baseDate = time.Date(2025, time.February, 18, 0, 0, 0, 0, time.UTC)

var windCodes = []string{"N", "NE", "E", "SE", "S", "SO", "O", "NO", "C"}

var skyStates = []string{
	"Despejado", "Poco nuboso", "Nubes altas", "Nuboso",
	"Muy nuboso", "Cubierto", "Cubierto con lluvia escasa",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	payloadOut := flag.String("payload-out", "", "output path for the forecast payload JSON fixture")
	rawOut := flag.String("raw-out", "", "output path for the raw CSV fixture")
	cleanOut := flag.String("clean-out", "", "output path for the cleaned CSV fixture")
	days := flag.Int("days", 2, "number of forecast days to generate")
	seed := flag.Int64("seed", 28079, "random seed, fixed for reproducible fixtures")
	flag.Parse()

	if *payloadOut == "" || *rawOut == "" || *cleanOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -payload-out, -raw-out, -clean-out")
	}

	// Fix the clock so the collection timestamps in the fixtures are stable.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.February, 18, 8, 15, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	payload := generatePayload(rand.New(rand.NewSource(*seed)), *days)

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := writeFile(*payloadOut, append(data, '\n')); err != nil {
		return fmt.Errorf("writing payload fixture: %w", err)
	}
	log.Printf("wrote payload fixture: %s", *payloadOut)

	// Round-trip through the real parser so the CSV fixtures cannot drift
	// from what the collector actually produces.
	var forecasts []aemet.Forecast
	if err := json.Unmarshal(data, &forecasts); err != nil {
		return fmt.Errorf("unmarshal generated payload: %w", err)
	}
	raw, err := aemet.ParseForecast(&forecasts[0])
	if err != nil {
		return fmt.Errorf("parse generated payload: %w", err)
	}
	log.Printf("raw rows: %d", raw.Len())

	store := csvstore.New(slog.Default())
	if _, err := store.Save(raw, *rawOut); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *rawOut)

	cleaned, err := domain.Clean(raw)
	if err != nil {
		return fmt.Errorf("clean generated table: %w", err)
	}
	if _, err := store.Save(cleaned, *cleanOut); err != nil {
		return fmt.Errorf("writing clean fixture: %w", err)
	}
	log.Printf("wrote clean fixture: %s (%d rows)", *cleanOut, cleaned.Len())

	printStats(cleaned)
	return nil
}

// generatePayload builds the single-element forecast array AEMET serves for a
// municipality, as generic JSON so the fixture mirrors the wire format.
func generatePayload(rng *rand.Rand, days int) []map[string]any {
	dias := make([]map[string]any, 0, days)
	for d := 0; d < days; d++ {
		date := baseDate.AddDate(0, 0, d)

		var temperatura, humedad []map[string]any
		var estadoCielo []map[string]any
		var viento []map[string]any

		for hour := 0; hour < 24; hour++ {
			periodo := fmt.Sprintf("%02d", hour)

			temp := 8.0 + 10.0*rng.Float64()
			temperatura = append(temperatura, map[string]any{
				"value": fmt.Sprintf("%.1f", temp), "periodo": periodo,
			})
			humedad = append(humedad, map[string]any{
				"value": fmt.Sprintf("%d", 40+rng.Intn(55)), "periodo": periodo,
			})

			sky := skyStates[rng.Intn(len(skyStates))]
			estadoCielo = append(estadoCielo, map[string]any{
				"value": "11", "periodo": periodo, "descripcion": sky,
			})

			code := windCodes[rng.Intn(len(windCodes))]
			speed := "0"
			if code != "C" {
				speed = fmt.Sprintf("%d", 2+rng.Intn(28))
			}
			viento = append(viento, map[string]any{
				"direccion": []string{code},
				"velocidad": []string{speed},
				"periodo":   periodo,
			})
			// gust entry for the same period, value only
			viento = append(viento, map[string]any{
				"value": fmt.Sprintf("%d", 10+rng.Intn(40)), "periodo": periodo,
			})
		}

		dias = append(dias, map[string]any{
			"fecha":             date.Format("2006-01-02T15:04:05"),
			"temperatura":       temperatura,
			"humedadRelativa":   humedad,
			"estadoCielo":       estadoCielo,
			"vientoAndRachaMax": viento,
		})
	}

	return []map[string]any{{
		"nombre":    "Madrid",
		"provincia": "Madrid",
		"elaborado": domain.Now().Format("2006-01-02T15:04:05"),
		"prediccion": map[string]any{
			"dia": dias,
		},
	}}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func printStats(cleaned *domain.Table) {
	calm := 0
	skyCounts := map[string]int{}
	for r := 0; r < cleaned.Len(); r++ {
		if v, _ := cleaned.Cell(r, domain.ColWindStatus); v == domain.WindStatusCalm {
			calm++
		}
		if v, _ := cleaned.Cell(r, domain.ColSkyCondition); v != nil {
			skyCounts[v.(string)]++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total rows: %d\n", cleaned.Len())
	fmt.Printf("Calm rows: %d\n", calm)
	fmt.Printf("Sky conditions:")
	for sky, n := range skyCounts {
		fmt.Printf(" %s=%d", sky, n)
	}
	fmt.Println()
}
