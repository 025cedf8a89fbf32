// Package domain models AEMET hourly municipality forecast data and the
// cleaning pipeline that turns raw forecast rows into the canonical dataset.
//
// # Data Source
//
// Forecasts come from AEMET OpenData (Agencia Estatal de Meteorología), the
// Spanish national weather service, via the hourly municipality endpoint
// /prediccion/especifica/municipio/horaria/{code}. The adapter flattens each
// day's per-parameter period arrays into one row per forecast hour with the
// raw columns date, hour, temperature, humidity, wind_speed, wind_direction,
// sky_condition, and timestamp (the collection time).
//
// # AEMET Conventions
//
// Wind direction codes use Spanish abbreviations for the western half of the
// compass rose:
//
//	N NE E SE S  → as in English
//	SO           → sudoeste  (southwest, 225°)
//	O            → oeste     (west, 270°)
//	NO           → noroeste  (northwest, 315°)
//	C            → calma     (calm: no directional wind, no degrees)
//
// Sky states are free-text Spanish phrases: a base state (Despejado, Poco
// nuboso, Nuboso, Muy nuboso, Cubierto, Nubes altas) optionally compounded
// with precipitation or storm qualifiers ("Cubierto con lluvia escasa").
// The phrase set is open-ended; AEMET adds compounds over time.
//
// # Cleaning Pipeline
//
// Clean applies a fixed sequence of pure table-to-table stages: translate
// wind direction and sky condition, drop the consumed raw columns, normalize
// types, unify date+hour into a single datetime, reorder and rename to the
// canonical schema, tag the wind status, and deduplicate. The output schema
// is always
//
//	datetime, temperature, humidity, wind_speed, wind_direction,
//	wind_direction_degrees, sky_condition, wind_status
//
// with datetime first.
//
// Two failure modes are kept deliberately distinct:
//
//   - Malformed primitives (unparseable dates, non-numeric measurements) are
//     fatal: the whole Clean call fails with ErrParse and produces nothing.
//   - Unrecognized enum values (a wind code or sky phrase outside the
//     translation tables) are tolerated: the enrichment columns get nil and
//     the row flows on. This keeps the pipeline forward-compatible with
//     phrases the provider introduces later.
//
// Calm is threaded through the whole pipeline: raw code "C" iff nil
// wind_direction_degrees iff wind_status "calm".
//
// DetectOutliers flags physically implausible rows for inspection but is not
// part of Clean; outliers stay in the dataset.
package domain
