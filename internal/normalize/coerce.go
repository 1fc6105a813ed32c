package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "wisegate/pkg/errors"
)

// TimestampLayout is the device timestamp format, always UTC.
const TimestampLayout = "2006-01-02T15:04:05Z"

// registerZone renders register-report epoch times.
var registerZone = time.FixedZone("UTC+7", 7*60*60)

func fieldError(field string, value any, want string) error {
	return apperrors.ErrExtraction.
		WithMessage(fmt.Sprintf("field %q: %v is not %s", field, value, want)).
		WithDetail("field", field)
}

// toBool accepts booleans, 0/1 numbers and "0"/"1"/"true"/"false".
// Absent or null is false.
func toBool(e RawEvent, field string) (bool, error) {
	switch v := e[field].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return false, fieldError(field, v, "a boolean")
		}
		return f != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true":
			return true, nil
		case "0", "false", "":
			return false, nil
		}
	}
	return false, fieldError(field, e[field], "a boolean")
}

func parseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// toFloat accepts numbers and numeric strings. Absent or null is 0.
func toFloat(e RawEvent, field string) (float64, error) {
	v := e[field]
	if v == nil {
		return 0, nil
	}
	f, ok := parseNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fieldError(field, v, "numeric")
	}
	return f, nil
}

// toInt accepts integral numbers and integral numeric strings. Absent or
// null is 0.
func toInt(e RawEvent, field string) (int64, error) {
	v := e[field]
	if v == nil {
		return 0, nil
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, ok := parseNumber(v)
	if !ok || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fieldError(field, v, "an integer")
	}
	return int64(f), nil
}

// toText renders scalar values as text. Absent or null is "".
func toText(e RawEvent, field string) (string, error) {
	switch v := e[field].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", fieldError(field, e[field], "a scalar")
}

// scale10 decodes a fixed-point value carrying one implied decimal place.
// Fractional raw values keep their extra precision.
func scale10(raw float64) float64 {
	return raw / 10
}

// toTimestamp parses field in TimestampLayout. Absent, null or empty falls
// back to now.
func toTimestamp(e RawEvent, field string, now time.Time) (time.Time, error) {
	switch v := e[field].(type) {
	case nil:
		return now.UTC(), nil
	case string:
		if v == "" {
			return now.UTC(), nil
		}
		ts, err := time.ParseInLocation(TimestampLayout, v, time.UTC)
		if err != nil {
			return time.Time{}, apperrors.ErrExtraction.
				WithCause(err).
				WithMessage(fmt.Sprintf("field %q: malformed timestamp %q", field, v)).
				WithDetail("field", field)
		}
		return ts, nil
	}
	return time.Time{}, fieldError(field, e[field], "a timestamp string")
}

// toEpoch reads epoch seconds, fractional allowed, in the register zone.
func toEpoch(e RawEvent, field string) (time.Time, error) {
	f, ok := parseNumber(e[field])
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fieldError(field, e[field], "epoch seconds")
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).In(registerZone), nil
}
