package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "wisegate/pkg/errors"
)

// Signal is the last-known radio information for register reports. Nil
// fields are unknown.
type Signal struct {
	RSSI    *int64
	DevAddr *string
}

// registerFields is a register report before the signal cache is applied.
type registerFields struct {
	Temp           float64
	TempStatus     int64
	Humidity       float64
	HumidityStatus int64
	Timestamp      time.Time
}

func ExtractConnectionLog(e RawEvent, now time.Time) (ConnectionLogEntry, error) {
	var entry ConnectionLogEntry
	var err error

	if entry.Status, err = toText(e, FieldStatus); err != nil {
		return ConnectionLogEntry{}, err
	}
	if entry.Name, err = toText(e, "name"); err != nil {
		return ConnectionLogEntry{}, err
	}
	if entry.MacID, err = toText(e, FieldMacID); err != nil {
		return ConnectionLogEntry{}, err
	}
	if entry.IPAddr, err = toText(e, "ipaddr"); err != nil {
		return ConnectionLogEntry{}, err
	}
	entry.Timestamp = now.UTC()
	return entry, nil
}

func ExtractIO(e RawEvent) (IOFields, error) {
	var io IOFields
	var err error

	ints := []struct {
		field string
		dst   *int64
	}{
		{"s", &io.S}, {"c", &io.C}, {"q", &io.Q}, {FieldRSSI, &io.RSSI},
	}
	for _, f := range ints {
		if *f.dst, err = toInt(e, f.field); err != nil {
			return IOFields{}, err
		}
	}

	bools := []*bool{&io.DI1, &io.DI2, &io.DI3, &io.DI4, &io.DI5, &io.DI6, &io.DO1, &io.DO2}
	for i, field := range ioFields {
		if *bools[i], err = toBool(e, field); err != nil {
			return IOFields{}, err
		}
	}
	return io, nil
}

func ExtractEnvironment(e RawEvent, now time.Time) (Environment, error) {
	temp, err := toFloat(e, FieldTemp)
	if err != nil {
		return Environment{}, err
	}
	humidity, err := toFloat(e, FieldHumidity)
	if err != nil {
		return Environment{}, err
	}
	ts, err := toTimestamp(e, FieldTime, now)
	if err != nil {
		return Environment{}, err
	}
	return Environment{Temp: scale10(temp), Humidity: scale10(humidity), Timestamp: ts}, nil
}

func ExtractDigitalIO(e RawEvent, now time.Time) (DigitalIORecord, error) {
	io, err := ExtractIO(e)
	if err != nil {
		return DigitalIORecord{}, err
	}
	ts, err := toTimestamp(e, FieldTime, now)
	if err != nil {
		return DigitalIORecord{}, err
	}
	return DigitalIORecord{
		Timestamp: ts,
		Sequence:  io.S,
		Quality:   io.Q,
		Counter:   io.C,
		DI1:       io.DI1,
		DI2:       io.DI2,
		DI3:       io.DI3,
		DI4:       io.DI4,
		DO1:       io.DO1,
		DO2:       io.DO2,
	}, nil
}

// ExtractTagValues reads {"d":[{"tag":..,"value":..}],"ts":..}. A tag
// containing "temp" sets Temp, otherwise one containing "hum" sets Hum;
// other tags are ignored. ok is false when neither was present.
func ExtractTagValues(e RawEvent, deviceID string, now time.Time) (rec TagValueRecord, ok bool, err error) {
	items, _ := e[FieldTagList].([]any)
	for i, raw := range items {
		item, isObj := raw.(map[string]any)
		if !isObj {
			return TagValueRecord{}, false, fieldError(fmt.Sprintf("%s[%d]", FieldTagList, i), raw, "an object")
		}
		entry := RawEvent(item)

		tag, isStr := entry["tag"].(string)
		if !isStr {
			return TagValueRecord{}, false, fieldError(fmt.Sprintf("%s[%d].tag", FieldTagList, i), entry["tag"], "a string")
		}
		if !entry.Has("value") || entry["value"] == nil {
			return TagValueRecord{}, false, apperrors.ErrExtraction.
				WithMessage(fmt.Sprintf("field %q: value missing for tag %q", FieldTagList, tag))
		}
		v, convErr := toFloat(entry, "value")
		if convErr != nil {
			return TagValueRecord{}, false, convErr
		}
		value := scale10(v)

		switch {
		case strings.Contains(tag, "temp"):
			rec.Temp = &value
		case strings.Contains(tag, "hum"):
			rec.Hum = &value
		}
	}

	ts, err := toTimestamp(e, FieldTagTime, now)
	if err != nil {
		return TagValueRecord{}, false, err
	}

	if rec.Temp == nil && rec.Hum == nil {
		return TagValueRecord{}, false, nil
	}
	rec.DeviceID = deviceID
	rec.Timestamp = ts
	return rec, true, nil
}

func extractRegister(e RawEvent) (registerFields, error) {
	temp, _ := e.Object(registerTemp)
	humid, _ := e.Object(registerHumid)
	device, _ := e.Object(registerDevice)

	var out registerFields

	raw, err := toFloat(temp, "Data")
	if err != nil {
		return registerFields{}, prefixed(registerTemp, err)
	}
	out.Temp = scale10(raw)
	if out.TempStatus, err = toInt(temp, "Status"); err != nil {
		return registerFields{}, prefixed(registerTemp, err)
	}

	if raw, err = toFloat(humid, "Data"); err != nil {
		return registerFields{}, prefixed(registerHumid, err)
	}
	out.Humidity = scale10(raw)
	if out.HumidityStatus, err = toInt(humid, "Status"); err != nil {
		return registerFields{}, prefixed(registerHumid, err)
	}

	if out.Timestamp, err = toEpoch(device, "Time"); err != nil {
		return registerFields{}, prefixed(registerDevice, err)
	}
	return out, nil
}

// ExtractSignal reads the rssi/devaddr fields present in e.
func ExtractSignal(e RawEvent) (Signal, error) {
	var s Signal
	if e.Has(FieldRSSI) && e[FieldRSSI] != nil {
		rssi, err := toInt(e, FieldRSSI)
		if err != nil {
			return Signal{}, err
		}
		s.RSSI = &rssi
	}
	if e.Has(FieldDevAddr) && e[FieldDevAddr] != nil {
		addr, err := toText(e, FieldDevAddr)
		if err != nil {
			return Signal{}, err
		}
		s.DevAddr = &addr
	}
	return s, nil
}

func prefixed(object string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.WithDetail("object", object)
	}
	return err
}
