package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wisegate/pkg/errors"
)

var ingestNow = time.Date(2025, 5, 30, 4, 30, 0, 0, time.UTC)

func TestExtractIO_Coercion(t *testing.T) {
	io, err := ExtractIO(mustDecode(t, `{"di1":true,"di2":0,"di3":1,"di4":"1","di5":"false","do1":"true","s":"7","q":2.0,"c":3,"rssi":-60}`))
	require.NoError(t, err)

	assert.Equal(t, IOFields{
		S:    7,
		C:    3,
		Q:    2,
		RSSI: -60,
		DI1:  true,
		DI3:  true,
		DI4:  true,
		DO1:  true,
	}, io)
}

func TestExtractIO_MissingDefaultsToZero(t *testing.T) {
	io, err := ExtractIO(mustDecode(t, `{"di1":null}`))
	require.NoError(t, err)
	assert.Equal(t, IOFields{}, io)
}

func TestExtractIO_Errors(t *testing.T) {
	for _, payload := range []string{
		`{"s":"abc"}`,
		`{"s":1.5}`,
		`{"c":true}`,
		`{"di1":"maybe"}`,
		`{"do2":{"v":1}}`,
		`{"rssi":[1]}`,
	} {
		t.Run(payload, func(t *testing.T) {
			_, err := ExtractIO(mustDecode(t, payload))
			require.Error(t, err)
			assert.True(t, apperrors.IsExtraction(err))
		})
	}
}

func TestExtractEnvironment_Scaling(t *testing.T) {
	tests := []struct {
		payload     string
		temp, humid float64
	}{
		{`{"p1v00r0000x00":"250","p1v00r0000x01":"600"}`, 25.0, 60.0},
		{`{"p1v00r0000x00":249,"p1v00r0000x01":607}`, 24.9, 60.7},
		{`{"p1v00r0000x00":"-15"}`, -1.5, 0},
		{`{"p1v00r0000x00":" 1 "}`, 0.1, 0},
		{`{"p1v00r0000x00":"255.5","p1v00r0000x01":249.4}`, 25.55, 24.94},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			env, err := ExtractEnvironment(mustDecode(t, tt.payload), ingestNow)
			require.NoError(t, err)
			assert.InDelta(t, tt.temp, env.Temp, 1e-9)
			assert.InDelta(t, tt.humid, env.Humidity, 1e-9)
			assert.Equal(t, ingestNow, env.Timestamp)
		})
	}
}

func TestExtractEnvironment_NonNumeric(t *testing.T) {
	_, err := ExtractEnvironment(mustDecode(t, `{"p1v00r0000x00":"hot"}`), ingestNow)
	require.Error(t, err)
	assert.True(t, apperrors.IsExtraction(err))
	assert.Contains(t, err.Error(), "p1v00r0000x00")
}

func TestTimestamps(t *testing.T) {
	ts, err := toTimestamp(mustDecode(t, `{"t":"2025-05-30T04:23:00Z"}`), FieldTime, ingestNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 30, 4, 23, 0, 0, time.UTC), ts)

	ts, err = toTimestamp(mustDecode(t, `{"t":""}`), FieldTime, ingestNow)
	require.NoError(t, err)
	assert.Equal(t, ingestNow, ts)

	ts, err = toTimestamp(mustDecode(t, `{}`), FieldTime, ingestNow.In(registerZone))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())

	for _, payload := range []string{`{"t":"2025-05-30 04:23:00"}`, `{"t":"30/05/2025"}`, `{"t":1717000000}`} {
		_, err := toTimestamp(mustDecode(t, payload), FieldTime, ingestNow)
		require.Error(t, err, payload)
		assert.True(t, apperrors.IsExtraction(err))
	}
}

func TestExtractConnectionLog(t *testing.T) {
	entry, err := ExtractConnectionLog(mustDecode(t, `{"status":"online","name":"dev1","macid":"AA:BB","ipaddr":"10.0.0.5"}`), ingestNow)
	require.NoError(t, err)
	assert.Equal(t, ConnectionLogEntry{Status: "online", Name: "dev1", MacID: "AA:BB", IPAddr: "10.0.0.5", Timestamp: ingestNow}, entry)

	entry, err = ExtractConnectionLog(mustDecode(t, `{"status":1,"macid":"AA"}`), ingestNow)
	require.NoError(t, err)
	assert.Equal(t, "1", entry.Status)
	assert.Empty(t, entry.IPAddr)

	_, err = ExtractConnectionLog(mustDecode(t, `{"status":"online","macid":{"x":1}}`), ingestNow)
	assert.True(t, apperrors.IsExtraction(err))
}

func TestExtractDigitalIO(t *testing.T) {
	rec, err := ExtractDigitalIO(mustDecode(t, `{"s":5,"q":192,"c":17,"di1":true,"di4":1,"do2":true,"t":"2025-05-30T04:23:00Z"}`), ingestNow)
	require.NoError(t, err)

	assert.Equal(t, DigitalIORecord{
		Timestamp: time.Date(2025, 5, 30, 4, 23, 0, 0, time.UTC),
		Sequence:  5,
		Quality:   192,
		Counter:   17,
		DI1:       true,
		DI4:       true,
		DO2:       true,
	}, rec)
	assert.Len(t, rec.Row(), len(Columns(KindDigitalIO)))
}

func TestExtractTagValues(t *testing.T) {
	e := mustDecode(t, `{"d":[{"tag":"wise4210:temp","value":249.00},{"tag":"wise4210:hum","value":607.00},{"tag":"wise4210:co2","value":4000}],"ts":"2025-05-30T04:23:00Z"}`)

	rec, ok, err := ExtractTagValues(e, "device_id", ingestNow)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "device_id", rec.DeviceID)
	require.NotNil(t, rec.Temp)
	require.NotNil(t, rec.Hum)
	assert.Equal(t, 24.9, *rec.Temp)
	assert.Equal(t, 60.7, *rec.Hum)
	assert.Equal(t, time.Date(2025, 5, 30, 4, 23, 0, 0, time.UTC), rec.Timestamp)
}

func TestExtractTagValues_FractionalRawValue(t *testing.T) {
	rec, ok, err := ExtractTagValues(mustDecode(t, `{"d":[{"tag":"wise4210:temp","value":249.6}],"ts":"2025-05-30T04:23:00Z"}`), "ecu", ingestNow)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, rec.Temp)
	assert.InDelta(t, 24.96, *rec.Temp, 1e-9)
}

func TestExtractTagValues_PartialAndEmpty(t *testing.T) {
	rec, ok, err := ExtractTagValues(mustDecode(t, `{"d":[{"tag":"x:hum","value":"500"}],"ts":"2025-05-30T04:23:00Z"}`), "ecu", ingestNow)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, rec.Temp)
	assert.Equal(t, 50.0, *rec.Hum)
	assert.Equal(t, []any{"ecu", nil, 50.0, rec.Timestamp}, rec.Row())

	_, ok, err = ExtractTagValues(mustDecode(t, `{"d":[{"tag":"x:co2","value":1}],"ts":"2025-05-30T04:23:00Z"}`), "ecu", ingestNow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractTagValues_Errors(t *testing.T) {
	for _, payload := range []string{
		`{"d":[1],"ts":""}`,
		`{"d":[{"value":1}],"ts":""}`,
		`{"d":[{"tag":"temp"}],"ts":""}`,
		`{"d":[{"tag":"temp","value":"warm"}],"ts":""}`,
		`{"d":[{"tag":"temp","value":1}],"ts":"yesterday"}`,
	} {
		t.Run(payload, func(t *testing.T) {
			_, _, err := ExtractTagValues(mustDecode(t, payload), "ecu", ingestNow)
			require.Error(t, err)
			assert.True(t, apperrors.IsExtraction(err))
		})
	}
}

func TestExtractRegister(t *testing.T) {
	reg, err := extractRegister(mustDecode(t, `{"RtuRegister0-0":{"Data":"253","Status":0},"RtuRegister0-1":{"Data":715,"Status":"1"},"Device":{"Time":1717000000}}`))
	require.NoError(t, err)

	assert.Equal(t, 25.3, reg.Temp)
	assert.Equal(t, int64(0), reg.TempStatus)
	assert.Equal(t, 71.5, reg.Humidity)
	assert.Equal(t, int64(1), reg.HumidityStatus)

	want := time.Unix(1717000000, 0)
	assert.True(t, want.Equal(reg.Timestamp))
	_, offset := reg.Timestamp.Zone()
	assert.Equal(t, 7*3600, offset)
	assert.Equal(t, 23, reg.Timestamp.Hour())
}

func TestExtractRegister_FractionalData(t *testing.T) {
	reg, err := extractRegister(mustDecode(t, `{"RtuRegister0-0":{"Data":253.7,"Status":0},"RtuRegister0-1":{"Data":"715.2","Status":0},"Device":{"Time":1717000000}}`))
	require.NoError(t, err)
	assert.InDelta(t, 25.37, reg.Temp, 1e-9)
	assert.InDelta(t, 71.52, reg.Humidity, 1e-9)
}

func TestExtractRegister_BadTime(t *testing.T) {
	_, err := extractRegister(mustDecode(t, `{"RtuRegister0-0":{"Data":1},"RtuRegister0-1":{"Data":1},"Device":{"Time":"noon"}}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsExtraction(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Device", appErr.Details["object"])
}

func TestExtractSignal(t *testing.T) {
	s, err := ExtractSignal(mustDecode(t, `{"rssi":-71}`))
	require.NoError(t, err)
	require.NotNil(t, s.RSSI)
	assert.Equal(t, int64(-71), *s.RSSI)
	assert.Nil(t, s.DevAddr)

	s, err = ExtractSignal(mustDecode(t, `{"devaddr":"01A4","rssi":null}`))
	require.NoError(t, err)
	assert.Nil(t, s.RSSI)
	assert.Equal(t, "01A4", *s.DevAddr)

	_, err = ExtractSignal(mustDecode(t, `{"rssi":"strong"}`))
	assert.True(t, apperrors.IsExtraction(err))
}
