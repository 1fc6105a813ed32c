package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisegate/internal/broker"
	"wisegate/internal/logger"
	"wisegate/internal/normalize"
	apperrors "wisegate/pkg/errors"
)

type insertCall struct {
	table string
	rec   normalize.Record
}

type fakeSink struct {
	mu    sync.Mutex
	calls []insertCall
	err   error
	panic bool
}

func (s *fakeSink) Insert(_ context.Context, table string, rec normalize.Record) error {
	if s.panic {
		panic("driver exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, insertCall{table: table, rec: rec})
	return nil
}

type publishCall struct {
	channel string
	payload any
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (n *fakeNotifier) Publish(_ context.Context, channel string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, publishCall{channel: channel, payload: payload})
	return n.err
}

type rawEntry struct {
	source string
	data   any
}

type fakeRecorder struct {
	entries []rawEntry
}

func (r *fakeRecorder) Add(source string, data any) {
	r.entries = append(r.entries, rawEntry{source: source, data: data})
}

var receivedAt = time.Date(2025, 5, 30, 4, 30, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeSink, *fakeNotifier) {
	t.Helper()

	wise4210, err := normalize.NewProfile("wise4210", normalize.ModeSplitIOEnvironment,
		[]string{"Advantech/+/data"}, "iotdata.wise4210_data", "iotdata.connection_log", "", nil)
	require.NoError(t, err)
	ecu, err := normalize.NewProfile("ecu1251", normalize.ModeTagValue,
		[]string{"data/+"}, "iotdata.wise4210_ecu1251", "", "topic_last", nil)
	require.NoError(t, err)

	router, err := normalize.NewRouter(wise4210, ecu)
	require.NoError(t, err)

	merger := normalize.NewMerger(normalize.NewPartialCache(), normalize.NewSignalCache())
	sink := &fakeSink{}
	notifier := &fakeNotifier{}
	d := NewDispatcher(router, normalize.NewNormalizer(merger), sink, notifier, Config{}, logger.NopLogger())
	d.now = func() time.Time { return receivedAt }
	return d, sink, notifier
}

func message(topic, payload string) broker.Message {
	return broker.Message{ID: "m-1", Topic: topic, Payload: []byte(payload), ReceivedAt: receivedAt}
}

func TestProcess_ConnectionLog(t *testing.T) {
	d, sink, notifier := newTestDispatcher(t)

	out, err := d.Process(context.Background(), message("Advantech/A1/data",
		`{"status":"online","name":"dev1","macid":"AA:BB","ipaddr":"10.0.0.5"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, out.Status)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, "iotdata.connection_log", sink.calls[0].table)
	entry, ok := sink.calls[0].rec.(normalize.ConnectionLogEntry)
	require.True(t, ok)
	assert.Equal(t, "dev1", entry.Name)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "connection_log", notifier.calls[0].channel)
	assert.True(t, out.Broadcasted)
}

func TestProcess_SplitReading(t *testing.T) {
	d, sink, notifier := newTestDispatcher(t)
	ctx := context.Background()

	out, err := d.Process(ctx, message("Advantech/A1/data", `{"di1":true,"di2":false,"s":1,"q":2,"c":3}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCached, out.Status)
	assert.Empty(t, sink.calls)
	assert.Empty(t, notifier.calls)

	out, err = d.Process(ctx, message("Advantech/A1/data", `{"p1v00r0000x00":"250","p1v00r0000x01":"600"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, out.Status)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, "iotdata.wise4210_data", sink.calls[0].table)
	rec := sink.calls[0].rec.(normalize.MergedRecord)
	assert.Equal(t, 25.0, rec.Temp)
	assert.Equal(t, 60.0, rec.Humidity)
	assert.True(t, rec.DI1)
	assert.Equal(t, int64(3), rec.C)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "mqtt_data", notifier.calls[0].channel)
	assert.Equal(t, rec, notifier.calls[0].payload)
}

func TestProcess_DecodeErrorHasNoSideEffects(t *testing.T) {
	d, sink, notifier := newTestDispatcher(t)

	out, err := d.Process(context.Background(), message("Advantech/A1/data", `{"di1":tru`))
	require.Error(t, err)
	assert.True(t, apperrors.IsDecode(err))
	assert.Equal(t, OutcomeDecodeError, out.Status)
	assert.Empty(t, sink.calls)
	assert.Empty(t, notifier.calls)

	out, err = d.Process(context.Background(), message("Advantech/A1/data", `{"status":"up","macid":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, out.Status)
}

func TestProcess_ExtractionError(t *testing.T) {
	d, sink, notifier := newTestDispatcher(t)

	out, err := d.Process(context.Background(), message("Advantech/A1/data", `{"p1v00r0000x00":"warm"}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsExtraction(err))
	assert.Equal(t, OutcomeExtractionError, out.Status)
	assert.Empty(t, sink.calls)
	assert.Empty(t, notifier.calls)
}

func TestProcess_UnmatchedTopic(t *testing.T) {
	d, sink, _ := newTestDispatcher(t)

	out, err := d.Process(context.Background(), message("elsewhere", `{"status":"online","macid":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, out.Status)
	assert.Empty(t, sink.calls)
}

func TestProcess_Unrecognized(t *testing.T) {
	d, sink, notifier := newTestDispatcher(t)

	out, err := d.Process(context.Background(), message("data/ECU-1", `{"hello":"world"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out.Status)
	assert.Equal(t, normalize.Unrecognized, out.Shape)
	assert.Empty(t, sink.calls)
	assert.Empty(t, notifier.calls)
}

func TestProcess_StorageErrorSkipsBroadcast(t *testing.T) {
	d, sink, notifier := newTestDispatcher(t)
	sink.err = apperrors.ErrStorage.WithCause(errors.New("connection refused"))

	out, err := d.Process(context.Background(), message("data/ECU-1",
		`{"d":[{"tag":"temp","value":249}],"ts":"2025-05-30T04:23:00Z"}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))
	assert.Equal(t, OutcomeStorageError, out.Status)
	assert.Empty(t, notifier.calls)
}

func TestProcess_BroadcastErrorIgnored(t *testing.T) {
	d, sink, notifier := newTestDispatcher(t)
	notifier.err = apperrors.ErrBroadcast

	out, err := d.Process(context.Background(), message("data/ECU-1",
		`{"d":[{"tag":"hum","value":600}],"ts":"2025-05-30T04:23:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, out.Status)
	assert.False(t, out.Broadcasted)
	require.Len(t, sink.calls, 1)

	rec := sink.calls[0].rec.(normalize.TagValueRecord)
	assert.Equal(t, "ECU-1", rec.DeviceID)
	assert.Nil(t, rec.Temp)
	assert.Equal(t, 60.0, *rec.Hum)
}

func TestHandle_RecoversPanic(t *testing.T) {
	d, sink, _ := newTestDispatcher(t)
	sink.panic = true

	msg := message("Advantech/A1/data", `{"status":"online","macid":"x"}`)
	assert.NotPanics(t, func() { d.Handle(context.Background(), msg) })

	out, err := d.Process(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, OutcomePanic, out.Status)
}

func TestProcess_ZeroReceivedAtUsesClock(t *testing.T) {
	d, sink, _ := newTestDispatcher(t)

	msg := message("Advantech/A1/data", `{"status":"online","macid":"x"}`)
	msg.ReceivedAt = time.Time{}
	_, err := d.Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, receivedAt, sink.calls[0].rec.Time())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate([]byte("abc"), 3))
	assert.Equal(t, "ab...", truncate([]byte("abc"), 2))
}

func TestNoNotifier(t *testing.T) {
	d, sink, _ := newTestDispatcher(t)
	d.notifier = nil

	out, err := d.Process(context.Background(), message("Advantech/A1/data", `{"status":"online","macid":"x"}`))
	require.NoError(t, err)
	assert.False(t, out.Broadcasted)
	assert.Len(t, sink.calls, 1)
}

func TestProcess_RecordsRawPayloads(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	rec := &fakeRecorder{}
	d.SetRawRecorder(rec)
	ctx := context.Background()

	_, err := d.Process(ctx, message("Advantech/A1/data", `{"di1":true,"s":1}`))
	require.NoError(t, err)
	_, err = d.Process(ctx, message("Advantech/A1/data", `{"p1v00r0000x00":"250"}`))
	require.NoError(t, err)

	_, _ = d.Process(ctx, message("Advantech/A1/data", `{"hello":"world"}`))
	_, _ = d.Process(ctx, message("Advantech/A1/data", `{broken`))
	_, _ = d.Process(ctx, message("Advantech/A1/data", `{"p1v00r0000x00":"hot"}`))
	_, _ = d.Process(ctx, message("unknown/topic", `{"di1":true}`))

	require.Len(t, rec.entries, 2)
	assert.Equal(t, "Advantech/A1/data", rec.entries[0].source)
	payload, ok := rec.entries[0].data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, payload["di1"])
	assert.Contains(t, rec.entries[1].data, "p1v00r0000x00")
}
