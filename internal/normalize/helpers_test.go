package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustProfile(t *testing.T, name string, mode Mode, table, logTable, deviceFrom string, topics ...string) *Profile {
	t.Helper()
	p, err := NewProfile(name, mode, topics, table, logTable, deviceFrom, nil)
	require.NoError(t, err)
	return p
}

func mustDecode(t *testing.T, payload string) RawEvent {
	t.Helper()
	e, err := Decode([]byte(payload))
	require.NoError(t, err)
	return e
}

func wise4210(t *testing.T) *Profile {
	return mustProfile(t, "wise4210", ModeSplitIOEnvironment, "iotdata.wise4210_data", "iotdata.connection_log", "family", "Advantech/+/data")
}
