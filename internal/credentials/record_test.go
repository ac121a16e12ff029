package credentials

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAccessors(t *testing.T) {
	rec := Record{{ColUser, "fanny"}, {"comment", "hello"}}

	v, ok := rec.Get(ColUser)
	assert.True(t, ok)
	assert.Equal(t, "fanny", v)

	_, ok = rec.Get("missing")
	assert.False(t, ok)
	assert.True(t, rec.Has("comment"))
}

func TestRecordSetDoesNotMutate(t *testing.T) {
	rec := Record{{ColUser, "fanny"}, {ColStartTime, ""}}

	updated := rec.Set(ColStartTime, "2024-06-14")
	v, _ := updated.Get(ColStartTime)
	assert.Equal(t, "2024-06-14", v)

	orig, _ := rec.Get(ColStartTime)
	assert.Equal(t, "", orig)

	appended := rec.Set("new_field", "x")
	assert.Len(t, appended, 3)
	assert.Len(t, rec, 2)
}

func TestRecordWithout(t *testing.T) {
	rec := Record{
		{ColUser, "fanny"},
		{ColPassword, "azerty"},
		{ColHashed, "false"},
		{"comment", "keep"},
	}
	stripped := rec.Without(ColPassword, ColHashed)
	require.Len(t, stripped, 2)
	assert.Equal(t, ColUser, stripped[0].Name)
	assert.Equal(t, "comment", stripped[1].Name)
}

func TestRecordJSONRoundTrip(t *testing.T) {
	rec := Record{
		{"zebra", "last alphabetically, first in the record"},
		{ColUser, "fanny"},
		{"alpha", "first alphabetically"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	// Key order must survive marshalling.
	assert.JSONEq(t, `{"zebra":"last alphabetically, first in the record","user":"fanny","alpha":"first alphabetically"}`, string(data))
	assert.Less(t,
		strings.Index(string(data), "zebra"),
		strings.Index(string(data), "alpha"),
		"field order preserved in output")

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
}

func TestRecordUnmarshalRejectsNonObject(t *testing.T) {
	var rec Record
	assert.Error(t, json.Unmarshal([]byte(`["user","fanny"]`), &rec))
}

func TestNewTableDerivesColumns(t *testing.T) {
	table := NewTable(
		Record{{ColUser, "fanny"}, {ColPassword, "azerty"}},
		Record{{ColUser, "victor"}, {ColPassword, "12345"}, {ColAdmin, "true"}},
	)
	assert.Equal(t, []string{ColUser, ColPassword, ColAdmin}, table.Columns)
	assert.True(t, table.HasColumn(ColAdmin))
	assert.False(t, table.HasColumn(ColApplications))
}
