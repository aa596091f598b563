package csv

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/aqguard/pkg/table"
)

const uciSample = `Date;Time;CO(GT);PT08.S1(CO);NMHC(GT);T;;
10/03/2004;18.00.00;2,6;1360;150;13,6;;
10/03/2004;19.00.00;-200;1292;112;13,3;;
;;;;;;;
`

func TestReadUCIStyle(t *testing.T) {
	r, err := NewStreamReader(strings.NewReader(uciSample),
		WithComma(';'),
		WithDecimalComma(true),
	)
	require.NoError(t, err)
	defer r.Close()

	tbl, err := r.Read()
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t,
		[]string{"Date", "Time", "CO(GT)", "PT08.S1(CO)", "NMHC(GT)", "T", "Unnamed: 6", "Unnamed: 7"},
		tbl.Names())

	date, _ := tbl.Column("Date")
	assert.Equal(t, table.String, date.Kind)

	co, _ := tbl.Column("CO(GT)")
	require.Equal(t, table.Float, co.Kind)
	assert.Equal(t, 2.6, co.Floats[0])
	assert.Equal(t, -200.0, co.Floats[1])
	assert.True(t, math.IsNaN(co.Floats[2]))

	unnamed, _ := tbl.Column("Unnamed: 6")
	assert.True(t, unnamed.AllMissing())
}

func TestReadOptions(t *testing.T) {
	data := "Time,Datetime,v\n18.00,2004-03-10 18:00:00,1\n19.00,,x\n"

	r, err := NewStreamReader(strings.NewReader(data),
		WithStringColumns("Time"),
		WithTimeColumns("Datetime"),
	)
	require.NoError(t, err)

	tbl, err := r.Read()
	require.NoError(t, err)

	tm, _ := tbl.Column("Time")
	assert.Equal(t, table.String, tm.Kind)

	dt, _ := tbl.Column("Datetime")
	require.Equal(t, table.Time, dt.Kind)
	assert.Equal(t, time.Date(2004, 3, 10, 18, 0, 0, 0, time.UTC), dt.Times[0])
	assert.True(t, dt.Times[1].IsZero())

	v, _ := tbl.Column("v")
	assert.Equal(t, table.String, v.Kind, "mixed column stays text")
}

func TestReadErrors(t *testing.T) {
	t.Run("too many fields", func(t *testing.T) {
		r, err := NewStreamReader(strings.NewReader("a,b\n1,2,3\n"))
		require.NoError(t, err)
		_, err = r.Read()
		assert.Error(t, err)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		r, err := NewStreamReader(strings.NewReader("Datetime\nyesterday\n"), WithTimeColumns("Datetime"))
		require.NoError(t, err)
		_, err = r.Read()
		assert.Error(t, err)
	})

	t.Run("duplicate header", func(t *testing.T) {
		r, err := NewStreamReader(strings.NewReader("Date,CO,CO\n10/03/2004,1,99\n"))
		require.NoError(t, err)
		_, err = r.Read()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"CO" appears twice`)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewReader(filepath.Join(t.TempDir(), "nope.csv"))
		assert.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := NewStreamReader(strings.NewReader(""))
		assert.Error(t, err)
	})
}

func TestWriteRoundTrip(t *testing.T) {
	tbl, err := table.New(
		table.NewString("Date", []string{"10/03/2004", ""}),
		table.NewFloat("CO(GT)", []float64{2.6, math.NaN()}),
		table.NewTime("Datetime", []time.Time{time.Date(2004, 3, 10, 18, 0, 0, 0, time.UTC), {}}),
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(tbl))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Date,CO(GT),Datetime\n10/03/2004,2.6,2004-03-10 18:00:00\n,,\n", string(raw))

	r, err := NewReader(path, WithTimeColumns("Datetime"))
	require.NoError(t, err)
	defer r.Close()

	back, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, tbl.Names(), back.Names())

	dt, _ := back.Column("Datetime")
	assert.Equal(t, table.Time, dt.Kind)
}

func TestWriteComma(t *testing.T) {
	tbl, err := table.New(table.NewFloat("a", []float64{1}), table.NewFloat("b", []float64{2.5}))
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewStreamWriter(&buf, WithWriteComma(';'))
	require.NoError(t, w.Write(tbl))
	assert.Equal(t, "a;b\n1;2.5\n", buf.String())
}
