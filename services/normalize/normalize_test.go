package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat_AbsentMarkers(t *testing.T) {
	for _, raw := range []any{"", "-", "--", "nan", "NaN", "None", "null", "N/A", math.NaN(), math.Inf(1), "abc", true} {
		assert.Nil(t, Float(Row{"price": raw}, "price"), "value %v", raw)
	}
	assert.Nil(t, Float(Row{}, "price"))
	assert.Nil(t, Float(Row{"price": nil}, "price"))
}

func TestFloat_Parses(t *testing.T) {
	cases := map[string]struct {
		raw  any
		want float64
	}{
		"float":       {12.5, 12.5},
		"string":      {" 12.50 ", 12.5},
		"thousands":   {"1,234.5", 1234.5},
		"json number": {json.Number("-3.25"), -3.25},
		"int":         {7, 7},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := Float(Row{"v": tc.raw}, "v")
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestInt_ThroughFloat(t *testing.T) {
	got := Int(Row{"volume": "1200.0"}, "volume")
	require.NotNil(t, got)
	assert.Equal(t, int64(1200), *got)

	got = Int(Row{"volume": json.Number("1.5e3")}, "volume")
	require.NotNil(t, got)
	assert.Equal(t, int64(1500), *got)

	assert.Nil(t, Int(Row{"volume": "-"}, "volume"))
	assert.Nil(t, Int(Row{"volume": 1e300}, "volume"))
}

func TestLookup_FirstAliasWins(t *testing.T) {
	row := Row{"融资余额(元)": "10", "融资余额": nil, "other": "1"}
	v, ok := Lookup(row, "融资余额", "融资余额(元)", "other")
	require.True(t, ok)
	assert.Equal(t, "10", v)

	_, ok = Lookup(row, "missing")
	assert.False(t, ok)
}

func TestDecimal(t *testing.T) {
	d := Decimal(Row{"amount": "123456789.123"}, "amount")
	require.True(t, d.Valid)
	assert.Equal(t, "123456789.123", d.Decimal.String())

	d = Decimal(Row{"amount": 2.5}, "amount")
	require.True(t, d.Valid)
	assert.Equal(t, "2.5", d.Decimal.String())

	assert.False(t, Decimal(Row{"amount": "-"}, "amount").Valid)
	assert.False(t, Decimal(Row{"amount": "x1"}, "amount").Valid)
}

func TestString(t *testing.T) {
	assert.Equal(t, "贵州茅台", String(Row{"名称": " 贵州茅台 "}, "名称"))
	assert.Equal(t, "600519", String(Row{"代码": json.Number("600519")}, "代码"))
	assert.Equal(t, "", String(Row{"名称": "None"}, "名称"))
	assert.Equal(t, "", String(Row{}, "名称"))
}

func TestDate(t *testing.T) {
	cases := map[string]any{
		"iso":                 "2024-05-10",
		"compact":             "20240510",
		"pandas":              "2024-05-10T00:00:00.000",
		"datetime":            "2024-05-10 15:04:05",
		"epoch ms":            json.Number("1715299200000"),
		"compact json number": json.Number("20240510"),
		"compact float":       float64(20240510),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, "2024-05-10", Date(Row{"日期": raw}, "日期"))
		})
	}
	assert.Equal(t, "", Date(Row{"日期": "-"}, "日期"))
	assert.Equal(t, "", Date(Row{"日期": "yesterday"}, "日期"))
}

func TestDateTime(t *testing.T) {
	assert.Equal(t, "2024-05-10 15:04:05", DateTime(Row{"发布时间": "2024-05-10 15:04:05"}, "发布时间"))
	assert.Equal(t, "2024-05-10 00:00:00", DateTime(Row{"发布时间": "20240510"}, "发布时间"))

	loc := time.FixedZone("CST", 8*3600)
	ts, ok := Time(Row{"t": "2024-05-10 09:30"}, loc, "t")
	require.True(t, ok)
	assert.Equal(t, 9, ts.Hour())
	assert.Equal(t, loc, ts.Location())
}

func TestFields_AliasTable(t *testing.T) {
	sse := Fields{"margin_balance": {"融资余额"}}
	szse := Fields{"margin_balance": {"融资余额(元)"}}
	row := Row{"融资余额(元)": "100"}

	assert.False(t, sse.Decimal(row, "margin_balance").Valid)
	assert.True(t, szse.Decimal(row, "margin_balance").Valid)

	// unknown fields fall back to the field name itself
	assert.Equal(t, "x", Fields{}.String(Row{"name": "x"}, "name"))
}
