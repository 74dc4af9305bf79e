package universe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-sector-backtest/internal/model"
)

func TestDefaultsCoverAllSectors(t *testing.T) {
	entries, aliases, err := Defaults()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.NotEmpty(t, aliases)

	seen := make(map[model.Sector]bool)
	for _, e := range entries {
		seen[e.Sector] = true
	}
	for _, s := range model.AllSectors {
		assert.True(t, seen[s], "sector %s has no tickers", s)
	}

	// 每个别名都必须指向股票池中的 ticker
	idx := NewIndex(entries)
	_, rejected := NewMapper(aliases, idx)
	assert.Empty(t, rejected)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.UniverseEntry
		wantErr bool
	}{
		{
			name: "valid",
			entries: []model.UniverseEntry{
				{Ticker: "AAPL", Sector: model.SectorTechnology},
				{Ticker: "XOM", Sector: model.SectorEnergy},
			},
		},
		{
			name: "duplicate ticker",
			entries: []model.UniverseEntry{
				{Ticker: "AAPL", Sector: model.SectorTechnology},
				{Ticker: "AAPL", Sector: model.SectorCommunication},
			},
			wantErr: true,
		},
		{
			name:    "unknown sector",
			entries: []model.UniverseEntry{{Ticker: "SPY", Sector: "Benchmark"}},
			wantErr: true,
		},
		{
			name:    "empty ticker",
			entries: []model.UniverseEntry{{Ticker: "", Sector: model.SectorEnergy}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.entries)
			if tt.wantErr {
				var dataErr *model.DataError
				assert.True(t, errors.As(err, &dataErr))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMapperMatch(t *testing.T) {
	idx := NewIndex([]model.UniverseEntry{
		{Ticker: "AAPL", Sector: model.SectorTechnology},
		{Ticker: "JNJ", Sector: model.SectorHealthcare},
		{Ticker: "AMD", Sector: model.SectorTechnology},
	})
	aliases := []model.AliasEntry{
		{Ticker: "AAPL", Alias: "apple", Mode: model.AliasWord},
		{Ticker: "AAPL", Alias: "tim cook", Mode: model.AliasContains},
		{Ticker: "JNJ", Alias: "johnson & johnson", Mode: model.AliasContains},
		{Ticker: "AMD", Alias: "amd", Mode: model.AliasWord},
		{Ticker: "SPY", Alias: "s&p 500", Mode: model.AliasContains},
	}
	m, rejected := NewMapper(aliases, idx)
	require.Len(t, rejected, 1)
	var alignErr *model.AlignmentError
	require.True(t, errors.As(rejected[0], &alignErr))
	assert.Equal(t, "SPY", alignErr.Ticker)
	assert.Equal(t, 4, m.Len())

	tests := []struct {
		title string
		want  []string
	}{
		{"Apple unveils new iPhone", []string{"AAPL"}},
		{"Pineapple prices surge", nil},
		{"Tim Cook meets Johnson & Johnson's CEO", []string{"AAPL", "JNJ"}},
		{"AMD, Apple rally", []string{"AAPL", "AMD"}},
		{"Diamond demand", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.title))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "at t to buy t mobile", Normalize("AT&T  to buy T-Mobile!"))
	assert.Equal(t, "", Normalize("  ...  "))
}
