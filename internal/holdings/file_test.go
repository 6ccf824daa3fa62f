package holdings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHoldingsFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string // symbol:quantity:cost
		wantErr bool
	}{
		{
			name: "yaml wrapped",
			content: `
holdings:
  - symbol: AAPL
    quantity: 100
    averageCost: 150.00
  - symbol: TSLA
    quantity: -10
    averageCost: "240.10"
`,
			want: []string{"AAPL:100:150", "TSLA:-10:240.1"},
		},
		{
			name: "yaml list",
			content: `
- symbol: MSFT
  quantity: 0.5
  averageCost: 380
`,
			want: []string{"MSFT:0.5:380"},
		},
		{
			name:    "json",
			content: `{"holdings":[{"symbol":"GOOGL","quantity":20,"averageCost":140.5}]}`,
			want:    []string{"GOOGL:20:140.5"},
		},
		{
			name:    "json list",
			content: `[{"symbol":"AMZN","quantity":"30","averageCost":"172.25"}]`,
			want:    []string{"AMZN:30:172.25"},
		},
		{
			name:    "empty document",
			content: "",
			want:    nil,
		},
		{
			name:    "scalar document",
			content: "just a string",
			wantErr: true,
		},
		{
			name:    "bad quantity",
			content: "- symbol: AAPL\n  quantity: many\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			content: "holdings: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFile([]byte(tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var flat []string
			for _, hd := range got {
				flat = append(flat, hd.Symbol+":"+hd.Quantity.String()+":"+hd.AverageCost.String())
			}
			assert.Equal(t, tt.want, flat)
		})
	}
}

func TestFileProvider_Fetch(t *testing.T) {
	path := writeHoldingsFile(t, "holdings.yaml", "- symbol: AAPL\n  quantity: 100\n  averageCost: 150\n")

	got, err := NewFileProvider(path).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
}

func TestFileProvider_MissingFile(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "nope.yaml")).Fetch(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
