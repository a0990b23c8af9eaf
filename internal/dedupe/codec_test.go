package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/feeddedup/pkg/models"
)

func TestParseFeed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    models.Feed
		wantErr bool
	}{
		{
			name:  "valid feed",
			input: `{"a": ["x", "y"], "b": []}`,
			want:  models.Feed{"a": {"x", "y"}, "b": {}},
		},
		{
			name:  "surrounding whitespace and newline",
			input: "  {\"a\": [\"x\"]}\n",
			want:  models.Feed{"a": {"x"}},
		},
		{
			name:  "null source is empty",
			input: `{"a": null}`,
			want:  models.Feed{"a": {}},
		},
		{
			name:  "empty object",
			input: `{}`,
			want:  models.Feed{},
		},
		{name: "empty payload", input: "", wantErr: true},
		{name: "top-level null", input: "null", wantErr: true},
		{name: "top-level array", input: `["x"]`, wantErr: true},
		{name: "non-array value", input: `{"a": "x"}`, wantErr: true},
		{name: "non-string element", input: `{"a": ["x", 3]}`, wantErr: true},
		{name: "null element", input: `{"a": ["x", null]}`, wantErr: true},
		{name: "truncated", input: `{"a": ["x"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFeed([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeFeed(t *testing.T) {
	data, err := EncodeFeed(models.Feed{"b": nil, "a": {"x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": ["x"], "b": []}`, string(data))

	back, err := ParseFeed(data)
	require.NoError(t, err)
	assert.Equal(t, models.Feed{"a": {"x"}, "b": {}}, back)
}
