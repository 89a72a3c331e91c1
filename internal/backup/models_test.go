package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		input    string
		expected Scope
		wantErr  bool
	}{
		{"full", Scope{Kind: ScopeFull}, false},
		{"", Scope{Kind: ScopeFull}, false},
		{"data-only", Scope{Kind: ScopeDataOnly}, false},
		{"schema-only", Scope{Kind: ScopeSchemaOnly}, false},
		{"table:users", Scope{Kind: ScopeTable, Table: "users"}, false},
		{"table:", Scope{}, true},
		{"everything", Scope{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			scope, err := ParseScope(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, scope)
		})
	}
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "full", Scope{Kind: ScopeFull}.String())
	assert.Equal(t, "table:users", Scope{Kind: ScopeTable, Table: "users"}.String())
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("plain")
	require.NoError(t, err)
	assert.Equal(t, FormatPlain, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCustom, format, "custom is the default")

	_, err = ParseFormat("tar")
	require.Error(t, err)
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, "sql", FormatPlain.Extension())
	assert.Equal(t, "dump", FormatCustom.Extension())
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	c, err = ParseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, c)

	_, err = ParseCompression("zip")
	require.Error(t, err)
}
