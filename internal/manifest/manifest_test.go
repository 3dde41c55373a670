package manifest

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func osFS() afero.Fs {
	return afero.NewOsFs()
}

func TestReadFromFile_ValidCSV(t *testing.T) {
	m, err := ReadFromFile(osFS(), filepath.Join("testdata", "valid.csv"))

	require.NoError(t, err)
	require.NotNil(t, m)
	require.Len(t, m.Entries, 2)

	assert.Equal(t, "frame", m.Entries[0].Name)
	assert.Equal(t, []string{"Cut tubes", "Weld frame", "Paint"}, m.Entries[0].Operations)
	assert.Equal(t, "wheel", m.Entries[1].Name)
	assert.Equal(t, []string{"Lace spokes", "True rim"}, m.Entries[1].Operations)
	assert.Equal(t, []string{"frame", "wheel"}, m.Names())
}

func TestReadFromFile_MinimalCSV(t *testing.T) {
	m, err := ReadFromFile(osFS(), filepath.Join("testdata", "minimal.csv"))

	require.NoError(t, err)
	require.Len(t, m.Entries, 1)

	// No step column: order comes from the rows.
	assert.Equal(t, []string{"Stamp", "Deburr"}, m.Entries[0].Operations)
}

func TestReadFromFile_ValidYAML(t *testing.T) {
	m, err := ReadFromFile(osFS(), filepath.Join("testdata", "valid.yaml"))

	require.NoError(t, err)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, "frame", m.Entries[0].Name)
	assert.Len(t, m.Entries[0].Operations, 3)
	assert.Equal(t, "True rim", m.Entries[1].Operations[1])
}

func TestReadFromFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantErr string
	}{
		{"not found", "nonexistent.csv", "failed to open manifest"},
		{"missing column", "missing_column.csv", "missing required column: description"},
		{"step gap", "bad_step.csv", `routing "frame" expects step 2`},
		{"empty routing name", "empty_routing.csv", "routing name is required"},
		{"yaml without operations", "no_operations.yaml", `routing "frame" has no operations`},
		{"unsupported extension", "valid.json", "unsupported manifest format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ReadFromFile(osFS(), filepath.Join("testdata", tt.file))

			require.Error(t, err)
			assert.Nil(t, m)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadFromFile_MemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/mockmes/routings.yml", []byte(`
routings:
  - name: hinge
    operations: [Drill, Press]
`), 0o644))

	m, err := ReadFromFile(fs, "/etc/mockmes/routings.yml")

	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, []string{"Drill", "Press"}, m.Entries[0].Operations)
}

func TestReadFromString(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    []Entry
		wantErr string
	}{
		{
			name: "header case and spacing",
			data: "Routing, Step, Description\nframe, 1, Cut\nframe, 2, Weld\n",
			want: []Entry{{Name: "frame", Operations: []string{"Cut", "Weld"}}},
		},
		{
			name:    "header only",
			data:    "routing,step,description\n",
			wantErr: "manifest contains no routings",
		},
		{
			name:    "empty input",
			data:    "",
			wantErr: "failed to read manifest header",
		},
		{
			name:    "split routing",
			data:    "routing,description\na,x\nb,y\na,z\n",
			wantErr: `rows of routing "a" are not adjacent`,
		},
		{
			name:    "non-numeric step",
			data:    "routing,step,description\na,one,x\n",
			wantErr: `routing "a" expects step 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ReadFromString(tt.data)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Entries)
		})
	}
}

func TestReadYAML(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		_, err := ReadYAML([]byte("routings: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse manifest")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ReadYAML([]byte("routings: []"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no routings")
	})

	t.Run("unnamed", func(t *testing.T) {
		_, err := ReadYAML([]byte("routings:\n  - operations: [a]\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "routing at index 0 has no name")
	})
}
