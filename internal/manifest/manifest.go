// Package manifest reads routing manifests used to pre-load the routing
// catalog with named operations.
//
// Two formats are supported, selected by file extension.
//
// CSV (.csv):
//
//	routing,step,description
//	frame,1,Cut tubes
//	frame,2,Weld frame
//	wheel,1,Lace spokes
//
// Rows of the same routing must be adjacent. The step column is optional; when
// present it must count 1, 2, 3... within each routing.
//
// YAML (.yaml, .yml):
//
//	routings:
//	  - name: frame
//	    operations: [Cut tubes, Weld frame]
//
// Manifest names are labels only; the catalog still assigns sequential ids.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Entry is one routing described by a manifest.
type Entry struct {
	// Name is the manifest label of the routing.
	Name string `yaml:"name"`

	// Operations are the operation descriptions in sequence order.
	Operations []string `yaml:"operations"`
}

// Manifest holds all routings parsed from a manifest file.
type Manifest struct {
	// Entries are the routings in file order.
	Entries []Entry
}

// ReadFromFile reads and parses a manifest from fs, choosing the format from
// the file extension.
func ReadFromFile(fs afero.Fs, path string) (*Manifest, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := fs.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest: %w", err)
		}
		defer f.Close()
		return readCSV(f)
	case ".yaml", ".yml":
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest: %w", err)
		}
		return ReadYAML(data)
	default:
		return nil, fmt.Errorf("unsupported manifest format: %q", filepath.Ext(path))
	}
}

// ReadFromString parses a CSV manifest from a string.
func ReadFromString(data string) (*Manifest, error) {
	return readCSV(strings.NewReader(data))
}

func readCSV(r io.Reader) (*Manifest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	if err := validateColumns(colIndex); err != nil {
		return nil, err
	}
	_, hasStep := colIndex["step"]

	var entries []Entry
	seen := make(map[string]bool)
	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest line %d: %w", lineNum, err)
		}

		name := getField(record, colIndex, "routing")
		if name == "" {
			return nil, fmt.Errorf("manifest line %d: routing name is required", lineNum)
		}

		if len(entries) == 0 || entries[len(entries)-1].Name != name {
			if seen[name] {
				return nil, fmt.Errorf("manifest line %d: rows of routing %q are not adjacent", lineNum, name)
			}
			seen[name] = true
			entries = append(entries, Entry{Name: name})
		}
		current := &entries[len(entries)-1]

		if hasStep {
			step, err := strconv.Atoi(getField(record, colIndex, "step"))
			if err != nil || step != len(current.Operations)+1 {
				return nil, fmt.Errorf("manifest line %d: routing %q expects step %d", lineNum, name, len(current.Operations)+1)
			}
		}

		current.Operations = append(current.Operations, getField(record, colIndex, "description"))
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest contains no routings")
	}

	return &Manifest{Entries: entries}, nil
}

// requiredColumns are the columns that must be present in a CSV manifest.
var requiredColumns = []string{"routing", "description"}

func buildColumnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return index
}

func validateColumns(colIndex map[string]int) error {
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return fmt.Errorf("manifest missing required column: %s", col)
		}
	}
	return nil
}

func getField(record []string, colIndex map[string]int, column string) string {
	idx, ok := colIndex[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Names returns the routing names in file order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		names[i] = e.Name
	}
	return names
}
