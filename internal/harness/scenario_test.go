package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/shelf_checkout.yaml")
	require.NoError(t, err)

	assert.Equal(t, "shelf-checkout", scenario.Name)
	require.Len(t, scenario.Readers, 1)
	assert.Equal(t, "shelf", scenario.Readers["192.168.1.101"].Kind)
	assert.Len(t, scenario.Steps, 4)
	assert.Len(t, scenario.Assertions, 3)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.Error(t, err)
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: assertion typo'd as singular
steps:
  - sweep: true
assertion:
  - type: item_status
    key: A1B2C3D4E5F6
    status: borrowed
`)
	_, err := LoadScenario(path)
	assert.Error(t, err)
}

func TestLoadScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing name",
			src: `
description: d
steps:
  - sweep: true
assertions:
  - {type: presence, key: A1B2C3D4E5F6, kind: shelf, listed: false}
`,
			want: "name is required",
		},
		{
			name: "bad reader kind",
			src: `
name: s
description: d
readers:
  "192.168.1.101": {kind: kiosk, name: Desk}
steps:
  - sweep: true
assertions:
  - {type: presence, key: A1B2C3D4E5F6, kind: shelf, listed: false}
`,
			want: "unknown kind",
		},
		{
			name: "two ops in one step",
			src: `
name: s
description: d
steps:
  - detect: {reader: "192.168.1.101", key: A1B2C3D4E5F6, kind: shelf}
    sweep: true
assertions:
  - {type: presence, key: A1B2C3D4E5F6, kind: shelf, listed: false}
`,
			want: "exactly one of",
		},
		{
			name: "bad advance duration",
			src: `
name: s
description: d
steps:
  - advance: soon
assertions:
  - {type: presence, key: A1B2C3D4E5F6, kind: shelf, listed: false}
`,
			want: "positive duration",
		},
		{
			name: "unknown assertion type",
			src: `
name: s
description: d
steps:
  - sweep: true
assertions:
  - {type: log_order, key: A1B2C3D4E5F6}
`,
			want: "unknown assertion type",
		},
		{
			name: "bad status",
			src: `
name: s
description: d
steps:
  - sweep: true
assertions:
  - {type: item_status, key: A1B2C3D4E5F6, status: lost}
`,
			want: "unknown status",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, tt.src)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
