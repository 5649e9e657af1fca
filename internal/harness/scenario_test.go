package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One flag that does not matter"
flags: ["-fa"]
calibration:
  o3: 10
  os: 12
scores:
  none: [11]
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, []string{"-fa"}, scenario.Flags)
	assert.Equal(t, 10.0, scenario.Calibration.O3)
	assert.Equal(t, map[string][]float64{NoneDisabled: {11}}, scenario.Scores)
	assert.Nil(t, scenario.Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "score:\n  none: [1]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_NormalizesKeys(t *testing.T) {
	data := `
name: keys
description: "Keys in any order"
flags: ["-fa", "-fb", "-fc"]
calibration: {o3: 1, os: 1}
scores:
  "": [9]
  "-fc, -fa": [5]
  "-fb": [7]
`
	scenario, err := ParseScenario([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, map[string][]float64{
		NoneDisabled: {9},
		"-fa,-fc":    {5},
		"-fb":        {7},
	}, scenario.Scores)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {none: [1]}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {none: [1]}\n",
			wantErr: "description is required",
		},
		{
			name:    "negative jobs",
			yaml:    "name: x\ndescription: x\njobs: -1\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {none: [1]}\n",
			wantErr: "jobs must not be negative",
		},
		{
			name:    "duplicate flag",
			yaml:    "name: x\ndescription: x\nflags: [-fa, -fa]\ncalibration: {o3: 1, os: 1}\nscores: {none: [1]}\n",
			wantErr: "flags:",
		},
		{
			name:    "missing calibration",
			yaml:    "name: x\ndescription: x\nflags: [-fa]\ncalibration: {os: 1}\nscores: {none: [1]}\n",
			wantErr: "calibration.o3 must be positive",
		},
		{
			name:    "no scores",
			yaml:    "name: x\ndescription: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\n",
			wantErr: "scores map is required",
		},
		{
			name:    "unknown flag in key",
			yaml:    "name: x\ndescription: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {\"-fz\": [1]}\n",
			wantErr: `"-fz" is not a scenario flag`,
		},
		{
			name:    "flag listed twice",
			yaml:    "name: x\ndescription: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {\"-fa,-fa\": [1]}\n",
			wantErr: "listed twice",
		},
		{
			name:    "same configuration twice",
			yaml:    "name: x\ndescription: x\nflags: [-fa, -fb]\ncalibration: {o3: 1, os: 1}\nscores: {\"-fa,-fb\": [1], \"-fb,-fa\": [2]}\n",
			wantErr: "same configuration as another key",
		},
		{
			name:    "empty score sequence",
			yaml:    "name: x\ndescription: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {none: []}\n",
			wantErr: "at least one score is required",
		},
		{
			name:    "failure without error",
			yaml:    "name: x\ndescription: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {none: [1]}\nfailures: [{disabled: -fa}]\n",
			wantErr: "error is required",
		},
		{
			name:    "bad status",
			yaml:    "name: x\ndescription: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {none: [1]}\nexpect: {status: done}\n",
			wantErr: "expect.status must be",
		},
		{
			name:    "error code on converged",
			yaml:    "name: x\ndescription: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {none: [1]}\nexpect: {status: converged, error_code: CANDIDATE_FAILED}\n",
			wantErr: "requires status failed",
		},
		{
			name:    "unknown expected flag",
			yaml:    "name: x\ndescription: x\nflags: [-fa]\ncalibration: {o3: 1, os: 1}\nscores: {none: [1]}\nexpect: {status: converged, removed: [-fq]}\n",
			wantErr: `"-fq" is not a scenario flag`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScenario_Catalog(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	cat, err := scenario.Catalog()
	require.NoError(t, err)
	assert.Equal(t, "gcc", cat.Toolchain())
	assert.Equal(t, []string{"-fa"}, cat.IDs())
}

func TestScenarioFiles_Parse(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotNil(t, scenario.Expect, "scenario files carry expectations")
		})
	}
}
