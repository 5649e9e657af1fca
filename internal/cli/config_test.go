package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsearch/internal/oracle"
)

func TestLoadSearchConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search.yaml")
	content := `src_dir: bench
build_dir: /tmp/build
install_dir: install
database: mageec.db
features: features.csv
measure_script: ./size.sh
exec_flags: "--stripped"
jobs: 4
common_flags: "-I include"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadSearchConfig(path)
	require.NoError(t, err)

	want := defaultSearchConfig()
	want.SrcDir = filepath.Join(dir, "bench")
	want.BuildRoot = "/tmp/build"
	want.InstallRoot = filepath.Join(dir, "install")
	want.DatabasePath = filepath.Join(dir, "mageec.db")
	want.FeaturesPath = filepath.Join(dir, "features.csv")
	want.MeasureScript = filepath.Join(dir, "size.sh")
	want.ExecFlags = "--stripped"
	want.Jobs = 4
	want.CommonFlags = "-I include"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestOverrideChanged(t *testing.T) {
	flags := defaultSearchConfig()
	fs := pflag.NewFlagSet("search", pflag.ContinueOnError)
	bindSearchFlags(fs, &flags)
	require.NoError(t, fs.Parse([]string{"-j", "8", "--wrapper-prefix", "", "--debug"}))

	cfg := defaultSearchConfig()
	cfg.Jobs = 2
	cfg.CC = "clang"
	cfg.WrapperPrefix = "wrap-"
	overrideChanged(fs, &cfg, flags)

	assert.Equal(t, 8, cfg.Jobs)
	assert.Equal(t, "", cfg.WrapperPrefix)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "clang", cfg.CC, "flags left at their default do not override the file")
}

func TestBindSearchFlags_Shorthands(t *testing.T) {
	flags := defaultSearchConfig()
	fs := pflag.NewFlagSet("search", pflag.ContinueOnError)
	bindSearchFlags(fs, &flags)
	require.NoError(t, fs.Parse([]string{"-j", "8", "-o", "report.csv"}))

	assert.Equal(t, 8, flags.Jobs)
	assert.Equal(t, "report.csv", flags.Out)
}

func TestLoadSearchConfig_Scripts(t *testing.T) {
	tests := []struct {
		name        string
		files       []string
		config      string
		wantMeasure string
		wantBuild   string
	}{
		{
			name:        "bare name found on PATH",
			config:      "measure_script: measure-size\nbuild_system: cmake\n",
			wantMeasure: "measure-size",
			wantBuild:   "cmake",
		},
		{
			name:        "bare name next to the config file",
			files:       []string{"measure.sh", "build.sh"},
			config:      "measure_script: measure.sh\nbuild_system: build.sh\n",
			wantMeasure: "{dir}/measure.sh",
			wantBuild:   "{dir}/build.sh",
		},
		{
			name:        "relative path",
			config:      "measure_script: scripts/measure.sh\nbuild_system: scripts/build.sh\n",
			wantMeasure: "{dir}/scripts/measure.sh",
			wantBuild:   "{dir}/scripts/build.sh",
		},
		{
			name:        "absolute path",
			config:      "measure_script: /opt/bench/measure.sh\nbuild_system: configure\n",
			wantMeasure: "/opt/bench/measure.sh",
			wantBuild:   "configure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("#!/bin/sh\n"), 0755))
			}
			path := filepath.Join(dir, "search.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.config), 0644))

			cfg, err := LoadSearchConfig(path)
			require.NoError(t, err)

			expand := func(s string) string { return strings.ReplaceAll(s, "{dir}", dir) }
			assert.Equal(t, filepath.FromSlash(expand(tt.wantMeasure)), cfg.MeasureScript)
			assert.Equal(t, filepath.FromSlash(expand(tt.wantBuild)), cfg.BuildSystem)
		})
	}
}

func TestBindSearchFlags_Defaults(t *testing.T) {
	cfg := defaultSearchConfig()
	fs := pflag.NewFlagSet("search", pflag.ContinueOnError)
	bindSearchFlags(fs, &cfg)

	assert.Equal(t, "gcc", fs.Lookup("cc").DefValue)
	assert.Equal(t, oracle.DefaultWrapperPrefix, fs.Lookup("wrapper-prefix").DefValue)
	assert.Equal(t, "false", fs.Lookup("debug").DefValue)
	assert.Equal(t, "o", fs.Lookup("out").Shorthand)
	assert.Len(t, searchFlags, 23)
}

func TestSearchConfig_Settings(t *testing.T) {
	cfg := defaultSearchConfig()
	cfg.SrcDir = "/src"
	cfg.Debug = true

	settings := cfg.settings()
	assert.Equal(t, "/src", settings["src_dir"])
	assert.Equal(t, "true", settings["debug"])
	assert.Equal(t, "size", settings["metric"])
}
