package config_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/gosatellite/config"
)

// TestSaveLoadRoundTrip tests that a server survives a save and load
// unchanged.
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	verify := false
	in := &config.Server{
		URL:     "https://sat.example.com",
		Auth:    &config.Auth{Username: "admin", Password: "changeme"},
		Verify:  &verify,
		Version: semver.MustParse("6.1.0"),
	}
	require.NoError(t, in.Save("prod", path))

	out, err := config.Load("prod", path)
	require.NoError(t, err)
	assert.Equal(t, in.URL, out.URL)
	require.NotNil(t, out.Auth)
	assert.Equal(t, "admin", out.Auth.Username)
	assert.Equal(t, "changeme", out.Auth.Password)
	require.NotNil(t, out.Verify)
	assert.False(t, *out.Verify)
	require.NotNil(t, out.Version)
	assert.True(t, out.Version.Equal(in.Version))
}

// TestSaveAuthWireFormat tests that credentials are stored as a
// two-element list.
func TestSaveAuthWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	in := &config.Server{
		URL:  "https://sat.example.com",
		Auth: &config.Auth{Username: "admin", Password: "changeme"},
	}
	require.NoError(t, in.Save("", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	entry, ok := raw[config.DefaultLabel]
	require.True(t, ok, "entry saved under the default label")
	assert.Equal(t, []any{"admin", "changeme"}, entry["auth"])
}

func TestLoadMissingLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	srv := &config.Server{URL: "https://sat.example.com"}
	require.NoError(t, srv.Save("prod", path))

	_, err := config.Load("staging", path)
	require.Error(t, err)
	var fe *config.FileError
	assert.ErrorAs(t, err, &fe)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("prod", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	var fe *config.FileError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, fe.Err, os.ErrNotExist)
}

// TestDelete tests that deleting removes only the named label.
func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	srv := &config.Server{URL: "https://sat.example.com"}
	require.NoError(t, srv.Save("prod", path))
	require.NoError(t, srv.Save("staging", path))

	require.NoError(t, config.Delete("staging", path))

	labels, err := config.Labels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, labels)

	err = config.Delete("staging", path)
	assert.Error(t, err, "deleting an absent label fails")
}

func TestLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")
	srv := &config.Server{URL: "https://sat.example.com"}
	require.NoError(t, srv.Save("prod", path))
	require.NoError(t, srv.Save("dev", path))

	labels, err := config.Labels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod"}, labels, "labels come back sorted")
}

// TestConcurrentSaves tests that parallel saves to one settings file
// do not lose entries.
func TestConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_configs.json")

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv := &config.Server{URL: fmt.Sprintf("https://sat%d.example.com", i)}
			errs[i] = srv.Save(fmt.Sprintf("server-%d", i), path)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "save %d", i)
	}
	labels, err := config.Labels(path)
	require.NoError(t, err)
	require.Len(t, labels, workers)
	for i := range workers {
		assert.Contains(t, labels, fmt.Sprintf("server-%d", i))
	}
}

// TestLabelsMissingFile tests that listing labels from a missing
// settings file reports the missing file.
func TestLabelsMissingFile(t *testing.T) {
	labels, err := config.Labels(filepath.Join(t.TempDir(), "absent.json"))
	assert.Nil(t, labels)
	var fe *config.FileError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, fe.Err, os.ErrNotExist)
}

// TestAtLeast tests version gating, including the "no version means
// newest" rule.
func TestAtLeast(t *testing.T) {
	tests := []struct {
		name    string
		version string
		min     string
		want    bool
	}{
		{name: "unknown version counts as newest", version: "", min: "6.1", want: true},
		{name: "equal version", version: "6.1.0", min: "6.1", want: true},
		{name: "newer version", version: "6.2.0", min: "6.1", want: true},
		{name: "older version", version: "6.0.0", min: "6.1", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &config.Server{URL: "https://sat.example.com"}
			if tt.version != "" {
				srv.Version = semver.MustParse(tt.version)
			}
			assert.Equal(t, tt.want, srv.AtLeast(tt.min))
		})
	}
}

func TestVerifyTLS(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name   string
		verify *bool
		want   bool
	}{
		{name: "unset verifies", verify: nil, want: true},
		{name: "explicit true verifies", verify: &yes, want: true},
		{name: "explicit false skips", verify: &no, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &config.Server{URL: "https://sat.example.com", Verify: tt.verify}
			assert.Equal(t, tt.want, srv.VerifyTLS())
		})
	}
}
