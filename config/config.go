// Package config manages connection settings for Satellite servers.
//
// Settings for any number of servers are kept in a single JSON file,
// keyed by a user-chosen label. A Server value read from that file (or
// built in code) is then handed to every entity that talks to the
// server, so one process can work against several deployments at once.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
)

// DefaultLabel is the label used when none is given to Load, Save or
// Delete.
const DefaultLabel = "default"

// configFile guards reads and writes of the on-disk settings file.
// The file is rewritten whole on every Save and Delete.
var configFile sync.Mutex

// FileError reports a problem locating, reading or parsing the
// settings file.
type FileError struct {
	// Path is the settings file involved, if one was resolved.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *FileError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("server settings file: %v", e.Err)
	}
	return fmt.Sprintf("server settings file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Auth holds HTTP basic auth credentials.
type Auth struct {
	// Username is the Satellite user to authenticate as.
	Username string

	// Password is that user's password.
	Password string
}

// Server describes how to reach one Satellite server.
type Server struct {
	// URL is the root of the server, e.g. "https://sat.example.com".
	// API paths are joined onto it.
	URL string

	// Auth holds basic auth credentials. When nil, requests are sent
	// unauthenticated.
	Auth *Auth

	// Verify controls TLS certificate verification. When nil or true,
	// certificates are verified. Set to false for servers with
	// self-signed certificates.
	Verify *bool

	// Version is the Satellite release running on the server. Entities
	// with version-dependent schemas consult it. When nil the newest
	// known schema is used.
	Version *semver.Version

	// Logger receives request and response logs from the HTTP layer.
	// When nil, logging is disabled. Never persisted.
	Logger *zap.Logger
}

// VerifyTLS reports whether TLS certificates should be verified when
// talking to the server.
func (s *Server) VerifyTLS() bool {
	return s.Verify == nil || *s.Verify
}

// AtLeast reports whether the server's version is at or above the
// given constraint. An unset version counts as newest, so AtLeast
// returns true.
func (s *Server) AtLeast(version string) bool {
	if s.Version == nil {
		return true
	}
	min, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	return !s.Version.LessThan(min)
}

// serverJSON is the wire form of a Server in the settings file.
// Credentials are stored as a two-element [username, password] list.
type serverJSON struct {
	URL     string   `json:"url"`
	Auth    []string `json:"auth,omitempty"`
	Verify  *bool    `json:"verify,omitempty"`
	Version string   `json:"version,omitempty"`
}

func (s *Server) toJSON() serverJSON {
	out := serverJSON{URL: s.URL, Verify: s.Verify}
	if s.Auth != nil {
		out.Auth = []string{s.Auth.Username, s.Auth.Password}
	}
	if s.Version != nil {
		out.Version = s.Version.Original()
	}
	return out
}

func (j serverJSON) toServer() (*Server, error) {
	s := &Server{URL: j.URL, Verify: j.Verify}
	if len(j.Auth) > 0 {
		if len(j.Auth) != 2 {
			return nil, fmt.Errorf("auth must be a [username, password] pair, got %d elements", len(j.Auth))
		}
		s.Auth = &Auth{Username: j.Auth[0], Password: j.Auth[1]}
	}
	if j.Version != "" {
		v, err := semver.NewVersion(j.Version)
		if err != nil {
			return nil, fmt.Errorf("parse version %q: %w", j.Version, err)
		}
		s.Version = v
	}
	return s, nil
}

// DefaultPath returns the settings file used when functions in this
// package are called with an empty path.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "gosatellite", "server_configs.json"), nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultPath()
}

func readAll(path string) (map[string]serverJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	all := map[string]serverJSON{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return all, nil
}

func writeAll(path string, all map[string]serverJSON) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &FileError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &FileError{Path: path, Err: err}
	}
	return nil
}

// Load reads the server saved under label from the settings file at
// path. An empty label means DefaultLabel, an empty path means
// DefaultPath.
func Load(label, path string) (*Server, error) {
	if label == "" {
		label = DefaultLabel
	}
	path, err := resolvePath(path)
	if err != nil {
		return nil, &FileError{Err: err}
	}

	configFile.Lock()
	defer configFile.Unlock()

	all, err := readAll(path)
	if err != nil {
		return nil, err
	}
	raw, ok := all[label]
	if !ok {
		return nil, &FileError{Path: path, Err: fmt.Errorf("no server saved under label %q", label)}
	}
	srv, err := raw.toServer()
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return srv, nil
}

// Save writes the server under label to the settings file at path,
// replacing any previous entry with that label. The file is created if
// it does not exist.
func (s *Server) Save(label, path string) error {
	if label == "" {
		label = DefaultLabel
	}
	path, err := resolvePath(path)
	if err != nil {
		return &FileError{Err: err}
	}

	configFile.Lock()
	defer configFile.Unlock()

	all, err := readAll(path)
	if err != nil {
		var fe *FileError
		if !errors.As(err, &fe) || !errors.Is(fe.Err, os.ErrNotExist) {
			return err
		}
		all = map[string]serverJSON{}
	}
	all[label] = s.toJSON()
	return writeAll(path, all)
}

// Delete removes the server saved under label from the settings file
// at path.
func Delete(label, path string) error {
	if label == "" {
		label = DefaultLabel
	}
	path, err := resolvePath(path)
	if err != nil {
		return &FileError{Err: err}
	}

	configFile.Lock()
	defer configFile.Unlock()

	all, err := readAll(path)
	if err != nil {
		return err
	}
	if _, ok := all[label]; !ok {
		return &FileError{Path: path, Err: fmt.Errorf("no server saved under label %q", label)}
	}
	delete(all, label)
	return writeAll(path, all)
}

// Labels lists the labels present in the settings file at path, in
// sorted order.
func Labels(path string) ([]string, error) {
	path, err := resolvePath(path)
	if err != nil {
		return nil, &FileError{Err: err}
	}

	configFile.Lock()
	defer configFile.Unlock()

	all, err := readAll(path)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(all))
	for label := range all {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels, nil
}
