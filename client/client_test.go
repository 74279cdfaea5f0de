package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/gosatellite/client"
	"github.com/piwi3910/gosatellite/config"
)

// TestDoJSONBody tests that request bodies go out as JSON with the
// right content type.
func TestDoJSONBody(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7}`))
	}))
	defer srv.Close()

	cl := client.New(&config.Server{URL: srv.URL})
	resp, err := cl.Post(context.Background(), srv.URL+"/api/v2/things", map[string]any{"name": "alpha"})
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]any{"name": "alpha"}, gotBody)

	doc, err := resp.JSON()
	require.NoError(t, err)
	assert.Equal(t, float64(7), doc["id"])
}

// TestDoQueryParams tests that params end up on the query string.
func TestDoQueryParams(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cl := client.New(&config.Server{URL: srv.URL})
	params := url.Values{"search": []string{"name=alpha"}, "per_page": []string{"50"}}
	_, err := cl.Get(context.Background(), srv.URL+"/api/v2/things", params)
	require.NoError(t, err)

	assert.Equal(t, "name=alpha", gotQuery.Get("search"))
	assert.Equal(t, "50", gotQuery.Get("per_page"))
}

// TestBasicAuth tests that configured credentials reach the server.
func TestBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cl := client.New(&config.Server{
		URL:  srv.URL,
		Auth: &config.Auth{Username: "admin", Password: "changeme"},
	})
	_, err := cl.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	require.True(t, gotOK)
	assert.Equal(t, "admin", gotUser)
	assert.Equal(t, "changeme", gotPass)
}

// TestResponseErr tests that error statuses become HTTPError without
// failing the request itself.
func TestResponseErr(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	cl := client.New(&config.Server{URL: srv.URL})
	resp, err := cl.Get(context.Background(), srv.URL+"/api/v2/things/1", nil)
	require.NoError(t, err, "an error response is not a transport error")

	var httpErr *client.HTTPError
	require.ErrorAs(t, resp.Err(), &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, http.MethodGet, httpErr.Method)
	assert.Contains(t, string(httpErr.Body), "not found")
}

// TestPostMultipart tests the form fields and file part of a
// multipart upload.
func TestPostMultipart(t *testing.T) {
	var gotRepoURL, gotFileName, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotRepoURL = r.FormValue("repository_url")
		file, header, err := r.FormFile("content")
		require.NoError(t, err)
		defer file.Close()
		gotFileName = header.Filename
		var sb bytes.Buffer
		_, err = sb.ReadFrom(file)
		require.NoError(t, err)
		gotContent = sb.String()
		_, _ = w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	cl := client.New(&config.Server{URL: srv.URL})
	resp, err := cl.PostMultipart(context.Background(), srv.URL+"/upload",
		map[string]string{"repository_url": "https://cdn.example.com"},
		"content", "manifest.zip", strings.NewReader("payload-bytes"))
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	assert.Equal(t, "https://cdn.example.com", gotRepoURL)
	assert.Equal(t, "manifest.zip", gotFileName)
	assert.Equal(t, "payload-bytes", gotContent)
}

// TestInsecureTLS tests that verification can be switched off for
// servers with self-signed certificates, which is the norm for fresh
// Satellite installs.
func TestInsecureTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	verify := false
	cl := client.New(&config.Server{URL: srv.URL, Verify: &verify})
	resp, err := cl.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	strict := client.New(&config.Server{URL: srv.URL})
	_, err = strict.Get(context.Background(), srv.URL, nil)
	assert.Error(t, err, "default client rejects the self-signed certificate")
}

func TestDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "alpha", "id": 3}`))
	}))
	defer srv.Close()

	cl := client.New(&config.Server{URL: srv.URL})
	resp, err := cl.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	var out struct {
		Name string `json:"name"`
		ID   int    `json:"id"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "alpha", out.Name)
	assert.Equal(t, 3, out.ID)
}
