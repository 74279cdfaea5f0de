package entity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/entity"
	"github.com/piwi3910/gosatellite/fields"
)

// holder has a required foreign key, for exercising recursive filling.
type holder struct{ entity.Entity }

func newHolder(cfg *config.Server, values entity.Values) (*holder, error) {
	h := &holder{}
	schema := fields.Fields{
		"name":  fields.String(fields.Required),
		"owner": fields.OneToOne(gadgetRef(), fields.Required),
	}
	meta := entity.Meta{
		Name:     "Holder",
		APIPath:  "api/v2/holders",
		Supports: entity.OpsCRUDS,
	}
	if err := entity.Init(&h.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *holder) Spawn() entity.Resource {
	s, _ := newHolder(h.Config(), nil)
	return s
}

// fussy adjusts its response documents before they are decoded.
type fussy struct{ entity.Entity }

func newFussy(cfg *config.Server, values entity.Values) (*fussy, error) {
	f := &fussy{}
	schema := fields.Fields{
		"name": fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:     "Fussy",
		APIPath:  "api/v2/fussies",
		Supports: entity.OpsCRUDS,
	}
	if err := entity.Init(&f.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *fussy) Spawn() entity.Resource {
	s, _ := newFussy(f.Config(), nil)
	return s
}

func (f *fussy) FixReadAttrs(ctx context.Context, attrs map[string]any) error {
	if _, ok := attrs["name"]; !ok {
		attrs["name"] = "recovered"
	}
	return nil
}

// widgetDoc builds a complete widget response document. Reads demand
// a value for every schema field, so fixtures start from a full
// document and adjust.
func widgetDoc(overrides map[string]any) map[string]any {
	doc := map[string]any{
		"id":          12,
		"name":        "alpha",
		"count":       3,
		"kind":        "basic",
		"built_at":    "2015-06-02 13:04:05",
		"released_on": "2015-06-02",
		"owner":       map[string]any{"id": 4, "name": "drive"},
		"parts":       []any{map[string]any{"id": 1}, map[string]any{"id": 2}},
	}
	for k, v := range overrides {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	return doc
}

func writeJSON(t *testing.T, w http.ResponseWriter, doc any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(doc))
}

// TestCreate tests a plain create round trip.
func TestCreate(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(t, w, widgetDoc(nil))
	}))
	defer srv.Close()

	cfg := &config.Server{URL: srv.URL}
	w := mustWidget(t, cfg, entity.Values{"count": 3, "name": "alpha", "owner": 4})

	created, err := entity.Create(context.Background(), w)
	require.NoError(t, err)

	assert.Equal(t, "/api/v2/widgets", gotPath)
	assert.Equal(t, map[string]any{
		"count":    float64(3),
		"name":     "alpha",
		"owner_id": float64(4),
	}, gotBody)

	id, ok := created.ID()
	require.True(t, ok)
	assert.Equal(t, 12, id)
	owner := mustGet(t, created, "owner").(*gadget)
	ownerID, _ := owner.ID()
	assert.Equal(t, 4, ownerID)
	parts := mustGet(t, created, "part").([]entity.Resource)
	assert.Len(t, parts, 2)

	_, ok = w.Get("id")
	assert.False(t, ok, "the input instance is not mutated")
}

// TestCreateReadBack tests the create-then-GET flow used by endpoints
// whose create responses are partial.
func TestCreateReadBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			writeJSON(t, w, map[string]any{"id": 12})
		case http.MethodGet:
			require.Equal(t, "/api/v2/widgets/12", r.URL.Path)
			writeJSON(t, w, widgetDoc(nil))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	cfg := &config.Server{URL: srv.URL}
	meta := widgetMeta()
	meta.CreateReadBack = true
	w, err := newWidget(cfg, meta, entity.Values{"name": "alpha"})
	require.NoError(t, err)

	created, err := entity.Create(context.Background(), w)
	require.NoError(t, err)
	name, _ := created.Get("name")
	assert.Equal(t, "alpha", name)
	count, _ := created.Get("count")
	assert.Equal(t, float64(3), count)
}

// TestCreateReadBackNoID tests that a partial create response without
// an id is reported as malformed.
func TestCreateReadBackNoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"message": "created"})
	}))
	defer srv.Close()

	cfg := &config.Server{URL: srv.URL}
	meta := widgetMeta()
	meta.CreateReadBack = true
	w, err := newWidget(cfg, meta, entity.Values{"name": "alpha"})
	require.NoError(t, err)

	_, err = entity.Create(context.Background(), w)
	var apiErr *entity.APIResponseError
	require.ErrorAs(t, err, &apiErr)
}

// TestCreateAccepted tests creates that the server runs as a task:
// the task is awaited, then the entity is read back by its id. With
// no id known the create cannot be read back.
func TestCreateAccepted(t *testing.T) {
	newServer := func(t *testing.T) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/v2/widgets":
				require.Equal(t, http.MethodPost, r.Method)
				w.WriteHeader(http.StatusAccepted)
				writeJSON(t, w, map[string]any{"id": "beefcafe"})
			case "/foreman_tasks/api/tasks/beefcafe":
				writeJSON(t, w, map[string]any{"id": "beefcafe", "state": "stopped", "result": "success"})
			case "/api/v2/widgets/12":
				writeJSON(t, w, widgetDoc(nil))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
	}

	t.Run("known id", func(t *testing.T) {
		srv := newServer(t)
		defer srv.Close()

		cfg := &config.Server{URL: srv.URL}
		w, err := newWidget(cfg, widgetMeta(), entity.Values{"id": 12, "name": "alpha"})
		require.NoError(t, err)

		created, err := entity.Create(context.Background(), w)
		require.NoError(t, err)
		count, _ := created.Get("count")
		assert.Equal(t, float64(3), count)
	})

	t.Run("no id", func(t *testing.T) {
		srv := newServer(t)
		defer srv.Close()

		cfg := &config.Server{URL: srv.URL}
		w, err := newWidget(cfg, widgetMeta(), entity.Values{"name": "alpha"})
		require.NoError(t, err)

		_, err = entity.Create(context.Background(), w)
		var apiErr *entity.APIResponseError
		require.ErrorAs(t, err, &apiErr)
	})
}

// TestCreateFillMissing tests that filling generates scalars, applies
// defaults and creates required referenced entities.
func TestCreateFillMissing(t *testing.T) {
	var gadgetCreates int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/gadgets":
			gadgetCreates++
			writeJSON(t, w, map[string]any{"id": 77, "name": "made"})
		case "/api/v2/holders":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, float64(77), body["owner_id"])
			assert.NotEmpty(t, body["name"])
			writeJSON(t, w, map[string]any{"id": 5, "name": body["name"], "owner": map[string]any{"id": 77}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	cfg := &config.Server{URL: srv.URL}
	h, err := newHolder(cfg, nil)
	require.NoError(t, err)

	created, err := entity.CreateWithOptions(context.Background(), h,
		entity.CreateOptions{FillMissing: true, Synchronous: true})
	require.NoError(t, err)

	assert.Equal(t, 1, gadgetCreates)
	id, _ := created.ID()
	assert.Equal(t, 5, id)
}

// TestFillMissing tests which fields filling touches.
func TestFillMissing(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}
	w := mustWidget(t, cfg, nil)

	require.NoError(t, entity.FillMissing(context.Background(), w))

	name, ok := w.Get("name")
	require.True(t, ok, "required fields are filled")
	assert.NotEmpty(t, name)
	_, ok = w.Get("kind")
	assert.False(t, ok, "optional fields are left alone even with a default")
	_, ok = w.Get("count")
	assert.False(t, ok, "optional fields are not generated")
	_, ok = w.Get("owner")
	assert.False(t, ok, "optional foreign keys are not created")
}

// TestRead tests the GET round trip including rename and ignore
// handling.
func TestRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/widgets/12", r.URL.Path)
		writeJSON(t, w, widgetDoc(map[string]any{
			"name":  nil,
			"label": "alpha",
			"count": nil,
		}))
	}))
	defer srv.Close()

	cfg := &config.Server{URL: srv.URL}
	meta := widgetMeta()
	meta.ReadRenames = map[string]string{"label": "name"}
	meta.ReadIgnore = []string{"count"}
	w, err := newWidget(cfg, meta, entity.Values{"id": 12})
	require.NoError(t, err)

	got, err := entity.Read(context.Background(), w)
	require.NoError(t, err)

	name, _ := got.Get("name")
	assert.Equal(t, "alpha", name, "renamed keys land in their fields")
	_, ok := got.Get("count")
	assert.False(t, ok, "ignored fields stay empty")
	owner := mustGet(t, got, "owner").(*gadget)
	ownerID, _ := owner.ID()
	assert.Equal(t, 4, ownerID)
}

// TestReadAttrs tests the foreign key shapes a response document may
// use.
func TestReadAttrs(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}

	tests := []struct {
		name    string
		attrs   map[string]any
		ownerID int
		parts   int
	}{
		{
			name:    "inline object and pluralized list",
			attrs:   widgetDoc(nil),
			ownerID: 4,
			parts:   2,
		},
		{
			name: "id suffix keys",
			attrs: widgetDoc(map[string]any{
				"owner":    nil,
				"parts":    nil,
				"owner_id": float64(4),
				"part_ids": []any{float64(1), float64(2)},
			}),
			ownerID: 4,
			parts:   2,
		},
		{
			name: "bare ids under the field name",
			attrs: widgetDoc(map[string]any{
				"parts": nil,
				"part":  []any{1, 2, 3},
			}),
			ownerID: 4,
			parts:   3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := mustWidget(t, cfg, nil)
			got, err := entity.ReadAttrs(context.Background(), w, tt.attrs)
			require.NoError(t, err)

			owner := mustGet(t, got, "owner").(*gadget)
			ownerID, _ := owner.ID()
			assert.Equal(t, tt.ownerID, ownerID)

			parts := mustGet(t, got, "part").([]entity.Resource)
			require.Len(t, parts, tt.parts)
		})
	}
}

// TestReadAttrsMissing tests that an absent field fails loudly unless
// the entity reads sparsely.
func TestReadAttrsMissing(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}
	attrs := widgetDoc(map[string]any{"parts": nil})

	w := mustWidget(t, cfg, nil)
	_, err := entity.ReadAttrs(context.Background(), w, attrs)
	var missingErr *entity.MissingValueError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "part", missingErr.Field)

	meta := widgetMeta()
	meta.SparseRead = true
	sparse, err := newWidget(cfg, meta, nil)
	require.NoError(t, err)
	got, err := entity.ReadAttrs(context.Background(), sparse, attrs)
	require.NoError(t, err)
	_, ok := got.Get("part")
	assert.False(t, ok)
}

// TestReadFixer tests that response documents pass through the
// entity's fixer hook.
func TestReadFixer(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}
	f, err := newFussy(cfg, nil)
	require.NoError(t, err)

	got, err := entity.ReadAttrs(context.Background(), f, map[string]any{"id": 1})
	require.NoError(t, err)
	name, _ := got.Get("name")
	assert.Equal(t, "recovered", name)
}

// TestUpdate tests the PUT round trip.
func TestUpdate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/v2/widgets/12", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(t, w, widgetDoc(map[string]any{"name": "renamed"}))
	}))
	defer srv.Close()

	cfg := &config.Server{URL: srv.URL}
	w := mustWidget(t, cfg, entity.Values{"id": 12, "count": 3, "name": "renamed"})

	got, err := entity.UpdateFields(context.Background(), w, "name")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "renamed"}, gotBody, "only the named fields are sent")
	name, _ := got.Get("name")
	assert.Equal(t, "renamed", name)
}

// TestDelete tests both the no-content and task-bearing delete
// responses.
func TestDelete(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		cfg := &config.Server{URL: srv.URL}
		w := mustWidget(t, cfg, entity.Values{"id": 12})
		doc, err := entity.Delete(context.Background(), w)
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("async delete polls the task", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodDelete:
				w.WriteHeader(http.StatusAccepted)
				writeJSON(t, w, map[string]any{"id": "beefcafe"})
			case r.URL.Path == "/foreman_tasks/api/tasks/beefcafe":
				writeJSON(t, w, map[string]any{"id": "beefcafe", "state": "stopped", "result": "success"})
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
		}))
		defer srv.Close()

		cfg := &config.Server{URL: srv.URL}
		w := mustWidget(t, cfg, entity.Values{"id": 12})
		doc, err := entity.DeleteWithOptions(context.Background(), w, entity.DeleteOptions{Synchronous: true})
		require.NoError(t, err)
		assert.Equal(t, "stopped", doc["state"])
	})
}

// TestHandleResponseErrors tests the error half of the shared response
// rules.
func TestHandleResponseErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fail":
			http.Error(w, `{"error": "boom"}`, http.StatusUnprocessableEntity)
		case "/taskless":
			w.WriteHeader(http.StatusAccepted)
			writeJSON(t, w, map[string]any{"message": "accepted"})
		}
	}))
	defer srv.Close()

	cfg := &config.Server{URL: srv.URL}
	w := mustWidget(t, cfg, nil)
	cl := w.HTTP()

	resp, err := cl.Get(context.Background(), srv.URL+"/fail", nil)
	require.NoError(t, err)
	_, err = entity.HandleResponse(context.Background(), w, resp, true)
	require.Error(t, err)

	resp, err = cl.Get(context.Background(), srv.URL+"/taskless", nil)
	require.NoError(t, err)
	_, err = entity.HandleResponse(context.Background(), w, resp, true)
	var apiErr *entity.APIResponseError
	require.ErrorAs(t, err, &apiErr, "a 202 without a task id is malformed")
}
