package entity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/entity"
	"github.com/piwi3910/gosatellite/fields"
)

// widget and gadget are small test entity types exercising the shared
// machinery without dragging real API semantics in.

type gadget struct{ entity.Entity }

func newGadget(cfg *config.Server, values entity.Values) (*gadget, error) {
	g := &gadget{}
	schema := fields.Fields{
		"name": fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:     "Gadget",
		APIPath:  "api/v2/gadgets",
		Supports: entity.OpsCRUDS,
	}
	if err := entity.Init(&g.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *gadget) Spawn() entity.Resource {
	s, _ := newGadget(g.Config(), nil)
	return s
}

func gadgetRef() fields.Factory {
	return func(cfg *config.Server, values map[string]any) (any, error) {
		return newGadget(cfg, values)
	}
}

type widget struct{ entity.Entity }

func widgetSchema() fields.Fields {
	return fields.Fields{
		"built_at":    fields.DateTime(),
		"count":       fields.Integer(),
		"kind":        fields.String(fields.Default("basic")),
		"name":        fields.String(fields.Required),
		"owner":       fields.OneToOne(gadgetRef()),
		"part":        fields.OneToMany(gadgetRef()),
		"released_on": fields.Date(),
	}
}

func widgetMeta() entity.Meta {
	return entity.Meta{
		Name:     "Widget",
		APIPath:  "api/v2/widgets",
		Supports: entity.OpsCRUDS,
	}
}

func newWidget(cfg *config.Server, meta entity.Meta, values entity.Values) (*widget, error) {
	w := &widget{}
	if err := entity.Init(&w.Entity, cfg, widgetSchema(), meta, values); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *widget) Spawn() entity.Resource {
	s, _ := newWidget(w.Config(), w.Meta(), nil)
	return s
}

func mustWidget(t *testing.T, cfg *config.Server, values entity.Values) *widget {
	t.Helper()
	w, err := newWidget(cfg, widgetMeta(), values)
	require.NoError(t, err)
	return w
}

// TestPath tests the default route construction.
func TestPath(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com/"}

	tests := []struct {
		name    string
		values  entity.Values
		which   string
		want    string
		wantErr bool
	}{
		{
			name:   "base ignores the id",
			values: entity.Values{"id": 5},
			which:  "base",
			want:   "https://sat.example.com/api/v2/widgets",
		},
		{
			name:   "empty route without id is the collection",
			values: nil,
			which:  "",
			want:   "https://sat.example.com/api/v2/widgets",
		},
		{
			name:   "empty route with id is the instance",
			values: entity.Values{"id": 5},
			which:  "",
			want:   "https://sat.example.com/api/v2/widgets/5",
		},
		{
			name:   "self with id",
			values: entity.Values{"id": 5},
			which:  "self",
			want:   "https://sat.example.com/api/v2/widgets/5",
		},
		{
			name:    "self without id fails",
			values:  nil,
			which:   "self",
			wantErr: true,
		},
		{
			name:    "unknown route fails",
			values:  entity.Values{"id": 5},
			which:   "launch",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := mustWidget(t, cfg, tt.values)
			got, err := w.Path(tt.which)
			if tt.wantErr {
				var pathErr *entity.NoSuchPathError
				require.ErrorAs(t, err, &pathErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestPathAbsoluteAPIPath tests that an APIPath carrying a scheme is
// used as-is, which is how entities scoped under a parent work.
func TestPathAbsoluteAPIPath(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}
	meta := widgetMeta()
	meta.APIPath = "https://sat.example.com/api/v2/gadgets/3/widgets"
	w, err := newWidget(cfg, meta, entity.Values{"id": 8})
	require.NoError(t, err)

	got, err := w.Path("self")
	require.NoError(t, err)
	assert.Equal(t, "https://sat.example.com/api/v2/gadgets/3/widgets/8", got)
}

// TestInitUnknownField tests that values outside the schema are
// rejected up front.
func TestInitUnknownField(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}
	_, err := newWidget(cfg, widgetMeta(), entity.Values{"bogus": 1})
	var fieldErr *entity.NoSuchFieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "bogus", fieldErr.Name)
	assert.Contains(t, fieldErr.Valid, "name")
	assert.Contains(t, fieldErr.Valid, "id", "the implicit id field is part of the schema")
}

// TestRelationConversion tests the accepted shapes for foreign key
// values.
func TestRelationConversion(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}

	t.Run("bare id", func(t *testing.T) {
		w := mustWidget(t, cfg, entity.Values{"owner": 4})
		v, ok := w.Get("owner")
		require.True(t, ok)
		owner, ok := v.(*gadget)
		require.True(t, ok)
		id, ok := owner.ID()
		require.True(t, ok)
		assert.Equal(t, 4, id)
	})

	t.Run("float id from JSON decoding", func(t *testing.T) {
		w := mustWidget(t, cfg, entity.Values{"owner": float64(4)})
		owner := mustGet(t, w, "owner").(*gadget)
		id, _ := owner.ID()
		assert.Equal(t, 4, id)
	})

	t.Run("attribute map", func(t *testing.T) {
		w := mustWidget(t, cfg, entity.Values{"owner": map[string]any{"id": 4, "name": "drive"}})
		owner := mustGet(t, w, "owner").(*gadget)
		name, _ := owner.Get("name")
		assert.Equal(t, "drive", name)
	})

	t.Run("existing instance", func(t *testing.T) {
		g, err := newGadget(cfg, entity.Values{"id": 9})
		require.NoError(t, err)
		w := mustWidget(t, cfg, entity.Values{"owner": g})
		assert.Same(t, g, mustGet(t, w, "owner"))
	})

	t.Run("nil clears", func(t *testing.T) {
		w := mustWidget(t, cfg, entity.Values{"owner": nil})
		assert.Nil(t, mustGet(t, w, "owner"))
	})

	t.Run("collection of ids", func(t *testing.T) {
		w := mustWidget(t, cfg, entity.Values{"part": []any{1, 2}})
		parts := mustGet(t, w, "part").([]entity.Resource)
		require.Len(t, parts, 2)
	})

	t.Run("single value stands in for a collection", func(t *testing.T) {
		w := mustWidget(t, cfg, entity.Values{"part": 7})
		parts := mustGet(t, w, "part").([]entity.Resource)
		require.Len(t, parts, 1)
	})

	t.Run("unusable value fails", func(t *testing.T) {
		_, err := newWidget(cfg, widgetMeta(), entity.Values{"owner": struct{}{}})
		var badErr *entity.BadValueError
		require.ErrorAs(t, err, &badErr)
		assert.Equal(t, "owner", badErr.Field)
	})
}

func mustGet(t *testing.T, r entity.Resource, name string) any {
	t.Helper()
	type getter interface {
		Get(string) (any, bool)
	}
	v, ok := r.(getter).Get(name)
	require.True(t, ok, "field %q not set", name)
	return v
}

// TestCreatePayload tests foreign key collapsing, date formatting,
// wrap keys and payload renames.
func TestCreatePayload(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}

	t.Run("plain fields and foreign keys", func(t *testing.T) {
		w := mustWidget(t, cfg, entity.Values{
			"name":  "alpha",
			"owner": 4,
			"part":  []any{1, 2},
		})
		payload := entity.CreatePayload(w)
		assert.Equal(t, map[string]any{
			"name":     "alpha",
			"owner_id": 4,
			"part_ids": []any{1, 2},
		}, payload)
	})

	t.Run("dates and datetimes become strings", func(t *testing.T) {
		instant := time.Date(2015, 6, 2, 13, 4, 5, 0, time.UTC)
		w := mustWidget(t, cfg, entity.Values{
			"built_at":    instant,
			"name":        "alpha",
			"released_on": instant,
		})
		payload := entity.CreatePayload(w)
		assert.Equal(t, "2015-06-02 13:04:05", payload["built_at"])
		assert.Equal(t, "2015-06-02", payload["released_on"])
	})

	t.Run("wrap key nests the payload", func(t *testing.T) {
		meta := widgetMeta()
		meta.WrapKey = "widget"
		w, err := newWidget(cfg, meta, entity.Values{"name": "alpha"})
		require.NoError(t, err)
		payload := entity.CreatePayload(w)
		assert.Equal(t, map[string]any{"widget": map[string]any{"name": "alpha"}}, payload)
	})

	t.Run("payload renames apply after fk collapsing", func(t *testing.T) {
		meta := widgetMeta()
		meta.PayloadRenames = map[string]string{"part_ids": "part_uuids"}
		w, err := newWidget(cfg, meta, entity.Values{"name": "alpha", "part": []any{1}})
		require.NoError(t, err)
		payload := entity.CreatePayload(w)
		assert.Equal(t, []any{1}, payload["part_uuids"])
		assert.NotContains(t, payload, "part_ids")
	})
}

// TestUpdatePayload tests field subsetting.
func TestUpdatePayload(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}
	w := mustWidget(t, cfg, entity.Values{"count": 3, "name": "alpha"})

	all := entity.UpdatePayload(w, nil)
	assert.Equal(t, map[string]any{"count": 3, "name": "alpha"}, all)

	subset := entity.UpdatePayload(w, []string{"name"})
	assert.Equal(t, map[string]any{"name": "alpha"}, subset)
}

// TestOpsGating tests that unsupported operations fail without
// touching the network.
func TestOpsGating(t *testing.T) {
	cfg := &config.Server{URL: "https://sat.example.com"}
	meta := widgetMeta()
	meta.Supports = entity.OpRead
	w, err := newWidget(cfg, meta, entity.Values{"name": "alpha"})
	require.NoError(t, err)

	_, err = entity.Create(context.Background(), w)
	var opErr *entity.OperationUnsupportedError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "create", opErr.Op)

	_, err = entity.Search(context.Background(), w, entity.SearchOptions{})
	require.ErrorAs(t, err, &opErr)
}

func TestOpsString(t *testing.T) {
	assert.Equal(t, "create|read", (entity.OpCreate | entity.OpRead).String())
	assert.Equal(t, "create|read|update|delete|search", entity.OpsCRUDS.String())
}
