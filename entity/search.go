package entity

import (
	"context"
	"fmt"
	"reflect"

	"github.com/piwi3910/gosatellite/fields"
)

// SearchOptions controls Search.
type SearchOptions struct {
	// Fields names the field values to search on. Nil means every
	// field holding a value; an empty non-nil slice means none.
	Fields []string

	// Query holds extra query parameters merged over the field values,
	// such as "search" or "per_page".
	Query map[string]any

	// Filters discards results whose field values differ from the
	// given ones, client side, after the server has answered. Keys
	// must name scalar schema fields.
	Filters map[string]any
}

// SearchPayload builds the query document sent to the server: the
// selected field values with foreign keys collapsed to _id / _ids
// keys, merged with opts.Query (which wins on conflict).
func SearchPayload(r Resource, opts SearchOptions) map[string]any {
	e := r.base()
	names := opts.Fields
	if names == nil {
		for name := range e.values {
			names = append(names, name)
		}
	}
	out := make(map[string]any, len(names)+len(opts.Query))
	for _, name := range names {
		v, ok := e.values[name]
		if !ok {
			continue
		}
		f := e.schema[name]
		if rel, isRel := f.(fields.Relation); isRel {
			if rel.Many() {
				out[name+"_ids"] = refIDs(v)
			} else {
				out[name+"_id"] = refID(v)
			}
			continue
		}
		out[name] = payloadValue(f, v)
	}
	for k, v := range opts.Query {
		out[k] = v
	}
	return out
}

// SearchNormalize flattens raw result rows into the form the entity
// constructor accepts: foreign keys become bare IDs under the field
// name, inlined objects and _id / _ids variants included. Keys outside
// the schema are dropped.
func SearchNormalize(r Resource, results []map[string]any) []Values {
	e := r.base()
	out := make([]Values, 0, len(results))
	for _, row := range results {
		vals := Values{}
		for name, f := range e.schema {
			if rel, isRel := f.(fields.Relation); isRel {
				if rel.Many() {
					if ids, err := refIDsFromDoc(e.meta.Name, name, row); err == nil {
						vals[name] = ids
					}
				} else if id, err := refIDFromDoc(e.meta.Name, name, row); err == nil && id != nil {
					vals[name] = id
				}
				continue
			}
			if v, ok := row[name]; ok {
				vals[name] = v
			}
		}
		out = append(out, vals)
	}
	return out
}

// Search queries the entity's collection endpoint and returns one
// instance per result row, optionally filtered client side.
func Search[R Resource](ctx context.Context, r R, opts SearchOptions) ([]R, error) {
	rows, err := SearchJSON(ctx, r, opts)
	if err != nil {
		return nil, err
	}

	e := r.base()
	out := make([]R, 0, len(rows))
	for _, vals := range SearchNormalize(r, rows) {
		res := r.Spawn()
		if err := res.base().assign(vals); err != nil {
			return nil, err
		}
		keep, err := matchesFilters(e, res, opts.Filters)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, res.(R))
		}
	}
	return out, nil
}

// SearchJSON queries the collection endpoint and returns the raw
// result rows.
func SearchJSON(ctx context.Context, r Resource, opts SearchOptions) ([]map[string]any, error) {
	if err := ensure(r, OpSearch); err != nil {
		return nil, err
	}
	path, err := r.Path("base")
	if err != nil {
		return nil, err
	}
	resp, err := r.base().cl.Do(ctx, "GET", path, SearchPayload(r, opts), nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	attrs, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	rawRows, _ := attrs["results"].([]any)
	rows := make([]map[string]any, 0, len(rawRows))
	for _, raw := range rawRows {
		if row, ok := raw.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func matchesFilters(e *Entity, res Resource, filters map[string]any) (bool, error) {
	for name, want := range filters {
		f, ok := e.schema[name]
		if !ok {
			return false, &NoSuchFieldError{Entity: e.meta.Name, Name: name, Valid: e.fieldNames()}
		}
		if _, isRel := f.(fields.Relation); isRel {
			return false, fmt.Errorf("%s: filtering on foreign key field %q is not supported", e.meta.Name, name)
		}
		got, ok := res.base().values[name]
		if !ok || !equalValues(got, want) {
			return false, nil
		}
	}
	return true, nil
}

// equalValues compares loosely across the numeric types JSON decoding
// and Go literals mix.
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
