package entity

import (
	"context"
	"sort"
	"time"

	"github.com/piwi3910/gosatellite/fields"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// rawPayload turns field values into the wire form the server accepts:
// referenced entities collapse to <name>_id / <name>_ids keys, dates
// and datetimes become strings, then the entity's payload renames are
// applied. A nil names slice means every field that holds a value.
func rawPayload(r Resource, names []string) map[string]any {
	e := r.base()
	if names == nil {
		for name := range e.values {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	out := make(map[string]any, len(names))
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
	for from, to := range e.meta.PayloadRenames {
		if v, ok := out[from]; ok {
			out[to] = v
			delete(out, from)
		}
	}
	return out
}

func payloadValue(f fields.Field, v any) any {
	if t, ok := v.(time.Time); ok {
		if _, isDate := f.(*fields.DateField); isDate {
			return t.Format(dateLayout)
		}
		return t.Format(dateTimeLayout)
	}
	if items, ok := v.([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			if sub, isRes := item.(Resource); isRes {
				out[i] = rawPayload(sub, nil)
			} else {
				out[i] = item
			}
		}
		return out
	}
	return v
}

func refID(v any) any {
	res, ok := v.(Resource)
	if !ok {
		return nil
	}
	id, _ := res.base().RawID()
	return id
}

func refIDs(v any) []any {
	refs, ok := v.([]Resource)
	if !ok {
		return []any{}
	}
	ids := make([]any, 0, len(refs))
	for _, ref := range refs {
		id, _ := ref.base().RawID()
		ids = append(ids, id)
	}
	return ids
}

// CreatePayload builds the request body for creating the entity,
// nested under the entity's wrap key when it has one.
func CreatePayload(r Resource) map[string]any {
	payload := rawPayload(r, nil)
	if key := r.base().meta.WrapKey; key != "" {
		return map[string]any{key: payload}
	}
	return payload
}

// UpdatePayload builds the request body for updating the named fields,
// or every field holding a value when names is nil.
func UpdatePayload(r Resource, names []string) map[string]any {
	return rawPayload(r, names)
}

// FillMissing gives every required field without a value one: the
// field's default when set, otherwise a generated value. Required
// foreign keys are satisfied by creating a referenced entity on the
// server, recursively filling its required fields the same way.
//
// Entity types with their own filling rules implement a FillMissing
// method; those typically call this function first and then adjust.
func FillMissing(ctx context.Context, r Resource) error {
	e := r.base()
	names := make([]string, 0, len(e.schema))
	for name := range e.schema {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := e.schema[name]
		if !f.Required() {
			continue
		}
		if _, ok := e.values[name]; ok {
			continue
		}
		if def, ok := f.Default(); ok {
			if err := e.assign(Values{name: def}); err != nil {
				return err
			}
			continue
		}
		rel, isRel := f.(fields.Relation)
		if !isRel {
			if err := e.assign(Values{name: f.Generate()}); err != nil {
				return err
			}
			continue
		}
		ref, err := e.spawnRef(name, rel, nil)
		if err != nil {
			return err
		}
		created, err := createResource(ctx, ref, CreateOptions{FillMissing: true, Synchronous: true})
		if err != nil {
			return err
		}
		var v any = created
		if rel.Many() {
			v = []any{created}
		}
		if err := e.assign(Values{name: v}); err != nil {
			return err
		}
	}
	return nil
}
