package entity

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gobuffalo/flect"

	"github.com/piwi3910/gosatellite/client"
	"github.com/piwi3910/gosatellite/fields"
)

// readFixer is implemented by entity types that must adjust a response
// document before it is loaded into fields, for example to fetch a
// value the read endpoint omits.
type readFixer interface {
	FixReadAttrs(ctx context.Context, attrs map[string]any) error
}

// missingFiller is implemented by entity types with their own rules
// for filling in missing required values.
type missingFiller interface {
	FillMissing(ctx context.Context) error
}

// CreateOptions controls Create.
type CreateOptions struct {
	// FillMissing generates values for required fields that have none,
	// creating referenced entities as needed, before submitting.
	FillMissing bool

	// Synchronous blocks on the spawned foreman task when the server
	// answers 202 Accepted. Create uses true by default.
	Synchronous bool
}

// Create submits the entity to the server and returns a fresh instance
// populated from the server's response. The input is not modified
// beyond any FillMissing side effects.
func Create[R Resource](ctx context.Context, r R) (R, error) {
	return CreateWithOptions(ctx, r, CreateOptions{Synchronous: true})
}

// CreateWithOptions is Create with explicit options.
func CreateWithOptions[R Resource](ctx context.Context, r R, opts CreateOptions) (R, error) {
	out, err := createResource(ctx, r, opts)
	if err != nil {
		var zero R
		return zero, err
	}
	return out.(R), nil
}

func createResource(ctx context.Context, r Resource, opts CreateOptions) (Resource, error) {
	if err := ensure(r, OpCreate); err != nil {
		return nil, err
	}
	if opts.FillMissing {
		if mf, ok := r.(missingFiller); ok {
			if err := mf.FillMissing(ctx); err != nil {
				return nil, err
			}
		} else if err := FillMissing(ctx, r); err != nil {
			return nil, err
		}
	}

	path, err := r.Path("base")
	if err != nil {
		return nil, err
	}
	resp, err := r.base().cl.Post(ctx, path, CreatePayload(r))
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusAccepted && opts.Synchronous {
		// The create spawned a task. Wait for it, then fetch the
		// entity itself; the task document is not an entity document.
		if _, err := HandleResponse(ctx, r, resp, true); err != nil {
			return nil, err
		}
		if _, ok := r.base().values["id"]; !ok {
			return nil, &APIResponseError{Message: fmt.Sprintf("%s created by task but no id is known to read it back", r.base().meta.Name)}
		}
		return readResource(ctx, r)
	}
	attrs, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	if r.base().meta.CreateReadBack {
		id, ok := attrs["id"]
		if !ok {
			return nil, &APIResponseError{Message: fmt.Sprintf("%s create response carries no id", r.base().meta.Name)}
		}
		stub := r.Spawn()
		if err := stub.base().assign(Values{"id": id}); err != nil {
			return nil, err
		}
		return readResource(ctx, stub)
	}
	return hydrate(ctx, r, attrs)
}

// Read fetches the entity identified by r's ID and returns a fresh,
// fully populated instance.
func Read[R Resource](ctx context.Context, r R) (R, error) {
	out, err := readResource(ctx, r)
	if err != nil {
		var zero R
		return zero, err
	}
	return out.(R), nil
}

// ReadAttrs populates a fresh instance from an already fetched
// response document instead of issuing a GET.
func ReadAttrs[R Resource](ctx context.Context, r R, attrs map[string]any) (R, error) {
	out, err := hydrate(ctx, r, attrs)
	if err != nil {
		var zero R
		return zero, err
	}
	return out.(R), nil
}

// ReadJSON fetches the entity's document and returns it undecoded into
// fields.
func ReadJSON(ctx context.Context, r Resource) (map[string]any, error) {
	if err := ensure(r, OpRead); err != nil {
		return nil, err
	}
	path, err := r.Path("self")
	if err != nil {
		return nil, err
	}
	resp, err := r.base().cl.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.JSON()
}

func readResource(ctx context.Context, r Resource) (Resource, error) {
	attrs, err := ReadJSON(ctx, r)
	if err != nil {
		return nil, err
	}
	return hydrate(ctx, r, attrs)
}

// hydrate loads a response document into a fresh instance spawned from
// r. Foreign keys are resolved to entity stubs holding just an ID,
// whether the response inlines the referenced object, gives a bare
// <name>_id, or lists a collection under the pluralized field name.
func hydrate(ctx context.Context, r Resource, attrs map[string]any) (Resource, error) {
	e := r.base()
	meta := e.meta

	doc := make(map[string]any, len(attrs))
	for k, v := range attrs {
		doc[k] = v
	}
	for from, to := range meta.ReadRenames {
		if v, ok := doc[from]; ok {
			doc[to] = v
			delete(doc, from)
		}
	}
	if rf, ok := r.(readFixer); ok {
		if err := rf.FixReadAttrs(ctx, doc); err != nil {
			return nil, err
		}
	}

	ignore := map[string]bool{}
	for _, name := range meta.ReadIgnore {
		ignore[name] = true
	}

	target := r.Spawn()
	tb := target.base()
	for name, f := range tb.schema {
		if ignore[name] {
			continue
		}
		v, found, err := fieldFromDoc(tb.meta.Name, name, f, doc)
		if err != nil {
			if meta.SparseRead {
				if _, isMissing := err.(*MissingValueError); isMissing {
					continue
				}
			}
			return nil, err
		}
		if !found {
			continue
		}
		if err := tb.assign(Values{name: v}); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// fieldFromDoc extracts the raw value for one field from a response
// document. For foreign keys the result is a bare ID or list of IDs;
// assign turns those into stubs.
func fieldFromDoc(entityName, name string, f fields.Field, doc map[string]any) (any, bool, error) {
	rel, isRel := f.(fields.Relation)
	if !isRel {
		v, ok := doc[name]
		if !ok {
			return nil, false, &MissingValueError{Entity: entityName, Field: name, Keys: []string{name}}
		}
		return v, true, nil
	}
	if !rel.Many() {
		id, err := refIDFromDoc(entityName, name, doc)
		if err != nil {
			return nil, false, err
		}
		return id, true, nil
	}
	ids, err := refIDsFromDoc(entityName, name, doc)
	if err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func refIDFromDoc(entityName, name string, doc map[string]any) (any, error) {
	if v, ok := doc[name]; ok {
		switch inline := v.(type) {
		case nil:
			return nil, nil
		case map[string]any:
			if id, ok := inline["id"]; ok {
				return normalizeID(id), nil
			}
		}
	}
	if v, ok := doc[name+"_id"]; ok {
		if v == nil {
			return nil, nil
		}
		return normalizeID(v), nil
	}
	return nil, &MissingValueError{Entity: entityName, Field: name, Keys: []string{name, name + "_id"}}
}

func refIDsFromDoc(entityName, name string, doc map[string]any) ([]any, error) {
	keys := []string{name + "_ids", flect.Pluralize(name), name}
	for _, key := range keys {
		items, ok := doc[key].([]any)
		if !ok {
			continue
		}
		ids := make([]any, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case map[string]any:
				if id, ok := v["id"]; ok {
					ids = append(ids, normalizeID(id))
				}
			default:
				ids = append(ids, normalizeID(v))
			}
		}
		return ids, nil
	}
	return nil, &MissingValueError{Entity: entityName, Field: name, Keys: keys}
}

// Update submits every field holding a value with PUT and returns a
// fresh instance populated from the response.
func Update[R Resource](ctx context.Context, r R) (R, error) {
	return UpdateFields(ctx, r)
}

// UpdateFields submits only the named fields. With no names it behaves
// like Update.
func UpdateFields[R Resource](ctx context.Context, r R, names ...string) (R, error) {
	var zero R
	attrs, err := UpdateJSON(ctx, r, names...)
	if err != nil {
		return zero, err
	}
	out, err := hydrate(ctx, r, attrs)
	if err != nil {
		return zero, err
	}
	return out.(R), nil
}

// UpdateJSON submits the update and returns the raw response document.
func UpdateJSON(ctx context.Context, r Resource, names ...string) (map[string]any, error) {
	if err := ensure(r, OpUpdate); err != nil {
		return nil, err
	}
	path, err := r.Path("self")
	if err != nil {
		return nil, err
	}
	var subset []string
	if len(names) > 0 {
		subset = names
	}
	resp, err := r.base().cl.Put(ctx, path, UpdatePayload(r, subset))
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.JSON()
}

// DeleteOptions controls Delete.
type DeleteOptions struct {
	// Synchronous blocks on the spawned foreman task when the server
	// answers 202 Accepted. Delete uses true by default.
	Synchronous bool
}

// Delete removes the entity from the server. The result is the
// response document, the final task document for asynchronous deletes,
// or nil when the server answers with no content.
func Delete(ctx context.Context, r Resource) (map[string]any, error) {
	return DeleteWithOptions(ctx, r, DeleteOptions{Synchronous: true})
}

// DeleteWithOptions is Delete with explicit options.
func DeleteWithOptions(ctx context.Context, r Resource, opts DeleteOptions) (map[string]any, error) {
	if err := ensure(r, OpDelete); err != nil {
		return nil, err
	}
	path, err := r.Path("self")
	if err != nil {
		return nil, err
	}
	resp, err := r.base().cl.Delete(ctx, path)
	if err != nil {
		return nil, err
	}
	return HandleResponse(ctx, r, resp, opts.Synchronous)
}

// HandleResponse applies the shared response rules: HTTP errors become
// *client.HTTPError, 202 Accepted turns into a task poll when
// synchronous is set, and 204 No Content or an empty body yields nil.
// Anything else decodes as a JSON object.
func HandleResponse(ctx context.Context, r Resource, resp *client.Response, synchronous bool) (map[string]any, error) {
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusAccepted && synchronous {
		body, err := resp.JSON()
		if err != nil {
			return nil, err
		}
		taskID, ok := body["id"]
		if !ok {
			return nil, &APIResponseError{Message: "202 response carries no task id"}
		}
		return PollTask(ctx, r.base().cfg, fmt.Sprint(taskID), PollOptions{})
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil
	}
	return resp.JSON()
}
