// Package entity implements the machinery shared by every Satellite
// API resource: schema-validated field values, URL construction, the
// generic create/read/update/delete/search operations and foreman task
// polling. Concrete resource types live in the entities package; they
// embed Entity and describe themselves with a field schema and a Meta.
package entity

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/piwi3910/gosatellite/client"
	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/fields"
)

// Values holds field values by field name.
type Values = map[string]any

// Ops is a bit set of the operations an entity type supports.
type Ops uint8

// The individual operations.
const (
	OpCreate Ops = 1 << iota
	OpRead
	OpUpdate
	OpDelete
	OpSearch
)

// OpsCRUDS is the full set.
const OpsCRUDS = OpCreate | OpRead | OpUpdate | OpDelete | OpSearch

func (o Ops) String() string {
	names := []string{}
	for _, e := range []struct {
		op   Ops
		name string
	}{
		{OpCreate, "create"},
		{OpRead, "read"},
		{OpUpdate, "update"},
		{OpDelete, "delete"},
		{OpSearch, "search"},
	} {
		if o&e.op != 0 {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, "|")
}

// Meta describes an entity type to the generic operations.
type Meta struct {
	// Name is the entity type's name, used in errors and logs.
	Name string

	// APIPath is the collection path relative to the server URL, e.g.
	// "katello/api/v2/organizations". When it already carries a scheme
	// it is used as an absolute URL, which is how entities scoped
	// under a parent build their paths.
	APIPath string

	// ServerModes lists the server personalities ("sat", "sam") that
	// expose the entity.
	ServerModes []string

	// Supports is the set of operations the server exposes for the
	// entity.
	Supports Ops

	// WrapKey, when set, nests the create payload under this key.
	WrapKey string

	// PayloadRenames maps payload keys (after foreign keys have been
	// turned into _id / _ids keys) to the names the server expects.
	PayloadRenames map[string]string

	// ReadRenames maps response keys to the schema field names they
	// hold values for.
	ReadRenames map[string]string

	// ReadIgnore lists fields never populated from responses, such as
	// passwords the server will not echo back.
	ReadIgnore []string

	// SparseRead makes reads skip schema fields absent from the
	// response instead of failing.
	SparseRead bool

	// CreateReadBack makes create follow up with a full GET of the new
	// entity instead of trusting the create response body, for
	// endpoints that return partial documents.
	CreateReadBack bool
}

// Resource is one addressable API resource. Concrete types in the
// entities package satisfy it by embedding Entity and adding Spawn.
type Resource interface {
	// Path builds the URL for the named route. An empty name means the
	// instance when an ID is set and the collection otherwise; "self"
	// demands an ID; "base" is always the collection.
	Path(which string) (string, error)

	// Spawn returns a fresh, empty instance of the same concrete type
	// against the same server. Entities scoped under a parent carry
	// the parent over.
	Spawn() Resource

	base() *Entity
}

// Entity is the common core of every resource: a server config, a
// field schema and the current field values.
type Entity struct {
	cfg    *config.Server
	cl     *client.Client
	schema fields.Fields
	values Values
	meta   Meta
}

// Init wires up an embedded Entity. The schema gains an implicit "id"
// integer field unless one is already present. Every key in values
// must name a schema field; foreign key values given as bare IDs or
// attribute maps are converted to entity instances.
func Init(e *Entity, cfg *config.Server, schema fields.Fields, meta Meta, values Values) error {
	full := make(fields.Fields, len(schema)+1)
	for name, f := range schema {
		full[name] = f
	}
	if _, ok := full["id"]; !ok {
		full["id"] = fields.Integer()
	}
	e.cfg = cfg
	e.cl = clientFor(cfg)
	e.schema = full
	e.values = Values{}
	e.meta = meta
	return e.assign(values)
}

func (e *Entity) base() *Entity { return e }

// Config returns the server config the entity talks to.
func (e *Entity) Config() *config.Server { return e.cfg }

// HTTP returns the HTTP client used for the entity's requests.
func (e *Entity) HTTP() *client.Client { return e.cl }

// Meta returns the entity type's description.
func (e *Entity) Meta() Meta { return e.meta }

// Fields returns a copy of the entity's schema.
func (e *Entity) Fields() fields.Fields {
	out := make(fields.Fields, len(e.schema))
	for name, f := range e.schema {
		out[name] = f
	}
	return out
}

// Values returns a copy of the fields that currently hold values.
func (e *Entity) Values() Values {
	out := make(Values, len(e.values))
	for name, v := range e.values {
		out[name] = v
	}
	return out
}

// Get returns the value of one field and whether it is set.
func (e *Entity) Get(name string) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Set stores a value for one field. The name must be in the schema;
// foreign key values are converted the same way as at construction.
func (e *Entity) Set(name string, value any) error {
	return e.assign(Values{name: value})
}

// Unset clears one field.
func (e *Entity) Unset(name string) { delete(e.values, name) }

// ID returns the entity's integer ID, when one is set.
func (e *Entity) ID() (int, bool) {
	v, ok := e.values["id"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// RawID returns the entity's ID in whatever form it holds. Some types
// are addressed by string UUIDs rather than integers.
func (e *Entity) RawID() (any, bool) {
	v, ok := e.values["id"]
	return v, ok
}

// Path implements the default routes. Entity types with extra routes
// override this and fall back to it.
func (e *Entity) Path(which string) (string, error) {
	base := e.meta.APIPath
	if !strings.Contains(base, "://") {
		base = strings.TrimRight(e.cfg.URL, "/") + "/" + strings.Trim(base, "/")
	} else {
		base = strings.TrimRight(base, "/")
	}
	id, hasID := e.RawID()
	switch which {
	case "base":
		return base, nil
	case "":
		if hasID {
			return base + "/" + formatID(id), nil
		}
		return base, nil
	case "self":
		if hasID {
			return base + "/" + formatID(id), nil
		}
		return "", &NoSuchPathError{Entity: e.meta.Name, Which: which}
	default:
		return "", &NoSuchPathError{Entity: e.meta.Name, Which: which}
	}
}

// assign validates and stores values, converting foreign keys.
func (e *Entity) assign(values Values) error {
	for name, v := range values {
		f, ok := e.schema[name]
		if !ok {
			return &NoSuchFieldError{Entity: e.meta.Name, Name: name, Valid: e.fieldNames()}
		}
		converted, err := e.convert(name, f, v)
		if err != nil {
			return err
		}
		e.values[name] = converted
	}
	return nil
}

func (e *Entity) fieldNames() []string {
	names := make([]string, 0, len(e.schema))
	for name := range e.schema {
		names = append(names, name)
	}
	return names
}

func (e *Entity) convert(name string, f fields.Field, v any) (any, error) {
	rel, ok := f.(fields.Relation)
	if !ok {
		if name == "id" {
			return normalizeID(v), nil
		}
		return v, nil
	}
	if !rel.Many() {
		return e.makeRef(name, rel, v)
	}
	items, ok := v.([]any)
	if !ok {
		// A single element stands in for a one-element collection.
		items = []any{v}
	}
	out := make([]Resource, 0, len(items))
	for _, item := range items {
		ref, err := e.makeRef(name, rel, item)
		if err != nil {
			return nil, err
		}
		if ref != nil {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (e *Entity) makeRef(name string, rel fields.Relation, v any) (Resource, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Resource:
		return val, nil
	case map[string]any:
		return e.spawnRef(name, rel, Values(val))
	case int, int64, float64, string:
		return e.spawnRef(name, rel, Values{"id": normalizeID(val)})
	default:
		return nil, &BadValueError{Entity: e.meta.Name, Field: name, Value: v}
	}
}

func (e *Entity) spawnRef(name string, rel fields.Relation, values Values) (Resource, error) {
	built, err := rel.Factory()(e.cfg, values)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: build reference: %w", e.meta.Name, name, err)
	}
	res, ok := built.(Resource)
	if !ok {
		return nil, fmt.Errorf("%s.%s: factory returned %T, not a resource", e.meta.Name, name, built)
	}
	return res, nil
}

// normalizeID collapses the float64 the JSON decoder produces for
// whole numbers back to int. String IDs (UUIDs) pass through.
func normalizeID(v any) any {
	switch n := v.(type) {
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
		return n
	case int64:
		return int(n)
	default:
		return v
	}
}

func formatID(v any) string {
	switch id := v.(type) {
	case int:
		return strconv.Itoa(id)
	case float64:
		return strconv.Itoa(int(id))
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// ensure gates an operation on the entity's Supports set.
func ensure(r Resource, op Ops) error {
	if r.base().meta.Supports&op == 0 {
		return &OperationUnsupportedError{Entity: r.base().meta.Name, Op: op.String()}
	}
	return nil
}

// Entities sharing a server config share one HTTP client, so they also
// share connection pools and logging.
var (
	clientsMu sync.Mutex
	clients   = map[*config.Server]*client.Client{}
)

func clientFor(cfg *config.Server) *client.Client {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	if c, ok := clients[cfg]; ok {
		return c
	}
	c := client.New(cfg)
	clients[cfg] = c
	return c
}
