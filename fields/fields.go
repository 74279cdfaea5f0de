// Package fields provides the typed field descriptors that make up an
// entity's schema. A descriptor records what kind of value a field
// holds plus metadata (required, unique, default, choices) and can
// generate a random value that satisfies its own constraints, which is
// how entities are populated when the caller asks for missing required
// values to be filled in.
package fields

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/piwi3910/gosatellite/config"
)

// Factory constructs an instance of a referenced entity type from a
// server config and an initial set of field values. The concrete
// return type is the entity layer's Resource; it is declared as any
// here so this package does not depend on the entity layer.
type Factory func(cfg *config.Server, values map[string]any) (any, error)

// Field is the interface every descriptor satisfies.
type Field interface {
	// Required reports whether a value must be present before the
	// entity can be created on the server.
	Required() bool

	// Unique reports whether generated values must not collide with
	// previously generated ones.
	Unique() bool

	// Default returns the value to use when filling in a missing
	// required field, and whether one is set.
	Default() (any, bool)

	// Choices returns the allowed values, or nil when unrestricted.
	Choices() []any

	// Generate returns a random value satisfying the descriptor's
	// constraints.
	Generate() any
}

// Fields is an entity schema: descriptor by field name.
type Fields map[string]Field

// desc holds the metadata common to all descriptors. Kind-specific
// options write into the same struct; generators read only what
// applies to them.
type desc struct {
	required   bool
	unique     bool
	def        any
	hasDefault bool
	choices    []any

	minLen int
	maxLen int
	sets   []Charset

	minInt   int
	maxInt   int
	hasRange bool
}

func (d *desc) Required() bool       { return d.required }
func (d *desc) Unique() bool         { return d.unique }
func (d *desc) Default() (any, bool) { return d.def, d.hasDefault }
func (d *desc) Choices() []any       { return d.choices }

// Option adjusts a descriptor at construction time.
type Option func(*desc)

// Required marks the field as mandatory for creation.
func Required(d *desc) { d.required = true }

// Unique marks generated values as needing to be distinct.
func Unique(d *desc) { d.unique = true }

// Default sets the value used when filling in the field.
func Default(v any) Option {
	return func(d *desc) {
		d.def = v
		d.hasDefault = true
	}
}

// Choices restricts the field to the given values. Generate picks one
// at random.
func Choices(vals ...any) Option {
	return func(d *desc) { d.choices = vals }
}

// Len bounds the length of generated strings.
func Len(min, max int) Option {
	return func(d *desc) {
		d.minLen = min
		d.maxLen = max
	}
}

// ExactLen fixes the length of generated strings.
func ExactLen(n int) Option { return Len(n, n) }

// Sets restricts generated strings to the given character sets.
func Sets(sets ...Charset) Option {
	return func(d *desc) { d.sets = sets }
}

// Range bounds generated integers to [min, max].
func Range(min, max int) Option {
	return func(d *desc) {
		d.minInt = min
		d.maxInt = max
		d.hasRange = true
	}
}

func newDesc(opts []Option) desc {
	d := desc{minLen: 1, maxLen: 30}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func (d *desc) pickChoice() (any, bool) {
	if len(d.choices) == 0 {
		return nil, false
	}
	return d.choices[rand.IntN(len(d.choices))], true
}

// StringField holds free-form text.
type StringField struct{ desc }

// String builds a string descriptor. Unless overridden with Len and
// Sets, generated values are 1 to 30 alphanumeric characters.
func String(opts ...Option) *StringField {
	return &StringField{newDesc(opts)}
}

func (f *StringField) Generate() any {
	if v, ok := f.pickChoice(); ok {
		return v
	}
	n := f.minLen
	if f.maxLen > f.minLen {
		n += rand.IntN(f.maxLen - f.minLen + 1)
	}
	s := randomString(n, f.sets)
	if f.unique {
		s = uniquify(s, f.maxLen)
	}
	return s
}

// IntegerField holds a whole number.
type IntegerField struct{ desc }

// Integer builds an integer descriptor. Range bounds generated values;
// without one they fall in [1, 100000].
func Integer(opts ...Option) *IntegerField {
	return &IntegerField{newDesc(opts)}
}

func (f *IntegerField) Generate() any {
	if v, ok := f.pickChoice(); ok {
		return v
	}
	lo, hi := 1, 100000
	if f.hasRange {
		lo, hi = f.minInt, f.maxInt
	}
	return lo + rand.IntN(hi-lo+1)
}

// FloatField holds a floating point number.
type FloatField struct{ desc }

// Float builds a float descriptor.
func Float(opts ...Option) *FloatField {
	return &FloatField{newDesc(opts)}
}

func (f *FloatField) Generate() any {
	if v, ok := f.pickChoice(); ok {
		return v
	}
	return rand.Float64() * 10000
}

// BooleanField holds true or false.
type BooleanField struct{ desc }

// Boolean builds a boolean descriptor.
func Boolean(opts ...Option) *BooleanField {
	return &BooleanField{newDesc(opts)}
}

func (f *BooleanField) Generate() any {
	return rand.IntN(2) == 1
}

// DateField holds a calendar date. Generated and serialized values
// carry no time of day.
type DateField struct{ desc }

// Date builds a date descriptor.
func Date(opts ...Option) *DateField {
	return &DateField{newDesc(opts)}
}

func (f *DateField) Generate() any {
	if v, ok := f.pickChoice(); ok {
		return v
	}
	return randomInstant().Truncate(24 * time.Hour)
}

// DateTimeField holds a point in time.
type DateTimeField struct{ desc }

// DateTime builds a datetime descriptor.
func DateTime(opts ...Option) *DateTimeField {
	return &DateTimeField{newDesc(opts)}
}

func (f *DateTimeField) Generate() any {
	if v, ok := f.pickChoice(); ok {
		return v
	}
	return randomInstant()
}

// DictField holds an arbitrary JSON object.
type DictField struct{ desc }

// Dict builds a dictionary descriptor.
func Dict(opts ...Option) *DictField {
	return &DictField{newDesc(opts)}
}

func (f *DictField) Generate() any {
	return map[string]any{}
}

// ListField holds an arbitrary JSON array.
type ListField struct{ desc }

// List builds a list descriptor.
func List(opts ...Option) *ListField {
	return &ListField{newDesc(opts)}
}

func (f *ListField) Generate() any {
	return []any{}
}

// EmailField holds an email address.
type EmailField struct{ desc }

// Email builds an email descriptor.
func Email(opts ...Option) *EmailField {
	return &EmailField{newDesc(opts)}
}

func (f *EmailField) Generate() any {
	if v, ok := f.pickChoice(); ok {
		return v
	}
	return randomString(8, []Charset{Alpha}) + "@example.com"
}

// URLField holds an HTTP or HTTPS URL.
type URLField struct{ desc }

// URL builds a URL descriptor.
func URL(opts ...Option) *URLField {
	return &URLField{newDesc(opts)}
}

func (f *URLField) Generate() any {
	if v, ok := f.pickChoice(); ok {
		return v
	}
	host := randomString(10, []Charset{Alpha})
	if f.unique {
		host = uniquify(host, 0)
	}
	return "http://" + host + ".example.com"
}

// IPAddressField holds an IPv4 address.
type IPAddressField struct{ desc }

// IPAddress builds an IPv4 address descriptor.
func IPAddress(opts ...Option) *IPAddressField {
	return &IPAddressField{newDesc(opts)}
}

func (f *IPAddressField) Generate() any {
	return randomIPv4()
}

// NetmaskField holds an IPv4 netmask.
type NetmaskField struct{ desc }

// Netmask builds a netmask descriptor.
func Netmask(opts ...Option) *NetmaskField {
	return &NetmaskField{newDesc(opts)}
}

func (f *NetmaskField) Generate() any {
	return validNetmasks[rand.IntN(len(validNetmasks))]
}

// MACAddressField holds a MAC address.
type MACAddressField struct{ desc }

// MACAddress builds a MAC address descriptor.
func MACAddress(opts ...Option) *MACAddressField {
	return &MACAddressField{newDesc(opts)}
}

func (f *MACAddressField) Generate() any {
	return randomMAC()
}

// Relation is satisfied by the foreign key descriptors. The entity
// layer uses it to resolve referenced entities during reads and to
// build _id / _ids payload keys.
type Relation interface {
	Field

	// Factory builds an instance of the referenced entity type.
	Factory() Factory

	// Many reports whether the field references a collection.
	Many() bool
}

// OneToOneField references a single entity of another type.
type OneToOneField struct {
	desc
	factory Factory
}

// OneToOne builds a single-valued foreign key descriptor.
func OneToOne(factory Factory, opts ...Option) *OneToOneField {
	return &OneToOneField{desc: newDesc(opts), factory: factory}
}

func (f *OneToOneField) Factory() Factory { return f.factory }
func (f *OneToOneField) Many() bool       { return false }

// Generate returns the factory for the referenced type. Foreign keys
// have no scalar value to invent; the entity layer creates a real
// referenced entity instead.
func (f *OneToOneField) Generate() any { return f.factory }

// OneToManyField references a collection of entities of another type.
type OneToManyField struct {
	desc
	factory Factory
}

// OneToMany builds a collection-valued foreign key descriptor.
func OneToMany(factory Factory, opts ...Option) *OneToManyField {
	return &OneToManyField{desc: newDesc(opts), factory: factory}
}

func (f *OneToManyField) Factory() Factory { return f.factory }
func (f *OneToManyField) Many() bool       { return true }

// Generate returns the factory for the referenced type.
func (f *OneToManyField) Generate() any { return f.factory }

// uniquify replaces the tail of s with a fragment of a fresh UUID so
// repeated generations do not collide. When maxLen is positive the
// result stays within it.
func uniquify(s string, maxLen int) string {
	suffix := uuid.NewString()[:8]
	out := s + suffix
	if maxLen > 0 && len(out) > maxLen {
		if maxLen <= len(suffix) {
			return suffix[:maxLen]
		}
		return s[:maxLen-len(suffix)] + suffix
	}
	return out
}
