package entities

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/entity"
	"github.com/piwi3910/gosatellite/fields"
)

// Architecture is a CPU architecture such as x86_64.
type Architecture struct{ entity.Entity }

func NewArchitecture(cfg *config.Server, values entity.Values) (*Architecture, error) {
	a := &Architecture{}
	schema := fields.Fields{
		"name":            fields.String(fields.Required),
		"operatingsystem": fields.OneToMany(ref(NewOperatingSystem)),
	}
	meta := entity.Meta{
		Name:        "Architecture",
		APIPath:     "api/v2/architectures",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "architecture",
	}
	if err := entity.Init(&a.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Architecture) Spawn() entity.Resource {
	s, _ := NewArchitecture(a.Config(), nil)
	return s
}

// ConfigGroup is a named group of Puppet classes.
type ConfigGroup struct{ entity.Entity }

func NewConfigGroup(cfg *config.Server, values entity.Values) (*ConfigGroup, error) {
	c := &ConfigGroup{}
	schema := fields.Fields{
		"name": fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:        "ConfigGroup",
		APIPath:     "api/v2/config_groups",
		ServerModes: modesSat,
	}
	if err := entity.Init(&c.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ConfigGroup) Spawn() entity.Resource {
	s, _ := NewConfigGroup(c.Config(), nil)
	return s
}

// ConfigTemplate is a provisioning template.
type ConfigTemplate struct{ entity.Entity }

func NewConfigTemplate(cfg *config.Server, values entity.Values) (*ConfigTemplate, error) {
	c := &ConfigTemplate{}
	schema := fields.Fields{
		"audit_comment":         fields.String(),
		"locked":                fields.Boolean(),
		"name":                  fields.String(fields.Required),
		"operatingsystem":       fields.OneToMany(ref(NewOperatingSystem)),
		"organization":          fields.OneToMany(ref(NewOrganization)),
		"snippet":               fields.Boolean(fields.Required),
		"template":              fields.String(fields.Required),
		"template_combinations": fields.List(),
		"template_kind":         fields.OneToOne(ref(NewTemplateKind)),
	}
	meta := entity.Meta{
		Name:        "ConfigTemplate",
		APIPath:     "api/v2/config_templates",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "config_template",
	}
	if err := entity.Init(&c.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ConfigTemplate) Spawn() entity.Resource {
	s, _ := NewConfigTemplate(c.Config(), nil)
	return s
}

// Path also knows the collection-level helper endpoints.
func (c *ConfigTemplate) Path(which string) (string, error) {
	switch which {
	case "revision", "build_pxe_default":
		base, err := c.Entity.Path("base")
		if err != nil {
			return "", err
		}
		return base + "/" + which, nil
	}
	return c.Entity.Path(which)
}

// FillMissing picks a template kind for non-snippet templates, which
// the server requires. Foreman creates a fixed set of template kinds
// at install time.
func (c *ConfigTemplate) FillMissing(ctx context.Context) error {
	if err := entity.FillMissing(ctx, c); err != nil {
		return err
	}
	if snippet, _ := c.Get("snippet"); snippet == true {
		return nil
	}
	if _, ok := c.Get("template_kind"); ok {
		return nil
	}
	return c.Set("template_kind", rand.IntN(templateKindsCreatedByDefault)+1)
}

// Domain is a DNS domain.
type Domain struct{ entity.Entity }

func NewDomain(cfg *config.Server, values entity.Values) (*Domain, error) {
	d := &Domain{}
	schema := fields.Fields{
		"dns":                          fields.OneToOne(ref(NewSmartProxy)),
		"domain_parameters_attributes": fields.List(),
		"fullname":                     fields.String(),
		"location":                     fields.OneToMany(ref(NewLocation)),
		"name":                         fields.String(fields.Required),
		"organization":                 fields.OneToMany(ref(NewOrganization)),
	}
	meta := entity.Meta{
		Name:           "Domain",
		APIPath:        "api/v2/domains",
		ServerModes:    modesSat,
		Supports:       entity.OpCreate | entity.OpRead | entity.OpDelete,
		WrapKey:        "domain",
		CreateReadBack: true,
		ReadRenames:    map[string]string{"parameters": "domain_parameters_attributes"},
	}
	if err := entity.Init(&d.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Domain) Spawn() entity.Resource {
	s, _ := NewDomain(d.Config(), nil)
	return s
}

// FillMissing generates a lowercase name. Foreman lowercases domain
// names on create, and a name that round-trips unchanged keeps reads
// comparable to what was sent.
func (d *Domain) FillMissing(ctx context.Context) error {
	if _, ok := d.Get("name"); !ok {
		schema := d.Fields()
		name, _ := schema["name"].Generate().(string)
		if err := d.Set("name", strings.ToLower(name)); err != nil {
			return err
		}
	}
	return entity.FillMissing(ctx, d)
}

// Environment is a Puppet environment.
type Environment struct{ entity.Entity }

func NewEnvironment(cfg *config.Server, values entity.Values) (*Environment, error) {
	e := &Environment{}
	schema := fields.Fields{
		"name": fields.String(fields.Required, fields.Sets(fields.Alphanumeric)),
	}
	meta := entity.Meta{
		Name:        "Environment",
		APIPath:     "api/v2/environments",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&e.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Environment) Spawn() entity.Resource {
	s, _ := NewEnvironment(e.Config(), nil)
	return s
}

// Media is an installation medium.
type Media struct{ entity.Entity }

func NewMedia(cfg *config.Server, values entity.Values) (*Media, error) {
	m := &Media{}
	schema := fields.Fields{
		"name":            fields.String(fields.Required),
		"operatingsystem": fields.OneToMany(ref(NewOperatingSystem)),
		"organization":    fields.OneToMany(ref(NewOrganization)),
		"os_family":       fields.String(fields.Choices(append(operatingSystemFamilies, "Junos")...)),
		"path":            fields.URL(fields.Required),
	}
	meta := entity.Meta{
		Name:           "Media",
		APIPath:        "api/v2/media",
		ServerModes:    modesSat,
		Supports:       entity.OpsCRUDS,
		WrapKey:        "medium",
		CreateReadBack: true,
	}
	if err := entity.Init(&m.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Media) Spawn() entity.Resource {
	s, _ := NewMedia(m.Config(), nil)
	return s
}

// Model is a hardware model.
type Model struct{ entity.Entity }

func NewModel(cfg *config.Server, values entity.Values) (*Model, error) {
	m := &Model{}
	schema := fields.Fields{
		"hardware_model": fields.String(),
		"info":           fields.String(),
		"name":           fields.String(fields.Required),
		"vendor_class":   fields.String(),
	}
	meta := entity.Meta{
		Name:        "Model",
		APIPath:     "api/v2/models",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&m.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) Spawn() entity.Resource {
	s, _ := NewModel(m.Config(), nil)
	return s
}

// OperatingSystem is an operating system definition.
type OperatingSystem struct{ entity.Entity }

func NewOperatingSystem(cfg *config.Server, values entity.Values) (*OperatingSystem, error) {
	o := &OperatingSystem{}
	schema := fields.Fields{
		"architecture": fields.OneToMany(ref(NewArchitecture)),
		"description":  fields.String(),
		"family":       fields.String(fields.Choices(operatingSystemFamilies...)),
		"major":        fields.String(fields.Required, fields.Len(1, 5), fields.Sets(fields.Numeric)),
		"media":        fields.OneToMany(ref(NewMedia)),
		"minor":        fields.String(fields.Len(1, 16), fields.Sets(fields.Numeric)),
		"name":         fields.String(fields.Required),
		"ptable":       fields.OneToMany(ref(NewPartitionTable)),
		"release_name": fields.String(),
	}
	meta := entity.Meta{
		Name:        "OperatingSystem",
		APIPath:     "api/v2/operatingsystems",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "operatingsystem",
	}
	if err := entity.Init(&o.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OperatingSystem) Spawn() entity.Resource {
	s, _ := NewOperatingSystem(o.Config(), nil)
	return s
}

// OperatingSystemParameter is a parameter scoped to one operating
// system. The operatingsystem value is required at construction time
// because it determines the entity's URL.
type OperatingSystemParameter struct {
	entity.Entity
	parent any
}

func NewOperatingSystemParameter(cfg *config.Server, values entity.Values) (*OperatingSystemParameter, error) {
	if err := requireParent("OperatingSystemParameter", "operatingsystem", values); err != nil {
		return nil, err
	}
	p := &OperatingSystemParameter{parent: values["operatingsystem"]}
	os, err := NewOperatingSystem(cfg, entity.Values{"id": values["operatingsystem"]})
	if err != nil {
		return nil, err
	}
	osPath, err := os.Path("self")
	if err != nil {
		return nil, err
	}
	schema := fields.Fields{
		"name":            fields.String(fields.Required),
		"operatingsystem": fields.OneToOne(ref(NewOperatingSystem), fields.Required),
		"value":           fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:        "OperatingSystemParameter",
		APIPath:     osPath + "/parameters",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		ReadIgnore:  []string{"operatingsystem"},
	}
	if err := entity.Init(&p.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *OperatingSystemParameter) Spawn() entity.Resource {
	s, _ := NewOperatingSystemParameter(p.Config(), entity.Values{"operatingsystem": p.parent})
	return s
}

// OSDefaultTemplate associates a config template with an operating
// system for a given template kind.
type OSDefaultTemplate struct{ entity.Entity }

func NewOSDefaultTemplate(cfg *config.Server, values entity.Values) (*OSDefaultTemplate, error) {
	o := &OSDefaultTemplate{}
	schema := fields.Fields{
		"config_template": fields.OneToOne(ref(NewConfigTemplate)),
		"operatingsystem": fields.OneToOne(ref(NewOperatingSystem)),
		"template_kind":   fields.OneToOne(ref(NewTemplateKind)),
	}
	meta := entity.Meta{
		Name:        "OSDefaultTemplate",
		APIPath:     "api/v2/operatingsystems/:operatingsystem_id/os_default_templates",
		ServerModes: modesSat,
	}
	if err := entity.Init(&o.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OSDefaultTemplate) Spawn() entity.Resource {
	s, _ := NewOSDefaultTemplate(o.Config(), nil)
	return s
}

// OverrideValue overrides a smart variable for hosts matching a rule.
type OverrideValue struct{ entity.Entity }

func NewOverrideValue(cfg *config.Server, values entity.Values) (*OverrideValue, error) {
	o := &OverrideValue{}
	schema := fields.Fields{
		"match":          fields.String(),
		"smart_variable": fields.OneToOne(ref(NewSmartVariable)),
		"value":          fields.String(),
	}
	meta := entity.Meta{
		Name:        "OverrideValue",
		APIPath:     "api/v2/smart_variables/:smart_variable_id/override_values",
		ServerModes: modesSat,
	}
	if err := entity.Init(&o.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OverrideValue) Spawn() entity.Resource {
	s, _ := NewOverrideValue(o.Config(), nil)
	return s
}

// PartitionTable is a disk partitioning layout.
type PartitionTable struct{ entity.Entity }

func NewPartitionTable(cfg *config.Server, values entity.Values) (*PartitionTable, error) {
	p := &PartitionTable{}
	schema := fields.Fields{
		"layout":    fields.String(fields.Required),
		"name":      fields.String(fields.Required),
		"os_family": fields.String(fields.Choices(operatingSystemFamilies...)),
	}
	meta := entity.Meta{
		Name:        "PartitionTable",
		APIPath:     "api/v2/ptables",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&p.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PartitionTable) Spawn() entity.Resource {
	s, _ := NewPartitionTable(p.Config(), nil)
	return s
}

// PuppetClass is a Puppet class known to the server.
type PuppetClass struct{ entity.Entity }

func NewPuppetClass(cfg *config.Server, values entity.Values) (*PuppetClass, error) {
	p := &PuppetClass{}
	schema := fields.Fields{
		"name": fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:        "PuppetClass",
		APIPath:     "api/v2/puppetclasses",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&p.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PuppetClass) Spawn() entity.Resource {
	s, _ := NewPuppetClass(p.Config(), nil)
	return s
}

// Realm is an authentication realm.
type Realm struct{ entity.Entity }

func NewRealm(cfg *config.Server, values entity.Values) (*Realm, error) {
	r := &Realm{}
	schema := fields.Fields{
		"name":       fields.String(fields.Required),
		"realm_type": fields.String(fields.Required, fields.Choices("Red Hat Identity Management", "Active Directory")),
	}
	meta := entity.Meta{
		Name:        "Realm",
		APIPath:     "api/v2/realms",
		ServerModes: modesSat,
	}
	if err := entity.Init(&r.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Realm) Spawn() entity.Resource {
	s, _ := NewRealm(r.Config(), nil)
	return s
}

// Report is a Puppet run report.
type Report struct{ entity.Entity }

func NewReport(cfg *config.Server, values entity.Values) (*Report, error) {
	r := &Report{}
	schema := fields.Fields{
		"host":        fields.String(fields.Required),
		"logs":        fields.List(),
		"reported_at": fields.DateTime(fields.Required),
	}
	meta := entity.Meta{
		Name:        "Report",
		APIPath:     "api/v2/reports",
		ServerModes: modesSat,
	}
	if err := entity.Init(&r.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Report) Spawn() entity.Resource {
	s, _ := NewReport(r.Config(), nil)
	return s
}

// SmartProxy is a Foreman smart proxy (capsule).
type SmartProxy struct{ entity.Entity }

func NewSmartProxy(cfg *config.Server, values entity.Values) (*SmartProxy, error) {
	p := &SmartProxy{}
	schema := fields.Fields{
		"name": fields.String(fields.Required),
		"url":  fields.URL(fields.Required),
	}
	meta := entity.Meta{
		Name:        "SmartProxy",
		APIPath:     "api/v2/smart_proxies",
		ServerModes: modesSat,
		Supports:    entity.OpRead,
	}
	if err := entity.Init(&p.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SmartProxy) Spawn() entity.Resource {
	s, _ := NewSmartProxy(p.Config(), nil)
	return s
}

func (p *SmartProxy) Path(which string) (string, error) {
	if which == "refresh" {
		self, err := p.Entity.Path("self")
		if err != nil {
			return "", err
		}
		return self + "/refresh", nil
	}
	return p.Entity.Path(which)
}

// Refresh asks the proxy to re-detect its features.
func (p *SmartProxy) Refresh(ctx context.Context, synchronous bool) (map[string]any, error) {
	path, err := p.Path("refresh")
	if err != nil {
		return nil, err
	}
	resp, err := p.HTTP().Put(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, p, resp, synchronous)
}

// SmartVariable is a Puppet smart variable.
type SmartVariable struct{ entity.Entity }

func NewSmartVariable(cfg *config.Server, values entity.Values) (*SmartVariable, error) {
	v := &SmartVariable{}
	schema := fields.Fields{
		"default_value":        fields.String(),
		"description":          fields.String(),
		"override_value_order": fields.String(),
		"puppetclass":          fields.OneToOne(ref(NewPuppetClass)),
		"validator_rule":       fields.String(),
		"validator_type":       fields.String(),
		"variable":             fields.String(fields.Required),
		"variable_type":        fields.String(),
	}
	meta := entity.Meta{
		Name:        "SmartVariable",
		APIPath:     "api/v2/smart_variables",
		ServerModes: modesSat,
	}
	if err := entity.Init(&v.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *SmartVariable) Spawn() entity.Resource {
	s, _ := NewSmartVariable(v.Config(), nil)
	return s
}

// Subnet is a network subnet. Several fields only exist on Satellite
// 6.1 and later.
type Subnet struct{ entity.Entity }

func NewSubnet(cfg *config.Server, values entity.Values) (*Subnet, error) {
	s := &Subnet{}
	schema := fields.Fields{
		"dns_primary":   fields.IPAddress(),
		"dns_secondary": fields.IPAddress(),
		"domain":        fields.OneToMany(ref(NewDomain)),
		"from":          fields.IPAddress(),
		"gateway":       fields.String(),
		"mask":          fields.Netmask(fields.Required),
		"name":          fields.String(fields.Required),
		"network":       fields.IPAddress(fields.Required),
		"to":            fields.IPAddress(),
		"vlanid":        fields.String(),
	}
	if cfg.AtLeast("6.1") {
		schema["boot_mode"] = fields.String(fields.Choices("Static", "DHCP"), fields.Default("DHCP"))
		schema["dhcp"] = fields.OneToOne(ref(NewSmartProxy))
		schema["dns"] = fields.OneToOne(ref(NewSmartProxy))
		schema["ipam"] = fields.String(fields.Choices("DHCP", "Internal DB"), fields.Default("DHCP"))
		schema["location"] = fields.OneToMany(ref(NewLocation))
		schema["organization"] = fields.OneToMany(ref(NewOrganization))
		schema["tftp"] = fields.OneToOne(ref(NewSmartProxy))
	}
	meta := entity.Meta{
		Name:        "Subnet",
		APIPath:     "api/v2/subnets",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "subnet",
	}
	if err := entity.Init(&s.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subnet) Spawn() entity.Resource {
	sp, _ := NewSubnet(s.Config(), nil)
	return sp
}

// TemplateCombination binds a config template to a host group and
// environment.
type TemplateCombination struct{ entity.Entity }

func NewTemplateCombination(cfg *config.Server, values entity.Values) (*TemplateCombination, error) {
	t := &TemplateCombination{}
	schema := fields.Fields{
		"config_template": fields.OneToOne(ref(NewConfigTemplate), fields.Required),
		"environment":     fields.OneToOne(ref(NewEnvironment)),
		"hostgroup":       fields.OneToOne(ref(NewHostGroup)),
	}
	meta := entity.Meta{
		Name:        "TemplateCombination",
		APIPath:     "api/v2/config_templates/:config_template_id/template_combinations",
		ServerModes: modesSat,
	}
	if err := entity.Init(&t.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TemplateCombination) Spawn() entity.Resource {
	s, _ := NewTemplateCombination(t.Config(), nil)
	return s
}

// TemplateKind is a kind of provisioning template, such as PXELinux.
// Template kinds are created by Foreman at install time.
type TemplateKind struct{ entity.Entity }

func NewTemplateKind(cfg *config.Server, values entity.Values) (*TemplateKind, error) {
	t := &TemplateKind{}
	schema := fields.Fields{
		"name": fields.String(),
	}
	meta := entity.Meta{
		Name:        "TemplateKind",
		APIPath:     "api/v2/template_kinds",
		ServerModes: modesSat,
		Supports:    entity.OpRead,
	}
	if err := entity.Init(&t.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TemplateKind) Spawn() entity.Resource {
	s, _ := NewTemplateKind(t.Config(), nil)
	return s
}
