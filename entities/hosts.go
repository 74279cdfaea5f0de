package entities

import (
	"context"
	"fmt"

	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/entity"
	"github.com/piwi3910/gosatellite/fields"
)

// HostValuesPresentError is returned when FillMissing is called on a
// host that already has values set. A host's dependency graph is
// created as a unit, and mixing caller-supplied values into it is not
// supported.
type HostValuesPresentError struct {
	Names []string
}

func (e *HostValuesPresentError) Error() string {
	return fmt.Sprintf("cannot fill missing host values when values are already set: %v", e.Names)
}

// Host is a managed host.
type Host struct{ entity.Entity }

func NewHost(cfg *config.Server, values entity.Values) (*Host, error) {
	h := &Host{}
	schema := fields.Fields{
		"architecture":               fields.OneToOne(ref(NewArchitecture)),
		"build":                      fields.Boolean(),
		"capabilities":               fields.String(),
		"comment":                    fields.String(),
		"compute_profile":            fields.OneToOne(ref(NewComputeProfile)),
		"compute_resource":           fields.OneToOne(ref(NewComputeResource)),
		"domain":                     fields.OneToOne(ref(NewDomain)),
		"enabled":                    fields.Boolean(),
		"environment":                fields.OneToOne(ref(NewEnvironment)),
		"hostgroup":                  fields.OneToOne(ref(NewHostGroup)),
		"host_parameters_attributes": fields.List(),
		"image":                      fields.OneToOne(ref(NewImage)),
		"ip":                         fields.String(),
		"location":                   fields.OneToOne(ref(NewLocation), fields.Required),
		"mac":                        fields.MACAddress(),
		"managed":                    fields.Boolean(),
		"medium":                     fields.OneToOne(ref(NewMedia)),
		"model":                      fields.OneToOne(ref(NewModel)),
		"name":                       fields.String(fields.Required, fields.Sets(fields.Alpha)),
		"operatingsystem":            fields.OneToOne(ref(NewOperatingSystem)),
		"organization":               fields.OneToOne(ref(NewOrganization), fields.Required),
		"owner":                      fields.OneToOne(ref(NewUser)),
		"owner_type":                 fields.String(fields.Choices("User", "Usergroup")),
		"provision_method":           fields.String(),
		"ptable":                     fields.OneToOne(ref(NewPartitionTable)),
		"puppet_classes":             fields.OneToMany(ref(NewPuppetClass)),
		"puppet_proxy":               fields.OneToOne(ref(NewSmartProxy)),
		"realm":                      fields.OneToOne(ref(NewRealm)),
		"root_pass":                  fields.String(fields.Len(8, 30)),
		"subnet":                     fields.OneToOne(ref(NewSubnet)),
	}
	meta := entity.Meta{
		Name:        "Host",
		APIPath:     "api/v2/hosts",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "host",
		ReadRenames: map[string]string{
			"parameters":    "host_parameters_attributes",
			"puppetclasses": "puppet_classes",
		},
		ReadIgnore: []string{"root_pass"},
	}
	if err := entity.Init(&h.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) Spawn() entity.Resource {
	s, _ := NewHost(h.Config(), nil)
	return s
}

// FillMissing creates a dependency graph of related entities and
// wires the host to it. Foreman rejects hosts whose operating system,
// medium, architecture and partition table do not agree with one
// another, so the graph is built in dependency order rather than
// generating each relation independently. It only works on a host
// with no values set.
func (h *Host) FillMissing(ctx context.Context) error {
	if set := h.Values(); len(set) > 0 {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		return &HostValuesPresentError{Names: names}
	}
	if err := entity.FillMissing(ctx, h); err != nil {
		return err
	}
	schema := h.Fields()
	if err := h.Set("mac", schema["mac"].Generate()); err != nil {
		return err
	}
	if err := h.Set("root_pass", schema["root_pass"].Generate()); err != nil {
		return err
	}
	cfg := h.Config()
	opts := entity.CreateOptions{FillMissing: true, Synchronous: true}

	domain, err := NewDomain(cfg, nil)
	if err != nil {
		return err
	}
	domain, err = entity.CreateWithOptions(ctx, domain, opts)
	if err != nil {
		return err
	}
	env, err := NewEnvironment(cfg, nil)
	if err != nil {
		return err
	}
	env, err = entity.CreateWithOptions(ctx, env, opts)
	if err != nil {
		return err
	}
	arch, err := NewArchitecture(cfg, nil)
	if err != nil {
		return err
	}
	arch, err = entity.CreateWithOptions(ctx, arch, opts)
	if err != nil {
		return err
	}
	ptable, err := NewPartitionTable(cfg, nil)
	if err != nil {
		return err
	}
	ptable, err = entity.CreateWithOptions(ctx, ptable, opts)
	if err != nil {
		return err
	}
	os, err := NewOperatingSystem(cfg, entity.Values{
		"architecture": []any{arch},
		"ptable":       []any{ptable},
	})
	if err != nil {
		return err
	}
	os, err = entity.CreateWithOptions(ctx, os, opts)
	if err != nil {
		return err
	}
	medium, err := NewMedia(cfg, entity.Values{"operatingsystem": []any{os}})
	if err != nil {
		return err
	}
	medium, err = entity.CreateWithOptions(ctx, medium, opts)
	if err != nil {
		return err
	}
	for name, value := range map[string]any{
		"architecture":    arch,
		"domain":          domain,
		"environment":     env,
		"medium":          medium,
		"operatingsystem": os,
		"ptable":          ptable,
	} {
		if err := h.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// HostClasses assigns a Puppet class directly to a host.
type HostClasses struct{ entity.Entity }

func NewHostClasses(cfg *config.Server, values entity.Values) (*HostClasses, error) {
	h := &HostClasses{}
	schema := fields.Fields{
		"host":        fields.OneToOne(ref(NewHost), fields.Required),
		"puppetclass": fields.OneToOne(ref(NewPuppetClass), fields.Required),
	}
	meta := entity.Meta{
		Name:        "HostClasses",
		APIPath:     "api/v2/hosts/:host_id/puppetclass_ids",
		ServerModes: modesSat,
	}
	if err := entity.Init(&h.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HostClasses) Spawn() entity.Resource {
	s, _ := NewHostClasses(h.Config(), nil)
	return s
}

// HostGroup is a template of host settings.
type HostGroup struct{ entity.Entity }

func NewHostGroup(cfg *config.Server, values entity.Values) (*HostGroup, error) {
	h := &HostGroup{}
	schema := fields.Fields{
		"architecture":    fields.OneToOne(ref(NewArchitecture)),
		"domain":          fields.OneToOne(ref(NewDomain)),
		"environment":     fields.OneToOne(ref(NewEnvironment)),
		"medium":          fields.OneToOne(ref(NewMedia)),
		"name":            fields.String(fields.Required),
		"operatingsystem": fields.OneToOne(ref(NewOperatingSystem)),
		"parent":          fields.OneToOne(ref(NewHostGroup)),
		"ptable":          fields.OneToOne(ref(NewPartitionTable)),
		"realm":           fields.OneToOne(ref(NewRealm)),
		"subnet":          fields.OneToOne(ref(NewSubnet)),
	}
	meta := entity.Meta{
		Name:        "HostGroup",
		APIPath:     "api/v2/hostgroups",
		ServerModes: modesSat,
		Supports:    entity.OpCreate | entity.OpRead | entity.OpDelete,
		WrapKey:     "hostgroup",
	}
	if err := entity.Init(&h.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HostGroup) Spawn() entity.Resource {
	s, _ := NewHostGroup(h.Config(), nil)
	return s
}

// HostGroupClasses assigns a Puppet class to a host group.
type HostGroupClasses struct{ entity.Entity }

func NewHostGroupClasses(cfg *config.Server, values entity.Values) (*HostGroupClasses, error) {
	h := &HostGroupClasses{}
	schema := fields.Fields{
		"hostgroup":   fields.OneToOne(ref(NewHostGroup), fields.Required),
		"puppetclass": fields.OneToOne(ref(NewPuppetClass), fields.Required),
	}
	meta := entity.Meta{
		Name:        "HostGroupClasses",
		APIPath:     "api/v2/hostgroups/:hostgroup_id/puppetclass_ids",
		ServerModes: modesSat,
	}
	if err := entity.Init(&h.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HostGroupClasses) Spawn() entity.Resource {
	s, _ := NewHostGroupClasses(h.Config(), nil)
	return s
}

// Interface is a network interface on a host.
type Interface struct{ entity.Entity }

func NewInterface(cfg *config.Server, values entity.Values) (*Interface, error) {
	i := &Interface{}
	schema := fields.Fields{
		"domain":   fields.OneToOne(ref(NewDomain)),
		"host":     fields.OneToOne(ref(NewHost), fields.Required),
		"ip":       fields.IPAddress(fields.Required),
		"mac":      fields.MACAddress(fields.Required),
		"name":     fields.String(fields.Required),
		"password": fields.String(),
		"provider": fields.String(),
		"subnet":   fields.OneToOne(ref(NewSubnet)),
		"type":     fields.String(),
		"username": fields.String(),
	}
	meta := entity.Meta{
		Name:        "Interface",
		APIPath:     "api/v2/hosts/:host_id/interfaces",
		ServerModes: modesSat,
	}
	if err := entity.Init(&i.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Interface) Spawn() entity.Resource {
	s, _ := NewInterface(i.Config(), nil)
	return s
}

// System is a katello content host. Systems are addressed by UUID
// rather than numeric ID.
type System struct{ entity.Entity }

func NewSystem(cfg *config.Server, values entity.Values) (*System, error) {
	s := &System{}
	schema := fields.Fields{
		"content_view":       fields.OneToOne(ref(NewContentView)),
		"environment":        fields.OneToOne(ref(NewLifecycleEnvironment)),
		"facts":              fields.Dict(fields.Required, fields.Default(map[string]any{"uname.machine": "unknown"})),
		"host_collection":    fields.OneToMany(ref(NewHostCollection)),
		"installed_products": fields.List(),
		"last_checkin":       fields.DateTime(),
		"location":           fields.String(),
		"name":               fields.String(fields.Required),
		"organization":       fields.OneToOne(ref(NewOrganization), fields.Required),
		"release_ver":        fields.String(),
		"service_level":      fields.String(),
		"type":               fields.String(fields.Required, fields.Default("system")),
		"uuid":               fields.String(),
	}
	meta := entity.Meta{
		Name:        "System",
		APIPath:     "katello/api/v2/systems",
		ServerModes: modesSatSam,
		Supports:    entity.OpsCRUDS,
		ReadRenames: map[string]string{
			"checkin_time":      "last_checkin",
			"hostCollections":   "host_collections",
			"installedProducts": "installed_products",
		},
		ReadIgnore: []string{"facts", "type"},
	}
	if err := entity.Init(&s.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *System) Spawn() entity.Resource {
	sp, _ := NewSystem(s.Config(), nil)
	return sp
}

// Path addresses the system by UUID when one is set.
func (s *System) Path(which string) (string, error) {
	uuid, ok := s.Get("uuid")
	if !ok || (which != "" && which != "self") {
		return s.Entity.Path(which)
	}
	base, err := s.Entity.Path("base")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%v", base, uuid), nil
}

// SystemPackage manages packages on a content host.
type SystemPackage struct{ entity.Entity }

func NewSystemPackage(cfg *config.Server, values entity.Values) (*SystemPackage, error) {
	p := &SystemPackage{}
	schema := fields.Fields{
		"groups":   fields.List(),
		"packages": fields.List(),
		"system":   fields.OneToOne(ref(NewSystem), fields.Required),
	}
	meta := entity.Meta{
		Name:        "SystemPackage",
		APIPath:     "katello/api/v2/systems/:system_id/packages",
		ServerModes: modesSat,
	}
	if err := entity.Init(&p.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SystemPackage) Spawn() entity.Resource {
	s, _ := NewSystemPackage(p.Config(), nil)
	return s
}
