package entities

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/piwi3910/gosatellite/client"
	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/entity"
	"github.com/piwi3910/gosatellite/fields"
)

func computeResourceSchema() fields.Fields {
	return fields.Fields{
		"description":            fields.String(),
		"location":               fields.OneToMany(ref(NewLocation)),
		"name":                   fields.String(fields.Required, fields.Sets(fields.Alphanumeric, fields.CJK)),
		"organization":           fields.OneToMany(ref(NewOrganization)),
		"provider":               fields.String(fields.Choices("Docker", "EC2", "GCE", "Libvirt", "Openstack", "Ovirt", "Rackspace", "Vmware")),
		"provider_friendly_name": fields.String(),
		"url":                    fields.URL(fields.Required),
	}
}

// ComputeAttribute binds a compute profile to a compute resource.
type ComputeAttribute struct{ entity.Entity }

func NewComputeAttribute(cfg *config.Server, values entity.Values) (*ComputeAttribute, error) {
	c := &ComputeAttribute{}
	schema := fields.Fields{
		"compute_profile":  fields.OneToOne(ref(NewComputeProfile), fields.Required),
		"compute_resource": fields.OneToOne(ref(NewComputeResource), fields.Required),
	}
	meta := entity.Meta{
		Name:        "ComputeAttribute",
		APIPath:     "api/v2/compute_attributes",
		ServerModes: modesSat,
	}
	if err := entity.Init(&c.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ComputeAttribute) Spawn() entity.Resource {
	s, _ := NewComputeAttribute(c.Config(), nil)
	return s
}

// ComputeProfile is a named set of compute attributes.
type ComputeProfile struct{ entity.Entity }

func NewComputeProfile(cfg *config.Server, values entity.Values) (*ComputeProfile, error) {
	c := &ComputeProfile{}
	schema := fields.Fields{
		"name": fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:        "ComputeProfile",
		APIPath:     "api/v2/compute_profiles",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&c.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ComputeProfile) Spawn() entity.Resource {
	s, _ := NewComputeProfile(c.Config(), nil)
	return s
}

// ComputeResource is a virtualization or cloud backend. It carries
// the fields common to every provider; the provider-specific types
// add their own.
type ComputeResource struct{ entity.Entity }

func NewComputeResource(cfg *config.Server, values entity.Values) (*ComputeResource, error) {
	c := &ComputeResource{}
	meta := entity.Meta{
		Name:        "ComputeResource",
		APIPath:     "api/v2/compute_resources",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "compute_resource",
	}
	if err := entity.Init(&c.Entity, cfg, computeResourceSchema(), meta, values); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ComputeResource) Spawn() entity.Resource {
	s, _ := NewComputeResource(c.Config(), nil)
	return s
}

// DockerComputeResource is a Docker host used as a compute resource.
type DockerComputeResource struct{ entity.Entity }

func NewDockerComputeResource(cfg *config.Server, values entity.Values) (*DockerComputeResource, error) {
	d := &DockerComputeResource{}
	schema := computeResourceSchema()
	schema["email"] = fields.Email()
	schema["password"] = fields.String()
	schema["provider"] = fields.String(fields.Required, fields.Default("Docker"),
		fields.Choices("Docker", "EC2", "GCE", "Libvirt", "Openstack", "Ovirt", "Rackspace", "Vmware"))
	schema["provider_friendly_name"] = fields.String(fields.Default("Docker"))
	schema["user"] = fields.String()
	meta := entity.Meta{
		Name:           "DockerComputeResource",
		APIPath:        "api/v2/compute_resources",
		ServerModes:    modesSat,
		Supports:       entity.OpsCRUDS,
		WrapKey:        "compute_resource",
		CreateReadBack: true,
		ReadIgnore:     []string{"password"},
	}
	if err := entity.Init(&d.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DockerComputeResource) Spawn() entity.Resource {
	s, _ := NewDockerComputeResource(d.Config(), nil)
	return s
}

// FixReadAttrs fetches the email separately. A plain GET of a Docker
// compute resource omits it, but an empty PUT returns it.
func (d *DockerComputeResource) FixReadAttrs(ctx context.Context, attrs map[string]any) error {
	if _, ok := attrs["email"]; ok {
		return nil
	}
	path, err := d.Path("self")
	if err != nil {
		return err
	}
	resp, err := d.HTTP().Put(ctx, path, map[string]any{})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	body, err := resp.JSON()
	if err != nil {
		return err
	}
	attrs["email"] = body["email"]
	return nil
}

// LibvirtComputeResource is a libvirt hypervisor used as a compute
// resource.
type LibvirtComputeResource struct{ entity.Entity }

func NewLibvirtComputeResource(cfg *config.Server, values entity.Values) (*LibvirtComputeResource, error) {
	l := &LibvirtComputeResource{}
	schema := computeResourceSchema()
	schema["display_type"] = fields.String(fields.Required, fields.Choices("VNC", "SPICE"))
	schema["provider"] = fields.String(fields.Required, fields.Default("Libvirt"),
		fields.Choices("Docker", "EC2", "GCE", "Libvirt", "Openstack", "Ovirt", "Rackspace", "Vmware"))
	schema["provider_friendly_name"] = fields.String(fields.Default("Libvirt"))
	schema["set_console_password"] = fields.Boolean()
	meta := entity.Meta{
		Name:        "LibvirtComputeResource",
		APIPath:     "api/v2/compute_resources",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "compute_resource",
	}
	if err := entity.Init(&l.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LibvirtComputeResource) Spawn() entity.Resource {
	s, _ := NewLibvirtComputeResource(l.Config(), nil)
	return s
}

// Image is a VM image on a compute resource.
type Image struct{ entity.Entity }

func NewImage(cfg *config.Server, values entity.Values) (*Image, error) {
	i := &Image{}
	schema := fields.Fields{
		"architecture":     fields.OneToOne(ref(NewArchitecture), fields.Required),
		"compute_resource": fields.OneToOne(ref(NewComputeResource), fields.Required),
		"name":             fields.String(fields.Required),
		"operatingsystem":  fields.OneToOne(ref(NewOperatingSystem), fields.Required),
		"username":         fields.String(fields.Required),
		"uuid":             fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:        "Image",
		APIPath:     "api/v2/compute_resources/:compute_resource_id/images",
		ServerModes: modesSat,
	}
	if err := entity.Init(&i.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Image) Spawn() entity.Resource {
	s, _ := NewImage(i.Config(), nil)
	return s
}

func dockerContainerSchema() fields.Fields {
	return fields.Fields{
		"attach_stderr":    fields.Boolean(),
		"attach_stdin":     fields.Boolean(),
		"attach_stdout":    fields.Boolean(),
		"command":          fields.String(fields.Required, fields.Sets(fields.Latin1)),
		"compute_resource": fields.OneToOne(ref(NewComputeResource)),
		"cpu_set":          fields.String(),
		"cpu_shares":       fields.String(),
		"entrypoint":       fields.String(),
		"location":         fields.OneToMany(ref(NewLocation)),
		"memory":           fields.String(),
		"name":             fields.String(fields.Required, fields.Sets(fields.Alphanumeric)),
		"organization":     fields.OneToMany(ref(NewOrganization)),
		"tty":              fields.Boolean(),
	}
}

// DockerContainer is a container managed through a Docker compute
// resource.
type DockerContainer struct{ entity.Entity }

func NewDockerContainer(cfg *config.Server, values entity.Values) (*DockerContainer, error) {
	d := &DockerContainer{}
	meta := entity.Meta{
		Name:        "DockerContainer",
		APIPath:     "docker/api/v2/containers",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "container",
	}
	if err := entity.Init(&d.Entity, cfg, dockerContainerSchema(), meta, values); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DockerContainer) Spawn() entity.Resource {
	s, _ := NewDockerContainer(d.Config(), nil)
	return s
}

func containerSubPath(r entity.Resource, which string) (string, error) {
	self, err := r.Path("self")
	if err != nil {
		return "", err
	}
	return self + "/" + which, nil
}

// ContainerLogsOptions control which container output Logs returns.
type ContainerLogsOptions struct {
	Stdout bool
	Stderr bool
	Tail   int
}

func containerPower(ctx context.Context, r entity.Resource, cl *client.Client, action string) (map[string]any, error) {
	switch action {
	case "start", "stop", "status":
	default:
		return nil, fmt.Errorf("power action must be start, stop or status, got %q", action)
	}
	path, err := containerSubPath(r, "power")
	if err != nil {
		return nil, err
	}
	resp, err := cl.Put(ctx, path, map[string]any{"power_action": action})
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, r, resp, false)
}

func containerLogs(ctx context.Context, r entity.Resource, cl *client.Client, opts ContainerLogsOptions) (map[string]any, error) {
	path, err := containerSubPath(r, "logs")
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if opts.Stdout {
		params.Set("stdout", "true")
	}
	if opts.Stderr {
		params.Set("stderr", "true")
	}
	if opts.Tail > 0 {
		params.Set("tail", strconv.Itoa(opts.Tail))
	}
	resp, err := cl.Do(ctx, "GET", path, nil, params)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, r, resp, false)
}

// Power starts or stops the container, or reports its status. Action
// must be one of start, stop or status.
func (d *DockerContainer) Power(ctx context.Context, action string) (map[string]any, error) {
	return containerPower(ctx, d, d.HTTP(), action)
}

// Logs returns the container's output.
func (d *DockerContainer) Logs(ctx context.Context, opts ContainerLogsOptions) (map[string]any, error) {
	return containerLogs(ctx, d, d.HTTP(), opts)
}

// DockerHubContainer is a container whose image comes from Docker Hub.
type DockerHubContainer struct{ entity.Entity }

func NewDockerHubContainer(cfg *config.Server, values entity.Values) (*DockerHubContainer, error) {
	d := &DockerHubContainer{}
	schema := dockerContainerSchema()
	schema["repository_name"] = fields.String(fields.Required, fields.Default("busybox"))
	schema["tag"] = fields.String(fields.Required, fields.Default("latest"))
	meta := entity.Meta{
		Name:        "DockerHubContainer",
		APIPath:     "docker/api/v2/containers",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "container",
	}
	if err := entity.Init(&d.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DockerHubContainer) Spawn() entity.Resource {
	s, _ := NewDockerHubContainer(d.Config(), nil)
	return s
}

// Power starts or stops the container, or reports its status.
func (d *DockerHubContainer) Power(ctx context.Context, action string) (map[string]any, error) {
	return containerPower(ctx, d, d.HTTP(), action)
}

// Logs returns the container's output.
func (d *DockerHubContainer) Logs(ctx context.Context, opts ContainerLogsOptions) (map[string]any, error) {
	return containerLogs(ctx, d, d.HTTP(), opts)
}
