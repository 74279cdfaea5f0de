package entities

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/entity"
	"github.com/piwi3910/gosatellite/fields"
)

// ActivationKey registers content hosts.
type ActivationKey struct{ entity.Entity }

func NewActivationKey(cfg *config.Server, values entity.Values) (*ActivationKey, error) {
	a := &ActivationKey{}
	schema := fields.Fields{
		"auto_attach":             fields.Boolean(),
		"content_view":            fields.OneToOne(ref(NewContentView)),
		"environment":             fields.OneToOne(ref(NewLifecycleEnvironment)),
		"host_collection":         fields.OneToMany(ref(NewHostCollection)),
		"max_content_hosts":       fields.Integer(),
		"name":                    fields.String(fields.Required),
		"organization":            fields.OneToOne(ref(NewOrganization), fields.Required),
		"unlimited_content_hosts": fields.Boolean(),
	}
	meta := entity.Meta{
		Name:        "ActivationKey",
		APIPath:     "katello/api/v2/activation_keys",
		ServerModes: modesSatSam,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&a.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *ActivationKey) Spawn() entity.Resource {
	s, _ := NewActivationKey(a.Config(), nil)
	return s
}

func (a *ActivationKey) Path(which string) (string, error) {
	switch which {
	case "add_subscriptions", "content_override", "releases", "remove_subscriptions":
		self, err := a.Entity.Path("self")
		if err != nil {
			return "", err
		}
		return self + "/" + which, nil
	}
	return a.Entity.Path(which)
}

// AddSubscriptions attaches subscriptions to the activation key.
func (a *ActivationKey) AddSubscriptions(ctx context.Context, params map[string]any) (map[string]any, error) {
	path, err := a.Path("add_subscriptions")
	if err != nil {
		return nil, err
	}
	resp, err := a.HTTP().Put(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, a, resp, true)
}

// ContentOverride overrides the enablement of a content entity
// attached through the activation key.
func (a *ActivationKey) ContentOverride(ctx context.Context, label string, value any) (map[string]any, error) {
	path, err := a.Path("content_override")
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"content_override": map[string]any{
			"content_label": label,
			"value":         value,
		},
	}
	resp, err := a.HTTP().Put(ctx, path, body)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, a, resp, true)
}

// ContentUpload is a chunked upload of content into a repository.
type ContentUpload struct{ entity.Entity }

func NewContentUpload(cfg *config.Server, values entity.Values) (*ContentUpload, error) {
	c := &ContentUpload{}
	schema := fields.Fields{
		"repository": fields.OneToOne(ref(NewRepository), fields.Required),
	}
	meta := entity.Meta{
		Name:        "ContentUpload",
		APIPath:     "katello/api/v2/repositories/:repository_id/content_uploads",
		ServerModes: modesSat,
	}
	if err := entity.Init(&c.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ContentUpload) Spawn() entity.Resource {
	s, _ := NewContentUpload(c.Config(), nil)
	return s
}

// ContentView is a katello content view.
type ContentView struct{ entity.Entity }

func NewContentView(cfg *config.Server, values entity.Values) (*ContentView, error) {
	c := &ContentView{}
	schema := fields.Fields{
		"component":    fields.OneToMany(ref(NewContentView)),
		"composite":    fields.Boolean(),
		"description":  fields.String(),
		"label":        fields.String(),
		"name":         fields.String(fields.Required),
		"organization": fields.OneToOne(ref(NewOrganization), fields.Required),
		"repository":   fields.OneToMany(ref(NewRepository)),
	}
	meta := entity.Meta{
		Name:        "ContentView",
		APIPath:     "katello/api/v2/content_views",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&c.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ContentView) Spawn() entity.Resource {
	s, _ := NewContentView(c.Config(), nil)
	return s
}

func (c *ContentView) Path(which string) (string, error) {
	switch which {
	case "available_puppet_module_names",
		"available_puppet_modules",
		"content_view_puppet_modules",
		"content_view_versions",
		"copy",
		"publish":
		self, err := c.Entity.Path("self")
		if err != nil {
			return "", err
		}
		return self + "/" + which, nil
	}
	return c.Entity.Path(which)
}

// Publish creates a new content view version from the current
// repository contents.
func (c *ContentView) Publish(ctx context.Context, synchronous bool) (map[string]any, error) {
	path, err := c.Path("publish")
	if err != nil {
		return nil, err
	}
	id, ok := c.RawID()
	if !ok {
		return nil, &entity.MissingValueError{Entity: "ContentView", Field: "id"}
	}
	resp, err := c.HTTP().Post(ctx, path, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, c, resp, synchronous)
}

// Copy clones the content view under a new name.
func (c *ContentView) Copy(ctx context.Context, name string) (map[string]any, error) {
	path, err := c.Path("copy")
	if err != nil {
		return nil, err
	}
	id, ok := c.RawID()
	if !ok {
		return nil, &entity.MissingValueError{Entity: "ContentView", Field: "id"}
	}
	resp, err := c.HTTP().Post(ctx, path, map[string]any{"id": id, "name": name})
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, c, resp, true)
}

// SetRepositoryIDs replaces the set of repositories in the view.
func (c *ContentView) SetRepositoryIDs(ctx context.Context, ids []int) (map[string]any, error) {
	path, err := c.Path("self")
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP().Put(ctx, path, map[string]any{"repository_ids": ids})
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, c, resp, true)
}

// AvailablePuppetModules lists the puppet modules that can be added
// to the view.
func (c *ContentView) AvailablePuppetModules(ctx context.Context) (map[string]any, error) {
	path, err := c.Path("available_puppet_modules")
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP().Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, c, resp, true)
}

// AddPuppetModule adds a puppet module to the view by author and name.
func (c *ContentView) AddPuppetModule(ctx context.Context, author, name string) (map[string]any, error) {
	path, err := c.Path("content_view_puppet_modules")
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP().Post(ctx, path, map[string]any{"author": author, "name": name})
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, c, resp, true)
}

// DeleteFromEnvironment removes the content view from a lifecycle
// environment.
func (c *ContentView) DeleteFromEnvironment(ctx context.Context, environmentID int, synchronous bool) (map[string]any, error) {
	self, err := c.Path("self")
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/environments/%d", self, environmentID)
	resp, err := c.HTTP().Delete(ctx, path)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, c, resp, synchronous)
}

// ContentViewVersion is a published version of a content view.
type ContentViewVersion struct{ entity.Entity }

func NewContentViewVersion(cfg *config.Server, values entity.Values) (*ContentViewVersion, error) {
	v := &ContentViewVersion{}
	meta := entity.Meta{
		Name:        "ContentViewVersion",
		APIPath:     "katello/api/v2/content_view_versions",
		ServerModes: modesSat,
		Supports:    entity.OpRead | entity.OpDelete | entity.OpSearch,
	}
	if err := entity.Init(&v.Entity, cfg, fields.Fields{}, meta, values); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *ContentViewVersion) Spawn() entity.Resource {
	s, _ := NewContentViewVersion(v.Config(), nil)
	return s
}

func (v *ContentViewVersion) Path(which string) (string, error) {
	if which == "promote" {
		self, err := v.Entity.Path("self")
		if err != nil {
			return "", err
		}
		return self + "/promote", nil
	}
	return v.Entity.Path(which)
}

// Promote moves the version into a lifecycle environment.
func (v *ContentViewVersion) Promote(ctx context.Context, environmentID int, synchronous bool) (map[string]any, error) {
	path, err := v.Path("promote")
	if err != nil {
		return nil, err
	}
	resp, err := v.HTTP().Post(ctx, path, map[string]any{"environment_id": environmentID})
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, v, resp, synchronous)
}

// ContentViewFilter includes or excludes content from a view.
type ContentViewFilter struct{ entity.Entity }

func NewContentViewFilter(cfg *config.Server, values entity.Values) (*ContentViewFilter, error) {
	f := &ContentViewFilter{}
	schema := fields.Fields{
		"content_view":      fields.OneToOne(ref(NewContentView), fields.Required),
		"inclusion":         fields.Boolean(),
		"name":              fields.String(fields.Required),
		"original_packages": fields.Boolean(),
		"repository":        fields.OneToMany(ref(NewRepository)),
		"type":              fields.String(fields.Required, fields.Choices("erratum", "package_group", "rpm")),
	}
	meta := entity.Meta{
		Name:        "ContentViewFilter",
		APIPath:     "katello/api/v2/content_view_filters",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&f.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *ContentViewFilter) Spawn() entity.Resource {
	s, _ := NewContentViewFilter(f.Config(), nil)
	return s
}

// ContentViewFilterRule is a rule inside a content view filter. The
// content_view_filter value is required at construction time because
// it determines the rule's URL. The rules endpoint returns only the
// attributes relevant to the rule's type, so reads tolerate missing
// fields.
type ContentViewFilterRule struct {
	entity.Entity
	parent any
}

func NewContentViewFilterRule(cfg *config.Server, values entity.Values) (*ContentViewFilterRule, error) {
	if err := requireParent("ContentViewFilterRule", "content_view_filter", values); err != nil {
		return nil, err
	}
	r := &ContentViewFilterRule{parent: values["content_view_filter"]}
	filter, err := NewContentViewFilter(cfg, entity.Values{"id": values["content_view_filter"]})
	if err != nil {
		return nil, err
	}
	filterPath, err := filter.Path("self")
	if err != nil {
		return nil, err
	}
	schema := fields.Fields{
		"content_view_filter": fields.OneToOne(ref(NewContentViewFilter), fields.Required),
		"end_date":            fields.Date(),
		"errata":              fields.OneToOne(ref(NewErrata)),
		"max_version":         fields.String(),
		"min_version":         fields.String(),
		"name":                fields.String(),
		"start_date":          fields.Date(),
		"types":               fields.List(),
		"version":             fields.String(),
	}
	meta := entity.Meta{
		Name:        "ContentViewFilterRule",
		APIPath:     filterPath + "/rules",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		ReadIgnore:  []string{"content_view_filter"},
		SparseRead:  true,
	}
	if err := entity.Init(&r.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ContentViewFilterRule) Spawn() entity.Resource {
	s, _ := NewContentViewFilterRule(r.Config(), entity.Values{"content_view_filter": r.parent})
	return s
}

// ContentViewPuppetModule is a puppet module assigned to a content
// view. The content_view value is required at construction time
// because it determines the module's URL.
type ContentViewPuppetModule struct {
	entity.Entity
	parent any
}

func NewContentViewPuppetModule(cfg *config.Server, values entity.Values) (*ContentViewPuppetModule, error) {
	if err := requireParent("ContentViewPuppetModule", "content_view", values); err != nil {
		return nil, err
	}
	m := &ContentViewPuppetModule{parent: values["content_view"]}
	view, err := NewContentView(cfg, entity.Values{"id": values["content_view"]})
	if err != nil {
		return nil, err
	}
	viewPath, err := view.Path("self")
	if err != nil {
		return nil, err
	}
	schema := fields.Fields{
		"author":        fields.String(),
		"content_view":  fields.OneToOne(ref(NewContentView), fields.Required),
		"name":          fields.String(),
		"puppet_module": fields.OneToOne(ref(NewPuppetModule)),
	}
	meta := entity.Meta{
		Name:           "ContentViewPuppetModule",
		APIPath:        viewPath + "/content_view_puppet_modules",
		ServerModes:    modesSat,
		Supports:       entity.OpsCRUDS,
		PayloadRenames: map[string]string{"puppet_module_id": "uuid"},
		ReadIgnore:     []string{"content_view"},
	}
	if err := entity.Init(&m.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ContentViewPuppetModule) Spawn() entity.Resource {
	s, _ := NewContentViewPuppetModule(m.Config(), entity.Values{"content_view": m.parent})
	return s
}

// FixReadAttrs rewrites the server's uuid attribute into the shape of
// a puppet_module relation.
func (m *ContentViewPuppetModule) FixReadAttrs(ctx context.Context, attrs map[string]any) error {
	uuid, ok := attrs["uuid"]
	if !ok {
		return nil
	}
	delete(attrs, "uuid")
	if uuid == nil {
		attrs["puppet_module"] = nil
	} else {
		attrs["puppet_module"] = map[string]any{"id": uuid}
	}
	return nil
}

// Errata is a katello erratum. Errata are synced from upstream
// repositories and cannot be created.
type Errata struct{ entity.Entity }

func NewErrata(cfg *config.Server, values entity.Values) (*Errata, error) {
	e := &Errata{}
	meta := entity.Meta{
		Name:        "Errata",
		APIPath:     "api/v2/errata",
		ServerModes: modesSat,
		Supports:    entity.OpRead | entity.OpSearch,
	}
	if err := entity.Init(&e.Entity, cfg, fields.Fields{}, meta, values); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Errata) Spawn() entity.Resource {
	s, _ := NewErrata(e.Config(), nil)
	return s
}

// GPGKey is a GPG key used to verify repository content.
type GPGKey struct{ entity.Entity }

func NewGPGKey(cfg *config.Server, values entity.Values) (*GPGKey, error) {
	g := &GPGKey{}
	schema := fields.Fields{
		"content":      fields.String(fields.Required),
		"name":         fields.String(fields.Required),
		"organization": fields.OneToOne(ref(NewOrganization), fields.Required),
	}
	meta := entity.Meta{
		Name:        "GPGKey",
		APIPath:     "katello/api/v2/gpg_keys",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&g.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GPGKey) Spawn() entity.Resource {
	s, _ := NewGPGKey(g.Config(), nil)
	return s
}

// HostCollection is a named group of content hosts.
type HostCollection struct{ entity.Entity }

func NewHostCollection(cfg *config.Server, values entity.Values) (*HostCollection, error) {
	h := &HostCollection{}
	schema := fields.Fields{
		"description":             fields.String(),
		"max_content_hosts":       fields.Integer(),
		"name":                    fields.String(fields.Required),
		"organization":            fields.OneToOne(ref(NewOrganization), fields.Required),
		"system":                  fields.OneToMany(ref(NewSystem)),
		"unlimited_content_hosts": fields.Boolean(),
	}
	meta := entity.Meta{
		Name:        "HostCollection",
		APIPath:     "katello/api/v2/host_collections",
		ServerModes: modesSatSam,
		Supports:    entity.OpsCRUDS,
		// Systems are addressed by UUID on this endpoint.
		PayloadRenames: map[string]string{"system_ids": "system_uuids"},
	}
	if err := entity.Init(&h.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HostCollection) Spawn() entity.Resource {
	s, _ := NewHostCollection(h.Config(), nil)
	return s
}

// HostCollectionErrata installs errata on a host collection.
type HostCollectionErrata struct{ entity.Entity }

func NewHostCollectionErrata(cfg *config.Server, values entity.Values) (*HostCollectionErrata, error) {
	h := &HostCollectionErrata{}
	schema := fields.Fields{
		"errata": fields.OneToMany(ref(NewErrata)),
	}
	meta := entity.Meta{
		Name:        "HostCollectionErrata",
		APIPath:     "katello/api/v2/organizations/:organization_id/host_collections/:host_collection_id/errata",
		ServerModes: modesSat,
	}
	if err := entity.Init(&h.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HostCollectionErrata) Spawn() entity.Resource {
	s, _ := NewHostCollectionErrata(h.Config(), nil)
	return s
}

// HostCollectionPackage manages packages on a host collection.
type HostCollectionPackage struct{ entity.Entity }

func NewHostCollectionPackage(cfg *config.Server, values entity.Values) (*HostCollectionPackage, error) {
	h := &HostCollectionPackage{}
	schema := fields.Fields{
		"groups":   fields.List(),
		"packages": fields.List(),
	}
	meta := entity.Meta{
		Name:        "HostCollectionPackage",
		APIPath:     "katello/api/v2/organizations/:organization_id/host_collections/:host_collection_id/packages",
		ServerModes: modesSat,
	}
	if err := entity.Init(&h.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HostCollectionPackage) Spawn() entity.Resource {
	s, _ := NewHostCollectionPackage(h.Config(), nil)
	return s
}

// LifecycleEnvironment is a katello lifecycle environment. Every
// environment other than Library has a prior environment forming a
// promotion chain.
type LifecycleEnvironment struct{ entity.Entity }

func NewLifecycleEnvironment(cfg *config.Server, values entity.Values) (*LifecycleEnvironment, error) {
	l := &LifecycleEnvironment{}
	schema := fields.Fields{
		"description":  fields.String(),
		"name":         fields.String(fields.Required),
		"organization": fields.OneToOne(ref(NewOrganization), fields.Required),
		"prior":        fields.OneToOne(ref(NewLifecycleEnvironment)),
	}
	meta := entity.Meta{
		Name:        "LifecycleEnvironment",
		APIPath:     "katello/api/v2/environments",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		// The server wants "prior", not "prior_id".
		PayloadRenames: map[string]string{"prior_id": "prior"},
	}
	if err := entity.Init(&l.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LifecycleEnvironment) Spawn() entity.Resource {
	s, _ := NewLifecycleEnvironment(l.Config(), nil)
	return s
}

// FillMissing points prior at the organization's Library environment
// unless this environment is itself named Library.
func (l *LifecycleEnvironment) FillMissing(ctx context.Context) error {
	if err := entity.FillMissing(ctx, l); err != nil {
		return err
	}
	if name, _ := l.Get("name"); name == "Library" {
		return nil
	}
	if _, ok := l.Get("prior"); ok {
		return nil
	}
	org, ok := l.Get("organization")
	if !ok {
		return &entity.MissingValueError{Entity: "LifecycleEnvironment", Field: "organization"}
	}
	orgRes, ok := org.(entity.Resource)
	if !ok {
		return &entity.BadValueError{Entity: "LifecycleEnvironment", Field: "organization", Value: org}
	}
	orgID, err := resourceID(orgRes)
	if err != nil {
		return err
	}
	base, err := l.Path("base")
	if err != nil {
		return err
	}
	results, err := getResults(ctx, l.HTTP(), base, map[string]any{
		"name":            "Library",
		"organization_id": orgID,
	})
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return &entity.APIResponseError{
			Message: fmt.Sprintf("expected one Library environment, got %d", len(results)),
		}
	}
	return l.Set("prior", results[0]["id"])
}

// Organization is a katello organization.
type Organization struct{ entity.Entity }

func NewOrganization(cfg *config.Server, values entity.Values) (*Organization, error) {
	o := &Organization{}
	schema := fields.Fields{
		"description": fields.String(),
		"label":       fields.String(fields.Sets(fields.Alpha)),
		"name":        fields.String(fields.Required),
		"title":       fields.String(),
	}
	meta := entity.Meta{
		Name:        "Organization",
		APIPath:     "katello/api/v2/organizations",
		ServerModes: modesSatSam,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&o.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Organization) Spawn() entity.Resource {
	s, _ := NewOrganization(o.Config(), nil)
	return s
}

func (o *Organization) Path(which string) (string, error) {
	switch which {
	case "products",
		"subscriptions",
		"subscriptions/delete_manifest",
		"subscriptions/refresh_manifest",
		"subscriptions/upload",
		"sync_plans":
		self, err := o.Entity.Path("self")
		if err != nil {
			return "", err
		}
		return self + "/" + which, nil
	}
	return o.Entity.Path(which)
}

// Subscriptions lists the organization's subscriptions.
func (o *Organization) Subscriptions(ctx context.Context) ([]map[string]any, error) {
	path, err := o.Path("subscriptions")
	if err != nil {
		return nil, err
	}
	return getResults(ctx, o.HTTP(), path, nil)
}

// UploadManifest uploads a subscription manifest.
func (o *Organization) UploadManifest(ctx context.Context, file io.Reader, fileName, repositoryURL string, synchronous bool) (map[string]any, error) {
	path, err := o.Path("subscriptions/upload")
	if err != nil {
		return nil, err
	}
	extra := map[string]string{}
	if repositoryURL != "" {
		extra["repository_url"] = repositoryURL
	}
	resp, err := o.HTTP().PostMultipart(ctx, path, extra, "content", fileName, file)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, o, resp, synchronous)
}

// DeleteManifest deletes the organization's subscription manifest.
func (o *Organization) DeleteManifest(ctx context.Context, synchronous bool) (map[string]any, error) {
	path, err := o.Path("subscriptions/delete_manifest")
	if err != nil {
		return nil, err
	}
	resp, err := o.HTTP().Post(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, o, resp, synchronous)
}

// RefreshManifest refreshes the organization's subscription manifest.
func (o *Organization) RefreshManifest(ctx context.Context, synchronous bool) (map[string]any, error) {
	path, err := o.Path("subscriptions/refresh_manifest")
	if err != nil {
		return nil, err
	}
	resp, err := o.HTTP().Put(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, o, resp, synchronous)
}

// CreateSyncPlan creates a sync plan scoped to this organization,
// starting now.
func (o *Organization) CreateSyncPlan(ctx context.Context, name, interval string) (*SyncPlan, error) {
	id, ok := o.RawID()
	if !ok {
		return nil, &entity.MissingValueError{Entity: "Organization", Field: "id"}
	}
	plan, err := NewSyncPlan(o.Config(), entity.Values{
		"enabled":      true,
		"interval":     interval,
		"name":         name,
		"organization": id,
		"sync_date":    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return entity.Create(ctx, plan)
}

// ListProducts lists the organization's products.
func (o *Organization) ListProducts(ctx context.Context, perPage int) ([]map[string]any, error) {
	path, err := o.Path("products")
	if err != nil {
		return nil, err
	}
	return getResults(ctx, o.HTTP(), path, map[string]any{"per_page": perPage})
}

// Ping reads the server's katello ping status.
type Ping struct{ entity.Entity }

func NewPing(cfg *config.Server, values entity.Values) (*Ping, error) {
	p := &Ping{}
	meta := entity.Meta{
		Name:        "Ping",
		APIPath:     "katello/api/v2/ping",
		ServerModes: modesSatSam,
	}
	if err := entity.Init(&p.Entity, cfg, fields.Fields{}, meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Ping) Spawn() entity.Resource {
	s, _ := NewPing(p.Config(), nil)
	return s
}

// Status reads the katello status endpoint.
type Status struct{ entity.Entity }

func NewStatus(cfg *config.Server, values entity.Values) (*Status, error) {
	s := &Status{}
	meta := entity.Meta{
		Name:        "Status",
		APIPath:     "katello/api/v2/status",
		ServerModes: modesSat,
	}
	if err := entity.Init(&s.Entity, cfg, fields.Fields{}, meta, values); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Status) Spawn() entity.Resource {
	sp, _ := NewStatus(s.Config(), nil)
	return sp
}

// Product is a katello product grouping repositories.
type Product struct{ entity.Entity }

func NewProduct(cfg *config.Server, values entity.Values) (*Product, error) {
	p := &Product{}
	schema := fields.Fields{
		"description":  fields.String(),
		"gpg_key":      fields.OneToOne(ref(NewGPGKey)),
		"label":        fields.String(),
		"name":         fields.String(fields.Required),
		"organization": fields.OneToOne(ref(NewOrganization), fields.Required),
		"sync_plan":    fields.OneToOne(ref(newSyncPlanRef)),
	}
	meta := entity.Meta{
		Name:        "Product",
		APIPath:     "katello/api/v2/products",
		ServerModes: modesSatSam,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&p.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) Spawn() entity.Resource {
	s, _ := NewProduct(p.Config(), nil)
	return s
}

func (p *Product) Path(which string) (string, error) {
	if len(which) >= len("repository_sets") && which[:len("repository_sets")] == "repository_sets" {
		self, err := p.Entity.Path("self")
		if err != nil {
			return "", err
		}
		return self + "/" + which, nil
	}
	return p.Entity.Path(which)
}

// FixReadAttrs rewrites the organization label returned by Satellite
// 6.0 into the id shape expected for a relation.
func (p *Product) FixReadAttrs(ctx context.Context, attrs map[string]any) error {
	if p.Config().AtLeast("6.1") {
		return nil
	}
	orgAttrs, ok := attrs["organization"].(map[string]any)
	if !ok {
		return nil
	}
	label, ok := orgAttrs["label"]
	if !ok {
		return nil
	}
	org, err := NewOrganization(p.Config(), nil)
	if err != nil {
		return err
	}
	results, err := entity.SearchJSON(ctx, org, entity.SearchOptions{
		Query: map[string]any{"search": fmt.Sprintf("label=%v", label)},
	})
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return &entity.APIResponseError{
			Message: fmt.Sprintf("expected one organization with label %v, got %d", label, len(results)),
		}
	}
	attrs["organization"] = map[string]any{"id": results[0]["id"]}
	return nil
}

// RepositorySets lists the product's repository sets.
func (p *Product) RepositorySets(ctx context.Context, perPage int) ([]map[string]any, error) {
	path, err := p.Path("repository_sets")
	if err != nil {
		return nil, err
	}
	return getResults(ctx, p.HTTP(), path, map[string]any{"per_page": perPage})
}

// RepositorySetID looks up a repository set by name.
func (p *Product) RepositorySetID(ctx context.Context, name string) (any, error) {
	path, err := p.Path("repository_sets")
	if err != nil {
		return nil, err
	}
	results, err := getResults(ctx, p.HTTP(), path, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, &entity.APIResponseError{
			Message: fmt.Sprintf("expected one repository set named %q, got %d", name, len(results)),
		}
	}
	return results[0]["id"], nil
}

// FetchProductID looks up a product by organization and name.
func FetchProductID(ctx context.Context, cfg *config.Server, organizationID any, name string) (any, error) {
	p, err := NewProduct(cfg, nil)
	if err != nil {
		return nil, err
	}
	base, err := p.Path("base")
	if err != nil {
		return nil, err
	}
	results, err := getResults(ctx, p.HTTP(), base, map[string]any{
		"organization_id": organizationID,
		"name":            name,
	})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, &entity.APIResponseError{
			Message: fmt.Sprintf("expected one product named %q, got %d", name, len(results)),
		}
	}
	return results[0]["id"], nil
}

func (p *Product) setRepositorySet(ctx context.Context, action string, repositorySetID any, basearch, releasever string, synchronous bool) (map[string]any, error) {
	path, err := p.Path(fmt.Sprintf("repository_sets/%v/%s", repositorySetID, action))
	if err != nil {
		return nil, err
	}
	body := map[string]any{"basearch": basearch}
	if releasever != "" {
		body["releasever"] = releasever
	}
	resp, err := p.HTTP().Put(ctx, path, body)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, p, resp, synchronous)
}

// EnableRepositorySet enables a repository within a repository set.
func (p *Product) EnableRepositorySet(ctx context.Context, repositorySetID any, basearch, releasever string, synchronous bool) (map[string]any, error) {
	return p.setRepositorySet(ctx, "enable", repositorySetID, basearch, releasever, synchronous)
}

// DisableRepositorySet disables a repository within a repository set.
func (p *Product) DisableRepositorySet(ctx context.Context, repositorySetID any, basearch, releasever string, synchronous bool) (map[string]any, error) {
	return p.setRepositorySet(ctx, "disable", repositorySetID, basearch, releasever, synchronous)
}

// PuppetModule is a puppet module synced into a repository.
type PuppetModule struct{ entity.Entity }

func NewPuppetModule(cfg *config.Server, values entity.Values) (*PuppetModule, error) {
	p := &PuppetModule{}
	schema := fields.Fields{
		"author":       fields.String(),
		"checksums":    fields.List(),
		"dependencies": fields.List(),
		"description":  fields.String(),
		"license":      fields.String(),
		"name":         fields.String(),
		"project_page": fields.URL(),
		"repository":   fields.OneToMany(ref(NewRepository)),
		"source":       fields.URL(),
		"summary":      fields.String(),
		"version":      fields.String(),
	}
	meta := entity.Meta{
		Name:        "PuppetModule",
		APIPath:     "katello/api/v2/puppet_modules",
		ServerModes: modesSat,
		Supports:    entity.OpRead | entity.OpSearch,
	}
	if err := entity.Init(&p.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PuppetModule) Spawn() entity.Resource {
	s, _ := NewPuppetModule(p.Config(), nil)
	return s
}

// Repository is a katello repository.
type Repository struct{ entity.Entity }

func NewRepository(cfg *config.Server, values entity.Values) (*Repository, error) {
	r := &Repository{}
	schema := fields.Fields{
		"checksum_type":        fields.String(fields.Choices("sha1", "sha256")),
		"content_type":         fields.String(fields.Required, fields.Default("yum"), fields.Choices("docker", "puppet", "yum")),
		"docker_upstream_name": fields.String(fields.Default("busybox")),
		"gpg_key":              fields.OneToOne(ref(NewGPGKey)),
		"label":                fields.String(),
		"name":                 fields.String(fields.Required),
		"product":              fields.OneToOne(ref(NewProduct), fields.Required),
		"unprotected":          fields.Boolean(),
		"url":                  fields.URL(fields.Required, fields.Default(defaultYumRepoURL)),
	}
	if !cfg.AtLeast("6.1") {
		delete(schema, "checksum_type")
		delete(schema, "docker_upstream_name")
		schema["content_type"] = fields.String(fields.Required, fields.Default("yum"), fields.Choices("puppet", "yum"))
	}
	meta := entity.Meta{
		Name:        "Repository",
		APIPath:     "katello/api/v2/repositories",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&r.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) Spawn() entity.Resource {
	s, _ := NewRepository(r.Config(), nil)
	return s
}

func (r *Repository) Path(which string) (string, error) {
	switch which {
	case "sync", "upload_content":
		self, err := r.Entity.Path("self")
		if err != nil {
			return "", err
		}
		return self + "/" + which, nil
	}
	return r.Entity.Path(which)
}

// FillMissing also sets the upstream name for docker repositories,
// which the server requires.
func (r *Repository) FillMissing(ctx context.Context) error {
	if err := entity.FillMissing(ctx, r); err != nil {
		return err
	}
	ct, _ := r.Get("content_type")
	if ct != "docker" {
		return nil
	}
	if _, ok := r.Get("docker_upstream_name"); ok {
		return nil
	}
	return r.Set("docker_upstream_name", "busybox")
}

// Sync synchronizes the repository from its upstream URL.
func (r *Repository) Sync(ctx context.Context, synchronous bool) (map[string]any, error) {
	path, err := r.Path("sync")
	if err != nil {
		return nil, err
	}
	resp, err := r.HTTP().Post(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, r, resp, synchronous)
}

// UploadContent uploads a package file into the repository.
func (r *Repository) UploadContent(ctx context.Context, fileName string, content io.Reader) (map[string]any, error) {
	path, err := r.Path("upload_content")
	if err != nil {
		return nil, err
	}
	resp, err := r.HTTP().PostMultipart(ctx, path, nil, "content", fileName, content)
	if err != nil {
		return nil, err
	}
	doc, err := entity.HandleResponse(ctx, r, resp, true)
	if err != nil {
		return nil, err
	}
	if doc["status"] != "success" {
		return nil, &entity.APIResponseError{
			Message: fmt.Sprintf("content upload failed: %v", doc),
		}
	}
	return doc, nil
}

// FetchRepositoryID looks up a repository by organization and name.
func FetchRepositoryID(ctx context.Context, cfg *config.Server, organizationID any, name string) (any, error) {
	r, err := NewRepository(cfg, nil)
	if err != nil {
		return nil, err
	}
	base, err := r.Path("base")
	if err != nil {
		return nil, err
	}
	results, err := getResults(ctx, r.HTTP(), base, map[string]any{
		"organization_id": organizationID,
		"name":            name,
	})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, &entity.APIResponseError{
			Message: fmt.Sprintf("expected one repository named %q, got %d", name, len(results)),
		}
	}
	return results[0]["id"], nil
}

// Subscription is a katello subscription.
type Subscription struct{ entity.Entity }

func NewSubscription(cfg *config.Server, values entity.Values) (*Subscription, error) {
	s := &Subscription{}
	schema := fields.Fields{
		"activation_key": fields.OneToOne(ref(NewActivationKey)),
		"pool_uuid":      fields.String(),
		"quantity":       fields.Integer(),
		"subscriptions":  fields.OneToMany(ref(NewSubscription)),
		"system":         fields.OneToOne(ref(NewSystem)),
	}
	meta := entity.Meta{
		Name:        "Subscription",
		APIPath:     "katello/api/v2/subscriptions",
		ServerModes: modesSatSam,
	}
	if err := entity.Init(&s.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subscription) Spawn() entity.Resource {
	sp, _ := NewSubscription(s.Config(), nil)
	return sp
}

func syncPlanSchema() fields.Fields {
	return fields.Fields{
		"description":  fields.String(),
		"enabled":      fields.Boolean(fields.Required),
		"interval":     fields.String(fields.Required, fields.Choices("hourly", "daily", "weekly")),
		"name":         fields.String(fields.Required),
		"organization": fields.OneToOne(ref(NewOrganization), fields.Required),
		"sync_date":    fields.DateTime(fields.Required),
	}
}

// SyncPlan schedules repository synchronization for an organization's
// products. The organization value is required at construction time
// because it determines the plan's URL.
type SyncPlan struct {
	entity.Entity
	parent any
}

func NewSyncPlan(cfg *config.Server, values entity.Values) (*SyncPlan, error) {
	if err := requireParent("SyncPlan", "organization", values); err != nil {
		return nil, err
	}
	p := &SyncPlan{parent: values["organization"]}
	org, err := NewOrganization(cfg, entity.Values{"id": values["organization"]})
	if err != nil {
		return nil, err
	}
	orgPath, err := org.Path("self")
	if err != nil {
		return nil, err
	}
	meta := entity.Meta{
		Name:        "SyncPlan",
		APIPath:     orgPath + "/sync_plans",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		ReadIgnore:  []string{"organization"},
	}
	if err := entity.Init(&p.Entity, cfg, syncPlanSchema(), meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

// newSyncPlanRef builds a sync plan without a known organization. It
// backs the sync_plan relation on Product, where the server returns
// only the plan's id.
func newSyncPlanRef(cfg *config.Server, values entity.Values) (*SyncPlan, error) {
	p := &SyncPlan{}
	meta := entity.Meta{
		Name:        "SyncPlan",
		APIPath:     "katello/api/v2/sync_plans",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&p.Entity, cfg, syncPlanSchema(), meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SyncPlan) Spawn() entity.Resource {
	if p.parent == nil {
		s, _ := newSyncPlanRef(p.Config(), nil)
		return s
	}
	s, _ := NewSyncPlan(p.Config(), entity.Values{"organization": p.parent})
	return s
}

func (p *SyncPlan) Path(which string) (string, error) {
	switch which {
	case "add_products", "remove_products":
		self, err := p.Entity.Path("self")
		if err != nil {
			return "", err
		}
		return self + "/" + which, nil
	}
	return p.Entity.Path(which)
}

func (p *SyncPlan) setProducts(ctx context.Context, which string, productIDs []int, synchronous bool) (map[string]any, error) {
	path, err := p.Path(which)
	if err != nil {
		return nil, err
	}
	resp, err := p.HTTP().Put(ctx, path, map[string]any{"product_ids": productIDs})
	if err != nil {
		return nil, err
	}
	return entity.HandleResponse(ctx, p, resp, synchronous)
}

// AddProducts puts products on the sync plan's schedule.
func (p *SyncPlan) AddProducts(ctx context.Context, productIDs []int, synchronous bool) (map[string]any, error) {
	return p.setProducts(ctx, "add_products", productIDs, synchronous)
}

// RemoveProducts takes products off the sync plan's schedule.
func (p *SyncPlan) RemoveProducts(ctx context.Context, productIDs []int, synchronous bool) (map[string]any, error) {
	return p.setProducts(ctx, "remove_products", productIDs, synchronous)
}
