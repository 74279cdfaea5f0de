package entities

import (
	"context"

	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/entity"
	"github.com/piwi3910/gosatellite/fields"
)

// AuthSourceLDAP is an LDAP authentication source.
type AuthSourceLDAP struct{ entity.Entity }

func NewAuthSourceLDAP(cfg *config.Server, values entity.Values) (*AuthSourceLDAP, error) {
	a := &AuthSourceLDAP{}
	schema := fields.Fields{
		"account":           fields.String(),
		"attr_photo":        fields.String(),
		"base_dn":           fields.String(),
		"host":              fields.String(fields.Required, fields.Len(1, 60)),
		"name":              fields.String(fields.Required, fields.Len(1, 60)),
		"onthefly_register": fields.Boolean(),
		"port":              fields.Integer(),
		"tls":               fields.Boolean(),

		// Only meaningful when onthefly_register is true.
		"account_password": fields.String(),
		"attr_firstname":   fields.String(),
		"attr_lastname":    fields.String(),
		"attr_login":       fields.String(),
		"attr_mail":        fields.Email(),
	}
	meta := entity.Meta{
		Name:        "AuthSourceLDAP",
		APIPath:     "api/v2/auth_source_ldaps",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		ReadIgnore:  []string{"account_password"},
	}
	if err := entity.Init(&a.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AuthSourceLDAP) Spawn() entity.Resource {
	s, _ := NewAuthSourceLDAP(a.Config(), nil)
	return s
}

// FillMissing also populates the on-the-fly registration attributes
// when onthefly_register is enabled, since the server then requires
// them.
func (a *AuthSourceLDAP) FillMissing(ctx context.Context) error {
	if err := entity.FillMissing(ctx, a); err != nil {
		return err
	}
	if onthefly, _ := a.Get("onthefly_register"); onthefly != true {
		return nil
	}
	schema := a.Fields()
	for _, name := range []string{
		"account_password",
		"attr_firstname",
		"attr_lastname",
		"attr_login",
		"attr_mail",
	} {
		if _, ok := a.Get(name); ok {
			continue
		}
		if err := a.Set(name, schema[name].Generate()); err != nil {
			return err
		}
	}
	return nil
}

// Bookmark is a saved search.
type Bookmark struct{ entity.Entity }

func NewBookmark(cfg *config.Server, values entity.Values) (*Bookmark, error) {
	b := &Bookmark{}
	schema := fields.Fields{
		"controller": fields.String(fields.Required),
		"name":       fields.String(fields.Required),
		"public":     fields.Boolean(),
		"query":      fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:        "Bookmark",
		APIPath:     "api/v2/bookmarks",
		ServerModes: modesSat,
	}
	if err := entity.Init(&b.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bookmark) Spawn() entity.Resource {
	s, _ := NewBookmark(b.Config(), nil)
	return s
}

// CommonParameter is a global parameter.
type CommonParameter struct{ entity.Entity }

func NewCommonParameter(cfg *config.Server, values entity.Values) (*CommonParameter, error) {
	c := &CommonParameter{}
	schema := fields.Fields{
		"name":  fields.String(fields.Required),
		"value": fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:        "CommonParameter",
		APIPath:     "api/v2/common_parameters",
		ServerModes: modesSat,
	}
	if err := entity.Init(&c.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CommonParameter) Spawn() entity.Resource {
	s, _ := NewCommonParameter(c.Config(), nil)
	return s
}

// Filter scopes a role to a set of permissions.
type Filter struct{ entity.Entity }

func NewFilter(cfg *config.Server, values entity.Values) (*Filter, error) {
	f := &Filter{}
	schema := fields.Fields{
		"location":     fields.OneToMany(ref(NewLocation)),
		"organization": fields.OneToMany(ref(NewOrganization)),
		"permission":   fields.OneToMany(ref(NewPermission)),
		"role":         fields.OneToOne(ref(NewRole), fields.Required),
		"search":       fields.String(),
	}
	meta := entity.Meta{
		Name:        "Filter",
		APIPath:     "api/v2/filters",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&f.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Filter) Spawn() entity.Resource {
	s, _ := NewFilter(f.Config(), nil)
	return s
}

// Location is a Foreman location.
type Location struct{ entity.Entity }

func NewLocation(cfg *config.Server, values entity.Values) (*Location, error) {
	l := &Location{}
	schema := fields.Fields{
		"compute_resource": fields.OneToMany(ref(NewComputeResource)),
		"config_template":  fields.OneToMany(ref(NewConfigTemplate)),
		"description":      fields.String(),
		"domain":           fields.OneToMany(ref(NewDomain)),
		"environment":      fields.OneToMany(ref(NewEnvironment)),
		"hostgroup":        fields.OneToMany(ref(NewHostGroup)),
		"media":            fields.OneToMany(ref(NewMedia)),
		"name":             fields.String(fields.Required),
		"organization":     fields.OneToMany(ref(NewOrganization)),
		"smart_proxy":      fields.OneToMany(ref(NewSmartProxy)),
		"subnet":           fields.OneToMany(ref(NewSubnet)),
		"user":             fields.OneToMany(ref(NewUser)),
	}
	meta := entity.Meta{
		Name:           "Location",
		APIPath:        "api/v2/locations",
		ServerModes:    modesSat,
		Supports:       entity.OpCreate | entity.OpRead | entity.OpDelete,
		WrapKey:        "location",
		CreateReadBack: true,
	}
	if err := entity.Init(&l.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Location) Spawn() entity.Resource {
	s, _ := NewLocation(l.Config(), nil)
	return s
}

// Permission names one thing a role may do to one resource type.
// Permissions are defined by the server and cannot be created.
type Permission struct{ entity.Entity }

func NewPermission(cfg *config.Server, values entity.Values) (*Permission, error) {
	p := &Permission{}
	schema := fields.Fields{
		"name":          fields.String(fields.Required),
		"resource_type": fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:        "Permission",
		APIPath:     "api/v2/permissions",
		ServerModes: modesSatSam,
		Supports:    entity.OpRead,
	}
	if err := entity.Init(&p.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Permission) Spawn() entity.Resource {
	s, _ := NewPermission(p.Config(), nil)
	return s
}

// Search looks up permissions by whichever of name and resource_type
// are set, returning the raw result rows. The permissions endpoint
// ignores name when resource_type is given.
func (p *Permission) Search(ctx context.Context, perPage int) ([]map[string]any, error) {
	query := map[string]any{"per_page": perPage}
	if name, ok := p.Get("name"); ok {
		query["name"] = name
	}
	if rt, ok := p.Get("resource_type"); ok {
		query["resource_type"] = rt
	}
	path, err := p.Path("base")
	if err != nil {
		return nil, err
	}
	return getResults(ctx, p.HTTP(), path, query)
}

// Role is a collection of permissions.
type Role struct{ entity.Entity }

func NewRole(cfg *config.Server, values entity.Values) (*Role, error) {
	r := &Role{}
	schema := fields.Fields{
		"name": fields.String(fields.Required, fields.Len(2, 30), fields.Sets(fields.Alphanumeric)),
	}
	meta := entity.Meta{
		Name:        "Role",
		APIPath:     "api/v2/roles",
		ServerModes: modesSatSam,
		Supports:    entity.OpsCRUDS,
	}
	if err := entity.Init(&r.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Role) Spawn() entity.Resource {
	s, _ := NewRole(r.Config(), nil)
	return s
}

// RoleLDAPGroups maps LDAP groups onto a role.
type RoleLDAPGroups struct{ entity.Entity }

func NewRoleLDAPGroups(cfg *config.Server, values entity.Values) (*RoleLDAPGroups, error) {
	r := &RoleLDAPGroups{}
	schema := fields.Fields{
		"name": fields.String(fields.Required),
	}
	meta := entity.Meta{
		Name:        "RoleLDAPGroups",
		APIPath:     "katello/api/v2/roles/:role_id/ldap_groups",
		ServerModes: modesSatSam,
	}
	if err := entity.Init(&r.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RoleLDAPGroups) Spawn() entity.Resource {
	s, _ := NewRoleLDAPGroups(r.Config(), nil)
	return s
}

// User is a Foreman user account.
//
// The LDAP authentication source with ID 1 is internal and nearly
// guaranteed to exist, so auth_source defaults to it. Using internal
// authentication is much easier than standing up an LDAP server for
// each new user.
type User struct{ entity.Entity }

func NewUser(cfg *config.Server, values entity.Values) (*User, error) {
	u := &User{}
	internalAuth, err := NewAuthSourceLDAP(cfg, entity.Values{"id": 1})
	if err != nil {
		return nil, err
	}
	schema := fields.Fields{
		"admin":                fields.Boolean(),
		"auth_source":          fields.OneToOne(ref(NewAuthSourceLDAP), fields.Required, fields.Default(internalAuth)),
		"default_location":     fields.OneToOne(ref(NewLocation)),
		"default_organization": fields.OneToOne(ref(NewOrganization)),
		"firstname":            fields.String(fields.Len(1, 50)),
		"lastname":             fields.String(fields.Len(1, 50)),
		"location":             fields.OneToMany(ref(NewLocation)),
		"login": fields.String(fields.Required, fields.Len(1, 100),
			fields.Sets(fields.Alpha, fields.Alphanumeric, fields.CJK, fields.Latin1, fields.UTF8)),
		"mail":         fields.Email(fields.Required),
		"organization": fields.OneToMany(ref(NewOrganization)),
		"password":     fields.String(fields.Required),
		"role":         fields.OneToMany(ref(NewRole)),
	}
	meta := entity.Meta{
		Name:        "User",
		APIPath:     "api/v2/users",
		ServerModes: modesSatSam,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "user",
		ReadIgnore:  []string{"password"},
	}
	if err := entity.Init(&u.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) Spawn() entity.Resource {
	s, _ := NewUser(u.Config(), nil)
	return s
}

// UserGroup is a group of user accounts.
type UserGroup struct{ entity.Entity }

func NewUserGroup(cfg *config.Server, values entity.Values) (*UserGroup, error) {
	g := &UserGroup{}
	schema := fields.Fields{
		"admin":     fields.Boolean(),
		"name":      fields.String(fields.Required),
		"role":      fields.OneToMany(ref(NewRole)),
		"user":      fields.OneToMany(ref(NewUser), fields.Required),
		"usergroup": fields.OneToMany(ref(NewUserGroup)),
	}
	meta := entity.Meta{
		Name:        "UserGroup",
		APIPath:     "api/v2/usergroups",
		ServerModes: modesSat,
		Supports:    entity.OpsCRUDS,
		WrapKey:     "usergroup",
	}
	if err := entity.Init(&g.Entity, cfg, schema, meta, values); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *UserGroup) Spawn() entity.Resource {
	s, _ := NewUserGroup(g.Config(), nil)
	return s
}

// FixReadAttrs fetches the admin flag separately: a plain GET of a
// user group does not return it, but an empty PUT does.
func (g *UserGroup) FixReadAttrs(ctx context.Context, attrs map[string]any) error {
	if _, ok := attrs["admin"]; ok {
		return nil
	}
	path, err := g.Path("self")
	if err != nil {
		return err
	}
	resp, err := g.HTTP().Put(ctx, path, map[string]any{})
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
	attrs["admin"] = body["admin"]
	return nil
}
