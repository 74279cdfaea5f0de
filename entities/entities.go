// Package entities defines one type per Foreman and Katello API
// resource. Each type embeds entity.Entity, describes itself with a
// field schema and a Meta, and is operated on with the generic
// functions in the entity package:
//
//	org, err := entities.NewOrganization(cfg, entity.Values{"name": "Engineering"})
//	if err != nil {
//		return err
//	}
//	org, err = entity.Create(ctx, org)
//
// Types whose collection lives under a parent resource, such as
// SyncPlan under Organization, require the parent to be passed in at
// construction.
package entities

import (
	"context"
	"fmt"

	"github.com/piwi3910/gosatellite/client"
	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/entity"
	"github.com/piwi3910/gosatellite/fields"
)

// MissingParentError reports construction of a parent-scoped entity
// without its parent.
type MissingParentError struct {
	// Entity needs the parent; Field names it.
	Entity string
	Field  string
}

func (e *MissingParentError) Error() string {
	return fmt.Sprintf("%s requires a value for %q", e.Entity, e.Field)
}

// ref adapts an entity constructor into the factory form foreign key
// descriptors carry.
func ref[R entity.Resource](ctor func(*config.Server, entity.Values) (R, error)) fields.Factory {
	return func(cfg *config.Server, values map[string]any) (any, error) {
		return ctor(cfg, values)
	}
}

// resourceID extracts the id from a related resource.
func resourceID(r entity.Resource) (any, error) {
	ided, ok := r.(interface{ RawID() (any, bool) })
	if !ok {
		return nil, fmt.Errorf("resource %T has no id accessor", r)
	}
	id, ok := ided.RawID()
	if !ok {
		return nil, fmt.Errorf("resource %T has no id set", r)
	}
	return id, nil
}

func requireParent(name, field string, values entity.Values) error {
	if _, ok := values[field]; !ok {
		return &MissingParentError{Entity: name, Field: field}
	}
	return nil
}

// operatingSystemFamilies lists the OS families the server knows.
var operatingSystemFamilies = []any{
	"AIX",
	"Archlinux",
	"Debian",
	"Freebsd",
	"Gentoo",
	"Redhat",
	"Solaris",
	"Suse",
	"Windows",
}

// defaultYumRepoURL is a small public repository usable as a default
// when a repository URL must be filled in.
const defaultYumRepoURL = "http://inecas.fedorapeople.org/fakerepos/zoo3/"

// The server ships with exactly this many template kinds.
const templateKindsCreatedByDefault = 8

var (
	modesSat    = []string{"sat"}
	modesSatSam = []string{"sat", "sam"}
)

// getResults issues a GET with a JSON query document and returns the
// rows under "results".
func getResults(ctx context.Context, cl *client.Client, url string, query map[string]any) ([]map[string]any, error) {
	resp, err := cl.Do(ctx, "GET", url, query, nil)
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
