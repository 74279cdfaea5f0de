package entities

import (
	"context"
	"fmt"

	"github.com/piwi3910/gosatellite/config"
	"github.com/piwi3910/gosatellite/entity"
	"github.com/piwi3910/gosatellite/fields"
)

// ForemanTask is an asynchronous task on the server. Tasks are
// created by the server as a side effect of other operations.
type ForemanTask struct{ entity.Entity }

func NewForemanTask(cfg *config.Server, values entity.Values) (*ForemanTask, error) {
	t := &ForemanTask{}
	meta := entity.Meta{
		Name:        "ForemanTask",
		APIPath:     "foreman_tasks/api/tasks",
		ServerModes: modesSat,
		Supports:    entity.OpRead,
	}
	if err := entity.Init(&t.Entity, cfg, fields.Fields{}, meta, values); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *ForemanTask) Spawn() entity.Resource {
	s, _ := NewForemanTask(t.Config(), nil)
	return s
}

func (t *ForemanTask) Path(which string) (string, error) {
	if which == "bulk_search" {
		base, err := t.Entity.Path("base")
		if err != nil {
			return "", err
		}
		return base + "/bulk_search", nil
	}
	return t.Entity.Path(which)
}

// Poll waits for the task to reach a terminal state.
func (t *ForemanTask) Poll(ctx context.Context, opts entity.PollOptions) (map[string]any, error) {
	id, ok := t.RawID()
	if !ok {
		return nil, &entity.MissingValueError{Entity: "ForemanTask", Field: "id"}
	}
	return entity.PollTask(ctx, t.Config(), fmt.Sprintf("%v", id), opts)
}
