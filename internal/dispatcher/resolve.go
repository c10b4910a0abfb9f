package dispatcher

import (
	"context"
	"fmt"

	"github.com/deepgate/deepgate/internal/apierr"
	"github.com/deepgate/deepgate/internal/store"
)

// resolved carries exactly one of model or composite, depending on which
// namespace req.Model resolved into.
type resolved struct {
	model     *store.Model
	composite *store.Composite
}

// resolveModel implements spec.md §4.4 step 2: providers, models, and
// composites share one name namespace. model_type disambiguates when
// given; otherwise a model is tried before a composite.
func (d *Dispatcher) resolveModel(ctx context.Context, name, modelType string) (*resolved, error) {
	switch modelType {
	case "":
		if m, err := d.repo.GetModelByName(ctx, name); err == nil {
			return checkModel(m)
		} else if err != store.ErrNotFound {
			return nil, apierr.Wrap(500, err)
		}
		if c, err := d.repo.GetCompositeByName(ctx, name); err == nil {
			return checkComposite(c)
		} else if err != store.ErrNotFound {
			return nil, apierr.Wrap(500, err)
		}
		return nil, apierr.New(400, fmt.Sprintf("unknown model %q", name))

	case "reasoner", "general":
		m, err := d.repo.GetModelByName(ctx, name)
		if err == store.ErrNotFound {
			return nil, apierr.New(400, fmt.Sprintf("unknown model %q", name))
		} else if err != nil {
			return nil, apierr.Wrap(500, err)
		}
		if string(m.Type) != modelType {
			return nil, apierr.New(400, fmt.Sprintf("model %q is not type %q", name, modelType))
		}
		return checkModel(m)

	case "composite":
		c, err := d.repo.GetCompositeByName(ctx, name)
		if err == store.ErrNotFound {
			return nil, apierr.New(400, fmt.Sprintf("unknown composite model %q", name))
		} else if err != nil {
			return nil, apierr.Wrap(500, err)
		}
		return checkComposite(c)

	default:
		return nil, apierr.New(400, fmt.Sprintf("invalid model_type %q", modelType))
	}
}

func checkModel(m *store.Model) (*resolved, error) {
	if !m.Valid {
		return nil, apierr.New(400, fmt.Sprintf("model %q is disabled", m.Name))
	}
	return &resolved{model: m}, nil
}

func checkComposite(c *store.Composite) (*resolved, error) {
	if !c.Valid {
		return nil, apierr.New(400, fmt.Sprintf("composite model %q is disabled", c.Name))
	}
	return &resolved{composite: c}, nil
}
