package admin

import (
	"context"

	"github.com/deepgate/deepgate/internal/store"
)

// fakeRepo is a minimal in-memory store.Repository for admin handler tests.
type fakeRepo struct {
	providers  map[string]store.Provider
	models     map[string]store.Model
	composites map[string]store.Composite
	settings   map[string]store.Setting

	nextID       int
	deleteErr    error // if set, every Delete* call returns this
	createErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		providers:  make(map[string]store.Provider),
		models:     make(map[string]store.Model),
		composites: make(map[string]store.Composite),
		settings:   make(map[string]store.Setting),
	}
}

func (f *fakeRepo) genID() string {
	f.nextID++
	return string(rune('a' + f.nextID))
}

func (f *fakeRepo) GetProvider(ctx context.Context, id string) (*store.Provider, error) {
	if p, ok := f.providers[id]; ok {
		return &p, nil
	}
	return nil, store.ErrNotFound
}
func (f *fakeRepo) ListProviders(ctx context.Context) ([]store.Provider, error) {
	out := make([]store.Provider, 0, len(f.providers))
	for _, p := range f.providers {
		out = append(out, p)
	}
	return out, nil
}
func (f *fakeRepo) CreateProvider(ctx context.Context, p store.Provider) (*store.Provider, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if p.ID == "" {
		p.ID = f.genID()
	}
	f.providers[p.ID] = p
	return &p, nil
}
func (f *fakeRepo) UpdateProvider(ctx context.Context, p store.Provider) (*store.Provider, error) {
	if _, ok := f.providers[p.ID]; !ok {
		return nil, store.ErrNotFound
	}
	f.providers[p.ID] = p
	return &p, nil
}
func (f *fakeRepo) DeleteProvider(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.providers, id)
	return nil
}

func (f *fakeRepo) GetModel(ctx context.Context, id string) (*store.Model, error) {
	if m, ok := f.models[id]; ok {
		return &m, nil
	}
	return nil, store.ErrNotFound
}
func (f *fakeRepo) GetModelByName(ctx context.Context, name string) (*store.Model, error) {
	for _, m := range f.models {
		if m.Name == name {
			return &m, nil
		}
	}
	return nil, store.ErrNotFound
}
func (f *fakeRepo) ListModels(ctx context.Context) ([]store.Model, error) {
	out := make([]store.Model, 0, len(f.models))
	for _, m := range f.models {
		out = append(out, m)
	}
	return out, nil
}
func (f *fakeRepo) CreateModel(ctx context.Context, m store.Model) (*store.Model, error) {
	if m.ID == "" {
		m.ID = f.genID()
	}
	f.models[m.ID] = m
	return &m, nil
}
func (f *fakeRepo) UpdateModel(ctx context.Context, m store.Model) (*store.Model, error) {
	f.models[m.ID] = m
	return &m, nil
}
func (f *fakeRepo) DeleteModel(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.models, id)
	return nil
}

func (f *fakeRepo) GetComposite(ctx context.Context, id string) (*store.Composite, error) {
	if c, ok := f.composites[id]; ok {
		return &c, nil
	}
	return nil, store.ErrNotFound
}
func (f *fakeRepo) GetCompositeByName(ctx context.Context, name string) (*store.Composite, error) {
	for _, c := range f.composites {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}
func (f *fakeRepo) ListComposites(ctx context.Context) ([]store.Composite, error) {
	out := make([]store.Composite, 0, len(f.composites))
	for _, c := range f.composites {
		out = append(out, c)
	}
	return out, nil
}
func (f *fakeRepo) CreateComposite(ctx context.Context, c store.Composite) (*store.Composite, error) {
	if c.ID == "" {
		c.ID = f.genID()
	}
	f.composites[c.ID] = c
	return &c, nil
}
func (f *fakeRepo) UpdateComposite(ctx context.Context, c store.Composite) (*store.Composite, error) {
	f.composites[c.ID] = c
	return &c, nil
}
func (f *fakeRepo) DeleteComposite(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.composites, id)
	return nil
}

func (f *fakeRepo) GetSetting(ctx context.Context, key string) (*store.Setting, error) {
	if s, ok := f.settings[key]; ok {
		return &s, nil
	}
	return nil, store.ErrNotFound
}
func (f *fakeRepo) ListSettings(ctx context.Context) ([]store.Setting, error) {
	out := make([]store.Setting, 0, len(f.settings))
	for _, s := range f.settings {
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeRepo) PutSetting(ctx context.Context, s store.Setting) error {
	f.settings[s.Key] = s
	return nil
}

var _ store.Repository = (*fakeRepo)(nil)
