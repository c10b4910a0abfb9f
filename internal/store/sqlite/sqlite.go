// Package sqlite is the concrete store.Repository backed by modernc.org's
// pure-Go SQLite driver, goqu for query building, and goose for schema
// migrations — the same stack the rest of the example pack reaches for when
// it needs a small embedded keyed store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/deepgate/deepgate/internal/store"
)

// SQLite is a store.Repository over a single SQLite database file.
type SQLite struct {
	db   *sql.DB
	goqu *goqu.Database

	providers exp.IdentifierExpression
	models    exp.IdentifierExpression
	composite exp.IdentifierExpression
	settings  exp.IdentifierExpression
}

// Open runs pending migrations and connects to datasource (a SQLite DSN,
// e.g. "file:deepgate.db?_pragma=foreign_keys(1)").
func Open(ctx context.Context, datasource string) (*SQLite, error) {
	db, err := sql.Open("sqlite", datasource)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// SQLite is single-writer; a busy app under concurrent admin writes
	// would otherwise see SQLITE_BUSY rather than serializing.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{
		db:        db,
		goqu:      goqu.New("sqlite3", db),
		providers: goqu.T("providers"),
		models:    goqu.T("models"),
		composite: goqu.T("composite_models"),
		settings:  goqu.T("system_settings"),
	}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func newID() string {
	return ulid.Make().String()
}

// nameTaken checks the shared provider/model/composite namespace (spec.md
// §3: "Names of models, composites, and providers share a single
// user-facing namespace"). excludeID lets an update skip its own row.
func (s *SQLite) nameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	for _, table := range []exp.IdentifierExpression{s.providers, s.models, s.composite} {
		ds := s.goqu.From(table).Select("id").Where(goqu.I("name").Eq(name))
		if excludeID != "" {
			ds = ds.Where(goqu.I("id").Neq(excludeID))
		}
		query, _, err := ds.ToSQL()
		if err != nil {
			return false, err
		}
		var id string
		err = s.db.QueryRowContext(ctx, query).Scan(&id)
		if err == nil {
			return true, nil
		}
		if err != sql.ErrNoRows {
			return false, err
		}
	}
	return false, nil
}

// ─── Providers ───

func (s *SQLite) GetProvider(ctx context.Context, id string) (*store.Provider, error) {
	query, _, err := s.goqu.From(s.providers).
		Select("id", "name", "api_key", "base_url", "request_path", "format", "proxy_enabled", "valid").
		Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, err
	}
	return scanProvider(s.db.QueryRowContext(ctx, query))
}

func (s *SQLite) ListProviders(ctx context.Context) ([]store.Provider, error) {
	query, _, err := s.goqu.From(s.providers).
		Select("id", "name", "api_key", "base_url", "request_path", "format", "proxy_enabled", "valid").
		Order(goqu.I("name").Asc()).ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []store.Provider
	for rows.Next() {
		var p store.Provider
		var proxyEnabled, valid int
		if err := rows.Scan(&p.ID, &p.Name, &p.APIKey, &p.BaseURL, &p.RequestPath, &p.Format, &proxyEnabled, &valid); err != nil {
			return nil, err
		}
		p.ProxyEnabled = proxyEnabled != 0
		p.Valid = valid != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateProvider(ctx context.Context, p store.Provider) (*store.Provider, error) {
	taken, err := s.nameTaken(ctx, p.Name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, store.ErrConflict
	}

	p.ID = newID()
	query, _, err := s.goqu.Insert(s.providers).Rows(goqu.Record{
		"id": p.ID, "name": p.Name, "api_key": p.APIKey, "base_url": p.BaseURL,
		"request_path": p.RequestPath, "format": p.Format,
		"proxy_enabled": boolToInt(p.ProxyEnabled), "valid": boolToInt(p.Valid),
	}).ToSQL()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create provider %q: %w", p.Name, err)
	}
	return &p, nil
}

func (s *SQLite) UpdateProvider(ctx context.Context, p store.Provider) (*store.Provider, error) {
	taken, err := s.nameTaken(ctx, p.Name, p.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, store.ErrConflict
	}

	query, _, err := s.goqu.Update(s.providers).Set(goqu.Record{
		"name": p.Name, "api_key": p.APIKey, "base_url": p.BaseURL,
		"request_path": p.RequestPath, "format": p.Format,
		"proxy_enabled": boolToInt(p.ProxyEnabled), "valid": boolToInt(p.Valid),
	}).Where(goqu.I("id").Eq(p.ID)).ToSQL()
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("update provider %q: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProvider(ctx, p.ID)
}

func (s *SQLite) DeleteProvider(ctx context.Context, id string) error {
	query, _, err := s.goqu.From(s.models).Select("id").Where(goqu.I("provider_id").Eq(id)).Limit(1).ToSQL()
	if err != nil {
		return err
	}
	var dependentID string
	if err := s.db.QueryRowContext(ctx, query).Scan(&dependentID); err == nil {
		return store.ErrReferenced
	} else if err != sql.ErrNoRows {
		return err
	}

	del, _, err := s.goqu.Delete(s.providers).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, del)
	if err != nil {
		return fmt.Errorf("delete provider %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanProvider(row *sql.Row) (*store.Provider, error) {
	var p store.Provider
	var proxyEnabled, valid int
	err := row.Scan(&p.ID, &p.Name, &p.APIKey, &p.BaseURL, &p.RequestPath, &p.Format, &proxyEnabled, &valid)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ProxyEnabled = proxyEnabled != 0
	p.Valid = valid != 0
	return &p, nil
}

// ─── Models ───

func (s *SQLite) modelSelect() *goqu.SelectDataset {
	return s.goqu.From(s.models).
		Select("id", "name", "model_id", "provider_id", "type", "format", "origin_reasoning", "origin_output", "valid")
}

func scanModel(row *sql.Row) (*store.Model, error) {
	var m store.Model
	var originReasoning, originOutput, valid int
	err := row.Scan(&m.ID, &m.Name, &m.ModelID, &m.ProviderID, &m.Type, &m.Format, &originReasoning, &originOutput, &valid)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.OriginReasoning = originReasoning != 0
	m.OriginOutput = originOutput != 0
	m.Valid = valid != 0
	return &m, nil
}

func (s *SQLite) GetModel(ctx context.Context, id string) (*store.Model, error) {
	query, _, err := s.modelSelect().Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, err
	}
	return scanModel(s.db.QueryRowContext(ctx, query))
}

func (s *SQLite) GetModelByName(ctx context.Context, name string) (*store.Model, error) {
	query, _, err := s.modelSelect().Where(goqu.I("name").Eq(name)).ToSQL()
	if err != nil {
		return nil, err
	}
	return scanModel(s.db.QueryRowContext(ctx, query))
}

func (s *SQLite) ListModels(ctx context.Context) ([]store.Model, error) {
	query, _, err := s.modelSelect().Order(goqu.I("name").Asc()).ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var out []store.Model
	for rows.Next() {
		var m store.Model
		var originReasoning, originOutput, valid int
		if err := rows.Scan(&m.ID, &m.Name, &m.ModelID, &m.ProviderID, &m.Type, &m.Format, &originReasoning, &originOutput, &valid); err != nil {
			return nil, err
		}
		m.OriginReasoning = originReasoning != 0
		m.OriginOutput = originOutput != 0
		m.Valid = valid != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateModel(ctx context.Context, m store.Model) (*store.Model, error) {
	taken, err := s.nameTaken(ctx, m.Name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, store.ErrConflict
	}

	m.ID = newID()
	query, _, err := s.goqu.Insert(s.models).Rows(goqu.Record{
		"id": m.ID, "name": m.Name, "model_id": m.ModelID, "provider_id": m.ProviderID,
		"type": m.Type, "format": m.Format,
		"origin_reasoning": boolToInt(m.OriginReasoning), "origin_output": boolToInt(m.OriginOutput),
		"valid": boolToInt(m.Valid),
	}).ToSQL()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create model %q: %w", m.Name, err)
	}
	return &m, nil
}

func (s *SQLite) UpdateModel(ctx context.Context, m store.Model) (*store.Model, error) {
	taken, err := s.nameTaken(ctx, m.Name, m.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, store.ErrConflict
	}

	query, _, err := s.goqu.Update(s.models).Set(goqu.Record{
		"name": m.Name, "model_id": m.ModelID, "provider_id": m.ProviderID,
		"type": m.Type, "format": m.Format,
		"origin_reasoning": boolToInt(m.OriginReasoning), "origin_output": boolToInt(m.OriginOutput),
		"valid": boolToInt(m.Valid),
	}).Where(goqu.I("id").Eq(m.ID)).ToSQL()
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("update model %q: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetModel(ctx, m.ID)
}

func (s *SQLite) DeleteModel(ctx context.Context, id string) error {
	query, _, err := s.goqu.From(s.composite).Select("id").
		Where(goqu.Or(goqu.I("reasoner_model_id").Eq(id), goqu.I("general_model_id").Eq(id))).
		Limit(1).ToSQL()
	if err != nil {
		return err
	}
	var dependentID string
	if err := s.db.QueryRowContext(ctx, query).Scan(&dependentID); err == nil {
		return store.ErrReferenced
	} else if err != sql.ErrNoRows {
		return err
	}

	del, _, err := s.goqu.Delete(s.models).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, del)
	if err != nil {
		return fmt.Errorf("delete model %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ─── Composites ───

func (s *SQLite) compositeSelect() *goqu.SelectDataset {
	return s.goqu.From(s.composite).
		Select("id", "name", "reasoner_model_id", "general_model_id", "valid")
}

func scanComposite(row *sql.Row) (*store.Composite, error) {
	var c store.Composite
	var valid int
	err := row.Scan(&c.ID, &c.Name, &c.ReasonerModelID, &c.GeneralModelID, &valid)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Valid = valid != 0
	return &c, nil
}

func (s *SQLite) GetComposite(ctx context.Context, id string) (*store.Composite, error) {
	query, _, err := s.compositeSelect().Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, err
	}
	return scanComposite(s.db.QueryRowContext(ctx, query))
}

func (s *SQLite) GetCompositeByName(ctx context.Context, name string) (*store.Composite, error) {
	query, _, err := s.compositeSelect().Where(goqu.I("name").Eq(name)).ToSQL()
	if err != nil {
		return nil, err
	}
	return scanComposite(s.db.QueryRowContext(ctx, query))
}

func (s *SQLite) ListComposites(ctx context.Context) ([]store.Composite, error) {
	query, _, err := s.compositeSelect().Order(goqu.I("name").Asc()).ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list composites: %w", err)
	}
	defer rows.Close()

	var out []store.Composite
	for rows.Next() {
		var c store.Composite
		var valid int
		if err := rows.Scan(&c.ID, &c.Name, &c.ReasonerModelID, &c.GeneralModelID, &valid); err != nil {
			return nil, err
		}
		c.Valid = valid != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateComposite(ctx context.Context, c store.Composite) (*store.Composite, error) {
	taken, err := s.nameTaken(ctx, c.Name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, store.ErrConflict
	}

	c.ID = newID()
	query, _, err := s.goqu.Insert(s.composite).Rows(goqu.Record{
		"id": c.ID, "name": c.Name,
		"reasoner_model_id": c.ReasonerModelID, "general_model_id": c.GeneralModelID,
		"valid": boolToInt(c.Valid),
	}).ToSQL()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create composite %q: %w", c.Name, err)
	}
	return &c, nil
}

func (s *SQLite) UpdateComposite(ctx context.Context, c store.Composite) (*store.Composite, error) {
	taken, err := s.nameTaken(ctx, c.Name, c.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, store.ErrConflict
	}

	query, _, err := s.goqu.Update(s.composite).Set(goqu.Record{
		"name": c.Name, "reasoner_model_id": c.ReasonerModelID,
		"general_model_id": c.GeneralModelID, "valid": boolToInt(c.Valid),
	}).Where(goqu.I("id").Eq(c.ID)).ToSQL()
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("update composite %q: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetComposite(ctx, c.ID)
}

func (s *SQLite) DeleteComposite(ctx context.Context, id string) error {
	query, _, err := s.goqu.Delete(s.composite).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("delete composite %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ─── System settings ───

func (s *SQLite) GetSetting(ctx context.Context, key string) (*store.Setting, error) {
	query, _, err := s.goqu.From(s.settings).Select("key", "value", "type").
		Where(goqu.I("key").Eq(key)).ToSQL()
	if err != nil {
		return nil, err
	}
	var st store.Setting
	err = s.db.QueryRowContext(ctx, query).Scan(&st.Key, &st.Value, &st.Type)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLite) ListSettings(ctx context.Context) ([]store.Setting, error) {
	query, _, err := s.goqu.From(s.settings).Select("key", "value", "type").Order(goqu.I("key").Asc()).ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []store.Setting
	for rows.Next() {
		var st store.Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.Type); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLite) PutSetting(ctx context.Context, st store.Setting) error {
	query, _, err := s.goqu.Insert(s.settings).
		Rows(goqu.Record{"key": st.Key, "value": st.Value, "type": st.Type}).
		OnConflict(goqu.DoUpdate("key", goqu.Record{"value": st.Value, "type": st.Type})).
		ToSQL()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("put setting %q: %w", st.Key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ store.Repository = (*SQLite)(nil)
