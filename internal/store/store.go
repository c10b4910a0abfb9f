// Package store defines the narrow persistence contract spec.md §6
// describes: keyed records for providers, models, composite models, and
// typed system settings, behind a repository interface the dispatcher and
// the admin surface both depend on.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get* methods when no record matches.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned on a unique-namespace violation at write time
// (provider/model/composite names share one namespace, spec.md §3).
var ErrConflict = errors.New("store: name already in use")

// ErrReferenced is returned when a delete would orphan a dependent record
// (spec.md §8: "deleting a provider with ≥1 dependent model fails without
// mutation").
var ErrReferenced = errors.New("store: referenced by a dependent record")

// ProviderFormat is the wire family a provider's upstream speaks.
type ProviderFormat string

const (
	FormatReasoner  ProviderFormat = "reasoner"
	FormatAnthropic ProviderFormat = "anthropic"
	FormatOpenAI    ProviderFormat = "openai"
)

// ModelType distinguishes a reasoning-capable model from a general one;
// composite records reference one of each.
type ModelType string

const (
	ModelTypeReasoner ModelType = "reasoner"
	ModelTypeGeneral  ModelType = "general"
)

// Provider is the provider record (spec.md §3).
type Provider struct {
	ID           string
	Name         string
	APIKey       string
	BaseURL      string
	RequestPath  string
	Format       ProviderFormat
	ProxyEnabled bool
	Valid        bool
}

// Model is the model record (spec.md §3).
type Model struct {
	ID              string
	Name            string
	ModelID         string
	ProviderID      string
	Type            ModelType
	Format          ProviderFormat
	OriginReasoning bool
	OriginOutput    bool
	Valid           bool
}

// Composite is the composite model record (spec.md §3).
type Composite struct {
	ID              string
	Name            string
	ReasonerModelID string
	GeneralModelID  string
	Valid           bool
}

// SettingType is the declared type of a system setting's value, used to
// coerce the stored string representation (spec.md §3: "Typed key/value
// (str|int|float|bool|json)").
type SettingType string

const (
	SettingString SettingType = "str"
	SettingInt    SettingType = "int"
	SettingFloat  SettingType = "float"
	SettingBool   SettingType = "bool"
	SettingJSON   SettingType = "json"
)

// Setting is one row of the system_settings table.
type Setting struct {
	Key   string
	Value string
	Type  SettingType
}

// Well-known setting keys (spec.md §3).
const (
	SettingAPIKey                   = "api_key"
	SettingProxyAddress             = "proxy_address"
	SettingLogLevel                 = "log_level"
	SettingTCPConnectorLimit        = "tcp_connector_limit"
	SettingTCPConnectorLimitPerHost = "tcp_connector_limit_per_host"
	SettingTCPKeepaliveTimeout      = "tcp_keepalive_timeout"
)

// Repository is the narrow interface the dispatcher and admin surface share.
// Every write enforces the shared provider/model/composite name namespace
// and the referential-integrity rules from spec.md §8.
type Repository interface {
	GetProvider(ctx context.Context, id string) (*Provider, error)
	ListProviders(ctx context.Context) ([]Provider, error)
	CreateProvider(ctx context.Context, p Provider) (*Provider, error)
	UpdateProvider(ctx context.Context, p Provider) (*Provider, error)
	DeleteProvider(ctx context.Context, id string) error

	GetModel(ctx context.Context, id string) (*Model, error)
	GetModelByName(ctx context.Context, name string) (*Model, error)
	ListModels(ctx context.Context) ([]Model, error)
	CreateModel(ctx context.Context, m Model) (*Model, error)
	UpdateModel(ctx context.Context, m Model) (*Model, error)
	DeleteModel(ctx context.Context, id string) error

	GetComposite(ctx context.Context, id string) (*Composite, error)
	GetCompositeByName(ctx context.Context, name string) (*Composite, error)
	ListComposites(ctx context.Context) ([]Composite, error)
	CreateComposite(ctx context.Context, c Composite) (*Composite, error)
	UpdateComposite(ctx context.Context, c Composite) (*Composite, error)
	DeleteComposite(ctx context.Context, id string) error

	GetSetting(ctx context.Context, key string) (*Setting, error)
	ListSettings(ctx context.Context) ([]Setting, error)
	PutSetting(ctx context.Context, s Setting) error
}
