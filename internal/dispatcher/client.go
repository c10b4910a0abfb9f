package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepgate/deepgate/internal/apierr"
	"github.com/deepgate/deepgate/internal/store"
	"github.com/deepgate/deepgate/internal/upstream"
)

// buildClient constructs the provider-format-tagged upstream.Client for one
// provider record, wired against the dispatcher's shared transport and the
// provider's own proxy setting (spec.md §4.4 step 3, §9).
func (d *Dispatcher) buildClient(ctx context.Context, provider store.Provider) (upstream.Client, error) {
	if !provider.Valid {
		return nil, apierr.New(400, fmt.Sprintf("provider %q is disabled", provider.Name))
	}

	var proxy string
	if provider.ProxyEnabled {
		setting, err := d.repo.GetSetting(ctx, store.SettingProxyAddress)
		if err != nil && err != store.ErrNotFound {
			return nil, apierr.Wrap(500, err)
		}
		if setting != nil {
			proxy = upstream.NormalizeProxyAddress(setting.Value)
		}
	}

	d.mu.Lock()
	transport := d.transport
	d.mu.Unlock()

	cfg := upstream.Config{
		APIKey:    provider.APIKey,
		APIURL:    joinURL(provider.BaseURL, provider.RequestPath),
		Transport: transport,
		Proxy:     proxy,
		Timeout:   upstream.DefaultTimeout,
	}

	switch provider.Format {
	case store.FormatReasoner:
		return upstream.NewReasonerClient(cfg), nil
	case store.FormatAnthropic:
		return upstream.NewAnthropicClient(cfg), nil
	case store.FormatOpenAI:
		return upstream.NewOpenAIClient(cfg), nil
	default:
		return nil, apierr.New(500, fmt.Sprintf("provider %q has unknown format %q", provider.Name, provider.Format))
	}
}

func joinURL(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
