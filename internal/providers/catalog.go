package providers

import (
	"log/slog"
	"slices"

	"github.com/vesperhq/vesper/internal/config"
	"github.com/vesperhq/vesper/internal/providers/extract"
	providerhttp "github.com/vesperhq/vesper/internal/providers/http"
)

// builtin describes one entry of the default provider catalog.
// Declaration order here is the registry order and therefore the final
// ranking tie-breaker.
type builtin struct {
	id          string
	displayName string
	baseURL     string
	languages   []string
	timeOffset  bool
	extraction  bool
}

var builtins = []builtin{
	{id: "vidora", displayName: "Vidora", baseURL: "https://vidora.stream", languages: []string{"en", "es", "es-419", "hi"}, timeOffset: true},
	{id: "nimbus", displayName: "Nimbus", baseURL: "https://nimbus.watch", languages: []string{"en", "fr", "de", "ru", "ja"}, timeOffset: true},
	{id: "solara", displayName: "Solara", baseURL: "https://solara.cc", languages: []string{"es", "es-419", "pt-BR"}, timeOffset: true},
	{id: "torstream", displayName: "TorStream", languages: []string{"en", "ja", "pt-BR"}, extraction: true},
	{id: "debrix", displayName: "Debrix", extraction: true},
}

// RegisterDefaults fills a registry with the builtin provider catalog,
// applying base URL overrides and the disabled list from configuration.
func RegisterDefaults(reg *Registry, cfg *config.Config, extractClient *extract.Client, httpClient *providerhttp.Client, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, b := range builtins {
		if slices.Contains(cfg.Providers.Disabled, b.id) {
			logger.Debug("provider disabled by config", "id", b.id)
			continue
		}

		var p Provider
		if b.extraction {
			p = NewExtractionProvider(ExtractionConfig{
				ID:          b.id,
				DisplayName: b.displayName,
				Languages:   b.languages,
				QualityHint: cfg.Extractor.QualityHint,
				Client:      extractClient,
			})
		} else {
			baseURL := b.baseURL
			if override := cfg.Providers.BaseURLs[b.id]; override != "" {
				baseURL = override
			}
			p = NewEmbedProvider(EmbedConfig{
				ID:                 b.id,
				DisplayName:        b.displayName,
				BaseURL:            baseURL,
				Languages:          b.languages,
				SupportsTimeOffset: b.timeOffset,
				HTTPClient:         httpClient,
			})
		}

		if err := reg.Register(p); err != nil {
			return err
		}
		logger.Debug("registered provider", "id", b.id, "extraction", b.extraction)
	}

	return nil
}
