package providers

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/languages.yaml
var languagesYAML []byte

// Language is a static catalog entry: ISO-like code with display metadata
type Language struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	Flag string `yaml:"flag"`
}

type languageCatalog struct {
	Languages []Language          `yaml:"languages"`
	Preferred map[string][]string `yaml:"preferred"`
}

var catalog languageCatalog

func init() {
	if err := yaml.Unmarshal(languagesYAML, &catalog); err != nil {
		panic(fmt.Sprintf("providers: invalid embedded language catalog: %v", err))
	}
}

// Languages returns the static language catalog in declaration order
func Languages() []Language {
	out := make([]Language, len(catalog.Languages))
	copy(out, catalog.Languages)
	return out
}

// LanguageByCode looks up a language by its code
func LanguageByCode(code string) (Language, bool) {
	for _, l := range catalog.Languages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// preferredProviderIDs returns the static preference order for a language,
// or nil when the table has no entry
func preferredProviderIDs(code string) []string {
	return catalog.Preferred[code]
}
