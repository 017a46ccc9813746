package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// Supported lists the bundled languages.
var Supported = []string{"fa", "en", "ru"}

type Translator struct {
	lang         string
	translations map[string]string
	fallback     *Translator
}

// NewTranslator reads locales/{lang}.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	t.lang = langCode
	return t, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

func (t *Translator) Lang() string { return t.lang }

// T looks key up, then in the fallback translator, and returns the key
// itself when neither has it.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok && t.fallback != nil {
		format, ok = t.fallback.translations[key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (t *Translator) Has(key string) bool {
	if _, ok := t.translations[key]; ok {
		return true
	}
	return t.fallback != nil && t.fallback.Has(key)
}

// Bundle holds one translator per language. Unknown languages resolve to the
// default one; missing keys fall back to the default language.
type Bundle struct {
	def         string
	translators map[string]*Translator
}

func NewBundle(fsys fs.FS, defaultLang string, langs ...string) (*Bundle, error) {
	if len(langs) == 0 {
		langs = Supported
	}
	b := &Bundle{def: defaultLang, translators: make(map[string]*Translator, len(langs))}
	for _, l := range langs {
		t, err := NewTranslator(fsys, l)
		if err != nil {
			return nil, err
		}
		b.translators[l] = t
	}
	def, ok := b.translators[defaultLang]
	if !ok {
		return nil, fmt.Errorf("default language %q is not bundled", defaultLang)
	}
	for l, t := range b.translators {
		if l != defaultLang {
			t.fallback = def
		}
	}
	return b, nil
}

// NewDefaultBundle loads the embedded locales.
func NewDefaultBundle(defaultLang string) (*Bundle, error) {
	return NewBundle(LocalesFS, defaultLang)
}

func (b *Bundle) Default() string { return b.def }

func (b *Bundle) Supports(lang string) bool {
	_, ok := b.translators[Normalize(lang)]
	return ok
}

func (b *Bundle) For(lang string) *Translator {
	if t, ok := b.translators[Normalize(lang)]; ok {
		return t
	}
	return b.translators[b.def]
}

// Normalize maps a Telegram language_code such as "en-US" to "en".
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
