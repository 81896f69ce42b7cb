package i18n

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

//go:embed messages
var embeddedMessages embed.FS

const overridesFileName = "overrides.yaml"

// Messages is a decoded message bundle: nested objects with string leaves.
type Messages map[string]any

// Catalog loads and validates message bundles from a messages tree.
type Catalog struct {
	fsys       fs.FS
	negotiator *Negotiator
	discovery  *Discovery
	overrides  Overrides
	logger     zerolog.Logger

	schemaOnce sync.Once
	schema     Messages
	schemaErr  error
}

// NewEmbeddedCatalog returns a catalog over the messages compiled into the
// binary.
func NewEmbeddedCatalog(defaultLocale string, logger zerolog.Logger) (*Catalog, error) {
	return NewCatalog(embeddedMessages, defaultLocale, logger)
}

// NewCatalog returns a catalog over fsys, which must contain a messages/
// directory. messages/overrides.yaml is optional.
func NewCatalog(fsys fs.FS, defaultLocale string, logger zerolog.Logger) (*Catalog, error) {
	overrides := Overrides{}
	data, err := fs.ReadFile(fsys, path.Join(messagesDir, overridesFileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read namespace overrides: %w", err)
	default:
		overrides, err = ParseOverrides(data)
		if err != nil {
			return nil, err
		}
	}

	return &Catalog{
		fsys:       fsys,
		negotiator: NewNegotiator(defaultLocale),
		discovery:  NewDiscovery(fsys),
		overrides:  overrides,
		logger:     logger.With().Str("component", "i18n").Logger(),
	}, nil
}

func (c *Catalog) DefaultLocale() string {
	return c.negotiator.Default()
}

func (c *Catalog) Negotiator() *Negotiator {
	return c.negotiator
}

func (c *Catalog) Discovery() *Discovery {
	return c.discovery
}

// LoadMessages returns the full validated bundle for locale.
func (c *Catalog) LoadMessages(locale string) (Messages, error) {
	locale, err := c.requireLocale(locale)
	if err != nil {
		return nil, err
	}
	found, err := c.discovery.Namespaces()
	if err != nil {
		return nil, err
	}
	raw, err := c.assemble(locale, Selection{Root: found.Root, Pages: found.Pages, Components: found.Components})
	if err != nil {
		return nil, err
	}
	return c.ValidateMessages(locale, raw)
}

// LoadRouteMessages returns the bundle scoped to pathname, along with the
// namespace selection that produced it.
func (c *Catalog) LoadRouteMessages(locale, pathname string) (Messages, Selection, error) {
	locale, err := c.requireLocale(locale)
	if err != nil {
		return nil, Selection{}, err
	}
	found, err := c.discovery.Namespaces()
	if err != nil {
		return nil, Selection{}, err
	}
	sel := SelectNamespaces(pathname, found, c.overrides)
	raw, err := c.assemble(locale, sel)
	if err != nil {
		return nil, Selection{}, err
	}
	msgs, err := c.validate(locale, raw, true)
	if err != nil {
		return nil, Selection{}, err
	}
	return msgs, sel, nil
}

// ValidateMessages checks candidate against the default locale's full bundle
// and returns a deep copy. Missing keys, unexpected keys and type mismatches
// fail with a *ValidationError naming the dotted key path.
func (c *Catalog) ValidateMessages(locale string, candidate Messages) (Messages, error) {
	return c.validate(locale, candidate, false)
}

// ValidateAll loads and validates every supported locale.
func (c *Catalog) ValidateAll() error {
	for _, locale := range Locales() {
		if _, err := c.LoadMessages(locale); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) validate(locale string, candidate Messages, partial bool) (Messages, error) {
	schema, err := c.loadSchema()
	if err != nil {
		return nil, err
	}
	return validateBundle(locale, schema, candidate, partial)
}

func (c *Catalog) loadSchema() (Messages, error) {
	c.schemaOnce.Do(func() {
		found, err := c.discovery.Namespaces()
		if err != nil {
			c.schemaErr = err
			return
		}
		c.schema, c.schemaErr = c.assemble(c.DefaultLocale(), Selection{
			Root:       found.Root,
			Pages:      found.Pages,
			Components: found.Components,
		})
	})
	return c.schema, c.schemaErr
}

// assemble reads the files in sel. Root namespaces sit at the top level;
// pages and components nest under "pages" and "components".
func (c *Catalog) assemble(locale string, sel Selection) (Messages, error) {
	out := Messages{}
	for _, name := range sel.Root {
		m, err := c.readNamespace(KindRoot, name, locale)
		if err != nil {
			return nil, err
		}
		out[name] = m
	}
	for kind, names := range map[string][]string{KindPages: sel.Pages, KindComponents: sel.Components} {
		if len(names) == 0 {
			continue
		}
		group := map[string]any{}
		for _, name := range names {
			m, err := c.readNamespace(kind, name, locale)
			if err != nil {
				return nil, err
			}
			group[name] = m
		}
		out[kind] = group
	}
	return out, nil
}

func (c *Catalog) readNamespace(kind, name, locale string) (map[string]any, error) {
	file := path.Join(messagesDir, kind, name, locale+".json")
	data, err := fs.ReadFile(c.fsys, file)
	if errors.Is(err, fs.ErrNotExist) && locale != c.DefaultLocale() {
		c.logger.Warn().Str("file", file).Msg("message file missing, using default locale")
		return c.readNamespace(kind, name, c.DefaultLocale())
	}
	if err != nil {
		return nil, fmt.Errorf("read messages %s: %w", file, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode messages %s: %w", file, err)
	}
	return m, nil
}

func (c *Catalog) requireLocale(locale string) (string, error) {
	normalized, ok := ParseLocale(locale)
	if !ok {
		return "", fmt.Errorf("unsupported locale %q", locale)
	}
	return normalized, nil
}

// RequestConfig is what a page needs to render: its locale and messages.
type RequestConfig struct {
	Locale     string   `json:"locale"`
	Messages   Messages `json:"messages"`
	Namespaces []string `json:"namespaces,omitempty"`
}

// RequestConfig resolves the locale from the request context, falling back to
// the default, then loads messages scoped to the remembered pathname. Without
// a pathname the full bundle is returned.
func (c *Catalog) RequestConfig(r *http.Request) (*RequestConfig, error) {
	ctx := r.Context()
	locale, ok := LocaleFromContext(ctx)
	if !ok || !IsSupported(locale) {
		locale = c.DefaultLocale()
	}

	pathname, ok := PathnameFromContext(ctx)
	if ok {
		_, pathname, _ = SplitLocalePath(pathname)
	} else {
		pathname = pagePathname(r.URL.Path)
	}

	if pathname == "" {
		msgs, err := c.LoadMessages(locale)
		if err != nil {
			return nil, err
		}
		return &RequestConfig{Locale: locale, Messages: msgs}, nil
	}

	msgs, sel, err := c.LoadRouteMessages(locale, pathname)
	if err != nil {
		return nil, err
	}
	return &RequestConfig{Locale: locale, Messages: msgs, Namespaces: sel.Names()}, nil
}

// pagePathname strips the locale prefix from a page path. API and asset paths
// have no page pathname.
func pagePathname(urlPath string) string {
	if urlPath == "" || strings.HasPrefix(urlPath, "/api/") || urlPath == "/api" {
		return ""
	}
	_, rest, _ := SplitLocalePath(urlPath)
	return rest
}
