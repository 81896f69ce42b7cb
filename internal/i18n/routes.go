package i18n

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Layout groups routes that share a base set of namespaces.
type Layout string

const (
	LayoutAuth      Layout = "auth"
	LayoutProtected Layout = "protected"
	LayoutPublic    Layout = "public"
)

var (
	authPrefixes      = []string{"/sign-in", "/sign-up", "/forgot-password", "/reset-password", "/verify-email"}
	protectedPrefixes = []string{"/dashboard", "/settings", "/profile", "/admin", "/groups"}
)

// HomeNamespace is the page namespace for "/".
const HomeNamespace = "home"

// ClassifyRoute returns the layout for a locale-less pathname.
func ClassifyRoute(pathname string) Layout {
	pathname = cleanPathname(pathname)
	for _, prefix := range authPrefixes {
		if hasPathPrefix(pathname, prefix) {
			return LayoutAuth
		}
	}
	for _, prefix := range protectedPrefixes {
		if hasPathPrefix(pathname, prefix) {
			return LayoutProtected
		}
	}
	return LayoutPublic
}

// IsAuthRoute reports whether pathname is a sign-in style page.
func IsAuthRoute(pathname string) bool {
	return ClassifyRoute(pathname) == LayoutAuth
}

// IsProtectedRoute reports whether pathname requires a session.
func IsProtectedRoute(pathname string) bool {
	return ClassifyRoute(pathname) == LayoutProtected
}

// PageNamespace maps the first path segment to a discovered page namespace,
// matching exactly or after kebab-to-camel conversion.
func PageNamespace(pathname string, pages []string) (string, bool) {
	pathname = cleanPathname(pathname)
	if pathname == "/" {
		for _, page := range pages {
			if page == HomeNamespace {
				return HomeNamespace, true
			}
		}
		return "", false
	}

	segment, _, _ := strings.Cut(strings.TrimPrefix(pathname, "/"), "/")
	camel := kebabToCamel(segment)
	for _, page := range pages {
		if page == segment || page == camel {
			return page, true
		}
	}
	return "", false
}

func kebabToCamel(s string) string {
	parts := strings.Split(s, "-")
	var b strings.Builder
	b.Grow(len(s))
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(part)
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// Selection is the set of namespaces a route loads.
type Selection struct {
	Layout     Layout
	Root       []string
	Pages      []string
	Components []string
}

// Names returns the selection as qualified names: "common",
// "pages.signIn", "components.footer".
func (s Selection) Names() []string {
	out := make([]string, 0, len(s.Root)+len(s.Pages)+len(s.Components))
	out = append(out, s.Root...)
	for _, p := range s.Pages {
		out = append(out, KindPages+"."+p)
	}
	for _, c := range s.Components {
		out = append(out, KindComponents+"."+c)
	}
	return out
}

func baseSelection(layout Layout) Selection {
	sel := Selection{
		Layout: layout,
		Root:   []string{"common", "navigation", "errors"},
	}
	switch layout {
	case LayoutAuth:
		sel.Root = append(sel.Root, "auth")
	case LayoutPublic:
		sel.Components = []string{"footer", "themeSwitcher", "localeSwitcher"}
	case LayoutProtected:
		sel.Components = []string{"themeSwitcher", "localeSwitcher"}
	}
	return sel
}

// Override replaces parts of the automatic selection for a path prefix.
// Empty fields keep the automatic value.
type Override struct {
	Layout     Layout   `yaml:"layout"`
	Root       []string `yaml:"root"`
	Pages      []string `yaml:"pages"`
	Components []string `yaml:"components"`
}

// Overrides maps path prefixes to overrides; the longest matching prefix wins.
type Overrides map[string]Override

type overridesFile struct {
	Routes Overrides `yaml:"routes"`
}

// ParseOverrides decodes an overrides YAML document.
func ParseOverrides(data []byte) (Overrides, error) {
	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse namespace overrides: %w", err)
	}
	out := make(Overrides, len(file.Routes))
	for prefix, o := range file.Routes {
		switch o.Layout {
		case "", LayoutAuth, LayoutProtected, LayoutPublic:
		default:
			return nil, fmt.Errorf("override %s: unknown layout %q", prefix, o.Layout)
		}
		out[cleanPathname(prefix)] = o
	}
	return out, nil
}

func (o Overrides) match(pathname string) (Override, bool) {
	prefixes := make([]string, 0, len(o))
	for prefix := range o {
		if hasPathPrefix(pathname, prefix) {
			prefixes = append(prefixes, prefix)
		}
	}
	if len(prefixes) == 0 {
		return Override{}, false
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return o[prefixes[0]], true
}

// SelectNamespaces computes the namespaces for pathname. Names that were not
// discovered are dropped, so optional components may be absent from the tree.
func SelectNamespaces(pathname string, found Namespaces, overrides Overrides) Selection {
	pathname = cleanPathname(pathname)
	override, hasOverride := overrides.match(pathname)

	layout := ClassifyRoute(pathname)
	if hasOverride && override.Layout != "" {
		layout = override.Layout
	}
	sel := baseSelection(layout)
	if page, ok := PageNamespace(pathname, found.Pages); ok {
		sel.Pages = []string{page}
	}

	if hasOverride {
		if len(override.Root) > 0 {
			sel.Root = override.Root
		}
		if len(override.Pages) > 0 {
			sel.Pages = override.Pages
		}
		if len(override.Components) > 0 {
			sel.Components = override.Components
		}
	}

	sel.Root = keepFound(sel.Root, KindRoot, found)
	sel.Pages = keepFound(sel.Pages, KindPages, found)
	sel.Components = keepFound(sel.Components, KindComponents, found)
	return sel
}

func keepFound(names []string, kind string, found Namespaces) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] || !found.Has(kind, name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func cleanPathname(pathname string) string {
	pathname = strings.TrimSpace(pathname)
	if i := strings.IndexAny(pathname, "?#"); i >= 0 {
		pathname = pathname[:i]
	}
	if !strings.HasPrefix(pathname, "/") {
		pathname = "/" + pathname
	}
	if len(pathname) > 1 {
		pathname = strings.TrimRight(pathname, "/")
		if pathname == "" {
			pathname = "/"
		}
	}
	return pathname
}

func hasPathPrefix(pathname, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return pathname == prefix || strings.HasPrefix(pathname, prefix+"/")
}
