// Package web renders the PlantCare HTML pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/Brownie44l1/plantcare-api/internal/diagnosis"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is one of the navigation views.
type Page int

const (
	PageHome Page = iota
	PageDetect
	PageAbout
	PageTips
)

// Pages lists every view in navigation order.
var Pages = []Page{PageHome, PageDetect, PageAbout, PageTips}

func (p Page) String() string {
	switch p {
	case PageHome:
		return "Home"
	case PageDetect:
		return "Disease Detection"
	case PageAbout:
		return "About"
	case PageTips:
		return "Plant Care Tips"
	default:
		return fmt.Sprintf("Page(%d)", int(p))
	}
}

// Path is the URL the page is served on.
func (p Page) Path() string {
	switch p {
	case PageDetect:
		return "/detect"
	case PageAbout:
		return "/about"
	case PageTips:
		return "/tips"
	default:
		return "/"
	}
}

func (p Page) template() string {
	switch p {
	case PageDetect:
		return "detect.html"
	case PageAbout:
		return "about.html"
	case PageTips:
		return "tips.html"
	default:
		return "home.html"
	}
}

// ParsePage accepts a page name or path, case-insensitively.
func ParsePage(s string) (Page, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range Pages {
		if s == strings.ToLower(p.String()) || s == p.Path() {
			return p, true
		}
	}
	return PageHome, false
}

type NavItem struct {
	Title  string
	Path   string
	Active bool
}

// Data is everything a page template may use.
type Data struct {
	Page      Page
	Nav       []NavItem
	Plants    []string
	Classes   int
	MaxUpload string
	Diagnosis *diagnosis.Diagnosis
	Error     string
	Filename  string
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	sets map[Page]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{sets: make(map[Page]*template.Template, len(Pages))}
	for _, p := range Pages {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+p.template())
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p.template(), err)
		}
		r.sets[p] = t
	}
	return r, nil
}

// Render writes page p. data.Page and data.Nav are filled in here.
func (r *Renderer) Render(w io.Writer, p Page, data Data) error {
	t, ok := r.sets[p]
	if !ok {
		return fmt.Errorf("unknown page %d", int(p))
	}
	data.Page = p
	data.Nav = make([]NavItem, len(Pages))
	for i, q := range Pages {
		data.Nav[i] = NavItem{Title: q.String(), Path: q.Path(), Active: q == p}
	}
	return t.ExecuteTemplate(w, "layout", data)
}
