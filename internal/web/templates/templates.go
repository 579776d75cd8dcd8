// Package templates renders the editor's HTML pages.
//
// Pages are templ components. Edit the .templ sources and regenerate the
// _templ.go files with `templ generate`.
package templates

import (
	"net/url"
	"strconv"

	"github.com/JonMunkholm/cpleditor/internal/audit"
	"github.com/JonMunkholm/cpleditor/internal/core"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string // "error" or "info"
	Message string
	Action  string
	Code    string
}

// NavParams selects the highlighted navigation entry.
type NavParams struct {
	ActivePage string // "editor" or "history"
}

// Hidden is a hidden form field.
type Hidden struct {
	Name  string
	Value string
}

// PresetOption is one entry of the game version select.
type PresetOption struct {
	Key      string
	Label    string
	Selected bool
}

// UploadParams drives the upload page.
type UploadParams struct {
	Presets     []PresetOption
	MaxFileSize int64
	Flashes     []Flash
}

// ConfirmCloseParams drives the unsaved-changes prompt.
type ConfirmCloseParams struct {
	FileName string
}

// PageSizes are the page sizes offered by the editor.
var PageSizes = []int{10, 25, 50, 100}

// EditorParams drives the editor page.
type EditorParams struct {
	View    core.View
	Fields  []core.FieldInfo
	Flashes []Flash
}

// HistoryFilter mirrors the history page query string.
type HistoryFilter struct {
	Action   string
	Severity string
	From     string // YYYY-MM-DD
	To       string // YYYY-MM-DD
	All      bool   // every session instead of the caller's own
}

// Query encodes the filter for links.
func (f HistoryFilter) Query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("action", f.Action)
	set("severity", f.Severity)
	set("from", f.From)
	set("to", f.To)
	if f.All {
		q.Set("scope", "all")
	}
	return q
}

// HistoryParams drives the history page.
type HistoryParams struct {
	Filter HistoryFilter
	Result *audit.Result
}

var historyActions = []string{
	string(core.ActionLoad), string(core.ActionCreate), string(core.ActionUpdate),
	string(core.ActionDelete), string(core.ActionSave), string(core.ActionClear),
}

var historySeverities = []string{
	string(core.SeverityLow), string(core.SeverityMedium), string(core.SeverityHigh),
}

func historyPageURL(f HistoryFilter, page int) string {
	q := f.Query()
	q.Set("page", strconv.Itoa(page))
	return "/history?" + q.Encode()
}

func historyEntryID(e core.AuditEntry) string {
	if e.CommentaryID == nil {
		return ""
	}
	return strconv.Itoa(*e.CommentaryID)
}

// sortLabel decorates a column label with its sort direction and, for
// multi-column sorts, its priority.
func sortLabel(f core.FieldInfo, sorting core.SortSpec) string {
	desc, ok := sorting.Direction(f.ID)
	if !ok {
		return f.Label
	}
	label := f.Label + " ▲"
	if desc {
		label = f.Label + " ▼"
	}
	if len(sorting) > 1 {
		for i, s := range sorting {
			if s.Field == f.ID {
				label += " " + strconv.Itoa(i+1)
			}
		}
	}
	return label
}

func pageLabel(page core.Page) string {
	return "Page " + strconv.Itoa(page.PageIndex+1) + " of " + strconv.Itoa(max(page.PageCount, 1)) +
		" (" + strconv.Itoa(page.Total) + " matching)"
}

func pageHidden(index, size int) []Hidden {
	return []Hidden{
		{Name: "pageIndex", Value: strconv.Itoa(index)},
		{Name: "pageSize", Value: strconv.Itoa(size)},
	}
}

func formatBytes(n int64) string {
	const mb = 1 << 20
	const kb = 1 << 10
	switch {
	case n >= mb:
		return strconv.FormatInt(n/mb, 10) + " MB"
	case n >= kb:
		return strconv.FormatInt(n/kb, 10) + " KB"
	default:
		return strconv.FormatInt(n, 10) + " bytes"
	}
}

const baseCSS = `body{font-family:system-ui,sans-serif;margin:0;color:#1f2937}` +
	`.nav{display:flex;gap:1rem;align-items:center;padding:.75rem 1.5rem;background:#111827}` +
	`.nav a{color:#d1d5db;text-decoration:none}.nav a.active{color:#fff;font-weight:600}` +
	`.brand{color:#fff;font-weight:700;margin-right:1rem}main{padding:1.5rem}` +
	`.alert{padding:.75rem 1rem;border-radius:.375rem;margin-bottom:1rem}` +
	`.alert.error{background:#fee2e2;color:#991b1b}.alert.info{background:#dbeafe;color:#1e40af}` +
	`table{border-collapse:collapse;width:100%}th,td{border-bottom:1px solid #e5e7eb;padding:.4rem;text-align:left}` +
	`.inline{display:inline}.badge{padding:.1rem .5rem;border-radius:9999px;font-size:.8rem}` +
	`.badge.unsaved{background:#fef3c7;color:#92400e}.badge.saved{background:#d1fae5;color:#065f46}` +
	`.muted{color:#6b7280}.toolbar{display:flex;gap:.5rem;align-items:center;margin:1rem 0}`
