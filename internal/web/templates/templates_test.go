package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/cpleditor/internal/audit"
	"github.com/JonMunkholm/cpleditor/internal/core"
)

func TestEditorPage_EscapesRecordText(t *testing.T) {
	view := core.View{
		State: core.State{Status: core.Loaded, FileName: `a"<b>.bin`, Preset: "2021", Records: 2, Dirty: true, Unsaved: true},
		Page: core.Page{
			Items: []core.CommentaryRecord{
				{CommentaryName: "cmt_pl_000007", PlayerName: "<script>alert(1)</script>"},
				{CommentaryName: "broken", PlayerName: "Ghost"},
			},
			PageSize:  50,
			PageCount: 1,
			Total:     2,
		},
		Sorting: core.SortSpec{{Field: core.FieldPlayerName, Descending: true}},
	}

	var buf bytes.Buffer
	if err := EditorPage(EditorParams{View: view, Fields: core.Fields()}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "<script>alert") {
		t.Error("player name rendered unescaped")
	}
	if strings.Contains(out, `a"<b>.bin`) {
		t.Error("file name rendered unescaped")
	}
	for _, want := range []string{
		`action="/records/7"`,
		`action="/records/7/delete"`,
		"Unsaved changes",
		"Player Name ▼",
		`<span class="muted">malformed</span>`,
		"Page 1 of 1 (2 matching)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, `/records/-1`) {
		t.Error("malformed record got edit controls")
	}
}

func TestEditorPage_Pager(t *testing.T) {
	tests := []struct {
		name     string
		page     core.Page
		wantPrev bool
		wantNext bool
	}{
		{name: "first", page: core.Page{PageIndex: 0, PageSize: 10, PageCount: 3}, wantNext: true},
		{name: "middle", page: core.Page{PageIndex: 1, PageSize: 10, PageCount: 3}, wantPrev: true, wantNext: true},
		{name: "last", page: core.Page{PageIndex: 2, PageSize: 10, PageCount: 3}, wantPrev: true},
		{name: "empty", page: core.Page{PageIndex: 0, PageSize: 10, PageCount: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			view := core.View{State: core.State{Status: core.Loaded}, Page: tt.page}
			if err := EditorPage(EditorParams{View: view, Fields: core.Fields()}).Render(context.Background(), &buf); err != nil {
				t.Fatal(err)
			}
			out := buf.String()
			if got := strings.Contains(out, ">Previous<"); got != tt.wantPrev {
				t.Errorf("Previous shown = %v, want %v", got, tt.wantPrev)
			}
			if got := strings.Contains(out, ">Next<"); got != tt.wantNext {
				t.Errorf("Next shown = %v, want %v", got, tt.wantNext)
			}
		})
	}
}

func TestHistoryPage(t *testing.T) {
	id := 12
	res := &audit.Result{
		Entries:    []core.AuditEntry{{Action: core.ActionUpdate, Severity: core.SeverityMedium, CommentaryID: &id, OldValue: "Old & Co", NewValue: "New"}},
		TotalCount: 120,
		Page:       2,
		PageSize:   50,
		TotalPages: 3,
	}
	filter := HistoryFilter{Action: "update", All: true}

	var buf bytes.Buffer
	if err := HistoryPage(HistoryParams{Filter: filter, Result: res}).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"Old &amp; Co",
		"<td>12</td>",
		`<option value="update" selected>`,
		"Page 2 of 3 (120 events)",
		`href="/history.csv?action=update&amp;scope=all"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:      "512 bytes",
		2048:     "2 KB",
		16 << 20: "16 MB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorPage(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorPage("Bad <file>", "Try again", "FILE001").Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"<title>Error · Commentary Player List</title>",
		`<div class="alert error" role="alert"><strong>Bad &lt;file&gt;</strong>`,
		"<p>Try again</p>",
		"Error code: FILE001",
		"</main></body></html>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestUploadAndConfirmPages(t *testing.T) {
	var buf bytes.Buffer
	upload := UploadPage(UploadParams{
		Presets:     []PresetOption{{Key: "2017", Label: "PES 2017"}, {Key: "2021", Label: "PES 2021", Selected: true}},
		MaxFileSize: 2 << 20,
		Flashes:     []Flash{{Kind: "info", Message: "list.bin closed."}},
	})
	if err := upload.Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`<option value="2017">PES 2017</option>`,
		`<option value="2021" selected>PES 2021</option>`,
		"Maximum file size: 2 MB",
		`<div class="alert info" role="status">list.bin closed.</div>`,
		`<a href="/" class="active">Editor</a>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("upload page missing %q", want)
		}
	}

	buf.Reset()
	if err := ConfirmClosePage(ConfirmCloseParams{FileName: "list.bin"}).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out = buf.String()
	for _, want := range []string{
		"Discard unsaved changes?",
		`<form method="post" class="inline" action="/close"><input type="hidden" name="confirm" value="yes">`,
		`class="danger">Close without saving</button>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("confirm page missing %q", want)
		}
	}
}

func TestSortLabel(t *testing.T) {
	name := core.FieldInfo{ID: core.FieldPlayerName, Label: "Player Name"}
	tests := []struct {
		name    string
		sorting core.SortSpec
		want    string
	}{
		{name: "unsorted", want: "Player Name"},
		{name: "ascending", sorting: core.SortSpec{{Field: core.FieldPlayerName}}, want: "Player Name ▲"},
		{name: "second of two", sorting: core.SortSpec{{Field: core.FieldCommentaryID}, {Field: core.FieldPlayerName, Descending: true}}, want: "Player Name ▼ 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sortLabel(name, tt.sorting); got != tt.want {
				t.Errorf("sortLabel = %q, want %q", got, tt.want)
			}
		})
	}
}
