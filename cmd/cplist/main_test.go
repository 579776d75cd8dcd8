package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/JonMunkholm/cpleditor/internal/codec/binlist"
	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/gofrs/flock"
)

func writeList(t *testing.T, records []codec.Record) string {
	t.Helper()
	data, err := binlist.Encode(binlist.PES2021, records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "list.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func sampleList(t *testing.T) string {
	return writeList(t, []codec.Record{
		{CommentaryName: "cmt_pl_000003", PlayerName: "Zeta"},
		{CommentaryName: "cmt_pl_000001", PlayerName: "Alpha"},
		{CommentaryName: "cmt_pl_000002", PlayerName: "alphabet"},
		{CommentaryName: "cmt_pl_000010", PlayerName: "Beta"},
	})
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPresetsCommand(t *testing.T) {
	out, err := runCLI(t, "presets")
	if err != nil {
		t.Fatalf("presets: %v", err)
	}
	for _, want := range []string{"PES 2017", "PES 2021"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectCommand(t *testing.T) {
	path := sampleList(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
		order   []string
	}{
		{
			name:  "all records in file order",
			args:  []string{"inspect", path},
			want:  []string{"Page 1 of 1 (4 matching, 4 total)"},
			order: []string{"Zeta", "Alpha", "alphabet", "Beta"},
		},
		{
			name:    "filter ignores case",
			args:    []string{"inspect", path, "--filter", "playerName=ALPHA"},
			want:    []string{"(2 matching, 4 total)"},
			notWant: []string{"Zeta", "Beta"},
		},
		{
			name:  "sort descending by id",
			args:  []string{"inspect", path, "--sort", "commentaryId:desc"},
			order: []string{"Beta", "Zeta", "alphabet", "Alpha"},
		},
		{
			name:    "second page",
			args:    []string{"inspect", path, "--sort", "commentaryId", "--page-size", "2", "--page", "2"},
			want:    []string{"Page 2 of 2 (4 matching, 4 total)"},
			notWant: []string{"Alpha"},
			order:   []string{"Zeta", "Beta"},
		},
		{
			name: "page past the end is empty",
			args: []string{"inspect", path, "--page-size", "2", "--page", "9"},
			want: []string{"Page 9 of 2 (4 matching, 4 total)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if err != nil {
				t.Fatalf("inspect: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("output should not contain %q:\n%s", nw, out)
				}
			}
			last := -1
			for _, name := range tt.order {
				idx := strings.Index(out, "│ "+name+" ")
				if idx < 0 {
					t.Fatalf("output missing row %q:\n%s", name, out)
				}
				if idx < last {
					t.Errorf("row %q out of order:\n%s", name, out)
				}
				last = idx
			}
		})
	}
}

func TestInspectCommand_JSON(t *testing.T) {
	out, err := runCLI(t, "inspect", sampleList(t), "--all", "--json", "--sort", "playerName")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}

	var records []codec.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	// Player names compare byte-wise, so lower case sorts last.
	if records[0].PlayerName != "Alpha" || records[3].PlayerName != "alphabet" {
		t.Errorf("unexpected order: %+v", records)
	}
}

func TestInspectCommand_Errors(t *testing.T) {
	path := sampleList(t)

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantMsg string
	}{
		{name: "unknown filter field", args: []string{"inspect", path, "--filter", "club=x"}, wantErr: core.ErrUnknownField},
		{name: "filter without term", args: []string{"inspect", path, "--filter", "playerName"}, wantMsg: "expected field=term"},
		{name: "bad sort direction", args: []string{"inspect", path, "--sort", "playerName:up"}, wantMsg: "asc or desc"},
		{name: "page zero", args: []string{"inspect", path, "--page", "0"}, wantErr: core.ErrInvalidPagination},
		{name: "unknown preset", args: []string{"inspect", path, "--preset", "1999"}, wantErr: codec.ErrUnknownPreset},
		{name: "missing file", args: []string{"inspect", filepath.Join(t.TempDir(), "none.bin")}, wantErr: os.ErrNotExist},
		{name: "wrong preset for file", args: []string{"inspect", path, "--preset", "2017"}, wantMsg: "decode error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestEditCommand_WritesOutput(t *testing.T) {
	path := sampleList(t)
	outPath := filepath.Join(filepath.Dir(path), "out.bin")

	out, err := runCLI(t, "edit", path,
		"--create", "104512=Lionel Messi",
		"--update", "3=Zeta Prime",
		"--delete", "10",
		"-o", outPath,
	)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	for _, want := range []string{"create", "update", "delete", "Zeta Prime", "wrote 4 records"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	store, err := binlist.Decode(binlist.PES2021, data)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	got := store.Records()
	want := []codec.Record{
		{CommentaryName: "cmt_pl_000003", PlayerName: "Zeta Prime"},
		{CommentaryName: "cmt_pl_000001", PlayerName: "Alpha"},
		{CommentaryName: "cmt_pl_000002", PlayerName: "alphabet"},
		{CommentaryName: "cmt_pl_104512", PlayerName: "Lionel Messi"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEditCommand_FailureWritesNothing(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "duplicate id", args: []string{"--create", "1=Copy"}, wantErr: codec.ErrDuplicateIdentifier},
		{name: "missing id", args: []string{"--create", "50=New", "--delete", "77"}, wantErr: codec.ErrNotFound},
		{name: "no changes", args: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := sampleList(t)
			before, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}

			_, err = runCLI(t, append([]string{"edit", path}, tt.args...)...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}

			after, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(before, after) {
				t.Error("input file was modified")
			}
		})
	}
}

func TestEditCommand_RefusesLockedFile(t *testing.T) {
	path := sampleList(t)
	held := flock.New(path + ".lock")
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	t.Cleanup(func() { _ = held.Unlock() })

	_, err = runCLI(t, "edit", path, "--delete", "1")
	if err == nil || !strings.Contains(err.Error(), "being edited") {
		t.Fatalf("error = %v, want a lock conflict", err)
	}
}

func TestEditCommand_DryRun(t *testing.T) {
	path := sampleList(t)
	before, _ := os.ReadFile(path)

	out, err := runCLI(t, "edit", path, "--delete", "1", "--dry-run")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !strings.Contains(out, "dry run: 3 records") {
		t.Errorf("unexpected output:\n%s", out)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("dry run modified the file")
	}
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		raw     string
		want    core.UpsertInput
		wantErr bool
	}{
		{raw: "42=Kaká", want: core.UpsertInput{CommentaryID: 42, PlayerName: "Kaká"}},
		{raw: " 7 =  Name With Spaces ", want: core.UpsertInput{CommentaryID: 7, PlayerName: "Name With Spaces"}},
		{raw: "42", wantErr: true},
		{raw: "x=Name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseAssignment(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
