package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/JonMunkholm/cpleditor/internal/core"
)

// openSession reads path and loads it into a fresh session.
func openSession(ctx context.Context, path, presetKey string, sink core.AuditSink) (*core.Session, error) {
	preset, err := codec.Resolve(presetKey)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	sess, err := core.NewSession(core.Options{ID: "cli", Audit: sink})
	if err != nil {
		return nil, err
	}
	if err := sess.Load(ctx, filepath.Base(path), data, preset); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return sess, nil
}

// parseFilter reads "field=term".
func parseFilter(raw string) (core.FieldID, string, error) {
	field, term, ok := strings.Cut(raw, "=")
	if !ok {
		return "", "", fmt.Errorf("filter %q: expected field=term", raw)
	}
	id, err := core.ParseFieldID(strings.TrimSpace(field))
	if err != nil {
		return "", "", err
	}
	return id, term, nil
}

// parseSort reads "field" or "field:asc" or "field:desc".
func parseSort(raw string) (core.Sort, error) {
	field, dir, _ := strings.Cut(raw, ":")
	id, err := core.ParseFieldID(strings.TrimSpace(field))
	if err != nil {
		return core.Sort{}, err
	}
	switch strings.ToLower(dir) {
	case "", "asc":
		return core.Sort{Field: id}, nil
	case "desc":
		return core.Sort{Field: id, Descending: true}, nil
	default:
		return core.Sort{}, fmt.Errorf("sort %q: direction must be asc or desc", raw)
	}
}

// parseAssignment reads "id=player name".
func parseAssignment(raw string) (core.UpsertInput, error) {
	idText, name, ok := strings.Cut(raw, "=")
	if !ok {
		return core.UpsertInput{}, fmt.Errorf("%q: expected id=player name", raw)
	}
	id, err := strconv.Atoi(strings.TrimSpace(idText))
	if err != nil {
		return core.UpsertInput{}, fmt.Errorf("%q: commentary id must be a whole number", raw)
	}
	return core.UpsertInput{CommentaryID: id, PlayerName: strings.TrimSpace(name)}, nil
}

// idCell renders a derived id, or "malformed" for names that carry none.
func idCell(rec core.CommentaryRecord) string {
	id, ok := core.RecordID(rec)
	if !ok {
		return "malformed"
	}
	return strconv.Itoa(id)
}
