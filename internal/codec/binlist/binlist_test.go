package binlist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/cpleditor/internal/codec"
)

func sampleRecords() []codec.Record {
	return []codec.Record{
		{CommentaryName: "cmt_000001", PlayerName: "John"},
		{CommentaryName: "cmt_000002", PlayerName: "Amy"},
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	data, err := Encode(PES2017, sampleRecords())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	store, err := Decode(PES2017, data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	got := store.Records()
	if len(got) != 2 {
		t.Fatalf("len(Records()) = %d, want 2", len(got))
	}
	for i, want := range sampleRecords() {
		if got[i] != want {
			t.Errorf("Records()[%d] = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestDecode_Rejects(t *testing.T) {
	good, err := Encode(PES2017, sampleRecords())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	corrupt := append([]byte(nil), good...)
	corrupt[headerSize] ^= 0xFF

	dup, err := Encode(PES2017, []codec.Record{
		{CommentaryName: "cmt_000001", PlayerName: "A"},
		{CommentaryName: "cmt_000001", PlayerName: "B"},
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		data []byte
	}{
		{"empty", PES2017, nil},
		{"truncated", PES2017, good[:len(good)-10]},
		{"wrong magic", PES2021, good},
		{"bad checksum", PES2017, corrupt},
		{"duplicate ids", PES2017, dup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.cfg, tt.data); err == nil {
				t.Error("Decode() expected error")
			}
		})
	}
}

func TestStore_CreateUpdateDelete(t *testing.T) {
	s := NewStore(PES2017)

	if err := s.Create(codec.Upsert{CommentaryID: 42, PlayerName: "Zed"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	recs := s.Records()
	if len(recs) != 1 || recs[0].CommentaryName != "cmt_000042" {
		t.Fatalf("Records() = %+v, want one record named cmt_000042", recs)
	}

	err := s.Create(codec.Upsert{CommentaryID: 42, PlayerName: "Other"})
	if !errors.Is(err, codec.ErrDuplicateIdentifier) {
		t.Errorf("duplicate Create() error = %v, want ErrDuplicateIdentifier", err)
	}

	if err := s.Update(codec.Upsert{CommentaryID: 42, PlayerName: "Zoe"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := s.Records()[0].PlayerName; got != "Zoe" {
		t.Errorf("PlayerName = %q, want %q", got, "Zoe")
	}

	if err := s.Update(codec.Upsert{CommentaryID: 7, PlayerName: "X"}); !errors.Is(err, codec.ErrNotFound) {
		t.Errorf("Update(absent) error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(7); !errors.Is(err, codec.ErrNotFound) {
		t.Errorf("Delete(absent) error = %v, want ErrNotFound", err)
	}

	if err := s.Delete(42); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n := len(s.Records()); n != 0 {
		t.Errorf("len(Records()) after delete = %d, want 0", n)
	}
}

func TestStore_DeleteKeepsIndexConsistent(t *testing.T) {
	s := NewStore(PES2021)
	for id := 1; id <= 3; id++ {
		if err := s.Create(codec.Upsert{CommentaryID: id, PlayerName: "P"}); err != nil {
			t.Fatalf("Create(%d) error = %v", id, err)
		}
	}

	if err := s.Delete(1); err != nil {
		t.Fatalf("Delete(1) error = %v", err)
	}
	if err := s.Update(codec.Upsert{CommentaryID: 3, PlayerName: "Last"}); err != nil {
		t.Fatalf("Update(3) error = %v", err)
	}

	recs := s.Records()
	if recs[1].PlayerName != "Last" || recs[1].CommentaryName != "cmt_pl_000003" {
		t.Errorf("Records()[1] = %+v, want cmt_pl_000003/Last", recs[1])
	}
}

func TestStore_PlayerNameWidth(t *testing.T) {
	tests := []struct {
		name    string
		player  string
		wantErr bool
	}{
		{name: "ascii", player: strings.Repeat("a", 48)},
		{name: "two byte runes", player: strings.Repeat("é", 48)},
		{name: "four byte runes", player: strings.Repeat("\U0001F3C6", 48)},
		{name: "over field width", player: strings.Repeat("a", playerWidth+1), wantErr: true},
	}

	for _, cfg := range []Config{PES2017, PES2021} {
		for _, tt := range tests {
			t.Run(string(cfg.Magic[:])+"/"+tt.name, func(t *testing.T) {
				s := NewStore(cfg)
				err := s.Create(codec.Upsert{CommentaryID: 5, PlayerName: tt.player})
				if tt.wantErr {
					if !errors.Is(err, codec.ErrFieldTooLong) {
						t.Errorf("Create() error = %v, want ErrFieldTooLong", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("Create() error = %v", err)
				}

				data, err := s.Serialize()
				if err != nil {
					t.Fatalf("Serialize() error = %v", err)
				}
				back, err := Decode(cfg, data)
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if got := back.Records()[0].PlayerName; got != tt.player {
					t.Errorf("PlayerName = %q, want %q", got, tt.player)
				}
			})
		}
	}
}

func TestEncode_FieldTooLong(t *testing.T) {
	_, err := Encode(PES2017, []codec.Record{{CommentaryName: "cmt_000001", PlayerName: strings.Repeat("x", playerWidth+1)}})
	if !errors.Is(err, codec.ErrFieldTooLong) {
		t.Errorf("Encode() error = %v, want ErrFieldTooLong", err)
	}
}

func TestCodec_ParseViaPreset(t *testing.T) {
	preset, ok := codec.Lookup("2021")
	if !ok {
		t.Fatal("preset 2021 not registered")
	}

	data, err := Encode(PES2021, []codec.Record{{CommentaryName: "cmt_pl_000009", PlayerName: "Nine"}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	store, err := codec.Parse(context.Background(), data, preset)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	out, err := store.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if string(out) != string(data) {
		t.Error("Serialize() output differs from parsed input")
	}

	_, err = codec.Parse(context.Background(), []byte("nope"), preset)
	var de *codec.DecodeError
	if !errors.As(err, &de) {
		t.Errorf("Parse(garbage) error = %v, want *DecodeError", err)
	}
}
