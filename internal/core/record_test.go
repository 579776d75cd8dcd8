package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDeriveID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "prefixed name", input: "ABC000001", want: 1},
		{name: "leading zeros", input: "cmt_pl_000420", want: 420},
		{name: "exactly six digits", input: "123456", want: 123456},
		{name: "max id", input: "X999999", want: 999999},
		{name: "zero", input: "X000000", want: 0},
		{name: "digits in prefix ignored", input: "77X000003", want: 3},
		{name: "empty", input: "", wantErr: true},
		{name: "shorter than six", input: "12345", wantErr: true},
		{name: "letter in tail", input: "X00001b", wantErr: true},
		{name: "sign in tail", input: "X-00001", wantErr: true},
		{name: "space in tail", input: "X 00001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveID(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedName) {
					t.Fatalf("DeriveID(%q) error = %v, want ErrMalformedName", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DeriveID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("DeriveID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestDeriveID_RoundTripsFormattedIDs(t *testing.T) {
	for _, id := range []int{0, 1, 9, 10, 4242, 100000, MaxCommentaryID} {
		name := fmt.Sprintf("cmt_%06d", id)
		got, err := DeriveID(name)
		if err != nil {
			t.Fatalf("DeriveID(%q): %v", name, err)
		}
		if got != id {
			t.Errorf("DeriveID(%q) = %d, want %d", name, got, id)
		}
	}
}

func TestRecordID_Malformed(t *testing.T) {
	id, ok := RecordID(rec("bad", "Nobody"))
	if ok {
		t.Fatal("RecordID ok = true for malformed name")
	}
	if id != -1 {
		t.Errorf("RecordID = %d, want -1", id)
	}
}
