// Package binlist is the bundled commentary list codec.
//
// A file is a fixed header, a run of fixed-width records and a CRC-32
// trailer:
//
//	magic    [4]byte  preset magic
//	version  uint16   little endian
//	count    uint32   little endian
//	records  count * (NameWidth + PlayerWidth) bytes, NUL padded
//	crc32    uint32   IEEE checksum of everything before it
//
// The commentary name is the preset's NamePrefix followed by the six-digit,
// zero-padded commentary id.
package binlist

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"unicode/utf8"

	"github.com/JonMunkholm/cpleditor/internal/codec"
)

const (
	headerSize  = 4 + 2 + 4
	trailerSize = 4
	idDigits    = 6
	maxID       = 999999
)

var (
	errTruncated   = errors.New("file is truncated")
	errBadMagic    = errors.New("unrecognized file magic")
	errBadChecksum = errors.New("checksum mismatch")
)

// Config describes one format version. It is the opaque token stored in
// codec.Preset.Config.
type Config struct {
	Magic       [4]byte
	Version     uint16
	NamePrefix  string
	NameWidth   int
	PlayerWidth int
}

func (c Config) recordSize() int {
	return c.NameWidth + c.PlayerWidth
}

// Codec implements codec.Codec for Config presets.
type Codec struct{}

// Parse decodes data using config, which must be a Config.
func (Codec) Parse(ctx context.Context, data []byte, config any) (codec.Store, error) {
	cfg, ok := config.(Config)
	if !ok {
		return nil, fmt.Errorf("binlist: unexpected config type %T", config)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Decode(cfg, data)
}

type entry struct {
	rec codec.Record
	id  int
}

// Store is the decoded record set of one file.
type Store struct {
	cfg     Config
	entries []entry
	index   map[int]int // commentary id -> position in entries
}

// NewStore returns an empty record set for cfg.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg, index: make(map[int]int)}
}

// Decode parses file bytes into a Store.
func Decode(cfg Config, data []byte) (*Store, error) {
	if len(data) < headerSize+trailerSize {
		return nil, errTruncated
	}
	if !bytes.Equal(data[:4], cfg.Magic[:]) {
		return nil, errBadMagic
	}

	body := data[:len(data)-trailerSize]
	want := binary.LittleEndian.Uint32(data[len(data)-trailerSize:])
	if crc32.ChecksumIEEE(body) != want {
		return nil, errBadChecksum
	}

	version := binary.LittleEndian.Uint16(data[4:6])
	if version != cfg.Version {
		return nil, fmt.Errorf("unsupported version %d (want %d)", version, cfg.Version)
	}

	count := int(binary.LittleEndian.Uint32(data[6:10]))
	size := cfg.recordSize()
	if len(body)-headerSize != count*size {
		return nil, fmt.Errorf("%w: header declares %d records, body holds %d bytes",
			errTruncated, count, len(body)-headerSize)
	}

	s := NewStore(cfg)
	s.entries = make([]entry, 0, count)
	for i := 0; i < count; i++ {
		off := headerSize + i*size
		name := trimField(body[off : off+cfg.NameWidth])
		player := trimField(body[off+cfg.NameWidth : off+size])

		if !utf8.ValidString(player) {
			return nil, fmt.Errorf("record %d: player name is not valid UTF-8", i)
		}
		id, err := idFromName(name)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := s.index[id]; dup {
			return nil, fmt.Errorf("record %d: %w: %d", i, codec.ErrDuplicateIdentifier, id)
		}

		s.index[id] = len(s.entries)
		s.entries = append(s.entries, entry{
			rec: codec.Record{CommentaryName: name, PlayerName: player},
			id:  id,
		})
	}

	return s, nil
}

// Encode serializes records with cfg. Records are written in order.
func Encode(cfg Config, records []codec.Record) ([]byte, error) {
	size := cfg.recordSize()
	buf := make([]byte, headerSize, headerSize+len(records)*size+trailerSize)
	copy(buf[:4], cfg.Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], cfg.Version)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(len(records)))

	for i, rec := range records {
		if len(rec.CommentaryName) > cfg.NameWidth {
			return nil, fmt.Errorf("record %d: %w: commentary name exceeds %d bytes", i, codec.ErrFieldTooLong, cfg.NameWidth)
		}
		if len(rec.PlayerName) > cfg.PlayerWidth {
			return nil, fmt.Errorf("record %d: %w: player name exceeds %d bytes", i, codec.ErrFieldTooLong, cfg.PlayerWidth)
		}
		buf = appendField(buf, rec.CommentaryName, cfg.NameWidth)
		buf = appendField(buf, rec.PlayerName, cfg.PlayerWidth)
	}

	return binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf)), nil
}

// Records returns the ordered record set.
func (s *Store) Records() []codec.Record {
	out := make([]codec.Record, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.rec
	}
	return out
}

// Create appends a record for data.CommentaryID.
func (s *Store) Create(data codec.Upsert) error {
	if err := s.checkUpsert(data); err != nil {
		return err
	}
	if _, exists := s.index[data.CommentaryID]; exists {
		return fmt.Errorf("%w: %d", codec.ErrDuplicateIdentifier, data.CommentaryID)
	}

	s.index[data.CommentaryID] = len(s.entries)
	s.entries = append(s.entries, entry{
		rec: codec.Record{
			CommentaryName: s.nameFor(data.CommentaryID),
			PlayerName:     data.PlayerName,
		},
		id: data.CommentaryID,
	})
	return nil
}

// Update replaces the player name of an existing record.
func (s *Store) Update(data codec.Upsert) error {
	pos, ok := s.index[data.CommentaryID]
	if !ok {
		return fmt.Errorf("%w: %d", codec.ErrNotFound, data.CommentaryID)
	}
	if err := s.checkUpsert(data); err != nil {
		return err
	}

	s.entries[pos].rec.PlayerName = data.PlayerName
	return nil
}

// Delete removes the record with the given commentary id.
func (s *Store) Delete(commentaryID int) error {
	pos, ok := s.index[commentaryID]
	if !ok {
		return fmt.Errorf("%w: %d", codec.ErrNotFound, commentaryID)
	}

	s.entries = append(s.entries[:pos], s.entries[pos+1:]...)
	delete(s.index, commentaryID)
	for i := pos; i < len(s.entries); i++ {
		s.index[s.entries[i].id] = i
	}
	return nil
}

// Serialize encodes the current record set.
func (s *Store) Serialize() ([]byte, error) {
	return Encode(s.cfg, s.Records())
}

func (s *Store) checkUpsert(data codec.Upsert) error {
	if data.CommentaryID < 0 || data.CommentaryID > maxID {
		return fmt.Errorf("commentary id %d out of range", data.CommentaryID)
	}
	if len(data.PlayerName) > s.cfg.PlayerWidth {
		return fmt.Errorf("%w: player name exceeds %d bytes", codec.ErrFieldTooLong, s.cfg.PlayerWidth)
	}
	return nil
}

func (s *Store) nameFor(id int) string {
	return fmt.Sprintf("%s%0*d", s.cfg.NamePrefix, idDigits, id)
}

func idFromName(name string) (int, error) {
	if len(name) < idDigits {
		return 0, fmt.Errorf("commentary name %q is shorter than %d characters", name, idDigits)
	}
	tail := name[len(name)-idDigits:]
	for i := 0; i < len(tail); i++ {
		if tail[i] < '0' || tail[i] > '9' {
			return 0, fmt.Errorf("commentary name %q does not end in %d digits", name, idDigits)
		}
	}
	return strconv.Atoi(tail)
}

func trimField(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

func appendField(buf []byte, s string, width int) []byte {
	buf = append(buf, s...)
	for i := len(s); i < width; i++ {
		buf = append(buf, 0)
	}
	return buf
}
