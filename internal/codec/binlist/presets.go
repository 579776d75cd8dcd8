package binlist

import (
	"unicode/utf8"

	"github.com/JonMunkholm/cpleditor/internal/codec"
)

// playerWidth fits 48 characters of up to four UTF-8 bytes each.
const playerWidth = 48 * utf8.UTFMax

// PES2017 is the format used by PES 2017 commentary lists.
var PES2017 = Config{
	Magic:       [4]byte{'C', 'P', 'L', '7'},
	Version:     1,
	NamePrefix:  "cmt_",
	NameWidth:   16,
	PlayerWidth: playerWidth,
}

// PES2021 is the format used by PES 2021 commentary lists.
var PES2021 = Config{
	Magic:       [4]byte{'C', 'P', 'L', '1'},
	Version:     2,
	NamePrefix:  "cmt_pl_",
	NameWidth:   24,
	PlayerWidth: playerWidth,
}

func init() {
	codec.Register(codec.Preset{Key: "2017", Label: "PES 2017", Codec: Codec{}, Config: PES2017})
	codec.Register(codec.Preset{Key: "2021", Label: "PES 2021", Codec: Codec{}, Config: PES2021})
}
