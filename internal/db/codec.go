package db

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/config"
)

const commaSeparator = ","

// BookmarkCodec converts a bookmark sequence to and from the users.bookmarks
// column. Both codecs store the empty sequence as "".
type BookmarkCodec interface {
	Encode(bookmarks []string) (string, error)
	Decode(raw string) ([]string, error)
}

func NewBookmarkCodec(cfg *config.Config) BookmarkCodec {
	if cfg.BookmarkCodec == config.CodecComma {
		return CommaCodec{}
	}
	return JSONCodec{}
}

// CommaCodec joins entries with a comma. Entries containing a comma come back
// split into several entries.
type CommaCodec struct{}

func (CommaCodec) Encode(bookmarks []string) (string, error) {
	return strings.Join(bookmarks, commaSeparator), nil
}

func (CommaCodec) Decode(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	return strings.Split(raw, commaSeparator), nil
}

// JSONCodec stores a JSON array. Values that are not a JSON array are read as
// comma-joined, so most rows written by CommaCodec stay readable. A comma row
// that is itself a valid JSON array, such as the single bookmark ["x"], is
// read as JSON and comes back as x.
type JSONCodec struct{}

func (JSONCodec) Encode(bookmarks []string) (string, error) {
	if len(bookmarks) == 0 {
		return "", nil
	}
	b, err := json.Marshal(bookmarks)
	if err != nil {
		return "", errors.Wrap(err, "marshal bookmarks")
	}
	return string(b), nil
}

func (JSONCodec) Decode(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	bookmarks := make([]string, 0)
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &bookmarks) == nil {
		return bookmarks, nil
	}
	return CommaCodec{}.Decode(raw)
}
