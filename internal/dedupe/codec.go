package dedupe

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/thebtf/feeddedup/pkg/models"
)

// ErrMalformedInput marks a payload that is not a JSON object of string arrays.
var ErrMalformedInput = errors.New("malformed input")

// ParseFeed decodes a JSON object mapping source names to arrays of strings.
// A null array is an empty source; null elements, non-string elements and
// anything other than a single object are rejected.
func ParseFeed(data []byte) (models.Feed, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedInput)
	}

	var raw map[string][]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected an object of source names", ErrMalformedInput)
	}

	feed := make(models.Feed, len(raw))
	for source, items := range raw {
		texts := make([]string, 0, len(items))
		for i, item := range items {
			if item == nil {
				return nil, fmt.Errorf("%w: source %q item %d is null", ErrMalformedInput, source, i)
			}
			texts = append(texts, *item)
		}
		feed[source] = texts
	}
	return feed, nil
}

// EncodeFeed encodes feed in the same shape ParseFeed accepts.
func EncodeFeed(feed models.Feed) ([]byte, error) {
	out := make(models.Feed, len(feed))
	for source, items := range feed {
		if items == nil {
			items = []string{}
		}
		out[source] = items
	}
	return json.Marshal(out)
}
