// Package models contains the data shapes that flow through a deduplication run.
package models

import (
	"fmt"
	"sort"
)

// Feed maps a source name to the text items it supplied, in supply order.
// It is both the request and the response shape.
type Feed map[string][]string

// Total returns the number of items across all sources.
func (f Feed) Total() int {
	n := 0
	for _, items := range f {
		n += len(items)
	}
	return n
}

// SourceNames returns the source names in sorted order.
func (f Feed) SourceNames() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DistinctTexts returns every distinct text in the feed, in first-seen order
// over sorted source names.
func (f Feed) DistinctTexts() []string {
	seen := make(map[string]bool)
	var texts []string
	for _, name := range f.SourceNames() {
		for _, text := range f[name] {
			if !seen[text] {
				seen[text] = true
				texts = append(texts, text)
			}
		}
	}
	return texts
}

// Item is the working shape of a text item during elimination.
type Item struct {
	Text        string
	Fingerprint []float32
}

// Source is one named source and its items in original order.
type Source struct {
	Name  string
	Items []Item
}

// SourceCollection is the working form of a Feed: every item carries its fingerprint.
type SourceCollection struct {
	Sources []Source
}

// NewSourceCollection attaches a fingerprint to every item of feed.
// fingerprints is keyed by text; a text without a fingerprint is an error.
func NewSourceCollection(feed Feed, fingerprints map[string][]float32) (*SourceCollection, error) {
	coll := &SourceCollection{Sources: make([]Source, 0, len(feed))}
	for _, name := range feed.SourceNames() {
		texts := feed[name]
		src := Source{Name: name, Items: make([]Item, 0, len(texts))}
		for _, text := range texts {
			fp, ok := fingerprints[text]
			if !ok {
				return nil, fmt.Errorf("no fingerprint for item %q of source %q", text, name)
			}
			src.Items = append(src.Items, Item{Text: text, Fingerprint: fp})
		}
		coll.Sources = append(coll.Sources, src)
	}
	return coll, nil
}

// Len returns the number of items across all sources.
func (c *SourceCollection) Len() int {
	n := 0
	for _, src := range c.Sources {
		n += len(src.Items)
	}
	return n
}

// Feed projects the collection back to text only.
// Every source is present in the result, with an empty (non-nil) slice when
// nothing survived.
func (c *SourceCollection) Feed() Feed {
	feed := make(Feed, len(c.Sources))
	for _, src := range c.Sources {
		texts := make([]string, 0, len(src.Items))
		for _, item := range src.Items {
			texts = append(texts, item.Text)
		}
		feed[src.Name] = texts
	}
	return feed
}
