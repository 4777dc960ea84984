// Package source reads documents out of the v3 store: a hierarchical
// document database queried over its REST API. The Reader contract covers
// filter-by-field, order-by-field and offset/limit pagination, returning
// schemaless documents whose values are already decoded to plain Go types.
package source

import (
	"context"
	"time"
)

// Document is one source-store document with its fields decoded.
type Document struct {
	ID         string
	Fields     map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// Filter is a single field comparison. Op is one of ==, <, <=, >, >=.
type Filter struct {
	Field string
	Op    string
	Value any
}

type Options struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Offset  int
	Limit   int
}

type Reader interface {
	Query(ctx context.Context, collection string, opts Options) ([]Document, error)
}

// Pager turns a Reader into a restartable lazy sequence of pages. The
// cursor is a plain offset over a stable sort order, so a run can resume
// from a checkpoint without re-reading earlier pages. Call sites iterate
// pages; swapping in true streaming later would not change them.
type Pager struct {
	reader     Reader
	collection string
	opts       Options
	pageSize   int
	offset     int
	exhausted  bool
}

func NewPager(reader Reader, collection string, opts Options, pageSize int) *Pager {
	return NewPagerAt(reader, collection, opts, pageSize, 0)
}

// NewPagerAt starts the sequence at a previously checkpointed offset.
func NewPagerAt(reader Reader, collection string, opts Options, pageSize, offset int) *Pager {
	if pageSize < 1 {
		pageSize = 200
	}
	if offset < 0 {
		offset = 0
	}
	return &Pager{reader: reader, collection: collection, opts: opts, pageSize: pageSize, offset: offset}
}

// Next returns the next page, or (nil, nil) when the sequence is done.
func (p *Pager) Next(ctx context.Context) ([]Document, error) {
	if p.exhausted {
		return nil, nil
	}

	opts := p.opts
	opts.Offset = p.offset
	opts.Limit = p.pageSize

	docs, err := p.reader.Query(ctx, p.collection, opts)
	if err != nil {
		return nil, err
	}
	p.offset += len(docs)
	if len(docs) < p.pageSize {
		p.exhausted = true
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs, nil
}

// Offset is the cursor position after the last returned page; persist it
// to make the sequence restartable.
func (p *Pager) Offset() int {
	return p.offset
}
