package storage

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/elijahthis/pitscrapy/internal/shared"
)

const SourceKey = "source_code.html"

// Artifact describes one written output: its directory, file and size.
type Artifact struct {
	Key   string
	Dir   string
	Path  string
	Bytes int
}

// Outcome is the result of persisting one category. Err is
// shared.ErrEmptyResult when there was nothing to write.
type Outcome struct {
	Category shared.Category
	Count    int
	Artifact Artifact
	Err      error
}

// Persister maps result sets onto the output layout of a Storage.
type Persister struct {
	store shared.Storage
	paths func(key string) string
}

// NewPersister writes through store. When store is a *FileStorage (or a
// MultiStorage led by one) artifacts report real file paths.
func NewPersister(store shared.Storage) *Persister {
	p := &Persister{store: store, paths: func(key string) string { return key }}

	switch s := store.(type) {
	case *FileStorage:
		p.paths = s.Path
	case *MultiStorage:
		if fs, ok := s.primary.(*FileStorage); ok {
			p.paths = fs.Path
		}
	}
	return p
}

// Persist writes values as <category>/<category>_found<ext>, one entry per
// line. An empty set writes nothing and returns shared.ErrEmptyResult.
func (p *Persister) Persist(ctx context.Context, c shared.Category, values []string) (Artifact, error) {
	if len(values) == 0 {
		return Artifact{}, shared.ErrEmptyResult
	}

	return p.save(ctx, c.Key(), []byte(joinLines(values)))
}

// PersistSource writes the raw page markup unmodified.
func (p *Persister) PersistSource(ctx context.Context, raw []byte) (Artifact, error) {
	return p.save(ctx, SourceKey, raw)
}

// PersistAll writes each category independently; a failure on one does
// not stop the others.
func (p *Persister) PersistAll(ctx context.Context, res shared.Results, cats ...shared.Category) []Outcome {
	if len(cats) == 0 {
		cats = shared.AllCategories()
	}

	outcomes := make([]Outcome, 0, len(cats))
	for _, c := range cats {
		values := res.Get(c)
		art, err := p.Persist(ctx, c, values)
		outcomes = append(outcomes, Outcome{
			Category: c,
			Count:    len(values),
			Artifact: art,
			Err:      err,
		})
	}
	return outcomes
}

func (p *Persister) save(ctx context.Context, key string, data []byte) (Artifact, error) {
	fullPath := p.paths(key)
	art := Artifact{
		Key:   key,
		Dir:   filepath.Dir(fullPath),
		Path:  fullPath,
		Bytes: len(data),
	}

	if err := p.store.Save(ctx, key, data); err != nil {
		return art, &shared.StorageError{Key: key, Err: err}
	}
	return art, nil
}

func joinLines(values []string) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return b.String()
}
