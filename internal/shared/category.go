package shared

import "fmt"

type Category int

const (
	Links Category = iota
	Images
	Videos
	ScriptsWithSrc
	ScriptsWithoutSrc
)

func AllCategories() []Category {
	return []Category{Links, Images, Videos, ScriptsWithSrc, ScriptsWithoutSrc}
}

// Name is also the directory the category is persisted under.
func (c Category) Name() string {
	switch c {
	case Links:
		return "links"
	case Images:
		return "images"
	case Videos:
		return "videos"
	case ScriptsWithSrc:
		return "scripts_with_src"
	case ScriptsWithoutSrc:
		return "scripts_without_src"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) String() string {
	return c.Name()
}

// Ext is the file extension of the persisted result set.
func (c Category) Ext() string {
	if c == ScriptsWithoutSrc {
		return ".js"
	}
	return ".txt"
}

func (c Category) FileName() string {
	return c.Name() + "_found" + c.Ext()
}

// Key is the slash separated storage key, e.g. "links/links_found.txt".
func (c Category) Key() string {
	return c.Name() + "/" + c.FileName()
}

// Results holds every category extracted from a single document.
type Results struct {
	Links             []string
	Images            []string
	Videos            []string
	ScriptsWithSrc    []string
	ScriptsWithoutSrc []string
}

func (r Results) Get(c Category) []string {
	switch c {
	case Links:
		return r.Links
	case Images:
		return r.Images
	case Videos:
		return r.Videos
	case ScriptsWithSrc:
		return r.ScriptsWithSrc
	case ScriptsWithoutSrc:
		return r.ScriptsWithoutSrc
	}
	return nil
}

func (r Results) Total() int {
	total := 0
	for _, c := range AllCategories() {
		total += len(r.Get(c))
	}
	return total
}
