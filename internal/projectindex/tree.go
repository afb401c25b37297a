package projectindex

import (
	"sort"
	"strings"
)

const (
	treeIndent = "    "
	// rootLabel names the namespace of files that sit directly under a prefix.
	rootLabel = "(default)"
)

// ToTree renders the namespace forest with four-space indentation. Each
// namespace line ends with "/", followed by its files, then its
// sub-namespaces in sorted order.
func (x *Index) ToTree() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var b strings.Builder
	writeTree(&b, x.tree, "")
	return b.String()
}

func writeTree(b *strings.Builder, level map[string]*Namespace, prefix string) {
	keys := make([]string, 0, len(level))
	for k := range level {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n := level[k]
		label := n.Path
		if label == "" {
			label = rootLabel
		}
		b.WriteString(prefix + label + "/\n")
		for _, f := range n.Files {
			b.WriteString(prefix + treeIndent + f + "\n")
		}
		writeTree(b, n.Children, prefix+treeIndent)
	}
}

// StaticNotes renders every namespace summary in path order. It is part of
// the context reused across conversation rounds.
func (x *Index) StaticNotes() string {
	notes := x.NamespaceSummaries()
	keys := make([]string, 0, len(notes))
	for k, v := range notes {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		label := k
		if label == "" {
			label = rootLabel
		}
		b.WriteString("Package: " + label + "\n" + notes[k] + "\n\n")
	}
	return b.String()
}

// FileNotes renders the summary of every summarized file in path order.
func (x *Index) FileNotes() string {
	files := x.Files()
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	var b strings.Builder
	for _, f := range files {
		if f.Summary == "" {
			continue
		}
		b.WriteString("File: " + f.Path + "\n" + f.Summary + "\n\n")
	}
	return b.String()
}
