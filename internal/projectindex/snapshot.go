package projectindex

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Default snapshot file names inside the project root.
const (
	FilesSnapshotName     = "code_files.txt"
	NamespaceSnapshotName = "package_notes.txt"
	maxSnapshotLineBytes  = 4 << 20
)

const (
	keyFilename = "Filename:"
	keyPath     = "Path:"
	keyPackage  = "Package:"
	keyChecksum = "Checksum:"
	keySummary  = "Summary:"
	keyNotes    = "Notes:"
)

// WriteFiles writes one record per file:
//
//	Filename: A.java
//	Path: src/main/java/com/x/A.java
//	Package: com.x
//	Checksum: 1f2e...          (only when known)
//	Summary: first line
//	 more summary lines
//
// Records are separated by a blank line. Continuation lines are indented by
// one space so a summary line can never be read back as a record key.
func (x *Index) WriteFiles(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, f := range x.Files() {
		fmt.Fprintf(bw, "%s %s\n%s %s\n%s %s\n", keyFilename, f.Name, keyPath, f.Path, keyPackage, f.Namespace)
		if f.Checksum != "" {
			fmt.Fprintf(bw, "%s %s\n", keyChecksum, f.Checksum)
		}
		fmt.Fprintf(bw, "%s %s\n\n", keySummary, indentContinuation(f.Summary))
	}
	return bw.Flush()
}

// WriteNamespaces writes one "Package:/Notes:" record per namespace summary,
// sorted by path, indenting continuation lines like WriteFiles.
func (x *Index) WriteNamespaces(w io.Writer) error {
	notes := x.NamespaceSummaries()
	keys := make([]string, 0, len(notes))
	for k := range notes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	bw := bufio.NewWriter(w)
	for _, k := range keys {
		fmt.Fprintf(bw, "%s %s\n%s %s\n\n", keyPackage, k, keyNotes, indentContinuation(notes[k]))
	}
	return bw.Flush()
}

// LoadSnapshot rebuilds an index from the readers produced by WriteFiles
// and WriteNamespaces. namespaces may be nil.
func LoadSnapshot(files, namespaces io.Reader) (*Index, error) {
	entries, err := ReadFiles(files)
	if err != nil {
		return nil, err
	}
	x := &Index{files: entries, summaries: make(map[string]string)}
	if namespaces != nil {
		notes, err := ReadNamespaces(namespaces)
		if err != nil {
			return nil, err
		}
		x.summaries = notes
	}
	x.tree = generateTree(x.files, x.summaries)
	return x, nil
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxSnapshotLineBytes)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("projectindex: read snapshot: %w", err)
	}
	return lines, nil
}

func indentContinuation(text string) string {
	return strings.ReplaceAll(text, "\n", "\n ")
}

// unindent strips the continuation marker. Files written before the marker
// existed have none, and their lines are kept as they are.
func unindent(line string) string {
	return strings.TrimPrefix(line, " ")
}

func field(line, key string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, key))
}

// ReadFiles parses file records. A summary runs until the next record.
func ReadFiles(r io.Reader) ([]FileEntry, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	var out []FileEntry
	for i := 0; i < len(lines); {
		if !strings.HasPrefix(lines[i], keyFilename) {
			i++
			continue
		}
		f := FileEntry{Name: field(lines[i], keyFilename)}
		i++
		var summary []string
		inSummary := false
		for ; i < len(lines) && !strings.HasPrefix(lines[i], keyFilename); i++ {
			line := lines[i]
			switch {
			case inSummary:
				summary = append(summary, unindent(line))
			case strings.HasPrefix(line, keyPath):
				f.Path = field(line, keyPath)
			case strings.HasPrefix(line, keyPackage):
				f.Namespace = field(line, keyPackage)
			case strings.HasPrefix(line, keyChecksum):
				f.Checksum = field(line, keyChecksum)
			case strings.HasPrefix(line, keySummary):
				inSummary = true
				summary = append(summary, field(line, keySummary))
			}
		}
		f.Summary = strings.TrimSpace(strings.Join(summary, "\n"))
		out = append(out, f)
	}
	return out, nil
}

// ReadNamespaces parses namespace records into a path -> summary map.
func ReadNamespaces(r io.Reader) (map[string]string, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for i := 0; i < len(lines); {
		if !strings.HasPrefix(lines[i], keyPackage) {
			i++
			continue
		}
		path := field(lines[i], keyPackage)
		i++
		var notes []string
		for ; i < len(lines) && !strings.HasPrefix(lines[i], keyPackage); i++ {
			line := lines[i]
			if len(notes) == 0 && strings.HasPrefix(line, keyNotes) {
				line = field(line, keyNotes)
			} else {
				line = unindent(line)
			}
			notes = append(notes, line)
		}
		out[path] = strings.TrimSpace(strings.Join(notes, "\n"))
	}
	return out, nil
}
