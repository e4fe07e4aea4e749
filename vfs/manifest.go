package vfs

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jathurchan/davlock/types"
)

// Manifest describes the initial tree of a filesystem instance.
//
//	readOnly: true
//	entries:
//	  - name: readme.txt
//	    content: hello
//	    contentType: text/plain
//	  - name: reports
//	    entries:
//	      - name: q1.txt
//	        content: ...
type Manifest struct {
	// ReadOnly, when set, is applied to the instance after seeding.
	ReadOnly *bool           `yaml:"readOnly,omitempty"`
	Entries  []ManifestEntry `yaml:"entries,omitempty"`
}

// ManifestEntry is a document or a collection in a Manifest. An entry is a
// collection when Type is "collection" or when it has nested entries.
type ManifestEntry struct {
	Name        string          `yaml:"name"`
	Type        string          `yaml:"type,omitempty"`
	Content     string          `yaml:"content,omitempty"`
	ContentType string          `yaml:"contentType,omitempty"`
	Entries     []ManifestEntry `yaml:"entries,omitempty"`
}

func (e ManifestEntry) kind() (types.NodeKind, error) {
	switch strings.ToLower(e.Type) {
	case "":
		if e.Entries != nil {
			return types.KindCollection, nil
		}
		return types.KindDocument, nil
	case "collection":
		return types.KindCollection, nil
	case "document":
		if len(e.Entries) > 0 {
			return types.KindDocument, fmt.Errorf("document %q cannot have entries", e.Name)
		}
		return types.KindDocument, nil
	default:
		return types.KindDocument, fmt.Errorf("entry %q has unknown type %q", e.Name, e.Type)
	}
}

// ErrInvalidManifest indicates a manifest that cannot be applied.
var ErrInvalidManifest = errors.New("vfs: invalid manifest")

// LoadManifest decodes a YAML manifest from r and seeds fsys with it.
// Seeding ignores the read-only flag so that read-only instances can be populated.
func LoadManifest(fsys *Filesystem, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return ApplyManifest(fsys, m)
}

// ApplyManifest seeds fsys with the entries of m. Existing nodes are never replaced.
func ApplyManifest(fsys *Filesystem, m Manifest) error {
	fsys.mu.Lock()
	now := fsys.clock.Now()
	err := fsys.seedLocked(fsys.root, m.Entries, now)
	fsys.mu.Unlock()
	if err != nil {
		return err
	}

	if m.ReadOnly != nil {
		fsys.SetReadOnly(*m.ReadOnly)
	}
	fsys.logger.Infow("manifest applied", "entries", len(m.Entries))
	return nil
}

func (fsys *Filesystem) seedLocked(parent *Collection, entries []ManifestEntry, now time.Time) error {
	for _, e := range entries {
		if e.Name == "" || e.Name == "." || e.Name == ".." || strings.Contains(e.Name, "/") {
			return fmt.Errorf("%w: bad entry name %q under %s", ErrInvalidManifest, e.Name, parent.path)
		}
		kind, err := e.kind()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		local := types.JoinPath(parent.path, e.Name)
		if _, exists := parent.children[e.Name]; exists {
			return newError(OpCreateDocument, local, ErrAlreadyExists)
		}

		switch kind {
		case types.KindCollection:
			c := newCollection(fsys, local, now)
			parent.children[e.Name] = c
			if err := fsys.seedLocked(c, e.Entries, now); err != nil {
				return err
			}
		case types.KindDocument:
			parent.children[e.Name] = newDocument(fsys, local, []byte(e.Content), e.ContentType, now)
		default:
			return fmt.Errorf("%w: entry %q has unknown kind", ErrInvalidManifest, e.Name)
		}
	}
	return nil
}

// DumpManifest captures the instance's own tree, excluding mounted instances.
func DumpManifest(fsys *Filesystem) Manifest {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	readOnly := fsys.readOnly
	return Manifest{
		ReadOnly: &readOnly,
		Entries:  dumpLocked(fsys.root),
	}
}

func dumpLocked(c *Collection) []ManifestEntry {
	names := c.sortedNamesLocked()
	if len(names) == 0 {
		return nil
	}
	out := make([]ManifestEntry, 0, len(names))
	for _, name := range names {
		switch n := c.children[name].(type) {
		case *Collection:
			out = append(out, ManifestEntry{Name: name, Type: "collection", Entries: dumpLocked(n)})
		case *Document:
			out = append(out, ManifestEntry{Name: name, Content: string(n.content), ContentType: n.contentType})
		}
	}
	return out
}

// WriteManifest encodes DumpManifest(fsys) as YAML to w.
func WriteManifest(fsys *Filesystem, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(DumpManifest(fsys)); err != nil {
		return err
	}
	return enc.Close()
}
