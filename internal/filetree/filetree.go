// Package filetree models a project's source files as a plain recursive
// tree of directories and text files.
//
// Wire shape:
//
//	{ "<name>": {"file": {"contents": "..."}} | {"children": { ...same shape }} }
//
// The browser runtime's spelling "directory" is accepted in place of
// "children" on input; output always uses "children".
//
// A Tree is treated as immutable once built: Set and Merge return new trees
// that share every untouched subtree with the receiver.
package filetree

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidTree = errors.New("invalid file tree")
	ErrNotAFile    = errors.New("path is not an existing file")
)

// File is a leaf holding text content.
type File struct {
	Contents string `json:"contents"`
}

// Node is either a file (File != nil) or a directory (Children != nil).
type Node struct {
	File     *File
	Children Tree
}

// Tree maps a path segment to its node.
type Tree map[string]Node

// IsDir reports whether n is a directory.
func (n Node) IsDir() bool { return n.File == nil }

func (n Node) MarshalJSON() ([]byte, error) {
	if n.File != nil {
		return json.Marshal(struct {
			File *File `json:"file"`
		}{n.File})
	}
	children := n.Children
	if children == nil {
		children = Tree{}
	}
	return json.Marshal(struct {
		Children Tree `json:"children"`
	}{children})
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || raw == nil {
		return fmt.Errorf("%w: node must be an object", ErrInvalidTree)
	}

	fileRaw, hasFile := raw["file"]
	dirRaw, hasDir := raw["children"]
	if d, ok := raw["directory"]; ok {
		if hasDir {
			return fmt.Errorf("%w: both children and directory present", ErrInvalidTree)
		}
		dirRaw, hasDir = d, true
	}

	switch {
	case hasFile && hasDir:
		return fmt.Errorf("%w: node is both a file and a directory", ErrInvalidTree)
	case hasFile:
		var f File
		if err := json.Unmarshal(fileRaw, &f); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTree, err)
		}
		*n = Node{File: &f}
	case hasDir:
		var children Tree
		if err := json.Unmarshal(dirRaw, &children); err != nil {
			return err
		}
		if children == nil {
			children = Tree{}
		}
		*n = Node{Children: children}
	default:
		return fmt.Errorf("%w: node has neither file nor children", ErrInvalidTree)
	}
	return nil
}

func (t *Tree) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*t = nil
		return nil
	}
	var m map[string]Node
	if err := json.Unmarshal(b, &m); err != nil {
		var target *json.UnmarshalTypeError
		if errors.As(err, &target) {
			return fmt.Errorf("%w: %v", ErrInvalidTree, err)
		}
		return err
	}
	for name := range m {
		if err := validName(name); err != nil {
			return err
		}
	}
	*t = Tree(m)
	return nil
}

// Decode parses a wire-shaped tree. A null or empty document yields an
// empty, non-nil tree.
func Decode(b []byte) (Tree, error) {
	var t Tree
	if len(bytes.TrimSpace(b)) == 0 {
		return Tree{}, nil
	}
	if err := json.Unmarshal(b, &t); err != nil {
		if errors.Is(err, ErrInvalidTree) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	if t == nil {
		t = Tree{}
	}
	return t, nil
}

// Value stores the tree as JSON.
func (t Tree) Value() (driver.Value, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

// Scan reads a JSON column.
func (t *Tree) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*t = Tree{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("filetree: cannot scan %T", src)
	}
	decoded, err := Decode(b)
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}

// Validate checks names and node shape for trees built in code.
func (t Tree) Validate() error {
	for name, n := range t {
		if err := validName(name); err != nil {
			return err
		}
		if n.File != nil && n.Children != nil {
			return fmt.Errorf("%w: %q is both a file and a directory", ErrInvalidTree, name)
		}
		if n.File == nil {
			if err := n.Children.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func validName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: bad name %q", ErrInvalidTree, name)
	case strings.Contains(name, "/"):
		return fmt.Errorf("%w: name %q contains a path separator", ErrInvalidTree, name)
	}
	return nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Get returns the file at a "/"-joined path.
func (t Tree) Get(path string) (File, bool) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return File{}, false
	}
	cur := t
	for i, seg := range segs {
		n, ok := cur[seg]
		if !ok {
			return File{}, false
		}
		if i == len(segs)-1 {
			if n.File == nil {
				return File{}, false
			}
			return *n.File, true
		}
		if n.File != nil {
			return File{}, false
		}
		cur = n.Children
	}
	return File{}, false
}

// Set returns a copy of t with the file at path holding contents. Only
// already existing files can be set; every subtree off the edited path is
// shared with t.
func (t Tree) Set(path string, contents string) (Tree, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, ErrNotAFile
	}
	return t.set(segs, contents)
}

func (t Tree) set(segs []string, contents string) (Tree, error) {
	n, ok := t[segs[0]]
	if !ok {
		return nil, ErrNotAFile
	}

	var replacement Node
	if len(segs) == 1 {
		if n.File == nil {
			return nil, ErrNotAFile
		}
		replacement = Node{File: &File{Contents: contents}}
	} else {
		if n.File != nil {
			return nil, ErrNotAFile
		}
		child, err := n.Children.set(segs[1:], contents)
		if err != nil {
			return nil, err
		}
		replacement = Node{Children: child}
	}

	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = v
	}
	out[segs[0]] = replacement
	return out, nil
}

// Merge overlays other onto t. Files in other win; when other has a file
// where t has a directory (or the reverse), other's node replaces t's.
func (t Tree) Merge(other Tree) Tree {
	out := make(Tree, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, theirs := range other {
		ours, ok := out[k]
		if ok && ours.IsDir() && theirs.IsDir() {
			out[k] = Node{Children: ours.Children.Merge(theirs.Children)}
			continue
		}
		out[k] = theirs
	}
	return out
}

// Clone deep-copies t.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, n := range t {
		if n.File != nil {
			f := *n.File
			out[k] = Node{File: &f}
		} else {
			out[k] = Node{Children: n.Children.Clone()}
		}
	}
	return out
}

// Equal compares structure and contents. Nil and empty trees are equal.
func (t Tree) Equal(other Tree) bool {
	if len(t) != len(other) {
		return false
	}
	for k, a := range t {
		b, ok := other[k]
		if !ok || a.IsDir() != b.IsDir() {
			return false
		}
		if a.IsDir() {
			if !a.Children.Equal(b.Children) {
				return false
			}
		} else if a.File.Contents != b.File.Contents {
			return false
		}
	}
	return true
}

// Walk calls fn for every node in lexical path order, a directory before
// its contents.
func (t Tree) Walk(fn func(path string, n Node) error) error {
	return t.walk("", fn)
}

func (t Tree) walk(prefix string, fn func(path string, n Node) error) error {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		n := t[name]
		p := name
		if prefix != "" {
			p = prefix + "/" + name
		}
		if err := fn(p, n); err != nil {
			return err
		}
		if n.IsDir() {
			if err := n.Children.walk(p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Paths lists every file path in sort.Strings order. Walk order differs
// when a name sorts below "/", e.g. "a-b" against "a/b".
func (t Tree) Paths() []string {
	var out []string
	_ = t.Walk(func(p string, n Node) error {
		if !n.IsDir() {
			out = append(out, p)
		}
		return nil
	})
	sort.Strings(out)
	return out
}
