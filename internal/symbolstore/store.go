package symbolstore

import (
	"strings"
	"sync"

	edlib "github.com/hbollon/go-edlib"

	"github.com/standardbeagle/phpintel/internal/debug"
	"github.com/standardbeagle/phpintel/internal/parser"
	"github.com/standardbeagle/phpintel/internal/types"
)

// Store is the workspace symbol database: document tables plus a
// case-insensitive index of top-level declaration names. Safe for
// concurrent use; reads take the read lock only.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*types.SymbolTable
	byName map[string][]*types.Symbol
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tables: make(map[string]*types.SymbolTable),
		byName: make(map[string][]*types.Symbol),
	}
}

// IndexSource parses one document and indexes its declarations, replacing
// any previous table for the same URI.
func (s *Store) IndexSource(uri string, content []byte) error {
	p, err := parser.New()
	if err != nil {
		return err
	}
	defer p.Close()

	tree, err := p.Parse(content)
	if err != nil {
		return err
	}
	defer tree.Close()

	s.IndexTable(Extract(uri, tree.RootNode(), content))
	return nil
}

// IndexTable installs a completed document table, replacing any previous
// table for the same URI.
func (s *Store) IndexTable(table *types.SymbolTable) {
	if table == nil || table.Root == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(table.URI)
	s.tables[table.URI] = table
	for _, sym := range indexable(table.Root) {
		key := nameKey(sym.Name)
		s.byName[key] = append(s.byName[key], sym)
	}
	debug.LogIndexing("indexed %s: %d top-level symbols\n", table.URI, len(table.Root.Children))
}

// RemoveDocument drops a document's table and index entries.
func (s *Store) RemoveDocument(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(uri)
}

func (s *Store) removeLocked(uri string) {
	table, ok := s.tables[uri]
	if !ok {
		return
	}
	delete(s.tables, uri)
	for _, sym := range indexable(table.Root) {
		key := nameKey(sym.Name)
		kept := s.byName[key][:0]
		for _, existing := range s.byName[key] {
			if existing != sym {
				kept = append(kept, existing)
			}
		}
		if len(kept) == 0 {
			delete(s.byName, key)
		} else {
			s.byName[key] = kept
		}
	}
}

// indexable collects the symbols that enter the name index: top-level
// class-like types, named functions, and global constants. Members stay
// reachable only through their owning type.
func indexable(root *types.Symbol) []*types.Symbol {
	var out []*types.Symbol
	for _, sym := range root.Children {
		switch {
		case sym.Kind.IsClassLike():
			out = append(out, sym)
		case sym.Kind == types.SymbolKindFunction && sym.Name != "{closure}":
			out = append(out, sym)
		case sym.Kind == types.SymbolKindConstant:
			out = append(out, sym)
		}
	}
	return out
}

func nameKey(name string) string {
	return strings.ToLower(strings.Trim(name, "\\"))
}

// Find returns indexed declarations matching the qualified name, filtered
// by predicate. Lookup is case-insensitive, matching the language's rules
// for class and function names.
func (s *Store) Find(name string, pred func(*types.Symbol) bool) []*types.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Symbol
	for _, sym := range s.byName[nameKey(name)] {
		if pred == nil || pred(sym) {
			out = append(out, sym)
		}
	}
	return out
}

// Members returns the flattened member set of a class-like type: its own
// members plus everything reachable through base classes, interfaces, and
// traits. Inheritance cycles terminate via the visited set.
func (s *Store) Members(typeName string, pred func(*types.Symbol) bool) []*types.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Symbol
	seenType := make(map[string]bool)
	seenSym := make(map[*types.Symbol]bool)
	queue := []string{typeName}

	for len(queue) > 0 {
		key := nameKey(queue[0])
		queue = queue[1:]
		if key == "" || seenType[key] {
			continue
		}
		seenType[key] = true

		for _, decl := range s.byName[key] {
			if !decl.Kind.IsClassLike() {
				continue
			}
			for _, member := range decl.Children {
				if seenSym[member] || (pred != nil && !pred(member)) {
					continue
				}
				seenSym[member] = true
				out = append(out, member)
			}
			queue = append(queue, decl.Associated...)
		}
	}
	return out
}

// Table returns a document's declaration table, or nil.
func (s *Store) Table(uri string) *types.SymbolTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[uri]
}

// Documents returns the indexed document URIs.
func (s *Store) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tables))
	for uri := range s.tables {
		out = append(out, uri)
	}
	return out
}

// Suggest returns up to max indexed names similar to the given name, for
// did-you-mean output on failed lookups.
func (s *Store) Suggest(name string, max int) []string {
	s.mu.RLock()
	candidates := make([]string, 0, len(s.byName))
	seen := make(map[string]bool)
	for _, syms := range s.byName {
		for _, sym := range syms {
			if !seen[sym.Name] {
				seen[sym.Name] = true
				candidates = append(candidates, sym.Name)
			}
		}
	}
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return nil
	}
	matches, err := edlib.FuzzySearchSetThreshold(name, candidates, max, 0.7, edlib.JaroWinkler)
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range matches {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
