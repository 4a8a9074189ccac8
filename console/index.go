package console

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Querier is the slice of the Console the index needs: fire a command,
// get exactly its output back.
type Querier interface {
	Query(command string) ([]string, error)
}

// CvarRecord is one console variable from the engine's listing. Flags
// is whatever followed the name, kept verbatim for display only.
type CvarRecord struct {
	Name  string
	Flags string
}

// EntityRecord pairs a live entity's targetname with its class.
type EntityRecord struct {
	Name  string
	Class string
}

// Index answers completion queries. The CVAR side is loaded once at
// startup and kept for the process lifetime; entities are deliberately
// not cached here because the live entity set changes as the game
// world changes (see QueryEntities).
type Index struct {
	mu    sync.RWMutex
	cvars map[string]CvarRecord
}

// NewIndex returns an empty index. Empty is a valid state: lookups
// just return no candidates.
func NewIndex() *Index {
	return &Index{cvars: make(map[string]CvarRecord)}
}

// LoadCvars issues the listing command and rebuilds the CVAR mapping
// from its output. On failure the existing contents are left alone so
// completion degrades instead of going blank.
func (ix *Index) LoadCvars(q Querier, listCommand string) error {
	lines, err := q.Query(listCommand)
	if err != nil {
		return err
	}

	recs := ParseCvarList(lines)
	ix.mu.Lock()
	ix.cvars = recs
	ix.mu.Unlock()
	return nil
}

// CvarNames returns every loaded name with the given prefix, sorted
// ascending. Matching is case-sensitive: keys are the exact tokens the
// engine emitted.
func (ix *Index) CvarNames(prefix string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var names []string
	for name := range ix.cvars {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Cvar looks up a single record.
func (ix *Index) Cvar(name string) (CvarRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec, ok := ix.cvars[name]
	return rec, ok
}

// Len returns the number of loaded CVARs.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.cvars)
}

// ParseCvarList turns cvarlist output into records. The format is
// tolerant by necessity: the first whitespace-delimited token is the
// name, the remainder is kept verbatim. Blank lines, headers, and
// summary lines ("# 2 total", "523 total convars") are skipped, never
// fatal — a partial index is still a usable index.
func ParseCvarList(lines []string) map[string]CvarRecord {
	recs := make(map[string]CvarRecord)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := strings.TrimSuffix(fields[0], ":")
		if !cvarToken(name) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		recs[name] = CvarRecord{Name: name, Flags: rest}
	}
	return recs
}

// cvarToken reports whether s looks like a console variable or command
// name. Engine names start with a letter or underscore ("sv_cheats",
// "_restart") or a +/- bind prefix ("+attack"); comment markers and
// count summaries do not.
func cvarToken(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '+', c == '-':
		return true
	}
	return false
}

// entityLine matches the engine's find_ent output, one pair per line:
//
//	'prop_physics' : 'chamber_door01'
//
// with the class name first and the targetname second.
var entityLine = regexp.MustCompile(`'(.*?)'\s*:\s*'(.*?)'`)

// EntityBatch holds the result of one entity listing query. It is
// request-scoped: built fresh for each completion context that needs
// it, then discarded, trading recomputation for correctness against a
// live, changing entity set.
type EntityBatch struct {
	byName map[string]EntityRecord
}

// ParseEntityList parses find_ent output. Lines that do not match the
// quoted-pair shape are skipped. A name listed twice collapses to the
// last-seen record.
func ParseEntityList(lines []string) *EntityBatch {
	b := &EntityBatch{byName: make(map[string]EntityRecord)}
	for _, line := range lines {
		m := entityLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		class, name := m[1], m[2]
		if name == "" {
			continue
		}
		b.byName[name] = EntityRecord{Name: name, Class: class}
	}
	return b
}

// QueryEntities issues the entity listing command (with the prefix as
// its argument, the way find_ent filters server-side) and parses the
// captured output.
func QueryEntities(q Querier, listCommand, prefix string) (*EntityBatch, error) {
	command := listCommand
	if prefix != "" {
		command += " " + prefix
	}
	lines, err := q.Query(command)
	if err != nil {
		return nil, err
	}
	return ParseEntityList(lines), nil
}

// Len returns the number of distinct entity names in the batch.
func (b *EntityBatch) Len() int { return len(b.byName) }

// EntityNames returns targetnames matching prefix, sorted ascending.
// Entity matching is case-insensitive, like the engine's own lookups.
func (b *EntityBatch) EntityNames(prefix string) []string {
	var names []string
	lp := strings.ToLower(prefix)
	for name := range b.byName {
		if strings.HasPrefix(strings.ToLower(name), lp) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ClassNames returns class names matching prefix, deduplicated and
// sorted ascending.
func (b *EntityBatch) ClassNames(prefix string) []string {
	seen := make(map[string]bool)
	lp := strings.ToLower(prefix)
	var classes []string
	for _, rec := range b.byName {
		if rec.Class == "" || seen[rec.Class] {
			continue
		}
		if strings.HasPrefix(strings.ToLower(rec.Class), lp) {
			seen[rec.Class] = true
			classes = append(classes, rec.Class)
		}
	}
	sort.Strings(classes)
	return classes
}
