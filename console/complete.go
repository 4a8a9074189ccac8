package console

import (
	"sort"
	"strings"
)

// CompletionContext classifies what the argument under the cursor is.
type CompletionContext int

const (
	// ContextNone: nothing recognized, no candidates.
	ContextNone CompletionContext = iota
	// ContextCommand: still typing the command word itself.
	ContextCommand
	// ContextCvar: a console variable or command name.
	ContextCvar
	// ContextEntity: an entity targetname (ent_fire and friends).
	ContextEntity
	// ContextDual: an entity name or a class name (ent_text style
	// commands accept either, and have no native completion).
	ContextDual
)

// Completer turns (input text, cursor) into an ordered candidate list.
// It is the capability interface handed to the line-editing surface:
// any editor that can call Complete is substitutable. The policy side
// is pure and stateless — it only queries the index, never mutates it;
// entity candidates come from a fresh engine query per request.
type Completer struct {
	index   *Index
	querier Querier

	entityListCommand string
	entityCommands    map[string]bool
	dualCommands      map[string]bool
}

// NewCompleter wires the trigger policy to its two candidate sources.
// entityCommands take an entity name as first argument; dualCommands
// accept an entity name or a class name.
func NewCompleter(index *Index, q Querier, entityListCommand string, entityCommands, dualCommands []string) *Completer {
	return &Completer{
		index:             index,
		querier:           q,
		entityListCommand: entityListCommand,
		entityCommands:    toSet(entityCommands),
		dualCommands:      toSet(dualCommands),
	}
}

// Classify decides which namespace is relevant for the text before the
// cursor and returns the context, the word being completed, and the
// byte offset where that word starts.
func (c *Completer) Classify(text string, cursor int) (CompletionContext, string, int) {
	if cursor > len(text) {
		cursor = len(text)
	}
	before := text[:cursor]

	start := strings.LastIndexAny(before, " \t") + 1
	word := before[start:]

	// The first word doubles as a CVAR/command name, so it completes
	// over the union of both namespaces.
	if start == 0 {
		return ContextCommand, word, start
	}

	fields := strings.Fields(before)
	if len(fields) == 0 {
		return ContextCommand, word, start
	}
	first := strings.ToLower(fields[0])

	// The entity verbs and help take their completable name as the
	// first argument only; later arguments (input names, values) are
	// outside every namespace we index.
	argIndex := len(fields)
	if word != "" {
		argIndex--
	}

	switch {
	case argIndex != 1:
		return ContextNone, word, start

	case c.dualCommands[first]:
		return ContextDual, word, start

	case c.entityCommands[first]:
		return ContextEntity, word, start

	case first == "help":
		return ContextCvar, word, start
	}

	return ContextNone, word, start
}

// Complete returns the ordered candidate list for the cursor position
// plus the offset of the word the candidates replace. Failures on the
// entity query path degrade to no candidates; completion never kills
// the shell.
func (c *Completer) Complete(text string, cursor int) ([]string, int) {
	ctx, word, start := c.Classify(text, cursor)

	switch ctx {
	case ContextCommand:
		return c.commandCandidates(word), start

	case ContextCvar:
		return c.index.CvarNames(word), start

	case ContextEntity:
		batch, err := QueryEntities(c.querier, c.entityListCommand, word)
		if err != nil {
			return nil, start
		}
		return batch.EntityNames(word), start

	case ContextDual:
		batch, err := QueryEntities(c.querier, c.entityListCommand, word)
		if err != nil {
			return nil, start
		}
		return mergeSorted(batch.EntityNames(word), batch.ClassNames(word)), start
	}

	return nil, start
}

// commandCandidates completes the fixed command verbs alongside the
// CVAR namespace (a first word may be either).
func (c *Completer) commandCandidates(prefix string) []string {
	candidates := c.index.CvarNames(prefix)
	for verb := range c.entityCommands {
		if strings.HasPrefix(verb, prefix) {
			candidates = append(candidates, verb)
		}
	}
	for verb := range c.dualCommands {
		if strings.HasPrefix(verb, prefix) {
			candidates = append(candidates, verb)
		}
	}
	if strings.HasPrefix("help", prefix) {
		candidates = append(candidates, "help")
	}
	return mergeSorted(candidates, nil)
}

// mergeSorted unions two candidate lists, deduplicated and sorted
// ascending for deterministic ordering.
func mergeSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[strings.ToLower(s)] = true
	}
	return set
}
