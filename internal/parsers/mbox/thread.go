package mbox

import "strings"

// ThreadGraph links messages into reply threads using In-Reply-To and
// References. Every walk keeps a visited set, so cyclic references
// produced by broken clients terminate.
type ThreadGraph struct {
	parent   map[string]string
	messages map[string]bool
	order    []string
}

// NewThreadGraph creates an empty graph.
func NewThreadGraph() *ThreadGraph {
	return &ThreadGraph{
		parent:   make(map[string]string),
		messages: make(map[string]bool),
	}
}

// Add records a message and its reply links.
func (g *ThreadGraph) Add(messageID, inReplyTo string, references []string) {
	id := normaliseMessageID(messageID)
	if id == "" {
		return
	}
	if !g.messages[id] {
		g.messages[id] = true
		g.order = append(g.order, id)
	}

	refs := make([]string, 0, len(references))
	for _, r := range references {
		if r = normaliseMessageID(r); r != "" {
			refs = append(refs, r)
		}
	}
	for i := 1; i < len(refs); i++ {
		g.link(refs[i], refs[i-1])
	}

	parent := normaliseMessageID(inReplyTo)
	if parent == "" && len(refs) > 0 {
		parent = refs[len(refs)-1]
	}
	g.link(id, parent)
}

// link sets child's parent unless it already has one or the link would
// close a cycle.
func (g *ThreadGraph) link(child, parent string) {
	if parent == "" || child == parent {
		return
	}
	if _, ok := g.parent[child]; ok {
		return
	}
	visited := map[string]bool{child: true}
	for p := parent; p != ""; p = g.parent[p] {
		if visited[p] {
			return
		}
		visited[p] = true
	}
	g.parent[child] = parent
}

// Root returns the topmost known ancestor of a message.
func (g *ThreadGraph) Root(messageID string) string {
	id := normaliseMessageID(messageID)
	if id == "" {
		return ""
	}
	visited := map[string]bool{}
	for {
		visited[id] = true
		p, ok := g.parent[id]
		if !ok || visited[p] {
			return id
		}
		id = p
	}
}

// ThreadRoot returns the thread root for a message seen by the parser,
// or "" for unknown ids.
func (g *ThreadGraph) ThreadRoot(messageID string) string {
	id := normaliseMessageID(messageID)
	if !g.messages[id] {
		return ""
	}
	return g.Root(id)
}

// Threads groups every added message by thread root. Threads are ordered by
// the first appearance of any member, members by appearance.
func (g *ThreadGraph) Threads() [][]string {
	index := make(map[string]int)
	var threads [][]string
	for _, id := range g.order {
		root := g.Root(id)
		i, ok := index[root]
		if !ok {
			i = len(threads)
			index[root] = i
			threads = append(threads, nil)
		}
		threads[i] = append(threads[i], id)
	}
	return threads
}

// Len returns the number of messages added.
func (g *ThreadGraph) Len() int {
	return len(g.order)
}

func normaliseMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// parseReferences splits a References header into message ids.
func parseReferences(header string) []string {
	var refs []string
	for _, f := range strings.Fields(header) {
		if id := normaliseMessageID(f); id != "" {
			refs = append(refs, id)
		}
	}
	return refs
}
