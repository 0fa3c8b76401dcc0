package jsonexport

import (
	"slices"
	"strings"
	"time"
)

// treeNode is one node of a branching conversation.
type treeNode struct {
	id       string
	parent   string
	children []string
	created  time.Time
}

// visit is a node's position in the flattened conversation.
type visit struct {
	id     string
	parent string
	branch int
	seq    int
}

// flatten orders a conversation tree for emission. Roots are taken in
// creation order and walked depth-first in pre-order, children in creation
// order with ids breaking ties. The first path is branch 0 and each
// alternative child opens a new branch. Nodes only reachable through a
// cycle are walked afterwards as extra roots, and a visited set guarantees
// termination.
func flatten(nodes map[string]*treeNode) []visit {
	children := make(map[string][]string, len(nodes))
	for id, n := range nodes {
		for _, c := range n.children {
			if _, ok := nodes[c]; ok && c != id {
				children[id] = append(children[id], c)
			}
		}
		if n.parent != "" && n.parent != id {
			if _, ok := nodes[n.parent]; ok {
				children[n.parent] = append(children[n.parent], id)
			}
		}
	}
	for id, kids := range children {
		children[id] = sortNodes(nodes, dedupe(kids))
	}

	var roots []string
	for id, n := range nodes {
		if _, ok := nodes[n.parent]; n.parent == "" || n.parent == id || !ok {
			roots = append(roots, id)
		}
	}
	roots = sortNodes(nodes, roots)

	var (
		out     = make([]visit, 0, len(nodes))
		visited = make(map[string]bool, len(nodes))
		branch  = -1
	)
	var walk func(id, parent string, br int)
	walk = func(id, parent string, br int) {
		if visited[id] {
			return
		}
		visited[id] = true
		out = append(out, visit{id: id, parent: parent, branch: br, seq: len(out)})
		for i, c := range children[id] {
			if visited[c] {
				continue
			}
			cb := br
			if i > 0 {
				branch++
				cb = branch
			}
			walk(c, id, cb)
		}
	}

	start := func(id string) {
		if visited[id] {
			return
		}
		branch++
		parent := nodes[id].parent
		if _, ok := nodes[parent]; !ok || parent == id {
			parent = ""
		}
		walk(id, parent, branch)
	}

	for _, r := range roots {
		start(r)
	}
	if len(out) < len(nodes) {
		rest := make([]string, 0, len(nodes)-len(out))
		for id := range nodes {
			if !visited[id] {
				rest = append(rest, id)
			}
		}
		for _, id := range sortNodes(nodes, rest) {
			start(id)
		}
	}
	return out
}

func sortNodes(nodes map[string]*treeNode, ids []string) []string {
	slices.SortFunc(ids, func(a, b string) int {
		if c := nodes[a].created.Compare(nodes[b].created); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
