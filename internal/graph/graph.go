//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/cargo
//

// Package graph reads synthesized CloudFormation template as explicit
// graph of resource descriptors. Each resource is a node identified by
// its arena index and logical id, references (Ref, Fn::GetAtt, Fn::Sub,
// DependsOn) are edges. The graph is valid if every reference resolves
// and there are no cycles.
package graph

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	ErrTemplate = errors.New("malformed template")
	ErrDangling = errors.New("dangling reference")
	ErrCycle    = errors.New("cyclic references")
)

// Node is a resource descriptor
type Node struct {
	Index int64  `json:"index" yaml:"index"`
	ID    string `json:"id" yaml:"id"`
	Type  string `json:"type" yaml:"type"`

	// logical ids of referenced resources, sorted
	Refs []string `json:"refs,omitempty" yaml:"refs,omitempty"`
}

func (n *Node) String() string { return n.ID }

type Graph struct {
	nodes   []*Node
	index   map[string]*Node
	order   []*Node
	outputs map[string]any
}

// FromTemplate builds the graph from decoded template document
func FromTemplate(template any) (*Graph, error) {
	doc, ok := template.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is %T", ErrTemplate, template)
	}

	resources, ok := doc["Resources"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: no resources", ErrTemplate)
	}

	params, _ := doc["Parameters"].(map[string]any)
	outputs, _ := doc["Outputs"].(map[string]any)

	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g := &Graph{
		nodes:   make([]*Node, 0, len(ids)),
		index:   make(map[string]*Node, len(ids)),
		outputs: outputs,
	}

	for i, id := range ids {
		def, ok := resources[id].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: resource %s", ErrTemplate, id)
		}

		kind, _ := def["Type"].(string)
		node := &Node{Index: int64(i), ID: id, Type: kind}
		g.nodes = append(g.nodes, node)
		g.index[id] = node
	}

	for _, node := range g.nodes {
		def := resources[node.ID].(map[string]any)

		refs := refSet{}
		refs.walk(def["Properties"])
		refs.dependsOn(def["DependsOn"])

		for ref := range refs {
			if _, has := g.index[ref]; has {
				node.Refs = append(node.Refs, ref)
				continue
			}
			if _, has := params[ref]; has {
				continue
			}
			return nil, fmt.Errorf("%w: %s refers %s", ErrDangling, node.ID, ref)
		}
		sort.Strings(node.Refs)
	}

	for name, out := range outputs {
		refs := refSet{}
		refs.walk(out)
		for ref := range refs {
			_, isNode := g.index[ref]
			_, isParam := params[ref]
			if !isNode && !isParam {
				return nil, fmt.Errorf("%w: output %s refers %s", ErrDangling, name, ref)
			}
		}
	}

	if err := g.sort(); err != nil {
		return nil, err
	}

	return g, nil
}

// dependencies first, ties are broken by logical id
func (g *Graph) sort() error {
	dg := simple.NewDirectedGraph()
	for _, node := range g.nodes {
		dg.AddNode(simple.Node(node.Index))
	}

	for _, node := range g.nodes {
		for _, ref := range node.Refs {
			dep := g.index[ref]
			if dep.Index == node.Index {
				return fmt.Errorf("%w: %s refers itself", ErrCycle, node.ID)
			}
			dg.SetEdge(dg.NewEdge(simple.Node(dep.Index), simple.Node(node.Index)))
		}
	}

	seq, err := topo.SortStabilized(dg, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			return fmt.Errorf("%w: %s", ErrCycle, g.describe(cycles))
		}
		return fmt.Errorf("%w: %w", ErrCycle, err)
	}

	g.order = make([]*Node, 0, len(seq))
	for _, n := range seq {
		g.order = append(g.order, g.nodes[n.ID()])
	}

	return nil
}

func (g *Graph) describe(cycles topo.Unorderable) string {
	seq := []string{}
	for _, scc := range cycles {
		ids := make([]string, 0, len(scc))
		for _, n := range scc {
			ids = append(ids, g.nodes[n.ID()].ID)
		}
		sort.Strings(ids)
		seq = append(seq, strings.Join(ids, ", "))
	}
	return strings.Join(seq, "; ")
}

// Nodes in arena order
func (g *Graph) Nodes() []*Node { return g.nodes }

// Order returns nodes so that every node follows the nodes it refers
func (g *Graph) Order() []*Node { return g.order }

// Node looks up the node by logical id
func (g *Graph) Node(id string) (*Node, bool) {
	node, has := g.index[id]
	return node, has
}

// Count nodes of the type
func (g *Graph) Count(kind string) int {
	n := 0
	for _, node := range g.nodes {
		if node.Type == kind {
			n++
		}
	}
	return n
}

// OfType returns nodes of the type in arena order
func (g *Graph) OfType(kind string) []*Node {
	seq := []*Node{}
	for _, node := range g.nodes {
		if node.Type == kind {
			seq = append(seq, node)
		}
	}
	return seq
}

func (g *Graph) Outputs() map[string]any { return g.outputs }

// Document is serializable view of the graph
type Document struct {
	Resources []*Node        `json:"resources" yaml:"resources"`
	Outputs   map[string]any `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

func (g *Graph) Document() Document {
	return Document{Resources: g.order, Outputs: g.outputs}
}

//------------------------------------------------------------------------------

type refSet map[string]struct{}

var subVar = regexp.MustCompile(`\$\{([^!}][^}]*)\}`)

func (refs refSet) add(name string) {
	name, _, _ = strings.Cut(name, ".")
	if name == "" || strings.HasPrefix(name, "AWS::") {
		return
	}
	refs[name] = struct{}{}
}

func (refs refSet) dependsOn(val any) {
	switch v := val.(type) {
	case string:
		refs.add(v)
	case []any:
		for _, x := range v {
			if s, ok := x.(string); ok {
				refs.add(s)
			}
		}
	}
}

func (refs refSet) walk(val any) {
	switch v := val.(type) {
	case []any:
		for _, x := range v {
			refs.walk(x)
		}
	case map[string]any:
		if len(v) == 1 {
			if refs.intrinsic(v) {
				return
			}
		}
		for _, x := range v {
			refs.walk(x)
		}
	}
}

func (refs refSet) intrinsic(v map[string]any) bool {
	if ref, ok := v["Ref"].(string); ok {
		refs.add(ref)
		return true
	}

	switch att := v["Fn::GetAtt"].(type) {
	case []any:
		if len(att) > 0 {
			if name, ok := att[0].(string); ok {
				refs.add(name)
			}
		}
		return true
	case string:
		refs.add(att)
		return true
	}

	switch sub := v["Fn::Sub"].(type) {
	case string:
		refs.sub(sub, nil)
		return true
	case []any:
		if len(sub) == 2 {
			vars, _ := sub[1].(map[string]any)
			if s, ok := sub[0].(string); ok {
				refs.sub(s, vars)
			}
			refs.walk(sub[1])
		}
		return true
	}

	return false
}

func (refs refSet) sub(s string, vars map[string]any) {
	for _, m := range subVar.FindAllStringSubmatch(s, -1) {
		if _, local := vars[m[1]]; local {
			continue
		}
		refs.add(m[1])
	}
}
