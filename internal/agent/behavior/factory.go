package behavior

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrTreeNotFound  = errors.New("behavior tree not found")
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownNode   = errors.New("unknown node type")
	ErrSubTreeCycle  = errors.New("subtree references itself")
)

// ActionMap binds Action and Condition IDs used in a tree definition to the
// callbacks of one agent.
type ActionMap map[string]Callback

// Definition is a parsed tree document: a set of named trees and the one to
// build as the root.
type Definition struct {
	Main  string             `yaml:"main"`
	Trees map[string]NodeDef `yaml:"trees"`
}

// NodeDef describes one node. Type uses the element names of the XML format
// (Sequence, FallbackStar, Action, BB_Precondition, SubTree, ...).
type NodeDef struct {
	Type     string    `yaml:"type"`
	Name     string    `yaml:"name,omitempty"`
	ID       string    `yaml:"id,omitempty"`
	Key      string    `yaml:"key,omitempty"`
	Expected string    `yaml:"expected,omitempty"`
	Num      int       `yaml:"num,omitempty"`
	Children []NodeDef `yaml:"children,omitempty"`
}

const subTreeType = "SubTree"

var typeAliases = map[string]Kind{
	"Action":               KindAction,
	"Condition":            KindConditional,
	"Conditional":          KindConditional,
	"BB_Precondition":      KindBBPrecondition,
	"BBPrecondition":       KindBBPrecondition,
	"ForceFailure":         KindForceFailure,
	"ForceSuccess":         KindForceSuccess,
	"Inverter":             KindInverter,
	"Sequence":             KindSequence,
	"SequenceStar":         KindSequenceStar,
	"Fallback":             KindFallback,
	"FallbackStar":         KindFallbackStar,
	"Repeat":               KindRepeat,
	"RetryUntilSuccesful":  KindRepeatUntilSuccess,
	"RetryUntilSuccessful": KindRepeatUntilSuccess,
	"RepeatUntilSuccess":   KindRepeatUntilSuccess,
}

type xmlElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr   `xml:",any,attr"`
	Children []xmlElement `xml:",any"`
}

func (e xmlElement) attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ParseXML reads a Groot style document:
//
//	<root main_tree_to_execute="MainTree">
//	  <BehaviorTree ID="MainTree"> ...one root element... </BehaviorTree>
//	</root>
func ParseXML(r io.Reader) (Definition, error) {
	var doc xmlElement
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Definition{}, fmt.Errorf("parse tree xml: %w", err)
	}
	def := Definition{
		Main:  doc.attr("main_tree_to_execute"),
		Trees: make(map[string]NodeDef),
	}
	for _, el := range doc.Children {
		if el.XMLName.Local != "BehaviorTree" {
			continue
		}
		id := el.attr("ID")
		if len(el.Children) == 0 {
			return Definition{}, fmt.Errorf("behavior tree %q has no root node", id)
		}
		nd, err := nodeDefFromXML(el.Children[0])
		if err != nil {
			return Definition{}, fmt.Errorf("behavior tree %q: %w", id, err)
		}
		def.Trees[id] = nd
	}
	return def, nil
}

func nodeDefFromXML(el xmlElement) (NodeDef, error) {
	nd := NodeDef{
		Type:     el.XMLName.Local,
		Name:     el.attr("name"),
		ID:       el.attr("ID"),
		Key:      el.attr("key"),
		Expected: el.attr("expected"),
	}
	for _, attr := range []string{"num_cycles", "num_attempts"} {
		raw := strings.TrimSpace(el.attr(attr))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return NodeDef{}, fmt.Errorf("%s %s=%q: %w", nd.Type, attr, raw, err)
		}
		nd.Num = n
	}
	for _, child := range el.Children {
		cd, err := nodeDefFromXML(child)
		if err != nil {
			return NodeDef{}, err
		}
		nd.Children = append(nd.Children, cd)
	}
	return nd, nil
}

// ParseYAML reads the YAML form of a tree document.
func ParseYAML(r io.Reader) (Definition, error) {
	var def Definition
	if err := yaml.NewDecoder(r).Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("parse tree yaml: %w", err)
	}
	return def, nil
}

// Build constructs the main tree. Every SubTree reference is built afresh so
// each node in the result has exactly one parent.
func (d Definition) Build(actions ActionMap, bb *Blackboard) (Node, error) {
	return d.BuildTree(d.Main, actions, bb)
}

// BuildTree constructs the tree with the given ID.
func (d Definition) BuildTree(id string, actions ActionMap, bb *Blackboard) (Node, error) {
	if bb == nil {
		bb = NewBlackboard()
	}
	b := builder{def: d, actions: actions, bb: bb, active: make(map[string]bool)}
	return b.tree(id)
}

type builder struct {
	def     Definition
	actions ActionMap
	bb      *Blackboard
	active  map[string]bool
}

func (b *builder) tree(id string) (Node, error) {
	root, ok := b.def.Trees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTreeNotFound, id)
	}
	if b.active[id] {
		return nil, fmt.Errorf("%w: %q", ErrSubTreeCycle, id)
	}
	b.active[id] = true
	defer delete(b.active, id)
	return b.node(root)
}

func (b *builder) node(nd NodeDef) (Node, error) {
	if nd.Type == subTreeType {
		return b.tree(nd.ID)
	}
	kind, ok := typeAliases[nd.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, nd.Type)
	}

	var n Node
	switch kind {
	case KindAction, KindConditional:
		cb, ok := b.actions[nd.ID]
		if !ok || cb == nil {
			return nil, fmt.Errorf("%w: %s %q", ErrUnknownAction, nd.Type, nd.ID)
		}
		if kind == KindAction {
			n = NewAction(nd.ID, b.bb, cb)
		} else {
			n = NewConditional(nd.ID, b.bb, cb)
		}
	case KindBBPrecondition:
		n = NewBBPrecondition(nd.Name, nd.Key, nd.Expected, b.bb)
	case KindForceFailure:
		n = NewForceFailure(b.bb)
	case KindForceSuccess:
		n = NewForceSuccess(b.bb)
	case KindInverter:
		n = NewInverter(nd.Name, b.bb)
	case KindSequence:
		n = NewSequence(nd.Name, b.bb)
	case KindSequenceStar:
		n = NewSequenceStar(nd.Name, b.bb, true)
	case KindFallback:
		n = NewFallback(nd.Name, b.bb)
	case KindFallbackStar:
		n = NewFallbackStar(nd.Name, b.bb)
	case KindRepeat:
		n = NewRepeat(nd.Name, nd.Num, b.bb)
	case KindRepeatUntilSuccess:
		n = NewRepeatUntilSuccess(nd.Name, nd.Num, b.bb)
	}

	for _, cd := range nd.Children {
		child, err := b.node(cd)
		if err != nil {
			return nil, err
		}
		n.AddTree(child)
	}
	return n, nil
}

// LoadXML parses an XML document and builds its main tree.
func LoadXML(r io.Reader, actions ActionMap, bb *Blackboard) (Node, error) {
	def, err := ParseXML(r)
	if err != nil {
		return nil, err
	}
	return def.Build(actions, bb)
}

// LoadYAML parses a YAML document and builds its main tree.
func LoadYAML(r io.Reader, actions ActionMap, bb *Blackboard) (Node, error) {
	def, err := ParseYAML(r)
	if err != nil {
		return nil, err
	}
	return def.Build(actions, bb)
}
