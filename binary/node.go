// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package binary implements encoding and decoding documents in WhatsApp's binary XML format.
package binary

// Attrs is a type alias for the attributes of an XML element (Node).
type Attrs = map[string]any

// Node represents an XML element.
type Node struct {
	// The tag of the element.
	Tag string
	// The attributes of the element. Values are either strings or JIDs.
	Attrs Attrs
	// The content inside the element. Can be nil, a list of child Nodes or a byte array.
	Content any
}

// GetChildren returns the Content of the node as a list of nodes.
//
// If the content is not a list of nodes, this returns nil.
func (n *Node) GetChildren() []Node {
	if n.Content == nil {
		return nil
	}
	children, ok := n.Content.([]Node)
	if !ok {
		return nil
	}
	return children
}

// GetChildrenByTag returns the same list as GetChildren, but filtered by tag.
func (n *Node) GetChildrenByTag(tag string) (children []Node) {
	for _, node := range n.GetChildren() {
		if node.Tag == tag {
			children = append(children, node)
		}
	}
	return
}

// GetChildByTag returns the first child with the given tag. If no child with
// the given tag is found, an empty node is returned.
func (n *Node) GetChildByTag(tag string) (val Node) {
	for _, node := range n.GetChildren() {
		if node.Tag == tag {
			return node
		}
	}
	return
}

// GetOptionalChildByTag returns the first child with the given tag and
// whether it was found.
func (n *Node) GetOptionalChildByTag(tag string) (val Node, ok bool) {
	for _, node := range n.GetChildren() {
		if node.Tag == tag {
			return node, true
		}
	}
	return
}

// Marshal encodes an XML element (Node) into WhatsApp's binary XML representation,
// prefixed with the flag byte expected on the wire.
func Marshal(n Node) ([]byte, error) {
	payload, err := MarshalInner(n)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 1, 1+len(payload))
	data[0] = 0
	return append(data, payload...), nil
}

// MarshalInner encodes an XML element (Node) into WhatsApp's binary XML representation,
// without the leading flag byte.
func MarshalInner(n Node) ([]byte, error) {
	w := newEncoder()
	if err := w.writeNode(n); err != nil {
		return nil, err
	}
	return w.getData(), nil
}

// Unmarshal decodes WhatsApp's binary XML representation (without the flag
// byte) into a Node. The entire input must be consumed by the node.
func Unmarshal(data []byte) (*Node, error) {
	r := newDecoder(data)
	n, err := r.readNode()
	if err != nil {
		return nil, err
	}
	if r.index != len(r.data) {
		return nil, ErrTrailingData
	}
	return n, nil
}
