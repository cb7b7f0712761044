package classify

import (
	"github.com/farcloser/whistlelab/internal/types"
)

// Node is one decision of a rule tree. A node with no children is a leaf.
// Values at or below Threshold follow Below, larger ones follow Above.
type Node struct {
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Below     *Node   `json:"below,omitempty"`
	Above     *Node   `json:"above,omitempty"`
	Whistle   bool    `json:"whistle,omitempty"`
}

// Leaf returns a terminal node.
func Leaf(whistle bool) *Node {
	return &Node{Whistle: whistle}
}

// Split returns an inner node.
func Split(feature int, threshold float64, below, above *Node) *Node {
	return &Node{Feature: feature, Threshold: threshold, Below: below, Above: above}
}

func (n *Node) leaf() bool {
	return n.Below == nil && n.Above == nil
}

// Tree is a fixed threshold tree, usually learned offline from an exported table.
type Tree struct {
	Root *Node
}

func (t *Tree) Kind() Kind {
	return KindTree
}

func (t *Tree) Classify(features types.FeatureVector) bool {
	node := t.Root

	for node != nil {
		if node.leaf() {
			return node.Whistle
		}

		v, ok := at(features, node.Feature)
		if !ok {
			return false
		}

		if v <= node.Threshold {
			node = node.Below
		} else {
			node = node.Above
		}
	}

	return false
}

// Threshold requires features[Feature] >= Min.
type Threshold struct {
	Feature int     `json:"feature"`
	Min     float64 `json:"min"`
}

// Thresholds is positive when every rule holds.
type Thresholds []Threshold

func (t Thresholds) Kind() Kind {
	return KindThresholds
}

func (t Thresholds) Classify(features types.FeatureVector) bool {
	for _, rule := range t {
		v, ok := at(features, rule.Feature)
		if !ok || v < rule.Min {
			return false
		}
	}

	return len(t) > 0
}

// Ratio requires features[Feature] > Multiplier * features[Reference].
type Ratio struct {
	Feature    int     `json:"feature"`
	Reference  int     `json:"reference"`
	Multiplier float64 `json:"multiplier"`
}

// Ratios is positive when every ratio holds.
type Ratios []Ratio

func (r Ratios) Kind() Kind {
	return KindRatios
}

func (r Ratios) Classify(features types.FeatureVector) bool {
	for _, rule := range r {
		v, ok := at(features, rule.Feature)
		if !ok {
			return false
		}

		ref, ok := at(features, rule.Reference)
		if !ok || v <= rule.Multiplier*ref {
			return false
		}
	}

	return len(r) > 0
}

// All is positive when every member is.
type All []Classifier

func (a All) Kind() Kind {
	return KindAll
}

func (a All) Classify(features types.FeatureVector) bool {
	for _, c := range a {
		if !c.Classify(features) {
			return false
		}
	}

	return len(a) > 0
}
