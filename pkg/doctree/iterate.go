// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package doctree

import "fmt"

// Iterate walks the body in reading order, depth first. fn receives every
// non-group item together with its depth below the body, so direct body
// children sit at level 1. Pictures are yielded but not descended into,
// which keeps their caption texts out of the main flow. Items outside the
// body content layer are skipped with their subtrees. Returning false from
// fn stops the walk.
func (d *Document) Iterate(fn func(item Item, level int) bool) error {
	seen := make(map[string]bool)
	_, err := d.iterate(&d.Body, 0, seen, fn)
	return err
}

func (d *Document) iterate(item Item, level int, seen map[string]bool, fn func(Item, int) bool) (bool, error) {
	n := item.node()
	if n.SelfRef != "" {
		if seen[n.SelfRef] {
			return false, fmt.Errorf("cycle in document tree at %s", n.SelfRef)
		}
		seen[n.SelfRef] = true
	}
	if n.ContentLayer != "" && n.ContentLayer != LayerBody {
		return true, nil
	}

	if item.Kind() != KindGroup {
		if !fn(item, level) {
			return false, nil
		}
	}
	if item.Kind() == KindPicture {
		return true, nil
	}

	for _, child := range n.Children {
		c, err := d.Resolve(child.Ref)
		if err != nil {
			return false, fmt.Errorf("resolving child of %s: %w", n.SelfRef, err)
		}
		cont, err := d.iterate(c, level+1, seen, fn)
		if err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}
