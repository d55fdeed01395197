package node

import "iter"

// Walk returns a lazy, restartable sequence over every node reachable from
// start, each yielded exactly once.
//
// The order is depth-first with backtracking: from the current node the walk
// descends into the first child not yet seen, and only once every child has
// been seen does it retreat to the parent; it stops when it would retreat
// above start. This walk has historically been described as breadth-first,
// but its control flow is and always was depth-first, and the emitted order
// is a consumed contract (flattened corpus lines depend on it), so the
// depth-first order is the one guaranteed here.
//
// Seen nodes are tracked by ID. A malformed input that shares one child
// node between two parents therefore still terminates, with the duplicate
// yielded once; the malformation itself is not diagnosed.
func Walk(start Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		if start == nil {
			return
		}

		startID := start.ID()
		visited := make(map[string]struct{})

		current := start
		for current != nil {
			if _, seen := visited[current.ID()]; !seen {
				if !yield(current) {
					return
				}

				visited[current.ID()] = struct{}{}
			}

			var next Node

			for _, child := range current.Children() {
				if _, seen := visited[child.ID()]; !seen {
					next = child

					break
				}
			}

			if next != nil {
				current = next

				continue
			}

			if current.ID() == startID {
				return
			}

			current = current.Parent()
		}
	}
}
