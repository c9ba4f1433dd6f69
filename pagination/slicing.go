package pagination

import "slices"

// window selects a page out of a fully sorted edge list, either the first
// edges after a cursor or the last edges before one.
type window struct {
	after  string
	before string
	first  int
	last   int
}

func newWindow(direction Direction, cursor string, limit int) window {
	if limit < 0 {
		limit = 0
	}
	if direction == DirectionBefore {
		return window{before: cursor, last: limit}
	}
	return window{after: cursor, first: limit}
}

func indexOf(all []Edge, cursor string) int {
	return slices.IndexFunc(all, func(e Edge) bool { return e.Cursor == cursor })
}

// applyCursors keeps the edges strictly after w.after, or strictly before
// w.before. An unknown cursor selects nothing.
func (w window) applyCursors(all []Edge) []Edge {
	switch {
	case w.after != "":
		i := indexOf(all, w.after)
		if i < 0 {
			return nil
		}
		return all[i+1:]
	case w.before != "":
		i := indexOf(all, w.before)
		if i < 0 {
			return nil
		}
		return all[:i]
	default:
		return all
	}
}

// edges returns the page in display order.
func (w window) edges(all []Edge) []Edge {
	edges := w.applyCursors(all)
	switch {
	case w.first > 0 && len(edges) > w.first:
		return edges[:w.first]
	case w.last > 0 && len(edges) > w.last:
		return edges[len(edges)-w.last:]
	default:
		return edges
	}
}

func (w window) hasNextPage(all []Edge) bool {
	if w.first > 0 {
		return len(w.applyCursors(all)) > w.first
	}
	if w.before != "" {
		return indexOf(all, w.before) >= 0 && len(w.edges(all)) > 0
	}
	return false
}

func (w window) hasPreviousPage(all []Edge) bool {
	if w.last > 0 {
		return len(w.applyCursors(all)) > w.last
	}
	if w.after != "" {
		return indexOf(all, w.after) >= 0 && len(w.edges(all)) > 0
	}
	return false
}
