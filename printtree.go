package dam

import (
	"fmt"
	"io"
)

// PrintTree prints the BSP tree of m in a clear format
func PrintTree(w io.Writer, m *Map) {
	var printRecursive func(c Child, prefix string, depth int)
	printRecursive = func(c Child, prefix string, depth int) {
		switch {
		case c.Index < 0:
			fmt.Fprintln(w, prefix+"- null")
		case c.Subsector:
			ss := &m.Subsectors[c.Index]
			fmt.Fprintf(w, "%s- subsector %d: %d segs from %d, sector %d\n", prefix, c.Index, ss.SegCount, ss.FirstSeg, ss.Sector)
		case depth > len(m.Nodes):
			fmt.Fprintln(w, prefix+"- cycle")
		default:
			n := &m.Nodes[c.Index]
			fmt.Fprintf(w, "%s- node %d: (%v, %v) + (%v, %v)\n", prefix, c.Index, n.X.Int(), n.Y.Int(), n.DX.Int(), n.DY.Int())
			printRecursive(n.Children[0], prefix+"   ", depth+1)
			printRecursive(n.Children[1], prefix+"   ", depth+1)
		}
	}

	switch {
	case len(m.Nodes) > 0:
		printRecursive(Child{Index: int32(m.RootNode())}, "", 0)
	case len(m.Subsectors) > 0:
		// A single subsector map has no nodes
		printRecursive(Child{Index: 0, Subsector: true}, "", 0)
	}
}
