package snapshot

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tinyland-inc/webclaw/pkg/webui"
)

// maxTreeDepth bounds recursion so a runaway workspace (or a symlink
// cycle surfaced as a directory) cannot produce an unbounded payload.
const maxTreeDepth = 8

// BuildTree walks root and returns its file tree in wire form. Hidden
// entries are skipped; directories deeper than maxTreeDepth are included
// as leaves without children. Entries are sorted by name for stable
// output.
func BuildTree(root string) ([]webui.TreeNode, error) {
	return buildTree(root, 0)
}

func buildTree(dir string, depth int) ([]webui.TreeNode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var nodes []webui.TreeNode
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if !entry.IsDir() {
			nodes = append(nodes, webui.TreeNode{Name: name, Type: "file"})
			continue
		}

		node := webui.TreeNode{Name: name, Type: "directory"}
		if depth+1 < maxTreeDepth {
			children, err := buildTree(filepath.Join(dir, name), depth+1)
			if err != nil {
				return nil, err
			}
			node.Children = children
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
