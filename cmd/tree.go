package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/explorer/internal/explorer"
	"github.com/TFMV/explorer/internal/fsys"
)

var (
	treeExpandAll bool
	treeExpand    []string
	treeFormat    string
)

// treeCmd represents the tree command
var treeCmd = &cobra.Command{
	Use:   "tree [dir]",
	Short: "Print the flattened tree of a directory once",
	Long: `Print the flattened tree of a directory once, without serving it.

Only the root is expanded unless --expand or --expand-all say otherwise.
Expanding a directory also expands every directory between it and the root.

Examples:
  explorer tree
  explorer tree --expand=src/internal ~/project
  explorer tree --expand-all --format=json .`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		return runTree(cmd.Context(), cmd.OutOrStdout(), dir)
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)

	treeCmd.Flags().BoolVar(&treeExpandAll, "expand-all", false, "Expand every directory")
	treeCmd.Flags().StringSliceVar(&treeExpand, "expand", nil, "Directories to expand, relative to the root")
	treeCmd.Flags().StringVar(&treeFormat, "format", "text", "Output format (text|json)")
}

func runTree(ctx context.Context, out io.Writer, dir string) error {
	if treeFormat != "text" && treeFormat != "json" {
		return fmt.Errorf("invalid format: %s", treeFormat)
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	tag, err := locale()
	if err != nil {
		return err
	}

	fs := fsys.NewOS()
	store := explorer.NewStore(fs, explorer.NewWatchSet(nil, logger), logger)
	materializer := explorer.NewMaterializer(fs, explorer.WithLocale(tag), explorer.WithLogger(logger))

	root, err := store.Add(ctx, dir)
	if err != nil {
		return err
	}

	expanded, err := namedExpansion(ctx, fs, root, treeExpand)
	if err != nil {
		return err
	}
	if root, err = store.Update(root.ID, expanded); err != nil {
		return err
	}

	tree, err := materializer.Materialize(ctx, root)
	for err == nil && treeExpandAll {
		grown := false
		for _, node := range tree.Files {
			if node.IsDir && !node.IsExpanded {
				if _, ok := expanded[node.ID]; !ok {
					expanded[node.ID] = filepath.Join(node.Path, node.Name)
					grown = true
				}
			}
		}
		if !grown {
			break
		}
		if root, err = store.Update(root.ID, expanded); err != nil {
			return err
		}
		logger.Debug("expanding", zap.Int("directories", len(expanded)))
		tree, err = materializer.Materialize(ctx, root)
	}
	if err != nil {
		return err
	}

	if treeFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	}
	return printTree(out, tree)
}

// namedExpansion resolves each relative path below root, expanding it and
// every directory between it and root.
func namedExpansion(ctx context.Context, fs fsys.FileSystem, root explorer.Root, names []string) (map[fsys.FileID]string, error) {
	expanded := map[fsys.FileID]string{root.ID: root.Path}
	for _, name := range names {
		rel := filepath.Clean(name)
		if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s: not below the root", name)
		}
		for path := filepath.Join(root.Path, rel); path != root.Path; path = filepath.Dir(path) {
			info, err := fs.Stat(ctx, path)
			if err != nil {
				return nil, err
			}
			if !info.IsDir {
				return nil, fmt.Errorf("%s: not a directory", path)
			}
			expanded[info.ID] = path
		}
	}
	return expanded, nil
}

func printTree(out io.Writer, tree *explorer.FlatTree) error {
	for _, node := range tree.Files {
		marker := " "
		if node.IsDir {
			marker = "+"
			if node.IsExpanded {
				marker = "-"
			}
		}
		name := node.Name
		if node.IsDir {
			name += string(os.PathSeparator)
		}
		if _, err := fmt.Fprintf(out, "%s%s %s\n", strings.Repeat("  ", node.Depth), marker, name); err != nil {
			return err
		}
	}
	return nil
}
