package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/coreapi"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/output"
)

func newTaxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect and manage the materialized-path taxonomy tree",
	}
	cmd.AddCommand(newTaxonomyTreeCmd())
	cmd.AddCommand(newTaxonomyCreateCmd())
	cmd.AddCommand(newTaxonomyMoveCmd())
	cmd.AddCommand(newTaxonomyDeleteCmd())
	return cmd
}

func newTaxonomyTreeCmd() *cobra.Command {
	var root string
	var depth int

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the taxonomy tree (or a subtree rooted at --root)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			nodes, err := current.core.TaxonomyTree(cmd.Context(), root, depth)
			if err != nil {
				return fmt.Errorf("taxonomy tree failed: %w", err)
			}
			for _, n := range nodes {
				printTaxonomyNode(out, n, 0)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "node id to root the tree at (default: every root)")
	cmd.Flags().IntVar(&depth, "depth", 0, "maximum depth to expand (0 = unbounded)")
	return cmd
}

func printTaxonomyNode(out *output.Writer, n *coreapi.TaxonomyTreeNode, indent int) {
	prefix := ""
	for i := 0; i < indent; i++ {
		prefix += "  "
	}
	out.Status("", fmt.Sprintf("%s%s (%s) [%d direct, %d descendant]",
		prefix, n.Node.Name, n.Node.ID, n.Node.ResourceCount, n.Node.DescendantResourceCount))
	for _, c := range n.Children {
		printTaxonomyNode(out, c, indent+1)
	}
}

func newTaxonomyCreateCmd() *cobra.Command {
	var name, slug, parentID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a taxonomy node",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			node := &domain.TaxonomyNode{
				ID:       uuid.NewString(),
				Name:     name,
				Slug:     slug,
				ParentID: parentID,
			}
			if err := current.core.CreateTaxonomyNode(cmd.Context(), node); err != nil {
				return fmt.Errorf("create failed: %w", err)
			}
			out.Successf("created node %s (%s)", node.Name, node.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "node name (required)")
	cmd.Flags().StringVar(&slug, "slug", "", "node slug (required)")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent node id (empty for a root)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}

func newTaxonomyMoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <id> <new-parent-id>",
		Short: "Move a node (and its subtree) under a new parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			if err := current.core.MoveTaxonomyNode(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("move failed: %w", err)
			}
			out.Success("moved")
			return nil
		},
	}
	return cmd
}

func newTaxonomyDeleteCmd() *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a taxonomy node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			if err := current.core.DeleteTaxonomyNode(cmd.Context(), args[0], cascade); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			out.Success("deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "delete descendants too instead of rejecting a non-empty node")
	return cmd
}
