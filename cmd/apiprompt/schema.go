package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourorg/apiprompt/internal/export"
	"github.com/yourorg/apiprompt/pkg/schema"
	"github.com/yourorg/apiprompt/pkg/types"
)

func newSchemaCmd(a *app) *cobra.Command {
	var section string
	cmd := &cobra.Command{Use: "schema", Short: "Edit request body, query and header trees"}
	cmd.PersistentFlags().StringVar(&section, "section", types.SectionBody, "body, query or headers")

	// edit applies op to the endpoint named by args[0] and prints the tree.
	edit := func(cmd *cobra.Command, id string, op schema.Op) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		ctx := contextOf(cmd)
		e, err := st.GetEndpoint(ctx, id)
		if err != nil {
			return err
		}
		if err := e.EditSection(section, op); err != nil {
			return err
		}
		if err := st.UpdateEndpoint(ctx, e); err != nil {
			return err
		}
		root, err := e.Section(section)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), root)
	}

	var path string
	addPath := func(c *cobra.Command) *cobra.Command {
		c.Flags().StringVar(&path, "path", "", "dotted child index path, empty for the root")
		return c
	}

	cmd.AddCommand(addPath(&cobra.Command{Use: "add <endpoint>", Short: "Append a field to an object", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return edit(cmd, args[0], schema.Op{Action: schema.ActionAddChild, Path: path})
	}}))
	cmd.AddCommand(addPath(&cobra.Command{Use: "remove <endpoint>", Short: "Remove a field", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return edit(cmd, args[0], schema.Op{Action: schema.ActionRemove, Path: path})
	}}))

	var kind string
	kindCmd := addPath(&cobra.Command{Use: "kind <endpoint>", Short: "Change a field's type", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return edit(cmd, args[0], schema.Op{Action: schema.ActionSetKind, Path: path, Kind: schema.Kind(kind)})
	}})
	kindCmd.Flags().StringVar(&kind, "type", "", "string, number, boolean, object or array")
	_ = kindCmd.MarkFlagRequired("type")
	cmd.AddCommand(kindCmd)

	var itemKind string
	itemsCmd := addPath(&cobra.Command{Use: "items <endpoint>", Short: "Set the item type of an array", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		k, err := schema.ParseKind(itemKind)
		if err != nil {
			return err
		}
		return edit(cmd, args[0], schema.Op{Action: schema.ActionSetItems, Path: path, Items: &schema.Node{Kind: k}})
	}})
	itemsCmd.Flags().StringVar(&itemKind, "type", string(schema.KindString), "item type")
	cmd.AddCommand(itemsCmd)

	var index int
	moveCmd := addPath(&cobra.Command{Use: "move <endpoint>", Short: "Reorder a field within its parent", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return edit(cmd, args[0], schema.Op{Action: schema.ActionMove, Path: path, Index: index})
	}})
	moveCmd.Flags().IntVar(&index, "index", 0, "new position")
	cmd.AddCommand(moveCmd)

	cmd.AddCommand(newSchemaSetCmd(edit))
	cmd.AddCommand(newSchemaInferCmd(a, &section))
	cmd.AddCommand(newSchemaCheckCmd(a, &section))
	return cmd
}

func newSchemaSetCmd(edit func(*cobra.Command, string, schema.Op) error) *cobra.Command {
	var path, name, format, desc, pattern string
	var required bool
	var lo, hi float64
	var minLen, maxLen int
	cmd := &cobra.Command{Use: "set <endpoint>", Short: "Change a field's attributes", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		fs := cmd.Flags()
		p := &schema.Patch{}
		if fs.Changed("name") {
			p.Name = &name
		}
		if fs.Changed("required") {
			p.Required = &required
		}
		if fs.Changed("format") {
			p.Format = &format
		}
		if fs.Changed("desc") {
			p.Description = &desc
		}
		v := &schema.Validation{}
		if fs.Changed("min") {
			v.Min = &lo
		}
		if fs.Changed("max") {
			v.Max = &hi
		}
		if fs.Changed("min-length") {
			v.MinLength = &minLen
		}
		if fs.Changed("max-length") {
			v.MaxLength = &maxLen
		}
		if fs.Changed("pattern") {
			v.Pattern = pattern
		}
		if !v.IsZero() {
			p.Validation = v
		}
		return edit(cmd, args[0], schema.Op{Action: schema.ActionUpdate, Path: path, Patch: p})
	}}
	fs := cmd.Flags()
	fs.StringVar(&path, "path", "", "dotted child index path")
	fs.StringVar(&name, "name", "", "field name")
	fs.BoolVar(&required, "required", false, "mark the field required")
	fs.StringVar(&format, "format", "", "format hint such as uuid or email")
	fs.StringVar(&desc, "desc", "", "description")
	fs.Float64Var(&lo, "min", 0, "minimum number")
	fs.Float64Var(&hi, "max", 0, "maximum number")
	fs.IntVar(&minLen, "min-length", 0, "minimum string length")
	fs.IntVar(&maxLen, "max-length", 0, "maximum string length")
	fs.StringVar(&pattern, "pattern", "", "regular expression")
	return cmd
}

// newSchemaInferCmd builds a tree from a sample payload. With an endpoint
// argument the tree replaces that endpoint's section.
func newSchemaInferCmd(a *app, section *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{Use: "infer [endpoint]", Short: "Derive a tree from sample JSON", Args: cobra.MaximumNArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd.InOrStdin(), file)
		if err != nil {
			return err
		}
		root, err := schema.Infer(data)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return printJSON(cmd.OutOrStdout(), root)
		}
		st, err := a.store()
		if err != nil {
			return err
		}
		ctx := contextOf(cmd)
		e, err := st.GetEndpoint(ctx, args[0])
		if err != nil {
			return err
		}
		if err := e.SetSection(*section, root); err != nil {
			return err
		}
		if err := st.UpdateEndpoint(ctx, e); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), root)
	}}
	cmd.Flags().StringVar(&file, "file", "-", "sample JSON file, - for stdin")
	return cmd
}

func newSchemaCheckCmd(a *app, section *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{Use: "check <endpoint>", Short: "Validate sample JSON against a tree", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd.InOrStdin(), file)
		if err != nil {
			return err
		}
		st, err := a.store()
		if err != nil {
			return err
		}
		e, err := st.GetEndpoint(contextOf(cmd), args[0])
		if err != nil {
			return err
		}
		root, err := e.Section(*section)
		if err != nil {
			return err
		}
		if err := export.CheckSample(root, data); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}}
	cmd.Flags().StringVar(&file, "file", "-", "sample JSON file, - for stdin")
	return cmd
}

func newResponseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "response", Short: "Manage per-status response trees"}

	var file string
	add := &cobra.Command{Use: "add <endpoint> <status>", Short: "Add or replace a status response", Args: cobra.ExactArgs(2), RunE: func(cmd *cobra.Command, args []string) error {
		var node *schema.Node
		if file != "" {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			n, err := schema.Parse(data)
			if err != nil {
				return err
			}
			node = schema.Normalize(n)
		}
		return editResponses(a, cmd, args[0], func(r *types.ResponseSpec) error {
			return r.Set(args[1], node)
		})
	}}
	add.Flags().StringVar(&file, "file", "", "tree JSON file, - for stdin; empty defines an empty object")

	remove := &cobra.Command{Use: "remove <endpoint> <status>", Short: "Remove a status response", Args: cobra.ExactArgs(2), RunE: func(cmd *cobra.Command, args []string) error {
		return editResponses(a, cmd, args[0], func(r *types.ResponseSpec) error {
			if !r.Delete(args[1]) {
				return fmt.Errorf("%w: status %s not defined", types.ErrInvalid, args[1])
			}
			return nil
		})
	}}

	cmd.AddCommand(add, remove)
	return cmd
}

func editResponses(a *app, cmd *cobra.Command, id string, fn func(*types.ResponseSpec) error) error {
	st, err := a.store()
	if err != nil {
		return err
	}
	ctx := contextOf(cmd)
	e, err := st.GetEndpoint(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(&e.ResponseSpec); err != nil {
		return err
	}
	if err := st.UpdateEndpoint(ctx, e); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), e.ResponseSpec)
}
