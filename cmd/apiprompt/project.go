package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourorg/apiprompt/internal/store"
	"github.com/yourorg/apiprompt/pkg/types"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}
	cmd.AddCommand(newProjectCreateCmd(a), newProjectListCmd(a), newProjectDeleteCmd(a))
	return cmd
}

func newProjectCreateCmd(a *app) *cobra.Command {
	var desc, icon, color string
	cmd := &cobra.Command{Use: "create <name>", Short: "Create a project", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		p := types.NewProject(args[0], desc)
		if icon != "" {
			p.Icon = icon
		}
		if color != "" {
			p.Color = color
		}
		if err := st.CreateProject(contextOf(cmd), p); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return nil
	}}
	cmd.Flags().StringVar(&desc, "desc", "", "project description")
	cmd.Flags().StringVar(&icon, "icon", "", "icon name")
	cmd.Flags().StringVar(&color, "color", "", "color name")
	return cmd
}

func newProjectListCmd(a *app) *cobra.Command {
	var search, sort string
	cmd := &cobra.Command{Use: "list", Short: "List projects", RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		projects, err := st.ListProjects(contextOf(cmd), store.ProjectQuery{Search: search, Sort: sort})
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tENDPOINTS\tUPDATED")
		for _, p := range projects {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.ID, p.Name, p.EndpointCount, p.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	}}
	cmd.Flags().StringVar(&search, "search", "", "filter by name")
	cmd.Flags().StringVar(&sort, "sort", store.SortRecent, "sort order: recent or name")
	return cmd
}

func newProjectDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{Use: "delete <id>", Short: "Delete a project and its endpoints", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		if err := st.DeleteProject(contextOf(cmd), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
		return nil
	}}
}
