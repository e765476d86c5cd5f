package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yourorg/apiprompt/internal/filter"
	"github.com/yourorg/apiprompt/internal/har"
	"github.com/yourorg/apiprompt/internal/preview"
	"github.com/yourorg/apiprompt/pkg/types"
)

// endpointFlags holds the editable scalar fields shared by create and update.
type endpointFlags struct {
	title, method, path, module, desc, notes string
	security, auth, roles, persona           string
	prefs                                    []string
}

func (f *endpointFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "endpoint title")
	fs.StringVar(&f.method, "method", "GET", "HTTP method")
	fs.StringVar(&f.path, "path", "", "route path")
	fs.StringVar(&f.module, "module", "", "module name")
	fs.StringVar(&f.desc, "desc", "", "business scenario")
	fs.StringVar(&f.notes, "notes", "", "technical notes")
	fs.StringVar(&f.security, "security", types.SecuritySecure, "secure, open or public")
	fs.StringVar(&f.auth, "auth", "", "auth mechanism")
	fs.StringVar(&f.roles, "roles", "", "comma separated roles")
	fs.StringVar(&f.persona, "persona", "", "persona key")
	fs.StringSliceVar(&f.prefs, "pref", nil, "preference toggles as key=true|false")
}

// apply copies the flags the user set onto e.
func (f *endpointFlags) apply(fs *pflag.FlagSet, e *types.Endpoint) error {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("title", &e.Title, f.title)
	set("method", &e.Method, strings.ToUpper(f.method))
	set("path", &e.Path, f.path)
	set("module", &e.ModuleName, f.module)
	set("desc", &e.BusinessDesc, f.desc)
	set("notes", &e.TechNotes, f.notes)
	set("security", &e.Security, f.security)
	set("auth", &e.AuthMechanism, f.auth)
	set("persona", &e.PersonaKey, f.persona)
	if fs.Changed("roles") {
		e.Roles = types.ParseRoles(f.roles)
	}
	for _, kv := range f.prefs {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			val = "true"
		}
		enabled := val == "true" || val == "1" || val == "on"
		if !enabled && val != "false" && val != "0" && val != "off" {
			return fmt.Errorf("%w: preference %q needs true or false", types.ErrInvalid, kv)
		}
		if e.PromptPrefs == nil {
			e.PromptPrefs = types.DefaultPrefs()
		}
		e.PromptPrefs = e.PromptPrefs.Set(strings.TrimSpace(key), enabled)
	}
	return nil
}

func newEndpointCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "endpoint", Short: "Manage endpoints"}
	cmd.AddCommand(
		newEndpointCreateCmd(a),
		newEndpointListCmd(a),
		newEndpointShowCmd(a),
		newEndpointUpdateCmd(a),
		newEndpointDeleteCmd(a),
		newEndpointImportCmd(a),
		newEndpointExportCmd(a),
	)
	return cmd
}

func newEndpointCreateCmd(a *app) *cobra.Command {
	var project string
	f := &endpointFlags{}
	cmd := &cobra.Command{Use: "create", Short: "Create an endpoint", RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		e := types.NewEndpoint(project, f.title, f.method, f.path)
		if err := f.apply(cmd.Flags(), e); err != nil {
			return err
		}
		if err := st.CreateEndpoint(contextOf(cmd), e); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), e.ID)
		return nil
	}}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newEndpointListCmd(a *app) *cobra.Command {
	var project string
	var q filter.Query
	cmd := &cobra.Command{Use: "list", Short: "List a project's endpoints", RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		ctx := contextOf(cmd)
		if _, err := st.GetProject(ctx, project); err != nil {
			return err
		}
		endpoints, err := st.ListEndpoints(ctx, project)
		if err != nil {
			return err
		}
		q.Method = strings.ToUpper(q.Method)
		for _, e := range filter.Apply(endpoints, q) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", e.ID, preview.Line(e.Method, e.Path, e.Title))
		}
		return nil
	}}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&q.Search, "search", "", "match title or path")
	cmd.Flags().StringVar(&q.Method, "method", "", "HTTP method")
	cmd.Flags().StringVar(&q.Security, "security", "", "secure or public")
	cmd.Flags().StringVar(&q.Role, "role", "", "required role")
	cmd.Flags().BoolVar(&q.Fuzzy, "fuzzy", false, "rank search results by fuzzy match")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newEndpointShowCmd(a *app) *cobra.Command {
	return &cobra.Command{Use: "show <id>", Short: "Print an endpoint as JSON", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		e, err := st.GetEndpoint(contextOf(cmd), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), e)
	}}
}

func newEndpointUpdateCmd(a *app) *cobra.Command {
	f := &endpointFlags{}
	cmd := &cobra.Command{Use: "update <id>", Short: "Change endpoint fields", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		ctx := contextOf(cmd)
		e, err := st.GetEndpoint(ctx, args[0])
		if err != nil {
			return err
		}
		if err := f.apply(cmd.Flags(), e); err != nil {
			return err
		}
		if err := st.UpdateEndpoint(ctx, e); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "updated", e.ID)
		return nil
	}}
	f.register(cmd.Flags())
	return cmd
}

func newEndpointDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{Use: "delete <id>", Short: "Delete an endpoint", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		if err := st.DeleteEndpoint(contextOf(cmd), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
		return nil
	}}
}

// newEndpointImportCmd loads records written by endpoint export, or a single
// record, into a project. IDs in the file are ignored. With --har the file is
// a browser capture and one draft endpoint is created per method and path.
func newEndpointImportCmd(a *app) *cobra.Command {
	var project, file, host string
	var fromHAR bool
	cmd := &cobra.Command{Use: "import", Short: "Import endpoints from a JSON or HAR file", RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		data, err := readInput(cmd.InOrStdin(), file)
		if err != nil {
			return err
		}
		var records []*types.Endpoint
		if fromHAR {
			caps, err := har.Parse(bytes.NewReader(data))
			if err != nil {
				return err
			}
			opts := har.DefaultOptions()
			opts.Host = host
			records = har.Draft(project, caps, opts)
		} else if records, err = decodeEndpoints(data); err != nil {
			return err
		}
		ctx := contextOf(cmd)
		for _, e := range records {
			e.ProjectID = project
			if err := st.CreateEndpoint(ctx, e); err != nil {
				return fmt.Errorf("import %q: %w", e.Title, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d endpoints\n", len(records))
		return nil
	}}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&file, "file", "-", "JSON file, - for stdin")
	cmd.Flags().BoolVar(&fromHAR, "har", false, "treat the file as a HAR capture")
	cmd.Flags().StringVar(&host, "host", "", "with --har, only keep requests to this host")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newEndpointExportCmd(a *app) *cobra.Command {
	var project, file string
	cmd := &cobra.Command{Use: "export", Short: "Write a project's endpoints as JSON", RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.store()
		if err != nil {
			return err
		}
		endpoints, err := st.ListEndpoints(contextOf(cmd), project)
		if err != nil {
			return err
		}
		if file == "" || file == "-" {
			return printJSON(cmd.OutOrStdout(), endpoints)
		}
		data, err := json.MarshalIndent(endpoints, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(file, data, 0o644)
	}}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&file, "file", "-", "output file, - for stdout")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func decodeEndpoints(data []byte) ([]*types.Endpoint, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []*types.Endpoint
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode endpoints: %w", err)
		}
		return list, nil
	}
	var e types.Endpoint
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode endpoint: %w", err)
	}
	return []*types.Endpoint{&e}, nil
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}
