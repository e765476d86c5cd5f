package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yourorg/apiprompt/internal/clip"
	"github.com/yourorg/apiprompt/internal/export"
	"github.com/yourorg/apiprompt/internal/preview"
	"github.com/yourorg/apiprompt/pkg/types"
)

func newPromptCmd(a *app) *cobra.Command {
	var file, persona string
	var copyOut, render, send bool
	cmd := &cobra.Command{
		Use:   "prompt [endpoint]",
		Short: "Generate the prompt for an endpoint",
		Long:  "Generate the prompt for a stored endpoint, or for an unsaved record read from --file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var e *types.Endpoint
			switch {
			case file != "":
				data, err := readInput(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				records, err := decodeEndpoints(data)
				if err != nil {
					return err
				}
				if len(records) != 1 {
					return fmt.Errorf("%w: expected one record, got %d", types.ErrInvalid, len(records))
				}
				e = records[0]
				e.Normalize()
			case len(args) == 1:
				st, err := a.store()
				if err != nil {
					return err
				}
				if e, err = st.GetEndpoint(contextOf(cmd), args[0]); err != nil {
					return err
				}
			default:
				return fmt.Errorf("an endpoint id or --file is required")
			}
			if persona != "" {
				e.PersonaKey = persona
			}

			gen, err := a.generator()
			if err != nil {
				return err
			}
			text := gen.Generate(e)
			a.log.Debug("prompt generated", "endpoint", e.ID, "persona", gen.ResolvePersona(e.PersonaKey), "bytes", len(text))

			// The copied text stays the prompt even when the reply is printed.
			shown := text
			if send {
				client, err := a.assistant()
				if err != nil {
					return err
				}
				if shown, err = client.Complete(contextOf(cmd), text); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if render {
				width, _, err := term.GetSize(int(fdOf(out)))
				if err != nil {
					width = 100
				}
				rendered, err := preview.Render(shown, width, !isTerminal(out))
				if err != nil {
					return err
				}
				fmt.Fprint(out, rendered)
			} else {
				fmt.Fprintln(out, shown)
			}

			if copyOut {
				res, err := clip.WriteAll(text)
				if err != nil {
					return err
				}
				if res.Method == clip.MethodFile {
					fmt.Fprintln(cmd.ErrOrStderr(), "clipboard unavailable, prompt saved to", res.FilePath)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "copied to clipboard (%s)\n", res.Method)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "unsaved endpoint JSON, - for stdin")
	cmd.Flags().StringVar(&persona, "persona", "", "override the endpoint's persona")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "copy the prompt to the clipboard")
	cmd.Flags().BoolVar(&render, "render", false, "render markdown for the terminal")
	cmd.Flags().BoolVar(&send, "send", false, "send the prompt to the configured assistant and print its reply")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var project, dir string
	var formats []string
	cmd := &cobra.Command{Use: "export", Short: "Write OpenAPI and prompt bundles for a project", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := a.config()
		if err != nil {
			return err
		}
		if dir != "" {
			cfg.Output.Dir = dir
		}
		if err := cfg.ValidateExport(); err != nil {
			return err
		}
		st, err := a.store()
		if err != nil {
			return err
		}
		ctx := contextOf(cmd)
		p, err := st.GetProject(ctx, project)
		if err != nil {
			return err
		}
		endpoints, err := st.ListEndpoints(ctx, project)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, format := range formats {
			switch format {
			case "openapi":
				path, err := export.RenderOpenAPI(p, endpoints, cfg.Output.Dir)
				if err != nil {
					return err
				}
				for _, problem := range export.ValidateOpenAPI(path) {
					a.log.Warn("openapi validation", "file", path, "problem", problem)
				}
				fmt.Fprintln(out, "wrote", path)
			case "markdown":
				gen, err := a.generator()
				if err != nil {
					return err
				}
				path, err := export.RenderMarkdown(ctx, gen, p, endpoints, cfg.Output.Dir)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "wrote", path)
			default:
				return fmt.Errorf("unknown export format %q", format)
			}
		}
		return nil
	}}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory, defaults to output.dir")
	cmd.Flags().StringSliceVar(&formats, "format", []string{"openapi", "markdown"}, "formats to write")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
