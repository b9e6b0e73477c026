package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/waypoint/internal/cli/config"
	"github.com/conduit-lang/waypoint/internal/cli/ui"
	"github.com/conduit-lang/waypoint/internal/demo"
	"github.com/conduit-lang/waypoint/internal/table"
)

var (
	routesJSON bool
	routesAll  bool
)

// NewRoutesCommand creates the routes command
func NewRoutesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes [name]",
		Short: "List the compiled routes",
		Long: `Compile the routing table and list its routes.

With a route name such as widgets/show, prints the details of that route:
its method, pattern, operation and how every parameter is resolved.
Routes marked no-doc are hidden unless --all is given.`,
		Example: `  # List every documented route
  waypoint routes

  # Details of one route
  waypoint routes parts/create

  # JSON for tooling
  waypoint routes --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRoutes,
	}

	cmd.Flags().BoolVar(&routesJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&routesAll, "all", false, "Include routes marked no-doc")
	return cmd
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err, noColor))
		return err
	}

	tbl, err := demo.Build("", demo.Deps{Driver: cfg.Database.Driver})
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.BuildFailure(err, noColor))
		return err
	}

	routes := tbl.Routes()
	if routesAll {
		routes = tbl.AllRoutes()
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		return showRoute(cmd, routes, args[0], cfg.Server.MountPath)
	}
	if routesJSON {
		return writeJSON(out, routes)
	}

	ui.Header(out, fmt.Sprintf("Routes (%d)", len(routes)), noColor)
	t := ui.NewTable(out, []string{"METHOD", "PATH", "NAME", "OPERATION"}, &ui.TableOptions{
		NoColor:   noColor,
		Highlight: ui.MethodColor,
	})
	for _, r := range routes {
		op := r.Operation
		if op == "custom" && r.Guarded {
			op += " (guarded)"
		}
		t.AddRow(r.Method, cfg.Server.MountPath+r.Pattern, r.Name, op)
	}
	t.Render()
	return nil
}

func showRoute(cmd *cobra.Command, routes []table.RouteInfo, name, mount string) error {
	names := make([]string, 0, len(routes))
	for _, r := range routes {
		if r.Name != name {
			names = append(names, r.Name)
			continue
		}
		if routesJSON {
			return writeJSON(cmd.OutOrStdout(), r)
		}

		out := cmd.OutOrStdout()
		ui.Header(out, r.Name, noColor)
		kv := ui.NewKeyValueTable(out, noColor)
		kv.AddRow("method", r.Method)
		kv.AddRow("path", mount+r.Pattern)
		kv.AddRow("operation", r.Operation)
		if r.Summary != "" {
			kv.AddRow("summary", r.Summary)
		}
		if len(r.Tags) > 0 {
			kv.AddRow("tags", strings.Join(r.Tags, ", "))
		}
		kv.AddRow("schema", fmt.Sprintf("%t", r.HasSchema))
		kv.AddRow("guarded", fmt.Sprintf("%t", r.Guarded))
		kv.Render()

		if len(r.Parameters) > 0 {
			fmt.Fprintln(out)
			t := ui.NewTable(out, []string{"PARAMETER", "SOURCE", "TAG"}, &ui.TableOptions{NoColor: noColor})
			for _, p := range r.Parameters {
				t.AddRow(p.Name, p.Source, p.Tag)
			}
			t.Render()
		}
		return nil
	}

	var help []string
	for _, s := range ui.FindSimilar(name, names, 3) {
		help = append(help, "Did you mean: waypoint routes "+s)
	}
	help = append(help, "List routes: waypoint routes")
	err := fmt.Errorf("route %q not found", name)
	ui.WriteError(cmd.ErrOrStderr(), ui.ErrorOptions{
		Level:        ui.ErrorLevelError,
		Problem:      err.Error(),
		HelpCommands: help,
		NoColor:      noColor,
	})
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
