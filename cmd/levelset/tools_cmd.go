package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/git6keen/Levelset-sub001/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and run registered tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	RunE:  runToolsList,
}

var toolsCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the tool catalog shown to the assistant",
	RunE:  runToolsCatalog,
}

var toolsExecCmd = &cobra.Command{
	Use:   "exec <name> [key=value ...]",
	Short: "Run a tool",
	Long: `Run a tool by name. Arguments are given as key=value pairs, or as a JSON
object with --json. Values that parse as JSON (numbers, arrays) are passed as such.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runToolsExec,
}

var toolArgsJSON string

func init() {
	toolsCmd.AddCommand(toolsListCmd, toolsCatalogCmd, toolsExecCmd)
	toolsExecCmd.Flags().StringVar(&toolArgsJSON, "json", "", "Arguments as a JSON object")
}

func runToolsList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tools")
	if err != nil {
		return err
	}

	var defs []tools.Definition
	if err := json.Unmarshal(resp, &defs); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tARGS\tDESCRIPTION")
	for _, d := range defs {
		names := make([]string, 0, len(d.Args))
		for _, a := range d.Args {
			if a.Required {
				names = append(names, a.Name+"*")
			} else {
				names = append(names, a.Name)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, strings.Join(names, ","), d.Description)
	}
	return w.Flush()
}

func runToolsCatalog(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tools/catalog")
	if err != nil {
		return err
	}
	fmt.Print(string(resp))
	return nil
}

func runToolsExec(cmd *cobra.Command, args []string) error {
	toolArgs, err := parseToolArgs(args[1:], toolArgsJSON)
	if err != nil {
		return err
	}

	result, err := executeTool(args[0], toolArgs)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// parseToolArgs merges a JSON object with key=value pairs, pairs winning.
func parseToolArgs(pairs []string, raw string) (map[string]any, error) {
	out := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("invalid --json: %w", err)
		}
	}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			if _, isString := decoded.(string); !isString {
				out[key] = decoded
				continue
			}
		}
		out[key] = value
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
