package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goclaw/taskflow/config"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/storage"
)

func newWorkflowsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflows",
		Aliases: []string{"wf"},
		Short:   "Inspect stored workflows",
	}

	var (
		category    string
		defaultOnly bool
		output      string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := &storage.WorkflowFilter{DefaultOnly: defaultOnly}
			if cmd.Flags().Changed("category") {
				filter.TaskCategory = &category
			}
			return runWorkflowsList(cmd, opts, filter, output)
		},
	}
	list.Flags().StringVar(&category, "category", "", "Only workflows of this task category")
	list.Flags().BoolVar(&defaultOnly, "default-only", false, "Only category defaults")
	list.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one workflow as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflowsShow(cmd, opts, args[0])
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func runWorkflowsList(cmd *cobra.Command, opts *rootOptions, filter *storage.WorkflowFilter, output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown output format %q", output)
	}
	cfg, err := opts.load(config.NewLoader(), nil)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cfg, quietLogger(cfg), nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.seed(ctx); err != nil {
		return err
	}

	workflows, total, err := rt.workflows.ListWorkflows(ctx, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"workflows": workflows, "total": total})
	}
	return printWorkflowTable(out, workflows)
}

func printWorkflowTable(out io.Writer, workflows []*definition.Workflow) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSTATUSES\tTRANSITIONS\tFLAGS")
	for _, wf := range workflows {
		var flags []string
		if wf.IsDefault {
			flags = append(flags, "default")
		}
		if wf.IsLocked {
			flags = append(flags, "locked")
		}
		category := wf.TaskCategory
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			wf.ID, wf.Name, category, len(wf.Statuses), len(wf.Transitions), strings.Join(flags, ","))
	}
	return tw.Flush()
}

func runWorkflowsShow(cmd *cobra.Command, opts *rootOptions, id string) error {
	cfg, err := opts.load(config.NewLoader(), nil)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cfg, quietLogger(cfg), nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.seed(ctx); err != nil {
		return err
	}

	wf, err := rt.workflows.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(wf)
}
