package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unicef/hope-sub007/pkg/jobs"
	"github.com/unicef/hope-sub007/pkg/store"
)

type runFlags struct {
	businessAreas []string
	all           bool
	manifest      string
	dryRun        bool
	concurrency   int
	output        string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.businessAreas, "business-area", "b", nil, "business area id (repeatable)")
	cmd.Flags().BoolVar(&f.all, "all", false, "run every business area")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "YAML job manifest")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "roll back every change")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "business areas run in parallel (defaults to config)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "output format: text or json")
	cmd.MarkFlagsMutuallyExclusive("business-area", "all", "manifest")
}

func newRunCmd(use, short string, kind jobs.Kind) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJobs(cmd.Context(), cmd.OutOrStdout(), kind, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

var (
	migrateCmd = newRunCmd("migrate",
		"Copy households then grievance records into their programs", jobs.KindMigrate)
	migrateGrievanceCmd = newRunCmd("migrate-grievance",
		"Copy grievance tickets, feedback and messages into their programs", jobs.KindMigrateGrievance)
	syncCmd = newRunCmd("sync",
		"Push new, removed and modified originals to their representations", jobs.KindSync)
)

func runJobs(ctx context.Context, out io.Writer, kind jobs.Kind, flags *runFlags) error {
	if flags.output != "text" && flags.output != "json" {
		return fmt.Errorf("unsupported output %q", flags.output)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	list, opts, err := resolveJobs(ctx, a.store, kind, flags)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return errors.New("no business areas given: use --business-area, --all or --manifest")
	}

	results, runErr := a.runner.Run(ctx, list, opts)
	if err := printResults(out, flags.output, results); err != nil {
		return err
	}
	return runErr
}

func resolveJobs(ctx context.Context, s store.Store, kind jobs.Kind, flags *runFlags) ([]jobs.Job, jobs.RunOptions, error) {
	opts := jobs.RunOptions{DryRun: flags.dryRun, Concurrency: flags.concurrency}

	switch {
	case flags.manifest != "":
		m, err := jobs.LoadManifest(flags.manifest)
		if err != nil {
			return nil, opts, err
		}
		opts.DryRun = opts.DryRun || m.DryRun
		if opts.Concurrency == 0 {
			opts.Concurrency = m.Concurrency
		}
		return m.Expand(), opts, nil

	case flags.all:
		areas, err := s.BusinessAreas().Find(ctx, store.All().OrderBy("slug"))
		if err != nil {
			return nil, opts, fmt.Errorf("failed to list business areas: %w", err)
		}
		list := make([]jobs.Job, len(areas))
		for i, ba := range areas {
			list[i] = jobs.Job{Kind: kind, BusinessAreaID: ba.ID}
		}
		return list, opts, nil
	}

	list := make([]jobs.Job, len(flags.businessAreas))
	for i, ba := range flags.businessAreas {
		list[i] = jobs.Job{Kind: kind, BusinessAreaID: ba}
	}
	return list, opts, nil
}

type resultView struct {
	jobs.Result
	Error string `json:"error,omitempty"`
}

func printResults(out io.Writer, format string, results []jobs.Result) error {
	if format == "json" {
		views := make([]resultView, len(results))
		for i, res := range results {
			views[i] = resultView{Result: res}
			if res.Err != nil {
				views[i].Error = res.Err.Error()
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tBUSINESS AREA\tENTITY\tCREATED\tUPDATED\tDELETED\tASSIGNED\tSKIPPED")
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(w, "%s\t%s\tFAILED: %v\t\t\t\t\t\n", res.Job.Kind, res.Job.BusinessAreaID, res.Err)
			continue
		}
		types := make([]string, 0, len(res.Summary.Counts))
		for t := range res.Summary.Counts {
			types = append(types, t)
		}
		for t := range res.Summary.Skipped {
			if _, ok := res.Summary.Counts[t]; !ok {
				types = append(types, t)
			}
		}
		sort.Strings(types)
		if len(types) == 0 {
			fmt.Fprintf(w, "%s\t%s\t(no changes)\t\t\t\t\t\n", res.Job.Kind, res.Job.BusinessAreaID)
		}
		for _, t := range types {
			c := res.Summary.Counts[t]
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n", res.Job.Kind, res.Job.BusinessAreaID, t,
				c.Created, c.Updated, c.Deleted, c.Assigned, res.Summary.Skipped[t])
		}
		if res.DryRun {
			fmt.Fprintf(w, "%s\t%s\t(dry run, rolled back)\t\t\t\t\t\n", res.Job.Kind, res.Job.BusinessAreaID)
		}
	}
	return w.Flush()
}
