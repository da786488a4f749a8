package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/student-directory/internal/render"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [query]",
		Short: "List students, optionally only those whose name contains query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir, closeStore, err := opts.openDirectory(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			var query string
			if len(args) == 1 {
				query = args[0]
			}
			if err := dir.Search(ctx, query); err != nil {
				return err
			}
			return render.State(cmd.OutOrStdout(), dir.State())
		},
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			dir, closeStore, err := opts.openDirectory(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			rec, err := dir.Get(ctx, id)
			if err != nil {
				return err
			}
			if err := render.Student(cmd.OutOrStdout(), rec); err != nil {
				return err
			}

			present, err := dir.HasPhoto(ctx, rec)
			if err != nil {
				return err
			}
			if !present {
				fmt.Fprintln(cmd.OutOrStdout(), "warning: photo file is missing")
			}
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be an integer", s)
	}
	return id, nil
}
