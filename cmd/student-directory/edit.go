package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/student-directory/internal/directory"
	"github.com/aanand-mishra/student-directory/internal/imagesource"
)

// draftFlags are the form fields shared by add and edit.
type draftFlags struct {
	name    string
	place   string
	contact string
	photo   string
	camera  bool
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "student's full name (letters and spaces, at least 3)")
	cmd.Flags().StringVar(&f.place, "place", "", "home place (at least 2 characters)")
	cmd.Flags().StringVar(&f.contact, "contact", "", "ten-digit contact number")
	cmd.Flags().StringVar(&f.photo, "photo", "", "photo file to pick from the gallery")
	cmd.Flags().BoolVar(&f.camera, "camera", false, "wait for a new shot in the capture directory")
	cmd.MarkFlagsMutuallyExclusive("photo", "camera")
}

// acquire stages a photo from the gallery or the camera, if asked to.
func (f *draftFlags) acquire(cmd *cobra.Command, opts *rootOptions, ed *directory.Editor) error {
	src := &imagesource.Local{
		GalleryPath: f.photo,
		CaptureDir:  opts.cfg.ImageSource.CaptureDir,
		Timeout:     opts.cfg.ImageSource.CaptureTimeout,
	}
	switch {
	case f.camera:
		fmt.Fprintf(cmd.ErrOrStderr(), "waiting for a shot in %s ...\n", src.CaptureDir)
		return ed.Acquire(cmd.Context(), src.AcquireFromCamera)
	case f.photo != "":
		return ed.Acquire(cmd.Context(), src.AcquireFromGallery)
	}
	return nil
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var f draftFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir, closeStore, err := opts.openDirectory(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			ed := directory.NewEditor(dir)
			ed.BeginCreate()
			ed.SetFields(f.name, f.place, f.contact)
			if err := f.acquire(cmd, opts, ed); err != nil {
				return err
			}

			c, err := ed.Commit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added student %d\n", c.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	var f draftFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a student; fields not given keep their current value",
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

			ed := directory.NewEditor(dir)
			ed.BeginEdit(rec)
			d := ed.Draft()
			flags := cmd.Flags()
			if flags.Changed("name") {
				d.Name = f.name
			}
			if flags.Changed("place") {
				d.Place = f.place
			}
			if flags.Changed("contact") {
				d.Contact = f.contact
			}
			ed.SetFields(d.Name, d.Place, d.Contact)
			if err := f.acquire(cmd, opts, ed); err != nil {
				return err
			}

			c, err := ed.Commit(ctx)
			if err != nil {
				return err
			}
			if c.RowsAffected == 0 {
				// The student vanished between reading and writing; the
				// store reports that as zero rows, not as an error.
				fmt.Fprintf(cmd.OutOrStdout(), "no student with id %d; nothing was changed\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated student %d\n", id)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a student (the photo file is kept)",
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

			n, err := dir.Delete(ctx, id)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("no student found with id %d", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted student %d\n", id)
			return nil
		},
	}
}
