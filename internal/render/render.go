// Package render prints the directory state as plain text for the CLI.
package render

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/aanand-mishra/student-directory/internal/directory"
	"github.com/aanand-mishra/student-directory/internal/types"
)

// State writes st as an aligned table followed by a count, or a one-line
// message when there is nothing to show.
func State(w io.Writer, st directory.State) error {
	switch {
	case st.NoResults:
		_, err := fmt.Fprintf(w, "no students match %q\n", st.Query)
		return err
	case len(st.Students) == 0:
		_, err := fmt.Fprintln(w, "no students yet")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPLACE\tCONTACT\tPHOTO")
	for _, s := range st.Students {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Place, types.FormatContact(s.Contact), s.ImagePath)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, count(len(st.Students)))
	return err
}

// Student writes one record as "field: value" lines.
func Student(w io.Writer, s types.Student) error {
	_, err := fmt.Fprintf(w, "id:      %d\nname:    %s\nplace:   %s\ncontact: %s\nphoto:   %s\n",
		s.ID, s.Name, s.Place, types.FormatContact(s.Contact), s.ImagePath)
	return err
}

func count(n int) string {
	if n == 1 {
		return "1 student"
	}
	return strconv.Itoa(n) + " students"
}
