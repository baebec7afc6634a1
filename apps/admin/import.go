package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/importer"
	"github.com/trezcool/shule/services/spreadsheet"
)

// importFile runs a bulk import from a spreadsheet on disk and prints its summary.
func (cli *commandLine) importFile(kind importer.Kind, path string, ictx importer.Context) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer f.Close()

	rows, err := spreadsheet.ParseRows(f, path)
	if err != nil {
		return err
	}

	summary, err := cli.importer.ImportRows(context.Background(), kind, rows, ictx)
	w := cli.writer()
	fmt.Fprintf(w, "%d created, %d skipped\n", summary.Created, summary.Skipped)
	for _, f := range summary.Failures {
		fmt.Fprintf(w, "  row %d: %s\n", f.Row, f.Reason)
	}
	return err
}
