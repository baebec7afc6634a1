package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/importer"
	"github.com/trezcool/shule/services/spreadsheet"
)

const uploadFileField = "file"

// abortedUpload is the body of an upload stopped midway.
type abortedUpload struct {
	importer.Summary
	AbortedAt int    `json:"aborted_at"`
	Error     string `json:"error"`
}

// upload imports a spreadsheet of teachers, parents or students into a school.
// The form carries the file along with school_id and, for students, section_id.
func (api *rosterApi) upload(kind importer.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		req.Body = http.MaxBytesReader(ctx.Response(), req.Body, api.conf.Import.MaxUploadSize)

		file, err := ctx.FormFile(uploadFileField)
		if err != nil {
			if strings.Contains(err.Error(), "request body too large") {
				return errFileTooLarge
			}
			return core.NewValidationError(nil, core.FieldError{Field: uploadFileField, Error: "a .csv or .xlsx file is required"})
		}

		schoolID, err := api.auth.scopeSchool(ctx, core.CleanString(ctx.FormValue("school_id")))
		if err != nil {
			return err
		}
		if schoolID == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: "school_id is a required field"})
		}
		ictx := importer.Context{
			SchoolID:  schoolID,
			SectionID: core.CleanString(ctx.FormValue("section_id")),
		}

		src, err := file.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		defer src.Close()

		rows, err := spreadsheet.ParseRows(src, file.Filename)
		if err != nil {
			return errors.Wrap(err, "parsing uploaded file")
		}

		summary, err := api.importer.ImportRows(req.Context(), kind, rows, ictx)
		if err != nil {
			var aborted *importer.AbortedError
			if !errors.As(err, &aborted) {
				return errors.Wrap(err, "importing rows")
			}
			api.logger.Error("upload aborted", err)
			return ctx.JSON(http.StatusInternalServerError, abortedUpload{
				Summary:   summary,
				AbortedAt: aborted.Row,
				Error:     "import aborted: the rows before aborted_at were processed",
			})
		}
		return ctx.JSON(http.StatusOK, summary)
	}
}
