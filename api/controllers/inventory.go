package controllers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/angelmondragon/autoparts-backend/api/responses"
	"github.com/angelmondragon/autoparts-backend/api/validators"
	"github.com/angelmondragon/autoparts-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
)

const (
	inventoryFileField  = "file"
	defaultMaxUploadMB  = 5
	multipartMemoryBase = 1 << 20
)

// InventoryImporter applies a product CSV.
type InventoryImporter interface {
	Import(ctx context.Context, r io.Reader, opts inventory.Options) (*inventory.Report, error)
}

// InventoryImport accepts the CSV either as the "file" part of a multipart
// form or as a raw text/csv body. ?dry_run=true validates without writing.
// A rejected file answers 400 with every row error in details.
func InventoryImport(importer InventoryImporter, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	maxBytes := int64(maxUploadMB) << 20

	return func(w http.ResponseWriter, r *http.Request) {
		if importer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory importer unavailable"))
			return
		}

		dryRun, err := validators.ParseQueryBool(r, "dry_run")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		file, closeFile, err := uploadedCSV(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, uploadError(err, maxBytes))
			return
		}
		defer closeFile()

		report, err := importer.Import(r.Context(), file, inventory.Options{DryRun: dryRun})
		if err != nil {
			if isTooLarge(err) {
				err = uploadError(err, maxBytes)
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if report.DryRun {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, report)
	}
}

func uploadedCSV(r *http.Request) (io.Reader, func(), error) {
	noop := func() {}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemoryBase); err != nil {
			return nil, noop, err
		}
		file, _, err := r.FormFile(inventoryFileField)
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, pkgerrors.Invalid(inventoryFileField, "is required")
		}
		if err != nil {
			return nil, noop, err
		}
		return file, func() { _ = file.Close() }, nil
	case mediaType == "text/csv", mediaType == "text/plain", strings.HasSuffix(mediaType, "/csv"):
		return r.Body, noop, nil
	default:
		return nil, noop, pkgerrors.New(pkgerrors.CodeValidation, "upload must be multipart/form-data or text/csv")
	}
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func uploadError(err error, maxBytes int64) error {
	if isTooLarge(err) {
		return pkgerrors.New(pkgerrors.CodeValidation, "upload too large").WithDetails(map[string]any{"limit_bytes": maxBytes})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid upload")
}
