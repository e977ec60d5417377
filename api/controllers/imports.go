package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkellerhals/sourcelane-backend/api/middleware"
	"github.com/mkellerhals/sourcelane-backend/api/responses"
	"github.com/mkellerhals/sourcelane-backend/api/validators"
	"github.com/mkellerhals/sourcelane-backend/internal/extraction"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
)

type previewRequest struct {
	URL        string     `json:"url" validate:"required"`
	CategoryID *uuid.UUID `json:"categoryId,omitempty"`
}

type importRequest struct {
	URL            string     `json:"url" validate:"required"`
	CategoryID     *uuid.UUID `json:"categoryId,omitempty"`
	DownloadImages bool       `json:"downloadImages"`
}

// ImportPreview scrapes a supplier listing without persisting anything.
func ImportPreview(svc extraction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		var req previewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Preview(r.Context(), req.URL, req.CategoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ImportCreate runs a synchronous import and returns the created catalog records.
func ImportCreate(svc extraction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req importRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Import(r.Context(), extraction.ImportInput{
			OwnerID:        ownerID,
			SupplierURL:    req.URL,
			CategoryID:     req.CategoryID,
			DownloadImages: req.DownloadImages,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ImportAsync kicks off a background import and returns the job id immediately.
func ImportAsync(svc extraction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req importRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		jobID, err := svc.StartAsyncImport(r.Context(), extraction.ImportInput{
			OwnerID:        ownerID,
			SupplierURL:    req.URL,
			CategoryID:     req.CategoryID,
			DownloadImages: req.DownloadImages,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"jobId": jobID.String()})
	}
}

// ImportJobStatus returns the current state of an async import job.
func ImportJobStatus(svc extraction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		jobID, err := parseJobID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.JobStatus(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, job)
	}
}

// ImportJobCancel flips a pending or processing job to failed.
func ImportJobCancel(svc extraction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "import service unavailable"))
			return
		}

		jobID, err := parseJobID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelJob(r.Context(), jobID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"jobId": jobID.String(), "status": "cancelled"})
	}
}

func parseJobID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "jobId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	jobID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid job id")
	}
	return jobID, nil
}

func ownerFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return ownerID, nil
}
