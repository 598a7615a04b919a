// Package student contains the HTTP handlers for the eligible-student base.
//
// Handlers are built by factory functions that receive their
// dependencies and return an http.HandlerFunc:
//
//	router.HandleFunc("POST /api/students", student.New(store, fx))
//
// The factory runs once at startup; the returned closure runs on every
// request.
package student

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/student-base/internal/effects"
	"github.com/aanand-mishra/student-base/internal/importer"
	"github.com/aanand-mishra/student-base/internal/storage"
	"github.com/aanand-mishra/student-base/internal/types"
	"github.com/aanand-mishra/student-base/internal/utils/response"
	"github.com/aanand-mishra/student-base/internal/utils/upload"
)

// ActorHeader identifies the admin performing the request. It is set by
// the gateway in front of this service and recorded in audit entries.
const ActorHeader = "X-Admin-User"

// multipartOverhead is the room left for multipart boundaries and
// headers on top of the file size limit.
const multipartOverhead = 1 << 20

// studentRequest is the JSON body of create and update calls.
type studentRequest struct {
	Name      string `json:"name"`
	CPF       string `json:"cpf"`
	Email     string `json:"email"`
	IsForeign bool   `json:"is_foreign"`
}

// toStudent applies the same CPF and email normalization as the CSV
// importer. A foreign student never keeps a CPF.
func (r studentRequest) toStudent() types.Student {
	s := types.Student{
		Name:      strings.TrimSpace(r.Name),
		Email:     types.Ptr(importer.NormalizeEmail(r.Email)),
		IsForeign: r.IsForeign,
	}
	if !r.IsForeign {
		s.CPF = types.Ptr(importer.NormalizeCPF(r.CPF))
	}
	return s
}

// decodeStudent reads and validates the request body. On failure it has
// already written the response and returns false.
func decodeStudent(w http.ResponseWriter, r *http.Request) (types.Student, bool) {
	var req studentRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if errors.Is(err, io.EOF) {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("request body is empty")))
		return types.Student{}, false
	}
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return types.Student{}, false
	}

	student := req.toStudent()
	if err := types.ValidateStudent(student); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(verrs))
		} else {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		}
		return types.Student{}, false
	}
	return student, true
}

// writeStoreError maps storage errors to HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		response.WriteJSON(w, http.StatusNotFound, response.GeneralError(err))
	case errors.Is(err, storage.ErrDuplicate):
		response.WriteJSON(w, http.StatusConflict, response.GeneralError(storage.ErrDuplicate))
	default:
		response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	intID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("invalid id: must be an integer")))
		return 0, false
	}
	return intID, true
}

// ─────────────────────────────────────────────────────────────────────────────
// Import handles POST /api/students/import (multipart/form-data, field "file").
//
// The response is always an ImportResult:
//
//	200: { "success": true,  "message": "12 student(s) imported successfully..." }
//	400: no file, or a file without data rows
//	413: file larger than maxBytes
//	500: a batch insert failed, or something unexpected happened
//
// ─────────────────────────────────────────────────────────────────────────────
func Import(im *importer.Importer, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("import panicked", slog.Any("panic", p))
				response.Import(w, http.StatusInternalServerError, types.ImportResult{
					Success: false,
					Message: "Unexpected error while importing the file. Please try again.",
				})
			}
		}()

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				response.Import(w, http.StatusRequestEntityTooLarge,
					types.ImportResult{Success: false, Message: "The file is too large."})
				return
			}
			response.Import(w, http.StatusBadRequest,
				types.ImportResult{Success: false, Message: "No file provided."})
			return
		}
		defer file.Close()

		slog.Info("importing student base",
			slog.String("file", header.Filename),
			slog.Int64("size", header.Size))

		data, err := upload.ReadAllLimit(file, maxBytes)
		if err != nil {
			if errors.Is(err, upload.ErrTooLarge) {
				response.Import(w, http.StatusRequestEntityTooLarge,
					types.ImportResult{Success: false, Message: "The file is too large."})
				return
			}
			response.Import(w, http.StatusBadRequest,
				types.ImportResult{Success: false, Message: "Could not read the uploaded file."})
			return
		}

		result, err := im.Import(r.Context(), importer.Upload{
			FileName: header.Filename,
			Data:     data,
			Actor:    r.Header.Get(ActorHeader),
		})

		status := http.StatusOK
		switch {
		case errors.Is(err, importer.ErrNoData):
			status = http.StatusBadRequest
		case err != nil:
			status = http.StatusInternalServerError
		}
		response.Import(w, status, result)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/students: manual add of one eligible student.
//
//	{ "name": "Maria Silva", "cpf": "123.456.789-01", "email": "maria@x.com" }
//	{ "name": "John Smith", "email": "john@x.com", "is_foreign": true }
//
// 201 { "id": 1 } · 400 validation · 409 CPF/email already registered
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.Storage, fx *effects.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")

		student, ok := decodeStudent(w, r)
		if !ok {
			return
		}

		lastID, err := store.CreateStudent(r.Context(), student)
		if err != nil {
			slog.Error("error creating student", slog.String("error", err.Error()))
			writeStoreError(w, err)
			return
		}

		slog.Info("student created", slog.Int64("id", lastID))
		fx.After(r.Context(), types.ActionCreateStudent, r.Header.Get(ActorHeader),
			map[string]any{"id": lastID, "is_foreign": student.IsForeign})

		response.WriteJSON(w, http.StatusCreated, map[string]int64{"id": lastID})
	}
}

// GetByID handles GET /api/students/{id}.
func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		slog.Info("getting a student", slog.Int64("id", id))

		student, err := store.GetStudentByID(r.Context(), id)
		if err != nil {
			slog.Error("error getting student",
				slog.Int64("id", id),
				slog.String("error", err.Error()))
			writeStoreError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, student)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /api/students?search=&foreign=&page=&page_size=
//
//	{ "items": [...], "total": 42, "page": 1, "page_size": 20 }
//
// ─────────────────────────────────────────────────────────────────────────────
func GetList(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}
		slog.Info("listing students",
			slog.String("search", filter.Search),
			slog.Int("page", filter.Page))

		page, err := store.ListStudents(r.Context(), filter)
		if err != nil {
			slog.Error("error listing students", slog.String("error", err.Error()))
			writeStoreError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, page)
	}
}

func parseFilter(r *http.Request) (types.StudentFilter, error) {
	q := r.URL.Query()
	filter := types.StudentFilter{Search: strings.TrimSpace(q.Get("search"))}

	if v := q.Get("foreign"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("invalid foreign: must be true or false")
		}
		filter.Foreign = &b
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, errors.New("invalid page: must be an integer")
		}
		filter.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, errors.New("invalid page_size: must be an integer")
		}
		filter.PageSize = n
	}
	return filter.Normalize(), nil
}

// Update handles PUT /api/students/{id}: replaces every editable field.
func Update(store storage.Storage, fx *effects.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		slog.Info("updating a student", slog.Int64("id", id))

		student, ok := decodeStudent(w, r)
		if !ok {
			return
		}

		updated, err := store.UpdateStudentByID(r.Context(), id, student)
		if err != nil {
			slog.Error("error updating student",
				slog.Int64("id", id),
				slog.String("error", err.Error()))
			writeStoreError(w, err)
			return
		}

		slog.Info("student updated", slog.Int64("id", id))
		fx.After(r.Context(), types.ActionUpdateStudent, r.Header.Get(ActorHeader),
			map[string]any{"id": id, "is_foreign": updated.IsForeign})

		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// Delete handles DELETE /api/students/{id}.
func Delete(store storage.Storage, fx *effects.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		slog.Info("deleting a student", slog.Int64("id", id))

		if err := store.DeleteStudentByID(r.Context(), id); err != nil {
			slog.Error("error deleting student",
				slog.Int64("id", id),
				slog.String("error", err.Error()))
			writeStoreError(w, err)
			return
		}

		slog.Info("student deleted", slog.Int64("id", id))
		fx.After(r.Context(), types.ActionDeleteStudent, r.Header.Get(ActorHeader),
			map[string]any{"id": id})

		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// eligibility is the body of an eligibility lookup.
type eligibility struct {
	Eligible bool           `json:"eligible"`
	Student  *types.Student `json:"student,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Eligibility handles GET /api/students/eligibility?cpf=&email=
//
// Credential requests are auto-approved when the requester is in the
// student base: by CPF when one is given, otherwise by email among
// foreign students.
//
//	{ "eligible": true, "student": { ... } }
//
// ─────────────────────────────────────────────────────────────────────────────
func Eligibility(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		cpf := importer.NormalizeCPF(q.Get("cpf"))
		email := importer.NormalizeEmail(q.Get("email"))

		if cpf == "" && email == "" {
			response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(errors.New("cpf or email is required")))
			return
		}

		student, ok, err := store.FindEligible(r.Context(), cpf, email)
		if err != nil {
			slog.Error("error checking eligibility", slog.String("error", err.Error()))
			writeStoreError(w, err)
			return
		}

		res := eligibility{Eligible: ok}
		if ok {
			res.Student = &student
		}
		response.WriteJSON(w, http.StatusOK, res)
	}
}
