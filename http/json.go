package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"socialnet/crud"
	"socialnet/domain"
	"socialnet/errs"
)

// maxJSONBody caps JSON request bodies. An inline avatar grows by a third when base64 encoded.
const maxJSONBody = 2 * domain.MaxUploadSize

// successResponse is the body of every write that has nothing else to report.
type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errs.LogError(r, err)
	}
}

// writeSuccess writes {"success": true} along with an optional message.
func writeSuccess(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, r, http.StatusOK, successResponse{Success: true, Message: message})
}

// decodeJSON parses the request's json body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.Errorf(errs.EINVALID, "The request body is too large.")
		}
		return errs.Errorf(errs.EINVALID, "Invalid json body.")
	}
	return nil
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart reads a multipart form whose files must stay below the upload limit.
func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(domain.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.Errorf(errs.EINVALID, "The image must not exceed %d MB.", domain.MaxUploadSize>>20)
		}
		return errs.Errorf(errs.EINVALID, "Invalid form data.")
	}
	return nil
}

// formImage normalizes the named file of a parsed multipart form. It returns "" when no
// file was sent.
func (s *Server) formImage(r *http.Request, field string, b domain.Bounds) (string, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", errs.Errorf(errs.EINVALID, "Invalid upload.")
	}
	defer file.Close()
	return s.is.Normalize(r.Context(), file, b)
}

// inlineImage normalizes an image that a JSON client sent as a data URI.
func (s *Server) inlineImage(ctx context.Context, value string, b domain.Bounds) (string, error) {
	data, err := crud.ParseDataURI(value)
	if err != nil {
		return "", err
	}
	return s.is.Normalize(ctx, bytes.NewReader(data), b)
}

// formValue returns the named value of a parsed form, and whether it was sent at all.
func formValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	vs, ok := r.MultipartForm.Value[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// pathID parses the named positive id from the url.
func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		return 0, errs.Errorf(errs.EINVALID, "Invalid Id format.")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter. A missing parameter yields 0.
func queryInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errs.Errorf(errs.EINVALID, "Invalid %s parameter.", key)
	}
	return n, nil
}

// pageFromQuery reads the page and limit query parameters.
func pageFromQuery(r *http.Request) (domain.Page, error) {
	q := r.URL.Query()
	number, err := queryInt(q, "page")
	if err != nil {
		return domain.Page{}, err
	}
	limit, err := queryInt(q, "limit")
	if err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Number: number, Limit: limit}.Normalize(), nil
}
