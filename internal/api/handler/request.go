package handler

import (
	"encoding/json"
	"mime"
	"net/http"
)

const maxBodyBytes = 1 << 20

// bind fills dst from a JSON body, or from form fields when the request is
// a form post. fields maps form keys to the struct's string fields.
func bind(w http.ResponseWriter, r *http.Request, dst any, fields map[string]*string) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	switch formType(r) {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return err
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return err
		}
	default:
		return json.NewDecoder(r.Body).Decode(dst)
	}
	for key, ptr := range fields {
		*ptr = r.PostForm.Get(key)
	}
	return nil
}

// formType returns the form media type of the request, or "" for anything
// else.
func formType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	if mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data" {
		return mt
	}
	return ""
}
