package handler

import (
	"net/http"
	"strconv"
)

func int64FromPath(r *http.Request, name string) (int64, *AppError) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrResourceNotFound
	}
	return id, nil
}

// intQuery returns def when the parameter is absent.
func intQuery(r *http.Request, name string, def int) (int, []FieldError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, []FieldError{{Field: name, Message: "must be an integer"}}
	}
	return v, nil
}

func boolQuery(r *http.Request, name string) (bool, []FieldError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, []FieldError{{Field: name, Message: "must be true or false"}}
	}
	return v, nil
}
