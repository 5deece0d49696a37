package server

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
)

// errorLayout wraps an error body in a minimal document so the reload script
// has a <head> to go into.
func errorLayout(status int, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := strconv.Itoa(status) + " " + http.StatusText(status)
		_, err := io.WriteString(w, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>"+
			templ.EscapeString(title)+"</title></head><body>"+body+"</body></html>")
		return err
	})
}

func notFoundPage(path string) templ.Component {
	return errorLayout(http.StatusNotFound,
		"<h2>File not found</h2><p>File "+templ.EscapeString(path)+" not found on server.</p>")
}

func methodNotAllowedPage(method string) templ.Component {
	return errorLayout(http.StatusMethodNotAllowed,
		"<h2>"+templ.EscapeString(method)+" method not allowed</h2>")
}

func serverErrorPage(message, trace string) templ.Component {
	body := "<h2>Server Error Occurred</h2><h3>" + templ.EscapeString(message) + "</h3>"
	if trace != "" {
		body += "<pre>" + templ.EscapeString(trace) + "</pre>"
	}

	return errorLayout(http.StatusInternalServerError, body)
}
