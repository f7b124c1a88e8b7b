// Package apiclient is the dashboard's CRUD client. Every mutating call
// raises a success or error toast, and reads treat 404 as "no data".
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/yeremiapane/restaurant-pos/notify"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type operation int

const (
	opGet operation = iota
	opCreate
	opUpdate
	opDelete
)

// Resource is a CRUD client for one upstream collection. Name is only used in
// toast text, e.g. "Cliente".
type Resource[T any] struct {
	Name      string
	Path      string
	Transport Transport
	Notifier  notify.Notifier

	mu      sync.Mutex
	loading int
	lastErr error
}

func NewResource[T any](name, path string, transport Transport, notifier notify.Notifier) *Resource[T] {
	return &Resource[T]{Name: name, Path: path, Transport: transport, Notifier: notifier}
}

// Loading reports whether a call is in flight.
func (r *Resource[T]) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading > 0
}

// Err is the error of the last finished call, nil if it succeeded.
func (r *Resource[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// List fetches the collection. A 404 yields (nil, nil).
func (r *Resource[T]) List(ctx context.Context, params url.Values) ([]T, error) {
	var out []T
	found, err := r.get(ctx, r.Path, params, &out)
	if err != nil || !found {
		return nil, err
	}
	return out, nil
}

// Get fetches one item. A 404 yields (nil, nil).
func (r *Resource[T]) Get(ctx context.Context, id string, params url.Values) (*T, error) {
	var out T
	found, err := r.get(ctx, r.itemPath(id), params, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// Query fetches an arbitrary sub path (e.g. a report) into out.
func (r *Resource[T]) Query(ctx context.Context, sub string, params url.Values, out interface{}) (bool, error) {
	return r.get(ctx, r.join(sub), params, out)
}

func (r *Resource[T]) Create(ctx context.Context, body interface{}) (*T, error) {
	var out T
	if err := r.mutate(ctx, opCreate, http.MethodPost, r.Path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Resource[T]) Update(ctx context.Context, id string, body interface{}) (*T, error) {
	var out T
	if err := r.mutate(ctx, opUpdate, http.MethodPut, r.itemPath(id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSub PUTs body to Path/id/sub, with the same toasts as Update. out
// may be nil.
func (r *Resource[T]) UpdateSub(ctx context.Context, id, sub string, body, out interface{}) error {
	return r.mutate(ctx, opUpdate, http.MethodPut, r.itemPath(id)+"/"+strings.Trim(sub, "/"), body, out)
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.mutate(ctx, opDelete, http.MethodDelete, r.itemPath(id), nil, nil)
}

func (r *Resource[T]) itemPath(id string) string {
	if id == "" {
		return r.Path
	}
	return strings.TrimRight(r.Path, "/") + "/" + url.PathEscape(id)
}

func (r *Resource[T]) join(sub string) string {
	return strings.TrimRight(r.Path, "/") + "/" + strings.Trim(sub, "/")
}

func (r *Resource[T]) begin() {
	r.mu.Lock()
	r.loading++
	r.mu.Unlock()
}

func (r *Resource[T]) end(err error) {
	r.mu.Lock()
	r.loading--
	r.lastErr = err
	r.mu.Unlock()
}

func (r *Resource[T]) get(ctx context.Context, path string, params url.Values, out interface{}) (found bool, err error) {
	r.begin()
	defer func() { r.end(err) }()

	status, body, err := r.Transport.Do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		err = &Error{Message: fmt.Sprintf("Error de conexión: %v", err)}
		r.notify(err.Error(), notify.Error)
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status < 200 || status >= 300 {
		apiErr := newError(status, body)
		r.notify(r.failureMessage(opGet, apiErr), notify.Error)
		return false, apiErr
	}
	if err = decode(body, out); err != nil {
		r.notify(fmt.Sprintf("Respuesta inválida al obtener %s", r.Name), notify.Error)
		return false, err
	}
	return true, nil
}

func (r *Resource[T]) mutate(ctx context.Context, op operation, method, path string, body, out interface{}) (err error) {
	r.begin()
	defer func() { r.end(err) }()

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	status, respBody, err := r.Transport.Do(ctx, method, path, nil, payload)
	if err != nil {
		err = &Error{Message: fmt.Sprintf("Error de conexión: %v", err)}
		r.notify(err.Error(), notify.Error)
		return err
	}
	if status < 200 || status >= 300 {
		apiErr := newError(status, respBody)
		r.notify(r.failureMessage(op, apiErr), notify.Error)
		utils.ErrorLogger.Printf("%s %s failed: %v", method, path, apiErr)
		return apiErr
	}
	if out != nil {
		if err = decode(respBody, out); err != nil {
			r.notify(fmt.Sprintf("Respuesta inválida de %s", r.Name), notify.Error)
			return err
		}
	}
	r.notify(r.successMessage(op), notify.Success)
	return nil
}

func decode(body []byte, out interface{}) error {
	if out == nil || len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *Resource[T]) notify(msg string, sev notify.Severity) {
	if r.Notifier != nil {
		r.Notifier.Notify(msg, sev)
	}
}

func (r *Resource[T]) successMessage(op operation) string {
	switch op {
	case opCreate:
		return r.Name + " creado correctamente"
	case opUpdate:
		return r.Name + " actualizado correctamente"
	case opDelete:
		return r.Name + " eliminado correctamente"
	}
	return ""
}

func (r *Resource[T]) failureMessage(op operation, e *Error) string {
	if e.Status == http.StatusUnauthorized {
		return e.Message
	}
	if e.Conflict() {
		switch op {
		case opCreate:
			return r.Name + " ya existe"
		case opUpdate:
			return "Conflicto al actualizar " + r.Name + ": ya existe"
		case opDelete:
			return "No se puede eliminar " + r.Name + " con datos vinculados"
		}
	}
	verb := map[operation]string{
		opGet:    "obtener",
		opCreate: "crear",
		opUpdate: "actualizar",
		opDelete: "eliminar",
	}[op]
	return fmt.Sprintf("Error al %s %s: %s", verb, r.Name, e.Message)
}

// IsNotFound is a helper for callers holding an error from a sub call.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}
