package featureapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/togglekit/pkg/clientip"
	"github.com/dmitrymomot/togglekit/pkg/environment"
	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/httpserver"
	"github.com/dmitrymomot/togglekit/pkg/logger"
	"github.com/dmitrymomot/togglekit/pkg/requestid"
)

// MaxBodySize bounds the size of a PUT body.
const MaxBodySize = 64 << 10

// AttributePrefix marks query parameters carrying user attributes, as in
// ?attr.plan=pro.
const AttributePrefix = "attr."

// Option configures the router.
type Option func(*api)

// WithLogger sets a custom logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(a *api) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithEnvironment exposes env to environment based strategies.
func WithEnvironment(env environment.Environment) Option {
	return func(a *api) {
		a.env = env
	}
}

// WithClientIPResolver sets how the caller's address is found, for example
// behind a proxy with custom headers.
func WithClientIPResolver(res *clientip.Resolver) Option {
	return func(a *api) {
		if res != nil {
			a.resolver = res
		}
	}
}

// WithReadinessChecks adds probes run by /health/ready.
func WithReadinessChecks(checks ...func(context.Context) error) Option {
	return func(a *api) {
		a.checks = append(a.checks, checks...)
	}
}

// WithReadOnly rejects state changes with 405.
func WithReadOnly() Option {
	return func(a *api) {
		a.readOnly = true
	}
}

type api struct {
	manager  *feature.Manager
	logger   *slog.Logger
	env      environment.Environment
	resolver *clientip.Resolver
	checks   []func(context.Context) error
	readOnly bool
}

// NewRouter returns the HTTP API over manager:
//
//	GET /features                 stored features with their states
//	GET /features/{name}          effective state of one feature
//	PUT /features/{name}          replace the state of one feature
//	GET /features/{name}/active   evaluate for ?user=name&attr.key=value
//	GET /strategies               registered strategies and their parameters
//	GET /health/live, /health/ready
//
// Panics if manager is nil.
func NewRouter(manager *feature.Manager, opts ...Option) chi.Router {
	if manager == nil {
		panic("featureapi: manager cannot be nil")
	}

	a := &api{
		manager:  manager,
		logger:   logger.Noop(),
		resolver: clientip.NewResolver(),
	}
	for _, opt := range opts {
		opt(a)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, a.resolver.Middleware)
	if a.env != "" {
		r.Use(environment.Middleware(a.env))
	}

	r.Get("/health/live", httpserver.HealthCheckHandler(a.logger))
	r.Get("/health/ready", httpserver.HealthCheckHandler(a.logger, a.checks...))
	r.Get("/strategies", a.strategies)
	r.Route("/features", func(r chi.Router) {
		r.Get("/", a.list)
		r.Get("/{name}", a.get)
		r.Get("/{name}/active", a.active)
		if a.readOnly {
			r.Put("/{name}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusMethodNotAllowed)
			})
		} else {
			r.Put("/{name}", a.put)
		}
	})
	return r
}

func (a *api) list(w http.ResponseWriter, r *http.Request) {
	lister, ok := a.manager.Source().(feature.Lister)
	if !ok {
		a.fail(w, r, feature.ErrUnsupported)
		return
	}
	features, err := lister.Features(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}

	views := make([]StateView, 0, len(features))
	for _, f := range features {
		state, err := a.manager.State(r.Context(), f)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		views = append(views, NewStateView(state))
	}
	writeJSON(w, http.StatusOK, Response{Data: views})
}

func (a *api) get(w http.ResponseWriter, r *http.Request) {
	state, err := a.manager.State(r.Context(), featureParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: NewStateView(state)})
}

// StateRequest is the body of PUT /features/{name}.
type StateRequest struct {
	Enabled    bool              `json:"enabled"`
	Strategy   string            `json:"strategy,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

func (a *api) put(w http.ResponseWriter, r *http.Request) {
	var req StateRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	state := feature.NewState(featureParam(r)).
		SetEnabled(req.Enabled).
		SetStrategyID(req.Strategy)
	for name, value := range req.Parameters {
		state.SetParameter(name, value)
	}

	if err := a.manager.Registry().Validate(state); err != nil {
		a.fail(w, r, errors.Join(ErrValidation, err))
		return
	}
	if err := a.manager.SetState(r.Context(), state); err != nil {
		a.fail(w, r, err)
		return
	}

	a.logger.InfoContext(r.Context(), "feature updated",
		logger.Feature(state.Feature().Name()),
		logger.Strategy(state.StrategyID()),
	)
	writeJSON(w, http.StatusOK, Response{Data: NewStateView(state)})
}

// Activation is the body of GET /features/{name}/active.
type Activation struct {
	Feature string `json:"feature"`
	User    string `json:"user,omitempty"`
	Active  bool   `json:"active"`
}

func (a *api) active(w http.ResponseWriter, r *http.Request) {
	f := featureParam(r)
	user := userFromQuery(r)

	active, err := a.manager.IsActive(r.Context(), f, user)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: Activation{
		Feature: f.Name(),
		User:    user.Name,
		Active:  active,
	}})
}

// StrategyView describes a registered strategy.
type StrategyView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Parameters []ParameterView `json:"parameters"`
}

// ParameterView describes one strategy parameter.
type ParameterView struct {
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
}

func (a *api) strategies(w http.ResponseWriter, _ *http.Request) {
	registry := a.manager.Registry()
	views := make([]StrategyView, 0, len(registry.IDs()))
	for _, id := range registry.IDs() {
		s, _ := registry.Lookup(id)
		view := StrategyView{ID: id, Name: s.Name(), Parameters: []ParameterView{}}
		for _, p := range s.Parameters() {
			view.Parameters = append(view.Parameters, ParameterView{
				Name:        p.Name,
				Label:       p.Label,
				Description: p.Description,
				Optional:    p.Optional,
			})
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, Response{Data: views})
}

func featureParam(r *http.Request) feature.Feature {
	return feature.Feature(chi.URLParam(r, "name"))
}

func userFromQuery(r *http.Request) feature.User {
	query := r.URL.Query()
	user := feature.User{Name: query.Get("user")}
	for key, values := range query {
		name, ok := strings.CutPrefix(key, AttributePrefix)
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		if user.Attributes == nil {
			user.Attributes = make(map[string]string)
		}
		user.Attributes[name] = values[0]
	}
	return user
}

// decode reads a single strict JSON document of at most MaxBodySize bytes.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidRequest)
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", ErrInvalidRequest)
	}
	return nil
}
