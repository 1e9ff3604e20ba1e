package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"datachat/directive"
)

// ErrDuplicate is returned by NewRegistry when two pipelines share a name.
var ErrDuplicate = errors.New("duplicate pipeline name")

// Registry maps tool names to pipelines. It is read-only after construction.
type Registry struct {
	pipelines map[Name]Pipeline
	order     []Name
	logger    *zap.Logger
}

func NewRegistry(logger *zap.Logger, pipelines ...Pipeline) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		pipelines: make(map[Name]Pipeline, len(pipelines)),
		logger:    logger,
	}
	for _, p := range pipelines {
		name := p.Descriptor().Name
		if name == "" {
			return nil, errors.New("pipeline with empty name")
		}
		if _, ok := r.pipelines[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
		}
		r.pipelines[name] = p
		r.order = append(r.order, name)
	}
	return r, nil
}

func (r *Registry) Get(name Name) (Pipeline, bool) {
	p, ok := r.pipelines[name]
	return p, ok
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.pipelines[name].Descriptor())
	}
	return out
}

// Names returns the registered names sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the pipeline named by d. The boolean is false when no
// pipeline has that name, in which case nothing ran. A panicking pipeline
// yields an error record.
func (r *Registry) Dispatch(ctx context.Context, actions Actions, d directive.Directive, cfg *AgentConfig) (rec Record, ok bool) {
	name := Name(d.Name)
	p, found := r.pipelines[name]
	if !found {
		fields := []zap.Field{zap.String("tool", d.Name)}
		if suggestion := r.closest(d.Name); suggestion != "" {
			fields = append(fields, zap.String("closest", suggestion))
		}
		r.logger.Debug("dispatch miss", fields...)
		return Record{}, false
	}

	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("pipeline panicked",
				zap.String("tool", d.Name),
				zap.Any("panic", v),
				zap.ByteString("stack", debug.Stack()))
			rec = Failure(name, "the tool failed unexpectedly")
			ok = true
		}
	}()

	r.logger.Debug("dispatch", zap.String("tool", d.Name), zap.Int("params", len(d.Parameters)))
	rec = p.Run(ctx, actions, Params(d.Parameters), cfg)
	if rec.Tool == "" {
		rec.Tool = name
	}
	if rec.Status == "" {
		rec.Status = StatusSuccess
	}
	return rec, true
}

func (r *Registry) closest(name string) string {
	matches := fuzzy.Find(name, r.Names())
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
