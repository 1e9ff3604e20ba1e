package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"datachat/directive"
	"datachat/model"
	"datachat/pipeline"
	"datachat/prompt"
	"datachat/stream"
)

// Summary describes one completed turn cycle.
type Summary struct {
	// Iterations is the number of tool-use recursions taken.
	Iterations int
	// Invocations is the number of pipelines dispatched.
	Invocations int
	// Final is set when the ceiling was reached and the closing reply was
	// produced with tools disabled.
	Final bool
	// Err is the streaming failure that ended the cycle, if any.
	Err error
}

type state int

const (
	awaitingModelTurn state = iota
	dispatchingTool
	reactingToResult
	done
)

func (s state) String() string {
	switch s {
	case awaitingModelTurn:
		return "awaiting_model_turn"
	case dispatchingTool:
		return "dispatching_tool"
	case reactingToResult:
		return "reacting_to_result"
	case done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s *Session) run(ctx context.Context) Summary {
	var (
		sum       Summary
		iteration int
		pending   directive.Directive
		ceiling   = s.agent.cfg.IterationCeiling
	)

	for st := awaitingModelTurn; st != done; {
		s.logger.Debug("turn state", zap.Stringer("state", st), zap.Int("iteration", iteration))

		switch st {
		case awaitingModelTurn:
			raw, err := s.streamTurn(ctx, s.agent.SystemPrompt(s.ambient()))
			if err != nil {
				s.failTurn(err)
				sum.Err = err
				st = done
				continue
			}

			res := directive.Parse(raw)
			d, ok := res.First()
			switch {
			case ok:
				if res.HasErrors() || len(res.Directives) > 1 {
					s.logger.Debug("extra tool call blocks ignored",
						zap.Int("directives", len(res.Directives)),
						zap.Int("errors", len(res.Errors)))
				}
				pending = d
				st = dispatchingTool
			case res.HasErrors():
				s.appendParseError(res)
				st = done
			default:
				st = done
			}

		case dispatchingTool:
			rec, hit := s.agent.registry.Dispatch(ctx, s, pending, &s.agent.cfg)
			if !hit {
				st = done
				continue
			}
			sum.Invocations++
			s.appendRecord(rec)

			if iteration < ceiling {
				iteration++
				st = awaitingModelTurn
			} else {
				st = reactingToResult
			}

		case reactingToResult:
			sum.Final = true
			if _, err := s.streamTurn(ctx, prompt.FinalTurnSystem(s.agent.cfg.SystemPrompt, s.ambient())); err != nil {
				s.failTurn(err)
				sum.Err = err
			}
			st = done
		}
	}

	sum.Iterations = iteration
	return sum
}

// streamTurn sends system plus the history to the model and streams the
// reply into a new assistant message. It returns the raw reply.
func (s *Session) streamTurn(ctx context.Context, system string) (string, error) {
	msgs := append([]model.Message{model.SystemMessage(system)}, s.history()...)

	reply := model.NewMessage(model.RoleAssistant, "", "")
	reply.Streaming = true
	s.AddMessage(reply)

	provider := s.agent.cfg.Model
	consumer := stream.NewConsumer(stream.Options{
		IdleTimeout: s.agent.cfg.StreamIdleTimeout,
		Logger:      s.logger,
	})

	var raw string
	err := consumer.Run(ctx,
		func(ctx context.Context, emit func(string) error) error {
			return provider.StreamCompletion(ctx, msgs, model.StreamCallback(emit))
		},
		func(display string) {
			s.editMessage(reply.ID, func(m *model.Message) { m.Display = display })
		},
		func(full string) { raw = full },
	)
	if err != nil {
		var empty bool
		s.editMessage(reply.ID, func(m *model.Message) {
			m.Streaming = false
			empty = m.Display == ""
		})
		if empty {
			s.RemoveMessage(reply.ID)
		}
		return "", err
	}

	s.editMessage(reply.ID, func(m *model.Message) {
		m.Display = directive.Strip(raw)
		m.Raw = raw
		m.Streaming = false
	})
	return raw, nil
}

func (s *Session) failTurn(err error) {
	s.logger.Warn("model turn failed", zap.Error(err))

	msg := model.NewMessage(model.RoleAssistant, turnErrorText(err), "")
	msg.Kind = model.KindError
	s.AddMessage(msg)
}

func turnErrorText(err error) string {
	switch {
	case errors.Is(err, stream.ErrIdleTimeout):
		return "The model stopped responding. Please try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The reply took too long and was stopped."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	}
	return "Something went wrong while talking to the model: " + err.Error()
}

func (s *Session) appendParseError(res directive.Result) {
	text := res.ErrorText()
	s.logger.Debug("tool call not understood", zap.String("error", text))

	msg := model.NewMessage(model.RolePipeline,
		"I couldn't understand that tool request: "+text,
		pipeline.Failure("", "tool call could not be parsed: "+text).JSON())
	msg.Kind = model.KindError
	msg.Status = string(pipeline.StatusError)
	s.AddMessage(msg)
}

func (s *Session) appendRecord(rec pipeline.Record) {
	mark := "✓"
	if !rec.OK() {
		mark = "✗"
	}
	msg := model.NewMessage(model.RolePipeline,
		fmt.Sprintf("%s %s  %s", mark, rec.Tool, rec.Message),
		rec.JSON())
	msg.Status = string(rec.Status)
	s.AddMessage(msg)
}
