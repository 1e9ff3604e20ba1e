package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"datachat/agent"
	"datachat/config"
	"datachat/model"
)

var chartsDir string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Long: `Ask a single question without opening the chat view.

The reply is streamed to stdout. Pipeline results are printed as status
lines. With --charts, every chart the model produces is written as a
Vega-Lite JSON file into the given directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		question := strings.Join(args, " ")
		sum := ask(ctx, env.agent.NewSession(), question, cmd.OutOrStdout(), chartsDir, env.logger)
		return sum.Err
	},
}

func init() {
	askCmd.Flags().StringVar(&chartsDir, "charts", "", "directory to write chart specs to")
}

// ask runs one turn cycle and prints the conversation as it grows.
func ask(ctx context.Context, s *agent.Session, question string, out io.Writer, charts string, logger *zap.Logger) agent.Summary {
	p := &printer{out: out, charts: charts, logger: logger, printed: map[string]string{}, seen: map[string]bool{}}
	s.OnChange(func() { p.update(s.Messages()) })

	sum := s.Send(ctx, question)
	p.update(s.Messages())
	p.mu.Lock()
	p.endLine()
	p.mu.Unlock()

	if sum.Invocations > 0 {
		note := fmt.Sprintf("%d tool calls", sum.Invocations)
		if sum.Final {
			note += ", limit reached"
		}
		fmt.Fprintln(out, dimStyle.Render("("+note+")"))
	}
	return sum
}

// printer writes the parts of the conversation it has not printed yet.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	charts  string
	logger  *zap.Logger
	printed map[string]string
	seen    map[string]bool
	midLine bool
	nCharts int
}

func (p *printer) update(msgs []model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range msgs {
		switch m.Role {
		case model.RoleAssistant:
			p.assistant(m)
		case model.RolePipeline:
			p.pipeline(m)
		}
	}
}

func (p *printer) assistant(m model.Message) {
	if m.Kind == model.KindError {
		if !p.seen[m.ID] {
			p.seen[m.ID] = true
			p.endLine()
			fmt.Fprintln(p.out, errorStyle.Render(m.Display))
		}
		return
	}

	text := m.Display
	if !m.Streaming {
		text = strings.TrimRight(text, "\n")
	}
	shown := p.printed[m.ID]
	// the finished text can differ from what was streamed once the tool
	// call block is stripped; only extend what is already on screen
	if !strings.HasPrefix(text, shown) {
		return
	}
	if delta := text[len(shown):]; delta != "" {
		fmt.Fprint(p.out, delta)
		p.printed[m.ID] = text
		p.midLine = !strings.HasSuffix(delta, "\n")
	}
	if !m.Streaming {
		p.endLine()
	}
}

func (p *printer) pipeline(m model.Message) {
	if p.seen[m.ID] {
		return
	}
	p.seen[m.ID] = true
	p.endLine()

	switch {
	case m.Kind == model.KindProgress:
		fmt.Fprintln(p.out, dimStyle.Render("… "+m.Display))
	case m.Kind == model.KindChart:
		fmt.Fprintln(p.out, headerStyle.Render("▤ chart: "+m.Display))
		p.writeChart(m)
	case m.Kind == model.KindError || m.Status == "error":
		fmt.Fprintln(p.out, errorStyle.Render(m.Display))
	default:
		fmt.Fprintln(p.out, successStyle.Render(m.Display))
	}
}

func (p *printer) writeChart(m model.Message) {
	if p.charts == "" || m.Attachment == nil {
		return
	}
	if err := config.EnsureDir(p.charts); err != nil {
		fmt.Fprintln(p.out, warnStyle.Render("could not save chart: "+err.Error()))
		return
	}
	data, err := json.MarshalIndent(m.Attachment, "", "  ")
	if err != nil {
		p.logger.Warn("failed to encode chart", zap.Error(err))
		return
	}
	p.nCharts++
	path := filepath.Join(p.charts, fmt.Sprintf("chart-%d.vl.json", p.nCharts))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintln(p.out, warnStyle.Render("could not save chart: "+err.Error()))
		return
	}
	fmt.Fprintln(p.out, dimStyle.Render("  saved "+path))
}

func (p *printer) endLine() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}
