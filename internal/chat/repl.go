package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// REPL commands. Anything else is prompt text.
const (
	CmdSend    = "/send"
	CmdExit    = "/exit"
	CmdBalance = "/balance"
	CmdHistory = "/history"
	CmdReset   = "/reset"
	CmdHelp    = "/help"
)

const (
	prompt       = ">>> "
	continuation = "... "
	maxLineSize  = 1 << 20
)

const helpText = `Type a message over one or more lines, then submit it with /send.
Commands:
  /send     submit the message
  /balance  show the account balance
  /history  show this session's turns
  /reset    forget this session's turns
  /exit     quit (Ctrl-D also works)
Ctrl-C interrupts a reply; at the prompt it discards pending input, and on an empty prompt it quits.
`

// REPLOptions configures a REPL.
type REPLOptions struct {
	// Interactive shows prompts and the help banner. Set it when input is a terminal.
	Interactive bool
	// Interrupts delivers user interrupts (SIGINT). May be nil.
	Interrupts <-chan struct{}
	Logger     *slog.Logger
}

// REPL reads multi-line prompts and prints streamed replies.
type REPL struct {
	session     *Session
	out         io.Writer
	interactive bool
	interrupts  <-chan struct{}
	logger      *slog.Logger
}

// NewREPL creates a REPL writing to out.
func NewREPL(session *Session, out io.Writer, opts REPLOptions) *REPL {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &REPL{
		session:     session,
		out:         out,
		interactive: opts.Interactive,
		interrupts:  opts.Interrupts,
		logger:      logger,
	}
}

type lineResult struct {
	line string
	err  error
}

// Run serves the loop until /exit, end of input, an interrupt on an empty
// prompt, or ctx is done. Pending input at end of input is submitted first.
// A reader blocked on in is abandoned when Run returns.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan lineResult)
	go readLines(ctx, in, lines)

	if r.interactive {
		r.printf("lexichat session %s (%s mode). Type %s for commands.\n", r.session.ID(), r.session.Mode(), CmdHelp)
	}

	var buf []string
	for {
		if r.interactive {
			if len(buf) == 0 {
				r.printf(prompt)
			} else {
				r.printf(continuation)
			}
		}

		select {
		case <-ctx.Done():
			return nil

		case <-r.interrupts:
			if len(buf) > 0 {
				buf = buf[:0]
				r.printf("\n(input discarded)\n")
				continue
			}
			r.printf("\n")
			return nil

		case res, ok := <-lines:
			if !ok || res.err != nil {
				if res.err != nil {
					r.logger.Warn("failed to read input", "error", res.err)
				}
				if len(buf) > 0 {
					r.submit(ctx, strings.Join(buf, "\n"))
				}
				return res.err
			}

			line := strings.TrimRight(res.line, "\r")
			switch strings.TrimSpace(line) {
			case CmdExit:
				return nil
			case CmdSend:
				if text := joinPrompt(buf); text != "" {
					r.submit(ctx, text)
				}
				buf = buf[:0]
			case "":
				// Paragraph break inside a prompt; leading blank lines are dropped.
				if len(buf) > 0 {
					buf = append(buf, line)
				}
			case CmdBalance:
				r.printBalance(ctx)
			case CmdHistory:
				r.printHistory(ctx)
			case CmdReset:
				if err := r.session.Reset(ctx); err != nil {
					r.printf("error: %v\n", err)
				} else {
					r.printf("history cleared\n")
				}
			case CmdHelp:
				r.printf(helpText)
			default:
				buf = append(buf, line)
			}
		}
	}
}

// submit runs one turn. An interrupt cancels only this turn.
func (r *REPL) submit(ctx context.Context, text string) {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-r.interrupts:
			cancel()
		case <-stopWatch:
		}
	}()

	_, err := r.session.Send(turnCtx, text, r.out)
	switch {
	case err == nil:
		r.printf("\n")
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		r.printf("\n[interrupted]\n")
	default:
		r.logger.Debug("turn failed", "error", err)
		r.printf("\nerror: %v\n", err)
	}
}

// joinPrompt joins buffered lines, dropping trailing blank ones.
func joinPrompt(buf []string) string {
	end := len(buf)
	for end > 0 && strings.TrimSpace(buf[end-1]) == "" {
		end--
	}
	return strings.Join(buf[:end], "\n")
}

func (r *REPL) printBalance(ctx context.Context) {
	res := r.session.Balance(ctx)
	if !res.OK() {
		r.printf("balance unavailable: %v\n", res.Err)
		return
	}
	data, err := json.MarshalIndent(res.Fields, "", "  ")
	if err != nil {
		r.printf("balance unavailable: %v\n", err)
		return
	}
	r.printf("%s\n", data)
}

func (r *REPL) printHistory(ctx context.Context) {
	turns, err := r.session.History(ctx)
	if err != nil {
		r.printf("error: %v\n", err)
		return
	}
	if len(turns) == 0 {
		r.printf("(no turns yet)\n")
		return
	}
	for _, t := range turns {
		r.printf("[%s] %s: %s\n", t.Timestamp.Local().Format("15:04:05"), t.Role, t.Content)
	}
}

func (r *REPL) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// readLines feeds lines to out until in is exhausted or ctx is done.
func readLines(ctx context.Context, in io.Reader, out chan<- lineResult) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case out <- lineResult{line: scanner.Text()}:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case out <- lineResult{err: err}:
		case <-ctx.Done():
		}
	}
}
