package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

// DefaultPrompt is shown before each line.
const DefaultPrompt = "snapctl> "

// Executor runs one parsed command line.
type Executor func(ctx context.Context, args []string) error

// LineReader is the part of *readline.Instance the loop uses.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// REPL is the read-eval-print loop.
type REPL struct {
	exec        Executor
	reader      LineReader
	output      io.Writer
	prompt      string
	historyFile string
	completer   readline.AutoCompleter
}

// Option configures a REPL.
type Option func(*REPL)

// WithPrompt sets the prompt.
func WithPrompt(prompt string) Option {
	return func(r *REPL) { r.prompt = prompt }
}

// WithHistoryFile persists line history at path.
func WithHistoryFile(path string) Option {
	return func(r *REPL) { r.historyFile = path }
}

// WithCompleter enables tab completion.
func WithCompleter(c readline.AutoCompleter) Option {
	return func(r *REPL) { r.completer = c }
}

// WithOutput sets where errors are reported.
func WithOutput(w io.Writer) Option {
	return func(r *REPL) { r.output = w }
}

// WithReader replaces the terminal reader, mostly for tests.
func WithReader(lr LineReader) Option {
	return func(r *REPL) { r.reader = lr }
}

// New creates a REPL. Without WithReader it opens a readline instance on
// the process terminal.
func New(exec Executor, opts ...Option) (*REPL, error) {
	r := &REPL{
		exec:   exec,
		output: os.Stderr,
		prompt: DefaultPrompt,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reader == nil {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          r.prompt,
			HistoryFile:     r.historyFile,
			AutoComplete:    r.completer,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return nil, err
		}
		r.reader = rl
	}
	return r, nil
}

// Run reads lines until exit, quit, end of input or a cancelled context.
// Ctrl-C discards the current line; on an empty line it leaves the loop.
// Command errors are printed and do not stop the loop.
func (r *REPL) Run(ctx context.Context) error {
	defer r.reader.Close()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := r.reader.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if strings.TrimSpace(line) == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		args, err := Split(line)
		if err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
			continue
		}
		if err := r.exec(ctx, args); err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
		}
	}
}

// Split breaks a line into words. Single quotes keep their content
// literally, double quotes allow backslash escapes, and a backslash
// outside quotes escapes the next character.
func Split(line string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped, inWord = true, true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote, inWord = r, true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}
