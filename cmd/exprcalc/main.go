// Command exprcalc evaluates expressions from the command line or an
// interactive prompt.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/peterh/liner"

	"github.com/exprkit/exprkit"
)

type CLI struct {
	Verbose bool               `help:"Enable debug logging." short:"v"`
	Bool    bool               `help:"Enable the boolean operator library." name:"bool"`
	Any     bool               `help:"Carry strings, booleans, and nil through evaluation."`
	Given   map[string]float64 `help:"Variable definitions as name=value." short:"g"`

	Eval EvalCmd `cmd:"" default:"withargs" help:"Evaluate expressions from arguments or stdin."`
	Fmt  FmtCmd  `cmd:"" help:"Print the canonical rendering of expressions."`
	Repl ReplCmd `cmd:"" help:"Interactive read-eval-print loop."`
}

type EvalCmd struct {
	Exprs []string `arg:"" optional:"" help:"Expressions to evaluate."`
}

type FmtCmd struct {
	Exprs []string `arg:"" help:"Expressions to format."`
}

type ReplCmd struct {
	History string `help:"History file path." default:"~/.exprcalc_history"`
}

func main() {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("exprcalc"),
		kong.Description("A calculator for infix expressions with pluggable symbols."),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	parsed, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	parsed.FatalIfErrorf(parsed.Run(&cli))
}

func (c *CLI) options() []exprkit.Option {
	opts := []exprkit.Option{exprkit.Constants(c.Given)}
	if c.Bool {
		opts = append(opts, exprkit.BoolSymbols())
	}
	return opts
}

// evalOne evaluates a single source line and renders the result.
func (c *CLI) evalOne(src string) (string, error) {
	if c.Any {
		consts := make(map[string]any, len(c.Given))
		for k, v := range c.Given {
			consts[k] = v
		}
		e := exprkit.NewAny(src, exprkit.AnyConstants(consts))
		slog.Debug("bound expression", "text", e.String(), "symbols", len(e.Symbols()))
		v, err := e.Evaluate()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%v", v), nil
	}
	e := exprkit.New(src, c.options()...)
	slog.Debug("bound expression", "text", e.String(), "symbols", len(e.Symbols()))
	v, err := e.Evaluate()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%g", v), nil
}

func (e *EvalCmd) Run(cli *CLI) error {
	if len(e.Exprs) > 0 {
		for _, src := range e.Exprs {
			out, err := cli.evalOne(src)
			if err != nil {
				return err
			}
			fmt.Println(out)
		}
		return nil
	}
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out, err := cli.evalOne(line)
		if err != nil {
			return err
		}
		fmt.Println(out)
	}
	return sc.Err()
}

func (f *FmtCmd) Run(cli *CLI) error {
	for _, src := range f.Exprs {
		e := exprkit.New(src, cli.options()...)
		fmt.Println(e)
	}
	return nil
}

func (r *ReplCmd) Run(cli *CLI) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		i := strings.LastIndexAny(line, " (+-*/%,")
		head, word := line[:i+1], line[i+1:]
		if word == "" {
			return nil
		}
		var out []string
		for _, name := range replWords(cli) {
			if strings.HasPrefix(name, word) {
				out = append(out, head+name)
			}
		}
		return out
	})

	hist := r.historyPath()
	if f, err := os.Open(hist); err == nil {
		_, _ = ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(hist); err == nil {
			_, _ = ln.WriteHistory(f)
			f.Close()
		}
	}()

	if cli.Given == nil {
		cli.Given = make(map[string]float64)
	}
	fmt.Println("exprcalc: enter expressions, name = expr to define, :quit to exit")
	for {
		line, err := ln.Prompt("> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":q":
			return nil
		}
		ln.AppendHistory(line)
		if name, rest, ok := splitAssign(line); ok {
			e := exprkit.New(rest, cli.options()...)
			v, err := e.Evaluate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			cli.Given[name] = v
			slog.Debug("defined variable", "name", name, "value", v)
			continue
		}
		out, err := cli.evalOne(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Println(out)
	}
}

func (r *ReplCmd) historyPath() string {
	p := r.History
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return p
}

// replWords lists the completable names: built-in functions and constants
// plus every variable defined so far.
func replWords(cli *CLI) []string {
	words := []string{
		"sqrt", "floor", "ceil", "round", "abs", "cos", "sin", "tan",
		"acos", "asin", "atan", "log", "ln", "exp", "pow", "atan2", "mod",
		"min", "max", "pi",
	}
	if cli.Bool {
		words = append(words, "true", "false")
	}
	for name := range cli.Given {
		words = append(words, name)
	}
	sort.Strings(words)
	return words
}

// splitAssign recognizes a top-level "name = expr" definition. Operators like
// == pass through untouched.
func splitAssign(line string) (name, rest string, ok bool) {
	i := strings.IndexByte(line, '=')
	if i <= 0 || i+1 == len(line) {
		return "", "", false
	}
	if line[i+1] == '=' || strings.ContainsAny(string(line[i-1]), exprkit.OperatorChars) {
		return "", "", false
	}
	name = strings.TrimSpace(line[:i])
	if !exprkit.IsValidIdentifier(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(line[i+1:]), true
}
