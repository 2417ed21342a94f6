package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lmorg/readline"

	"github.com/thomasrohde/ember/pkg/ast"
	"github.com/thomasrohde/ember/pkg/help"
	"github.com/thomasrohde/ember/pkg/runtime"
)

const continuationPrompt = "... "

var replCommands = []string{":quit", ":env", ":where", ":ast", ":help"}

func cmdRepl(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		return usageError(err, "usage: ember repl [--verbose] [--ast] [--max-depth N] [--timeout MS]")
	}
	cfg, logger, code := loadConfig(opts)
	if code != exitOK {
		return code
	}

	session := runtime.New(runtime.WithLogger(logger), runtime.WithConfig(cfg)).NewSession()
	showAST := cfg.ShowAST

	rline := readline.NewInstance()
	rline.TabCompleter = completer(session)

	ctx := context.Background()
	var pending []string
	for {
		if len(pending) == 0 {
			rline.SetPrompt(cfg.Prompt)
		} else {
			rline.SetPrompt(continuationPrompt)
		}
		line, err := rline.Readline()
		if err != nil {
			// Ctrl+C or Ctrl+D drops an unfinished block, else leaves.
			if len(pending) > 0 {
				pending = nil
				fmt.Println()
				continue
			}
			return exitOK
		}

		if len(pending) == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, ":") {
				if quit := replCommand(session, trimmed, &showAST); quit {
					return exitOK
				}
				continue
			}
		}

		pending = append(pending, line)
		source := strings.Join(pending, "\n")
		if runtime.NeedsMore(source) {
			continue
		}
		pending = nil

		v, program, err := session.Eval(ctx, source)
		if showAST && program != nil {
			fmt.Print(ast.Dump(program))
		}
		if err != nil {
			fmt.Println(runtime.ErrorLine(err))
			continue
		}
		fmt.Println(v.String())
	}
}

// replCommand handles a ':' command and reports whether the REPL should exit.
func replCommand(session *runtime.Session, line string, showAST *bool) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":env":
		fmt.Print(session.Describe())
	case ":where":
		if len(fields) != 2 {
			fmt.Println("usage: :where NAME")
			return false
		}
		kind, ok := session.Where(fields[1])
		if !ok {
			fmt.Printf("%s is not bound\n", fields[1])
			return false
		}
		fmt.Printf("%s is a global %s\n", fields[1], kind)
	case ":ast":
		*showAST = !*showAST
		state := "off"
		if *showAST {
			state = "on"
		}
		fmt.Printf("syntax tree display %s\n", state)
	case ":help":
		if len(fields) > 1 {
			if _, content, err := help.MatchTopic(fields[1]); err == nil {
				fmt.Print(content)
				return false
			}
		}
		fmt.Print(help.QUICKREF)
		fmt.Printf("REPL commands: %s\n", strings.Join(replCommands, " "))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s, try :help\n", fields[0])
	}
	return false
}

// completer suggests keywords, builtins, bound names and REPL commands for
// the word before the cursor.
func completer(session *runtime.Session) func([]rune, int, readline.DelayedTabContext) (string, []string, map[string]string, readline.TabDisplayType) {
	return func(line []rune, pos int, _ readline.DelayedTabContext) (string, []string, map[string]string, readline.TabDisplayType) {
		prefix := lastWord(string(line[:pos]))
		var suggestions []string
		for _, candidate := range candidates(session, prefix) {
			if strings.HasPrefix(candidate, prefix) && candidate != prefix {
				suggestions = append(suggestions, candidate[len(prefix):])
			}
		}
		return prefix, suggestions, nil, readline.TabDisplayGrid
	}
}

func candidates(session *runtime.Session, prefix string) []string {
	if strings.HasPrefix(prefix, ":") {
		return replCommands
	}
	names := append([]string{}, session.Global().Names()...)
	for name := range ast.Builtins {
		names = append(names, name)
	}
	names = append(names, "fn", "if", "else", "return", "and", "or", "not", "true", "false")
	sort.Strings(names)
	return names
}

func lastWord(s string) string {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return !(r == '_' || r == ':' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	return s[i+1:]
}
