// Command cherry runs CherryScript programs.
//
// Usage:
//
//	cherry script.cs         run a script file
//	cherry -c 'print("hi")'  execute a command string
//	cherry -i                start the interactive REPL
//	cherry --version         print the version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/oarkflow/log"

	"github.com/cherrylang/cherryscript/pkg/adapters"
	"github.com/cherrylang/cherryscript/pkg/runtime"
)

const version = "0.3.0"

func main() {
	os.Exit(run())
}

func run() int {
	command := flag.String("c", "", "execute a command string")
	interactive := flag.Bool("i", false, "start the interactive REPL")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: cherry [flags] [script]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("cherryscript %s\n", version)
		return 0
	}

	logger := &log.DefaultLogger
	rt := runtime.New(runtime.WithLogger(logger))
	defer adapters.ShutdownAll()

	ctx := context.Background()

	switch {
	case *command != "":
		if err := rt.Run(ctx, *command, "<command>"); err != nil {
			return 1
		}
		return 0

	case flag.NArg() > 0:
		file := flag.Arg(0)
		source, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cherry: %v\n", err)
			return 1
		}
		if err := rt.Run(ctx, string(source), file); err != nil {
			return 1
		}
		return 0

	case *interactive:
		return repl(ctx, rt)

	default:
		flag.Usage()
		return 2
	}
}

// repl reads statements interactively, buffering lines until braces
// balance so multi-line blocks can be typed naturally.
func repl(ctx context.Context, rt *runtime.Runtime) int {
	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "cherry: %v\n", err)
		return 1
	}
	defer rl.Close()

	fmt.Printf("CherryScript %s (type exit to quit)\n", version)

	var buf []string
	for {
		line, err := rl.Readline()
		if err != nil {
			// io.EOF on ctrl-d, readline.ErrInterrupt on ctrl-c
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return 0
			}
			fmt.Fprintf(os.Stderr, "cherry: %v\n", err)
			return 1
		}
		trimmed := strings.TrimSpace(line)
		if len(buf) == 0 {
			if trimmed == "" {
				continue
			}
			if trimmed == "exit" || trimmed == "quit" {
				return 0
			}
		}
		buf = append(buf, line)
		combined := strings.Join(buf, "\n")
		if strings.Count(combined, "{") > strings.Count(combined, "}") {
			rl.SetPrompt("... ")
			continue
		}
		rl.SetPrompt(">>> ")
		buf = buf[:0]

		// Run splits the buffer itself, so `a = 1; print(a)` works as a
		// single REPL entry. Diagnostics are printed by the runtime.
		_ = rt.Run(ctx, combined, "<repl>")
	}
}
