package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// printFn prints the prompt without a trailing newline.
var printFn = fmt.Print

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Status(ctx context.Context) error
	Drafts(ctx context.Context) error
	Draft(ctx context.Context, id string) error
	Save(ctx context.Context, id, payload string) error
	RemoveDraft(ctx context.Context, id string) error
	Queue(ctx context.Context) error
	Enqueue(ctx context.Context, method, target, body string) error
	Dequeue(ctx context.Context, id string) error
	Submit(ctx context.Context, id, method, target, body string) error
	Sync(ctx context.Context) error
	Clear(ctx context.Context) error
}

const helpText = `Available commands:
  status                                 show mode, queue size and last sync
  drafts                                 list drafts
  draft <id>                             show a draft
  save <id> <json>                       create or replace a draft
  rmdraft <id>                           delete a draft
  queue                                  list pending requests
  enqueue <METHOD> <url> [json]          queue a write for later delivery
  dequeue <id>                           drop a pending request
  submit <id> <METHOD> <url> <json>      send now, queue with draft on failure
  sync                                   deliver pending requests
  clear                                  delete all drafts and pending requests
  exit | quit                            leave the program`

// usage lists the argument shape of commands that take arguments.
var usage = map[string]string{
	"draft":   "Usage: draft <id>",
	"save":    "Usage: save <id> <json>",
	"rmdraft": "Usage: rmdraft <id>",
	"enqueue": "Usage: enqueue <METHOD> <url> [json]",
	"dequeue": "Usage: dequeue <id>",
	"submit":  "Usage: submit <id> <METHOD> <url> <json>",
}

// runREPL reads lines from scanner, dispatches them to a and reports errors
// back to the user. The prompt from promptFn is printed before each line
// unless it is empty. The loop exits on scanner EOF, on "exit" or "quit", or
// when ctx is done.
func runREPL(ctx context.Context, a execIface, promptFn func() string, scanner *bufio.Scanner) {
	for {
		if p := promptFn(); p != "" {
			printFn(p)
		}
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		cmd, rest, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if cmd == "" {
			continue
		}

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)

		case "status":
			err = a.Status(ctx)

		case "drafts":
			err = a.Drafts(ctx)

		case "draft":
			if args, ok := need(cmd, rest, 1); ok {
				err = a.Draft(ctx, args[0])
			}

		case "save":
			if args, ok := need(cmd, rest, 2); ok {
				err = a.Save(ctx, args[0], args[1])
			}

		case "rmdraft":
			if args, ok := need(cmd, rest, 1); ok {
				err = a.RemoveDraft(ctx, args[0])
			}

		case "queue":
			err = a.Queue(ctx)

		case "enqueue":
			args := splitN(rest, 3)
			if len(args) < 2 {
				printlnFn(usage[cmd])
				continue
			}
			body := ""
			if len(args) == 3 {
				body = args[2]
			}
			err = a.Enqueue(ctx, args[0], args[1], body)

		case "dequeue":
			if args, ok := need(cmd, rest, 1); ok {
				err = a.Dequeue(ctx, args[0])
			}

		case "submit":
			if args, ok := need(cmd, rest, 4); ok {
				err = a.Submit(ctx, args[0], args[1], args[2], args[3])
			}

		case "sync":
			err = a.Sync(ctx)

		case "clear":
			err = a.Clear(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

// need splits rest into exactly n arguments, printing usage when there are
// fewer.
func need(cmd, rest string, n int) ([]string, bool) {
	args := splitN(rest, n)
	if len(args) < n {
		printlnFn(usage[cmd])
		return nil, false
	}
	return args, true
}
