// Package repl provides the interactive question loop for the tabdoc CLI.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dagger77/tabdoc/orchestrator"
	"github.com/Dagger77/tabdoc/storage"
)

// REPL is the interactive command loop. Plain input is routed as a
// question; slash commands inspect state.
type REPL struct {
	router    *orchestrator.Router
	store     storage.Storage
	commands  map[string]Command
	sessionID string
	last      *orchestrator.Result

	in  io.Reader
	out io.Writer
}

// Command represents a slash command.
type Command struct {
	Name        string
	Description string
	Handler     func(ctx context.Context, args string) error
}

// errQuit signals a clean exit from the loop.
var errQuit = errors.New("quit")

// New creates a new REPL with built-in commands.
func New(rt *orchestrator.Router, store storage.Storage) *REPL {
	r := &REPL{
		router:   rt,
		store:    store,
		commands: make(map[string]Command),
		in:       os.Stdin,
		out:      os.Stdout,
	}
	r.registerBuiltins()
	return r
}

func (r *REPL) registerBuiltins() {
	r.Register(Command{
		Name: "/help", Description: "Show available commands",
		Handler: func(_ context.Context, _ string) error {
			fmt.Fprintln(r.out, "Available commands:")
			for _, c := range r.commands {
				fmt.Fprintf(r.out, "  %-12s %s\n", c.Name, c.Description)
			}
			return nil
		},
	})
	r.Register(Command{
		Name: "/sessions", Description: "List recent sessions",
		Handler: func(ctx context.Context, _ string) error {
			sessions, err := r.store.ListSessions(ctx, 10, 0)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(r.out, "No sessions found.")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(r.out, "  [%s] %s  channel=%s\n",
					s.UpdatedAt.Format("2006-01-02 15:04"), s.ID, s.Channel)
			}
			return nil
		},
	})
	r.Register(Command{
		Name: "/history", Description: "Show questions asked this session",
		Handler: func(ctx context.Context, _ string) error {
			exchanges, err := r.store.ListExchanges(ctx, r.sessionID, 50, 0)
			if err != nil {
				return err
			}
			if len(exchanges) == 0 {
				fmt.Fprintln(r.out, "No questions yet.")
				return nil
			}
			for _, e := range exchanges {
				fmt.Fprintf(r.out, "  [%-6s] %s\n", e.Intent, e.Question)
			}
			return nil
		},
	})
	r.Register(Command{
		Name: "/intent", Description: "Show how the last question was routed",
		Handler: func(_ context.Context, _ string) error {
			if r.last == nil {
				fmt.Fprintln(r.out, "No questions yet.")
				return nil
			}
			fmt.Fprintf(r.out, "intent:  %s\n", r.last.Intent)
			fmt.Fprintf(r.out, "nodes:   %s\n", strings.Join(r.last.Visited, " -> "))
			if r.last.RAGOutput != nil {
				fmt.Fprintf(r.out, "rag:     %s\n", *r.last.RAGOutput)
			}
			if r.last.SQLOutput != nil {
				fmt.Fprintf(r.out, "sql:     %s\n", *r.last.SQLOutput)
			}
			return nil
		},
	})
	r.Register(Command{
		Name: "/quit", Description: "Exit",
		Handler: func(_ context.Context, _ string) error {
			return errQuit
		},
	})
}

// Register adds a slash command.
func (r *REPL) Register(c Command) {
	r.commands[c.Name] = c
}

// Start begins the interactive loop.
func (r *REPL) Start(ctx context.Context) error {
	now := time.Now().UTC()
	r.sessionID = uuid.NewString()
	if err := r.store.CreateSession(ctx, &storage.Session{
		ID: r.sessionID, Channel: "cli", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		return err
	}

	fmt.Fprintln(r.out, "tabdoc — ask about the student data, /help for commands, /quit to exit")
	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "tabdoc> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		if strings.HasPrefix(line, "/") {
			err = r.dispatch(ctx, line)
		} else {
			err = r.ask(ctx, line)
		}
		if errors.Is(err, errQuit) {
			fmt.Fprintln(r.out, "Goodbye.")
			return nil
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (r *REPL) dispatch(ctx context.Context, line string) error {
	name, args, _ := strings.Cut(line, " ")
	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}
	return cmd.Handler(ctx, args)
}

// ask routes the question, streaming the answer as it arrives.
func (r *REPL) ask(ctx context.Context, question string) error {
	result, err := r.router.RunStream(ctx, question, func(frag string) {
		fmt.Fprint(r.out, frag)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out)

	r.last = result
	r.record(ctx, question, result)
	return nil
}

func (r *REPL) record(ctx context.Context, question string, result *orchestrator.Result) {
	now := time.Now().UTC()
	e := &storage.Exchange{
		ID:          uuid.NewString(),
		SessionID:   r.sessionID,
		Question:    question,
		Intent:      string(result.Intent),
		FinalAnswer: result.FinalAnswer,
		DurationMS:  result.Duration.Milliseconds(),
		CreatedAt:   now,
	}
	if result.RAGOutput != nil {
		e.RAGOutput = *result.RAGOutput
	}
	if result.SQLOutput != nil {
		e.SQLOutput = *result.SQLOutput
	}
	_ = r.store.AppendExchange(ctx, e)
	_ = r.store.TouchSession(ctx, r.sessionID, now)
}
