package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	inProject() bool

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Status(ctx context.Context) error
	Logout(ctx context.Context) error
	Users(ctx context.Context) error

	Projects(ctx context.Context) error
	Create(ctx context.Context, name string) error
	Open(ctx context.Context, projectID string) error
	Leave(ctx context.Context) error
	AddUsers(ctx context.Context, userIDs []string) error
	Delete(ctx context.Context, projectID string) error
	Ask(ctx context.Context, prompt string) error

	Say(ctx context.Context, text string) error
	Files(ctx context.Context) error
	Cat(ctx context.Context, path string) error
	Edit(ctx context.Context, path string) error
	Save(ctx context.Context) error
	RunProject(ctx context.Context, start string) error
	Stop(ctx context.Context) error
	Export(ctx context.Context, dest string) error
}

const (
	helpLoggedOut = "Available commands: register, login, status, exit"
	helpLoggedIn  = "Available commands: projects, create <name>, open <id>, delete <id>, users, ask <prompt>, status, logout, exit"
	helpProject   = "Available commands: say <text>, files, cat <path>, edit <path>, save, run [start command], stop, export [file], adduser <id...>, users, leave, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the coderoom CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Commands that prompt read from the same
// reader. The loop exits on EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
//	Not logged in:
//	  - register, login, help, exit | quit
//	  - status                server health over gRPC
//
//	Logged in:
//	  - projects              list your projects
//	  - create <name>         create a project
//	  - open <id>             open a project and join its room
//	  - delete <id>           delete a project
//	  - users                 list other users
//	  - ask <prompt>          one-off AI question over HTTP
//	  - logout
//
//	In a project:
//	  - say <text>            post to the room ("@ai ..." asks the bot)
//	  - files | cat <path>    browse the tree
//	  - edit <path> | save    change a file, persist the tree
//	  - run [cmd] | stop      run the project in the sandbox
//	  - export [file]         download the last saved snapshot
//	  - adduser <id...>       invite collaborators
//	  - leave                 close the project
//
// Errors returned by handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("cr %s> ", statusFn()))
		raw, err := reader.ReadString('\n')
		if err != nil && raw == "" {
			return
		}
		line := strings.TrimSpace(raw)
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]
		rest := strings.TrimSpace(strings.TrimPrefix(line, cmd))

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}

		report(dispatch(ctx, a, cmd, args, rest))
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string, rest string) error {
	switch cmd {
	case "help":
		switch {
		case a.inProject():
			printlnFn(helpProject)
		case a.isLoggedIn():
			printlnFn(helpLoggedIn)
		default:
			printlnFn(helpLoggedOut)
		}
		return nil
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	case "status":
		return a.Status(ctx)
	}

	if !a.isLoggedIn() {
		printlnFn("Please login first")
		return nil
	}

	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "users":
		return a.Users(ctx)
	case "projects", "ls":
		return a.Projects(ctx)
	case "create":
		if rest == "" {
			printlnFn("Usage: create <name>")
			return nil
		}
		return a.Create(ctx, rest)
	case "open":
		if len(args) != 1 {
			printlnFn("Usage: open <id>")
			return nil
		}
		return a.Open(ctx, args[0])
	case "delete":
		if len(args) != 1 {
			printlnFn("Usage: delete <id>")
			return nil
		}
		return a.Delete(ctx, args[0])
	case "ask":
		if rest == "" {
			printlnFn("Usage: ask <prompt>")
			return nil
		}
		return a.Ask(ctx, rest)
	}

	if !a.inProject() {
		printlnFn("Unknown command:", cmd)
		return nil
	}

	switch cmd {
	case "say":
		if rest == "" {
			printlnFn("Usage: say <text>")
			return nil
		}
		return a.Say(ctx, rest)
	case "adduser":
		if len(args) == 0 {
			printlnFn("Usage: adduser <id...>")
			return nil
		}
		return a.AddUsers(ctx, args)
	case "files":
		return a.Files(ctx)
	case "cat":
		if len(args) != 1 {
			printlnFn("Usage: cat <path>")
			return nil
		}
		return a.Cat(ctx, args[0])
	case "edit":
		if len(args) != 1 {
			printlnFn("Usage: edit <path>")
			return nil
		}
		return a.Edit(ctx, args[0])
	case "save":
		return a.Save(ctx)
	case "run":
		return a.RunProject(ctx, rest)
	case "stop":
		return a.Stop(ctx)
	case "export":
		return a.Export(ctx, rest)
	case "leave":
		return a.Leave(ctx)
	default:
		printlnFn("Unknown command:", cmd)
		return nil
	}
}

func report(err error) {
	if err != nil {
		printlnFn("Error:", err)
	}
}
