package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/coderoom/internal/aireply"
	"github.com/dmitrijs2005/coderoom/internal/client/realtime"
	"github.com/dmitrijs2005/coderoom/internal/client/workspace"
)

// Say posts text to the project room. The REPL does not echo it back since
// the room does not return a sender's own messages.
func (a *App) Say(ctx context.Context, text string) error {
	a.mu.Lock()
	room, user := a.room, a.user
	a.mu.Unlock()

	sender := realtime.Sender{ID: user.ID, Name: user.Name, Email: user.Email}
	return room.Send(text, sender)
}

// listen prints room messages until the connection ends, folding AI
// replies into ws.
func (a *App) listen(room roomConn, ws *workspace.Workspace, done chan struct{}) {
	defer close(done)

	for msg := range room.Messages() {
		reply, err := ws.Apply(msg)
		a.printReply(msg.Label(), reply)
		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

func (a *App) printReply(from string, r aireply.Reply) {
	text := strings.TrimRight(r.Text, "\n")
	if text != "" {
		a.printf("[%s] %s\n", from, text)
	}
	if r.FileTree != nil {
		a.printf("[%s] file tree replaced: %s\n", from, strings.Join(r.FileTree.Paths(), ", "))
	}
	if argv := r.BuildCommand.Argv(); argv != nil {
		a.printf("[%s] install: %s\n", from, strings.Join(argv, " "))
	}
	if argv := r.StartCommand.Argv(); argv != nil {
		a.printf("[%s] start: %s\n", from, strings.Join(argv, " "))
	}
}
