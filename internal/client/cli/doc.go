// Package cli provides the interactive coderoom terminal client.
//
// It wires configuration, the HTTP API client, the project room socket,
// the local workspace and the sandbox runner behind a small REPL. Typical
// flow: login (or reuse the saved token), open a project, chat in its
// room, let "@ai" messages rewrite the file tree, edit, save and run.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command list.
package cli
