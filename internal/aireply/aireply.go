// Package aireply classifies AI generator output shared by the room
// interceptor and the workspace client.
package aireply

import (
	"encoding/json"
	"strings"

	"github.com/dmitrijs2005/coderoom/internal/filetree"
)

// Command is a runnable step suggested by the model, e.g.
// {"mainItem":"npm","commands":["install"]}.
type Command struct {
	MainItem string   `json:"mainItem"`
	Commands []string `json:"commands"`
}

// Argv is the command as an argument vector, nil when empty.
func (c *Command) Argv() []string {
	if c == nil || c.MainItem == "" {
		return nil
	}
	return append([]string{c.MainItem}, c.Commands...)
}

// Reply is a generator response split into what the workspace needs.
// Raw is the unmodified generator text.
type Reply struct {
	Raw          string
	Text         string
	FileTree     filetree.Tree
	BuildCommand *Command
	StartCommand *Command
	Structured   bool
}

type structured struct {
	Text         *string         `json:"text"`
	FileTree     json.RawMessage `json:"fileTree"`
	BuildCommand *Command        `json:"buildCommand"`
	StartCommand *Command        `json:"startCommand"`
}

// StripFences removes a surrounding Markdown code fence with an optional
// language tag, e.g. ```json ... ```.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Shape classifies raw. JSON is attempted only when the unfenced text
// starts with '{' or '['; anything that fails to parse is plain text.
// A fileTree that is not a valid tree is dropped and the text kept.
func Shape(raw string) Reply {
	reply := Reply{Raw: raw, Text: raw}

	body := StripFences(raw)
	if body == "" || (body[0] != '{' && body[0] != '[') {
		return reply
	}

	var s structured
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return reply
	}

	reply.Structured = true
	reply.Text = ""
	if s.Text != nil {
		reply.Text = *s.Text
	}
	if len(s.FileTree) > 0 && string(s.FileTree) != "null" {
		if tree, err := filetree.Decode(s.FileTree); err == nil {
			reply.FileTree = tree
		}
	}
	reply.BuildCommand = s.BuildCommand
	reply.StartCommand = s.StartCommand
	return reply
}
