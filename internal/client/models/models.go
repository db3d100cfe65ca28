// Package models defines the API payloads the client reads and writes.
package models

import (
	"encoding/json"

	"github.com/dmitrijs2005/coderoom/internal/filetree"
)

// User is an account as the server publishes it.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Session is the result of register or login.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Member is a project user. Most responses list bare ids; get-project
// resolves them to records, so both decode here.
type Member struct {
	User
}

func (m *Member) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		m.User = User{ID: id}
		return nil
	}
	return json.Unmarshal(b, &m.User)
}

// Label is the email when known, else the id.
func (m Member) Label() string {
	if m.Email != "" {
		return m.Email
	}
	return m.ID
}

// Project is a workspace with its members and file tree.
type Project struct {
	ID       string        `json:"_id"`
	Name     string        `json:"name"`
	Users    []Member      `json:"users"`
	FileTree filetree.Tree `json:"fileTree"`
}
