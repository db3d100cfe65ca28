package models

import (
	"time"

	"github.com/dmitrijs2005/coderoom/internal/filetree"
)

// Project is a named workspace. Users holds member ids; the tree is
// stored as one JSON document and only ever replaced wholesale.
type Project struct {
	ID        string        `json:"_id"`
	Name      string        `json:"name"`
	Users     []string      `json:"users"`
	FileTree  filetree.Tree `json:"fileTree"`
	CreatedAt time.Time     `json:"-"`
	UpdatedAt time.Time     `json:"-"`
}

// ProjectDetails is a Project with its members resolved to user records.
type ProjectDetails struct {
	ID       string        `json:"_id"`
	Name     string        `json:"name"`
	Users    []User        `json:"users"`
	FileTree filetree.Tree `json:"fileTree"`
}
