package models

import "time"

// JobStatus is the lifecycle state of a transcription job
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further updates are expected for the status
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job represents one uploaded audio file awaiting transcription
type Job struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	ETA       string    `json:"eta,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	FolderID  string    `json:"folderId,omitempty"`
	Error     string    `json:"error,omitempty"`

	// Size and Hash describe the uploaded audio, not the transcript
	Size int64  `json:"size,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// NodeType distinguishes folders from files in the tree
type NodeType string

const (
	NodeFolder NodeType = "folder"
	NodeFile   NodeType = "file"
)

// FolderNode is one entry of the file browser. Children is only populated
// for folders.
type FolderNode struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     NodeType      `json:"type"`
	Children []*FolderNode `json:"children,omitempty"`
	ParentID string        `json:"parentId,omitempty"`
	Size     int64         `json:"size,omitempty"`
}

// IsFolder reports whether the node is a folder
func (n *FolderNode) IsFolder() bool {
	return n.Type == NodeFolder
}

// NodeRecord is the flat, persisted form of a FolderNode
type NodeRecord struct {
	ID        string
	Name      string
	Type      NodeType
	ParentID  string
	Size      int64
	CreatedAt time.Time
}

// SyncStatus is the lifecycle state of a drive sync session
type SyncStatus string

const (
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncSession is a single run of the bulk import from the external drive
type SyncSession struct {
	ID             string     `json:"id"`
	Status         SyncStatus `json:"status"`
	TotalFiles     int        `json:"totalFiles"`
	ProcessedFiles int        `json:"processedFiles"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// User is the identity carried by a dashboard session
type User struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}
