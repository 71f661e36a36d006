package domain

import "time"

type Task struct {
	ID           string    `json:"taskId"`
	Title        string    `json:"title"`
	VersionCount int       `json:"versionCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type VersionData struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type DiffCounts struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
}

// TaskVersion is an immutable numbered snapshot of a task together with its diff against the preceding version.
type TaskVersion struct {
	TaskID        string      `json:"taskId"`
	VersionNumber int         `json:"versionNumber"`
	Data          VersionData `json:"data"`
	Diff          DiffCounts  `json:"diff"`
	Summary       string      `json:"summary"`
	ChangeNote    string      `json:"changeNote"`
	CreatedAt     time.Time   `json:"createdAt"`
	Prev          *int        `json:"prev"`
	Next          *int        `json:"next"`
}

type TaskHistory struct {
	TaskID        string        `json:"taskId"`
	Versions      []TaskVersion `json:"versions"`
	TotalVersions int           `json:"totalVersions"`
	HeadVersion   *int          `json:"headVersion"`
	TailVersion   *int          `json:"tailVersion"`
}

type LatestTask struct {
	TaskID    string    `json:"taskId"`
	Title     string    `json:"title"`
	TimeAgo   string    `json:"timeAgo"`
	UpdatedAt time.Time `json:"-"`
}

type Stats struct {
	TotalTasks    int         `json:"totalTasks"`
	TotalVersions int         `json:"totalVersions"`
	LatestTask    *LatestTask `json:"latestTask"`
}

type Source struct {
	ID        int64
	TaskID    string
	URL       string
	CreatedAt time.Time
}

type UserSettings struct {
	UserID         int64
	DigestHourUTC  int64
	SelectedTaskID string
}

type UserDigest struct {
	UserID   int64
	Versions []TaskVersion
}
