package domain

import "time"

const (
	TaskScrapeArticles = "scrape_articles"
	TaskScrapeVideos   = "scrape_videos"
	TaskPublish        = "publish"
)

// Task is a pipeline trigger sent through the task queue.
type Task struct {
	Name       string        `json:"name"`
	Options    IngestOptions `json:"options"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}
