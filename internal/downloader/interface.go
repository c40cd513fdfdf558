package downloader

import "context"

// LabelSource 查询下载任务的标签, 用于给文件名解析提供提示
type LabelSource interface {
	// TaskLabels returns label candidates (tags, category, task name) of the task
	// whose name or content folder equals name. No match returns nil.
	TaskLabels(ctx context.Context, name string) []string
}

// Torrent is the subset of /api/v2/torrents/info the engine uses.
type Torrent struct {
	Hash        string `json:"hash"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Tags        string `json:"tags"` // comma separated
	ContentPath string `json:"content_path"`
	SavePath    string `json:"save_path"`
}
