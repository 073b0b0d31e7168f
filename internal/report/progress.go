package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// FileProgress is the progress file the screenshot service writes per job
type FileProgress struct {
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	LastURL   string `json:"last_url"`
	Timestamp int64  `json:"timestamp"`
}

func ProgressPath(dir, jobID string) string {
	return filepath.Join(dir, fmt.Sprintf("progress_%s.json", jobID))
}

// ReadProgress reads the service's progress for jobID
func ReadProgress(dir, jobID string) (types.Progress, error) {
	data, err := os.ReadFile(ProgressPath(dir, jobID))
	if err != nil {
		return types.Progress{}, err
	}
	var fp FileProgress
	if err := json.Unmarshal(data, &fp); err != nil {
		return types.Progress{}, fmt.Errorf("parse progress file: %w", err)
	}
	return types.Progress{
		Phase:    "screenshots",
		Current:  fp.Current,
		Total:    fp.Total,
		Count:    fp.Current,
		LastItem: fp.LastURL,
	}, nil
}

// RemoveProgress deletes the progress file once a job is finished
func RemoveProgress(dir, jobID string) error {
	err := os.Remove(ProgressPath(dir, jobID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
