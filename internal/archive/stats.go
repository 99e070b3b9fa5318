package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// AssistantStats aggregates the archive of one assistant.
type AssistantStats struct {
	Assistant string `json:"assistant"`
	Sessions  int    `json:"sessions"`
	Messages  int    `json:"messages"`
	FirstDate string `json:"first_date,omitempty"`
	LastDate  string `json:"last_date,omitempty"`
}

// Stats summarizes the whole archive.
type Stats struct {
	BaseDir    string           `json:"base_dir"`
	Sessions   int              `json:"sessions"`
	Messages   int              `json:"messages"`
	Unreadable int              `json:"unreadable,omitempty"` // session.json missing or corrupt
	Assistants []AssistantStats `json:"assistants"`
}

// Stats walks <base>/<assistant>/<date>/<session> and totals sessions and
// message counts per assistant. A missing archive yields empty stats.
func (w *Writer) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{BaseDir: w.baseDir, Assistants: []AssistantStats{}}

	assistants, err := readDirs(w.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stats, nil
		}
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	for _, assistant := range assistants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		as := AssistantStats{Assistant: assistant}

		dates, err := readDirs(filepath.Join(w.baseDir, assistant))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s archive: %w", assistant, err)
		}
		for _, date := range dates {
			sessions, err := readDirs(filepath.Join(w.baseDir, assistant, date))
			if err != nil {
				return nil, fmt.Errorf("failed to read %s/%s: %w", assistant, date, err)
			}
			for _, id := range sessions {
				count, err := readMessageCount(filepath.Join(w.baseDir, assistant, date, id, sessionFile))
				if err != nil {
					stats.Unreadable++
					continue
				}
				as.Sessions++
				as.Messages += count
				if as.FirstDate == "" || date < as.FirstDate {
					as.FirstDate = date
				}
				if date > as.LastDate {
					as.LastDate = date
				}
			}
		}

		if as.Sessions == 0 {
			continue
		}
		stats.Sessions += as.Sessions
		stats.Messages += as.Messages
		stats.Assistants = append(stats.Assistants, as)
	}

	sort.Slice(stats.Assistants, func(i, j int) bool {
		return stats.Assistants[i].Assistant < stats.Assistants[j].Assistant
	})
	return stats, nil
}

// readDirs lists the subdirectories of dir, skipping hidden entries.
func readDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && e.Name()[0] != '.' {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func readMessageCount(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var rec struct {
		MessageCount int `json:"message_count"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, err
	}
	return rec.MessageCount, nil
}
