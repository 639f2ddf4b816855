package importer

import (
	"fmt"
	"os"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// Backup is a validated backup file ready to be merged into a session.
// Settings is nil when the file carried no settings object.
type Backup struct {
	Data     domain.UserData
	Settings *domain.Settings
	Stats    Stats
}

// Stats counts the entries of each kind in Data.
type Stats struct {
	Statuses   int
	Timestamps int
	Notes      int
}

// LoadFile reads a backup file from disk without interpreting it.
func LoadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading backup file: %w", err)
	}
	return data, nil
}
