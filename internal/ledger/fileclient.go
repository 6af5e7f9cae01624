package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// snapshot is the on-disk shape a FileClient reads.
type snapshot struct {
	Accounts []Account `json:"accounts"`
	Contacts []Contact `json:"contacts"`
	Journals []Journal `json:"journals"`
}

// FileClient serves ledger data from a JSON snapshot file. It backs offline
// runs and fixtures where no upstream ledger is reachable.
type FileClient struct {
	path string

	loadOnce sync.Once
	loadErr  error
	data     snapshot
}

// NewFileClient creates a client over the snapshot at path. The file is
// read lazily on first use.
func NewFileClient(path string) *FileClient {
	return &FileClient{path: path}
}

func (c *FileClient) load() error {
	c.loadOnce.Do(func() {
		raw, err := os.ReadFile(c.path)
		if err != nil {
			c.loadErr = fmt.Errorf("failed to read ledger snapshot %s: %w", c.path, err)
			return
		}
		if err := json.Unmarshal(raw, &c.data); err != nil {
			c.loadErr = fmt.Errorf("failed to decode ledger snapshot %s: %w", c.path, err)
		}
	})
	return c.loadErr
}

// Accounts implements Client.
func (c *FileClient) Accounts(context.Context) ([]Account, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	return c.data.Accounts, nil
}

// Contacts implements Client.
func (c *FileClient) Contacts(context.Context) ([]Contact, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	return c.data.Contacts, nil
}

// Journals implements Client.
func (c *FileClient) Journals(_ context.Context, since time.Time) ([]Journal, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if since.IsZero() {
		return c.data.Journals, nil
	}
	var out []Journal
	for _, j := range c.data.Journals {
		if j.Date.After(since) {
			out = append(out, j)
		}
	}
	return out, nil
}
