package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/campushive/flowkit/pkg/models"
)

type dedupeStore struct {
	p *Persistence
}

// Reserve creates a marker file named after the logical key with O_EXCL.
// File creation is atomic at the filesystem level, so the contract holds
// across processes sharing the directory. TTL expiry is honored lazily: an
// expired marker is replaced rather than treated as a duplicate.
func (s *dedupeStore) Reserve(ctx context.Context, record *models.NodeDedupeRecord) (bool, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	marker := filepath.Join(s.p.root, dirDedupe, keyFileName(record.LogicalKey())+".key")

	if record.TTL > 0 {
		if info, err := os.Stat(marker); err == nil {
			if record.CreatedAt.Sub(info.ModTime()) > record.TTL {
				if err := os.Remove(marker); err != nil {
					return false, fmt.Errorf("failed to expire dedupe key: %w", err)
				}
			}
		}
	}

	f, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to reserve dedupe key: %w", err)
	}

	if err := f.Close(); err != nil {
		return false, err
	}

	return true, s.p.write(dirDedupe, record.ID, record)
}
