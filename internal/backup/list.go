package backup

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/kgvault/internal/retention"
	"github.com/rohankatakam/kgvault/internal/snapshot"
)

// maxConcurrentReads bounds parallel metadata reads in ListBackups
const maxConcurrentReads = 8

// ListBackups returns every retained backup (regular and pre-restore) with
// its metadata, newest first. A file whose metadata cannot be read is still
// listed, with Error set.
func (m *Manager) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	regular, err := m.retention.List()
	if err != nil {
		return nil, err
	}
	safety, err := m.safety.List()
	if err != nil {
		return nil, err
	}

	infos := make([]BackupInfo, 0, len(regular)+len(safety))
	for _, e := range regular {
		infos = append(infos, BackupInfo{Entry: e})
	}
	for _, e := range safety {
		infos = append(infos, BackupInfo{Entry: e, Safety: true})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i := range infos {
		info := &infos[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			meta, err := snapshot.ReadMetadata(info.Path)
			if err != nil {
				info.Error = err.Error()
				return nil
			}
			info.Metadata = meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return newer(infos[i].Entry, infos[j].Entry)
	})
	return infos, nil
}

func newer(a, b retention.Entry) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.Name > b.Name
}
