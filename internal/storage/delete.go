package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Deleter removes objects by key.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// DeleteReport summarises a bulk deletion.
type DeleteReport struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

// DeleteAll deletes every key independently, at most limit at a time. A
// failing delete does not stop the others; the returned error aggregates
// all failures and is nil only if every key was deleted.
func DeleteAll(ctx context.Context, d Deleter, keys []string, limit int) (DeleteReport, error) {
	var (
		mu     sync.Mutex
		report DeleteReport
		errs   *multierror.Error
	)

	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, key := range keys {
		key := key
		g.Go(func() error {
			err := d.Delete(ctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, key)
				errs = multierror.Append(errs, err)
				return nil
			}
			report.Deleted = append(report.Deleted, key)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Deleted)
	sort.Strings(report.Failed)
	return report, errs.ErrorOrNil()
}
