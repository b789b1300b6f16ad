// Package reconcile finds and removes objects in a user's storage prefix that
// no receipt row references.
package reconcile

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/spendlog/service/internal/apperr"
	"github.com/spendlog/service/internal/storage"
)

// Paths lists the keys referenced by a user's receipt rows.
type Paths interface {
	PathsByUser(ctx context.Context, userID string) ([]string, error)
}

// Objects is the part of the object store a sweep needs.
type Objects interface {
	storage.Deleter
	List(ctx context.Context, prefix string) ([]string, error)
}

// Outcome reports a sweep. Failed holds keys whose delete errored; they are
// still orphans and a later sweep will retry them.
type Outcome struct {
	Found   int      `json:"found"`
	Deleted int      `json:"deleted"`
	Failed  []string `json:"failed"`
}

// Service computes orphans as remote keys minus referenced paths.
type Service struct {
	paths    Paths
	objects  Objects
	parallel int
	log      zerolog.Logger
}

// NewService creates a reconcile Service. parallel bounds concurrent deletes.
func NewService(paths Paths, objects Objects, parallel int, log zerolog.Logger) *Service {
	return &Service{paths: paths, objects: objects, parallel: parallel, log: log}
}

// Orphans returns the sorted keys under the user's prefix that no image of
// the user's transactions references.
func (s *Service) Orphans(ctx context.Context, userID string) ([]string, error) {
	keys, err := s.objects.List(ctx, storage.UserPrefix(userID))
	if err != nil {
		return nil, apperr.Upstream("list stored objects", err)
	}
	paths, err := s.paths.PathsByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Upstream("list referenced paths", err)
	}
	return difference(keys, paths), nil
}

// CountOrphans returns the number of orphans. It has no side effects.
func (s *Service) CountOrphans(ctx context.Context, userID string) (int, error) {
	orphans, err := s.Orphans(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(orphans), nil
}

// ClearOrphans deletes every orphan. Deletes run independently; when any
// fails the outcome is still returned together with an ErrUpstream.
func (s *Service) ClearOrphans(ctx context.Context, userID string) (Outcome, error) {
	orphans, err := s.Orphans(ctx, userID)
	if err != nil {
		return Outcome{Failed: []string{}}, err
	}

	report, err := storage.DeleteAll(ctx, s.objects, orphans, s.parallel)
	out := Outcome{Found: len(orphans), Deleted: len(report.Deleted), Failed: report.Failed}
	if out.Failed == nil {
		out.Failed = []string{}
	}

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Str("user_id", userID).Int("found", out.Found).Int("deleted", out.Deleted).
		Int("failed", len(out.Failed)).Msg("orphan sweep finished")

	if err != nil {
		return out, apperr.Upstream("delete orphaned objects", err)
	}
	return out, nil
}

func difference(keys, referenced []string) []string {
	known := make(map[string]struct{}, len(referenced))
	for _, p := range referenced {
		known[p] = struct{}{}
	}
	seen := make(map[string]struct{}, len(keys))
	out := []string{}
	for _, k := range keys {
		if _, ok := known[k]; ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
