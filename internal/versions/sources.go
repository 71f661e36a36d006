package versions

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"audittrail/internal/domain"
)

const refreshConcurrencyGrowthFactor = 4

// Import fetches url and saves it as the next version of the task. It reports false when the
// fetched title and content equal the latest version. With watch the URL is re-imported by RefreshSources.
func (s *Service) Import(
	ctx context.Context,
	taskID string,
	url string,
	watch bool,
) (domain.TaskVersion, bool, error) {
	if s.importer == nil {
		return domain.TaskVersion{}, false, errors.New("importer is not configured")
	}

	taskID, err := NormalizeTaskID(taskID)
	if err != nil {
		return domain.TaskVersion{}, false, err
	}

	doc, err := s.importer.Fetch(ctx, url)
	if err != nil {
		return domain.TaskVersion{}, false, fmt.Errorf("fetch document: %w", err)
	}

	v, created, err := s.saveIfChanged(ctx, taskID, Draft{Title: doc.Title, Content: doc.Content})
	if err != nil {
		return domain.TaskVersion{}, false, err
	}

	if watch {
		if err = s.db.AddSource(ctx, taskID, doc.URL); err != nil {
			return v, created, fmt.Errorf("add source: %w", err)
		}
	}

	return v, created, nil
}

func (s *Service) saveIfChanged(ctx context.Context, taskID string, draft Draft) (domain.TaskVersion, bool, error) {
	latest, ok, err := s.db.GetLatestVersion(ctx, taskID)
	if err != nil {
		return domain.TaskVersion{}, false, fmt.Errorf("get latest version: %w", err)
	}

	if ok && latest.Data.Title == strings.TrimSpace(draft.Title) &&
		latest.Data.Content == strings.TrimSpace(draft.Content) {
		link(&latest, latest.VersionNumber)
		return latest, false, nil
	}

	v, err := s.Save(ctx, taskID, draft)
	if err != nil {
		return domain.TaskVersion{}, false, err
	}

	return v, true, nil
}

// RefreshSources re-imports every watched source and returns how many new versions were saved.
func (s *Service) RefreshSources(ctx context.Context) (int, error) {
	sources, err := s.db.GetSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("get sources: %w", err)
	}
	if len(sources) == 0 {
		return 0, nil
	}

	concurrency := min(runtime.NumCPU()*refreshConcurrencyGrowthFactor, len(sources))
	semCh := make(chan struct{}, concurrency)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)

	for _, source := range sources {
		wg.Add(1)
		semCh <- struct{}{}

		go func(src domain.Source) {
			defer wg.Done()
			defer func() { <-semCh }()

			v, isNew, importErr := s.Import(ctx, src.TaskID, src.URL, false)

			mu.Lock()
			defer mu.Unlock()

			if importErr != nil {
				errs = append(errs, fmt.Errorf("import %s into task %s: %w", src.URL, src.TaskID, importErr))
				return
			}
			if isNew {
				created++
				s.log.InfoContext(ctx, "Source has changed",
					"taskID", src.TaskID,
					"url", src.URL,
					"versionNumber", v.VersionNumber)
			}
		}(source)
	}

	wg.Wait()

	return created, errors.Join(errs...)
}
