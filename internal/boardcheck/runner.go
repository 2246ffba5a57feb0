package boardcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	service "github.com/okian/ctfboard/internal/app"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete check and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("boardcheck")
	client := newHTTPClient(config.BaseURL, config.Timeout)

	log.Info(ctx, "starting board check",
		logger.String("baseURL", config.BaseURL),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Int("topN", config.TopN),
		logger.Int("refreshes", config.Refreshes))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Work out which boards are public
	codenames, err := publicBoards(ctx, client)
	if err != nil {
		return stats, fmt.Errorf("board discovery failed: %w", err)
	}
	log.Info(ctx, "boards discovered", logger.Int("count", len(codenames)))

	// Step 3: Fetch and verify every board
	views, err := fetchBoards(ctx, config, client, codenames)
	if err != nil {
		return stats, fmt.Errorf("board verification failed: %w", err)
	}
	stats.BoardsChecked = len(views)

	// Step 4: Cross-check leading entries against the team endpoint
	entries, err := checkEntries(ctx, config, client, views)
	stats.EntriesChecked = entries
	if err != nil {
		return stats, fmt.Errorf("entry verification failed: %w", err)
	}

	// Step 5: Fire refresh requests at the overall board
	overall := codenames[0]
	if err := burstRefresh(ctx, config, client, overall, stats); err != nil {
		return stats, fmt.Errorf("refresh burst failed: %w", err)
	}

	// Step 6: Compare the live feed with the fetched board
	diff, err := checkLive(ctx, config, overall, views[0].Board)
	if err != nil {
		return stats, fmt.Errorf("live check failed: %w", err)
	}
	if diff != "" {
		stats.LiveMismatches++
		log.Warn(ctx, "live board differs from fetched board", logger.String("codename", overall), logger.String("diff", diff))
	}

	// Step 7: Save boards to file
	if config.OutputFile != "" {
		if err := saveBoards(config.OutputFile, views); err != nil {
			log.Warn(ctx, "failed to save boards to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "board check completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *httpClient) error {
	var health map[string]any
	if err := client.getJSON(ctx, "/healthz", &health); err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	return nil
}

// publicBoards returns the overall board, the tiebreaker board and every
// ended window, in that order.
func publicBoards(ctx context.Context, client *httpClient) ([]string, error) {
	var def service.View
	if err := client.getJSON(ctx, "/boards", &def); err != nil {
		return nil, err
	}
	var windows []service.WindowInfo
	if err := client.getJSON(ctx, "/windows", &windows); err != nil {
		return nil, err
	}

	codenames := []string{def.OverallCodename, def.TiebreakerCodename}
	for _, w := range windows {
		if w.Ended {
			codenames = append(codenames, w.Codename)
		}
	}
	return codenames, nil
}

// fetchBoards fetches codenames concurrently and verifies each board. The
// result keeps the order of codenames.
func fetchBoards(ctx context.Context, config *Config, client *httpClient, codenames []string) ([]service.View, error) {
	views := make([]service.View, len(codenames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(config.Workers, 1))

	for i, codename := range codenames {
		g.Go(func() error {
			var v service.View
			if err := client.getJSON(gctx, "/boards/"+url.PathEscape(codename), &v); err != nil {
				return err
			}
			if err := VerifyBoard(v.Board); err != nil {
				return fmt.Errorf("board %s: %w", codename, err)
			}
			if config.Verbose {
				logger.Get().Info(gctx, "board verified",
					logger.String("codename", codename),
					logger.String("template", v.Template),
					logger.Int("entries", len(v.Board)))
			}
			views[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// checkEntries fetches the leading entries of every board one by one and
// compares them with the board rows.
func checkEntries(ctx context.Context, config *Config, client *httpClient, views []service.View) (int, error) {
	var (
		mu      sync.Mutex
		checked int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(config.Workers, 1))

	for _, v := range views {
		for _, want := range v.Board.Top(config.TopN) {
			g.Go(func() error {
				path := "/boards/" + url.PathEscape(v.Codename) + "/teams/" + want.Team.ID.String()
				var got model.Entry
				if err := client.getJSON(gctx, path, &got); err != nil {
					return err
				}
				if diff := cmp.Diff(want, got); diff != "" {
					return fmt.Errorf("%w: %s entry for %q (-board +entry):\n%s", ErrInconsistent, v.Codename, want.Team.Name, diff)
				}
				mu.Lock()
				checked++
				mu.Unlock()
				return nil
			})
		}
	}
	err := g.Wait()
	return checked, err
}

// burstRefresh sends config.Refreshes concurrent refresh requests and
// tallies the answers. Duplicates and backpressure are expected outcomes.
func burstRefresh(ctx context.Context, config *Config, client *httpClient, codename string, stats *Stats) error {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	sem := make(chan struct{}, max(config.Workers, 1))
	path := "/boards/" + url.PathEscape(codename) + "/refresh"

	for range config.Refreshes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			status, body, err := client.do(ctx, http.MethodPost, path)
			var ack service.RefreshStatus
			if err == nil && status == http.StatusAccepted {
				err = json.Unmarshal(body, &ack)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.RefreshesFailed++
			case status == http.StatusAccepted && ack.Duplicate:
				stats.RefreshDuplicates++
			case status == http.StatusAccepted:
				stats.RefreshesAccepted++
			case status == http.StatusTooManyRequests:
				stats.RefreshesRejected++
			default:
				stats.RefreshesFailed++
			}
		}()
	}
	wg.Wait()

	if stats.RefreshesFailed > 0 {
		return fmt.Errorf("%w: %d of %d refresh requests failed", ErrUnexpectedStatus, stats.RefreshesFailed, config.Refreshes)
	}
	return nil
}

// saveBoards writes the fetched views to filename as JSON.
func saveBoards(filename string, views []service.View) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal boards: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// displayFinalStats logs the final statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("boardsChecked", stats.BoardsChecked),
		logger.Int("entriesChecked", stats.EntriesChecked),
		logger.Int("refreshesAccepted", stats.RefreshesAccepted),
		logger.Int("refreshDuplicates", stats.RefreshDuplicates),
		logger.Int("refreshesRejected", stats.RefreshesRejected),
		logger.Int("liveMismatches", stats.LiveMismatches),
		logger.Duration("duration", stats.Duration))
}
