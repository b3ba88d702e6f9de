package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/discussed/internal/model"
)

// Aggregator looks up discussions for one page
type Aggregator interface {
	Aggregate(ctx context.Context, rawURL, title string) (*model.AggregateResult, error)
}

// Target is one page to look up
type Target struct {
	URL   string
	Title string
}

// LookupJob aggregates one target
type LookupJob struct {
	Index      int
	Target     Target
	Aggregator Aggregator
}

// Execute runs the lookup
func (j *LookupJob) Execute(ctx context.Context) Result {
	result, err := j.Aggregator.Aggregate(ctx, j.Target.URL, j.Target.Title)
	return &LookupResult{
		Index:  j.Index,
		Target: j.Target,
		Result: result,
		Error:  err,
	}
}

// LookupResult is the outcome of one batch lookup
type LookupResult struct {
	Index  int
	Target Target
	Result *model.AggregateResult
	Error  error
}

// GetError returns the error from the lookup
func (r *LookupResult) GetError() error {
	return r.Error
}

// BatchProcessor looks up many pages concurrently
type BatchProcessor struct {
	aggregator  Aggregator
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(aggregator Aggregator, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		aggregator:  aggregator,
		concurrency: concurrency,
	}
}

// Process looks up every target and returns results in input order
func (b *BatchProcessor) Process(ctx context.Context, targets []Target) []*LookupResult {
	if len(targets) == 0 {
		return []*LookupResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, target := range targets {
		pool.Submit(&LookupJob{
			Index:      i,
			Target:     target,
			Aggregator: b.aggregator,
		})
	}

	results := pool.Wait()

	lookups := make([]*LookupResult, len(results))
	for i, result := range results {
		lookups[i] = result.(*LookupResult)
	}
	sort.Slice(lookups, func(i, j int) bool {
		return lookups[i].Index < lookups[j].Index
	})

	return lookups
}

// ProcessFile reads targets from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*LookupResult, error) {
	targets, err := ReadTargetsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}

	return b.Process(ctx, targets), nil
}

// ReadTargetsFromFile reads one target per line: a URL, optionally followed by
// a tab and the page title. Blank lines and # comments are skipped; repeated
// URLs keep their first occurrence.
func ReadTargetsFromFile(filePath string) ([]Target, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var targets []Target
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rawURL, title, _ := strings.Cut(line, "\t")
		rawURL = strings.TrimSpace(rawURL)
		if seen[rawURL] {
			continue
		}
		seen[rawURL] = true
		targets = append(targets, Target{URL: rawURL, Title: strings.TrimSpace(title)})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return targets, nil
}
