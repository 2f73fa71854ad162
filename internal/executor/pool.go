package executor

import (
	"context"
	"sync"

	"github.com/harrison/snippetcheck/internal/models"
)

// snippetOutcome is what one worker hands back for one snippet.
type snippetOutcome struct {
	index   int
	snippet models.Snippet
	result  models.ExecutionResult
	err     error
	ran     bool
}

// runPool executes snippets in catalog order with at most parallel in flight,
// each in its own evaluation context, and delivers every outcome to handle on
// the calling goroutine as it arrives. Snippets not launched before ctx is
// cancelled are delivered with ran=false.
func runPool(ctx context.Context, exec Executor, snippets []models.Snippet, parallel int, onStart func(models.Snippet), handle func(snippetOutcome)) {
	count := len(snippets)
	if count == 0 {
		return
	}
	if parallel <= 0 || parallel > count {
		parallel = count
	}

	semaphore := make(chan struct{}, parallel)
	resultsCh := make(chan snippetOutcome, count)

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(resultsCh)
		}()

		for i, snippet := range snippets {
			acquired := false
			if ctx.Err() == nil {
				select {
				case <-ctx.Done():
				case semaphore <- struct{}{}:
					acquired = true
				}
				if acquired && ctx.Err() != nil {
					<-semaphore
					acquired = false
				}
			}
			if !acquired {
				for j := i; j < count; j++ {
					resultsCh <- snippetOutcome{index: j, snippet: snippets[j]}
				}
				return
			}

			if onStart != nil {
				onStart(snippet)
			}
			wg.Add(1)
			go func(index int, snippet models.Snippet) {
				defer wg.Done()
				defer func() { <-semaphore }()

				result, err := exec.Run(ctx, snippet)
				if result.SnippetID == "" {
					result.SnippetID = snippet.ID
				}
				resultsCh <- snippetOutcome{index: index, snippet: snippet, result: result, err: err, ran: true}
			}(i, snippet)
		}
	}()

	for outcome := range resultsCh {
		handle(outcome)
	}
}
