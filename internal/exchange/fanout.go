package exchange

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"secretsanta/internal/messaging"
	dErrors "secretsanta/pkg/domain-errors"
)

// fanOutSend delivers build(id) to every id with bounded concurrency. A
// failed recipient never stops the others; failures are reported in the
// Delivery.
func (s *Service) fanOutSend(ctx context.Context, ids []string, build func(id string) []messaging.Message) Delivery {
	var (
		mu       sync.Mutex
		delivery Delivery
	)
	g := new(errgroup.Group)
	g.SetLimit(s.fanOut)
	for _, id := range ids {
		g.Go(func() error {
			var err error
			for _, msg := range build(id) {
				if err = s.send(ctx, id, msg); err != nil {
					break
				}
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				delivery.Failed = append(delivery.Failed, id)
			} else {
				delivery.Sent++
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(delivery.Failed)
	return delivery
}

func validation(msg string) error {
	return dErrors.New(dErrors.CodeValidation, msg)
}
