package gateway

import (
	"context"
	"log"
	"time"
)

// loggingGateway records every call made through the wrapped gateway.
type loggingGateway struct {
	next   Gateway
	logger *log.Logger
}

func (g *loggingGateway) Name() Type {
	return g.next.Name()
}

func (g *loggingGateway) CreateOrUpdateChild(ctx context.Context, parentID, space, title string, payload []byte) (string, error) {
	start := time.Now()
	id, err := g.next.CreateOrUpdateChild(ctx, parentID, space, title, payload)
	g.record(OpCreateOrUpdate, title, start, err)
	return id, err
}

func (g *loggingGateway) UpdateByID(ctx context.Context, pageID, title string, payload []byte) error {
	start := time.Now()
	err := g.next.UpdateByID(ctx, pageID, title, payload)
	g.record(OpUpdateByID, pageID, start, err)
	return err
}

func (g *loggingGateway) ListChildren(ctx context.Context, parentID string, opts ListOptions) (Page, error) {
	start := time.Now()
	page, err := g.next.ListChildren(ctx, parentID, opts)
	if err == nil {
		g.logger.Printf("%s %s start=%d limit=%d -> %d entries (%v)",
			OpListChildren, parentID, opts.Start, opts.Limit, len(page.Entries), time.Since(start).Round(time.Millisecond))
		return page, nil
	}
	g.record(OpListChildren, parentID, start, err)
	return page, err
}

func (g *loggingGateway) Delete(ctx context.Context, pageID string) error {
	start := time.Now()
	err := g.next.Delete(ctx, pageID)
	g.record(OpDelete, pageID, start, err)
	return err
}

func (g *loggingGateway) record(op, target string, start time.Time, err error) {
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		g.logger.Printf("%s %s failed after %v: %v", op, target, elapsed, err)
		return
	}
	g.logger.Printf("%s %s ok (%v)", op, target, elapsed)
}
