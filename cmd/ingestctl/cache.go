package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/service"
)

// runClearStatsCache drops the cached stats snapshot so the next status
// poll recomputes it from the job store. Useful after manual row surgery.
func runClearStatsCache(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := closeInfra(nil, redisClient); closeErr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", closeErr)
		}
	}()

	cache := data.NewRedisCacheRepo(redisClient)
	if healthErr := cache.Health(ctx); healthErr != nil {
		return fmt.Errorf("redis ping: %w", healthErr)
	}

	deleted, err := cache.Delete(ctx, service.StatsCacheKey)
	if err != nil {
		return fmt.Errorf("delete stats cache: %w", err)
	}

	if !deleted {
		if writeErr := writeln(os.Stdout, "Stats cache was already empty"); writeErr != nil {
			return fmt.Errorf("print stats cache summary: %w", writeErr)
		}
		return nil
	}

	if writeErr := writef(os.Stdout, "Cleared stats cache key %s\n", service.StatsCacheKey); writeErr != nil {
		return fmt.Errorf("print stats cache summary: %w", writeErr)
	}
	return nil
}
