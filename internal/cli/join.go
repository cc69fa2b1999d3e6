package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/scenesync/internal/crdt"
	"github.com/iudanet/scenesync/internal/protocol"
	"github.com/iudanet/scenesync/internal/scene"
	"github.com/iudanet/scenesync/internal/transport/ws"
	"github.com/iudanet/scenesync/internal/validation"
)

type putList []string

func (p *putList) String() string { return fmt.Sprint(*p) }

func (p *putList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// runJoin: join -scene ID [-duration D] [-interval I] [-put E:C:V]...
func (c *Cli) runJoin(ctx context.Context, args []string) error {
	fs := c.newFlagSet("join")
	sceneID := fs.String("scene", "", "Scene id")
	duration := fs.Duration("duration", 0, "Leave the scene after this time, 0 to stay until interrupted")
	interval := fs.Duration("interval", 100*time.Millisecond, "Inbound processing and flush interval")
	var puts putList
	fs.Var(&puts, "put", "Put ENTITY:COMPONENT:VALUE after joining, can be repeated")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := validation.ValidateSceneID(*sceneID); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if *interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrUsage)
	}

	token, err := c.token()
	if err != nil {
		return err
	}
	url, err := c.apiClient.WebSocketURL()
	if err != nil {
		return err
	}

	client, err := ws.Dial(ctx, url, token, c.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	cache, err := c.openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			c.logger.Error("failed to close local cache", "error", err)
		}
	}()

	s, err := scene.New(ctx, scene.Config{
		SceneID: *sceneID,
		Pipe:    client,
		Storage: cache,
		Logger:  c.logger,
		Consumer: scene.ConsumerFunc(func(m protocol.Message, outcome crdt.Outcome) {
			c.io.Printf("%-8s %s\n", outcome, formatMessage(m))
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to start scene: %w", err)
	}
	defer s.Close()

	c.io.Printf("Joined scene %s as network id %d\n", *sceneID, s.NetworkID())

	if err := s.RequestState(ctx); err != nil {
		return err
	}
	for _, put := range puts {
		entity, component, content, err := parsePut(put)
		if err != nil {
			return err
		}
		if _, err := s.PutComponent(ctx, entity, component, content); err != nil {
			return fmt.Errorf("failed to put %s: %w", put, err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}

	runCtx := ctx
	if *duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	err = runUntilDone(runCtx, s, client, *interval)

	// Последние входящие изменения и несброшенные правки
	if _, perr := s.ProcessInbound(ctx); perr != nil {
		c.logger.Warn("inbound processing failed", "error", perr)
	}
	if ferr := s.Flush(ctx); ferr != nil {
		c.logger.Warn("final flush failed", "error", ferr)
	}

	c.io.Printf("Left scene %s with %d entries\n", *sceneID, len(s.Entries()))
	return err
}

// runUntilDone крутит сцену, пока не истечет ctx или не оборвется соединение
func runUntilDone(ctx context.Context, s *scene.Scene, client *ws.Client, interval time.Duration) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-client.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	err := s.Run(runCtx, interval)
	if connErr := client.Err(); connErr != nil {
		return fmt.Errorf("connection lost: %w", connErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
