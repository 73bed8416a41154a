package app

import (
	"context"
	"fmt"
	"log/slog"

	"trivia-party-service/internal/domain"
)

// Barrier gates the start of a quiz on every live member acknowledging ready.
// It has no timeout; departures shrink the target and can complete it.
type Barrier struct {
	registry *Registry
	ready    ReadyStore
	bus      *Bus
	out      Broadcaster
	log      *slog.Logger
}

func NewBarrier(registry *Registry, ready ReadyStore, bus *Bus, out Broadcaster, log *slog.Logger) *Barrier {
	return &Barrier{registry: registry, ready: ready, bus: bus, out: out, log: log}
}

// AwaitAllReady prompts the party and blocks until ready-count equals the
// live member count at the time of a triggering acknowledgement or departure.
// It fails with ErrPartyEmpty if every member leaves first.
func (b *Barrier) AwaitAllReady(ctx context.Context, partyID string) error {
	scope, ok := b.bus.Open(readyScopeKey(partyID), partyID)
	if !ok {
		return domain.ErrQuizInProgress
	}
	defer scope.Close()

	if err := b.ready.ClearReady(ctx, partyID); err != nil {
		return fmt.Errorf("reset ready set: %w", err)
	}
	defer func() {
		if err := b.ready.ClearReady(context.WithoutCancel(ctx), partyID); err != nil {
			b.log.Warn("clear ready set", "party", partyID, "err", err)
		}
	}()

	b.log.Debug("ready barrier open", "party", partyID)
	b.out.Broadcast(partyID, EventReadyPrompt, nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-scope.Signals():
			switch sig.Kind {
			case SignalReady:
				counted, err := b.acknowledge(ctx, partyID, sig.UserID)
				if err != nil {
					return err
				}
				if !counted {
					continue
				}
			case SignalDeparture:
			default:
				continue
			}

			done, err := b.evaluate(ctx, partyID)
			if err != nil {
				return err
			}
			if done {
				b.log.Info("all users ready", "party", partyID)
				return nil
			}
		}
	}
}

func (b *Barrier) acknowledge(ctx context.Context, partyID, userID string) (bool, error) {
	member, err := b.registry.IsMember(ctx, partyID, userID)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return false, nil
	}
	added, err := b.ready.AddReady(ctx, partyID, userID)
	if err != nil {
		return false, fmt.Errorf("record ready: %w", err)
	}
	if !added {
		return false, nil
	}
	return true, b.registry.Touch(ctx, partyID)
}

// evaluate compares the ready set against live membership read fresh from the store.
func (b *Barrier) evaluate(ctx context.Context, partyID string) (bool, error) {
	members, err := b.registry.ListMembers(ctx, partyID)
	if err != nil {
		return false, err
	}
	if len(members) == 0 {
		return false, domain.ErrPartyEmpty
	}
	readyIDs, err := b.ready.ReadyUsers(ctx, partyID)
	if err != nil {
		return false, fmt.Errorf("load ready set: %w", err)
	}
	isReady := make(map[string]bool, len(readyIDs))
	for _, id := range readyIDs {
		isReady[id] = true
	}

	ready := make([]domain.UserRef, 0, len(members))
	for _, m := range members {
		if isReady[m.ID] {
			ready = append(ready, domain.UserRef{ID: m.ID, Name: m.Name})
		}
	}

	if len(ready) == len(members) {
		b.out.Broadcast(partyID, EventAllUsersReady, nil)
		return true, nil
	}
	b.out.Broadcast(partyID, EventPercentReady, percentPayload{Percent: len(ready) * 100 / len(members)})
	b.out.Broadcast(partyID, EventTheseUsersReady, ready)
	return false, nil
}
