package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"trivia-party-service/internal/domain"
)

const maxDisplayNameLen = 32

// Registry manages party membership, leadership and display names.
// Operations on a party that does not exist are no-ops or return empty
// results; an empty member set is the only not-found signal.
type Registry struct {
	parties PartyStore
	scores  ScoreStore
	runs    RunStore
	names   NameGenerator
}

func NewRegistry(store StateStore, names NameGenerator) *Registry {
	if names == nil {
		names = RandomName
	}
	return &Registry{parties: store, scores: store, runs: store, names: names}
}

// CreateOrJoin adds userID to the party, electing them leader if the party was empty,
// and returns their display name. Re-joining is idempotent apart from the TTL refresh.
func (r *Registry) CreateOrJoin(ctx context.Context, partyID, userID string) (leader bool, name string, err error) {
	if !domain.ValidPartyID(partyID) {
		return false, "", domain.ErrInvalidPartyID
	}
	leader, err = r.parties.AddMember(ctx, partyID, userID)
	if err != nil {
		return false, "", fmt.Errorf("add member: %w", err)
	}
	name, err = r.AssignDisplayName(ctx, userID, partyID)
	if err != nil {
		return leader, "", err
	}
	return leader, name, nil
}

// AssignDisplayName returns the user's existing name or persists a generated one.
func (r *Registry) AssignDisplayName(ctx context.Context, userID, partyID string) (string, error) {
	name, err := r.parties.SetDisplayNameIfAbsent(ctx, partyID, userID, r.names())
	if err != nil {
		return "", fmt.Errorf("assign display name: %w", err)
	}
	return name, r.Touch(ctx, partyID)
}

// ChangeDisplayName overwrites the user's name. Names are not required to be unique.
func (r *Registry) ChangeDisplayName(ctx context.Context, userID, name, partyID string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty display name", domain.ErrInvalidPayload)
	}
	if len([]rune(name)) > maxDisplayNameLen {
		name = string([]rune(name)[:maxDisplayNameLen])
	}
	member, err := r.parties.IsMember(ctx, partyID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil
	}
	if err := r.parties.SetDisplayName(ctx, partyID, userID, name); err != nil {
		return fmt.Errorf("set display name: %w", err)
	}
	return r.Touch(ctx, partyID)
}

// DisplayName returns the stored name for userID, or "" if none.
func (r *Registry) DisplayName(ctx context.Context, partyID, userID string) (string, error) {
	names, err := r.parties.DisplayNames(ctx, partyID)
	if err != nil {
		return "", err
	}
	return names[userID], nil
}

// ListMembers returns the roster with the leader flag computed against the stored leader.
func (r *Registry) ListMembers(ctx context.Context, partyID string) ([]domain.Member, error) {
	ids, err := r.parties.Members(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Member{}, nil
	}
	leader, err := r.parties.Leader(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("load leader: %w", err)
	}
	names, err := r.parties.DisplayNames(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("load display names: %w", err)
	}

	members := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		members = append(members, domain.Member{ID: id, Name: names[id], Leader: id == leader})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

// RemoveMember drops userID from the party along with their name and active-quiz score.
// It returns the user's last known identity. Leadership is left untouched.
func (r *Registry) RemoveMember(ctx context.Context, userID, partyID string) (domain.UserRef, error) {
	ref := domain.UserRef{ID: userID}
	name, err := r.DisplayName(ctx, partyID, userID)
	if err != nil {
		return ref, fmt.Errorf("load display name: %w", err)
	}
	ref.Name = name

	if err := r.parties.RemoveMember(ctx, partyID, userID); err != nil {
		return ref, fmt.Errorf("remove member: %w", err)
	}
	if err := r.parties.DeleteDisplayName(ctx, partyID, userID); err != nil {
		return ref, fmt.Errorf("delete display name: %w", err)
	}
	quizID, err := r.runs.ActiveRun(ctx, partyID)
	if err != nil {
		return ref, fmt.Errorf("load active quiz: %w", err)
	}
	if quizID != "" {
		if err := r.scores.DeleteScore(ctx, partyID, quizID, userID); err != nil {
			return ref, fmt.Errorf("delete score: %w", err)
		}
	}
	return ref, r.Touch(ctx, partyID)
}

// Exists reports whether the party has at least one member.
func (r *Registry) Exists(ctx context.Context, partyID string) (bool, error) {
	n, err := r.LiveCount(ctx, partyID)
	return n > 0, err
}

// LiveCount returns the current member count, read fresh from the store.
func (r *Registry) LiveCount(ctx context.Context, partyID string) (int, error) {
	if !domain.ValidPartyID(partyID) {
		return 0, nil
	}
	n, err := r.parties.MemberCount(ctx, partyID)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

// Touch refreshes the party's inactivity TTL.
func (r *Registry) Touch(ctx context.Context, partyID string) error {
	if err := r.parties.Touch(ctx, partyID); err != nil {
		return fmt.Errorf("refresh party ttl: %w", err)
	}
	return nil
}

// IsMember reports whether userID currently belongs to the party.
func (r *Registry) IsMember(ctx context.Context, partyID, userID string) (bool, error) {
	return r.parties.IsMember(ctx, partyID, userID)
}

// MemberIDs returns the live member ids.
func (r *Registry) MemberIDs(ctx context.Context, partyID string) ([]string, error) {
	return r.parties.Members(ctx, partyID)
}
