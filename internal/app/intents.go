package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"avalon/internal/domain"
)

// ticket identifies the controller state an outbound request was issued in
type ticket struct {
	epoch      uint64
	generation uint64
}

func (c *Controller) ticket() ticket {
	return ticket{epoch: c.epoch, generation: c.generation}
}

// request runs call off the loop and posts the outcome back. Responses that
// arrive after a reset are dropped; so are responses that arrive after a
// phase change, unless anyPhase is set.
func (c *Controller) request(action string, anyPhase bool, call func(ctx context.Context) error, onSuccess func()) {
	t := c.ticket()
	go func() {
		ctx := c.ctx
		if c.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
			defer cancel()
		}
		err := call(ctx)

		c.loop.Post(func() {
			if t.generation != c.generation || (!anyPhase && t.epoch != c.epoch) {
				c.logger.Debug("dropping stale response", "intent", action, "error", err)
				return
			}
			if err != nil {
				c.alert(action, err)
				c.render()
				return
			}
			if onSuccess != nil {
				onSuccess()
			}
			c.render()
		})
	}()
}

// AddPlayer appends an entry to the pending roster
func (c *Controller) AddPlayer(name string, isAI bool, engine string) (domain.RosterEntry, error) {
	if c.gameActive {
		return domain.RosterEntry{}, fmt.Errorf("add player: %w", domain.ErrInvalidPhase)
	}
	entry, err := c.roster.Add(name, isAI, engine)
	if err != nil {
		return domain.RosterEntry{}, err
	}
	c.logger.Info("player added", "name", entry.Name, "isAi", entry.IsAI, "engine", entry.AIEngine)
	c.render()
	return entry, nil
}

// RemovePlayer drops the roster entry at index
func (c *Controller) RemovePlayer(index int) (domain.RosterEntry, error) {
	if c.gameActive {
		return domain.RosterEntry{}, fmt.Errorf("remove player: %w", domain.ErrInvalidPhase)
	}
	entry, err := c.roster.Remove(index)
	if err != nil {
		return domain.RosterEntry{}, err
	}
	c.logger.Info("player removed", "name", entry.Name)
	c.render()
	return entry, nil
}

// SetActingPlayer designates the identity votes are cast as
func (c *Controller) SetActingPlayer(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrEmptyName
	}
	if c.snapshot.IsActive() && !c.snapshot.HasPlayer(name) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, name)
	}

	c.actingPlayer = name
	c.notice("Acting as " + name)
	c.render()
	return nil
}

// SendChat adds a message from the acting player to the chat log
func (c *Controller) SendChat(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.ErrEmptyMessage
	}
	if c.actingPlayer == "" {
		return domain.ErrNoActingPlayer
	}

	c.addChat(domain.NewChatEntry(domain.ChannelPlayer, c.actingPlayer, message))
	c.render()
	return nil
}

// ToggleSelection flips a player's membership in the live selection.
// During assassination the selection holds a single target, so choosing a
// player replaces the previous choice.
func (c *Controller) ToggleSelection(name string) (bool, error) {
	switch c.phase {
	case domain.PhaseTeamSelection:
		if !c.selectable(name) {
			return false, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, name)
		}
		selected := c.selection.Toggle(name)
		c.render()
		return selected, nil
	case domain.PhaseAssassination:
		if !slices.Contains(c.options, name) {
			return false, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, name)
		}
		if c.selection.Contains(name) {
			c.selection.Clear()
			c.render()
			return false, nil
		}
		c.selection.Select(name)
		c.render()
		return true, nil
	default:
		return false, fmt.Errorf("select player in %s: %w", c.phase, domain.ErrInvalidPhase)
	}
}

func (c *Controller) selectable(name string) bool {
	if len(c.options) > 0 {
		return slices.Contains(c.options, name)
	}
	return c.snapshot.HasPlayer(name)
}

// StartGame validates the roster and asks the server to start
func (c *Controller) StartGame() error {
	if c.phase != domain.PhaseSetup || c.gameActive {
		return fmt.Errorf("start game: %w", domain.ErrInvalidPhase)
	}
	if err := c.roster.Validate(); err != nil {
		return err
	}

	players := c.roster.Entries()
	aiNames := c.roster.AINames()
	c.logger.Info("starting game", "players", len(players), "ai", len(aiNames))

	c.request("start game", true, func(ctx context.Context) error {
		_, err := c.server.StartGame(ctx, players)
		return err
	}, func() {
		c.gameActive = true
		if c.voices != nil {
			c.voices.PreconfigureRoster(aiNames)
		}
		c.notice(fmt.Sprintf("Starting game with %d players", len(players)))
	})
	return nil
}

// ProposeTeam sends the selection as the leader's team
func (c *Controller) ProposeTeam() error {
	if c.phase != domain.PhaseTeamSelection {
		return fmt.Errorf("propose team: %w", domain.ErrInvalidPhase)
	}
	if !c.selection.CanConfirm() {
		return fmt.Errorf("%w: have %d, need %d", domain.ErrSelectionSize, c.selection.Len(), c.selection.RequiredSize())
	}

	team := c.selection.Members()
	c.request("propose team", false, func(ctx context.Context) error {
		return c.server.SelectTeam(ctx, team)
	}, nil)
	return nil
}

// VoteTeam casts the acting player's vote on the proposed team
func (c *Controller) VoteTeam(vote domain.TeamVote) error {
	if !vote.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidVote, vote)
	}
	if c.actingPlayer == "" {
		return domain.ErrNoActingPlayer
	}
	if c.phase != domain.PhaseTeamVoting {
		return fmt.Errorf("team vote: %w", domain.ErrInvalidPhase)
	}

	player := c.actingPlayer
	c.request("team vote", false, func(ctx context.Context) error {
		return c.server.VoteTeam(ctx, player, vote)
	}, func() {
		c.notice(fmt.Sprintf("%s voted to %s", player, vote))
	})
	return nil
}

// VoteMission plays the acting player's mission card
func (c *Controller) VoteMission(vote domain.MissionVote) error {
	if !vote.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidVote, vote)
	}
	if c.actingPlayer == "" {
		return domain.ErrNoActingPlayer
	}
	if c.phase != domain.PhaseMissionVoting {
		return fmt.Errorf("mission vote: %w", domain.ErrInvalidPhase)
	}

	player := c.actingPlayer
	c.request("mission vote", false, func(ctx context.Context) error {
		return c.server.VoteMission(ctx, player, vote)
	}, func() {
		c.notice(player + " played a mission card")
	})
	return nil
}

// Assassinate names the selected target
func (c *Controller) Assassinate() error {
	if c.phase != domain.PhaseAssassination {
		return fmt.Errorf("assassinate: %w", domain.ErrInvalidPhase)
	}
	if c.selection.Len() != 1 {
		return domain.ErrNoTarget
	}

	target := c.selection.Members()[0]
	c.request("assassinate", false, func(ctx context.Context) error {
		return c.server.Assassinate(ctx, target)
	}, nil)
	return nil
}

// Reset asks the server to reset the game and resets locally once it
// acknowledges, clearing the roster too. A game_reset event arriving first
// makes the ack a no-op.
func (c *Controller) Reset() error {
	c.request("reset", true, func(ctx context.Context) error {
		return c.server.Reset(ctx)
	}, func() {
		c.reset()
		c.roster.Reset()
	})
	return nil
}

// RefreshSnapshot fetches the full game state. Failures are only logged.
// A snapshot that raced a phase change may predate it, so it is dropped and
// fetched again.
func (c *Controller) RefreshSnapshot() {
	t := c.ticket()
	go func() {
		snap, err := c.server.FetchState(c.ctx)
		c.loop.Post(func() {
			if t.generation != c.generation {
				c.logger.Debug("dropping snapshot from before reset")
				return
			}
			if t.epoch != c.epoch {
				c.logger.Debug("snapshot raced a phase change, fetching again")
				c.scheduleSnapshot()
				return
			}
			if err != nil {
				c.logger.Warn("fetch snapshot failed", "error", err)
				return
			}
			if snap == nil {
				c.logger.Debug("no game on server")
				return
			}
			c.applySnapshot(snap)
			c.render()
		})
	}()
}

func (c *Controller) fetchAvailablePlayers() {
	c.options = nil
	var players []string
	c.request("fetch available players", false, func(ctx context.Context) error {
		var err error
		players, err = c.server.FetchAvailablePlayers(ctx)
		return err
	}, func() {
		c.options = players
	})
}

func (c *Controller) fetchMissionConfig() {
	t := c.ticket()
	go func() {
		cfg, err := c.server.FetchMissionConfig(c.ctx)
		c.loop.Post(func() {
			if t != c.ticket() {
				return
			}
			if err != nil {
				c.logger.Warn("fetch mission config failed", "error", err)
				return
			}
			if cfg == nil {
				return
			}
			c.missionConfig = cfg
			if c.snapshot.TeamSize() == 0 {
				c.selection.SetRequiredSize(cfg.TeamSize)
			}
			c.render()
		})
	}()
}
