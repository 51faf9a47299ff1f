package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"avalon/internal/domain"
)

const (
	// DefaultSnapshotLag is how long to wait before re-fetching state after
	// an event whose counters the server derives
	DefaultSnapshotLag = 500 * time.Millisecond

	// maxChatEntries bounds the chat log kept for the view
	maxChatEntries = 500
)

// GameServer is the authoritative game server intents are sent to
type GameServer interface {
	StartGame(ctx context.Context, players []domain.RosterEntry) (map[string]string, error)
	FetchState(ctx context.Context) (*domain.GameSnapshot, error)
	FetchMissionConfig(ctx context.Context) (*domain.MissionConfig, error)
	FetchAvailablePlayers(ctx context.Context) ([]string, error)
	SelectTeam(ctx context.Context, team []string) error
	VoteTeam(ctx context.Context, player string, vote domain.TeamVote) error
	VoteMission(ctx context.Context, player string, vote domain.MissionVote) error
	Assassinate(ctx context.Context, target string) error
	Reset(ctx context.Context) error
}

// Speaker is the speech queue as the controller uses it
type Speaker interface {
	Enqueue(text, speakerID string)
	Stop()
}

// VoiceConfigurer assigns voices to AI players once a game starts
type VoiceConfigurer interface {
	PreconfigureRoster(speakers []string)
}

// Loop runs callbacks on the session goroutine
type Loop interface {
	// Post schedules fn on the loop. It must not be called from the loop.
	Post(fn func())

	// After schedules fn on the loop once d has elapsed
	After(d time.Duration, fn func()) (cancel func())
}

// Deps are the collaborators a controller drives
type Deps struct {
	Server   GameServer
	Speech   Speaker
	Voices   VoiceConfigurer
	Renderer Renderer
}

// ControllerConfig holds controller tunables
type ControllerConfig struct {
	SnapshotLag    time.Duration
	RequestTimeout time.Duration // zero leaves deadlines to the transport
	Roster         []domain.RosterEntry
	ActingPlayer   string
}

// Controller derives what the user can do right now from pushed events and
// fetched snapshots, and issues the user's intents to the server. It is not
// safe for concurrent use: every method runs on the session loop.
type Controller struct {
	server   GameServer
	speech   Speaker
	voices   VoiceConfigurer
	renderer Renderer
	loop     Loop
	logger   *slog.Logger
	cfg      ControllerConfig
	ctx      context.Context

	phase         domain.Phase
	gameActive    bool
	snapshot      *domain.GameSnapshot
	missionConfig *domain.MissionConfig
	selection     *domain.SelectionSet
	roster        *domain.Roster
	options       []string
	proposedTeam  []string
	outcome       *domain.Outcome
	actingPlayer  string
	chat          []domain.ChatEntry

	// epoch changes on every phase transition, generation on every reset.
	// Responses carry both and are dropped when they no longer match.
	epoch      uint64
	generation uint64

	lastVoteKey string
	cancelFetch func()
}

// NewController creates a controller in the setup phase
func NewController(ctx context.Context, deps Deps, loop Loop, cfg ControllerConfig, logger *slog.Logger) *Controller {
	if cfg.SnapshotLag <= 0 {
		cfg.SnapshotLag = DefaultSnapshotLag
	}
	if deps.Renderer == nil {
		deps.Renderer = NopRenderer{}
	}

	return &Controller{
		server:       deps.Server,
		speech:       deps.Speech,
		voices:       deps.Voices,
		renderer:     deps.Renderer,
		loop:         loop,
		logger:       logger,
		cfg:          cfg,
		ctx:          ctx,
		phase:        domain.PhaseSetup,
		selection:    domain.NewSelectionSet(0),
		roster:       domain.NewRosterFrom(cfg.Roster),
		actingPlayer: cfg.ActingPlayer,
	}
}

// Phase returns the active phase
func (c *Controller) Phase() domain.Phase {
	return c.phase
}

// Snapshot returns the last applied snapshot, nil before a game
func (c *Controller) Snapshot() *domain.GameSnapshot {
	return c.snapshot
}

// Selection returns the live selection set
func (c *Controller) Selection() *domain.SelectionSet {
	return c.selection
}

// View builds the renderer's view of the current state
func (c *Controller) View() View {
	v := View{
		Phase:        c.phase,
		GameActive:   c.gameActive,
		Snapshot:     c.snapshot,
		Roster:       c.roster.Entries(),
		CanStart:     c.roster.CanStart(),
		ActingPlayer: c.actingPlayer,
		Options:      slices.Clone(c.options),
		Selection:    c.selection.Members(),
		RequiredSize: c.selection.RequiredSize(),
		CanConfirm:   c.selection.CanConfirm(),
		ProposedTeam: slices.Clone(c.proposedTeam),
		Outcome:      c.outcome,
		Chat:         slices.Clone(c.chat),
	}
	if c.gameActive {
		v.Missions = c.snapshot.MissionProgress()
	}
	return v
}

// HandleEvent applies one inbound event
func (c *Controller) HandleEvent(e domain.Event) {
	c.logger.Debug("event received", "event", e.Type(), "phase", c.phase)

	switch e.(type) {
	case domain.TeamVoteRecorded, domain.MissionVoteRecorded:
	default:
		c.lastVoteKey = ""
	}

	switch ev := e.(type) {
	case domain.CurrentState:
		c.applySnapshot(&ev.Snapshot)
	case domain.GameStarted:
		c.onGameStarted(ev)
	case domain.TeamSelected:
		c.onTeamSelected(ev)
	case domain.TeamVoteRecorded:
		if c.isRedelivery(ev) {
			return
		}
		c.onTeamVote(ev)
	case domain.MissionVoteRecorded:
		if c.isRedelivery(ev) {
			return
		}
		c.onMissionVote(ev)
	case domain.PlayerSpeaking:
		c.onPlayerSpeaking(ev)
	case domain.AssassinationResult:
		c.onAssassination(ev)
	case domain.GameReset:
		c.reset()
	default:
		c.logger.Debug("ignoring unknown event", "event", e.Type())
		return
	}

	c.render()
}

// isRedelivery reports whether a vote event repeats the previous one
// verbatim. Such a repeat is re-rendered but not announced again.
func (c *Controller) isRedelivery(e domain.Event) bool {
	raw, err := json.Marshal(e)
	if err != nil {
		return false
	}
	key := string(e.Type()) + string(raw)
	if key == c.lastVoteKey {
		c.logger.Debug("duplicate event re-rendered", "event", e.Type())
		c.render()
		return true
	}
	c.lastVoteKey = key
	return false
}

func (c *Controller) applySnapshot(s *domain.GameSnapshot) {
	if !s.Valid() {
		c.logger.Warn("ignoring inconsistent snapshot", "players", len(s.Players), "team", s.CurrentTeam)
		return
	}
	if c.snapshot.Equal(s) {
		return
	}

	c.snapshot = s
	if !s.IsActive() {
		return
	}

	c.gameActive = true
	if !c.transition(s.DerivePhase()) {
		c.refreshPanel()
	}
}

// refreshPanel updates the open panel from a new snapshot without
// disturbing the user's selection
func (c *Controller) refreshPanel() {
	switch c.phase {
	case domain.PhaseTeamSelection:
		if size := c.teamSize(); size > 0 {
			c.selection.SetRequiredSize(size)
		}
	case domain.PhaseTeamVoting, domain.PhaseMissionVoting:
		c.proposedTeam = slices.Clone(c.snapshot.CurrentTeam)
	case domain.PhaseAssassination:
		c.options = c.snapshot.AssassinationTargets()
	}
}

func (c *Controller) onGameStarted(e domain.GameStarted) {
	c.notice("Game started, roles have been assigned")
	for _, name := range e.SortedSecrets() {
		c.addChat(domain.NewChatEntry(domain.ChannelGod, domain.GodSender, name+": "+e.SecretMessages[name]))
	}
	c.scheduleSnapshot()
}

func (c *Controller) onTeamSelected(e domain.TeamSelected) {
	c.notice("Team selected: " + strings.Join(e.Team, ", "))
	if c.phase != domain.PhaseTeamSelection {
		return
	}
	if c.transition(domain.PhaseTeamVoting) {
		c.proposedTeam = slices.Clone(e.Team)
	}
}

func (c *Controller) onTeamVote(e domain.TeamVoteRecorded) {
	switch e.Status {
	case domain.TeamApproved:
		c.notice("Team approved, moving to the mission")
		c.transition(domain.PhaseMissionVoting)
	case domain.TeamRejected:
		c.notice("Team rejected, the next leader picks a new team")
		c.enter(domain.PhaseTeamSelection)
	case domain.TeamVoteEvilWin:
		c.finish(domain.SideEvil, e.Reason)
	default:
		c.notice(fmt.Sprintf("Vote recorded: %d votes remaining", e.RemainingVotes))
	}
}

func (c *Controller) onMissionVote(e domain.MissionVoteRecorded) {
	switch e.Status {
	case domain.MissionCompleted:
		result := "unknown"
		if e.MissionResult != nil {
			result = "fail"
			if *e.MissionResult {
				result = "success"
			}
		}
		c.notice("Mission complete: " + result)
		c.enter(domain.PhaseTeamSelection)
		c.scheduleSnapshot()
	case domain.GoodMissionWin:
		c.notice("Good has three successful missions, the assassin may strike")
		c.transition(domain.PhaseAssassination)
		c.scheduleSnapshot()
	case domain.MissionVoteEvilWin:
		c.finish(domain.SideEvil, e.Reason)
	default:
		c.notice(fmt.Sprintf("Mission card played: %d remaining", e.RemainingVotes))
	}
}

func (c *Controller) onPlayerSpeaking(e domain.PlayerSpeaking) {
	entry := domain.NewChatEntry(domain.ChannelPlayer, e.Speaker, e.Message)
	entry.Role = e.Role
	entry.IsAI = e.IsAI
	c.addChat(entry)

	if e.IsAI && c.speech != nil {
		c.speech.Enqueue(e.Message, e.Speaker)
	}
}

func (c *Controller) onAssassination(e domain.AssassinationResult) {
	winner := domain.SideGood
	if e.Status == domain.AssassinationEvilWin {
		winner = domain.SideEvil
	}
	c.finish(winner, e.Reason)
}

// finish moves to the result panel with the given outcome
func (c *Controller) finish(winner domain.Side, reason string) {
	if c.phase == domain.PhaseResult {
		return
	}
	c.outcome = &domain.Outcome{Winner: winner, Reason: reason}
	c.notice(fmt.Sprintf("Game over, %s wins: %s", winner, reason))
	c.transition(domain.PhaseResult)
}

// reset returns to setup and forgets everything about the game. The roster
// being built for the next game is kept.
func (c *Controller) reset() {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	if c.speech != nil {
		c.speech.Stop()
	}

	from := c.phase
	c.phase = domain.PhaseSetup
	c.epoch++
	c.generation++
	c.gameActive = false
	c.snapshot = nil
	c.missionConfig = nil
	c.selection.Rebind(0)
	c.options = nil
	c.proposedTeam = nil
	c.outcome = nil
	c.chat = nil
	c.lastVoteKey = ""

	c.logger.Info("game reset", "from", from)
}

// transition moves to target if it differs from the active phase.
// Returns true if the phase changed.
func (c *Controller) transition(target domain.Phase) bool {
	if target == c.phase {
		return false
	}
	if !c.phase.CanTransitionTo(target) {
		c.logger.Warn("ignoring phase transition", "from", c.phase, "to", target)
		return false
	}
	c.enter(target)
	return true
}

// enter opens target's panel, even if it is already open
func (c *Controller) enter(target domain.Phase) {
	if !c.phase.CanTransitionTo(target) && c.phase != target {
		c.logger.Warn("ignoring phase transition", "from", c.phase, "to", target)
		return
	}

	from := c.phase
	c.phase = target
	c.epoch++
	c.options = nil
	c.proposedTeam = nil

	switch target {
	case domain.PhaseTeamSelection:
		c.missionConfig = nil
		c.selection.Rebind(c.teamSize())
		c.fetchAvailablePlayers()
		if c.teamSize() == 0 {
			c.fetchMissionConfig()
		}
	case domain.PhaseTeamVoting, domain.PhaseMissionVoting:
		c.selection.Rebind(0)
		if c.snapshot != nil {
			c.proposedTeam = slices.Clone(c.snapshot.CurrentTeam)
		}
	case domain.PhaseAssassination:
		c.selection.Rebind(1)
		c.options = c.snapshot.AssassinationTargets()
	case domain.PhaseResult:
		c.selection.Rebind(0)
		if c.outcome == nil && c.snapshot != nil && c.snapshot.Winner != "" {
			c.outcome = &domain.Outcome{Winner: c.snapshot.Winner}
		}
	default:
		c.selection.Rebind(0)
	}

	c.logger.Info("phase changed", "from", from, "to", target)
}

// teamSize is the current mission's team size, zero if not yet known
func (c *Controller) teamSize() int {
	if size := c.snapshot.TeamSize(); size > 0 {
		return size
	}
	if c.missionConfig != nil {
		return c.missionConfig.TeamSize
	}
	return 0
}

func (c *Controller) scheduleSnapshot() {
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.cancelFetch = c.loop.After(c.cfg.SnapshotLag, func() {
		c.cancelFetch = nil
		c.RefreshSnapshot()
	})
}

func (c *Controller) notice(message string) {
	c.addChat(domain.NewChatEntry(domain.ChannelSystem, domain.SystemSender, message))
}

func (c *Controller) addChat(entry domain.ChatEntry) {
	c.chat = append(c.chat, entry)
	if len(c.chat) > maxChatEntries {
		c.chat = slices.Delete(c.chat, 0, len(c.chat)-maxChatEntries)
	}
	c.renderer.Chat(entry)
}

func (c *Controller) alert(action string, err error) {
	c.logger.Warn("intent failed", "intent", action, "error", err)
	c.renderer.Alert(fmt.Sprintf("%s failed: %v", action, err))
}

func (c *Controller) render() {
	c.renderer.Render(c.View())
}
