package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"avalon/internal/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeLoop lets a test play the session loop. Controller methods are called
// directly from the test goroutine; posted responses are run by settle.
type fakeLoop struct {
	posted chan func()
	timers []*fakeTimer
}

type fakeTimer struct {
	d         time.Duration
	fn        func()
	cancelled bool
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{posted: make(chan func(), 32)}
}

func (l *fakeLoop) Post(fn func()) { l.posted <- fn }

func (l *fakeLoop) After(d time.Duration, fn func()) func() {
	t := &fakeTimer{d: d, fn: fn}
	l.timers = append(l.timers, t)
	return func() { t.cancelled = true }
}

// settle runs n posted callbacks, failing if any is late
func (l *fakeLoop) settle(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case fn := <-l.posted:
			fn()
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for response %d of %d", i+1, n)
		}
	}
}

// idle fails if anything is posted within a short window
func (l *fakeLoop) idle(t *testing.T) {
	t.Helper()
	select {
	case <-l.posted:
		t.Fatalf("expected no outstanding requests")
	case <-time.After(30 * time.Millisecond):
	}
}

// fire runs every pending timer that was not cancelled
func (l *fakeLoop) fire() int {
	timers := l.timers
	l.timers = nil
	fired := 0
	for _, t := range timers {
		if !t.cancelled {
			t.fn()
			fired++
		}
	}
	return fired
}

func (l *fakeLoop) pending() int {
	n := 0
	for _, t := range l.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

type fakeServer struct {
	mu        sync.Mutex
	calls     map[string]int
	err       error
	state     *domain.GameSnapshot
	available []string
	mission   *domain.MissionConfig
	started   [][]domain.RosterEntry
	teams     [][]string
	votes     []string
	target    string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		calls:     make(map[string]int),
		available: []string{"Alice", "Bob", "Carol", "Dave", "Eve"},
	}
}

func (f *fakeServer) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[call]++
	return f.err
}

func (f *fakeServer) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

func (f *fakeServer) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeServer) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeServer) StartGame(ctx context.Context, players []domain.RosterEntry) (map[string]string, error) {
	if err := f.record("start"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, players)
	return map[string]string{}, nil
}

func (f *fakeServer) FetchState(ctx context.Context) (*domain.GameSnapshot, error) {
	if err := f.record("state"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeServer) FetchMissionConfig(ctx context.Context) (*domain.MissionConfig, error) {
	if err := f.record("mission"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mission, nil
}

func (f *fakeServer) FetchAvailablePlayers(ctx context.Context) ([]string, error) {
	if err := f.record("available"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.available), nil
}

func (f *fakeServer) SelectTeam(ctx context.Context, team []string) error {
	if err := f.record("team"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teams = append(f.teams, team)
	return nil
}

func (f *fakeServer) VoteTeam(ctx context.Context, player string, vote domain.TeamVote) error {
	if err := f.record("vote_team"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes = append(f.votes, player+":"+string(vote))
	return nil
}

func (f *fakeServer) VoteMission(ctx context.Context, player string, vote domain.MissionVote) error {
	if err := f.record("vote_mission"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes = append(f.votes, player+":"+string(vote))
	return nil
}

func (f *fakeServer) Assassinate(ctx context.Context, target string) error {
	if err := f.record("assassinate"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = target
	return nil
}

func (f *fakeServer) Reset(ctx context.Context) error {
	return f.record("reset")
}

type spoken struct {
	text    string
	speaker string
}

type fakeSpeaker struct {
	enqueued []spoken
	stops    int
}

func (s *fakeSpeaker) Enqueue(text, speakerID string) {
	s.enqueued = append(s.enqueued, spoken{text: text, speaker: speakerID})
}

func (s *fakeSpeaker) Stop() { s.stops++ }

type fakeVoices struct {
	rosters [][]string
}

func (v *fakeVoices) PreconfigureRoster(speakers []string) {
	v.rosters = append(v.rosters, speakers)
}

type fakeRenderer struct {
	renders int
	chats   []domain.ChatEntry
	alerts  []string
}

func (r *fakeRenderer) Render(View)                 { r.renders++ }
func (r *fakeRenderer) Chat(entry domain.ChatEntry) { r.chats = append(r.chats, entry) }
func (r *fakeRenderer) Alert(message string)        { r.alerts = append(r.alerts, message) }

func (r *fakeRenderer) notices(prefix string) int {
	n := 0
	for _, e := range r.chats {
		if e.Channel == domain.ChannelSystem && strings.HasPrefix(e.Message, prefix) {
			n++
		}
	}
	return n
}

type harness struct {
	c        *Controller
	loop     *fakeLoop
	server   *fakeServer
	speaker  *fakeSpeaker
	voices   *fakeVoices
	renderer *fakeRenderer
}

func newHarness(t *testing.T, roster []domain.RosterEntry) *harness {
	t.Helper()
	h := &harness{
		loop:     newFakeLoop(),
		server:   newFakeServer(),
		speaker:  &fakeSpeaker{},
		voices:   &fakeVoices{},
		renderer: &fakeRenderer{},
	}
	deps := Deps{Server: h.server, Speech: h.speaker, Voices: h.voices, Renderer: h.renderer}
	cfg := ControllerConfig{SnapshotLag: 10 * time.Millisecond, Roster: roster}
	h.c = NewController(context.Background(), deps, h.loop, cfg, discardLogger)
	return h
}

var testPlayers = []domain.Player{
	{Name: "Alice"},
	{Name: "Bob"},
	{Name: "Carol"},
	{Name: "Dave", IsAI: true, AIEngine: domain.EngineGPT4},
	{Name: "Eve", IsAI: true, AIEngine: domain.EngineClaude},
}

func playing(phase domain.ServerPhase, teamSize int) domain.GameSnapshot {
	return domain.GameSnapshot{
		Status:         domain.StatusPlaying,
		Phase:          phase,
		CurrentRound:   1,
		CurrentMission: 1,
		CurrentLeader:  "Alice",
		Players:        slices.Clone(testPlayers),
		MissionConfig:  &domain.MissionConfig{MissionNumber: 1, TeamSize: teamSize, FailsNeeded: 1},
	}
}

func rosterOf(n int) []domain.RosterEntry {
	entries := make([]domain.RosterEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, domain.RosterEntry{Name: "P" + string(rune('A'+i))})
	}
	return entries
}

// enterSelection opens team selection from a snapshot and answers the
// available players request it triggers
func (h *harness) enterSelection(t *testing.T, teamSize int) {
	t.Helper()
	h.c.HandleEvent(domain.CurrentState{Snapshot: playing(domain.ServerPhaseTeamSelection, teamSize)})
	h.loop.settle(t, 1)
	if got := h.c.Phase(); got != domain.PhaseTeamSelection {
		t.Fatalf("phase = %s, want %s", got, domain.PhaseTeamSelection)
	}
}

func (h *harness) enterTeamVoting(t *testing.T) {
	t.Helper()
	h.enterSelection(t, 2)
	h.toggle(t, "Alice", "Bob")
	h.c.HandleEvent(domain.TeamSelected{Team: []string{"Alice", "Bob"}})
	if got := h.c.Phase(); got != domain.PhaseTeamVoting {
		t.Fatalf("phase = %s, want %s", got, domain.PhaseTeamVoting)
	}
}

func (h *harness) enterMissionVoting(t *testing.T) {
	t.Helper()
	h.enterTeamVoting(t)
	h.c.HandleEvent(domain.TeamVoteRecorded{Status: domain.TeamApproved})
	if got := h.c.Phase(); got != domain.PhaseMissionVoting {
		t.Fatalf("phase = %s, want %s", got, domain.PhaseMissionVoting)
	}
}

func (h *harness) enterAssassination(t *testing.T) {
	t.Helper()
	h.enterMissionVoting(t)
	h.c.HandleEvent(domain.MissionVoteRecorded{Status: domain.GoodMissionWin})
	if got := h.c.Phase(); got != domain.PhaseAssassination {
		t.Fatalf("phase = %s, want %s", got, domain.PhaseAssassination)
	}
}

func (h *harness) enterResult(t *testing.T) {
	t.Helper()
	h.enterAssassination(t)
	h.c.HandleEvent(domain.AssassinationResult{Status: domain.AssassinationEvilWin, Target: "Alice", Reason: "Merlin was found"})
	if got := h.c.Phase(); got != domain.PhaseResult {
		t.Fatalf("phase = %s, want %s", got, domain.PhaseResult)
	}
}

func (h *harness) toggle(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := h.c.ToggleSelection(name); err != nil {
			t.Fatalf("ToggleSelection(%s) error: %v", name, err)
		}
	}
}

func TestSnapshotReplaceIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.enterSelection(t, 2)
	h.toggle(t, "Alice")

	before := h.c.View()
	h.c.HandleEvent(domain.CurrentState{Snapshot: playing(domain.ServerPhaseTeamSelection, 2)})
	after := h.c.View()

	if !reflect.DeepEqual(before, after) {
		t.Errorf("view changed after re-applying the same snapshot:\nbefore %+v\nafter  %+v", before, after)
	}
	if got := h.server.count("available"); got != 1 {
		t.Errorf("available players fetched %d times, want 1", got)
	}
	h.loop.idle(t)
}

func TestSnapshotDrivesPhase(t *testing.T) {
	tests := []struct {
		name  string
		phase domain.ServerPhase
		want  domain.Phase
	}{
		{"role assignment", domain.ServerPhaseRoleAssignment, domain.PhaseTeamSelection},
		{"team vote", domain.ServerPhaseTeamVote, domain.PhaseTeamVoting},
		{"mission vote", domain.ServerPhaseMissionVote, domain.PhaseMissionVoting},
		{"assassination", domain.ServerPhaseAssassination, domain.PhaseAssassination},
		{"game end", domain.ServerPhaseGameEnd, domain.PhaseResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.c.HandleEvent(domain.CurrentState{Snapshot: playing(tt.phase, 2)})
			if tt.want == domain.PhaseTeamSelection {
				h.loop.settle(t, 1)
			}

			if got := h.c.Phase(); got != tt.want {
				t.Errorf("phase = %s, want %s", got, tt.want)
			}
			if !h.c.View().GameActive {
				t.Error("expected game view to be active")
			}
		})
	}
}

func TestWaitingSnapshotKeepsSetup(t *testing.T) {
	h := newHarness(t, nil)
	h.c.HandleEvent(domain.CurrentState{Snapshot: domain.GameSnapshot{Status: domain.StatusWaiting}})

	if got := h.c.Phase(); got != domain.PhaseSetup {
		t.Errorf("phase = %s, want %s", got, domain.PhaseSetup)
	}
	if h.c.View().GameActive {
		t.Error("game view should not be active for a waiting game")
	}
}

func TestInconsistentSnapshotIgnored(t *testing.T) {
	h := newHarness(t, nil)
	snap := playing(domain.ServerPhaseTeamVote, 2)
	snap.CurrentTeam = []string{"Alice", "Mallory"}
	h.c.HandleEvent(domain.CurrentState{Snapshot: snap})

	if h.c.Snapshot() != nil {
		t.Error("snapshot with a team member outside the players should be dropped")
	}
	if got := h.c.Phase(); got != domain.PhaseSetup {
		t.Errorf("phase = %s, want %s", got, domain.PhaseSetup)
	}
}

func TestSelectionCardinalityGate(t *testing.T) {
	for size := 1; size <= 5; size++ {
		t.Run(strings.Repeat("I", size), func(t *testing.T) {
			h := newHarness(t, nil)
			h.enterSelection(t, size)

			names := domain.PlayerNames(testPlayers)
			for i := 0; i < size; i++ {
				if h.c.View().CanConfirm {
					t.Fatalf("confirm enabled with %d of %d selected", i, size)
				}
				if err := h.c.ProposeTeam(); !errors.Is(err, domain.ErrSelectionSize) {
					t.Fatalf("ProposeTeam() with %d of %d = %v, want ErrSelectionSize", i, size, err)
				}
				h.toggle(t, names[i])
			}

			if !h.c.View().CanConfirm {
				t.Fatalf("confirm disabled with %d of %d selected", size, size)
			}
			if size < len(names) {
				h.toggle(t, names[size])
				if h.c.View().CanConfirm {
					t.Fatalf("confirm enabled with %d of %d selected", size+1, size)
				}
				h.toggle(t, names[size])
			}

			if err := h.c.ProposeTeam(); err != nil {
				t.Fatalf("ProposeTeam() error: %v", err)
			}
			h.loop.settle(t, 1)
			if len(h.server.teams) != 1 || len(h.server.teams[0]) != size {
				t.Errorf("teams sent = %v, want one team of %d", h.server.teams, size)
			}
		})
	}
}

func TestMissionConfigFetchedWhenSnapshotLacksIt(t *testing.T) {
	h := newHarness(t, nil)
	h.server.mission = &domain.MissionConfig{MissionNumber: 1, TeamSize: 3, FailsNeeded: 1}

	snap := playing(domain.ServerPhaseTeamSelection, 0)
	snap.MissionConfig = nil
	h.c.HandleEvent(domain.CurrentState{Snapshot: snap})
	h.loop.settle(t, 2)

	if got := h.c.Selection().RequiredSize(); got != 3 {
		t.Errorf("required size = %d, want 3", got)
	}
}

func TestTeamSelectedShowsTeamReadOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.enterTeamVoting(t)

	v := h.c.View()
	if !reflect.DeepEqual(v.ProposedTeam, []string{"Alice", "Bob"}) {
		t.Errorf("proposed team = %v, want [Alice Bob]", v.ProposedTeam)
	}
	if len(v.Selection) != 0 {
		t.Errorf("selection = %v, want empty", v.Selection)
	}
	if _, err := h.c.ToggleSelection("Carol"); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Errorf("ToggleSelection during voting = %v, want ErrInvalidPhase", err)
	}
}

func TestTeamRejectedReturnsToSelection(t *testing.T) {
	priors := [][]string{
		{},
		{"Alice"},
		{"Alice", "Bob"},
		{"Carol", "Dave", "Eve"},
	}

	for _, prior := range priors {
		t.Run(strings.Join(prior, "+"), func(t *testing.T) {
			h := newHarness(t, nil)
			h.enterSelection(t, 2)
			h.toggle(t, prior...)
			h.c.HandleEvent(domain.TeamSelected{Team: []string{"Alice", "Bob"}})

			h.c.HandleEvent(domain.TeamVoteRecorded{Status: domain.TeamRejected, FailedVotes: 1, NextLeader: "Bob"})
			h.loop.settle(t, 1)

			if got := h.c.Phase(); got != domain.PhaseTeamSelection {
				t.Fatalf("phase = %s, want %s", got, domain.PhaseTeamSelection)
			}
			if got := h.c.Selection().Len(); got != 0 {
				t.Errorf("selection size = %d, want 0", got)
			}
			if got := h.server.count("available"); got != 2 {
				t.Errorf("available players fetched %d times, want 2", got)
			}
			if got := h.c.View().Options; len(got) != 5 {
				t.Errorf("options = %v, want the five available players", got)
			}
		})
	}
}

func TestRejectedInTeamSelectionReopensPanel(t *testing.T) {
	h := newHarness(t, nil)
	h.enterSelection(t, 2)
	h.toggle(t, "Alice")

	h.c.HandleEvent(domain.TeamVoteRecorded{Status: domain.TeamRejected})
	h.loop.settle(t, 1)

	if got := h.c.Selection().Len(); got != 0 {
		t.Errorf("selection size = %d, want 0", got)
	}
	if got := h.server.count("available"); got != 2 {
		t.Errorf("available players fetched %d times, want 2", got)
	}
}

func TestRosterBounds(t *testing.T) {
	tests := []struct {
		size    int
		wantErr error
	}{
		{4, domain.ErrRosterSize},
		{5, nil},
		{10, nil},
		{11, domain.ErrRosterSize},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.size), func(t *testing.T) {
			h := newHarness(t, rosterOf(tt.size))
			err := h.c.StartGame()

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("StartGame() = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				h.loop.idle(t)
				if got := h.server.total(); got != 0 {
					t.Errorf("server called %d times, want 0", got)
				}
				return
			}

			h.loop.settle(t, 1)
			if got := h.server.count("start"); got != 1 {
				t.Errorf("start called %d times, want 1", got)
			}
		})
	}
}

func TestStartGameRejectsDuplicateNames(t *testing.T) {
	roster := rosterOf(5)
	roster[4].Name = roster[0].Name
	h := newHarness(t, roster)

	if err := h.c.StartGame(); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("StartGame() = %v, want ErrDuplicateName", err)
	}
	h.loop.idle(t)
}

func TestStartGameFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, rosterOf(5))
	h.server.fail(errors.New("server unavailable"))

	if err := h.c.StartGame(); err != nil {
		t.Fatalf("StartGame() error: %v", err)
	}
	h.loop.settle(t, 1)

	v := h.c.View()
	if v.GameActive || v.Phase != domain.PhaseSetup || len(v.Roster) != 5 {
		t.Errorf("state changed after failed start: %+v", v)
	}
	if len(h.renderer.alerts) != 1 {
		t.Errorf("alerts = %v, want exactly one", h.renderer.alerts)
	}
}

func TestHappyPath(t *testing.T) {
	h := newHarness(t, nil)
	for _, p := range testPlayers {
		if _, err := h.c.AddPlayer(p.Name, p.IsAI, p.AIEngine); err != nil {
			t.Fatalf("AddPlayer(%s) error: %v", p.Name, err)
		}
	}

	if err := h.c.StartGame(); err != nil {
		t.Fatalf("StartGame() error: %v", err)
	}
	h.loop.settle(t, 1)

	if !h.c.View().GameActive {
		t.Fatal("expected game view after a successful start")
	}
	if want := [][]string{{"Dave", "Eve"}}; !reflect.DeepEqual(h.voices.rosters, want) {
		t.Errorf("preconfigured voices = %v, want %v", h.voices.rosters, want)
	}

	h.c.HandleEvent(domain.GameStarted{SecretMessages: map[string]string{
		"Bob":   "You are a loyal servant",
		"Alice": "You are Merlin",
	}})
	if got := h.c.Phase(); got != domain.PhaseSetup {
		t.Errorf("phase after game_started = %s, want %s until a snapshot arrives", got, domain.PhaseSetup)
	}

	var secrets []string
	for _, e := range h.renderer.chats {
		if e.Channel == domain.ChannelGod {
			secrets = append(secrets, e.Message)
		}
	}
	if want := []string{"Alice: You are Merlin", "Bob: You are a loyal servant"}; !reflect.DeepEqual(secrets, want) {
		t.Errorf("secret messages = %v, want %v", secrets, want)
	}
	if got := h.loop.pending(); got != 1 {
		t.Errorf("pending snapshot fetches = %d, want 1", got)
	}

	h.c.HandleEvent(domain.CurrentState{Snapshot: playing(domain.ServerPhaseTeamSelection, 2)})
	h.loop.settle(t, 1)

	if got := h.c.Phase(); got != domain.PhaseTeamSelection {
		t.Errorf("phase = %s, want %s", got, domain.PhaseTeamSelection)
	}
}

func TestScheduledSnapshotDrivesPhase(t *testing.T) {
	h := newHarness(t, nil)
	snap := playing(domain.ServerPhaseTeamSelection, 2)
	h.server.state = &snap

	h.c.HandleEvent(domain.GameStarted{})
	if got := h.loop.fire(); got != 1 {
		t.Fatalf("fired %d timers, want 1", got)
	}
	h.loop.settle(t, 1) // snapshot
	h.loop.settle(t, 1) // available players

	if got := h.c.Phase(); got != domain.PhaseTeamSelection {
		t.Errorf("phase = %s, want %s", got, domain.PhaseTeamSelection)
	}
}

func TestMissingGameIsNotAnError(t *testing.T) {
	h := newHarness(t, nil)
	h.c.RefreshSnapshot()
	h.loop.settle(t, 1)

	if len(h.renderer.alerts) != 0 {
		t.Errorf("alerts = %v, want none", h.renderer.alerts)
	}
	if h.c.Phase() != domain.PhaseSetup {
		t.Errorf("phase = %s, want %s", h.c.Phase(), domain.PhaseSetup)
	}
}

func TestMissionCompletedStartsNextSelection(t *testing.T) {
	h := newHarness(t, nil)
	h.enterMissionVoting(t)

	success := true
	h.c.HandleEvent(domain.MissionVoteRecorded{Status: domain.MissionCompleted, MissionResult: &success, GoodWins: 1})
	h.loop.settle(t, 1)

	if got := h.c.Phase(); got != domain.PhaseTeamSelection {
		t.Errorf("phase = %s, want %s", got, domain.PhaseTeamSelection)
	}
	if got := h.loop.pending(); got != 1 {
		t.Errorf("pending snapshot fetches = %d, want 1", got)
	}
}

func TestSnapshotRacingPhaseChangeIsFetchedAgain(t *testing.T) {
	h := newHarness(t, nil)
	h.enterMissionVoting(t)

	success := true
	h.c.HandleEvent(domain.MissionVoteRecorded{Status: domain.MissionCompleted, MissionResult: &success, GoodWins: 1})
	h.loop.settle(t, 1) // available players

	results := []domain.MissionResult{{Mission: 1, Success: true, SuccessCount: 2}}
	next := playing(domain.ServerPhaseTeamSelection, 3)
	next.CurrentMission = 2
	next.MissionResults = results
	h.server.state = &next

	if got := h.loop.fire(); got != 1 {
		t.Fatalf("fired %d timers, want 1", got)
	}
	// the leader proposes before the snapshot response is handled
	h.c.HandleEvent(domain.TeamSelected{Team: []string{"Alice", "Bob", "Carol"}})
	h.loop.settle(t, 1)

	if got := h.c.Snapshot().CurrentMission; got != 1 {
		t.Errorf("current mission = %d, want the snapshot from before the proposal dropped", got)
	}
	if got := h.loop.pending(); got != 1 {
		t.Fatalf("pending snapshot fetches = %d, want 1", got)
	}

	voting := playing(domain.ServerPhaseTeamVote, 3)
	voting.CurrentMission = 2
	voting.MissionResults = results
	voting.CurrentTeam = []string{"Alice", "Bob", "Carol"}
	h.server.state = &voting

	h.loop.fire()
	h.loop.settle(t, 1)

	snap := h.c.Snapshot()
	if snap.CurrentMission != 2 || !reflect.DeepEqual(snap.MissionResults, results) {
		t.Errorf("snapshot = mission %d results %+v, want mission 2 with %+v", snap.CurrentMission, snap.MissionResults, results)
	}
	if got := h.c.Phase(); got != domain.PhaseTeamVoting {
		t.Errorf("phase = %s, want %s", got, domain.PhaseTeamVoting)
	}
	if got := h.server.count("state"); got != 2 {
		t.Errorf("state fetched %d times, want 2", got)
	}
}

func TestSnapshotFromBeforeResetIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	snap := playing(domain.ServerPhaseMissionVote, 2)
	h.server.state = &snap

	h.c.RefreshSnapshot()
	h.c.HandleEvent(domain.GameReset{})
	h.loop.settle(t, 1)

	if h.c.Snapshot() != nil || h.c.Phase() != domain.PhaseSetup {
		t.Errorf("snapshot from before the reset was applied: phase %s", h.c.Phase())
	}
	if got := h.loop.pending(); got != 0 {
		t.Errorf("pending snapshot fetches = %d, want 0", got)
	}
}

func TestEvilWinEndsGame(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness, t *testing.T)
		event domain.Event
	}{
		{"team votes", (*harness).enterTeamVoting, domain.TeamVoteRecorded{Status: domain.TeamVoteEvilWin, Reason: "five rejected teams"}},
		{"missions", (*harness).enterMissionVoting, domain.MissionVoteRecorded{Status: domain.MissionVoteEvilWin, Reason: "three failed missions"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tt.setup(h, t)
			h.c.HandleEvent(tt.event)

			v := h.c.View()
			if v.Phase != domain.PhaseResult {
				t.Fatalf("phase = %s, want %s", v.Phase, domain.PhaseResult)
			}
			if v.Outcome == nil || v.Outcome.Winner != domain.SideEvil {
				t.Errorf("outcome = %+v, want evil win", v.Outcome)
			}
		})
	}
}

func TestResultIsTerminal(t *testing.T) {
	h := newHarness(t, nil)
	h.enterResult(t)

	h.c.HandleEvent(domain.TeamSelected{Team: []string{"Alice", "Bob"}})
	h.c.HandleEvent(domain.TeamVoteRecorded{Status: domain.TeamApproved})
	h.c.HandleEvent(domain.CurrentState{Snapshot: playing(domain.ServerPhaseTeamSelection, 2)})

	if got := h.c.Phase(); got != domain.PhaseResult {
		t.Errorf("phase = %s, want %s", got, domain.PhaseResult)
	}
	h.loop.idle(t)
}

func TestResetClearsEverything(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness, t *testing.T)
	}{
		{"mission voting", (*harness).enterMissionVoting},
		{"assassination", (*harness).enterAssassination},
		{"result", (*harness).enterResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, rosterOf(5))
			tt.setup(h, t)
			h.c.HandleEvent(domain.PlayerSpeaking{Speaker: "Dave", Message: "I trust Bob", IsAI: true})

			h.c.HandleEvent(domain.GameReset{})

			v := h.c.View()
			if v.Phase != domain.PhaseSetup {
				t.Errorf("phase = %s, want %s", v.Phase, domain.PhaseSetup)
			}
			if len(v.Selection) != 0 || v.RequiredSize != 0 {
				t.Errorf("selection = %v (need %d), want empty", v.Selection, v.RequiredSize)
			}
			if len(v.Chat) != 0 {
				t.Errorf("chat has %d entries, want none", len(v.Chat))
			}
			if v.Snapshot != nil || v.GameActive || v.Outcome != nil {
				t.Errorf("game state survived reset: %+v", v)
			}
			if len(v.Roster) != 5 {
				t.Errorf("roster = %v, want the five entries kept", v.Roster)
			}
			if h.speaker.stops != 1 {
				t.Errorf("speech stopped %d times, want 1", h.speaker.stops)
			}
			if got := h.loop.fire(); got != 0 {
				t.Errorf("%d scheduled fetches survived reset", got)
			}
		})
	}
}

func TestResetIntent(t *testing.T) {
	h := newHarness(t, rosterOf(5))
	h.enterMissionVoting(t)

	if err := h.c.Reset(); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	h.loop.settle(t, 1)

	v := h.c.View()
	if v.Phase != domain.PhaseSetup {
		t.Errorf("phase = %s, want %s", v.Phase, domain.PhaseSetup)
	}
	if len(v.Roster) != 0 {
		t.Errorf("roster = %v, want empty after an acknowledged reset", v.Roster)
	}
}

func TestResetEventKeepsRosterInProgress(t *testing.T) {
	h := newHarness(t, nil)
	for _, name := range []string{"Alice", "Bob"} {
		if _, err := h.c.AddPlayer(name, false, ""); err != nil {
			t.Fatalf("AddPlayer(%s) error: %v", name, err)
		}
	}

	h.c.HandleEvent(domain.GameReset{})

	if got := h.c.View().Roster; len(got) != 2 {
		t.Errorf("roster = %v, want Alice and Bob kept", got)
	}
	h.loop.idle(t)
}

func TestResetAckAfterResetEventIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.enterMissionVoting(t)

	if err := h.c.Reset(); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	h.c.HandleEvent(domain.GameReset{})
	if _, err := h.c.AddPlayer("Zed", false, ""); err != nil {
		t.Fatalf("AddPlayer() error: %v", err)
	}
	h.loop.settle(t, 1)

	if got := len(h.c.View().Roster); got != 1 {
		t.Errorf("roster has %d entries, want the one added after the reset event", got)
	}
}

func TestPlayerSpeaking(t *testing.T) {
	h := newHarness(t, nil)
	h.c.HandleEvent(domain.PlayerSpeaking{Speaker: "Dave", Message: "I think Bob is evil", IsAI: true})
	h.c.HandleEvent(domain.PlayerSpeaking{Speaker: "Alice", Message: "I am good", IsAI: false})

	want := []spoken{{text: "I think Bob is evil", speaker: "Dave"}}
	if !reflect.DeepEqual(h.speaker.enqueued, want) {
		t.Errorf("enqueued = %v, want %v", h.speaker.enqueued, want)
	}

	chat := h.c.View().Chat
	if len(chat) != 2 {
		t.Fatalf("chat has %d entries, want 2", len(chat))
	}
	if chat[0].Sender != "Dave" || !chat[0].IsAI || chat[1].Sender != "Alice" {
		t.Errorf("unexpected chat entries: %+v", chat)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.enterSelection(t, 2)
	before := h.c.View()
	renders := h.renderer.renders

	h.c.HandleEvent(domain.UnknownEvent{Kind: "night_falls"})

	if !reflect.DeepEqual(before, h.c.View()) {
		t.Error("unknown event changed the view")
	}
	if h.renderer.renders != renders {
		t.Error("unknown event triggered a render")
	}
	h.loop.idle(t)
}

func TestDuplicateVoteEventRerendersOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.enterTeamVoting(t)
	renders := h.renderer.renders

	ev := domain.TeamVoteRecorded{Status: domain.TeamVotePending, RemainingVotes: 3}
	h.c.HandleEvent(ev)
	h.c.HandleEvent(ev)

	if got := h.renderer.notices("Vote recorded"); got != 1 {
		t.Errorf("vote notices = %d, want 1", got)
	}
	if got := h.renderer.renders - renders; got != 2 {
		t.Errorf("renders = %d, want 2", got)
	}

	h.c.HandleEvent(domain.TeamVoteRecorded{Status: domain.TeamVotePending, RemainingVotes: 2})
	if got := h.renderer.notices("Vote recorded"); got != 2 {
		t.Errorf("vote notices = %d, want 2", got)
	}
}

func TestIntentGuards(t *testing.T) {
	h := newHarness(t, nil)
	h.enterTeamVoting(t)
	calls := h.server.total()

	if err := h.c.VoteTeam(domain.VoteApprove); !errors.Is(err, domain.ErrNoActingPlayer) {
		t.Errorf("VoteTeam() without acting player = %v, want ErrNoActingPlayer", err)
	}
	if err := h.c.SetActingPlayer("Mallory"); !errors.Is(err, domain.ErrUnknownPlayer) {
		t.Errorf("SetActingPlayer(Mallory) = %v, want ErrUnknownPlayer", err)
	}
	if err := h.c.SetActingPlayer("Alice"); err != nil {
		t.Fatalf("SetActingPlayer(Alice) error: %v", err)
	}
	if err := h.c.VoteTeam("maybe"); !errors.Is(err, domain.ErrInvalidVote) {
		t.Errorf("VoteTeam(maybe) = %v, want ErrInvalidVote", err)
	}
	if err := h.c.VoteMission(domain.VoteSuccess); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Errorf("VoteMission() during team vote = %v, want ErrInvalidPhase", err)
	}
	if err := h.c.Assassinate(); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Errorf("Assassinate() during team vote = %v, want ErrInvalidPhase", err)
	}
	if err := h.c.ProposeTeam(); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Errorf("ProposeTeam() during team vote = %v, want ErrInvalidPhase", err)
	}

	h.loop.idle(t)
	if got := h.server.total(); got != calls {
		t.Errorf("server called %d times by rejected intents", got-calls)
	}

	if err := h.c.VoteTeam(domain.VoteApprove); err != nil {
		t.Fatalf("VoteTeam() error: %v", err)
	}
	h.loop.settle(t, 1)
	if want := []string{"Alice:approve"}; !reflect.DeepEqual(h.server.votes, want) {
		t.Errorf("votes = %v, want %v", h.server.votes, want)
	}
}

func TestTransportErrorKeepsSelection(t *testing.T) {
	h := newHarness(t, nil)
	h.enterSelection(t, 2)
	h.toggle(t, "Alice", "Bob")
	h.server.fail(errors.New("connection refused"))

	if err := h.c.ProposeTeam(); err != nil {
		t.Fatalf("ProposeTeam() error: %v", err)
	}
	h.loop.settle(t, 1)

	if len(h.renderer.alerts) != 1 {
		t.Errorf("alerts = %v, want exactly one", h.renderer.alerts)
	}
	if got := h.c.Selection().Members(); !reflect.DeepEqual(got, []string{"Alice", "Bob"}) {
		t.Errorf("selection = %v, want it retained for retry", got)
	}
	if got := h.c.Phase(); got != domain.PhaseTeamSelection {
		t.Errorf("phase = %s, want %s", got, domain.PhaseTeamSelection)
	}
}

func TestStaleResponseDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.enterTeamVoting(t)
	if err := h.c.SetActingPlayer("Alice"); err != nil {
		t.Fatalf("SetActingPlayer() error: %v", err)
	}
	h.server.fail(errors.New("timeout"))

	if err := h.c.VoteTeam(domain.VoteApprove); err != nil {
		t.Fatalf("VoteTeam() error: %v", err)
	}
	h.c.HandleEvent(domain.TeamVoteRecorded{Status: domain.TeamApproved})
	h.loop.settle(t, 1)

	if len(h.renderer.alerts) != 0 {
		t.Errorf("stale failure surfaced: %v", h.renderer.alerts)
	}
	if got := h.c.Phase(); got != domain.PhaseMissionVoting {
		t.Errorf("phase = %s, want %s", got, domain.PhaseMissionVoting)
	}
}

func TestAssassinationTargets(t *testing.T) {
	h := newHarness(t, nil)
	snap := playing(domain.ServerPhaseAssassination, 2)
	roles := []domain.Role{domain.RoleMerlin, domain.RoleLoyalServant, domain.RoleAssassin, domain.RoleMorgana, domain.RolePercival}
	for i := range snap.Players {
		snap.Players[i].Role = roles[i]
	}
	h.c.HandleEvent(domain.CurrentState{Snapshot: snap})

	if want := []string{"Alice", "Bob", "Eve"}; !reflect.DeepEqual(h.c.View().Options, want) {
		t.Fatalf("options = %v, want %v", h.c.View().Options, want)
	}
	if err := h.c.Assassinate(); !errors.Is(err, domain.ErrNoTarget) {
		t.Errorf("Assassinate() with no target = %v, want ErrNoTarget", err)
	}
	if _, err := h.c.ToggleSelection("Carol"); !errors.Is(err, domain.ErrUnknownPlayer) {
		t.Errorf("ToggleSelection(Carol) = %v, want ErrUnknownPlayer", err)
	}

	h.toggle(t, "Alice", "Bob")
	if got := h.c.Selection().Members(); !reflect.DeepEqual(got, []string{"Bob"}) {
		t.Errorf("selection = %v, want [Bob]", got)
	}
	if !h.c.View().CanConfirm {
		t.Error("confirm should be enabled with one target")
	}

	if err := h.c.Assassinate(); err != nil {
		t.Fatalf("Assassinate() error: %v", err)
	}
	h.loop.settle(t, 1)
	if h.server.target != "Bob" {
		t.Errorf("target = %q, want Bob", h.server.target)
	}
}

func TestRosterEditing(t *testing.T) {
	h := newHarness(t, nil)

	if _, err := h.c.AddPlayer("  ", false, ""); !errors.Is(err, domain.ErrEmptyName) {
		t.Errorf("AddPlayer(blank) = %v, want ErrEmptyName", err)
	}
	if _, err := h.c.AddPlayer("Alice", false, ""); err != nil {
		t.Fatalf("AddPlayer() error: %v", err)
	}
	if _, err := h.c.AddPlayer("Alice", true, ""); !errors.Is(err, domain.ErrDuplicateName) {
		t.Errorf("AddPlayer(duplicate) = %v, want ErrDuplicateName", err)
	}
	entry, err := h.c.AddPlayer("Dave", true, "")
	if err != nil {
		t.Fatalf("AddPlayer() error: %v", err)
	}
	if entry.AIEngine != domain.DefaultEngine {
		t.Errorf("engine = %q, want %q", entry.AIEngine, domain.DefaultEngine)
	}
	if _, err := h.c.RemovePlayer(0); err != nil {
		t.Fatalf("RemovePlayer() error: %v", err)
	}

	roster := h.c.View().Roster
	if len(roster) != 1 || roster[0].Name != "Dave" {
		t.Errorf("roster = %v, want [Dave]", roster)
	}
}

func TestSendChat(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.c.SendChat("hello"); !errors.Is(err, domain.ErrNoActingPlayer) {
		t.Errorf("SendChat() without acting player = %v, want ErrNoActingPlayer", err)
	}
	if err := h.c.SetActingPlayer("Alice"); err != nil {
		t.Fatalf("SetActingPlayer() error: %v", err)
	}
	if err := h.c.SendChat("   "); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Errorf("SendChat(blank) = %v, want ErrEmptyMessage", err)
	}
	if err := h.c.SendChat("Bob is lying"); err != nil {
		t.Fatalf("SendChat() error: %v", err)
	}

	chat := h.c.View().Chat
	last := chat[len(chat)-1]
	if last.Sender != "Alice" || last.Channel != domain.ChannelPlayer || last.Message != "Bob is lying" {
		t.Errorf("last chat entry = %+v", last)
	}
}
