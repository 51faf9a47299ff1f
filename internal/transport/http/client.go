package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"avalon/internal/domain"
)

// ClientIDHeader identifies this client to the game server
const ClientIDHeader = "X-Client-ID"

// maxErrorBody bounds how much of a failed response is read for its detail
const maxErrorBody = 64 << 10

// RequestError is a non-success response from the game server
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is a 404 from the game server, which it
// answers when no game has been started
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound
}

// Client issues intents to the game server's HTTP API. It is safe for
// concurrent use.
type Client struct {
	baseURL  string
	clientID string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL, clientID string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		clientID: clientID,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type startRequest struct {
	Players []domain.RosterEntry `json:"players"`
}

type startResponse struct {
	Status         string            `json:"status"`
	SecretMessages map[string]string `json:"secret_messages"`
	CurrentLeader  string            `json:"current_leader"`
}

type selectTeamRequest struct {
	SelectedPlayers []string `json:"selected_players"`
}

type voteRequest struct {
	PlayerName string `json:"player_name"`
	Vote       string `json:"vote"`
}

type assassinateRequest struct {
	TargetName string `json:"target_name"`
}

type speechRequest struct {
	PlayerName string `json:"player_name"`
	Text       string `json:"text"`
}

type availablePlayersResponse struct {
	AvailablePlayers []string `json:"available_players"`
	MissionPlayers   []string `json:"mission_players"`
}

// StartGame registers the roster and starts a game
func (c *Client) StartGame(ctx context.Context, players []domain.RosterEntry) (map[string]string, error) {
	var resp startResponse
	if err := c.do(ctx, http.MethodPost, "/game/start", &startRequest{Players: players}, &resp); err != nil {
		return nil, err
	}
	return resp.SecretMessages, nil
}

// FetchState returns the full game state, or nil when no game is running
func (c *Client) FetchState(ctx context.Context) (*domain.GameSnapshot, error) {
	var snap domain.GameSnapshot
	if err := c.do(ctx, http.MethodGet, "/game/state", nil, &snap); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

// FetchMissionConfig returns the current mission's configuration, or nil
// when there is no game or no mission left to staff
func (c *Client) FetchMissionConfig(ctx context.Context) (*domain.MissionConfig, error) {
	var cfg domain.MissionConfig
	if err := c.do(ctx, http.MethodGet, "/game/mission-config", nil, &cfg); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if cfg.TeamSize == 0 {
		return nil, nil
	}
	return &cfg, nil
}

// FetchAvailablePlayers returns the players a leader may pick
func (c *Client) FetchAvailablePlayers(ctx context.Context) ([]string, error) {
	var resp availablePlayersResponse
	if err := c.do(ctx, http.MethodGet, "/game/available-players", nil, &resp); err != nil {
		return nil, err
	}
	return resp.AvailablePlayers, nil
}

// SelectTeam proposes the mission team
func (c *Client) SelectTeam(ctx context.Context, team []string) error {
	return c.do(ctx, http.MethodPost, "/game/select-team", &selectTeamRequest{SelectedPlayers: team}, nil)
}

// VoteTeam casts a team ballot
func (c *Client) VoteTeam(ctx context.Context, player string, vote domain.TeamVote) error {
	return c.do(ctx, http.MethodPost, "/game/vote-team", &voteRequest{PlayerName: player, Vote: string(vote)}, nil)
}

// VoteMission plays a mission card
func (c *Client) VoteMission(ctx context.Context, player string, vote domain.MissionVote) error {
	return c.do(ctx, http.MethodPost, "/game/vote-mission", &voteRequest{PlayerName: player, Vote: string(vote)}, nil)
}

// Assassinate names the assassin's target
func (c *Client) Assassinate(ctx context.Context, target string) error {
	return c.do(ctx, http.MethodPost, "/game/assassinate", &assassinateRequest{TargetName: target}, nil)
}

// Reset drops the server's game
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/game/reset", nil, nil)
}

// SpeechStarted tells the server a speaker's audio began
func (c *Client) SpeechStarted(ctx context.Context, speaker, text string) error {
	return c.do(ctx, http.MethodPost, "/game/voice-start", &speechRequest{PlayerName: speaker, Text: text}, nil)
}

// SpeechEnded tells the server a speaker's audio finished
func (c *Client) SpeechEnded(ctx context.Context, speaker, text string) error {
	return c.do(ctx, http.MethodPost, "/game/voice-complete", &speechRequest{PlayerName: speaker, Text: text}, nil)
}

// do sends one JSON request and decodes the JSON response into out.
// Non-2xx responses become a *RequestError carrying the server's detail.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.clientID != "" {
		req.Header.Set(ClientIDHeader, c.clientID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("game server request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// readDetail extracts the {"detail": "..."} message from an error body,
// falling back to the raw text
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(data, &payload) == nil && len(payload.Detail) > 0 {
		var text string
		if json.Unmarshal(payload.Detail, &text) == nil {
			return text
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(data))
}
