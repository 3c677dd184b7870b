package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pollengine "pollcast/contexts/live-polls/poll-engine"
	pollshttp "pollcast/contexts/live-polls/poll-engine/transport/http"
	"pollcast/internal/platform/eventlog"
)

type fixture struct {
	server *Server
	module pollengine.Module
}

func newFixture(t *testing.T, ctx context.Context) fixture {
	t.Helper()
	log := eventlog.NewMemoryLog(nil)
	module := pollengine.NewInMemoryModule(log, log, nil)
	if err := module.Ingestion.Start(ctx); err != nil {
		t.Fatalf("expected ingestion start to succeed, got %v", err)
	}
	return fixture{
		server: New(module, nil, ":0"),
		module: module,
	}
}

func (f fixture) do(method string, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	recorder := httptest.NewRecorder()
	f.server.mux.ServeHTTP(recorder, req)
	return recorder
}

func (f fixture) waitForPoll(t *testing.T) (pollID string, optionID string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		polls, err := f.module.Results.OpenPolls(context.Background())
		if err == nil && len(polls) == 1 {
			return polls[0].Poll.PollID, polls[0].Options[0].OptionID
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("poll not materialized before deadline")
	return "", ""
}

func TestCreatePollAcceptedAsynchronously(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, ctx)

	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	recorder := f.do(http.MethodPost, "/v1/polls",
		`{"question":"Best language?","options":["Go","Rust"],"expired_at":"`+expiry+`"}`)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp pollshttp.CreatePollResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected decodable response, got %v", err)
	}
	if !resp.Accepted {
		t.Fatal("expected accepted response")
	}

	pollID, _ := f.waitForPoll(t)
	results := f.do(http.MethodGet, "/v1/polls/"+pollID+"/results", "")
	if results.Code != http.StatusOK {
		t.Fatalf("expected 200 for results, got %d", results.Code)
	}
}

func TestCreatePollRejectsBadPayloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, ctx)

	cases := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{not json`, "invalid_json"},
		{"bad expiry", `{"question":"q","options":["a","b"],"expired_at":"yesterday"}`, "expiry_not_future"},
		{"blank question", `{"question":" ","options":["a","b"],"expired_at":"2999-01-01T00:00:00Z"}`, "question_required"},
		{"one option", `{"question":"q","options":["a"],"expired_at":"2999-01-01T00:00:00Z"}`, "not_enough_options"},
	}
	for _, tc := range cases {
		recorder := f.do(http.MethodPost, "/v1/polls", tc.body)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, recorder.Code)
		}
		var resp pollshttp.ErrorResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: expected decodable error, got %v", tc.name, err)
		}
		if resp.Code != tc.code {
			t.Fatalf("%s: expected code %q, got %q", tc.name, tc.code, resp.Code)
		}
	}
}

func TestCastVoteAcceptedAndCounted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, ctx)

	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	f.do(http.MethodPost, "/v1/polls",
		`{"question":"Best language?","options":["Go","Rust"],"expired_at":"`+expiry+`"}`)
	pollID, optionID := f.waitForPoll(t)

	recorder := f.do(http.MethodPost, "/v1/polls/"+pollID+"/votes",
		`{"option_id":"`+optionID+`","user_id":"alice"}`)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && f.module.Store.VoteCount(pollID) != 1 {
		time.Sleep(5 * time.Millisecond)
	}
	if f.module.Store.VoteCount(pollID) != 1 {
		t.Fatalf("expected one counted vote, got %d", f.module.Store.VoteCount(pollID))
	}
}

func TestCastVoteRejectsMissingFields(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, ctx)

	recorder := f.do(http.MethodPost, "/v1/polls/poll-1/votes", `{"option_id":"","user_id":"alice"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	var resp pollshttp.ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected decodable error, got %v", err)
	}
	if resp.Code != "invalid_vote_input" {
		t.Fatalf("expected invalid_vote_input, got %q", resp.Code)
	}
}

func TestPollResultsNotFound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, ctx)

	recorder := f.do(http.MethodGet, "/v1/polls/missing/results", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestLeaderboardRanksEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, ctx)

	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	f.do(http.MethodPost, "/v1/polls",
		`{"question":"Best language?","options":["Go","Rust"],"expired_at":"`+expiry+`"}`)
	pollID, optionID := f.waitForPoll(t)
	f.do(http.MethodPost, "/v1/polls/"+pollID+"/votes", `{"option_id":"`+optionID+`","user_id":"alice"}`)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && f.module.Store.VoteCount(pollID) != 1 {
		time.Sleep(5 * time.Millisecond)
	}

	recorder := f.do(http.MethodGet, "/v1/leaderboard", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var resp pollshttp.LeaderboardResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected decodable response, got %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected both options ranked, got %d", len(resp.Items))
	}
	if resp.Items[0].Rank != 1 || resp.Items[0].OptionID != optionID || resp.Items[0].VoteCount != 1 {
		t.Fatalf("expected voted option at rank 1, got %+v", resp.Items[0])
	}
}

func TestDeletePollRemovesIt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, ctx)

	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	f.do(http.MethodPost, "/v1/polls",
		`{"question":"Best language?","options":["Go","Rust"],"expired_at":"`+expiry+`"}`)
	pollID, _ := f.waitForPoll(t)

	recorder := f.do(http.MethodDelete, "/v1/admin/polls/"+pollID, "")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	results := f.do(http.MethodGet, "/v1/polls/"+pollID+"/results", "")
	if results.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", results.Code)
	}
}
