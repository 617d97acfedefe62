// Command editor_smoke drives one full edit cycle against a running API:
// open a session, select a slot, assign the top candidate, list the pending
// changes and commit. It exits non-zero on the first unexpected response,
// which makes it usable as a post-deploy check.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type openSession struct {
	SessionID string `json:"session_id"`
	Slots     []struct {
		Slot struct {
			Date       string `json:"date"`
			ShiftID    string `json:"shift_id"`
			PositionID string `json:"position_id"`
		} `json:"slot"`
		Required  int               `json:"required_employees"`
		Occupants []json.RawMessage `json:"occupants"`
	} `json:"slots"`
}

type candidateSet struct {
	Candidates []struct {
		Employee struct {
			ID string `json:"id"`
		} `json:"employee"`
		Tier string `json:"tier"`
	} `json:"candidates"`
	Superseded bool `json:"superseded"`
}

type commandResult struct {
	Applied          bool `json:"applied"`
	RequiresOverride bool `json:"requires_override"`
}

type commitReport struct {
	Committed       bool `json:"committed"`
	ScheduleVersion int  `json:"schedule_version"`
	Invalidated     []struct {
		Reason string `json:"reason"`
	} `json:"invalidated"`
}

type smokeClient struct {
	base  string
	token string
	http  *http.Client
}

func main() {
	var (
		base       string
		token      string
		scheduleID string
		timeout    time.Duration
		commit     bool
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL including prefix")
	flag.StringVar(&token, "token", os.Getenv("SHIFTWISE_TOKEN"), "Bearer token with editor role")
	flag.StringVar(&scheduleID, "schedule", "", "Schedule ID to edit")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.BoolVar(&commit, "commit", false, "Commit the trial assignment instead of closing the session")
	flag.Parse()

	if scheduleID == "" {
		log.Fatal("missing required -schedule flag")
	}

	client := &smokeClient{base: base, token: token, http: &http.Client{Timeout: timeout}}

	var session openSession
	if err := client.call(http.MethodPost, fmt.Sprintf("/schedules/%s/sessions", scheduleID), nil, &session); err != nil {
		log.Fatalf("open session: %v", err)
	}
	log.Printf("session %s opened with %d slots", session.SessionID, len(session.Slots))

	slot, found := firstOpenSlot(session)
	if !found {
		log.Println("no understaffed slot to exercise, closing session")
		client.close(session.SessionID)
		return
	}

	var candidates candidateSet
	if err := client.call(http.MethodPost, fmt.Sprintf("/sessions/%s/selection", session.SessionID), slot, &candidates); err != nil {
		log.Fatalf("select slot: %v", err)
	}
	if candidates.Superseded || len(candidates.Candidates) == 0 {
		log.Fatalf("no candidates returned for slot %v", slot)
	}
	top := candidates.Candidates[0]
	log.Printf("top candidate %s (tier %s)", top.Employee.ID, top.Tier)

	var result commandResult
	command := map[string]interface{}{
		"type":        "ASSIGN",
		"target_slot": slot,
		"employee_id": top.Employee.ID,
	}
	if err := client.call(http.MethodPost, fmt.Sprintf("/sessions/%s/commands", session.SessionID), command, &result); err != nil {
		log.Fatalf("assign command: %v", err)
	}
	if !result.Applied {
		log.Fatalf("assignment not applied (requires_override=%v)", result.RequiresOverride)
	}

	if !commit {
		client.close(session.SessionID)
		log.Println("smoke cycle passed, session closed without committing")
		return
	}

	var report commitReport
	if err := client.call(http.MethodPost, fmt.Sprintf("/sessions/%s/commit", session.SessionID), nil, &report); err != nil {
		log.Fatalf("commit: %v", err)
	}
	if !report.Committed {
		for _, inv := range report.Invalidated {
			log.Printf("invalidated: %s", inv.Reason)
		}
		log.Fatal("commit hit a version conflict")
	}
	log.Printf("committed at schedule version %d", report.ScheduleVersion)
}

// firstOpenSlot returns the first slot with headroom left.
func firstOpenSlot(session openSession) (map[string]string, bool) {
	for _, entry := range session.Slots {
		if len(entry.Occupants) < entry.Required {
			return map[string]string{
				"date":        entry.Slot.Date,
				"shift_id":    entry.Slot.ShiftID,
				"position_id": entry.Slot.PositionID,
			}, true
		}
	}
	return nil, false
}

func (c *smokeClient) call(method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope (status %d): %w", resp.StatusCode, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%s: %s (status %d)", env.Error.Code, env.Error.Message, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}

func (c *smokeClient) close(sessionID string) {
	if err := c.call(http.MethodDelete, fmt.Sprintf("/sessions/%s", sessionID), nil, nil); err != nil {
		log.Printf("close session: %v", err)
	}
}
