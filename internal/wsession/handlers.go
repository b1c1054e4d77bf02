package wsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codecoach/leettutor/internal/event"
	"github.com/codecoach/leettutor/internal/hint"
	"github.com/codecoach/leettutor/internal/nudge"
	"github.com/codecoach/leettutor/internal/tutor"
	"github.com/codecoach/leettutor/pkg/types"
)

func (s *Session) handleStartSession(ctx context.Context, raw []byte) {
	var payload types.StartSessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.sendError("", CodeInvalidMessage, "malformed start_session")
		return
	}

	problem, err := s.deps.Catalog.Get(payload.ProblemID)
	if err != nil {
		s.sendError("", CodeCatalogError, "unknown problem: "+payload.ProblemID)
		return
	}

	sessionID, err := s.deps.Logs.Start(ctx, payload.ProblemID, payload.Mode)
	if err != nil {
		s.sendError("", CodeSandboxFailure, "failed to create session")
		return
	}

	agent := tutor.New(tutor.Config{
		BinaryPath:   s.deps.TutorAgentBinary,
		SessionID:    sessionID,
		ProblemID:    payload.ProblemID,
		ProblemTitle: problem.Title,
		Mode:         payload.Mode,
		WorkspaceDir: s.workspaceDir(sessionID),
	})
	if err := agent.Open(ctx); err != nil {
		s.sendError("", CodeAgentUnavailable, "tutor agent unavailable")
		return
	}

	s.mu.Lock()
	s.sessionID = sessionID
	s.problem = problem
	s.agent = agent
	s.detector = nudge.New(payload.Mode, s.deps.IdleNudgeThreshold, time.Now())
	s.startedAt = time.Now()
	s.mu.Unlock()

	if payload.Mode == types.ModeInterview {
		s.startInterviewBackstop(sessionID)
	}

	event.Publish(event.Event{Type: event.SessionStarted, Data: event.SessionStartedData{
		SessionID: sessionID, ProblemID: payload.ProblemID,
	}})

	_ = s.conn.WriteJSON(types.SessionStartedFrame{
		Type: types.ServerSessionStarted, SessionID: sessionID, ProblemID: payload.ProblemID, Mode: payload.Mode,
	})

	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	turn := types.ChatTurn{TurnID: turnID(), UserContent: "__session_start__", CodeSnapshot: problem.StarterCode}
	frag, err := agent.Chat(ctx, turn)
	if err != nil {
		s.sendError(turn.TurnID, errorCodeFor(err), "failed to start tutor turn")
		return
	}
	content, err := s.streamTurn(frag)
	if err != nil {
		s.sendError(turn.TurnID, errorCodeFor(err), "tutor turn failed")
		return
	}
	_ = s.conn.WriteJSON(types.AssistantMessageFrame{Type: types.ServerAssistantMessage, Content: content})
	_ = s.deps.Logs.LogMessage(ctx, sessionID, "assistant", content)
}

func (s *Session) handleMessage(ctx context.Context, raw []byte) {
	var payload types.MessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.sendError("", CodeInvalidMessage, "malformed message")
		return
	}

	sessionID, agent, detector, ok := s.active()
	if !ok {
		s.sendError("", CodeSessionNotFound, "no active session")
		return
	}

	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	_ = s.deps.Logs.LogMessage(ctx, sessionID, "user", payload.Content)
	detector.RecordUserMessage()
	if payload.Code != "" {
		agent.MutateHintState(func(h *types.HintState) { h.EditsSinceLastHint++ })
	}

	pending := agent.HintState().SelfExplanationPending
	var frag <-chan tutor.Fragment
	var err error
	tID := turnID()

	if pending {
		var decision hint.Decision
		agent.MutateHintState(func(h *types.HintState) { decision = hint.ConsumeGateResponse(h) })
		frag, err = agent.RequestHint(ctx, payload.Code, decision)
		if err == nil && decision.Escalated {
			_ = s.deps.Logs.LogHintRequested(ctx, sessionID)
		}
	} else {
		turn := types.ChatTurn{TurnID: tID, UserContent: payload.Content, CodeSnapshot: payload.Code}
		frag, err = agent.Chat(ctx, turn)
	}

	if err != nil {
		code := CodeAgentUnavailable
		if errors.Is(err, tutor.ErrInputTooLarge) {
			code = CodeInputTooLarge
		}
		s.sendError(tID, code, "failed to process message")
		return
	}

	content, err := s.streamTurn(frag)
	if err != nil {
		s.sendError(tID, errorCodeFor(err), "tutor turn failed")
		return
	}

	_ = s.conn.WriteJSON(types.AssistantMessageFrame{Type: types.ServerAssistantMessage, Content: content})
	_ = s.deps.Logs.LogMessage(ctx, sessionID, "assistant", content)
	detector.RecordTutorMessage(time.Now(), content)
}

func (s *Session) handleRequestHint(ctx context.Context, raw []byte) {
	var payload types.RequestHintPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.sendError("", CodeInvalidMessage, "malformed request_hint")
		return
	}

	sessionID, agent, _, ok := s.active()
	if !ok {
		s.sendError("", CodeSessionNotFound, "no active session")
		return
	}

	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	elapsed := s.elapsedOnProblem()
	alreadyPending := agent.HintState().SelfExplanationPending

	var decision hint.Decision
	agent.MutateHintState(func(h *types.HintState) {
		decision = hint.RequestHint(h, time.Now(), elapsed, alreadyPending)
	})

	tID := turnID()
	frag, err := agent.RequestHint(ctx, payload.Code, decision)
	if err != nil {
		s.sendError(tID, errorCodeFor(err), "failed to process hint request")
		return
	}
	content, err := s.streamTurn(frag)
	if err != nil {
		s.sendError(tID, errorCodeFor(err), "hint turn failed")
		return
	}

	_ = s.conn.WriteJSON(types.AssistantMessageFrame{Type: types.ServerAssistantMessage, Content: content})
	_ = s.deps.Logs.LogMessage(ctx, sessionID, "assistant", content)
	if decision.Escalated {
		_ = s.deps.Logs.LogHintRequested(ctx, sessionID)
		event.Publish(event.Event{Type: event.HintGiven, Data: event.HintGivenData{
			SessionID: sessionID, Level: int(decision.Level),
		}})
	}
}

func (s *Session) handleResumeSession(ctx context.Context, raw []byte) {
	var payload types.ResumeSessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.sendError("", CodeInvalidMessage, "malformed resume_session")
		return
	}

	doc, err := s.deps.Logs.Get(ctx, payload.SessionID)
	if err != nil {
		s.sendError("", CodeSessionNotFound, "unknown session: "+payload.SessionID)
		return
	}
	problem, err := s.deps.Catalog.Get(doc.ProblemID)
	if err != nil {
		s.sendError("", CodeCatalogError, "unknown problem: "+doc.ProblemID)
		return
	}

	var agent *tutor.TutorAgent
	if reclaimed := s.deps.Registry.Reclaim(payload.SessionID); reclaimed != nil {
		if a, ok := reclaimed.(*tutor.TutorAgent); ok {
			agent = a
		}
	}
	reclaimedSeamlessly := agent != nil

	if agent == nil {
		agent = tutor.New(tutor.Config{
			BinaryPath:   s.deps.TutorAgentBinary,
			SessionID:    payload.SessionID,
			ProblemID:    doc.ProblemID,
			ProblemTitle: problem.Title,
			Mode:         doc.Mode,
			WorkspaceDir: s.workspaceDir(payload.SessionID),
		})
		if err := agent.Resume(ctx, doc.ChatHistory); err != nil {
			s.sendError("", CodeAgentUnavailable, "failed to recreate tutor agent")
			return
		}
	}

	s.mu.Lock()
	s.sessionID = payload.SessionID
	s.problem = problem
	s.agent = agent
	s.detector = nudge.New(doc.Mode, s.deps.IdleNudgeThreshold, time.Now())
	s.detector.SetParked(false)
	s.startedAt = time.Unix(doc.StartedAt, 0)
	if doc.InterviewPhase == types.PhaseReview {
		s.detector.SetReviewPhase(true)
	}
	s.mu.Unlock()

	if doc.Mode == types.ModeInterview && doc.InterviewPhase != types.PhaseReview {
		s.startInterviewBackstop(payload.SessionID)
	}

	if reclaimedSeamlessly {
		event.Publish(event.Event{Type: event.SessionReclaimed, Data: event.SessionReclaimedData{SessionID: payload.SessionID}})
	}

	var timeRemaining *int
	if doc.TimeRemainingS > 0 {
		tr := doc.TimeRemainingS
		timeRemaining = &tr
	}
	_ = s.conn.WriteJSON(types.SessionResumedFrame{
		Type:           types.ServerSessionResumed,
		SessionID:      payload.SessionID,
		Mode:           doc.Mode,
		ProblemID:      doc.ProblemID,
		ChatHistory:    doc.ChatHistory,
		TimeRemaining:  timeRemaining,
		InterviewPhase: doc.InterviewPhase,
		LastEditorCode: doc.LastEditorCode,
	})
}

func (s *Session) handleEndSession(ctx context.Context) {
	s.mu.Lock()
	sessionID := s.sessionID
	agent := s.agent
	s.sessionID = ""
	s.agent = nil
	s.problem = nil
	s.mu.Unlock()

	s.stopInterviewBackstop()

	if agent != nil {
		_ = agent.Close()
	}
	if sessionID != "" {
		_ = s.deps.Logs.End(ctx, sessionID, "", "")
		event.Publish(event.Event{Type: event.SessionEnded, Data: event.SessionEndedData{SessionID: sessionID}})
	}
}

func (s *Session) handleTimeUpdate(ctx context.Context, raw []byte) {
	var payload types.TimeUpdatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	sessionID, agent, detector, ok := s.active()
	if !ok {
		return
	}

	seconds := payload.TimeRemaining
	if seconds < 0 {
		seconds = 0
	}
	if seconds > timeUpdateBound {
		seconds = timeUpdateBound
	}

	agent.UpdateTimeRemaining(seconds)
	_ = s.deps.Logs.UpdateTimeRemaining(ctx, sessionID, seconds)

	now := time.Now()
	if detector.ShouldNudgeIdle(now) {
		detector.MarkIdleNudgeSent(now)
		s.emitIdleNudge(ctx, sessionID, agent)
	}
}

func (s *Session) handleTimeUp(ctx context.Context) {
	s.enterReviewPhase(ctx)
}

func (s *Session) enterReviewPhase(ctx context.Context) {
	sessionID, agent, detector, ok := s.active()
	if !ok {
		return
	}

	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if err := agent.EnterReviewPhase(ctx); err != nil {
		s.logErrorf(sessionID, "enter review phase: %v", err)
		return
	}
	if err := s.deps.Logs.UpdateInterviewPhase(ctx, sessionID, types.PhaseReview); err != nil {
		s.logErrorf(sessionID, "persist review phase: %v", err)
	}
	detector.SetReviewPhase(true)
	s.stopInterviewBackstop()
	_ = s.conn.WriteJSON(types.ReviewPhaseStartedFrame{Type: types.ServerReviewPhaseStarted})
}

func (s *Session) handleNudgeRequest(ctx context.Context, raw []byte) {
	var payload types.NudgeRequestPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	sessionID, agent, detector, ok := s.active()
	if !ok {
		return
	}

	now := time.Now()
	switch payload.Trigger {
	case "activity":
		detector.RecordActivity(now)
	case "solved":
		detector.SetSolved(true)
		agent.MutateHintState(func(h *types.HintState) { h.Reset() })
	case "error":
		msg, _ := payload.Context["message"].(string)
		detector.RecordError(now, msg)
		agent.MutateHintState(func(h *types.HintState) {
			h.ErrorsSinceLastHint++
			h.ErrorsWithoutHint++
		})
		s.maybeTriggerFlailing(ctx, sessionID, agent, detector)
	}
}

func (s *Session) handleTestResultsUpdate(ctx context.Context, raw []byte) {
	var payload types.TestResultsUpdatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	sessionID, agent, detector, ok := s.active()
	if !ok {
		return
	}

	summary := summarize(payload.TestResults)
	_ = s.deps.Logs.LogSubmission(ctx, sessionID, payload.Code, payload.IsSubmit, summary)
	agent.UpdateLastTestSummary(fmt.Sprintf("%d/%d passed", summary.Passed, summary.Passed+summary.Failed))

	now := time.Now()
	if summary.Failed == 0 {
		detector.SetSolved(true)
		agent.MutateHintState(func(h *types.HintState) { h.Reset() })
		return
	}

	var firstError string
	for _, r := range payload.TestResults {
		if !r.Passed {
			firstError = r.Error
			break
		}
	}
	detector.RecordError(now, firstError)
	offerAvoidance := false
	agent.MutateHintState(func(h *types.HintState) {
		h.ErrorsSinceLastHint++
		h.ErrorsWithoutHint++
		offerAvoidance = hint.ShouldOfferAvoidanceHelp(h)
	})
	if offerAvoidance {
		s.offerAvoidanceHelp(ctx, sessionID, agent)
	}

	s.maybeTriggerFlailing(ctx, sessionID, agent, detector)
}

// offerAvoidanceHelp streams a one-shot "want help instead of guessing?"
// turn when the student has racked up five failed submissions without
// taking a hint, then clears the counter so it fires only once per streak.
func (s *Session) offerAvoidanceHelp(ctx context.Context, sessionID string, agent *tutor.TutorAgent) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	agent.MutateHintState(func(h *types.HintState) { h.ErrorsWithoutHint = 0 })

	turn := types.ChatTurn{TurnID: turnID(), UserContent: "__avoidance_offer__"}
	frag, err := agent.Chat(ctx, turn)
	if err != nil {
		s.logErrorf(sessionID, "avoidance offer turn: %v", err)
		return
	}
	content, err := s.streamTurn(frag)
	if err != nil {
		s.logErrorf(sessionID, "avoidance offer stream: %v", err)
		return
	}
	_ = s.conn.WriteJSON(types.AssistantMessageFrame{Type: types.ServerAssistantMessage, Content: content, Nudge: true})
	_ = s.deps.Logs.LogMessage(ctx, sessionID, "assistant", content)
}

func (s *Session) handleSaveState(ctx context.Context, raw []byte) {
	var payload types.SaveStatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	sessionID, ok := s.sessionIDOnly()
	if !ok {
		return
	}
	_ = s.deps.Logs.UpdateEditorCode(ctx, sessionID, payload.Code)
}

// maybeTriggerFlailing consults NudgeDetector's flailing signal and, if it
// fires, escalates the hint ladder one level regardless of request
// history (spec.md §4.4/§4.5) instead of emitting a free-form message.
func (s *Session) maybeTriggerFlailing(ctx context.Context, sessionID string, agent *tutor.TutorAgent, detector *nudge.Detector) {
	now := time.Now()
	if !detector.ShouldTriggerFlailing(now) {
		return
	}
	detector.ConsumeFlailingTrigger()

	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	elapsed := s.elapsedOnProblem()
	var decision hint.Decision
	agent.MutateHintState(func(h *types.HintState) { decision = hint.FlailingSignal(h, elapsed) })

	frag, err := agent.RequestHint(ctx, "", decision)
	if err != nil {
		s.logErrorf(sessionID, "flailing hint turn: %v", err)
		return
	}
	content, err := s.streamTurn(frag)
	if err != nil {
		s.logErrorf(sessionID, "flailing hint stream: %v", err)
		return
	}
	_ = s.conn.WriteJSON(types.AssistantMessageFrame{Type: types.ServerAssistantMessage, Content: content, Nudge: true})
	_ = s.deps.Logs.LogMessage(ctx, sessionID, "assistant", content)
	if decision.Escalated {
		_ = s.deps.Logs.LogHintRequested(ctx, sessionID)
	}
	event.Publish(event.Event{Type: event.NudgeEmitted, Data: event.NudgeEmittedData{SessionID: sessionID, Kind: "flailing"}})
}

// emitIdleNudge streams an unsolicited idle-nudge turn; it takes streamMu
// itself since it's called from the non-streaming time_update handler.
func (s *Session) emitIdleNudge(ctx context.Context, sessionID string, agent *tutor.TutorAgent) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	turn := types.ChatTurn{TurnID: turnID(), UserContent: "__idle_nudge__"}
	frag, err := agent.Chat(ctx, turn)
	if err != nil {
		s.logErrorf(sessionID, "idle nudge turn: %v", err)
		return
	}
	content, err := s.streamTurn(frag)
	if err != nil {
		s.logErrorf(sessionID, "idle nudge stream: %v", err)
		return
	}
	_ = s.conn.WriteJSON(types.AssistantMessageFrame{Type: types.ServerAssistantMessage, Content: content, Nudge: true})
	_ = s.deps.Logs.LogMessage(ctx, sessionID, "assistant", content)
	event.Publish(event.Event{Type: event.NudgeEmitted, Data: event.NudgeEmittedData{SessionID: sessionID, Kind: "idle"}})
}

func summarize(results []types.TestResult) types.RunSummary {
	summary := types.RunSummary{Results: results}
	for _, r := range results {
		if r.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// active returns the session's current sessionID/agent/detector, or false
// if no session is active on this connection.
func (s *Session) active() (string, *tutor.TutorAgent, *nudge.Detector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agent == nil {
		return "", nil, nil, false
	}
	return s.sessionID, s.agent, s.detector, true
}

func (s *Session) sessionIDOnly() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.sessionID != ""
}

func (s *Session) elapsedOnProblem() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// handleDisconnect runs once, on Run's return, regardless of cause. It
// attempts to park the live agent (spec.md §4.7); on park failure it
// closes the agent and finalizes the log instead of leaving it orphaned.
func (s *Session) handleDisconnect(ctx context.Context) {
	s.mu.Lock()
	sessionID := s.sessionID
	problemID := ""
	if s.problem != nil {
		problemID = s.problem.ID
	}
	agent := s.agent
	detector := s.detector
	s.mu.Unlock()

	s.stopInterviewBackstop()

	if agent == nil {
		return
	}

	if s.deps.Registry.Park(sessionID, problemID, agent) {
		if detector != nil {
			detector.SetParked(true)
		}
		event.Publish(event.Event{Type: event.SessionParked, Data: event.SessionParkedData{SessionID: sessionID}})
		return
	}

	_ = agent.Close()
	_ = s.deps.Logs.End(ctx, sessionID, "", "disconnected, parking capacity exhausted")
}
