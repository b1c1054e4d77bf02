// Command tutor-agent is the external conversational-agent subprocess that
// internal/tutor.TutorAgent spawns and owns for the lifetime of one
// practice session. It speaks a line-delimited JSON protocol over its own
// stdin/stdout (see internal/tutor/protocol.go for the wire shapes) and
// never exposes its reasoning to the parent process directly — only the
// text it decides to say.
//
// Message construction and the Stream/Recv consumption loop are grounded
// on go-opencode's internal/provider (anthropic.go's NewAnthropicProvider,
// provider.go's CompletionStream). Unlike that teacher, this binary never
// runs an agentic tool-calling loop: the agent's internal reasoning is out
// of scope for the core, and this subprocess exists only to turn one
// context block plus one user turn into one streamed reply.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	msgContext = "context"
	msgChat    = "chat"
	msgResume  = "resume"
	msgClose   = "close"

	msgFragment = "fragment"
	msgDone     = "done"
	msgError    = "error"

	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024
)

type envelope struct {
	Type   string          `json:"type"`
	TurnID string          `json:"turn_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type contextPayload struct {
	ProblemTitle    string `json:"problem_title"`
	Mode            string `json:"mode"`
	HintLevelName   string `json:"hint_level_name"`
	HintsGiven      int    `json:"hints_given"`
	TimeRemainingS  *int   `json:"time_remaining_s,omitempty"`
	InterviewPhase  string `json:"interview_phase,omitempty"`
	LastTestSummary string `json:"last_test_summary,omitempty"`
	CodeExcerpt     string `json:"code_excerpt,omitempty"`
}

type chatPayload struct {
	Context     contextPayload `json:"context"`
	UserContent string         `json:"user_content"`
}

type resumePayload struct {
	History []historyMessage `json:"history"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type fragmentPayload struct {
	Text string `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tutor-agent:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	chatModel, err := newChatModel(ctx)
	if err != nil {
		return err
	}

	a := &agentState{
		chatModel: chatModel,
		out:       bufio.NewWriter(os.Stdout),
		ctx:       contextPayload{Mode: "learning"},
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			continue
		}
		switch env.Type {
		case msgContext:
			var cp contextPayload
			if err := json.Unmarshal(env.Data, &cp); err == nil {
				a.ctx = cp
			}
		case msgChat:
			var cp chatPayload
			if err := json.Unmarshal(env.Data, &cp); err != nil {
				a.writeError(env.TurnID, err)
				continue
			}
			a.ctx = cp.Context
			a.handleTurn(ctx, env.TurnID, cp.UserContent)
		case msgResume:
			var rp resumePayload
			if err := json.Unmarshal(env.Data, &rp); err == nil {
				a.history = rp.History
			}
		case msgClose:
			return nil
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func newChatModel(ctx context.Context) (model.ToolCallingChatModel, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}
	model := os.Getenv("LEETTUTOR_AGENT_MODEL")
	if model == "" {
		model = defaultModel
	}
	return claude.NewChatModel(ctx, &claude.Config{
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: defaultMaxTokens,
	})
}

// agentState holds the running conversation for the one session this
// subprocess was spawned for. There is no persistence here: on restart
// (internal/tutor.TutorAgent.Resume) the parent replays history via a
// resume envelope.
type agentState struct {
	chatModel model.ToolCallingChatModel
	out       *bufio.Writer
	ctx       contextPayload
	history   []historyMessage
}

func (a *agentState) handleTurn(ctx context.Context, turnID, userContent string) {
	messages := a.buildMessages(userContent)

	stream, err := a.chatModel.Stream(ctx, messages)
	if err != nil {
		a.writeError(turnID, err)
		return
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			a.writeError(turnID, err)
			return
		}
		if chunk.Content == "" {
			continue
		}
		reply.WriteString(chunk.Content)
		a.writeEnvelope(msgFragment, turnID, fragmentPayload{Text: chunk.Content})
	}

	a.history = append(a.history,
		historyMessage{Role: "user", Content: userContent},
		historyMessage{Role: "assistant", Content: reply.String()},
	)
	a.writeEnvelope(msgDone, turnID, struct{}{})
}

// buildMessages assembles the system prompt (mode template + problem
// metadata + hint/interview state) and prior history into Eino messages,
// translating the compact protocol markers internal/tutor sends for hint
// requests into the actual instruction the model acts on — this binary
// owns the content those markers expand into, not the parent.
func (a *agentState) buildMessages(userContent string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(a.history)+2)
	msgs = append(msgs, &schema.Message{Role: schema.System, Content: a.systemPrompt()})

	for _, h := range a.history {
		role := schema.Assistant
		if h.Role == "user" {
			role = schema.User
		}
		msgs = append(msgs, &schema.Message{Role: role, Content: h.Content})
	}

	msgs = append(msgs, &schema.Message{Role: schema.User, Content: a.expandUserTurn(userContent)})
	return msgs
}

func (a *agentState) systemPrompt() string {
	var b strings.Builder
	b.WriteString(modeInstructions(a.ctx.Mode))
	fmt.Fprintf(&b, "\n\nProblem: %s\n", a.ctx.ProblemTitle)
	fmt.Fprintf(&b, "Hints given so far: %d (current level: %s)\n", a.ctx.HintsGiven, a.ctx.HintLevelName)
	if a.ctx.InterviewPhase != "" {
		fmt.Fprintf(&b, "Interview phase: %s\n", a.ctx.InterviewPhase)
	}
	if a.ctx.TimeRemainingS != nil {
		fmt.Fprintf(&b, "Time remaining: %ds\n", *a.ctx.TimeRemainingS)
	}
	if a.ctx.LastTestSummary != "" {
		fmt.Fprintf(&b, "Last test run: %s\n", a.ctx.LastTestSummary)
	}
	b.WriteString("Never reveal a full working solution unless the hint level is bottom-out " +
		"and the student has engaged with the self-explanation question first. " +
		"Read ./solution.py and ./test_results.json on disk for the student's current code and last run.")
	return b.String()
}

func modeInstructions(mode string) string {
	switch mode {
	case "interview":
		return "You are a technical interviewer. Ask clarifying questions, stay neutral, " +
			"and do not volunteer hints unless the candidate explicitly asks or is clearly stuck."
	case "pattern-quiz":
		return "You are quizzing the student on which algorithmic pattern applies to this problem. " +
			"Probe their reasoning before confirming or correcting it."
	default:
		return "You are a patient coding tutor using the Socratic method: ask guiding questions " +
			"before giving direct answers, and escalate hint specificity only as directed below."
	}
}

// expandUserTurn turns a __hint_gate__/__hint_abuse__/__hint_request__
// marker into the actual instruction this turn should carry; any other
// content passes through unchanged as the student's own message.
func (a *agentState) expandUserTurn(userContent string) string {
	switch {
	case userContent == "__hint_gate__":
		return "The student is asking for a hint that would give away the full approach. " +
			"Before giving it, ask them to briefly explain what they've tried and where they're stuck."
	case strings.HasPrefix(userContent, "__hint_abuse__:"):
		prefix := strings.TrimPrefix(userContent, "__hint_abuse__:")
		return "The student is requesting hints faster than they are acting on them. " +
			"Gently redirect: " + prefix + ". Do not advance the hint level this turn."
	case strings.HasPrefix(userContent, "__hint_request__:level="):
		level := strings.TrimPrefix(userContent, "__hint_request__:level=")
		return fmt.Sprintf("Give a level-%s hint: higher levels are more specific "+
			"(1=gentle nudge, 2=point at the relevant technique, 3=outline the approach, "+
			"4=walk through the solution). Give only that level of detail, nothing more.", level)
	default:
		return userContent
	}
}

func (a *agentState) writeEnvelope(msgType, turnID string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	line, err := json.Marshal(envelope{Type: msgType, TurnID: turnID, Data: raw})
	if err != nil {
		return
	}
	a.out.Write(line)
	a.out.WriteByte('\n')
	a.out.Flush()
}

func (a *agentState) writeError(turnID string, err error) {
	a.writeEnvelope(msgError, turnID, errorPayload{Message: err.Error()})
}
