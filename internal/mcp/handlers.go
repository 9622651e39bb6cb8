package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/varloom/internal/config"
	"github.com/hpungsan/varloom/internal/errors"
	"github.com/hpungsan/varloom/internal/macro"
	"github.com/hpungsan/varloom/internal/store"
	"github.com/hpungsan/varloom/internal/suite"
	"github.com/hpungsan/varloom/internal/transcript"
	"github.com/hpungsan/varloom/internal/variable"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	st  *store.Store
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, cfg *config.Config) *Handlers {
	return &Handlers{st: st, cfg: cfg}
}

// Request types for each tool

// TranscriptMessage is one chat floor as passed over MCP.
type TranscriptMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// DefineRequest represents the arguments for variable_define.
type DefineRequest struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
	Mode string `json:"mode"`
}

// DeleteRequest represents the arguments for variable_delete.
type DeleteRequest struct {
	Variable string `json:"variable"`
}

// ValuesRequest represents the arguments for variable_values.
type ValuesRequest struct {
	Variable string `json:"variable"`
	ChatID   string `json:"chat_id"`
}

// HideRequest represents the arguments for variable_hide.
type HideRequest struct {
	Variable string `json:"variable"`
	ChatID   string `json:"chat_id"`
	EntryID  int64  `json:"entry_id"`
}

// SuitePutRequest represents the arguments for suite_put.
type SuitePutRequest struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	Trigger      string          `json:"trigger,omitempty"`
	Enabled      *bool           `json:"enabled,omitempty"`
	SnapshotMode bool            `json:"snapshot_mode,omitempty"`
	Items        []variable.Item `json:"items"`
}

// SuiteDeleteRequest represents the arguments for suite_delete.
type SuiteDeleteRequest struct {
	Suite string `json:"suite"`
}

// RenderRequest represents the arguments for suite_render.
type RenderRequest struct {
	Suite           string              `json:"suite"`
	ChatID          string              `json:"chat_id"`
	Transcript      []TranscriptMessage `json:"transcript,omitempty"`
	ActiveCharacter string              `json:"active_character,omitempty"`
}

// ApplyRequest represents the arguments for reply_apply.
type ApplyRequest struct {
	Suite      string `json:"suite"`
	ChatID     string `json:"chat_id"`
	Reply      string `json:"reply"`
	FloorRange string `json:"floor_range,omitempty"`
}

// ExpandRequest represents the arguments for macro_expand.
type ExpandRequest struct {
	Text       string              `json:"text"`
	ChatID     string              `json:"chat_id"`
	Transcript []TranscriptMessage `json:"transcript,omitempty"`
}

// InstructionsRequest represents the arguments for tag_instructions.
type InstructionsRequest struct {
	Suite string `json:"suite"`
}

// Shared lookups

// resolveDefinition accepts a definition id or a macro-reference name.
func (h *Handlers) resolveDefinition(ref string) (variable.Definition, error) {
	if def, ok := h.st.Definition(ref); ok {
		return def, nil
	}
	if def, ok := h.st.DefinitionByName(ref); ok {
		return def, nil
	}
	return variable.Definition{}, errors.NewNotFound("variable", ref)
}

// resolveSuite accepts a suite id or name.
func (h *Handlers) resolveSuite(ref string) (variable.Suite, error) {
	if st, ok := h.st.Suite(ref); ok {
		return st, nil
	}
	if st, ok := h.st.SuiteByName(ref); ok {
		return st, nil
	}
	return variable.Suite{}, errors.NewNotFound("suite", ref)
}

func toTranscript(msgs []TranscriptMessage) transcript.Slice {
	if len(msgs) == 0 {
		return nil
	}
	out := make(transcript.Slice, len(msgs))
	for i, m := range msgs {
		out[i] = transcript.Message{Sender: m.Sender, Text: m.Text}
	}
	return out
}

// alias resolves the transcript macro name: per-installation settings win
// over config.
func (h *Handlers) alias() string {
	if a := h.st.Settings().TranscriptAlias; a != "" {
		return a
	}
	return h.cfg.TranscriptAlias
}

func (h *Handlers) renderer(msgs []TranscriptMessage, activeCharacter string) *suite.Renderer {
	if activeCharacter == "" {
		activeCharacter = h.st.Settings().ActiveCharacter
	}
	return &suite.Renderer{
		Store:           h.st,
		Transcript:      toTranscript(msgs),
		Alias:           h.alias(),
		ActiveCharacter: activeCharacter,
	}
}

// normalizeTag ensures the stored tag carries brackets.
func normalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return tag
	}
	if !strings.HasPrefix(tag, "[") {
		tag = "[" + tag
	}
	if !strings.HasSuffix(tag, "]") {
		tag += "]"
	}
	return tag
}

// Handler implementations

// HandleDefine handles the variable_define tool call.
func (h *Handlers) HandleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DefineRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id, err := variable.NewID()
	if err != nil {
		return errorResult(errors.NewInternal(err)), nil
	}
	def := variable.Definition{
		ID:   id,
		Name: strings.TrimSpace(input.Name),
		Tag:  normalizeTag(input.Tag),
		Mode: variable.Mode(strings.ToLower(strings.TrimSpace(input.Mode))),
	}
	if err := h.st.PutDefinition(def); err != nil {
		return errorResult(err), nil
	}
	return successResult(def)
}

// HandleList handles the variable_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(map[string]any{"variables": h.st.Definitions()})
}

// HandleDelete handles the variable_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	def, err := h.resolveDefinition(input.Variable)
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.st.DeleteDefinition(def.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": def.ID})
}

// HandleValues handles the variable_values tool call.
func (h *Handlers) HandleValues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ValuesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	def, err := h.resolveDefinition(input.Variable)
	if err != nil {
		return errorResult(err), nil
	}
	val, _ := h.st.Value(input.ChatID, def.ID)
	return successResult(map[string]any{
		"variable": def,
		"value":    val,
	})
}

// HandleHide handles the variable_hide tool call.
func (h *Handlers) HandleHide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HideRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	def, err := h.resolveDefinition(input.Variable)
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.st.HideEntry(input.ChatID, def.ID, input.EntryID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"hidden": input.EntryID})
}

// HandleSuitePut handles the suite_put tool call.
func (h *Handlers) HandleSuitePut(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuitePutRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id := input.ID
	if id == "" {
		id, err = variable.NewID()
		if err != nil {
			return errorResult(errors.NewInternal(err)), nil
		}
	}
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}
	s := variable.Suite{
		ID:              id,
		Name:            strings.TrimSpace(input.Name),
		Trigger:         input.Trigger,
		Enabled:         enabled,
		Items:           input.Items,
		UseSnapshotMode: input.SnapshotMode,
	}
	if err := h.st.PutSuite(s); err != nil {
		return errorResult(err), nil
	}
	stored, _ := h.st.Suite(id)
	return successResult(stored)
}

// HandleSuiteList handles the suite_list tool call.
func (h *Handlers) HandleSuiteList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(map[string]any{"suites": h.st.Suites()})
}

// HandleSuiteDelete handles the suite_delete tool call.
func (h *Handlers) HandleSuiteDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuiteDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.resolveSuite(input.Suite)
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.st.DeleteSuite(s.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": s.ID})
}

// HandleRender handles the suite_render tool call.
func (h *Handlers) HandleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RenderRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.resolveSuite(input.Suite)
	if err != nil {
		return errorResult(err), nil
	}
	r := h.renderer(input.Transcript, input.ActiveCharacter)
	return successResult(r.Render(s, input.ChatID))
}

// HandleApply handles the reply_apply tool call.
func (h *Handlers) HandleApply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApplyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.resolveSuite(input.Suite)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := suite.Apply(h.st, s, input.ChatID, input.Reply, input.FloorRange)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleExpand handles the macro_expand tool call.
func (h *Handlers) HandleExpand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExpandRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.st.WarmChat(input.ChatID)
	env := macro.Env{
		Transcript: toTranscript(input.Transcript),
		Alias:      h.alias(),
		Lookup: macro.LookupFunc(func(name string) (variable.Definition, *variable.Value, bool) {
			def, ok := h.st.DefinitionByName(name)
			if !ok {
				return variable.Definition{}, nil, false
			}
			val, ok := h.st.CachedValue(input.ChatID, def.ID)
			if !ok {
				return def, &variable.Value{}, true
			}
			return def, &val, true
		}),
	}
	return successResult(map[string]any{"text": macro.Process(input.Text, env)})
}

// HandleInstructions handles the tag_instructions tool call.
func (h *Handlers) HandleInstructions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InstructionsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.resolveSuite(input.Suite)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"instructions": suite.InstructionsFor(h.st, s)})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if vErr, ok := err.(*errors.Error); ok {
		errorObj := map[string]any{
			"code":    vErr.Code,
			"message": vErr.Message,
			"status":  vErr.Status,
		}
		if vErr.Code != errors.ErrInternal && vErr.Details != nil {
			errorObj["details"] = vErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
