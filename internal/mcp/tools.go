package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions. Descriptions are what the model sees, so they spell out
// identifier rules (id or name accepted) and which fields are optional.

var defineToolDef = mcp.NewTool("variable_define",
	mcp.WithDescription("Define a tagged variable. The model is instructed to emit [tag]...[/tag] blocks; parsed content accumulates per chat. Mode 'stack' appends entries, 'replace' overwrites with history."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Macro-reference name, used as {{name}} in prompts. Must be unique.")),
	mcp.WithString("tag", mcp.Required(), mcp.Description("Bracket tag the model emits, e.g. '[summary]'. Brackets optional on input.")),
	mcp.WithString("mode", mcp.Required(), mcp.Description("'stack' or 'replace'.")),
)

var listToolDef = mcp.NewTool("variable_list",
	mcp.WithDescription("List all variable definitions, sorted by name."),
)

var deleteToolDef = mcp.NewTool("variable_delete",
	mcp.WithDescription("Delete a variable definition and cascade-remove its stored values from every chat."),
	mcp.WithString("variable", mcp.Required(), mcp.Description("Variable id or name.")),
)

var valuesToolDef = mcp.NewTool("variable_values",
	mcp.WithDescription("Fetch the stored value document of one variable in one chat: stack entries or replace current+history."),
	mcp.WithString("variable", mcp.Required(), mcp.Description("Variable id or name.")),
	mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat the values belong to.")),
)

var hideToolDef = mcp.NewTool("variable_hide",
	mcp.WithDescription("Hide one stack entry from default resolution without renumbering its siblings."),
	mcp.WithString("variable", mcp.Required(), mcp.Description("Variable id or name.")),
	mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat the entry lives in.")),
	mcp.WithNumber("entry_id", mcp.Required(), mcp.Description("Entry id to hide.")),
)

var suitePutToolDef = mcp.NewTool("suite_put",
	mcp.WithDescription("Create or update a prompt suite: an ordered list of prompt, variable, transcript, and character items rendered into one prompt."),
	mcp.WithString("id", mcp.Description("Suite id. Omit to create a new suite.")),
	mcp.WithString("name", mcp.Required(), mcp.Description("Suite name, unique among suites.")),
	mcp.WithString("trigger", mcp.Description("Optional trigger expression evaluated by the frontend.")),
	mcp.WithBoolean("enabled", mcp.Description("Whether the suite participates in automatic runs. Default true.")),
	mcp.WithBoolean("snapshot_mode", mcp.Description("Capture transcript items when the suite is queued rather than when it is sent.")),
	mcp.WithArray("items", mcp.Required(), mcp.Description("Ordered items. Each: {type: 'prompt'|'variable'|'transcript'|'character', template?, variable_id?, range?, character?}.")),
)

var suiteListToolDef = mcp.NewTool("suite_list",
	mcp.WithDescription("List all prompt suites."),
)

var suiteDeleteToolDef = mcp.NewTool("suite_delete",
	mcp.WithDescription("Delete a prompt suite. Variable definitions and stored values are untouched."),
	mcp.WithString("suite", mcp.Required(), mcp.Description("Suite id or name.")),
)

var suiteRenderToolDef = mcp.NewTool("suite_render",
	mcp.WithDescription("Render a suite against a chat: expand macros, resolve variable and transcript items, and return the prompt plus tag instructions."),
	mcp.WithString("suite", mcp.Required(), mcp.Description("Suite id or name.")),
	mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat whose variable values resolve macros.")),
	mcp.WithArray("transcript", mcp.Description("Chat messages in floor order. Each: {sender, text}.")),
	mcp.WithString("active_character", mcp.Description("Character gating character-bound items.")),
)

var replyApplyToolDef = mcp.NewTool("reply_apply",
	mcp.WithDescription("Parse a COMPLETE model reply for the suite's tags and store each captured value per its mode. Never feed streamed partial text."),
	mcp.WithString("suite", mcp.Required(), mcp.Description("Suite id or name.")),
	mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat to store values into.")),
	mcp.WithString("reply", mcp.Required(), mcp.Description("Full reply text.")),
	mcp.WithString("floor_range", mcp.Description("Transcript span the reply covered, e.g. '56-65'. Recorded on new entries.")),
)

var expandToolDef = mcp.NewTool("macro_expand",
	mcp.WithDescription("Expand {{name}} and {{name@range}} macros in arbitrary text against one chat's stored values and transcript."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Text containing macros.")),
	mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat whose values resolve the macros.")),
	mcp.WithArray("transcript", mcp.Description("Chat messages in floor order. Each: {sender, text}.")),
)

var instructionsToolDef = mcp.NewTool("tag_instructions",
	mcp.WithDescription("Build the tag-emission instruction block for a suite's variables, for appending to an outgoing prompt."),
	mcp.WithString("suite", mcp.Required(), mcp.Description("Suite id or name.")),
)
