package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/varloom/internal/completion"
	"github.com/hpungsan/varloom/internal/config"
	"github.com/hpungsan/varloom/internal/errors"
	"github.com/hpungsan/varloom/internal/export"
	"github.com/hpungsan/varloom/internal/macro"
	"github.com/hpungsan/varloom/internal/store"
	"github.com/hpungsan/varloom/internal/suite"
	"github.com/hpungsan/varloom/internal/transcript"
	"github.com/hpungsan/varloom/internal/variable"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(st *store.Store, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "varloom",
		Usage:   "Tagged variables for AI chats",
		Version: Version,
		Commands: []*cli.Command{
			defineCmd(st),
			varsCmd(st),
			rmVarCmd(st),
			valuesCmd(st),
			hideCmd(st),
			suiteCmd(st),
			renderCmd(st, cfg),
			applyCmd(st),
			expandCmd(st, cfg),
			instructionsCmd(st),
			exportCmd(st),
			runCmd(st, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// defineCmd creates the define command.
func defineCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "define",
		Usage: "Define a tagged variable",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Macro-reference name ({{name}})"},
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Required: true, Usage: "Bracket tag the model emits, e.g. '[summary]'"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "stack", Usage: "Accumulation mode: stack|replace"},
		},
		Action: func(c *cli.Context) error {
			id, err := variable.NewID()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			def := variable.Definition{
				ID:   id,
				Name: strings.TrimSpace(c.String("name")),
				Tag:  normalizeTag(c.String("tag")),
				Mode: variable.Mode(strings.ToLower(c.String("mode"))),
			}
			if err := st.PutDefinition(def); err != nil {
				return outputError(err)
			}
			return outputJSON(def)
		},
	}
}

// varsCmd creates the vars command.
func varsCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "vars",
		Usage: "List variable definitions",
		Action: func(c *cli.Context) error {
			return outputJSON(map[string]any{"variables": st.Definitions()})
		},
	}
}

// rmVarCmd creates the rm-var command.
func rmVarCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "rm-var",
		Usage:     "Delete a variable and cascade-remove its values from every chat",
		ArgsUsage: "<id-or-name>",
		Action: func(c *cli.Context) error {
			def, err := resolveDefinition(st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			if err := st.DeleteDefinition(def.ID); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"deleted": def.ID})
		},
	}
}

// valuesCmd creates the values command.
func valuesCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "values",
		Usage:     "Show a variable's stored values in one chat",
		ArgsUsage: "<id-or-name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chat", Aliases: []string{"c"}, Required: true, Usage: "Chat id"},
		},
		Action: func(c *cli.Context) error {
			def, err := resolveDefinition(st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			val, _ := st.Value(c.String("chat"), def.ID)
			return outputJSON(map[string]any{"variable": def, "value": val})
		},
	}
}

// hideCmd creates the hide command.
func hideCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "hide",
		Usage:     "Hide one stack entry from default resolution (no renumbering)",
		ArgsUsage: "<id-or-name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chat", Aliases: []string{"c"}, Required: true, Usage: "Chat id"},
			&cli.Int64Flag{Name: "entry", Aliases: []string{"e"}, Required: true, Usage: "Entry id to hide"},
		},
		Action: func(c *cli.Context) error {
			def, err := resolveDefinition(st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			if err := st.HideEntry(c.String("chat"), def.ID, c.Int64("entry")); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"hidden": c.Int64("entry")})
		},
	}
}

// suiteCmd creates the suite command group.
func suiteCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "suite",
		Usage: "Manage prompt suites",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create or update a suite (reads the items JSON array from stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Suite id (omit to create)"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Suite name"},
					&cli.StringFlag{Name: "trigger", Usage: "Trigger expression evaluated by the frontend"},
					&cli.BoolFlag{Name: "snapshot", Usage: "Capture transcript items at enqueue time"},
					&cli.BoolFlag{Name: "disabled", Usage: "Create the suite disabled"},
				},
				Action: func(c *cli.Context) error {
					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("items JSON must be piped via stdin"))
					}
					raw, err := readStdin()
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					var items []variable.Item
					if err := json.Unmarshal([]byte(raw), &items); err != nil {
						return outputError(errors.NewInvalidRequest("items: " + err.Error()))
					}

					id := c.String("id")
					if id == "" {
						id, err = variable.NewID()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
					}
					s := variable.Suite{
						ID:              id,
						Name:            strings.TrimSpace(c.String("name")),
						Trigger:         c.String("trigger"),
						Enabled:         !c.Bool("disabled"),
						Items:           items,
						UseSnapshotMode: c.Bool("snapshot"),
					}
					if err := st.PutSuite(s); err != nil {
						return outputError(err)
					}
					stored, _ := st.Suite(id)
					return outputJSON(stored)
				},
			},
			{
				Name:  "list",
				Usage: "List suites",
				Action: func(c *cli.Context) error {
					return outputJSON(map[string]any{"suites": st.Suites()})
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a suite (stored values are untouched)",
				ArgsUsage: "<id-or-name>",
				Action: func(c *cli.Context) error {
					s, err := resolveSuite(st, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					if err := st.DeleteSuite(s.ID); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"deleted": s.ID})
				},
			},
		},
	}
}

// renderCmd creates the render command.
func renderCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a suite against a chat",
		ArgsUsage: "<suite>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chat", Aliases: []string{"c"}, Required: true, Usage: "Chat id"},
			&cli.StringFlag{Name: "transcript", Aliases: []string{"T"}, Usage: "Transcript JSON file"},
			&cli.StringFlag{Name: "character", Usage: "Active character for character-bound items"},
		},
		Action: func(c *cli.Context) error {
			s, err := resolveSuite(st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			r, err := newRenderer(st, cfg, c.String("transcript"), c.String("character"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(r.Render(s, c.String("chat")))
		},
	}
}

// applyCmd creates the apply command.
func applyCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Parse a complete model reply (from stdin) and store its tagged values",
		ArgsUsage: "<suite>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chat", Aliases: []string{"c"}, Required: true, Usage: "Chat id"},
			&cli.StringFlag{Name: "floors", Usage: "Transcript span the reply covered, e.g. 56-65"},
		},
		Action: func(c *cli.Context) error {
			s, err := resolveSuite(st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("reply text must be piped via stdin"))
			}
			reply, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			out, err := suite.Apply(st, s, c.String("chat"), reply, c.String("floors"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// expandCmd creates the expand command.
func expandCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "expand",
		Usage:     "Expand macros in text (argument, or stdin when piped)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chat", Aliases: []string{"c"}, Required: true, Usage: "Chat id"},
			&cli.StringFlag{Name: "transcript", Aliases: []string{"T"}, Usage: "Transcript JSON file"},
		},
		Action: func(c *cli.Context) error {
			text := c.Args().First()
			if text == "" && stdinHasData() {
				var err error
				text, err = readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			if text == "" {
				return outputError(errors.NewInvalidRequest("text is required"))
			}

			chat, err := loadTranscript(c.String("transcript"))
			if err != nil {
				return outputError(err)
			}

			chatID := c.String("chat")
			st.WarmChat(chatID)
			env := macro.Env{
				Transcript: chat,
				Alias:      aliasFor(st, cfg),
				Lookup: macro.LookupFunc(func(name string) (variable.Definition, *variable.Value, bool) {
					def, ok := st.DefinitionByName(name)
					if !ok {
						return variable.Definition{}, nil, false
					}
					val, ok := st.CachedValue(chatID, def.ID)
					if !ok {
						return def, &variable.Value{}, true
					}
					return def, &val, true
				}),
			}
			return outputJSON(map[string]any{"text": macro.Process(text, env)})
		},
	}
}

// instructionsCmd creates the instructions command.
func instructionsCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "instructions",
		Usage:     "Print the tag-emission instruction block for a suite",
		ArgsUsage: "<suite>",
		Action: func(c *cli.Context) error {
			s, err := resolveSuite(st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"instructions": suite.InstructionsFor(st, s)})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a variable's history as markdown or HTML",
		ArgsUsage: "<id-or-name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chat", Aliases: []string{"c"}, Required: true, Usage: "Chat id"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "markdown", Usage: "Output format: markdown|html"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write to file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			def, err := resolveDefinition(st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			format, ok := export.ParseFormat(c.String("format"))
			if !ok {
				return outputError(errors.NewInvalidRequest("format must be markdown or html"))
			}
			val, _ := st.Value(c.String("chat"), def.ID)
			rendered := export.Render(format, def, val)

			if path := c.String("out"); path != "" {
				if err := os.WriteFile(path, []byte(rendered), 0o600); err != nil {
					return outputError(errors.NewInternal(err))
				}
				return outputJSON(map[string]any{"path": path, "bytes": len(rendered)})
			}
			fmt.Println(rendered)
			return nil
		},
	}
}

// runCmd creates the run command.
func runCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Render a suite, send it to the completion backend, and apply the reply",
		ArgsUsage: "<suite>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chat", Aliases: []string{"c"}, Required: true, Usage: "Chat id"},
			&cli.StringFlag{Name: "transcript", Aliases: []string{"T"}, Usage: "Transcript JSON file"},
			&cli.StringFlag{Name: "character", Usage: "Active character for character-bound items"},
		},
		Action: func(c *cli.Context) error {
			completer, err := completion.New(cfg.Completion)
			if err != nil {
				return outputError(err)
			}
			r, err := newRenderer(st, cfg, c.String("transcript"), c.String("character"))
			if err != nil {
				return outputError(err)
			}
			out, err := suite.Run(c.Context, r, completer, c.String("chat"), c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// Helper functions

// resolveDefinition accepts a definition id or a macro-reference name.
func resolveDefinition(st *store.Store, ref string) (variable.Definition, error) {
	if ref == "" {
		return variable.Definition{}, errors.NewInvalidRequest("variable id or name is required")
	}
	if def, ok := st.Definition(ref); ok {
		return def, nil
	}
	if def, ok := st.DefinitionByName(ref); ok {
		return def, nil
	}
	return variable.Definition{}, errors.NewNotFound("variable", ref)
}

// resolveSuite accepts a suite id or name.
func resolveSuite(st *store.Store, ref string) (variable.Suite, error) {
	if ref == "" {
		return variable.Suite{}, errors.NewInvalidRequest("suite id or name is required")
	}
	if s, ok := st.Suite(ref); ok {
		return s, nil
	}
	if s, ok := st.SuiteByName(ref); ok {
		return s, nil
	}
	return variable.Suite{}, errors.NewNotFound("suite", ref)
}

// newRenderer binds a renderer to an optional transcript file.
func newRenderer(st *store.Store, cfg *config.Config, transcriptPath, character string) (*suite.Renderer, error) {
	chat, err := loadTranscript(transcriptPath)
	if err != nil {
		return nil, err
	}
	if character == "" {
		character = st.Settings().ActiveCharacter
	}
	return &suite.Renderer{
		Store:           st,
		Transcript:      chat,
		Alias:           aliasFor(st, cfg),
		ActiveCharacter: character,
	}, nil
}

// loadTranscript reads the transcript file; an empty path means no chat
// bound (transcript macros resolve to empty).
func loadTranscript(path string) (transcript.Reader, error) {
	if path == "" {
		return nil, nil
	}
	chat, err := transcript.LoadFile(path)
	if err != nil {
		return nil, errors.NewInvalidRequest("transcript: " + err.Error())
	}
	return chat, nil
}

// aliasFor resolves the transcript macro name: settings win over config.
func aliasFor(st *store.Store, cfg *config.Config) string {
	if a := st.Settings().TranscriptAlias; a != "" {
		return a
	}
	if cfg != nil && cfg.TranscriptAlias != "" {
		return cfg.TranscriptAlias
	}
	return macro.DefaultAlias
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

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if vErr, ok := err.(*errors.Error); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", vErr.Code, vErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
