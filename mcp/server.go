// Package mcp provides the MCP (Model Context Protocol) server for harmony.
//
// The server drives a single game session over stdio: every session
// action is registered as a tool on the protocol server, and the session
// state is registered as resources.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/harmony-go/internal/graph"
	"github.com/Benny93/harmony-go/internal/session"
)

// Game is the session surface the server drives. *session.Session
// satisfies it.
type Game interface {
	Status() session.Status
	Hint() string
	AdjustTrait(i int, delta float64) (float64, error)
	Evolve(i int) (bool, error)
	ChangeShape(i int) (graph.Shape, error)
	SpawnChild(i int) (int, error)
	Toggle(i, j int) (bool, error)
	Undo() bool
	Complete() (session.LevelResult, error)
	Restart()
	Snapshot() session.Snapshot
}

// LevelHook is called after every completion attempt. err is nil when the
// level was passed.
type LevelHook func(ctx context.Context, res session.LevelResult, err error)

// Server represents the MCP server.
type Server struct {
	mu     sync.Mutex // guards game; the protocol server may dispatch concurrently
	game   Game
	impl   *mcp.Implementation
	server *mcp.Server

	// OnLevel, when set, observes completion attempts.
	OnLevel LevelHook
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server around game.
func NewServer(game Game, version string) *Server {
	s := &Server{
		game: game,
		impl: &mcp.Implementation{
			Name:    "harmony-go",
			Version: version,
		},
	}
	s.server = mcp.NewServer(s.impl, nil)
	s.register()
	return s
}

func indexSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"index": {Type: "integer", Description: description},
		},
		Required: []string{"index"},
	}
}

func emptySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
	}
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "harmony_status",
			Description: "Show level, harmony, target, score and the per-node state of the current structure.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "harmony_hint",
			Description: "Suggest the most useful next move for the current structure.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "harmony_adjust_trait",
			Description: "Shift a node's love/logic trait by delta (positive is more love). The trait stays within [0,1].",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"index": {Type: "integer", Description: "Node index"},
					"delta": {Type: "number", Description: "Trait change, e.g. 0.05 or -0.05"},
				},
				Required: []string{"index", "delta"},
			},
		},
		{
			Name:        "harmony_evolve",
			Description: "Evolve a node. Plain nodes level up to the maximum; container nodes oscillate and grow their embedded pattern.",
			InputSchema: indexSchema("Node index"),
		},
		{
			Name:        "harmony_change_shape",
			Description: "Cycle a node to its next shape.",
			InputSchema: indexSchema("Node index"),
		},
		{
			Name:        "harmony_spawn_child",
			Description: "Grow a connected child node next to a node.",
			InputSchema: indexSchema("Parent node index"),
		},
		{
			Name:        "harmony_toggle_connection",
			Description: "Connect two nodes, or disconnect them if they are already connected.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"a": {Type: "integer", Description: "First node index"},
					"b": {Type: "integer", Description: "Second node index"},
				},
				Required: []string{"a", "b"},
			},
		},
		{
			Name:        "harmony_undo",
			Description: "Undo the last action.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "harmony_complete_level",
			Description: "Complete the current level. Below the target harmony the game is over.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "harmony_restart",
			Description: "Start over at level 1 with a zero score.",
			InputSchema: emptySchema(),
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "harmony://state",
			Name:        "Session State",
			Description: "Level, harmony breakdown, target and nodes of the current session",
			MimeType:    "text/plain",
		},
		{
			URI:         "harmony://snapshot",
			Name:        "Session Snapshot",
			Description: "Index-addressed JSON snapshot of the current session",
			MimeType:    "application/json",
		},
		{
			URI:         "harmony://schema",
			Name:        "Snapshot Schema",
			Description: "Description of the snapshot format and the harmony formula",
			MimeType:    "text/plain",
		},
	}
}

func intArg(args map[string]any, name string) (int, error) {
	v, ok := args[name].(float64)
	if !ok {
		return 0, fmt.Errorf("missing or non-numeric argument %q", name)
	}
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, fmt.Errorf("argument %q must be an integer, got %v", name, v)
	}
	return int(v), nil
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch name {
	case "harmony_status":
		return formatStatus(s.game), nil
	case "harmony_hint":
		return s.game.Hint(), nil
	case "harmony_adjust_trait":
		index, err := intArg(args, "index")
		if err != nil {
			return "", err
		}
		delta, ok := args["delta"].(float64)
		if !ok {
			return "", fmt.Errorf("missing or non-numeric argument %q", "delta")
		}
		return handleAdjustTrait(s.game, index, delta)
	case "harmony_evolve":
		index, err := intArg(args, "index")
		if err != nil {
			return "", err
		}
		return handleEvolve(s.game, index)
	case "harmony_change_shape":
		index, err := intArg(args, "index")
		if err != nil {
			return "", err
		}
		shape, err := s.game.ChangeShape(index)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Node %d is now a %s.", index, shape), nil
	case "harmony_spawn_child":
		index, err := intArg(args, "index")
		if err != nil {
			return "", err
		}
		child, err := s.game.SpawnChild(index)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Spawned node %d from node %d. Harmony: %.1f%%", child, index, s.game.Status().Harmony), nil
	case "harmony_toggle_connection":
		a, err := intArg(args, "a")
		if err != nil {
			return "", err
		}
		b, err := intArg(args, "b")
		if err != nil {
			return "", err
		}
		return handleToggle(s.game, a, b)
	case "harmony_undo":
		if !s.game.Undo() {
			return "Nothing to undo.", nil
		}
		return fmt.Sprintf("Undone. Harmony: %.1f%%", s.game.Status().Harmony), nil
	case "harmony_complete_level":
		return s.handleComplete(ctx)
	case "harmony_restart":
		s.game.Restart()
		return "Restarted at level 1.", nil
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch uri {
	case "harmony://state":
		return formatStatus(s.game), nil
	case "harmony://snapshot":
		data, err := json.Marshal(s.game.Snapshot())
		if err != nil {
			return "", fmt.Errorf("encoding snapshot: %w", err)
		}
		return string(data), nil
	case "harmony://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves the MCP protocol on stdin/stdout until the client disconnects
// or ctx is cancelled.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}
	return s.server.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(stdin),
		Writer: nopWriteCloser{stdout},
	})
}

// Connect starts a session over transport without blocking.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// register installs every tool and resource on the protocol server.
func (s *Server) register() {
	for _, tool := range s.ListTools() {
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, s.toolHandler(tool.Name))
	}
	for _, res := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, s.resourceHandler(res.MimeType))
	}
}

// toolHandler reports tool failures as error results so the client sees
// the message instead of a protocol error.
func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args map[string]any
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}
		text, err := s.CallTool(ctx, name, args)
		if err != nil {
			return toolError(err), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func (s *Server) resourceHandler(mimeType string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		text, err := s.ReadResource(ctx, uri)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mimeType, Text: text}},
		}, nil
	}
}

// Tool Handlers

func handleAdjustTrait(game Game, index int, delta float64) (string, error) {
	trait, err := game.AdjustTrait(index, delta)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Node %d trait: %.2f (%s). Harmony: %.1f%%",
		index, trait, traitLabel(trait), game.Status().Harmony), nil
}

func handleEvolve(game Game, index int) (string, error) {
	evolved, err := game.Evolve(index)
	if err != nil {
		return "", err
	}
	if !evolved {
		return fmt.Sprintf("Node %d is already at the maximum level %d.", index, graph.MaxLevel), nil
	}
	return fmt.Sprintf("Node %d evolved. Harmony: %.1f%%", index, game.Status().Harmony), nil
}

func handleToggle(game Game, a, b int) (string, error) {
	connected, err := game.Toggle(a, b)
	if err != nil {
		return "", err
	}
	verb := "Disconnected"
	if connected {
		verb = "Connected"
	}
	return fmt.Sprintf("%s nodes %d and %d. Harmony: %.1f%%", verb, a, b, game.Status().Harmony), nil
}

func (s *Server) handleComplete(ctx context.Context) (string, error) {
	res, err := s.game.Complete()
	if errors.Is(err, session.ErrGameOver) {
		return "", err
	}
	if s.OnLevel != nil {
		s.OnLevel(ctx, res, err)
	}
	if errors.Is(err, session.ErrTargetNotReached) {
		return fmt.Sprintf("Game over: target harmony of %.1f%% not reached (current %.1f%%). Final score: %.1f. Use harmony_restart to play again.",
			res.Target, res.Harmony, res.Score), nil
	}
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if res.HasTarget {
		sb.WriteString(fmt.Sprintf("Level %d complete! Target: %.1f%%, achieved: %.1f%%, bonus: %.1f, total score: %.1f\n",
			res.Level, res.Target, res.Harmony, res.Bonus, res.Score))
	} else {
		sb.WriteString(fmt.Sprintf("Level %d complete! No target required. Achieved: %.1f%%, total score: %.1f\n",
			res.Level, res.Harmony, res.Score))
	}
	sb.WriteString(fmt.Sprintf("Level %d starts with %d nodes (organic factor %.2f).\n", res.NextLevel, res.Nodes, res.OrganicFactor))
	sb.WriteString("\nNext: connect the new nodes with `harmony_toggle_connection`.")
	return sb.String(), nil
}

// Resource Handlers

func traitLabel(trait float64) string {
	switch {
	case trait > 0.55:
		return "love"
	case trait < 0.45:
		return "logic"
	default:
		return "balanced"
	}
}

func formatStatus(game Game) string {
	st := game.Status()
	snap := game.Snapshot()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Level %d (%s)\n\n", st.Level, st.State))
	sb.WriteString(fmt.Sprintf("**Harmony:** %.1f%%\n", st.Harmony))
	if st.HasTarget {
		sb.WriteString(fmt.Sprintf("**Target:** %.1f%%\n", st.Target))
	} else {
		sb.WriteString("**Target:** none\n")
	}
	sb.WriteString(fmt.Sprintf("**Difficulty:** %.1f (%s)\n", st.Difficulty, st.DifficultyLabel))
	sb.WriteString(fmt.Sprintf("**Score:** %.1f\n", st.Score))
	sb.WriteString(fmt.Sprintf("**Nodes:** %d, **Edges:** %d, **Undo steps:** %d\n", st.Nodes, st.Edges, st.UndoDepth))

	b := st.Breakdown
	sb.WriteString("\n## Breakdown\n\n")
	sb.WriteString(fmt.Sprintf("- Balance: %.2f (avg trait %.2f)\n", b.Balance, b.AvgTrait))
	sb.WriteString(fmt.Sprintf("- Connections: %.2f (ratio %.2f)\n", b.ConnectionFactor, b.ConnectionRatio))
	sb.WriteString(fmt.Sprintf("- Evolution: %.2f (avg level %.2f)\n", b.EvolutionFactor, b.AvgEvolution))
	sb.WriteString(fmt.Sprintf("- Disharmony: %.3f\n", b.Disharmony))

	sb.WriteString("\n## Nodes\n\n")
	for i, n := range snap.Nodes {
		sb.WriteString(fmt.Sprintf("%d. %s, trait %.2f (%s), level %d, peers %v",
			i, n.Shape, n.Trait, traitLabel(n.Trait), n.Level, snap.Connections[i]))
		if n.Pattern != nil {
			sb.WriteString(fmt.Sprintf(", embeds %d points", n.Pattern.Len()))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\nHint: %s", st.Hint))
	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Harmony Snapshot Schema\n\n")
	sb.WriteString("## Snapshot\n\n")
	sb.WriteString("| Field | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	sb.WriteString("| `nodes` | Node list; the position in the list is the node index |\n")
	sb.WriteString("| `connections` | Per-node list of connected node indices (symmetric) |\n")
	sb.WriteString("| `level` | Structure level, starting at 1 |\n")
	sb.WriteString("| `harmony` | Harmony percentage in [0,100] |\n")
	sb.WriteString("| `player_score` | Accumulated bonus points |\n")
	sb.WriteString("| `level_bonuses` | Bonus earned per completed level |\n")
	sb.WriteString("\n## Node\n\n")
	sb.WriteString("| Field | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	sb.WriteString("| `x`, `y` | Canvas position |\n")
	sb.WriteString("| `size` | Diameter |\n")
	sb.WriteString("| `trait` | 0 is pure logic, 1 is pure love |\n")
	sb.WriteString(fmt.Sprintf("| `level` | Evolution level in [1,%d] |\n", graph.MaxLevel))
	sb.WriteString(fmt.Sprintf("| `shape` | Shape index in [0,%d) |\n", graph.ShapeCount))
	sb.WriteString("| `direction` | 0 up, 1 down (container oscillation) |\n")
	sb.WriteString("| `pattern` | Frozen previous level embedded in container nodes |\n")
	sb.WriteString("\n## Harmony\n\n")
	sb.WriteString("Weighted mix of trait balance (0.4), connection ratio near 0.6 (0.3) and average level near 2.5 (0.3), ")
	sb.WriteString("reduced by disharmony from trait variance, level variance and the structure level.\n")
	return sb.String()
}
