// Package mcp exposes read-only demogen tools over the Model Context
// Protocol: plan previews, run status and scorecard templates. Nothing
// served here writes to a CRM.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"demogen/internal/config"
	"demogen/internal/logging"
	"demogen/internal/orchestrate"
	"demogen/internal/planner"
	"demogen/internal/runlog"
	"demogen/internal/scorecard"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultErrorTail is how many recent errors run_status returns.
var DefaultErrorTail = 10

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server
	// LogDir is searched for run directories when a call names none.
	LogDir string
	// Now anchors previews whose config has no anchor_date.
	Now func() time.Time

	logger *slog.Logger
}

// NewServer creates an MCP server whose run_status tool looks under logDir.
func NewServer(logDir string) *Server {
	s := &Server{LogDir: logDir, Now: time.Now, logger: logging.New("mcp")}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "demogen", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "preview_plan",
		Description: "Preview the meetings, emails and scorecards a run would create for one opportunity. Offline; no CRM calls.",
	}, s.handlePreviewPlan)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_status",
		Description: "Read a run's status, final statistics and most recent errors from its log directory.",
	}, s.handleRunStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_templates",
		Description: "List the built-in scorecard templates and their questions.",
	}, s.handleListTemplates)
}

// --- Tool input/output types ---

type previewPlanInput struct {
	ConfigPath    string `json:"config_path" jsonschema:"path to a demogen YAML config"`
	OpportunityID string `json:"opportunity_id" jsonschema:"Salesforce opportunity id to plan for"`
}

type previewPlanOutput struct {
	Anchor     string               `json:"anchor"`
	Plan       planner.ActivityPlan `json:"plan"`
	Summary    planner.Summary      `json:"summary"`
	Scorecards []scorecard.Result   `json:"scorecards"`
}

type runStatusInput struct {
	RunID  string `json:"run_id" jsonschema:"run id, e.g. run-1a2b3c4d"`
	LogDir string `json:"log_dir,omitempty" jsonschema:"log directory to search (default: the server's)"`
}

type runStatusOutput struct {
	RunDir  string               `json:"run_dir"`
	Status  runlog.Status        `json:"status"`
	Summary *runlog.Stats        `json:"summary,omitempty"`
	Errors  []runlog.ErrorRecord `json:"errors"`
}

type listTemplatesInput struct{}

type listTemplatesOutput struct {
	Templates []scorecard.Template `json:"templates"`
}

// --- Tool handlers ---

func (s *Server) handlePreviewPlan(ctx context.Context, _ *sdkmcp.CallToolRequest, input previewPlanInput) (*sdkmcp.CallToolResult, previewPlanOutput, error) {
	if input.ConfigPath == "" || input.OpportunityID == "" {
		return nil, previewPlanOutput{}, errors.New("config_path and opportunity_id are required")
	}
	cfg, err := config.LoadFromPath(input.ConfigPath)
	if err != nil {
		return nil, previewPlanOutput{}, err
	}
	p, err := orchestrate.PreviewOpportunity(ctx, cfg, input.OpportunityID, s.Now())
	if err != nil {
		return nil, previewPlanOutput{}, err
	}
	s.logger.Debug("previewed plan", "opportunity_id", input.OpportunityID, "meetings", p.Summary.TotalMeetings, "emails", p.Summary.TotalEmails)
	return nil, previewPlanOutput{
		Anchor:     p.Anchor.Format(time.RFC3339),
		Plan:       p.Plan,
		Summary:    p.Summary,
		Scorecards: p.Scorecards,
	}, nil
}

func (s *Server) handleRunStatus(_ context.Context, _ *sdkmcp.CallToolRequest, input runStatusInput) (*sdkmcp.CallToolResult, runStatusOutput, error) {
	if input.RunID == "" {
		return nil, runStatusOutput{}, errors.New("run_id is required")
	}
	logDir := input.LogDir
	if logDir == "" {
		logDir = s.LogDir
	}
	dir, err := config.FindRunDir(logDir, input.RunID)
	if err != nil {
		return nil, runStatusOutput{}, err
	}
	st, err := runlog.ReadStatus(dir)
	if err != nil {
		return nil, runStatusOutput{}, fmt.Errorf("run %s: %w", input.RunID, err)
	}
	out := runStatusOutput{RunDir: dir, Status: st}

	// summary.json only exists once a run is finalized.
	sum, err := runlog.ReadSummary(dir)
	switch {
	case err == nil:
		out.Summary = &sum
	case !errors.Is(err, fs.ErrNotExist):
		return nil, runStatusOutput{}, err
	}

	out.Errors, err = runlog.TailErrors(dir, DefaultErrorTail)
	if err != nil {
		return nil, runStatusOutput{}, err
	}
	if out.Errors == nil {
		out.Errors = []runlog.ErrorRecord{}
	}
	return nil, out, nil
}

func (s *Server) handleListTemplates(_ context.Context, _ *sdkmcp.CallToolRequest, _ listTemplatesInput) (*sdkmcp.CallToolResult, listTemplatesOutput, error) {
	var out listTemplatesOutput
	for _, name := range scorecard.Names() {
		tpl, err := scorecard.Lookup(name)
		if err != nil {
			return nil, listTemplatesOutput{}, err
		}
		out.Templates = append(out.Templates, tpl)
	}
	return nil, out, nil
}
