// Package upload ingests requirements documents into projects. Raw bytes
// are stored durably before anything touches them, then parsed and, per the
// project's processing mode, restructured by the generation client. The
// package also hosts the supplemental intake surfaces: a drop-directory
// watcher and a web-page importer.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/planforge/planforge/ingest"
	"github.com/planforge/planforge/llm"
	"github.com/planforge/planforge/model"
	"github.com/planforge/planforge/workflow"
	"github.com/planforge/planforge/workflow/prompts"
)

// BlobStore persists raw uploaded bytes.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}

// Generator is the slice of the generation client the manager calls.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Machine is the slice of the state machine the intake surfaces drive.
type Machine interface {
	GetProject(ctx context.Context, id string) (*workflow.Project, error)
	SaveIntakeDraft(ctx context.Context, id string, draft workflow.IntakeDraft) (*workflow.Project, error)
}

// Upload is one incoming document.
type Upload struct {
	Filename string
	Content  []byte
}

// Options control how an upload is processed.
type Options struct {
	// Mode selects the processing pipeline; defaults to parse_only.
	Mode workflow.ProcessingMode

	// Provider is the generation-provider identifier for the enhance and
	// convert calls.
	Provider string

	// ProjectID scopes the stored object and the recorded artifacts.
	ProjectID string
}

// Result is the outcome of one ingestion.
type Result struct {
	// Text is the normalized requirements text.
	Text string

	// Enhanced reports whether the generation client restructured the
	// text; false means Text is the plain parser output.
	Enhanced bool

	// ObjectName is where the raw upload landed in the blob store.
	ObjectName string

	// Ext is the lower-cased extension of the uploaded file.
	Ext string
}

// Manager runs uploads through storage, parsing, and enhancement.
type Manager struct {
	blobs    BlobStore
	registry *ingest.Registry
	client   Generator
	machine  Machine
	logger   *slog.Logger
}

// NewManager creates an upload manager.
func NewManager(blobs BlobStore, registry *ingest.Registry, client Generator, machine Machine, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		blobs:    blobs,
		registry: registry,
		client:   client,
		machine:  machine,
		logger:   logger,
	}
}

// Ingest stores the upload and turns it into requirements text. The caller
// decides what to do with the text; nothing here writes to a project.
func (m *Manager) Ingest(ctx context.Context, up Upload, opts Options) (*Result, error) {
	if up.Filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if len(up.Content) == 0 {
		return nil, fmt.Errorf("upload %s is empty", up.Filename)
	}

	mode := opts.Mode
	if mode == "" {
		mode = workflow.ModeParseOnly
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown processing mode: %s", mode)
	}

	// Durability first: the original bytes must survive whatever parsing
	// or enhancement does to them.
	scope := opts.ProjectID
	if scope == "" {
		scope = "anon"
	}
	objectName := fmt.Sprintf("%s/%s-%s", scope, uuid.New().String(), filepath.Base(up.Filename))
	if err := m.blobs.Put(ctx, objectName, up.Content); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	result := &Result{
		ObjectName: objectName,
		Ext:        strings.ToLower(filepath.Ext(up.Filename)),
	}

	if mode == workflow.ModeLLMRaw {
		text, err := m.convertRaw(ctx, up, opts)
		if err != nil {
			return nil, err
		}
		result.Text = text
		result.Enhanced = true
		return result, nil
	}

	text, err := m.registry.Parse(up.Filename, up.Content)
	if err != nil {
		return nil, err
	}
	result.Text = text

	if mode == workflow.ModeLLMParsed {
		enhanced, err := m.enhance(ctx, text, opts)
		if err != nil {
			// The parsed text is still usable; deliver it rather than
			// failing the whole ingestion over an enhancement problem.
			m.logger.Warn("Enhancement failed, returning parsed text",
				"file", up.Filename,
				"error", err)
		} else {
			result.Text = enhanced
			result.Enhanced = true
		}
	}

	return result, nil
}

// IngestToProject runs an upload under the project's own processing mode
// and provider, then saves the text as the project's requirements draft.
func (m *Manager) IngestToProject(ctx context.Context, projectID string, up Upload) (*Result, error) {
	project, err := m.machine.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	result, err := m.Ingest(ctx, up, Options{
		Mode:      project.ProcessingMode,
		Provider:  project.GenerationProvider,
		ProjectID: project.ID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := m.machine.SaveIntakeDraft(ctx, projectID, workflow.IntakeDraft{BRDContent: &result.Text}); err != nil {
		return nil, fmt.Errorf("save requirements draft: %w", err)
	}

	return result, nil
}

// SaveDraft stores requirements text on the project without touching the
// upload pipeline. Intake surfaces that produce text directly, like the web
// importer, land here.
func (m *Manager) SaveDraft(ctx context.Context, projectID, text string) error {
	if _, err := m.machine.SaveIntakeDraft(ctx, projectID, workflow.IntakeDraft{BRDContent: &text}); err != nil {
		return fmt.Errorf("save requirements draft: %w", err)
	}
	return nil
}

func (m *Manager) enhance(ctx context.Context, text string, opts Options) (string, error) {
	resp, err := m.client.Generate(ctx, llm.Request{
		Capability:    model.CapabilityEnhance,
		Provider:      opts.Provider,
		System:        prompts.Enhance(),
		User:          text,
		ProjectID:     opts.ProjectID,
		ArtifactTitle: "Restructured requirements",
	})
	if err != nil {
		return "", err
	}
	return ingest.Normalize(resp.Content), nil
}

func (m *Manager) convertRaw(ctx context.Context, up Upload, opts Options) (string, error) {
	resp, err := m.client.Generate(ctx, llm.Request{
		Capability:    model.CapabilityConvert,
		Provider:      opts.Provider,
		System:        prompts.Convert(),
		User:          string(up.Content),
		ProjectID:     opts.ProjectID,
		ArtifactTitle: "Converted upload " + filepath.Base(up.Filename),
	})
	if err != nil {
		return "", fmt.Errorf("convert upload: %w", err)
	}
	return ingest.Normalize(resp.Content), nil
}
