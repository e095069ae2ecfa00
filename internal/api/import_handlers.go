package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/shelfsyncapp/shelfsync-server/internal/ingest"
)

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "previewImport",
		Method:      http.MethodPost,
		Path:        "/api/v1/imports/preview",
		Summary:     "Preview an import",
		Description: "Decodes and classifies an uploaded file without writing anything",
		Tags:        []string{"Import"},
	}, s.handlePreviewImport)

	huma.Register(s.api, huma.Operation{
		OperationID: "commitImport",
		Method:      http.MethodPost,
		Path:        "/api/v1/imports",
		Summary:     "Commit an import",
		Description: "Runs a full import and returns the per-row batch report",
		Tags:        []string{"Import"},
	}, s.handleCommitImport)

	huma.Register(s.api, huma.Operation{
		OperationID: "listImportBatches",
		Method:      http.MethodGet,
		Path:        "/api/v1/imports",
		Summary:     "List import batches",
		Description: "Lists retained batch reports, most recent first",
		Tags:        []string{"Import"},
	}, s.handleListImportBatches)

	huma.Register(s.api, huma.Operation{
		OperationID: "getImportBatch",
		Method:      http.MethodGet,
		Path:        "/api/v1/imports/{batchId}",
		Summary:     "Get an import batch",
		Description: "Returns the full report of one import batch",
		Tags:        []string{"Import"},
	}, s.handleGetImportBatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "listManualMatches",
		Method:      http.MethodGet,
		Path:        "/api/v1/imports/matches",
		Summary:     "List manual match entries",
		Description: "Lists rows awaiting a manual match decision",
		Tags:        []string{"Import"},
	}, s.handleListManualMatches)

	huma.Register(s.api, huma.Operation{
		OperationID: "resolveManualMatches",
		Method:      http.MethodPost,
		Path:        "/api/v1/imports/matches/resolve",
		Summary:     "Resolve manual match entries",
		Description: "Applies user decisions to queued rows",
		Tags:        []string{"Import"},
	}, s.handleResolveManualMatches)
}

// ImportUpload is the shared upload shape for preview and commit. Content is
// base64 in JSON per the OpenAPI bytes format.
type ImportUpload struct {
	Filename  string            `json:"filename" doc:"Original filename, used for format detection"`
	Format    string            `json:"format,omitempty" doc:"Declared format, wins over filename detection" enum:"goodreads,handylib,hardcover,csv,tsv,json,"`
	Content   []byte            `json:"content" doc:"File content"`
	Overrides map[string]string `json:"overrides,omitempty" doc:"Field mapping overrides, canonical field to column name"`
}

type PreviewImportInput struct {
	Body struct {
		ImportUpload
		SampleSize int `json:"sample_size,omitempty" doc:"Rows to classify" minimum:"0" maximum:"500"`
	}
}

type PreviewImportOutput struct {
	Body ingest.PreviewResult
}

func (s *Server) handlePreviewImport(ctx context.Context, input *PreviewImportInput) (*PreviewImportOutput, error) {
	if err := s.checkUpload(&input.Body.ImportUpload); err != nil {
		return nil, err
	}

	sampleSize := input.Body.SampleSize
	if sampleSize <= 0 {
		sampleSize = s.config.Import.PreviewSampleSize
	}

	result, err := s.services.Import.Preview(ctx, input.Body.Content, input.Body.Filename, input.Body.Format, ingest.FieldMapping(input.Body.Overrides), sampleSize)
	if err != nil {
		return nil, err
	}
	return &PreviewImportOutput{Body: *result}, nil
}

type CommitImportInput struct {
	Body struct {
		ImportUpload
	}
}

type CommitImportOutput struct {
	Body domain.ImportBatchReport
}

func (s *Server) handleCommitImport(ctx context.Context, input *CommitImportInput) (*CommitImportOutput, error) {
	if err := s.checkUpload(&input.Body.ImportUpload); err != nil {
		return nil, err
	}

	report, err := s.services.Import.Commit(ctx, input.Body.Content, input.Body.Filename, input.Body.Format, ingest.FieldMapping(input.Body.Overrides))
	if err != nil {
		return nil, err
	}
	return &CommitImportOutput{Body: *report}, nil
}

type ListImportBatchesOutput struct {
	Body struct {
		Batches []*domain.ImportBatchReport `json:"batches"`
	}
}

func (s *Server) handleListImportBatches(ctx context.Context, _ *struct{}) (*ListImportBatchesOutput, error) {
	out := &ListImportBatchesOutput{}
	out.Body.Batches = s.services.Import.ListReports()
	return out, nil
}

type GetImportBatchInput struct {
	BatchID string `path:"batchId" doc:"Import batch id"`
}

type GetImportBatchOutput struct {
	Body domain.ImportBatchReport
}

func (s *Server) handleGetImportBatch(ctx context.Context, input *GetImportBatchInput) (*GetImportBatchOutput, error) {
	report, err := s.services.Import.GetReport(input.BatchID)
	if err != nil {
		return nil, err
	}
	return &GetImportBatchOutput{Body: *report}, nil
}

type ListManualMatchesOutput struct {
	Body struct {
		Entries []*domain.ManualMatchEntry `json:"entries"`
	}
}

func (s *Server) handleListManualMatches(ctx context.Context, _ *struct{}) (*ListManualMatchesOutput, error) {
	out := &ListManualMatchesOutput{}
	out.Body.Entries = s.services.Import.ListManualMatches()
	return out, nil
}

// matchDecisionRequest mirrors domain.MatchDecision with validation tags.
type matchDecisionRequest struct {
	EntryID   string `json:"entry_id" validate:"required"`
	Action    string `json:"action" validate:"required,oneof=import_as_new skip merge_into_existing"`
	MergeISBN string `json:"merge_isbn,omitempty" validate:"required_if=Action merge_into_existing"`
}

type ResolveManualMatchesInput struct {
	Body struct {
		Decisions []matchDecisionRequest `json:"decisions" minItems:"1"`
	}
}

type ResolveManualMatchesOutput struct {
	Body struct {
		Outcomes []domain.RowOutcome `json:"outcomes"`
	}
}

func (s *Server) handleResolveManualMatches(ctx context.Context, input *ResolveManualMatchesInput) (*ResolveManualMatchesOutput, error) {
	decisions := make([]domain.MatchDecision, 0, len(input.Body.Decisions))
	for _, d := range input.Body.Decisions {
		if err := s.validator.Validate(d); err != nil {
			return nil, err
		}
		decisions = append(decisions, domain.MatchDecision{
			EntryID:   d.EntryID,
			Action:    domain.MatchAction(d.Action),
			MergeISBN: d.MergeISBN,
		})
	}

	outcomes, err := s.services.Import.ResolveManualMatches(ctx, decisions)
	if err != nil {
		return nil, err
	}

	out := &ResolveManualMatchesOutput{}
	out.Body.Outcomes = outcomes
	return out, nil
}

// checkUpload enforces the upload size cap and presence of content.
func (s *Server) checkUpload(upload *ImportUpload) error {
	if len(upload.Content) == 0 {
		return huma.Error400BadRequest("content is required")
	}
	if max := s.config.Import.MaxUploadBytes; max > 0 && int64(len(upload.Content)) > max {
		return huma.Error400BadRequest("import file exceeds the upload size limit")
	}
	return nil
}
