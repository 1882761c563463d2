package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bartkosa/MemoWrite/internal/extract"
	"github.com/Bartkosa/MemoWrite/internal/models"
)

// ProgressCallback is called during document processing to report progress
type ProgressCallback func(step, message string, current, total int)

// ExtractionSummary reports what one document ingestion produced.
type ExtractionSummary struct {
	DocumentID     int64    `json:"document_id"`
	Pages          int      `json:"pages"`
	Batches        int      `json:"batches"`
	FailedBatches  []string `json:"failed_batches,omitempty"`
	QuestionsAdded int      `json:"questions_added"`
}

// IngestionService coordinates PDF loading, question extraction, and persistence.
type IngestionService struct {
	documents     *DocumentService
	pdf           *PDFService
	gen           *GenerationService
	questions     *QuestionService
	log           zerolog.Logger
	pagesPerBatch int
}

func NewIngestionService(
	documents *DocumentService,
	pdfService *PDFService,
	gen *GenerationService,
	questions *QuestionService,
	log zerolog.Logger,
	pagesPerBatch int,
) *IngestionService {
	return &IngestionService{
		documents:     documents,
		pdf:           pdfService,
		gen:           gen,
		questions:     questions,
		log:           log,
		pagesPerBatch: pagesPerBatch,
	}
}

func (s *IngestionService) ProcessDocument(ctx context.Context, doc *models.Document) (*ExtractionSummary, error) {
	return s.ProcessDocumentWithProgress(ctx, doc, nil)
}

// ProcessDocumentWithProgress runs the extraction pipeline over the stored
// PDF and persists the resulting questions. Batches that failed generation
// are reported in the summary; only a fully unavailable generation service
// fails the document.
func (s *IngestionService) ProcessDocumentWithProgress(ctx context.Context, doc *models.Document, progress ProgressCallback) (*ExtractionSummary, error) {
	if !s.gen.Available() {
		return nil, ErrAIUnavailable
	}

	if progress != nil {
		progress("load", "Loading PDF", 0, 100)
	}

	pdfDoc, err := s.pdf.LoadPDF(doc.StoredPath)
	if err != nil {
		return nil, fmt.Errorf("load pdf %s: %w", doc.OriginalName, err)
	}
	if err := s.documents.UpdatePageCount(ctx, doc.ID, pdfDoc.PageCount()); err != nil {
		return nil, err
	}
	doc.PageCount = pdfDoc.PageCount()

	obs := extract.Observer(extract.LogObserver{Log: s.log.With().Int64("document", doc.ID).Logger()})
	if progress != nil {
		obs = multiObserver{obs, &progressObserver{progress: progress}}
	}

	pipeline := extract.NewPipeline(s.gen,
		extract.WithPagesPerBatch(s.pagesPerBatch),
		extract.WithObserver(obs),
	)

	result, err := pipeline.Extract(ctx, pdfDoc)
	if err != nil {
		return nil, fmt.Errorf("extract questions from %s: %w", doc.OriginalName, err)
	}

	if progress != nil {
		progress("save", fmt.Sprintf("Saving %d questions", len(result.Pairs)), 90, 100)
	}

	added, err := s.questions.BulkInsertPairs(ctx, sql.NullInt64{Valid: true, Int64: doc.ID}, result.Pairs)
	if err != nil {
		return nil, fmt.Errorf("save questions for %s: %w", doc.OriginalName, err)
	}

	summary := &ExtractionSummary{
		DocumentID:     doc.ID,
		Pages:          doc.PageCount,
		Batches:        result.Attempted,
		QuestionsAdded: added,
	}
	for _, failure := range result.Failures {
		summary.FailedBatches = append(summary.FailedBatches, failure.Error())
	}

	if progress != nil {
		progress("complete", "Processing complete", 100, 100)
	}

	s.log.Info().
		Int64("document", doc.ID).
		Int("pages", summary.Pages).
		Int("batches", summary.Batches).
		Int("failed", len(summary.FailedBatches)).
		Int("questions", summary.QuestionsAdded).
		Msg("document ingested")

	return summary, nil
}

// multiObserver fans pipeline events out to several observers.
type multiObserver []extract.Observer

func (m multiObserver) BatchStarted(index, total int, batch extract.PageBatch) {
	for _, obs := range m {
		obs.BatchStarted(index, total, batch)
	}
}

func (m multiObserver) BatchDecoded(index int, strategy string, pairs int, elapsed time.Duration) {
	for _, obs := range m {
		obs.BatchDecoded(index, strategy, pairs, elapsed)
	}
}

func (m multiObserver) BatchFailed(index int, err error) {
	for _, obs := range m {
		obs.BatchFailed(index, err)
	}
}

// progressObserver translates pipeline events into coarse progress updates
// spanning the 10-90% band between loading and saving.
type progressObserver struct {
	progress ProgressCallback
	total    int
}

func (o *progressObserver) BatchStarted(index, total int, _ extract.PageBatch) {
	o.total = total
	o.progress("extract", fmt.Sprintf("Extracting batch %d of %d", index+1, total), o.percent(index), 100)
}

func (o *progressObserver) BatchDecoded(index int, _ string, pairs int, _ time.Duration) {
	o.progress("extract", fmt.Sprintf("Batch %d produced %d questions", index+1, pairs), o.percent(index+1), 100)
}

func (o *progressObserver) BatchFailed(index int, err error) {
	o.progress("extract", fmt.Sprintf("Batch %d failed: %v", index+1, err), o.percent(index+1), 100)
}

func (o *progressObserver) percent(done int) int {
	if o.total <= 0 {
		return 10
	}
	return 10 + 80*done/o.total
}
