package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"aijudge-backend/cache"
	"aijudge-backend/extraction"
	"aijudge-backend/llm"
	"aijudge-backend/models"
	"aijudge-backend/repository"
	"aijudge-backend/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// MaxFollowUps is the hard ceiling on follow-up rounds per case
const MaxFollowUps = 5

var (
	ErrDuplicateCase    = errors.New("case already exists")
	ErrCaseNotFound     = errors.New("case not found")
	ErrInvalidSide      = errors.New("side must be A or B")
	ErrInvalidState     = errors.New("operation not allowed in current case state")
	ErrIncompleteCase   = errors.New("both sides must submit material before a verdict")
	ErrFollowUpLimit    = errors.New("maximum follow-ups reached")
	ErrEmptyArgument    = errors.New("argument text is empty")
	ErrGenerationFailed = errors.New("failed to generate content")
)

// CaseService is the case session manager. It owns the case lifecycle
// state machine and the bounded follow-up protocol, delegating document
// extraction and verdict generation to injected collaborators.
//
// All mutating operations on one case are serialized by a per-case lock:
// round numbering, the lifecycle transitions and the follow-up ceiling
// are check-then-act sequences. Distinct cases proceed in parallel.
// Every mutation is staged on a private copy and committed with a single
// compare-and-swap, so a failed delegate call leaves the stored case
// untouched.
type CaseService struct {
	store        repository.CaseStore
	generator    llm.Generator
	extractor    extraction.Extractor
	blobs        storage.BlobStorage
	verdictCache cache.VerdictCache
	observers    []CaseObserver

	generationTimeout time.Duration
	extractionTimeout time.Duration

	group singleflight.Group
	locks sync.Map // case id -> *sync.Mutex

	now func() time.Time
}

// CaseServiceOption is a functional option for CaseService
type CaseServiceOption func(*CaseService)

// WithCaseStore sets the case store
func WithCaseStore(store repository.CaseStore) CaseServiceOption {
	return func(s *CaseService) {
		s.store = store
	}
}

// WithGenerator sets the verdict generator
func WithGenerator(g llm.Generator) CaseServiceOption {
	return func(s *CaseService) {
		s.generator = g
	}
}

// WithExtractor sets the document text extractor
func WithExtractor(e extraction.Extractor) CaseServiceOption {
	return func(s *CaseService) {
		s.extractor = e
	}
}

// WithBlobStorage sets the evidence blob storage
func WithBlobStorage(b storage.BlobStorage) CaseServiceOption {
	return func(s *CaseService) {
		s.blobs = b
	}
}

// WithVerdictCache sets the verdict cache
func WithVerdictCache(c cache.VerdictCache) CaseServiceOption {
	return func(s *CaseService) {
		s.verdictCache = c
	}
}

// WithObserver registers a case-closed observer
func WithObserver(o CaseObserver) CaseServiceOption {
	return func(s *CaseService) {
		s.observers = append(s.observers, o)
	}
}

// WithGenerationTimeout bounds each generator call
func WithGenerationTimeout(d time.Duration) CaseServiceOption {
	return func(s *CaseService) {
		if d > 0 {
			s.generationTimeout = d
		}
	}
}

// WithExtractionTimeout bounds each per-document extraction call
func WithExtractionTimeout(d time.Duration) CaseServiceOption {
	return func(s *CaseService) {
		if d > 0 {
			s.extractionTimeout = d
		}
	}
}

// WithClock overrides the time source (tests)
func WithClock(now func() time.Time) CaseServiceOption {
	return func(s *CaseService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCaseService creates a new case session manager
func NewCaseService(opts ...CaseServiceOption) *CaseService {
	s := &CaseService{
		generationTimeout: 120 * time.Second,
		extractionTimeout: 30 * time.Second,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockCase serializes mutating operations per case id
func (s *CaseService) lockCase(caseID string) func() {
	mu, _ := s.locks.LoadOrStore(caseID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// CreateCaseRequest represents a request to create a case
type CreateCaseRequest struct {
	CaseID string // optional; generated when empty
}

// CreateCaseResult represents the result of creating a case
type CreateCaseResult struct {
	Case *models.Case
}

// CreateCase creates a case in the collecting_evidence state
func (s *CaseService) CreateCase(ctx context.Context, req CreateCaseRequest) (*CreateCaseResult, error) {
	if s.store == nil {
		return nil, errors.New("case store not set")
	}

	caseID := strings.TrimSpace(req.CaseID)
	if caseID == "" {
		caseID = "case-" + uuid.New().String()
	}

	c := models.NewCase(caseID, s.now())
	if err := s.store.Put(ctx, c); err != nil {
		if errors.Is(err, repository.ErrCaseExists) {
			return nil, fmt.Errorf("case %q: %w", caseID, ErrDuplicateCase)
		}
		return nil, err
	}

	return &CreateCaseResult{Case: c.Clone()}, nil
}

// DocumentUpload is one uploaded document blob with its declared identity
type DocumentUpload struct {
	Filename string
	MimeType string
	Blob     []byte
}

// SubmitMaterialRequest represents a request to submit side material
type SubmitMaterialRequest struct {
	CaseID    string
	Side      models.Side
	Text      string
	Documents []DocumentUpload
}

// SubmitMaterialResult carries the accumulated submission plus any
// per-document extraction failures. Failures are informational: sibling
// documents were still processed.
type SubmitMaterialResult struct {
	Submission *models.SideSubmission
	Failures   []extraction.Failure
}

// SubmitMaterial appends typed text and extracted document text to a
// side. Repeated calls accumulate; extraction is best-effort per
// document.
func (s *CaseService) SubmitMaterial(ctx context.Context, req SubmitMaterialRequest) (*SubmitMaterialResult, error) {
	if s.store == nil {
		return nil, errors.New("case store not set")
	}
	if !req.Side.Valid() {
		return nil, fmt.Errorf("side %q: %w", req.Side, ErrInvalidSide)
	}

	unlock := s.lockCase(req.CaseID)
	defer unlock()

	c, err := s.getCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusCollectingEvidence {
		return nil, fmt.Errorf("case %q is %s: %w", c.CaseID, c.Status, ErrInvalidState)
	}

	sub := c.Side(req.Side)

	// Typed text first, then extracted texts in upload order
	if text := strings.TrimSpace(req.Text); text != "" {
		sub.TextSegments = append(sub.TextSegments, text)
	}

	var failures []extraction.Failure
	for _, doc := range req.Documents {
		text, record, err := s.processDocument(ctx, c.CaseID, doc)
		if err != nil {
			failures = append(failures, extraction.Failure{
				Filename: doc.Filename,
				Reason:   err.Error(),
			})
			continue
		}
		sub.TextSegments = append(sub.TextSegments, text)
		sub.Documents = append(sub.Documents, record)
	}

	if err := s.store.CompareAndSwap(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	return &SubmitMaterialResult{
		Submission: sub.Clone(),
		Failures:   failures,
	}, nil
}

// processDocument extracts text from one uploaded document and archives
// the blob. Archival is best-effort: a storage failure must not discard
// successfully extracted evidence.
func (s *CaseService) processDocument(ctx context.Context, caseID string, doc DocumentUpload) (string, models.Document, error) {
	if s.extractor == nil {
		return "", models.Document{}, errors.New("extractor not set")
	}

	format, err := extraction.DetectFormat(doc.Filename, doc.MimeType)
	if err != nil {
		return "", models.Document{}, err
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.extractionTimeout)
	defer cancel()

	text, err := s.extractor.ExtractText(extractCtx, doc.Blob, format)
	if err != nil {
		return "", models.Document{}, err
	}

	record := models.Document{
		ID:         uuid.New(),
		Filename:   doc.Filename,
		MimeType:   doc.MimeType,
		Size:       int64(len(doc.Blob)),
		UploadedAt: s.now(),
	}

	if s.blobs != nil {
		path, err := s.blobs.Upload(ctx, caseID, record.ID, doc.Filename, bytes.NewReader(doc.Blob))
		if err != nil {
			log.Printf("Warning: Failed to archive document %s for case %s: %v", doc.Filename, caseID, err)
		} else {
			record.StoragePath = path
		}
	}

	return text, record, nil
}

// RequestVerdictRequest represents a request for the initial verdict
type RequestVerdictRequest struct {
	CaseID string
}

// RequestVerdictResult represents the issued verdict
type RequestVerdictResult struct {
	Verdict        string
	Cached         bool
	TruncatedSides []models.Side
}

// RequestVerdict issues the initial verdict and moves the case to
// verdict_issued. The prompt is deterministic in the two side texts; the
// verdict cache is consulted before the generator, and identical
// concurrent requests collapse into one generator call.
func (s *CaseService) RequestVerdict(ctx context.Context, req RequestVerdictRequest) (*RequestVerdictResult, error) {
	if s.store == nil {
		return nil, errors.New("case store not set")
	}
	if s.generator == nil {
		return nil, errors.New("generator not set")
	}

	unlock := s.lockCase(req.CaseID)
	defer unlock()

	c, err := s.getCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusCollectingEvidence {
		return nil, fmt.Errorf("case %q is %s: %w", c.CaseID, c.Status, ErrInvalidState)
	}

	var truncated []models.Side
	sideTexts := make(map[models.Side]string, 2)
	for _, side := range []models.Side{models.SideA, models.SideB} {
		sub := c.Side(side)
		text := strings.TrimSpace(sub.CombinedText())
		if text == "" {
			return nil, fmt.Errorf("side %s has no material: %w", side, ErrIncompleteCase)
		}
		if len(text) > maxSideTextChars {
			text = text[:maxSideTextChars]
			sub.Truncated = true
			truncated = append(truncated, side)
		}
		sideTexts[side] = text
	}

	key := VerdictCacheKey(sideTexts[models.SideA], sideTexts[models.SideB])

	verdict, cached, err := s.lookupVerdict(ctx, key)
	if err != nil {
		return nil, err
	}
	if !cached {
		verdict, err = s.generateVerdict(ctx, key, sideTexts[models.SideA], sideTexts[models.SideB])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
	}

	c.InitialVerdict = &verdict
	c.Status = models.StatusVerdictIssued
	if err := s.store.CompareAndSwap(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store verdict: %w", err)
	}

	if !cached && s.verdictCache != nil {
		if err := s.verdictCache.Set(ctx, key, verdict, cache.DefaultVerdictTTL); err != nil {
			log.Printf("Warning: Failed to cache verdict for case %s: %v", c.CaseID, err)
		}
	}

	return &RequestVerdictResult{
		Verdict:        verdict,
		Cached:         cached,
		TruncatedSides: truncated,
	}, nil
}

// lookupVerdict consults the verdict cache; backend failures degrade to a
// miss
func (s *CaseService) lookupVerdict(ctx context.Context, key string) (string, bool, error) {
	if s.verdictCache == nil {
		return "", false, nil
	}
	verdict, found, err := s.verdictCache.Get(ctx, key)
	if err != nil {
		log.Printf("Warning: Verdict cache lookup failed: %v", err)
		return "", false, nil
	}
	return verdict, found, nil
}

// generateVerdict calls the generator once per cache key even when
// several cases with identical material race on a cold cache
func (s *CaseService) generateVerdict(ctx context.Context, key, sideAText, sideBText string) (string, error) {
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
		defer cancel()

		prompt := BuildVerdictPrompt(sideAText, sideBText)
		return s.generator.Generate(genCtx, prompt, verdictTemperature, verdictMaxTokens)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SubmitFollowUpRequest represents one follow-up argument
type SubmitFollowUpRequest struct {
	CaseID   string
	Side     models.Side
	Argument string
}

// SubmitFollowUpResult represents the recorded round
type SubmitFollowUpResult struct {
	Round     models.FollowUpRound
	Remaining int
}

// SubmitFollowUp runs one follow-up round. The round is appended only on
// generator success; the ceiling check and the sequence number come from
// a single read of the follow-up history under the case lock.
func (s *CaseService) SubmitFollowUp(ctx context.Context, req SubmitFollowUpRequest) (*SubmitFollowUpResult, error) {
	if s.store == nil {
		return nil, errors.New("case store not set")
	}
	if s.generator == nil {
		return nil, errors.New("generator not set")
	}
	if !req.Side.Valid() {
		return nil, fmt.Errorf("side %q: %w", req.Side, ErrInvalidSide)
	}
	argument := strings.TrimSpace(req.Argument)
	if argument == "" {
		return nil, ErrEmptyArgument
	}

	unlock := s.lockCase(req.CaseID)
	defer unlock()

	c, err := s.getCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusVerdictIssued {
		return nil, fmt.Errorf("case %q is %s: %w", c.CaseID, c.Status, ErrInvalidState)
	}
	if len(c.FollowUps) >= MaxFollowUps {
		return nil, fmt.Errorf("case %q already has %d rounds: %w", c.CaseID, len(c.FollowUps), ErrFollowUpLimit)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	prompt := BuildFollowUpPrompt(c, req.Side, argument)
	response, err := s.generator.Generate(genCtx, prompt, followUpTemperature, followUpMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	round := models.FollowUpRound{
		SequenceNumber: len(c.FollowUps) + 1,
		Side:           req.Side,
		ArgumentText:   argument,
		ResponseText:   response,
		CreatedAt:      s.now(),
	}
	c.FollowUps = append(c.FollowUps, round)

	if err := s.store.CompareAndSwap(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store follow-up: %w", err)
	}

	return &SubmitFollowUpResult{
		Round:     round,
		Remaining: MaxFollowUps - len(c.FollowUps),
	}, nil
}

// CloseCaseRequest represents a request to close a case
type CloseCaseRequest struct {
	CaseID string
}

// CloseCaseResult represents the closed case
type CloseCaseResult struct {
	Case *models.Case
}

// CloseCase moves a decided case to closed and notifies observers. The
// transition is terminal: no further rounds, no reopening.
func (s *CaseService) CloseCase(ctx context.Context, req CloseCaseRequest) (*CloseCaseResult, error) {
	if s.store == nil {
		return nil, errors.New("case store not set")
	}

	unlock := s.lockCase(req.CaseID)
	defer unlock()

	c, err := s.getCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusVerdictIssued {
		return nil, fmt.Errorf("case %q is %s: %w", c.CaseID, c.Status, ErrInvalidState)
	}

	now := s.now()
	c.Status = models.StatusClosed
	c.ClosedAt = &now

	if err := s.store.CompareAndSwap(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to close case: %w", err)
	}

	s.notifyObservers(c)

	return &CloseCaseResult{Case: c.Clone()}, nil
}

// GetCaseRequest represents a request to fetch a case
type GetCaseRequest struct {
	CaseID string
}

// GetCaseResult carries a read-only snapshot
type GetCaseResult struct {
	Case *models.Case
}

// GetCase returns a deep-copied snapshot of a case
func (s *CaseService) GetCase(ctx context.Context, req GetCaseRequest) (*GetCaseResult, error) {
	if s.store == nil {
		return nil, errors.New("case store not set")
	}

	c, err := s.getCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	return &GetCaseResult{Case: c}, nil
}

// ListCasesResult carries all known case ids
type ListCasesResult struct {
	CaseIDs []string
}

// ListCases lists case ids in creation order
func (s *CaseService) ListCases(ctx context.Context) (*ListCasesResult, error) {
	if s.store == nil {
		return nil, errors.New("case store not set")
	}

	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	return &ListCasesResult{CaseIDs: ids}, nil
}

// getCase loads a case and maps store errors into the service taxonomy
func (s *CaseService) getCase(ctx context.Context, caseID string) (*models.Case, error) {
	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrCaseNotFound) {
			return nil, fmt.Errorf("case %q: %w", caseID, ErrCaseNotFound)
		}
		return nil, err
	}
	return c, nil
}
