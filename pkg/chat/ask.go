// Package chat implements the AskGrid chat services: the ask pipeline
// (retrieve-then-read question answering), conversation session history,
// and answer feedback voting.
//
// The services are thin orchestrations over the store clients in
// pkg/clients. Each service accepts the caller's [auth.Identity]; read
// operations are scoped to the identity's subject so one user can never
// observe another user's sessions or votes.
//
// # Ask pipeline
//
// [AskService.Ask] embeds the question, searches the passage index,
// optionally widens the hit set through the citation graph, resolves
// citation snippets from the corpus store, and hands the assembled
// context to a [Generator]:
//
//	embed → search → expand (optional) → cite (optional) → generate
//
// Embedding and generation are injectable interfaces: real model clients
// live outside this module. The SDK ships [StaticGenerator], a canned
// generator suitable for tests and demos.
package chat

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"time"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/askgrid/askgrid-core/pkg/auth"
	"github.com/askgrid/askgrid-core/pkg/clients/minio"
	"github.com/askgrid/askgrid-core/pkg/clients/neo4j"
	"github.com/askgrid/askgrid-core/pkg/clients/qdrant"
	agerr "github.com/askgrid/askgrid-core/pkg/errors"
	"github.com/askgrid/askgrid-core/pkg/models"
)

// Embedder converts text into the vector representation used by the
// passage index. Implementations wrap an embedding model endpoint; the
// returned vector dimensionality must match the index collection.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces the answer text from the question and the retrieved
// passages. Implementations wrap an LLM endpoint; [StaticGenerator] is a
// canned implementation for tests and demos.
type Generator interface {
	Generate(ctx context.Context, question string, passages []models.Passage) (string, error)
}

// Retriever is the passage-index surface the ask pipeline needs. It is
// satisfied by [qdrant.Client].
type Retriever interface {
	Search(ctx context.Context, req *pb.QueryPoints) ([]*pb.ScoredPoint, error)
}

var _ Retriever = (*qdrant.Client)(nil)

// CitationGraph is the citation-graph surface the ask pipeline needs for
// neighbor expansion. It is satisfied by [neo4j.Client].
type CitationGraph interface {
	RelatedPassages(ctx context.Context, passageID string, limit int) ([]string, error)
	SourcesFor(ctx context.Context, passageID string) ([]string, error)
}

var _ CitationGraph = (*neo4j.Client)(nil)

// CorpusStore is the source-document surface used to resolve citation
// snippets. It is satisfied by [minio.Client].
type CorpusStore interface {
	FetchDocument(ctx context.Context, objectName string) ([]byte, error)
}

var _ CorpusStore = (*minio.Client)(nil)

// Payload keys stored with every point in the passage index.
const (
	payloadKeyText      = "text"
	payloadKeySourceRef = "source_ref"
)

// AskConfig tunes the retrieval stage of the ask pipeline.
type AskConfig struct {
	// Collection is the passage-index collection to search.
	Collection string `json:"collection" yaml:"collection" env:"ASK_COLLECTION" envDefault:"passages"`

	// TopK is the number of passages retrieved per question.
	TopK uint64 `json:"top_k,omitempty" yaml:"top_k" env:"ASK_TOP_K" envDefault:"4"`

	// ExpandLimit caps the number of graph-adjacent passages added per
	// question. Zero disables citation-graph expansion even when a graph
	// client is configured.
	ExpandLimit int `json:"expand_limit,omitempty" yaml:"expand_limit" env:"ASK_EXPAND_LIMIT" envDefault:"2"`

	// SnippetLen caps citation snippet length in bytes. Snippets are cut
	// at the cap and are only intended for display.
	SnippetLen int `json:"snippet_len,omitempty" yaml:"snippet_len" env:"ASK_SNIPPET_LEN" envDefault:"280"`
}

// Default retrieval settings.
const (
	DefaultCollection  = "passages"
	DefaultTopK        = 4
	DefaultExpandLimit = 2
	DefaultSnippetLen  = 280
)

// applyDefaults sets default values for zero-valued fields. ExpandLimit
// is left alone: zero is the documented off switch.
func (c *AskConfig) applyDefaults() {
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.SnippetLen == 0 {
		c.SnippetLen = DefaultSnippetLen
	}
}

// AskService answers questions with the retrieve-then-read pipeline.
//
// The retriever, embedder, and generator are required. The citation graph
// and corpus store are optional: without a graph there is no neighbor
// expansion, and without a corpus store citations carry refs but no
// snippets. Expansion and snippet failures degrade the answer rather than
// failing the request; they are logged at warn level.
type AskService struct {
	embedder  Embedder
	retriever Retriever
	graph     CitationGraph
	corpus    CorpusStore
	generator Generator
	config    AskConfig
}

// NewAskService creates an AskService. The embedder, retriever, and
// generator must be non-nil; graph and corpus may be nil to disable
// expansion and snippets respectively.
func NewAskService(embedder Embedder, retriever Retriever, graph CitationGraph, corpus CorpusStore, generator Generator, cfg AskConfig) (*AskService, error) {
	if embedder == nil {
		return nil, agerr.New(agerr.CodeValidation, "chat: ask service requires an embedder")
	}
	if retriever == nil {
		return nil, agerr.New(agerr.CodeValidation, "chat: ask service requires a retriever")
	}
	if generator == nil {
		return nil, agerr.New(agerr.CodeValidation, "chat: ask service requires a generator")
	}
	cfg.applyDefaults()
	return &AskService{
		embedder:  embedder,
		retriever: retriever,
		graph:     graph,
		corpus:    corpus,
		generator: generator,
		config:    cfg,
	}, nil
}

// Ask answers a question for the given caller. The identity may be nil:
// the ask endpoint allows anonymous callers, and the subject is only used
// for logging here.
//
// Error codes returned:
//   - [agerr.CodeValidation]: empty question
//   - [agerr.CodeInternal]: embedding or generation failure
//   - store client codes (timeout, unavailable, internal) from retrieval
func (s *AskService) Ask(ctx context.Context, identity *auth.Identity, question string) (*models.Answer, error) {
	if question == "" {
		return nil, agerr.New(agerr.CodeValidation, "chat: question must not be empty")
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, agerr.Wrap(err, agerr.CodeInternal, "chat: failed to embed question")
	}

	passages, err := s.retrieve(ctx, vector)
	if err != nil {
		return nil, err
	}

	if s.graph != nil && s.config.ExpandLimit > 0 && len(passages) > 0 {
		passages = append(passages, s.expand(ctx, passages)...)
	}

	content, err := s.generator.Generate(ctx, question, passages)
	if err != nil {
		return nil, agerr.Wrap(err, agerr.CodeInternal, "chat: failed to generate answer")
	}

	answer := &models.Answer{
		Content:     content,
		Citations:   s.cite(ctx, passages),
		GeneratedAt: time.Now().UTC(),
	}

	slog.InfoContext(ctx, "chat: answered question",
		"subject", subjectOf(identity),
		"passages", len(passages),
		"citations", len(answer.Citations))
	return answer, nil
}

// retrieve runs the vector search and maps scored points to passages.
func (s *AskService) retrieve(ctx context.Context, vector []float32) ([]models.Passage, error) {
	points, err := s.retriever.Search(ctx, &pb.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          pb.NewQuery(vector...),
		Limit:          pb.PtrOf(s.config.TopK),
		WithPayload:    pb.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	passages := make([]models.Passage, 0, len(points))
	for _, point := range points {
		passages = append(passages, models.Passage{
			ID:        pointIDString(point.GetId()),
			SourceRef: point.GetPayload()[payloadKeySourceRef].GetStringValue(),
			Text:      point.GetPayload()[payloadKeyText].GetStringValue(),
			Score:     point.GetScore(),
		})
	}
	return passages, nil
}

// expand widens the retrieved set with graph-adjacent passages: passages
// citing a source also cited by the top hit. Expanded passages carry the
// graph identifiers and source refs but no text or score; they exist to
// surface additional citations. Expansion failures are logged and
// swallowed so graph outages degrade rather than break answers.
func (s *AskService) expand(ctx context.Context, passages []models.Passage) []models.Passage {
	seen := make(map[string]bool, len(passages))
	for _, p := range passages {
		seen[p.ID] = true
	}

	related, err := s.graph.RelatedPassages(ctx, passages[0].ID, s.config.ExpandLimit)
	if err != nil {
		slog.WarnContext(ctx, "chat: citation-graph expansion failed", "error", err)
		return nil
	}

	var expanded []models.Passage
	for _, id := range related {
		if seen[id] {
			continue
		}
		seen[id] = true
		p := models.Passage{ID: id, Expanded: true}
		if refs, refErr := s.graph.SourcesFor(ctx, id); refErr == nil && len(refs) > 0 {
			p.SourceRef = refs[0]
		}
		expanded = append(expanded, p)
	}
	return expanded
}

// cite builds the citation list from the passages' source refs, first
// occurrence order, one citation per distinct ref. When a corpus store is
// configured the cited document's head is attached as a snippet; fetch
// failures (including withdrawn documents) drop the snippet, not the
// citation.
func (s *AskService) cite(ctx context.Context, passages []models.Passage) []models.Citation {
	seen := make(map[string]bool, len(passages))
	var citations []models.Citation
	for _, p := range passages {
		if p.SourceRef == "" || seen[p.SourceRef] {
			continue
		}
		seen[p.SourceRef] = true

		citation := models.Citation{SourceRef: p.SourceRef}
		if s.corpus != nil {
			doc, err := s.corpus.FetchDocument(ctx, p.SourceRef)
			switch {
			case err == nil:
				citation.Snippet = snippet(doc, s.config.SnippetLen)
			case agerr.HasCode(err, agerr.CodeNotFoundResource):
				// Withdrawn from the corpus; keep the bare ref.
			default:
				slog.WarnContext(ctx, "chat: citation snippet fetch failed",
					"source_ref", p.SourceRef, "error", err)
			}
		}
		citations = append(citations, citation)
	}
	return citations
}

// snippet returns the head of a document, cut at limit bytes on a line
// boundary where possible.
func snippet(doc []byte, limit int) string {
	if len(doc) <= limit {
		return string(bytes.TrimSpace(doc))
	}
	head := doc[:limit]
	if i := bytes.LastIndexByte(head, '\n'); i > 0 {
		head = head[:i]
	}
	return string(bytes.TrimSpace(head))
}

// pointIDString renders a qdrant point identifier as a string: the UUID
// form verbatim, the numeric form in decimal.
func pointIDString(id *pb.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// subjectOf returns the identity's subject, or "anonymous" for a nil
// identity.
func subjectOf(identity *auth.Identity) string {
	if identity == nil {
		return "anonymous"
	}
	return identity.Subject()
}
