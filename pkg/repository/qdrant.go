package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/m-mizutani/fennec/pkg/adapter"
	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/status"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	VectorSize uint64
	APIKey     string
	UseTLS     bool
}

// qdrantRepo implements Repository backed by a Qdrant collection. Drive file
// ids are not valid Qdrant point ids, so each point gets a UUIDv5 derived
// from the file id and the original id is kept in the payload.
type qdrantRepo struct {
	client   *qdrant.Client
	gemini   adapter.Gemini
	cfg      *QdrantConfig
	rootName string
}

// NewQdrant connects to Qdrant and ensures the collection exists with cosine
// distance vectors of the configured size.
func NewQdrant(ctx context.Context, gemini adapter.Gemini, cfg *QdrantConfig, rootName string) (Repository, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, goerr.New("qdrant collection name is required")
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = 768
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create qdrant client")
	}

	repo := &qdrantRepo{client: client, gemini: gemini, cfg: cfg, rootName: rootName}
	if err := repo.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *qdrantRepo) ensureCollection(ctx context.Context) error {
	exists, err := r.client.CollectionExists(ctx, r.cfg.Collection)
	if err != nil {
		return wrapBackendErr(err, "failed to check collection existence")
	}
	if exists {
		return nil
	}

	err = r.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: r.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     r.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return wrapBackendErr(err, "failed to create collection")
	}

	return nil
}

func (r *qdrantRepo) AddMany(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	logger := logging.From(ctx)
	points := make([]*qdrant.PointStruct, 0, len(docs))
	var added []string

	for _, doc := range docs {
		vec, err := r.gemini.Embedding(ctx, doc.Text)
		if err != nil {
			logger.Error("embedding failed, documents added so far",
				"id", doc.ID, "added", added)
			return goerr.Wrap(err, "failed to embed document", goerr.V("id", doc.ID))
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(doc.ID)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(payloadFromDocument(doc)),
		})
		added = append(added, doc.ID)
	}

	if _, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.cfg.Collection,
		Points:         points,
	}); err != nil {
		return wrapBackendErr(err, "upsert failed")
	}

	logger.Debug("documents upserted", "count", len(points))
	return nil
}

func (r *qdrantRepo) Search(ctx context.Context, input SearchInput) ([]model.SearchResult, error) {
	if input.Limit <= 0 {
		return nil, goerr.New("search limit must be positive", goerr.V("limit", input.Limit))
	}

	vec, err := r.gemini.Embedding(ctx, input.Query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	limit := uint64(backendLimit(input))
	query := &qdrant.QueryPoints{
		CollectionName: r.cfg.Collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if f := metadataFilter(input.Metadata); f != nil {
		query.Filter = f
	}

	scored, err := r.client.Query(ctx, query)
	if err != nil {
		return nil, wrapBackendErr(err, "search failed")
	}

	rows := make([]model.SearchResult, 0, len(scored))
	for _, p := range scored {
		doc := documentFromPayload(p.Payload)
		rows = append(rows, model.SearchResult{
			Document: doc,
			// Cosine similarity score to dissimilarity distance.
			Distance: float64(1 - p.Score),
		})
	}

	return refine(rows, input, r.rootName), nil
}

func (r *qdrantRepo) GetAll(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	var offset *qdrant.PointId

	for {
		points, next, err := r.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: r.cfg.Collection,
			Limit:          qdrant.PtrOf(uint32(256)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, wrapBackendErr(err, "scroll failed")
		}
		if len(points) == 0 {
			break
		}

		for _, p := range points {
			docs = append(docs, documentFromPayload(p.Payload))
		}

		if next == nil {
			break
		}
		offset = next
	}

	return docs, nil
}

func (r *qdrantRepo) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointID(id)))
	}

	if _, err := r.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: r.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	}); err != nil {
		return wrapBackendErr(err, "delete failed")
	}

	return nil
}

func (r *qdrantRepo) GetStats(ctx context.Context) (*model.Stats, error) {
	count, err := r.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: r.cfg.Collection,
	})
	if err != nil {
		return nil, wrapBackendErr(err, "count failed")
	}

	return &model.Stats{Count: int(count), Name: r.cfg.Collection}, nil
}

func (r *qdrantRepo) Reset(ctx context.Context) error {
	if err := r.client.DeleteCollection(ctx, r.cfg.Collection); err != nil {
		return wrapBackendErr(err, "failed to delete collection")
	}
	return r.ensureCollection(ctx)
}

func pointID(fileID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fileID)).String()
}

func payloadFromDocument(doc model.Document) map[string]any {
	return map[string]any{
		"id":           doc.ID,
		"text":         doc.Text,
		"name":         doc.Metadata.Name,
		"mimeType":     doc.Metadata.MimeType,
		"folderPath":   doc.Metadata.FolderPath,
		"modifiedTime": doc.Metadata.ModifiedTime,
		"extension":    doc.Metadata.Extension,
		"googleLink":   doc.Metadata.GoogleLink,
	}
}

func documentFromPayload(payload map[string]*qdrant.Value) model.Document {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}

	return model.Document{
		ID:   str("id"),
		Text: str("text"),
		Metadata: model.Metadata{
			Name:         str("name"),
			MimeType:     str("mimeType"),
			FolderPath:   str("folderPath"),
			ModifiedTime: str("modifiedTime"),
			Extension:    str("extension"),
			GoogleLink:   str("googleLink"),
		},
	}
}

// metadataFilter pushes exact metadata matches down to the backend so the
// fetch limit is not wasted on rows a later filter would drop.
func metadataFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	must := make([]*qdrant.Condition, 0, len(filter))
	for field, value := range filter {
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: field,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: value},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: must}
}

// wrapBackendErr surfaces every backend failure as the retryable
// ErrUnavailable, keeping the original error and its gRPC status code as
// values.
func wrapBackendErr(err error, msg string) error {
	return goerr.Wrap(ErrUnavailable, msg,
		goerr.V("cause", err.Error()),
		goerr.V("code", status.Code(err).String()))
}
