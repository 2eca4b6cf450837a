package store

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// PassageRecord is one archived passage with its embedding. The archive
// spans uploads; it is append-only and best-effort.
type PassageRecord struct {
	bun.BaseModel `bun:"table:passages,alias:p"`
	ID            int64     `bun:"id,pk,autoincrement"`
	SourceID      string    `bun:"source_id,notnull"`
	PageNumber    int       `bun:"page_number,notnull"`
	ChunkID       int       `bun:"chunk_id,notnull"`
	Content       string    `bun:"content,notnull"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector(1536)"`
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Key))), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*PassageRecord)(nil)).IfNotExists().Exec(ctx)
	return err
}

// StorePassages appends embedded passages to the archive.
func StorePassages(ctx context.Context, db *bun.DB, embedded []models.EmbeddedPassage) error {
	if len(embedded) == 0 {
		return nil
	}
	records := make([]PassageRecord, len(embedded))
	for i, ep := range embedded {
		records[i] = PassageRecord{
			SourceID:   ep.SourceID,
			PageNumber: ep.PageNumber,
			ChunkID:    ep.ChunkID,
			Content:    ep.Text,
			Embedding:  ep.Embedding,
		}
	}
	_, err := db.NewInsert().Model(&records).Exec(ctx)
	return err
}

// SearchPassages returns the limit archived passages nearest to the
// query embedding across all uploads.
func SearchPassages(ctx context.Context, db *bun.DB, queryEmbedding []float32, limit int) ([]models.Passage, error) {
	var records []PassageRecord
	err := db.NewSelect().
		Model(&records).
		Column("source_id", "page_number", "chunk_id", "content").
		OrderExpr("embedding <-> ?", queryEmbedding).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	passages := make([]models.Passage, len(records))
	for i, r := range records {
		passages[i] = models.Passage{
			Text:       r.Content,
			PageNumber: r.PageNumber,
			SourceID:   r.SourceID,
			ChunkID:    r.ChunkID,
		}
	}
	return passages, nil
}

func DropPassages(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*PassageRecord)(nil)).IfExists().Exec(ctx)
	return err
}
