package db

import (
	"encoding/json"
	"time"
)

// Article maps deals.articles.
type Article struct {
	ArticleID  int64     `gorm:"column:article_id;primaryKey;autoIncrement"`
	ArticleDay time.Time `gorm:"column:article_date;type:date;not null"`
	Title      string    `gorm:"column:title;type:text;not null"`
	TitleKey   string    `gorm:"column:title_key;type:text;not null;default:''"`
	Summary    string    `gorm:"column:summary;type:text;not null;default:''"`
	Content    string    `gorm:"column:content;type:text;not null;default:''"`
	SourceName string    `gorm:"column:source_name;type:text;not null;default:''"`
	SourceURL  string    `gorm:"column:source_url;type:text;not null;default:''"`
	URLKey     string    `gorm:"column:url_key;type:text;not null;default:''"`
	Category   string    `gorm:"column:category;type:text;not null;default:'Other'"`
	Upvotes    int       `gorm:"column:upvotes;type:integer;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "deals.articles" }

// IngestRun maps deals.ingest_runs.
type IngestRun struct {
	RunID         int64           `gorm:"column:run_id;primaryKey;autoIncrement"`
	IngestRunUUID string          `gorm:"column:ingest_run_uuid;type:uuid;not null;unique"`
	TargetDate    time.Time       `gorm:"column:target_date;type:date;not null"`
	Status        string          `gorm:"column:status;type:deals.ingest_run_status;not null;default:running"`
	Sections      int             `gorm:"column:sections;type:integer;not null;default:0"`
	Candidates    int             `gorm:"column:candidates;type:integer;not null;default:0"`
	ItemsInserted int             `gorm:"column:items_inserted;type:integer;not null;default:0"`
	ItemsPatched  int             `gorm:"column:items_patched;type:integer;not null;default:0"`
	ItemsSkipped  int             `gorm:"column:items_skipped;type:integer;not null;default:0"`
	SweepDeleted  int             `gorm:"column:sweep_deleted;type:integer;not null;default:0"`
	Summary       json.RawMessage `gorm:"column:summary;type:jsonb"`
	ErrorMessage  *string         `gorm:"column:error_message;type:text"`
	StartedAt     time.Time       `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt    *time.Time      `gorm:"column:finished_at;type:timestamptz"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (IngestRun) TableName() string { return "deals.ingest_runs" }

// DedupDecision maps deals.dedup_decisions. The pair is stored ordered
// (first < second).
type DedupDecision struct {
	DecisionID       int64     `gorm:"column:decision_id;primaryKey;autoIncrement"`
	FirstArticleID   int64     `gorm:"column:first_article_id;type:bigint;not null"`
	SecondArticleID  int64     `gorm:"column:second_article_id;type:bigint;not null"`
	KeptArticleID    *int64    `gorm:"column:kept_article_id;type:bigint"`
	RemovedArticleID *int64    `gorm:"column:removed_article_id;type:bigint"`
	IsDuplicate      bool      `gorm:"column:is_duplicate;type:boolean;not null"`
	Stage            string    `gorm:"column:stage;type:text;not null"`
	Similarity       float64   `gorm:"column:similarity;type:double precision;not null;default:0"`
	Confidence       string    `gorm:"column:confidence;type:text;not null;default:''"`
	Reason           string    `gorm:"column:reason;type:text;not null;default:''"`
	Origin           string    `gorm:"column:origin;type:text;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (DedupDecision) TableName() string { return "deals.dedup_decisions" }

// DateCorrection maps deals.date_corrections.
type DateCorrection struct {
	CorrectionID int64     `gorm:"column:correction_id;primaryKey;autoIncrement"`
	ArticleID    int64     `gorm:"column:article_id;type:bigint;not null"`
	PreviousDate time.Time `gorm:"column:previous_date;type:date;not null"`
	NewDate      time.Time `gorm:"column:new_date;type:date;not null"`
	Reason       string    `gorm:"column:reason;type:text;not null;default:''"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (DateCorrection) TableName() string { return "deals.date_corrections" }

func autoMigrateModels() []any {
	return []any{
		&Article{},
		&IngestRun{},
		&DedupDecision{},
		&DateCorrection{},
	}
}
