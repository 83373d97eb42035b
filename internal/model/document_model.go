package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type Document struct {
	Id        uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title     string           `gorm:"type:text"`
	Content   string           `gorm:"type:text;not null"`
	Category  string           `gorm:"type:text;not null;index"`
	Source    string           `gorm:"type:text"`
	Tags      datatypes.JSON   `gorm:"type:jsonb"`
	Analysis  datatypes.JSON   `gorm:"type:jsonb"`
	Metadata  datatypes.JSON   `gorm:"type:jsonb"`
	Embedding *pgvector.Vector `gorm:"type:vector(384)"` // null until the ingestion consumer fills it
	CreatedAt time.Time        `gorm:"autoCreateTime"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}
