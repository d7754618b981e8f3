package entity

import "time"

// UserFile is one ingested document in the registry. Chunks and vectors
// live in the vector store; this table only tracks ownership and state.
type UserFile struct {
	Id         string    `gorm:"column:id;primaryKey"`
	UserId     string    `gorm:"column:user_id;index"`
	FileName   string    `gorm:"column:file_name"`
	ChunkCount int       `gorm:"column:chunk_count"`
	Status     string    `gorm:"column:status"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (UserFile) TableName() string {
	return "user_files"
}
