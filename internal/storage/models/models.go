package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// JobDescription 岗位描述表
// 摘要生成失败的岗位不会入库, 所以Summary入库时始终非空
type JobDescription struct {
	JobID        string    `gorm:"type:char(36);primaryKey"`
	Title        string    `gorm:"type:varchar(255);not null"`
	OriginalText string    `gorm:"type:longtext;not null"`
	Summary      string    `gorm:"type:longtext"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (JobDescription) TableName() string {
	return "job_descriptions"
}

// Candidate 候选人主表, 邮箱是全局唯一的自然键
// 同邮箱重复处理时所有提取字段整体覆盖, CandidateID保持不变
type Candidate struct {
	CandidateID string         `gorm:"type:char(36);primaryKey"`
	Email       string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_candidates_email_unique"`
	Name        string         `gorm:"type:varchar(255)"`
	Phone       string         `gorm:"type:varchar(50)"`
	CVFilename  string         `gorm:"type:varchar(255)"`
	CVText      string         `gorm:"type:longtext"`
	Skills      string         `gorm:"type:text"`
	Experience  string         `gorm:"type:text"`
	Education   string         `gorm:"type:text"`
	CVObjectKey string         `gorm:"type:varchar(1024)"`
	RawLLMJSON  datatypes.JSON `gorm:"type:json"`
	CreatedAt   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Match 岗位-候选人匹配表
// (job_id, candidate_id) 全局唯一; 重新评分只更新score/is_shortlisted,
// email_sent 单向 false→true, 任何upsert都不得回退它
type Match struct {
	MatchID       string    `gorm:"type:char(36);primaryKey"`
	JobID         string    `gorm:"type:char(36);not null;index:idx_matches_job_id;uniqueIndex:idx_matches_job_candidate_unique,priority:1"`
	CandidateID   string    `gorm:"type:char(36);not null;uniqueIndex:idx_matches_job_candidate_unique,priority:2"`
	Score         int       `gorm:"type:int;not null"`
	IsShortlisted bool      `gorm:"not null;default:false;index:idx_matches_shortlisted"`
	EmailSent     bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt     time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Job       *JobDescription `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Candidate *Candidate      `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Match) TableName() string {
	return "matches"
}

// MapToJSON 把map序列化为datatypes.JSON列值
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
